// Package platform реализует REST-клиент платформы репликации данных.
//
// Платформа хранит flows как задачи (Task). Клиент умеет:
//   - создавать и сохранять задачи (POST/PATCH /api/Task)
//   - запускать, останавливать и удалять их (batchStart, batchStop, batchDelete)
//   - опрашивать статус и milestones (GET /api/Task/{id})
//
// Все ответы платформы завёрнуты в конверт:
//
//	{"code": "ok", "data": {...}, "message": ""}
//
// Access token передаётся query-параметром access_token.
//
// FlowHandle привязывает клиент к одному flow и используется CLI.
package platform
