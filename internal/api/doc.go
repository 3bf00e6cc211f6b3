// Package api содержит HTTP API для наблюдения за проектами.
//
// Структура:
//   - handler.go         — Handler с зависимостями (orchestrator, репозитории)
//   - routes.go          — регистрация маршрутов
//   - middleware.go      — logging и recovery
//   - response.go        — унифицированные JSON-ответы и обработка ошибок
//   - dto.go             — ответы API
//   - status_handler.go  — /healthz и /api/v1/status
//   - project_handler.go — /api/v1/projects и история runs
//   - server.go          — запуск сервера с graceful shutdown
//
// API только читает: управление проектами выполняет CLI.
package api
