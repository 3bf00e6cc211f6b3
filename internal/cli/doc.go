// Package cli реализует инструмент командной строки flowctl.
//
// # Обзор
//
// CLI — единственная точка входа flowctl. Команды работают в одном процессе:
// project start строит граф, запускает Orchestrator и ждёт завершения run.
// Платформа репликации, PostgreSQL и RabbitMQ подключаются только тем
// командам, которым они нужны.
//
// # Ключевые компоненты
//
// ## Session
//
// Окружение команды: глобальные флаги, Output, логгер, реестр метрик и
// лениво открываемые клиенты. Session создаётся в PersistentPreRun после
// разбора флагов и закрывается функцией, которую возвращает NewRootCmd.
//
//	root, closeSession := cli.NewRootCmd(version, logger)
//	defer closeSession()
//	err := root.ExecuteContext(ctx)
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: flowctl project validate p.json --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - project: validate, start, stop, delete, save, list, show, runs
//   - flow: status, start, stop, delete
//   - events: watch
//
// Каждая группа создаётся фабричной функцией (NewProjectCmd и т.д.),
// принимающей sessionFn — замыкание, которое отдаёт Session текущей команды.
//
// # Переменные окружения
//
//	FLOWCTL_SERVER  адрес платформы (--server)
//	FLOWCTL_TOKEN   токен платформы (--token)
//	DB_URL          PostgreSQL для save, list, show, runs и --record
//	RABBITMQ_URL    RabbitMQ для events watch и --publish
//	LOG_LEVEL       debug, info, warn, error
package cli
