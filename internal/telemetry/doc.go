// Package telemetry обеспечивает наблюдаемость flowctl.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики планировщика и клиента платформы
//
// Логи пишутся в stderr, чтобы не смешиваться с выводом CLI.
// Метрики регистрируются в переданном Registerer и отдаются на /metrics.
package telemetry
