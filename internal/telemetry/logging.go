package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogConfig — параметры логгера.
type LogConfig struct {
	Level slog.Level

	// Format — "json" или "text".
	Format string

	// Output — куда писать (default: stderr, stdout занят выводом CLI).
	Output io.Writer
}

// LogConfigFromEnv читает LOG_LEVEL и LOG_FORMAT.
func LogConfigFromEnv() LogConfig {
	return LogConfig{
		Level:  LogLevel(),
		Format: strings.ToLower(os.Getenv("LOG_FORMAT")),
	}
}

// LogLevel определяет уровень логирования из LOG_LEVEL.
// Понимает debug, info, warn, error в любом регистре и смещения вида "info+2".
// Нераспознанное значение даёт INFO.
func LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv("LOG_LEVEL"))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewLogger создаёт логгер по конфигурации.
//
// JSON — формат по умолчанию, "text" удобнее в терминале.
// На уровне DEBUG к записям добавляется исходная строка.
func NewLogger(cfg LogConfig) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.Level <= slog.LevelDebug,
	}

	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(out, opts))
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}

// SetupLogger создаёт логгер из окружения и делает его глобальным.
func SetupLogger() *slog.Logger {
	logger := NewLogger(LogConfigFromEnv())
	slog.SetDefault(logger)
	return logger
}

type loggerKey struct{}

// WithLogger кладёт логгер в контекст.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom достаёт логгер из контекста, если он там есть.
func LoggerFrom(ctx context.Context) (*slog.Logger, bool) {
	logger, ok := ctx.Value(loggerKey{}).(*slog.Logger)
	return logger, ok
}

// FromContext возвращает логгер из контекста или глобальный.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := LoggerFrom(ctx); ok {
		return logger
	}
	return slog.Default()
}

// Атрибуты, общие для логов планировщика.

// WithRunID добавляет run_id.
func WithRunID(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With("run_id", runID)
}

// WithProject добавляет project.
func WithProject(logger *slog.Logger, project string) *slog.Logger {
	return logger.With("project", project)
}

// WithFlow добавляет flow.
func WithFlow(logger *slog.Logger, flow string) *slog.Logger {
	return logger.With("flow", flow)
}
