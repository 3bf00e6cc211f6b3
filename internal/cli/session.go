package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/shaiso/flowctl/internal/engine"
	"github.com/shaiso/flowctl/internal/mq"
	"github.com/shaiso/flowctl/internal/platform"
	"github.com/shaiso/flowctl/internal/repo"
	"github.com/shaiso/flowctl/internal/telemetry"
)

// ErrNoServer — адрес платформы не задан.
var ErrNoServer = errors.New("platform server is not set: use --server or FLOWCTL_SERVER")

// Options — глобальные флаги CLI.
type Options struct {
	Server  string
	Token   string
	JSON    bool
	Timeout time.Duration
}

// Session — окружение одной команды: вывод, логгер, метрики и
// лениво открываемые клиенты (платформа, PostgreSQL, RabbitMQ).
type Session struct {
	opts     Options
	out      *Output
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *telemetry.Metrics

	client *platform.Client
	pool   *pgxpool.Pool
	conn   *mq.Connection
}

// NewSession создаёт Session.
func NewSession(opts Options, out *Output, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Session{
		opts:     opts,
		out:      out,
		logger:   logger,
		registry: registry,
		metrics:  telemetry.NewMetrics(registry),
	}
}

// Output возвращает вывод команды.
func (s *Session) Output() *Output { return s.out }

// Logger возвращает логгер команды.
func (s *Session) Logger() *slog.Logger { return s.logger }

// Client возвращает клиент платформы.
func (s *Session) Client() (*platform.Client, error) {
	if s.client != nil {
		return s.client, nil
	}
	if s.opts.Server == "" {
		return nil, ErrNoServer
	}

	s.client = platform.NewClient(platform.Config{
		BaseURL:     s.opts.Server,
		AccessToken: s.opts.Token,
		Timeout:     s.opts.Timeout,
		Metrics:     s.metrics,
		Logger:      s.logger,
	})
	return s.client, nil
}

// db открывает пул PostgreSQL и создаёт схему.
func (s *Session) db(ctx context.Context) (*pgxpool.Pool, error) {
	if s.pool != nil {
		return s.pool, nil
	}

	pool, err := repo.NewPool(ctx, repo.DSNFromEnv())
	if err != nil {
		return nil, err
	}
	if err := repo.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	s.pool = pool
	return pool, nil
}

// Projects возвращает хранилище проектов.
func (s *Session) Projects(ctx context.Context) (*repo.ProjectRepo, error) {
	pool, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	return repo.NewProjectRepo(pool), nil
}

// Runs возвращает историю runs.
func (s *Session) Runs(ctx context.Context) (*repo.RunRepo, error) {
	pool, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	return repo.NewRunRepo(pool), nil
}

// MQ подключается к RabbitMQ и объявляет топологию.
func (s *Session) MQ(ctx context.Context) (*mq.Connection, error) {
	if s.conn != nil {
		return s.conn, nil
	}

	conn, err := mq.NewConnection(mq.URLFromEnv(), s.logger)
	if err != nil {
		return nil, err
	}
	if err := mq.SetupTopology(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("setup topology: %w", err)
	}

	s.conn = conn
	return conn, nil
}

// LoadProject читает документ проекта и собирает граф.
// parallelism > 0 переопределяет значение из документа.
func (s *Session) LoadProject(path string, parallelism int) (*engine.Project, error) {
	spec, err := engine.LoadProjectSpec(path)
	if err != nil {
		return nil, err
	}
	if parallelism > 0 {
		spec.Parallelism = parallelism
	}
	return engine.BuildProject(spec, s.logger)
}

// Close закрывает открытые соединения.
func (s *Session) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.Warn("failed to close RabbitMQ connection", "error", err)
		}
	}
}
