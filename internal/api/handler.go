package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shaiso/flowctl/internal/domain"
	"github.com/shaiso/flowctl/internal/orchestrator"
	"github.com/shaiso/flowctl/internal/repo"
)

// StatusSource отдаёт состояние выполняющихся проектов.
//
// Реализация: orchestrator.Orchestrator.
type StatusSource interface {
	Snapshots() []orchestrator.Snapshot
	Snapshot(project string) (orchestrator.Snapshot, bool)
}

// ProjectStore читает сохранённые проекты.
//
// Реализация: repo.ProjectRepo.
type ProjectStore interface {
	List(ctx context.Context) ([]repo.ProjectRecord, error)
	Get(ctx context.Context, name string) (*repo.ProjectRecord, error)
}

// RunStore читает историю runs.
//
// Реализация: repo.RunRepo.
type RunStore interface {
	ListRuns(ctx context.Context, project string, limit int) ([]domain.ProjectRun, error)
	ListFlowRuns(ctx context.Context, runID uuid.UUID) ([]domain.FlowRun, error)
}

// Handler — обработчик API с зависимостями.
type Handler struct {
	status   StatusSource
	projects ProjectStore
	runs     RunStore
	gatherer prometheus.Gatherer
	started  time.Time
	logger   *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	// Status — обязателен.
	Status StatusSource

	// Projects и Runs опциональны: без БД маршруты отвечают 503.
	Projects ProjectStore
	Runs     RunStore

	// Gatherer — источник метрик для /metrics (default: prometheus.DefaultGatherer).
	Gatherer prometheus.Gatherer

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		status:   cfg.Status,
		projects: cfg.Projects,
		runs:     cfg.Runs,
		gatherer: gatherer,
		started:  time.Now(),
		logger:   logger,
	}
}
