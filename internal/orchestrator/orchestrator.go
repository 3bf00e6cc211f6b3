package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shaiso/flowctl/internal/domain"
	"github.com/shaiso/flowctl/internal/engine"
	"github.com/shaiso/flowctl/internal/telemetry"
	"github.com/shaiso/flowctl/internal/worker"
)

// FlowController — операции платформы над flows проекта.
//
// Реализация: platform.Client.
type FlowController interface {
	worker.FlowClient
	Stop(ctx context.Context, flow *domain.Flow) error
	Delete(ctx context.Context, flow *domain.Flow) error
}

// Orchestrator управляет выполнением проектов.
//
// Orchestrator — точка входа для CLI и API:
//   - StartProject валидирует граф и выполняет run через ProjectScheduler
//   - StopProject и DeleteProject действуют на каждый flow независимо
//   - Snapshot отдаёт состояние выполняющихся проектов
type Orchestrator struct {
	client    FlowController
	runner    FlowRunner
	publisher EventPublisher
	recorder  RunRecorder
	metrics   *telemetry.Metrics

	dispatchInterval time.Duration
	stallTimeout     time.Duration

	// Active projects — проекты в процессе выполнения (name → scheduler)
	active map[string]*ProjectScheduler
	mu     sync.RWMutex

	logger *slog.Logger
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Client — клиент платформы (обязателен).
	Client FlowController

	// Runner — исполнитель flows. Если nil, создаётся worker.FlowExecutor
	// поверх Client с параметрами опроса ниже.
	Runner FlowRunner

	// Publisher и Recorder опциональны.
	Publisher EventPublisher
	Recorder  RunRecorder

	Metrics *telemetry.Metrics

	// Параметры опроса flows (см. worker.Config)
	PollInterval      time.Duration
	MaxMalformedPolls int
	MaxEditPolls      int

	// Параметры планировщика (см. SchedulerConfig)
	DispatchInterval time.Duration
	StallTimeout     time.Duration

	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	runner := cfg.Runner
	if runner == nil {
		runner = worker.New(worker.Config{
			Client:            cfg.Client,
			PollInterval:      cfg.PollInterval,
			MaxMalformedPolls: cfg.MaxMalformedPolls,
			MaxEditPolls:      cfg.MaxEditPolls,
			Logger:            logger,
		})
	}

	return &Orchestrator{
		client:           cfg.Client,
		runner:           runner,
		publisher:        cfg.Publisher,
		recorder:         cfg.Recorder,
		metrics:          cfg.Metrics,
		dispatchInterval: cfg.DispatchInterval,
		stallTimeout:     cfg.StallTimeout,
		active:           make(map[string]*ProjectScheduler),
		logger:           logger,
	}
}

// NewScheduler создаёт планировщик для проекта с настройками оркестратора.
func (o *Orchestrator) NewScheduler(project *engine.Project) *ProjectScheduler {
	return NewProjectScheduler(project, SchedulerConfig{
		Runner:           o.runner,
		Publisher:        o.publisher,
		Recorder:         o.recorder,
		Metrics:          o.metrics,
		DispatchInterval: o.dispatchInterval,
		StallTimeout:     o.stallTimeout,
		Logger:           o.logger,
	})
}

// StartProject выполняет проект и блокируется до завершения run.
//
// Граф проверяется до запуска: при ошибке конфигурации ни один flow
// не стартует. Один проект не может выполняться дважды одновременно.
func (o *Orchestrator) StartProject(ctx context.Context, project *engine.Project) error {
	_, err := o.RunProject(ctx, project)
	return err
}

// RunProject работает как StartProject и возвращает итоговый снимок run.
// Если граф не прошёл проверку, снимок пустой.
func (o *Orchestrator) RunProject(ctx context.Context, project *engine.Project) (Snapshot, error) {
	logger := telemetry.WithProject(o.logger, project.Name)

	if err := project.Validate(); err != nil {
		logger.Error("project is not valid", "error", err)
		return Snapshot{}, err
	}

	scheduler := o.NewScheduler(project)
	if err := o.addActive(scheduler); err != nil {
		return Snapshot{}, err
	}
	defer o.removeActive(project.Name)

	err := scheduler.Run(ctx)
	return scheduler.Snapshot(), err
}

// StopProject останавливает все flows проекта.
//
// Ошибка одного flow не мешает остальным; все ошибки возвращаются вместе.
// Выполняющийся планировщик не уведомляется: его воркеры увидят статус
// stop при следующем опросе.
func (o *Orchestrator) StopProject(ctx context.Context, project *engine.Project) error {
	return o.forEachFlow(ctx, project, "stop", o.client.Stop)
}

// DeleteProject удаляет все flows проекта с платформы.
func (o *Orchestrator) DeleteProject(ctx context.Context, project *engine.Project) error {
	return o.forEachFlow(ctx, project, "delete", o.client.Delete)
}

func (o *Orchestrator) forEachFlow(
	ctx context.Context,
	project *engine.Project,
	action string,
	fn func(context.Context, *domain.Flow) error,
) error {
	logger := telemetry.WithProject(o.logger, project.Name)

	var errs []error
	for _, flow := range project.Flows() {
		if err := fn(ctx, flow); err != nil {
			logger.Error("flow "+action+" failed", "flow", flow.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s %s: %w", action, flow.Name, err))
			continue
		}
		logger.Info("flow "+action+" done", "flow", flow.Name)
	}

	return errors.Join(errs...)
}

// addActive регистрирует выполняющийся проект.
func (o *Orchestrator) addActive(s *ProjectScheduler) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	name := s.Project().Name
	if _, exists := o.active[name]; exists {
		return fmt.Errorf("%w: %s", ErrProjectAlreadyActive, name)
	}

	o.active[name] = s
	return nil
}

// removeActive удаляет проект из выполняющихся.
func (o *Orchestrator) removeActive(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, name)
}

// ActiveProjectsCount возвращает количество выполняющихся проектов.
func (o *Orchestrator) ActiveProjectsCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.active)
}

// Snapshot возвращает состояние выполняющегося проекта.
func (o *Orchestrator) Snapshot(project string) (Snapshot, bool) {
	o.mu.RLock()
	s, ok := o.active[project]
	o.mu.RUnlock()

	if !ok {
		return Snapshot{}, false
	}
	return s.Snapshot(), true
}

// Snapshots возвращает состояние всех выполняющихся проектов по имени.
func (o *Orchestrator) Snapshots() []Snapshot {
	o.mu.RLock()
	schedulers := make([]*ProjectScheduler, 0, len(o.active))
	for _, s := range o.active {
		schedulers = append(schedulers, s)
	}
	o.mu.RUnlock()

	snapshots := make([]Snapshot, 0, len(schedulers))
	for _, s := range schedulers {
		snapshots = append(snapshots, s.Snapshot())
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Project < snapshots[j].Project
	})
	return snapshots
}
