package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/flowctl/internal/domain"
	"github.com/shaiso/flowctl/internal/engine"
	"github.com/shaiso/flowctl/internal/mq"
	"github.com/shaiso/flowctl/internal/telemetry"
	"github.com/shaiso/flowctl/internal/worker"
)

// Default configuration values.
const (
	defaultDispatchInterval = 100 * time.Millisecond
	publishTimeout          = 5 * time.Second
)

// FlowRunner выполняет один flow до завершения.
//
// Реализация: worker.FlowExecutor.
type FlowRunner interface {
	Execute(ctx context.Context, flow *domain.Flow, sink worker.EventSink) *worker.Result
}

// EventPublisher публикует записанные события.
//
// Реализация: mq.Publisher.
type EventPublisher interface {
	PublishFlowEvent(ctx context.Context, payload mq.FlowEventPayload) error
}

// RunRecorder сохраняет историю запусков.
//
// Реализация: repo.RunRepo.
type RunRecorder interface {
	CreateRun(ctx context.Context, run *domain.ProjectRun) error
	FinishRun(ctx context.Context, run *domain.ProjectRun) error
	UpsertFlowRun(ctx context.Context, flowRun *domain.FlowRun) error
}

// SchedulerConfig — конфигурация ProjectScheduler.
type SchedulerConfig struct {
	// Runner — исполнитель flows (обязателен).
	Runner FlowRunner

	// Publisher — опционально; nil означает, что события не публикуются.
	Publisher EventPublisher

	// Recorder — опционально; nil означает, что история не пишется.
	Recorder RunRecorder

	Metrics *telemetry.Metrics

	DispatchInterval time.Duration // пауза между проходами цикла (default: 100ms)
	StallTimeout     time.Duration // 0 — ждать событий бесконечно

	Logger *slog.Logger
}

// ProjectScheduler выполняет один run проекта.
//
// Цикл диспетчеризации забирает готовые flows из queues[0] и отправляет
// их в пул воркеров размером Parallelism. Flow покидает очередь, только
// когда в пуле есть место. Воркеры сообщают события через Emit; каждое
// новое событие может перевести ожидающие flows в queues[0]. Run
// завершается, когда все flows отправлены и никто не ждёт, после чего
// дожидается воркеров.
//
// ProjectScheduler одноразовый: Run вызывается один раз.
type ProjectScheduler struct {
	project *engine.Project
	state   *RunState

	runMu sync.Mutex
	run   *domain.ProjectRun

	runner    FlowRunner
	publisher EventPublisher
	recorder  RunRecorder
	metrics   *telemetry.Metrics

	dispatchInterval time.Duration
	stallTimeout     time.Duration

	logger *slog.Logger

	// wake будит цикл диспетчеризации, когда освободился воркер
	// или появились готовые flows.
	wake chan struct{}

	startOnce sync.Once
	flowRuns  sync.Map // flow name → *domain.FlowRun
}

// NewProjectScheduler создаёт планировщик для проекта.
//
// Проект должен пройти Validate: планировщик не проверяет граф.
func NewProjectScheduler(project *engine.Project, cfg SchedulerConfig) *ProjectScheduler {
	dispatchInterval := cfg.DispatchInterval
	if dispatchInterval <= 0 {
		dispatchInterval = defaultDispatchInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	run := domain.NewProjectRun(project.Name)

	return &ProjectScheduler{
		project:          project,
		state:            NewRunState(project),
		run:              run,
		runner:           cfg.Runner,
		publisher:        cfg.Publisher,
		recorder:         cfg.Recorder,
		metrics:          cfg.Metrics,
		dispatchInterval: dispatchInterval,
		stallTimeout:     cfg.StallTimeout,
		logger:           telemetry.WithRunID(telemetry.WithProject(logger, project.Name), run.ID.String()),
		wake:             make(chan struct{}, 1),
	}
}

// RunID возвращает идентификатор run.
func (s *ProjectScheduler) RunID() uuid.UUID {
	return s.run.ID
}

// Project возвращает проект.
func (s *ProjectScheduler) Project() *engine.Project {
	return s.project
}

// State возвращает состояние run.
func (s *ProjectScheduler) State() *RunState {
	return s.state
}

// Emit записывает событие flow.
//
// Повторное событие игнорируется и возвращает false. Новое событие
// публикуется и продвигает ожидающие flows. Emit безопасен для
// конкурентного вызова из воркеров.
func (s *ProjectScheduler) Emit(event domain.Event) bool {
	promoted, recorded := s.state.Emit(event)
	if !recorded {
		return false
	}

	s.metrics.EventEmitted(event.Kind())
	s.metrics.SetWaiting(s.state.WaitingCount())

	s.logger.Info("event occurred", "event", event)
	for _, name := range promoted {
		s.logger.Info("flow ready", "flow", name, "trigger", event)
	}
	if len(promoted) > 0 {
		s.wakeup()
	}

	s.publish(event)
	return true
}

// publish отправляет событие в RabbitMQ. Ошибка публикации не влияет на run.
func (s *ProjectScheduler) publish(event domain.Event) {
	if s.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	payload := mq.FlowEventPayload{
		RunID:      s.run.ID,
		Project:    s.project.Name,
		Flow:       event.Flow(),
		Event:      string(event),
		OccurredAt: time.Now(),
	}
	if err := s.publisher.PublishFlowEvent(ctx, payload); err != nil {
		s.logger.Warn("failed to publish event", "event", event, "error", err)
	}
}

// Run выполняет проект.
//
// Возвращает:
//   - nil, если все flows завершились успешно
//   - ErrFlowsFailed, если часть flows упала
//   - ErrProjectStalled, если сработал StallTimeout
//   - ctx.Err(), если ctx отменён
//   - ErrUnexpectedScheduler, если цикл диспетчеризации упал
//
// В двух последних случаях Run не дожидается воркеров.
func (s *ProjectScheduler) Run(ctx context.Context) error {
	err := ErrSchedulerUsed
	s.startOnce.Do(func() {
		err = s.loop(ctx)
	})
	return err
}

func (s *ProjectScheduler) loop(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctx = telemetry.WithLogger(ctx, s.logger)

	defer func() {
		if r := recover(); r != nil {
			cancel()
			err = fmt.Errorf("%w: %v", ErrUnexpectedScheduler, r)
			s.logger.Error("scheduler failed",
				"panic", r,
				"stack", string(debug.Stack()),
			)
			s.finishRun(err)
		}
	}()

	s.recordRun(ctx)
	s.metrics.SetWaiting(s.state.WaitingCount())

	s.logger.Info("project started",
		"flows", s.project.Len(),
		"parallelism", s.project.Parallelism,
		"queues", s.project.MaxDagDegree()+1,
	)

	var group errgroup.Group
	group.SetLimit(s.project.Parallelism)

	ticker := time.NewTicker(s.dispatchInterval)
	defer ticker.Stop()

	for !s.state.Done() {
		s.dispatch(ctx, &group)

		if s.stallTimeout > 0 {
			if stalled := s.state.StalledFor(time.Now()); stalled >= s.stallTimeout {
				err = fmt.Errorf("%w: %s", ErrProjectStalled, strings.Join(s.state.Waiting(), ", "))
				s.logger.Error("project stalled",
					"waiting", s.state.Waiting(),
					"stalled_for", stalled,
				)
				s.finishRun(err)
				return err
			}
		}

		select {
		case <-ctx.Done():
			err = ctx.Err()
			s.logger.Warn("project run cancelled", "error", err)
			s.finishRun(err)
			return err
		case <-ticker.C:
		case <-s.wake:
		}
	}

	// Все flows отправлены, ждём воркеров
	_ = group.Wait()

	if failed := s.state.Failed(); len(failed) > 0 {
		err = fmt.Errorf("%w: %s", ErrFlowsFailed, strings.Join(failed, ", "))
	}
	s.finishRun(err)
	return err
}

// dispatch отправляет готовые flows в пул, пока в нём есть место.
// Flow, который пул не принял, возвращается в queues[0] до следующего прохода.
func (s *ProjectScheduler) dispatch(ctx context.Context, group *errgroup.Group) {
	for ctx.Err() == nil && s.state.Running() < s.project.Parallelism {
		flow := s.state.PopReady()
		if flow == nil {
			return
		}

		if !group.TryGo(func() error {
			s.runFlow(ctx, flow)
			// Ошибка flow не отменяет соседей
			return nil
		}) {
			s.state.Requeue(flow.Name)
			return
		}

		s.logger.Info("flow submitted", "flow", flow.Name)
	}
}

// runFlow выполняет flow в воркере пула и учитывает результат.
//
// Паника на любом шаге не выходит за пределы воркера: если flow ещё
// не учтён как завершённый, он считается упавшим.
func (s *ProjectScheduler) runFlow(ctx context.Context, flow *domain.Flow) {
	finished := false
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("worker panic",
				"flow", flow.Name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			if !finished {
				s.state.Finish(flow.Name, fmt.Errorf("%w: %v", ErrWorkerPanic, r))
				s.metrics.FlowFinished("failed")
			}
		}
		s.wakeup()
	}()

	s.metrics.FlowSubmitted()
	s.recordFlow(ctx, flow.Name, nil, false)

	result := s.execute(ctx, flow)

	s.state.Finish(flow.Name, result.Err)
	finished = true

	if result.Err != nil {
		s.metrics.FlowFinished("failed")
	} else {
		s.metrics.FlowFinished("completed")
	}
	s.recordFlow(ctx, flow.Name, result.Err, true)
}

// execute запускает flow, превращая панику исполнителя в ошибку flow.
func (s *ProjectScheduler) execute(ctx context.Context, flow *domain.Flow) (result *worker.Result) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("worker panic", "flow", flow.Name, "panic", r)
			result = &worker.Result{
				Flow: flow.Name,
				Err:  fmt.Errorf("%w: %v", ErrWorkerPanic, r),
			}
		}
	}()

	return s.runner.Execute(ctx, flow, s)
}

func (s *ProjectScheduler) wakeup() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// --- Run history ---

func (s *ProjectScheduler) recordRun(ctx context.Context) {
	if s.recorder == nil {
		return
	}
	s.runMu.Lock()
	run := *s.run
	s.runMu.Unlock()

	if err := s.recorder.CreateRun(ctx, &run); err != nil {
		s.logger.Warn("failed to record run", "error", err)
	}
}

func (s *ProjectScheduler) finishRun(err error) {
	s.runMu.Lock()
	if err != nil {
		s.run.MarkFailed(err.Error())
	} else {
		s.run.MarkSucceeded()
	}
	run := *s.run
	s.runMu.Unlock()

	if err != nil {
		s.metrics.ProjectRunFinished("failed")
		s.logger.Error("project failed", "duration", run.Duration(), "error", err)
	} else {
		s.metrics.ProjectRunFinished("succeeded")
		s.logger.Info("project succeeded", "duration", run.Duration())
	}

	if s.recorder == nil {
		return
	}

	// Run мог завершиться отменой ctx, историю всё равно дописываем
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := s.recorder.FinishRun(ctx, &run); err != nil {
		s.logger.Warn("failed to record run result", "error", err)
	}
}

func (s *ProjectScheduler) recordFlow(ctx context.Context, name string, flowErr error, finished bool) {
	if s.recorder == nil {
		return
	}

	var flowRun *domain.FlowRun
	if !finished {
		flowRun = &domain.FlowRun{
			RunID:     s.run.ID,
			Flow:      name,
			Status:    domain.FlowRunRunning,
			StartedAt: time.Now(),
		}
		s.flowRuns.Store(name, flowRun)
	} else {
		v, ok := s.flowRuns.Load(name)
		if !ok {
			return
		}
		flowRun = v.(*domain.FlowRun)
		if flowErr != nil {
			flowRun.MarkFailed(flowErr.Error())
		} else {
			flowRun.MarkCompleted()
		}
	}

	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}
	if err := s.recorder.UpsertFlowRun(ctx, flowRun); err != nil {
		s.logger.Warn("failed to record flow run", "flow", name, "error", err)
	}
}

// Snapshot — состояние выполняющегося run.
type Snapshot struct {
	RunID     uuid.UUID        `json:"run_id"`
	Project   string           `json:"project"`
	Status    domain.RunStatus `json:"status"`
	StartedAt time.Time        `json:"started_at"`
	Stats
}

// Snapshot возвращает снимок состояния run.
func (s *ProjectScheduler) Snapshot() Snapshot {
	s.runMu.Lock()
	run := *s.run
	s.runMu.Unlock()

	return Snapshot{
		RunID:     run.ID,
		Project:   s.project.Name,
		Status:    run.Status,
		StartedAt: run.StartedAt,
		Stats:     s.state.Stats(),
	}
}

// Result возвращает запись run (после Run содержит итог).
func (s *ProjectScheduler) Result() domain.ProjectRun {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return *s.run
}
