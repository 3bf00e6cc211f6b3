package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/flowctl/internal/domain"
	"github.com/shaiso/flowctl/internal/engine"
	"github.com/shaiso/flowctl/internal/telemetry"
)

// Default configuration values.
const (
	defaultPollInterval      = time.Second
	defaultMaxMalformedPolls = 10
	defaultMaxEditPolls      = 10
)

// FlowClient — операции платформы, нужные для выполнения flow.
//
// Реализация: platform.Client.
type FlowClient interface {
	Save(ctx context.Context, flow *domain.Flow) error
	Start(ctx context.Context, flow *domain.Flow) error
	Status(ctx context.Context, flow *domain.Flow) (*domain.FlowState, error)
}

// EventSink принимает события жизненного цикла flow.
//
// Emit возвращает false, если событие уже было записано.
type EventSink interface {
	Emit(event domain.Event) bool
}

// EventSinkFunc адаптирует функцию к EventSink.
type EventSinkFunc func(event domain.Event) bool

// Emit вызывает f(event).
func (f EventSinkFunc) Emit(event domain.Event) bool {
	return f(event)
}

// Result — итог выполнения одного flow.
type Result struct {
	// Flow — имя flow.
	Flow string

	// Err — причина неуспеха. Nil, если flow дошёл до complete.
	Err error

	// LastStatus — последний полученный статус.
	LastStatus domain.FlowStatus

	// Polls — число опросов статуса.
	Polls int

	// Duration — время от сохранения до завершения.
	Duration time.Duration
}

// Succeeded возвращает true, если flow завершился успешно.
func (r *Result) Succeeded() bool {
	return r.Err == nil
}

// Config — конфигурация FlowExecutor.
type Config struct {
	// Client — клиент платформы (обязателен).
	Client FlowClient

	PollInterval      time.Duration // интервал опроса статуса (default: 1s)
	MaxMalformedPolls int           // лимит ошибочных опросов подряд (default: 10)
	MaxEditPolls      int           // лимит опросов в статусе edit подряд (default: 10)

	Logger *slog.Logger
}

// FlowExecutor выполняет один flow: сохраняет, запускает и опрашивает
// платформу, превращая переходы состояния в события.
//
// FlowExecutor не хранит состояния между вызовами и может использоваться
// несколькими воркерами одновременно.
type FlowExecutor struct {
	client            FlowClient
	pollInterval      time.Duration
	maxMalformedPolls int
	maxEditPolls      int
	logger            *slog.Logger
}

// New создаёт FlowExecutor.
func New(cfg Config) *FlowExecutor {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	maxMalformed := cfg.MaxMalformedPolls
	if maxMalformed <= 0 {
		maxMalformed = defaultMaxMalformedPolls
	}

	maxEdit := cfg.MaxEditPolls
	if maxEdit <= 0 {
		maxEdit = defaultMaxEditPolls
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &FlowExecutor{
		client:            cfg.Client,
		pollInterval:      pollInterval,
		maxMalformedPolls: maxMalformed,
		maxEditPolls:      maxEdit,
		logger:            logger,
	}
}

// Execute сохраняет и запускает flow, затем опрашивает его статус,
// пока flow не завершится.
//
// Каждое событие, выведенное из опроса, передаётся в sink по порядку.
// Execute не паникует и не возвращает ошибку: итог, включая причину
// неуспеха, описывает Result.
func (e *FlowExecutor) Execute(ctx context.Context, flow *domain.Flow, sink EventSink) *Result {
	started := time.Now()
	logger := telemetry.WithFlow(e.loggerFrom(ctx), flow.Name)

	result := e.execute(ctx, flow, sink, logger)
	result.Flow = flow.Name
	result.Duration = time.Since(started)

	if result.Err != nil {
		logger.Error("flow failed",
			"status", result.LastStatus,
			"polls", result.Polls,
			"duration", result.Duration,
			"error", result.Err,
		)
	} else {
		logger.Info("flow finished",
			"polls", result.Polls,
			"duration", result.Duration,
		)
	}

	return result
}

func (e *FlowExecutor) execute(ctx context.Context, flow *domain.Flow, sink EventSink, logger *slog.Logger) *Result {
	result := &Result{}

	// 1. Сохраняем определение
	if err := e.client.Save(ctx, flow); err != nil {
		result.Err = fmt.Errorf("%w: %w", ErrSaveFailed, err)
		return result
	}

	// 2. Запускаем
	if err := e.client.Start(ctx, flow); err != nil {
		result.Err = fmt.Errorf("%w: %w", ErrStartFailed, err)
		return result
	}

	logger.Info("flow started", "flow_id", flow.ID)

	// 3. Опрашиваем статус
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	var (
		malformed int
		edits     int
	)

	for {
		select {
		case <-ctx.Done():
			result.Err = ctx.Err()
			return result
		case <-ticker.C:
		}

		result.Polls++

		state, err := e.client.Status(ctx, flow)
		if err != nil {
			// Run отменён, пока шёл запрос
			if ctx.Err() != nil {
				result.Err = ctx.Err()
				return result
			}

			malformed++
			logger.Warn("flow status poll failed",
				"attempt", malformed,
				"limit", e.maxMalformedPolls,
				"error", err,
			)
			if malformed >= e.maxMalformedPolls {
				result.Err = fmt.Errorf("%w: %w", ErrMalformedLimit, err)
				return result
			}
			continue
		}
		malformed = 0
		result.LastStatus = state.Status

		if state.Status == domain.FlowStatusEdit {
			edits++
			if edits >= e.maxEditPolls {
				result.Err = fmt.Errorf("%w: %d polls", ErrFlowStuck, edits)
				return result
			}
			continue
		}
		edits = 0

		for _, event := range engine.DeriveEvents(flow.Name, state) {
			if sink.Emit(event) {
				logger.Debug("event emitted", "event", event)
			}
		}

		switch {
		case state.Status == domain.FlowStatusComplete:
			return result
		case state.Status.IsFailed():
			result.Err = fmt.Errorf("%w: status %s", ErrFlowFailed, state.Status)
			return result
		}
	}
}

func (e *FlowExecutor) loggerFrom(ctx context.Context) *slog.Logger {
	if logger, ok := telemetry.LoggerFrom(ctx); ok {
		return logger
	}
	return e.logger
}
