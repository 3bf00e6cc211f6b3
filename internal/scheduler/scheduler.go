package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrNoRunFunc — Periodic создан без функции запуска.
var ErrNoRunFunc = errors.New("run func is required")

// RunFunc запускает проект и блокируется до завершения run.
type RunFunc func(ctx context.Context) error

// Config — конфигурация Periodic.
type Config struct {
	// Expr — cron-выражение. Игнорируется, если задан Schedule.
	Expr string

	// Schedule — готовое расписание.
	Schedule cron.Schedule

	// Location — часовой пояс расписания (default: UTC).
	Location *time.Location

	Run    RunFunc
	Logger *slog.Logger
}

// Periodic запускает проект по расписанию.
//
// Если на очередном тике предыдущий run ещё выполняется, тик пропускается:
// один проект не выполняется дважды одновременно.
type Periodic struct {
	schedule cron.Schedule
	location *time.Location
	run      RunFunc
	logger   *slog.Logger

	active    atomic.Bool
	triggered atomic.Int64
	skipped   atomic.Int64
}

// NewPeriodic создаёт Periodic.
func NewPeriodic(cfg Config) (*Periodic, error) {
	if cfg.Run == nil {
		return nil, ErrNoRunFunc
	}

	schedule := cfg.Schedule
	if schedule == nil {
		var err error
		if schedule, err = ParseCronExpr(cfg.Expr); err != nil {
			return nil, err
		}
	}

	location := cfg.Location
	if location == nil {
		location = time.UTC
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Periodic{
		schedule: schedule,
		location: location,
		run:      cfg.Run,
		logger:   logger,
	}, nil
}

// Run ждёт тиков расписания до отмены ctx.
//
// После отмены дожидается выполняющегося run и возвращает ctx.Err().
func (p *Periodic) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		next := p.schedule.Next(time.Now().In(p.location))
		p.logger.Debug("next run scheduled", "at", next)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if !p.active.CompareAndSwap(false, true) {
			p.skipped.Add(1)
			p.logger.Warn("previous run still active, tick skipped", "tick", next)
			continue
		}

		p.triggered.Add(1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer p.active.Store(false)

			p.logger.Info("scheduled run started", "tick", next)
			if err := p.run(ctx); err != nil {
				p.logger.Error("scheduled run failed", "tick", next, "error", err)
				return
			}
			p.logger.Info("scheduled run finished", "tick", next)
		}()
	}
}

// Triggered возвращает число запущенных runs.
func (p *Periodic) Triggered() int64 {
	return p.triggered.Load()
}

// Skipped возвращает число пропущенных тиков.
func (p *Periodic) Skipped() int64 {
	return p.skipped.Load()
}
