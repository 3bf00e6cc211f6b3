package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProjectRun — один запуск проекта.
//
// Создаётся при старте планировщика и завершается, когда все flows
// отработали или планировщик упал.
type ProjectRun struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// Project — имя проекта.
	Project string `json:"project"`

	// Status — текущий статус.
	Status RunStatus `json:"status"`

	// StartedAt — время старта.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время завершения. Nil, пока run выполняется.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки для FAILED.
	Error string `json:"error,omitempty"`
}

// NewProjectRun создаёт run в статусе RUNNING.
func NewProjectRun(project string) *ProjectRun {
	return &ProjectRun{
		ID:        uuid.New(),
		Project:   project,
		Status:    RunStatusRunning,
		StartedAt: time.Now(),
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *ProjectRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// MarkSucceeded переводит run в статус SUCCEEDED.
func (r *ProjectRun) MarkSucceeded() {
	now := time.Now()
	r.Status = RunStatusSucceeded
	r.FinishedAt = &now
}

// MarkFailed переводит run в статус FAILED с ошибкой.
func (r *ProjectRun) MarkFailed(err string) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.FinishedAt = &now
	r.Error = err
}

// FlowRun — выполнение одного flow внутри run проекта.
type FlowRun struct {
	RunID      uuid.UUID     `json:"run_id"`
	Flow       string        `json:"flow"`
	Status     FlowRunStatus `json:"status"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// MarkCompleted помечает flow завершённым.
func (f *FlowRun) MarkCompleted() {
	now := time.Now()
	f.Status = FlowRunCompleted
	f.FinishedAt = &now
}

// MarkFailed помечает flow упавшим.
func (f *FlowRun) MarkFailed(err string) {
	now := time.Now()
	f.Status = FlowRunFailed
	f.FinishedAt = &now
	f.Error = err
}
