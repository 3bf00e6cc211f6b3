package api

import (
	"time"

	"github.com/shaiso/flowctl/internal/domain"
	"github.com/shaiso/flowctl/internal/orchestrator"
	"github.com/shaiso/flowctl/internal/repo"
)

// HealthResponse — ответ /healthz.
type HealthResponse struct {
	Status         string `json:"status"`
	Uptime         string `json:"uptime"`
	ActiveProjects int    `json:"active_projects"`
}

// StatusResponse — состояние выполняющегося проекта.
type StatusResponse = orchestrator.Snapshot

// ProjectResponse — сохранённый проект.
type ProjectResponse struct {
	Name        string        `json:"name"`
	Path        string        `json:"path,omitempty"`
	Parallelism int           `json:"parallelism"`
	Flows       []domain.Flow `json:"flows"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// ProjectFromRecord конвертирует repo.ProjectRecord в ProjectResponse.
func ProjectFromRecord(p repo.ProjectRecord) ProjectResponse {
	return ProjectResponse{
		Name:        p.Spec.Name,
		Path:        p.Spec.Path,
		Parallelism: p.Spec.Parallelism,
		Flows:       p.Spec.Flows,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// RunResponse — run проекта.
type RunResponse struct {
	domain.ProjectRun
	DurationMs int64 `json:"duration_ms,omitempty"`
}

// RunFromDomain конвертирует domain.ProjectRun в RunResponse.
func RunFromDomain(r domain.ProjectRun) RunResponse {
	return RunResponse{
		ProjectRun: r,
		DurationMs: r.Duration().Milliseconds(),
	}
}
