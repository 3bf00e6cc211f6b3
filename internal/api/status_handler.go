package api

import (
	"net/http"
	"time"
)

// Healthz отвечает, что процесс жив.
// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:         "ok",
		Uptime:         time.Since(h.started).Truncate(time.Second).String(),
		ActiveProjects: len(h.status.Snapshots()),
	})
}

// ListStatus возвращает состояние всех выполняющихся проектов.
// GET /api/v1/status
func (h *Handler) ListStatus(w http.ResponseWriter, _ *http.Request) {
	snapshots := h.status.Snapshots()
	List(w, snapshots, len(snapshots))
}

// GetStatus возвращает состояние одного выполняющегося проекта.
// GET /api/v1/status/{project}
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")

	snapshot, ok := h.status.Snapshot(project)
	if !ok {
		NotFound(w, "project is not running: "+project)
		return
	}

	Success(w, snapshot)
}
