package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

const defaultRunsLimit = 20

// ListProjects возвращает сохранённые проекты.
// GET /api/v1/projects
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	if h.projects == nil {
		Unavailable(w, "project store is not configured")
		return
	}

	projects, err := h.projects.List(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ProjectResponse, len(projects))
	for i, p := range projects {
		result[i] = ProjectFromRecord(p)
	}

	List(w, result, len(result))
}

// GetProject возвращает сохранённый проект по имени.
// GET /api/v1/projects/{name}
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	if h.projects == nil {
		Unavailable(w, "project store is not configured")
		return
	}

	name := r.PathValue("name")
	project, err := h.projects.Get(r.Context(), name)
	if HandleRepoError(w, h.logger, err, "project not found: "+name) {
		return
	}

	Success(w, ProjectFromRecord(*project))
}

// ListProjectRuns возвращает последние runs проекта.
// GET /api/v1/projects/{name}/runs?limit=...
func (h *Handler) ListProjectRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		Unavailable(w, "run history is not configured")
		return
	}

	limit := defaultRunsLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			BadRequest(w, "invalid limit")
			return
		}
		limit = n
	}

	runs, err := h.runs.ListRuns(r.Context(), r.PathValue("name"), limit)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunFromDomain(run)
	}

	List(w, result, len(result))
}

// ListFlowRuns возвращает flows одного run.
// GET /api/v1/runs/{id}/flows
func (h *Handler) ListFlowRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		Unavailable(w, "run history is not configured")
		return
	}

	runID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	flowRuns, err := h.runs.ListFlowRuns(r.Context(), runID)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	List(w, flowRuns, len(flowRuns))
}
