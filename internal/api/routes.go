package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Health и metrics без логирования: их опрашивают часто
	mux.Handle("GET /healthz", Recovery(h.logger)(http.HandlerFunc(h.Healthz)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	// Выполняющиеся проекты
	mux.Handle("GET /api/v1/status", chain(http.HandlerFunc(h.ListStatus)))
	mux.Handle("GET /api/v1/status/{project}", chain(http.HandlerFunc(h.GetStatus)))

	// Сохранённые проекты и история
	mux.Handle("GET /api/v1/projects", chain(http.HandlerFunc(h.ListProjects)))
	mux.Handle("GET /api/v1/projects/{name}", chain(http.HandlerFunc(h.GetProject)))
	mux.Handle("GET /api/v1/projects/{name}/runs", chain(http.HandlerFunc(h.ListProjectRuns)))
	mux.Handle("GET /api/v1/runs/{id}/flows", chain(http.HandlerFunc(h.ListFlowRuns)))
}

// NewMux создаёт ServeMux с зарегистрированными маршрутами.
func (h *Handler) NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}
