package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — Prometheus метрики flowctl.
//
// Все методы безопасны для nil: компоненты, собранные без метрик,
// просто ничего не пишут.
type Metrics struct {
	eventsEmitted    *prometheus.CounterVec
	flowsSubmitted   prometheus.Counter
	flowResults      *prometheus.CounterVec
	flowsWaiting     prometheus.Gauge
	flowsRunning     prometheus.Gauge
	projectRuns      *prometheus.CounterVec
	platformRequests *prometheus.CounterVec
}

// NewMetrics регистрирует метрики в reg.
// Nil reg означает prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		eventsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowctl_events_emitted_total",
			Help: "Lifecycle events recorded by the scheduler, by event kind",
		}, []string{"event"}),
		flowsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "flowctl_flows_submitted_total",
			Help: "Flows submitted to the worker pool",
		}),
		flowResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowctl_flow_results_total",
			Help: "Finished flow executions, by result",
		}, []string{"result"}),
		flowsWaiting: factory.NewGauge(prometheus.GaugeOpts{
			Name: "flowctl_flows_waiting",
			Help: "Flows waiting for dependency events",
		}),
		flowsRunning: factory.NewGauge(prometheus.GaugeOpts{
			Name: "flowctl_flows_running",
			Help: "Flows currently executed by workers",
		}),
		projectRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowctl_project_runs_total",
			Help: "Finished project runs, by result",
		}, []string{"result"}),
		platformRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowctl_platform_requests_total",
			Help: "Requests to the replication platform API",
		}, []string{"method", "code"}),
	}
}

// EventEmitted учитывает записанное событие по его виду ("initial_sync.end").
func (m *Metrics) EventEmitted(kind string) {
	if m == nil {
		return
	}
	m.eventsEmitted.WithLabelValues(kind).Inc()
}

// FlowSubmitted учитывает flow, отправленный в пул.
func (m *Metrics) FlowSubmitted() {
	if m == nil {
		return
	}
	m.flowsSubmitted.Inc()
	m.flowsRunning.Inc()
}

// FlowFinished учитывает завершение flow (result: completed, failed).
func (m *Metrics) FlowFinished(result string) {
	if m == nil {
		return
	}
	m.flowsRunning.Dec()
	m.flowResults.WithLabelValues(result).Inc()
}

// SetWaiting выставляет число ожидающих flows.
func (m *Metrics) SetWaiting(n int) {
	if m == nil {
		return
	}
	m.flowsWaiting.Set(float64(n))
}

// ProjectRunFinished учитывает завершение run проекта.
func (m *Metrics) ProjectRunFinished(result string) {
	if m == nil {
		return
	}
	m.projectRuns.WithLabelValues(result).Inc()
}

// PlatformRequest учитывает запрос к платформе.
// code == 0 означает транспортную ошибку.
func (m *Metrics) PlatformRequest(method string, code int) {
	if m == nil {
		return
	}
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	m.platformRequests.WithLabelValues(method, label).Inc()
}
