package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shaiso/flowctl/internal/domain"
	"github.com/shaiso/flowctl/internal/orchestrator"
	"github.com/shaiso/flowctl/internal/repo"
	"github.com/shaiso/flowctl/internal/telemetry"
)

// --- Fakes ---

type fakeStatus struct {
	snapshots []orchestrator.Snapshot
}

func (f *fakeStatus) Snapshots() []orchestrator.Snapshot {
	return f.snapshots
}

func (f *fakeStatus) Snapshot(project string) (orchestrator.Snapshot, bool) {
	for _, s := range f.snapshots {
		if s.Project == project {
			return s, true
		}
	}
	return orchestrator.Snapshot{}, false
}

type fakeProjects struct {
	records map[string]repo.ProjectRecord
}

func (f *fakeProjects) List(context.Context) ([]repo.ProjectRecord, error) {
	var out []repo.ProjectRecord
	for _, r := range f.records {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeProjects) Get(_ context.Context, name string) (*repo.ProjectRecord, error) {
	r, ok := f.records[name]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &r, nil
}

type fakeRuns struct {
	lastProject string
	lastLimit   int
	runs        []domain.ProjectRun
	flowRuns    []domain.FlowRun
}

func (f *fakeRuns) ListRuns(_ context.Context, project string, limit int) ([]domain.ProjectRun, error) {
	f.lastProject = project
	f.lastLimit = limit
	return f.runs, nil
}

func (f *fakeRuns) ListFlowRuns(_ context.Context, _ uuid.UUID) ([]domain.FlowRun, error) {
	return f.flowRuns, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	if cfg.Status == nil {
		cfg.Status = &fakeStatus{}
	}
	cfg.Logger = discardLogger()

	srv := httptest.NewServer(NewHandler(cfg).NewMux())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string, out any) int {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

// --- Tests ---

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, Config{Status: &fakeStatus{
		snapshots: []orchestrator.Snapshot{{Project: "warehouse"}},
	}})

	var body HealthResponse
	if code := get(t, srv.URL+"/healthz", &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body.Status != "ok" || body.ActiveProjects != 1 {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestStatus(t *testing.T) {
	status := &fakeStatus{snapshots: []orchestrator.Snapshot{{
		RunID:   uuid.New(),
		Project: "warehouse",
		Status:  domain.RunStatusRunning,
		Stats: orchestrator.Stats{
			Occurred: []string{"ingest.start"},
			Waiting:  map[string][]string{"transform": {"ingest.initial_sync.end"}},
			Queues:   []int{0, 1},
			Running:  1,
		},
	}}}
	srv := newTestServer(t, Config{Status: status})

	var list struct {
		Data  []orchestrator.Snapshot `json:"data"`
		Total int                     `json:"total"`
	}
	if code := get(t, srv.URL+"/api/v1/status", &list); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if list.Total != 1 || list.Data[0].Project != "warehouse" {
		t.Errorf("unexpected list: %+v", list)
	}

	var one struct {
		Data orchestrator.Snapshot `json:"data"`
	}
	if code := get(t, srv.URL+"/api/v1/status/warehouse", &one); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if one.Data.Waiting["transform"][0] != "ingest.initial_sync.end" {
		t.Errorf("unexpected snapshot: %+v", one.Data)
	}

	var errResp ErrorResponse
	if code := get(t, srv.URL+"/api/v1/status/unknown", &errResp); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
	if errResp.Error.Code != ErrCodeNotFound {
		t.Errorf("unexpected error code: %s", errResp.Error.Code)
	}
}

func TestProjects_NotConfigured(t *testing.T) {
	srv := newTestServer(t, Config{})

	for _, path := range []string{
		"/api/v1/projects",
		"/api/v1/projects/warehouse",
		"/api/v1/projects/warehouse/runs",
		"/api/v1/runs/" + uuid.NewString() + "/flows",
	} {
		if code := get(t, srv.URL+path, nil); code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", path, code)
		}
	}
}

func TestProjects(t *testing.T) {
	projects := &fakeProjects{records: map[string]repo.ProjectRecord{
		"warehouse": {Spec: domain.ProjectSpec{
			Name:        "warehouse",
			Parallelism: 2,
			Flows:       []domain.Flow{{Name: "ingest"}},
		}},
	}}
	srv := newTestServer(t, Config{Projects: projects})

	var one struct {
		Data ProjectResponse `json:"data"`
	}
	if code := get(t, srv.URL+"/api/v1/projects/warehouse", &one); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if one.Data.Name != "warehouse" || one.Data.Parallelism != 2 || len(one.Data.Flows) != 1 {
		t.Errorf("unexpected project: %+v", one.Data)
	}

	if code := get(t, srv.URL+"/api/v1/projects/missing", nil); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}

	var list ListResponse
	if code := get(t, srv.URL+"/api/v1/projects", &list); code != http.StatusOK || list.Total != 1 {
		t.Errorf("expected 1 project, got code=%d total=%d", code, list.Total)
	}
}

func TestProjectRuns(t *testing.T) {
	started := time.Now().Add(-time.Minute)
	finished := started.Add(30 * time.Second)
	runs := &fakeRuns{runs: []domain.ProjectRun{{
		ID:         uuid.New(),
		Project:    "warehouse",
		Status:     domain.RunStatusSucceeded,
		StartedAt:  started,
		FinishedAt: &finished,
	}}}
	srv := newTestServer(t, Config{Runs: runs})

	var list struct {
		Data []RunResponse `json:"data"`
	}
	if code := get(t, srv.URL+"/api/v1/projects/warehouse/runs?limit=5", &list); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if runs.lastProject != "warehouse" || runs.lastLimit != 5 {
		t.Errorf("unexpected query: project=%s limit=%d", runs.lastProject, runs.lastLimit)
	}
	if len(list.Data) != 1 || list.Data[0].DurationMs != 30000 {
		t.Errorf("unexpected runs: %+v", list.Data)
	}

	if code := get(t, srv.URL+"/api/v1/projects/warehouse/runs?limit=abc", nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", code)
	}
	if code := get(t, srv.URL+"/api/v1/runs/not-a-uuid/flows", nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad run id, got %d", code)
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	metrics.EventEmitted("initial_sync.end")

	srv := newTestServer(t, Config{Gatherer: reg})

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "flowctl_events_emitted_total") {
		t.Errorf("metrics output should contain flowctl_events_emitted_total:\n%s", body)
	}
}

func TestRecovery(t *testing.T) {
	handler := Chain(Recovery(discardLogger()), Logging(discardLogger()))(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestRecovery_HeadersSent(t *testing.T) {
	handler := Recovery(discardLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			panic("late")
		}),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusAccepted {
		t.Errorf("status already sent should be kept, got %d", rec.Code)
	}
}

func TestStatusRecorder(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder()}
	if rec.Status() != http.StatusOK {
		t.Errorf("expected implicit 200, got %d", rec.Status())
	}

	rec.WriteHeader(http.StatusTeapot)
	rec.WriteHeader(http.StatusOK)
	n, _ := rec.Write([]byte("tea"))

	if rec.Status() != http.StatusTeapot || rec.bytes != n {
		t.Errorf("got status %d, bytes %d", rec.Status(), rec.bytes)
	}
}

func TestLevelForStatus(t *testing.T) {
	tests := map[int]slog.Level{
		http.StatusOK:                 slog.LevelDebug,
		http.StatusNotFound:           slog.LevelWarn,
		http.StatusServiceUnavailable: slog.LevelError,
	}
	for status, want := range tests {
		if got := levelForStatus(status); got != want {
			t.Errorf("status %d: got %v, want %v", status, got, want)
		}
	}
}
