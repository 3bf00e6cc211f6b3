package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/shaiso/flowctl/internal/domain"
	"github.com/shaiso/flowctl/internal/engine"
	"github.com/shaiso/flowctl/internal/orchestrator"
	"github.com/shaiso/flowctl/internal/platform"
)

const warehouseProject = `{
	"name": "warehouse",
	"parallelism": 2,
	"flows": [
		{"name": "ingest", "definition": {"nodes": []}},
		{"name": "transform", "depends_on": ["ingest.initial_sync.end"]},
		{"name": "archive", "depends_on": ["transform.end"]}
	]
}`

const cyclicProject = `{
	"name": "loop",
	"flows": [
		{"name": "a", "depends_on": ["b.end"]},
		{"name": "b", "depends_on": ["a.end"]}
	]
}`

// --- Fake platform ---

// fakePlatform — платформа, на которой batchStart сразу завершает задачу.
type fakePlatform struct {
	mu     sync.Mutex
	tasks  map[string]*platform.Task
	failed map[string]bool // имена задач, которые завершатся с error
	nextID int
}

func newFakePlatform(t *testing.T, failed ...string) (*fakePlatform, *httptest.Server) {
	t.Helper()

	fp := &fakePlatform{
		tasks:  make(map[string]*platform.Task),
		failed: make(map[string]bool),
	}
	for _, name := range failed {
		fp.failed[name] = true
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/Task", fp.create)
	mux.HandleFunc("GET /api/Task", fp.find)
	mux.HandleFunc("GET /api/Task/{id}", fp.get)
	mux.HandleFunc("PATCH /api/Task/{id}", fp.get)
	mux.HandleFunc("PUT /api/Task/batchStart", fp.start)
	mux.HandleFunc("PUT /api/Task/batchStop", fp.stop)
	mux.HandleFunc("DELETE /api/Task/batchDelete", fp.remove)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return fp, server
}

func writeOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"code": "ok", "data": data})
}

func writeNotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]any{"code": "Task.NotFound", "message": "task not found"})
}

func (fp *fakePlatform) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	fp.mu.Lock()
	defer fp.mu.Unlock()

	fp.nextID++
	task := &platform.Task{ID: "task-" + strconv.Itoa(fp.nextID), Name: req.Name, Status: domain.FlowStatusEdit}
	fp.tasks[task.ID] = task
	writeOK(w, task)
}

func (fp *fakePlatform) find(w http.ResponseWriter, r *http.Request) {
	var filter struct {
		Where struct {
			Name string `json:"name"`
		} `json:"where"`
	}
	json.Unmarshal([]byte(r.URL.Query().Get("filter")), &filter)

	fp.mu.Lock()
	defer fp.mu.Unlock()

	items := []*platform.Task{}
	for _, task := range fp.tasks {
		if task.Name == filter.Where.Name {
			items = append(items, task)
		}
	}
	writeOK(w, map[string]any{"items": items})
}

func (fp *fakePlatform) get(w http.ResponseWriter, r *http.Request) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	task, ok := fp.tasks[r.PathValue("id")]
	if !ok {
		writeNotFound(w)
		return
	}
	writeOK(w, task)
}

func (fp *fakePlatform) start(w http.ResponseWriter, r *http.Request) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	task, ok := fp.tasks[r.URL.Query().Get("taskIds")]
	if !ok {
		writeNotFound(w)
		return
	}

	if fp.failed[task.Name] {
		task.Status = domain.FlowStatusError
	} else {
		task.Status = domain.FlowStatusComplete
		task.Attrs.Milestone = &domain.Milestones{
			Snapshot: &domain.MilestoneState{Status: domain.MilestoneFinish},
		}
	}
	writeOK(w, nil)
}

func (fp *fakePlatform) stop(w http.ResponseWriter, r *http.Request) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	task, ok := fp.tasks[r.URL.Query().Get("taskIds")]
	if !ok {
		writeNotFound(w)
		return
	}
	task.Status = domain.FlowStatusStop
	writeOK(w, nil)
}

func (fp *fakePlatform) remove(w http.ResponseWriter, r *http.Request) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	id := r.URL.Query().Get("taskIds")
	if _, ok := fp.tasks[id]; !ok {
		writeNotFound(w)
		return
	}
	delete(fp.tasks, id)
	writeOK(w, nil)
}

func (fp *fakePlatform) statusOf(name string) (domain.FlowStatus, bool) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	for _, task := range fp.tasks {
		if task.Name == name {
			return task.Status, true
		}
	}
	return "", false
}

// --- Helpers ---

func writeProject(t *testing.T, doc string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "project.json")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write project: %v", err)
	}
	return path
}

// run выполняет команду flowctl и возвращает stdout и stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	root, closeSession := NewRootCmd("test", logger)
	defer closeSession()

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

// --- Tests ---

func TestProjectValidate(t *testing.T) {
	path := writeProject(t, warehouseProject)

	stdout, stderr, err := run(t, "project", "validate", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"ingest", "transform", "ingest.initial_sync.end", "archive"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output should mention %s:\n%s", want, stdout)
		}
	}
	if !strings.Contains(stderr, "Project warehouse is valid: 3 flows") {
		t.Errorf("unexpected message: %s", stderr)
	}
}

func TestProjectValidate_JSON(t *testing.T) {
	path := writeProject(t, warehouseProject)

	stdout, _, err := run(t, "--json", "project", "validate", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spec, err := engine.ParseProjectSpec([]byte(stdout))
	if err != nil {
		t.Fatalf("output is not a project document: %v\n%s", err, stdout)
	}
	if len(spec.Flows) != 3 || spec.Flows[2].DependsOn[0] != "transform.end" {
		t.Errorf("unexpected spec: %+v", spec)
	}
}

func TestProjectValidate_Cycle(t *testing.T) {
	path := writeProject(t, cyclicProject)

	_, _, err := run(t, "project", "validate", path)
	if !errors.Is(err, engine.ErrCyclicDependency) {
		t.Errorf("expected ErrCyclicDependency, got %v", err)
	}
}

func TestProjectValidate_MissingFile(t *testing.T) {
	_, _, err := run(t, "project", "validate", filepath.Join(t.TempDir(), "none.json"))
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestProjectStart_NoServer(t *testing.T) {
	t.Setenv("FLOWCTL_SERVER", "")
	path := writeProject(t, warehouseProject)

	_, _, err := run(t, "project", "start", path)
	if !errors.Is(err, ErrNoServer) {
		t.Errorf("expected ErrNoServer, got %v", err)
	}
}

func TestProjectStart_InvalidCron(t *testing.T) {
	path := writeProject(t, warehouseProject)

	_, _, err := run(t, "project", "start", path, "--server", "http://localhost:1", "--cron", "every day")
	if err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

func TestProjectStart(t *testing.T) {
	fp, server := newFakePlatform(t)
	path := writeProject(t, warehouseProject)

	stdout, stderr, err := run(t, "project", "start", path,
		"--server", server.URL,
		"--poll-interval", "1ms",
	)
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, stderr)
	}

	for _, name := range []string{"ingest", "transform", "archive"} {
		status, ok := fp.statusOf(name)
		if !ok || status != domain.FlowStatusComplete {
			t.Errorf("flow %s: expected complete, got %q", name, status)
		}
	}

	if strings.Count(stdout, "completed") != 3 {
		t.Errorf("expected 3 completed flows:\n%s", stdout)
	}
	if !strings.Contains(stderr, "Project warehouse completed") {
		t.Errorf("unexpected message: %s", stderr)
	}
}

func TestProjectStart_FlowFailed(t *testing.T) {
	fp, server := newFakePlatform(t, "left")
	path := writeProject(t, `{
		"name": "pair",
		"flows": [{"name": "left"}, {"name": "right"}]
	}`)

	stdout, _, err := run(t, "project", "start", path,
		"--server", server.URL,
		"--poll-interval", "1ms",
	)
	if !errors.Is(err, orchestrator.ErrFlowsFailed) {
		t.Fatalf("expected ErrFlowsFailed, got %v", err)
	}

	if status, _ := fp.statusOf("right"); status != domain.FlowStatusComplete {
		t.Errorf("sibling flow should complete, got %q", status)
	}
	if !strings.Contains(stdout, "failed") || !strings.Contains(stdout, "completed") {
		t.Errorf("result table should show failed and completed flows:\n%s", stdout)
	}
}

func TestProjectStart_Stalled(t *testing.T) {
	fp, server := newFakePlatform(t, "ingest")
	path := writeProject(t, warehouseProject)

	stdout, _, err := run(t, "project", "start", path,
		"--server", server.URL,
		"--poll-interval", "1ms",
		"--stall-timeout", "20ms",
	)
	if !errors.Is(err, orchestrator.ErrProjectStalled) {
		t.Fatalf("expected ErrProjectStalled, got %v", err)
	}

	if _, ok := fp.statusOf("transform"); ok {
		t.Error("dependent flow should not be saved")
	}
	if !strings.Contains(stdout, "not started") || !strings.Contains(stdout, "ingest.initial_sync.end") {
		t.Errorf("result table should show waiting flows with missing events:\n%s", stdout)
	}
}

func TestProjectStopAndDelete(t *testing.T) {
	fp, server := newFakePlatform(t)
	path := writeProject(t, warehouseProject)

	if _, _, err := run(t, "project", "start", path, "--server", server.URL, "--poll-interval", "1ms"); err != nil {
		t.Fatalf("start: %v", err)
	}

	_, stderr, err := run(t, "project", "stop", path, "--server", server.URL)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !strings.Contains(stderr, "3 flows stopped") {
		t.Errorf("unexpected message: %s", stderr)
	}
	if status, _ := fp.statusOf("archive"); status != domain.FlowStatusStop {
		t.Errorf("expected archive stopped, got %q", status)
	}

	if _, _, err := run(t, "project", "delete", path, "--server", server.URL); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := fp.statusOf("ingest"); ok {
		t.Error("ingest should be deleted")
	}

	// Второй delete: flows уже нет, ошибка по каждому
	_, _, err = run(t, "project", "delete", path, "--server", server.URL)
	if !errors.Is(err, platform.ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestFlowStatus(t *testing.T) {
	_, server := newFakePlatform(t)
	path := writeProject(t, warehouseProject)

	if _, _, err := run(t, "project", "start", path, "--server", server.URL, "--poll-interval", "1ms"); err != nil {
		t.Fatalf("start: %v", err)
	}

	stdout, _, err := run(t, "flow", "status", "ingest", "--server", server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"FLOW", "complete", "FINISH", "ingest.initial_sync.end, ingest.end"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output should contain %q:\n%s", want, stdout)
		}
	}

	stdout, _, err = run(t, "--json", "flow", "status", "ingest", "--server", server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var view flowStatusView
	if err := json.Unmarshal([]byte(stdout), &view); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if view.ID == "" || view.Status != domain.FlowStatusComplete || len(view.Events) != 2 {
		t.Errorf("unexpected view: %+v", view)
	}
}

func TestFlowStatus_NotFound(t *testing.T) {
	_, server := newFakePlatform(t)

	_, _, err := run(t, "flow", "status", "ghost", "--server", server.URL)
	if !errors.Is(err, platform.ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestFlowStop(t *testing.T) {
	fp, server := newFakePlatform(t)
	path := writeProject(t, warehouseProject)

	if _, _, err := run(t, "project", "start", path, "--server", server.URL, "--poll-interval", "1ms"); err != nil {
		t.Fatalf("start: %v", err)
	}

	_, stderr, err := run(t, "flow", "stop", "transform", "--server", server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stderr, "Flow transform stopped") {
		t.Errorf("unexpected message: %s", stderr)
	}
	if status, _ := fp.statusOf("transform"); status != domain.FlowStatusStop {
		t.Errorf("expected transform stopped, got %q", status)
	}
}

func TestOutputTable(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutputTo(false, &buf, io.Discard)

	out.Print([]string{"FLOW", "STATUS"}, [][]string{{"ingest", "complete"}}, nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header, separator and row, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[1], "----") {
		t.Errorf("unexpected separator: %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "ingest") {
		t.Errorf("unexpected row: %q", lines[2])
	}
}

func TestFlowResult(t *testing.T) {
	snapshot := orchestrator.Snapshot{
		Stats: orchestrator.Stats{
			Completed: []string{"a"},
			Failed:    []string{"b"},
			Waiting:   map[string][]string{"c": {"b.end"}},
		},
	}

	tests := []struct {
		flow    string
		want    string
		missing int
	}{
		{flow: "a", want: "completed"},
		{flow: "b", want: "failed"},
		{flow: "c", want: "not started", missing: 1},
		{flow: "d", want: "not started"},
	}

	for _, tt := range tests {
		t.Run(tt.flow, func(t *testing.T) {
			got, missing := flowResult(snapshot, tt.flow)
			if got != tt.want || len(missing) != tt.missing {
				t.Errorf("got %s %v, want %s with %d missing", got, missing, tt.want, tt.missing)
			}
		})
	}
}

func TestDash(t *testing.T) {
	if dash("") != "-" || dash("x") != "x" {
		t.Error("dash should replace only empty strings")
	}
}
