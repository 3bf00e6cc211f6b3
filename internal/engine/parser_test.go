package engine

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const warehouseSpec = `{
	"name": "warehouse",
	"path": "/etl",
	"parallelism": 2,
	"flows": [
		{"name": "ingest", "id": "64f0a1", "definition": {"nodes": []}},
		{"name": "transform", "depends_on": ["ingest.initial_sync.end"]},
		{"name": "archive", "depends_on": ["transform.end"]}
	]
}`

func TestParseProjectSpec(t *testing.T) {
	spec, err := ParseProjectSpec([]byte(warehouseSpec))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if spec.Name != "warehouse" || spec.Path != "/etl" || spec.Parallelism != 2 {
		t.Errorf("unexpected header: %+v", spec)
	}
	if len(spec.Flows) != 3 {
		t.Fatalf("expected 3 flows, got %d", len(spec.Flows))
	}
	if spec.Flows[0].ID != "64f0a1" {
		t.Errorf("expected remote id to be parsed, got %q", spec.Flows[0].ID)
	}
	if string(spec.Flows[0].Definition) != `{"nodes": []}` {
		t.Errorf("definition should be kept verbatim, got %s", spec.Flows[0].Definition)
	}
}

func TestParseProjectSpec_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: "flows:"},
		{name: "no name", data: `{"flows": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProjectSpec([]byte(tt.data))
			if !errors.Is(err, ErrInvalidSpec) {
				t.Errorf("expected ErrInvalidSpec, got %v", err)
			}
		})
	}
}

func TestBuildProject(t *testing.T) {
	spec, err := ReadProjectSpec(strings.NewReader(warehouseSpec))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, err := BuildProject(spec, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.Len() != 3 {
		t.Errorf("expected 3 flows, got %d", p.Len())
	}
	if p.Parallelism != 2 {
		t.Errorf("expected parallelism 2, got %d", p.Parallelism)
	}
	if p.DagDegree("transform") != 1 || p.DagDegree("archive") != 1 {
		t.Error("dependencies should be registered")
	}
	if err := p.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}

	// Порядок объявления сохраняется
	names := []string{}
	for _, f := range p.Flows() {
		names = append(names, f.Name)
	}
	if strings.Join(names, ",") != "ingest,transform,archive" {
		t.Errorf("unexpected flow order: %v", names)
	}
}

func TestBuildProject_RejectsBadFlow(t *testing.T) {
	spec, err := ParseProjectSpec([]byte(`{
		"name": "bad",
		"flows": [
			{"name": "a"},
			{"name": "b", "depends_on": ["a.b.c.d"]}
		]
	}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := BuildProject(spec, nil); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("expected ErrInvalidDescriptor, got %v", err)
	}
}

func TestLoadProjectSpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.json")
	if err := os.WriteFile(path, []byte(warehouseSpec), 0o600); err != nil {
		t.Fatalf("write spec: %v", err)
	}

	spec, err := LoadProjectSpec(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.Name != "warehouse" {
		t.Errorf("expected warehouse, got %s", spec.Name)
	}

	if _, err := LoadProjectSpec(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestProject_ToSpec(t *testing.T) {
	spec, _ := ParseProjectSpec([]byte(warehouseSpec))
	p, err := BuildProject(spec, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := p.ToSpec()
	if out.Name != "warehouse" || len(out.Flows) != 3 {
		t.Fatalf("unexpected spec: %+v", out)
	}
	if len(out.Flows[2].DependsOn) != 1 || out.Flows[2].DependsOn[0] != "transform.end" {
		t.Errorf("unexpected depends_on: %v", out.Flows[2].DependsOn)
	}
}
