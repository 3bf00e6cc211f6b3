package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLogLevel(t *testing.T) {
	tests := []struct {
		env  string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"info+2", slog.LevelInfo + 2},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.env)
			if got := LogLevel(); got != tt.want {
				t.Errorf("LogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: slog.LevelWarn, Format: "text", Output: &buf})

	logger.Info("hidden")
	logger.Warn("shown", "flow", "ingest")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record should be filtered: %q", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "flow=ingest") {
		t.Errorf("expected text record, got %q", out)
	}

	buf.Reset()
	NewLogger(LogConfig{Output: &buf}).Info("json")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected json record by default, got %q", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) != slog.Default() {
		t.Error("expected default logger for empty context")
	}
	if _, ok := LoggerFrom(context.Background()); ok {
		t.Error("empty context should have no logger")
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := WithLogger(context.Background(), logger)

	WithFlow(WithProject(FromContext(ctx), "warehouse"), "ingest").Info("hello")

	out := buf.String()
	if !strings.Contains(out, "project=warehouse") || !strings.Contains(out, "flow=ingest") {
		t.Errorf("expected project and flow attributes, got %q", out)
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.EventEmitted("end")
	m.EventEmitted("end")
	m.FlowSubmitted()
	m.FlowSubmitted()
	m.FlowFinished("completed")
	m.SetWaiting(4)
	m.ProjectRunFinished("succeeded")
	m.PlatformRequest("GET", 200)
	m.PlatformRequest("GET", 0)

	if got := testutil.ToFloat64(m.eventsEmitted.WithLabelValues("end")); got != 2 {
		t.Errorf("events emitted = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.flowsRunning); got != 1 {
		t.Errorf("flows running = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.flowsWaiting); got != 4 {
		t.Errorf("flows waiting = %v, want 4", got)
	}
	if got := testutil.ToFloat64(m.platformRequests.WithLabelValues("GET", "error")); got != 1 {
		t.Errorf("transport errors = %v, want 1", got)
	}
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics

	// Не должно паниковать
	m.EventEmitted("end")
	m.FlowSubmitted()
	m.FlowFinished("failed")
	m.SetWaiting(1)
	m.ProjectRunFinished("failed")
	m.PlatformRequest("POST", 500)
}
