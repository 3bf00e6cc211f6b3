package worker

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/flowctl/internal/domain"
)

// poll — один ответ платформы на опрос статуса.
type poll struct {
	state *domain.FlowState
	err   error
}

// scriptedClient отдаёт заранее заданную последовательность статусов.
// После конца сценария повторяет последний ответ.
type scriptedClient struct {
	mu       sync.Mutex
	saveErr  error
	startErr error
	polls    []poll
	calls    int
	saved    bool
	started  bool
}

func (c *scriptedClient) Save(_ context.Context, flow *domain.Flow) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.saveErr != nil {
		return c.saveErr
	}
	c.saved = true
	flow.ID = "remote-" + flow.Name
	return nil
}

func (c *scriptedClient) Start(_ context.Context, _ *domain.Flow) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startErr != nil {
		return c.startErr
	}
	c.started = true
	return nil
}

func (c *scriptedClient) Status(_ context.Context, _ *domain.Flow) (*domain.FlowState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.calls
	if i >= len(c.polls) {
		i = len(c.polls) - 1
	}
	c.calls++
	return c.polls[i].state, c.polls[i].err
}

// recorder — EventSink, запоминающий события по порядку.
type recorder struct {
	mu     sync.Mutex
	events []domain.Event
	seen   map[domain.Event]bool
}

func (r *recorder) Emit(event domain.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen == nil {
		r.seen = make(map[domain.Event]bool)
	}
	if r.seen[event] {
		return false
	}
	r.seen[event] = true
	r.events = append(r.events, event)
	return true
}

func st(status domain.FlowStatus, snapshot, cdc domain.MilestoneStatus) poll {
	s := &domain.FlowState{Status: status, Milestone: &domain.Milestones{}}
	if snapshot != "" {
		s.Milestone.Snapshot = &domain.MilestoneState{Status: snapshot}
	}
	if cdc != "" {
		s.Milestone.CDC = &domain.MilestoneState{Status: cdc}
	}
	return poll{state: s}
}

func newTestExecutor(client FlowClient) *FlowExecutor {
	return New(Config{
		Client:            client,
		PollInterval:      time.Millisecond,
		MaxMalformedPolls: 3,
		MaxEditPolls:      3,
	})
}

func TestExecute_Success(t *testing.T) {
	client := &scriptedClient{polls: []poll{
		st(domain.FlowStatusScheduling, "", ""),
		st(domain.FlowStatusRunning, domain.MilestoneRunning, ""),
		st(domain.FlowStatusRunning, domain.MilestoneFinish, domain.MilestoneRunning),
		st(domain.FlowStatusRunning, domain.MilestoneFinish, domain.MilestoneFinish),
		st(domain.FlowStatusComplete, domain.MilestoneFinish, domain.MilestoneFinish),
	}}
	sink := &recorder{}

	result := newTestExecutor(client).Execute(context.Background(), &domain.Flow{Name: "ingest"}, sink)

	if !result.Succeeded() {
		t.Fatalf("expected success, got %v", result.Err)
	}
	if !client.saved || !client.started {
		t.Error("flow should be saved and started")
	}
	if result.Flow != "ingest" || result.Polls != 5 {
		t.Errorf("unexpected result: %+v", result)
	}

	want := []domain.Event{
		"ingest.start",
		"ingest.initial_sync.start",
		"ingest.initial_sync.end",
		"ingest.cdc.start",
		"ingest.cdc.end",
		"ingest.end",
	}
	if !reflect.DeepEqual(sink.events, want) {
		t.Errorf("events = %v, want %v", sink.events, want)
	}
}

func TestExecute_SaveAndStartFailure(t *testing.T) {
	boom := errors.New("connection refused")

	tests := []struct {
		name   string
		client *scriptedClient
		want   error
	}{
		{name: "save", client: &scriptedClient{saveErr: boom}, want: ErrSaveFailed},
		{name: "start", client: &scriptedClient{startErr: boom}, want: ErrStartFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recorder{}
			result := newTestExecutor(tt.client).Execute(context.Background(), &domain.Flow{Name: "a"}, sink)

			if !errors.Is(result.Err, tt.want) || !errors.Is(result.Err, boom) {
				t.Errorf("expected %v wrapping cause, got %v", tt.want, result.Err)
			}
			if result.Polls != 0 || len(sink.events) != 0 {
				t.Error("failed flow should not be polled")
			}
		})
	}
}

func TestExecute_MalformedLimit(t *testing.T) {
	bad := errors.New("malformed")
	client := &scriptedClient{polls: []poll{
		{err: bad},
		{err: bad},
		st(domain.FlowStatusRunning, "", ""), // сбрасывает счётчик
		{err: bad},
		{err: bad},
		{err: bad},
	}}

	result := newTestExecutor(client).Execute(context.Background(), &domain.Flow{Name: "a"}, &recorder{})

	if !errors.Is(result.Err, ErrMalformedLimit) || !errors.Is(result.Err, bad) {
		t.Fatalf("expected ErrMalformedLimit, got %v", result.Err)
	}
	if result.Polls != 6 {
		t.Errorf("counter should reset after good poll: expected 6 polls, got %d", result.Polls)
	}
}

func TestExecute_StuckInEdit(t *testing.T) {
	client := &scriptedClient{polls: []poll{
		st(domain.FlowStatusEdit, "", ""),
		st(domain.FlowStatusEdit, "", ""),
		st(domain.FlowStatusWaitStart, "", ""), // сбрасывает счётчик
		st(domain.FlowStatusEdit, "", ""),
	}}

	result := newTestExecutor(client).Execute(context.Background(), &domain.Flow{Name: "a"}, &recorder{})

	if !errors.Is(result.Err, ErrFlowStuck) {
		t.Fatalf("expected ErrFlowStuck, got %v", result.Err)
	}
	if result.Polls != 6 {
		t.Errorf("expected 6 polls, got %d", result.Polls)
	}
}

func TestExecute_TerminalFailure(t *testing.T) {
	for _, status := range []domain.FlowStatus{
		domain.FlowStatusError,
		domain.FlowStatusStop,
		domain.FlowStatusScheduleFailed,
	} {
		t.Run(string(status), func(t *testing.T) {
			client := &scriptedClient{polls: []poll{
				st(domain.FlowStatusRunning, domain.MilestoneFinish, ""),
				st(status, domain.MilestoneFinish, domain.MilestoneError),
			}}
			sink := &recorder{}

			result := newTestExecutor(client).Execute(context.Background(), &domain.Flow{Name: "a"}, sink)

			if !errors.Is(result.Err, ErrFlowFailed) {
				t.Fatalf("expected ErrFlowFailed, got %v", result.Err)
			}
			if result.LastStatus != status {
				t.Errorf("expected last status %s, got %s", status, result.LastStatus)
			}
			if sink.seen["a.end"] {
				t.Error("failed flow must not emit end event")
			}
			if !sink.seen["a.initial_sync.end"] {
				t.Error("events before failure should be emitted")
			}
		})
	}
}

func TestExecute_ContextCancelled(t *testing.T) {
	client := &scriptedClient{polls: []poll{st(domain.FlowStatusRunning, "", "")}}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result := newTestExecutor(client).Execute(ctx, &domain.Flow{Name: "a"}, &recorder{})

	if !errors.Is(result.Err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", result.Err)
	}
}

func TestNew_Defaults(t *testing.T) {
	e := New(Config{})

	if e.pollInterval != time.Second {
		t.Errorf("expected 1s poll interval, got %v", e.pollInterval)
	}
	if e.maxMalformedPolls != 10 || e.maxEditPolls != 10 {
		t.Errorf("expected limits 10/10, got %d/%d", e.maxMalformedPolls, e.maxEditPolls)
	}
}

func TestEventSinkFunc(t *testing.T) {
	var got domain.Event
	sink := EventSinkFunc(func(e domain.Event) bool {
		got = e
		return true
	})

	if !sink.Emit("a.end") || got != "a.end" {
		t.Errorf("unexpected event %q", got)
	}
}
