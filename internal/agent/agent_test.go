package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stellarlinkco/agentbox/internal/bus"
	"github.com/stellarlinkco/agentbox/internal/memory"
	"github.com/stellarlinkco/agentbox/internal/model"
	"github.com/stellarlinkco/agentbox/internal/tool"
)

// scriptedModel replays canned responses in order. A func entry lets a test
// react to the prompt it was given.
type scriptedModel struct {
	responses []any // string, error, or func(prompt string) string
	calls     int
	prompts   []string
}

func (m *scriptedModel) Complete(ctx context.Context, prompt string, history []memory.Entry) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.calls >= len(m.responses) {
		return "", fmt.Errorf("unexpected model call %d", m.calls)
	}
	r := m.responses[m.calls]
	m.calls++
	switch v := r.(type) {
	case string:
		return v, nil
	case error:
		return "", v
	case func(string) string:
		return v(prompt), nil
	default:
		return "", fmt.Errorf("bad script entry %T", r)
	}
}

func testRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	r := tool.NewRegistry()
	err := r.Register(tool.Func{
		ToolName: "calculator",
		Desc:     "does math",
		Fn: func(ctx context.Context, input string) (tool.Result, error) {
			if input == "1/0" {
				return tool.Fail("division by zero"), nil
			}
			return tool.Ok(map[string]any{"result": 4}), nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func newTestAgent(t *testing.T, client model.Client, opts Options) *Agent {
	t.Helper()
	return New("analyst", "Analyst", RoleAnalyst, testRegistry(t), client, nil, opts)
}

func TestAgent_DirectAnswer(t *testing.T) {
	m := &scriptedModel{responses: []any{"The answer is 42."}}
	a := newTestAgent(t, m, Options{})

	res, err := a.Run(context.Background(), "what is the answer", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Output != "The answer is 42." {
		t.Errorf("output = %q", res.Output)
	}
	if res.Truncated {
		t.Error("should not be truncated")
	}
	if len(res.Steps) != 0 {
		t.Errorf("steps = %d, want 0", len(res.Steps))
	}
	if a.Memory().Len() != 1 {
		t.Errorf("memory entries = %d, want 1", a.Memory().Len())
	}
}

func TestAgent_ToolRoundTrip(t *testing.T) {
	m := &scriptedModel{responses: []any{
		"TOOL: calculator\nINPUT: 2+2",
		"The result is 4.",
	}}
	a := newTestAgent(t, m, Options{})

	res, err := a.Run(context.Background(), "compute 2+2", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Output != "The result is 4." {
		t.Errorf("output = %q", res.Output)
	}
	if len(res.Steps) != 1 {
		t.Fatalf("steps = %d, want 1", len(res.Steps))
	}
	if res.Steps[0].Tool != "calculator" || res.Steps[0].Input != "2+2" {
		t.Errorf("step = %+v", res.Steps[0])
	}
	// The second prompt must carry the observation.
	if !strings.Contains(m.prompts[1], `"result":4`) {
		t.Errorf("observation missing from follow-up prompt:\n%s", m.prompts[1])
	}
}

func TestAgent_ToolFaultBecomesObservation(t *testing.T) {
	m := &scriptedModel{responses: []any{
		"TOOL: calculator\nINPUT: 1/0",
		"That cannot be computed.",
	}}
	a := newTestAgent(t, m, Options{})

	res, err := a.Run(context.Background(), "compute 1/0", "")
	if err != nil {
		t.Fatalf("tool fault must not abort the task: %v", err)
	}
	if res.Output != "That cannot be computed." {
		t.Errorf("output = %q", res.Output)
	}
	if res.Steps[0].Result.Success {
		t.Error("step result should be a failure")
	}
	if !strings.Contains(m.prompts[1], "division by zero") {
		t.Errorf("failure observation missing from follow-up prompt")
	}
}

func TestAgent_UnknownToolBecomesObservation(t *testing.T) {
	m := &scriptedModel{responses: []any{
		"TOOL: telepathy\nINPUT: read my mind",
		"I used the wrong tool name.",
	}}
	a := newTestAgent(t, m, Options{})

	res, err := a.Run(context.Background(), "task", "")
	if err != nil {
		t.Fatalf("unknown tool must not abort the task: %v", err)
	}
	if !strings.Contains(m.prompts[1], "tool not found") {
		t.Errorf("not-found observation missing:\n%s", m.prompts[1])
	}
	if res.Output == "" {
		t.Error("expected a final answer")
	}
}

func TestAgent_ModelFaultIsFatal(t *testing.T) {
	m := &scriptedModel{responses: []any{
		fmt.Errorf("%w: connection refused", model.ErrModelUnavailable),
	}}
	a := newTestAgent(t, m, Options{})

	_, err := a.Run(context.Background(), "task", "")
	if !errors.Is(err, model.ErrModelUnavailable) {
		t.Errorf("err = %v, want ErrModelUnavailable", err)
	}
	if a.Memory().Len() != 0 {
		t.Error("failed task must not be recorded")
	}
}

func TestAgent_StepCeilingTruncates(t *testing.T) {
	m := &scriptedModel{responses: []any{
		"TOOL: calculator\nINPUT: 1+1",
		"TOOL: calculator\nINPUT: 2+2",
		"TOOL: calculator\nINPUT: 3+3",
	}}
	a := newTestAgent(t, m, Options{MaxSteps: 3})

	res, err := a.Run(context.Background(), "keep computing", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Truncated {
		t.Error("expected truncation flag")
	}
	if len(res.Steps) != 3 {
		t.Errorf("steps = %d, want 3", len(res.Steps))
	}
	if res.Output == "" {
		t.Error("truncated result should carry the best partial answer")
	}
	if m.calls != 3 {
		t.Errorf("model calls = %d, want 3", m.calls)
	}
}

type modelFunc func(ctx context.Context, prompt string, history []memory.Entry) (string, error)

func (f modelFunc) Complete(ctx context.Context, prompt string, history []memory.Entry) (string, error) {
	return f(ctx, prompt, history)
}

func TestAgent_CancellationKeepsPartialResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First call requests a tool; the second observes the cancel the way a
	// real client would and fails with the context error.
	calls := 0
	m := modelFunc(func(c context.Context, prompt string, history []memory.Entry) (string, error) {
		calls++
		if calls == 1 {
			return "TOOL: calculator\nINPUT: 2+2", nil
		}
		cancel()
		return "", fmt.Errorf("%w: %v", model.ErrModelUnavailable, c.Err())
	})
	a := newTestAgent(t, m, Options{})

	res, err := a.Run(ctx, "compute 2+2", "")
	if err != nil {
		t.Fatalf("cancellation must not surface as a model fault: %v", err)
	}
	if !res.Truncated {
		t.Error("cancelled run should be flagged truncated")
	}
	if len(res.Steps) != 1 {
		t.Fatalf("steps = %d, want the completed dispatch kept", len(res.Steps))
	}
	if res.Steps[0].Tool != "calculator" {
		t.Errorf("step = %+v", res.Steps[0])
	}
	if res.Output == "" {
		t.Error("best partial answer should be returned")
	}
}

func TestAgent_CancelledBeforeFirstThought(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := &scriptedModel{responses: []any{"never reached"}}
	a := newTestAgent(t, m, Options{})

	res, err := a.Run(ctx, "task", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Truncated {
		t.Error("cancelled run should be flagged truncated")
	}
	if m.calls != 0 {
		t.Errorf("model calls = %d, want 0 after cancellation", m.calls)
	}
}

func TestAgent_ContextFlowsIntoPrompt(t *testing.T) {
	m := &scriptedModel{responses: []any{"done"}}
	a := newTestAgent(t, m, Options{})

	if _, err := a.Run(context.Background(), "summarize", "research notes here"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(m.prompts[0], "research notes here") {
		t.Errorf("upstream context missing from prompt:\n%s", m.prompts[0])
	}
	if !strings.Contains(m.prompts[0], "calculator: does math") {
		t.Errorf("tool listing missing from prompt")
	}
}

func TestAgent_MemoryWindowReachesModel(t *testing.T) {
	m := &scriptedModel{responses: []any{"first", "second"}}
	a := newTestAgent(t, m, Options{HistoryWindow: 5})

	if _, err := a.Run(context.Background(), "task one", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Run(context.Background(), "task two", ""); err != nil {
		t.Fatal(err)
	}
	if a.Memory().Len() != 2 {
		t.Fatalf("memory entries = %d, want 2", a.Memory().Len())
	}
}

func TestAgent_PublishesEvents(t *testing.T) {
	events := bus.NewBus(16)
	ch, cancel := events.Subscribe()
	defer cancel()

	m := &scriptedModel{responses: []any{
		"TOOL: calculator\nINPUT: 2+2",
		"done",
	}}
	a := New("analyst", "Analyst", RoleAnalyst, testRegistry(t), m, events, Options{})

	if _, err := a.Run(context.Background(), "task", ""); err != nil {
		t.Fatal(err)
	}

	types := []string{}
	for len(ch) > 0 {
		types = append(types, (<-ch).Type)
	}
	want := []string{bus.EventTaskStart, bus.EventToolDispatch, bus.EventToolResult, bus.EventTaskDone}
	if len(types) != len(want) {
		t.Fatalf("event types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, types[i], want[i])
		}
	}
}
