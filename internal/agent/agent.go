package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/stellarlinkco/agentbox/internal/bus"
	"github.com/stellarlinkco/agentbox/internal/memory"
	"github.com/stellarlinkco/agentbox/internal/model"
	"github.com/stellarlinkco/agentbox/internal/tool"
)

// StepRecord is one tool dispatch made while processing a task.
type StepRecord struct {
	Tool        string      `json:"tool"`
	Input       string      `json:"input"`
	Result      tool.Result `json:"result"`
	Observation string      `json:"observation"`
}

// TaskResult is the outcome of one Run call. Truncated marks a loop that hit
// the step ceiling before the model produced a final answer; Output then
// carries the best partial answer.
type TaskResult struct {
	Output    string       `json:"output"`
	Truncated bool         `json:"truncated"`
	Steps     []StepRecord `json:"steps,omitempty"`
}

// Options tune a single agent.
type Options struct {
	MaxSteps      int
	HistoryWindow int
	MemoryCap     int
}

// Agent runs the observe-act loop: ask the model, dispatch the tool it
// requests, feed the observation back, repeat until a final answer or the
// step ceiling. One Agent serves one logical identity; Run may be called
// concurrently, memory appends stay ordered.
type Agent struct {
	id            string
	name          string
	role          Role
	registry      *tool.Registry
	client        model.Client
	mem           *memory.Store
	events        *bus.Bus
	maxSteps      int
	historyWindow int
}

func New(id, name string, role Role, registry *tool.Registry, client model.Client, events *bus.Bus, opts Options) *Agent {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = 5
	}
	if opts.HistoryWindow < 0 {
		opts.HistoryWindow = 0
	}
	return &Agent{
		id:            id,
		name:          name,
		role:          role,
		registry:      registry,
		client:        client,
		mem:           memory.NewStore(opts.MemoryCap),
		events:        events,
		maxSteps:      opts.MaxSteps,
		historyWindow: opts.HistoryWindow,
	}
}

func (a *Agent) ID() string            { return a.id }
func (a *Agent) Name() string          { return a.name }
func (a *Agent) Role() Role            { return a.role }
func (a *Agent) Memory() *memory.Store { return a.mem }

// Run processes one task. extra is optional upstream context, e.g. a prior
// workflow step's output. A model fault aborts the task with an error; a
// tool fault becomes an observation the model can react to. Cancelling ctx
// stops further thinking and returns the partial result, truncation flagged.
func (a *Agent) Run(ctx context.Context, task, extra string) (TaskResult, error) {
	a.publish(bus.Event{Type: bus.EventTaskStart, Agent: a.id, Detail: task})

	prompt := a.buildPrompt(task, extra)
	history := a.mem.Recent(a.historyWindow)

	var steps []StepRecord
	var lastResponse string

	for step := 0; step < a.maxSteps; step++ {
		// Caller cancellation stops further thinking; the work done so
		// far is still the caller's to keep.
		if ctx.Err() != nil {
			return a.concludePartial(task, lastResponse, steps, "cancelled"), nil
		}

		response, err := a.client.Complete(ctx, prompt, history)
		if err != nil {
			if ctx.Err() != nil {
				return a.concludePartial(task, lastResponse, steps, "cancelled"), nil
			}
			a.publish(bus.Event{Type: bus.EventTaskDone, Agent: a.id, Detail: "model fault"})
			return TaskResult{}, fmt.Errorf("agent %s: %w", a.id, err)
		}
		lastResponse = response

		call, ok := ParseToolCall(response)
		if !ok {
			answer := strings.TrimSpace(response)
			a.mem.Record(task, answer)
			a.publish(bus.Event{Type: bus.EventTaskDone, Agent: a.id})
			return TaskResult{Output: answer, Steps: steps}, nil
		}

		a.publish(bus.Event{Type: bus.EventToolDispatch, Agent: a.id, Tool: call.Name, Detail: call.Input})
		result := a.dispatch(ctx, call)
		observation := renderObservation(call.Name, result)
		a.publish(bus.Event{Type: bus.EventToolResult, Agent: a.id, Tool: call.Name, Detail: observation})

		steps = append(steps, StepRecord{
			Tool:        call.Name,
			Input:       call.Input,
			Result:      result,
			Observation: observation,
		})

		// History is pinned at loop start; intermediate turns travel in
		// the growing prompt instead.
		prompt = prompt + "\n\nYou requested TOOL: " + call.Name +
			"\nObservation: " + observation +
			"\n\nContinue. Use another tool if needed, or give your final answer."
	}

	// Step ceiling reached: surface the best partial answer, flagged.
	log.Printf("[agent] %s hit step limit (%d) on task", a.id, a.maxSteps)
	return a.concludePartial(task, lastResponse, steps, "truncated"), nil
}

// concludePartial ends a loop that could not reach a final answer, keeping
// the completed dispatches and the last model text as the best partial.
func (a *Agent) concludePartial(task, lastResponse string, steps []StepRecord, reason string) TaskResult {
	partial := strings.TrimSpace(lastResponse)
	a.mem.Record(task, partial)
	a.publish(bus.Event{Type: bus.EventTaskDone, Agent: a.id, Detail: reason})
	return TaskResult{Output: partial, Truncated: true, Steps: steps}
}

// dispatch runs one tool call through the registry. An unknown tool name is
// a tool-level fault here, not a loop abort: the model sees the failure and
// can correct itself.
func (a *Agent) dispatch(ctx context.Context, call ToolCall) tool.Result {
	result, err := a.registry.Invoke(ctx, call.Name, call.Input)
	if err != nil {
		return tool.Fail(err.Error())
	}
	return result
}

func (a *Agent) buildPrompt(task, extra string) string {
	var sb strings.Builder
	sb.WriteString(a.role.BasePrompt())
	sb.WriteString("\n\nYou can use these tools:\n")
	for _, info := range a.registry.List() {
		sb.WriteString("- ")
		sb.WriteString(info.Name)
		sb.WriteString(": ")
		sb.WriteString(info.Description)
		sb.WriteString("\n")
	}
	sb.WriteString("\nTo use a tool, respond with exactly:\nTOOL: <tool_name>\nINPUT: <tool_input>\n")
	sb.WriteString("Otherwise respond with your final answer directly.\n")
	if extra != "" {
		sb.WriteString("\nContext from previous work:\n")
		sb.WriteString(extra)
		sb.WriteString("\n")
	}
	sb.WriteString("\nTask: ")
	sb.WriteString(task)
	return sb.String()
}

func (a *Agent) publish(ev bus.Event) {
	if a.events != nil {
		a.events.Publish(ev)
	}
}

// renderObservation flattens a tool result into the text the model reads.
func renderObservation(name string, result tool.Result) string {
	if !result.Success {
		return fmt.Sprintf("tool %s failed: %s", name, result.Error)
	}
	data, err := json.Marshal(result.Payload)
	if err != nil {
		return fmt.Sprintf("tool %s succeeded", name)
	}
	return string(data)
}
