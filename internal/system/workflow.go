package system

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/stellarlinkco/agentbox/internal/agent"
	"github.com/stellarlinkco/agentbox/internal/bus"
)

// StepDef is one workflow step: which agent runs, what it is asked, and
// whether the previous step's output is handed over as context.
type StepDef struct {
	Agent      string `yaml:"agent" json:"agent"`
	Prompt     string `yaml:"prompt" json:"prompt"`
	UseContext bool   `yaml:"use_context" json:"use_context"`
}

// Workflow is an ordered multi-agent pipeline. The {{topic}} placeholder in
// step prompts is replaced with the caller's topic at run time.
type Workflow struct {
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description" json:"description"`
	Steps       []StepDef `yaml:"steps" json:"steps"`
}

// StepOutcome pairs a completed step with the agent's result.
type StepOutcome struct {
	Agent  string           `json:"agent"`
	Prompt string           `json:"prompt"`
	Result agent.TaskResult `json:"result"`
}

// WorkflowResult carries the ordered step outcomes. On failure it holds the
// outcomes completed before the failing step.
type WorkflowResult struct {
	Workflow string        `json:"workflow"`
	Topic    string        `json:"topic"`
	Steps    []StepOutcome `json:"steps"`
	Output   string        `json:"output"`
}

// RunWorkflow executes a named workflow sequentially. Step k+1 starts only
// after step k finished; a failing step aborts the run, and the returned
// result still carries every outcome produced before the abort.
func (s *System) RunWorkflow(ctx context.Context, name, topic string) (WorkflowResult, error) {
	wf, ok := s.workflows[name]
	result := WorkflowResult{Workflow: name, Topic: topic}
	if !ok {
		return result, fmt.Errorf("unknown workflow %q", name)
	}

	carried := ""
	for i, step := range wf.Steps {
		a, err := s.Agent(step.Agent)
		if err != nil {
			return result, fmt.Errorf("workflow %s step %d: %w", name, i+1, err)
		}

		prompt := strings.ReplaceAll(step.Prompt, "{{topic}}", topic)
		s.events.Publish(bus.Event{
			Type:     bus.EventWorkflowStep,
			Workflow: name,
			Agent:    step.Agent,
			Detail:   fmt.Sprintf("step %d/%d", i+1, len(wf.Steps)),
		})

		extra := ""
		if step.UseContext {
			extra = carried
		}
		taskResult, err := a.Run(ctx, prompt, extra)
		if err != nil {
			log.Printf("[system] workflow %s aborted at step %d: %v", name, i+1, err)
			return result, fmt.Errorf("workflow %s step %d (%s): %w", name, i+1, step.Agent, err)
		}

		result.Steps = append(result.Steps, StepOutcome{
			Agent:  step.Agent,
			Prompt: prompt,
			Result: taskResult,
		})
		carried = taskResult.Output
		result.Output = taskResult.Output
	}
	return result, nil
}

// Workflows lists the registered workflows sorted by name.
func (s *System) Workflows() []Workflow {
	out := make([]Workflow, 0, len(s.workflows))
	for _, wf := range s.workflows {
		out = append(out, wf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *System) registerWorkflow(wf Workflow) {
	s.workflows[wf.Name] = wf
}

// builtinResearchAndWrite is the stock two-stage pipeline: the researcher
// gathers material, the writer turns it into an article.
func builtinResearchAndWrite() Workflow {
	return Workflow{
		Name:        "research-and-write",
		Description: "Research a topic, then write a short article about it",
		Steps: []StepDef{
			{
				Agent:  "researcher",
				Prompt: "Research the topic: {{topic}}. Gather key facts and findings.",
			},
			{
				Agent:      "writer",
				Prompt:     "Write a short, well structured article about {{topic}} based on the research provided.",
				UseContext: true,
			},
		},
	}
}
