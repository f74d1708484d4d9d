package system

import (
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/stellarlinkco/agentbox/internal/agent"
	"github.com/stellarlinkco/agentbox/internal/bus"
	"github.com/stellarlinkco/agentbox/internal/config"
	"github.com/stellarlinkco/agentbox/internal/model"
	"github.com/stellarlinkco/agentbox/internal/sandbox"
	"github.com/stellarlinkco/agentbox/internal/tool"
	"github.com/stellarlinkco/agentbox/internal/tool/builtin"
)

// System wires the registry, the model client, the event bus and the agent
// pool together. One System serves one process.
type System struct {
	cfg       *config.Config
	registry  *tool.Registry
	events    *bus.Bus
	agents    map[string]*agent.Agent
	workflows map[string]Workflow
}

// New builds a fully wired system from configuration. The model client is
// injectable for tests; pass nil to use the configured Ollama endpoint.
func New(cfg *config.Config, client model.Client) (*System, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if client == nil {
		client = model.NewOllamaClient(cfg.Model.BaseURL, cfg.Model.Name,
			time.Duration(cfg.Model.TimeoutSeconds)*time.Second)
	}

	registry := tool.NewRegistry()
	if err := registerBuiltins(registry, cfg); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}

	events := bus.NewBus(config.DefaultBufSize)
	opts := agent.Options{
		MaxSteps:      cfg.Agents.MaxSteps,
		HistoryWindow: cfg.Agents.HistoryWindow,
		MemoryCap:     cfg.Agents.MemoryMaxEntries,
	}

	sys := &System{
		cfg:       cfg,
		registry:  registry,
		events:    events,
		agents:    make(map[string]*agent.Agent),
		workflows: make(map[string]Workflow),
	}
	for _, def := range defaultAgents() {
		sys.agents[def.id] = agent.New(def.id, def.name, def.role, registry, client, events, opts)
	}

	sys.registerWorkflow(builtinResearchAndWrite())
	if err := sys.loadWorkflowDir(); err != nil {
		return nil, err
	}
	return sys, nil
}

type agentDef struct {
	id   string
	name string
	role agent.Role
}

func defaultAgents() []agentDef {
	return []agentDef{
		{"researcher", "Researcher", agent.RoleResearcher},
		{"writer", "Writer", agent.RoleWriter},
		{"analyst", "Analyst", agent.RoleAnalyst},
		{"assistant", "Assistant", agent.RoleAssistant},
	}
}

func registerBuiltins(registry *tool.Registry, cfg *config.Config) error {
	if err := os.MkdirAll(cfg.Tools.Workspace, 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	files := builtin.NewFileStore(cfg.Tools.Workspace, cfg.Tools.RestrictToWorkspace)
	box := sandbox.New(sandbox.Limits{
		Timeout:       time.Duration(cfg.Sandbox.TimeoutSeconds) * time.Second,
		MemoryLimitMB: cfg.Sandbox.MemoryLimitMB,
	}, cfg.Sandbox.PythonBin)

	tools := []tool.Tool{
		builtin.NewWebSearch(time.Duration(cfg.Tools.SearchTimeoutSeconds) * time.Second),
		builtin.NewCalculator(),
		files.ReadTool(),
		files.WriteTool(),
		builtin.NewClock(nil),
		builtin.NewCodeExec(box),
	}
	for _, t := range tools {
		if err := registry.Register(t); err != nil {
			return err
		}
	}
	log.Printf("[system] registered %d tools", len(tools))
	return nil
}

// Agent looks up an agent by id.
func (s *System) Agent(id string) (*agent.Agent, error) {
	a, ok := s.agents[id]
	if !ok {
		return nil, fmt.Errorf("unknown agent %q", id)
	}
	return a, nil
}

// Agents lists the agent pool sorted by id.
func (s *System) Agents() []*agent.Agent {
	out := make([]*agent.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Registry exposes the tool registry.
func (s *System) Registry() *tool.Registry { return s.registry }

// Events exposes the event bus for live subscribers.
func (s *System) Events() *bus.Bus { return s.events }

// Config exposes the effective configuration.
func (s *System) Config() *config.Config { return s.cfg }
