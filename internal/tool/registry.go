package tool

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
)

// Registry errors. Both concern registry misuse and are surfaced to the
// caller synchronously; tool execution faults never are.
var (
	ErrToolExists   = fmt.Errorf("tool already registered")
	ErrToolNotFound = fmt.Errorf("tool not found")
)

// Registry keeps the mapping between tool names and implementations. It is
// read-mostly and safe for concurrent invocation.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register inserts a tool when its name is not in use.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("tool is nil")
	}
	name := t.Name()
	if name == "" {
		return fmt.Errorf("tool name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrToolExists, name)
	}
	r.tools[name] = t
	return nil
}

// Get fetches a tool by name.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.tools[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t, nil
}

// Invoke dispatches to a registered tool. An unknown name returns
// ErrToolNotFound; every fault raised by the tool itself, whether an error
// return or a panic, is absorbed into a failed Result so one misbehaving
// tool cannot crash an agent loop.
func (r *Registry) Invoke(ctx context.Context, name, input string) (Result, error) {
	t, err := r.Get(name)
	if err != nil {
		return Fail(err.Error()), err
	}
	return safeInvoke(ctx, t, input), nil
}

func safeInvoke(ctx context.Context, t Tool, input string) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[registry] tool %s panicked: %v", t.Name(), rec)
			result = Fail(fmt.Sprintf("tool %s panicked: %v", t.Name(), rec))
		}
	}()

	res, err := t.Invoke(ctx, input)
	if err != nil {
		return Fail(err.Error())
	}
	return res
}

// List produces the discovery listing, sorted by name for deterministic
// output.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.tools))
	for _, t := range r.tools {
		infos = append(infos, Info{Name: t.Name(), Description: t.Description()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Names returns the sorted registered tool names.
func (r *Registry) Names() []string {
	infos := r.List()
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	return names
}
