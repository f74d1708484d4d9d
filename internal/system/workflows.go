package system

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// loadWorkflowDir reads user workflow definitions from the workspace's
// workflows/ directory. A missing directory is fine; a malformed file or a
// name collision is not.
func (s *System) loadWorkflowDir() error {
	dir := filepath.Join(s.cfg.Tools.Workspace, "workflows")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read workflow dir: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		wf, err := loadWorkflowFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("workflow file %s: %w", name, err)
		}
		if _, exists := s.workflows[wf.Name]; exists {
			return fmt.Errorf("workflow file %s: name %q already registered", name, wf.Name)
		}
		s.registerWorkflow(wf)
		loaded++
	}
	if loaded > 0 {
		log.Printf("[system] loaded %d workflow(s) from %s", loaded, dir)
	}
	return nil
}

func loadWorkflowFile(path string) (Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Workflow{}, err
	}
	var wf Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return Workflow{}, fmt.Errorf("parse yaml: %w", err)
	}
	return wf, validateWorkflow(wf)
}

func validateWorkflow(wf Workflow) error {
	if wf.Name == "" {
		return fmt.Errorf("workflow name is empty")
	}
	if len(wf.Steps) == 0 {
		return fmt.Errorf("workflow %q has no steps", wf.Name)
	}
	for i, step := range wf.Steps {
		if step.Agent == "" {
			return fmt.Errorf("workflow %q step %d: agent is empty", wf.Name, i+1)
		}
		if strings.TrimSpace(step.Prompt) == "" {
			return fmt.Errorf("workflow %q step %d: prompt is empty", wf.Name, i+1)
		}
	}
	return nil
}
