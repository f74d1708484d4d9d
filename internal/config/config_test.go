package config

import (
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Model.Name != DefaultModel {
		t.Errorf("model = %q, want %q", cfg.Model.Name, DefaultModel)
	}
	if cfg.Model.BaseURL != DefaultModelURL {
		t.Errorf("baseUrl = %q, want %q", cfg.Model.BaseURL, DefaultModelURL)
	}
	if cfg.Agents.MaxSteps != DefaultMaxSteps {
		t.Errorf("maxSteps = %d, want %d", cfg.Agents.MaxSteps, DefaultMaxSteps)
	}
	if cfg.Sandbox.TimeoutSeconds != DefaultSandboxTimeout {
		t.Errorf("sandbox timeout = %d, want %d", cfg.Sandbox.TimeoutSeconds, DefaultSandboxTimeout)
	}
	if !cfg.Tools.RestrictToWorkspace {
		t.Error("file tools should be workspace-restricted by default")
	}
	if cfg.Gateway.Port != DefaultPort {
		t.Errorf("port = %d, want %d", cfg.Gateway.Port, DefaultPort)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir()) // no config file on disk
	t.Setenv("AGENTBOX_MODEL_URL", "http://model-host:9000")
	t.Setenv("AGENTBOX_MODEL", "qwen2.5")
	t.Setenv("AGENTBOX_PORT", "9999")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Model.BaseURL != "http://model-host:9000" {
		t.Errorf("baseUrl = %q", cfg.Model.BaseURL)
	}
	if cfg.Model.Name != "qwen2.5" {
		t.Errorf("model = %q", cfg.Model.Name)
	}
	if cfg.Gateway.Port != 9999 {
		t.Errorf("port = %d", cfg.Gateway.Port)
	}
}

func TestApplyFloors(t *testing.T) {
	cfg := &Config{}
	cfg.Agents.MemoryMaxEntries = -3
	cfg.applyFloors()

	if cfg.Agents.MaxSteps != DefaultMaxSteps {
		t.Errorf("maxSteps = %d, want %d", cfg.Agents.MaxSteps, DefaultMaxSteps)
	}
	if cfg.Agents.MemoryMaxEntries != 0 {
		t.Errorf("memoryMaxEntries = %d, want 0", cfg.Agents.MemoryMaxEntries)
	}
	if cfg.Sandbox.PythonBin != DefaultPythonBin {
		t.Errorf("pythonBin = %q, want %q", cfg.Sandbox.PythonBin, DefaultPythonBin)
	}
}
