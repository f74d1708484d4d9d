package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultModel            = "llama3.2"
	DefaultModelURL         = "http://localhost:11434"
	DefaultModelTimeout     = 120
	DefaultMaxSteps         = 5
	DefaultHistoryWindow    = 10
	DefaultMemoryMaxEntries = 0 // unbounded; see AgentsConfig.MemoryMaxEntries
	DefaultSandboxTimeout   = 5
	DefaultSandboxMemoryMB  = 50
	DefaultPythonBin        = "python3"
	DefaultSearchTimeout    = 10
	DefaultHost             = "0.0.0.0"
	DefaultPort             = 18890
	DefaultBufSize          = 100
)

type Config struct {
	Model   ModelConfig   `json:"model"`
	Agents  AgentsConfig  `json:"agents"`
	Sandbox SandboxConfig `json:"sandbox"`
	Tools   ToolsConfig   `json:"tools"`
	Gateway GatewayConfig `json:"gateway"`
	Cron    CronConfig    `json:"cron"`
}

type ModelConfig struct {
	BaseURL        string `json:"baseUrl"`
	Name           string `json:"name"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

type AgentsConfig struct {
	MaxSteps int `json:"maxSteps"`
	// MemoryMaxEntries caps each agent's in-process interaction log.
	// 0 keeps the log unbounded for the process lifetime, which is a
	// deliberate resource-growth tradeoff: cap it in long-lived deployments.
	MemoryMaxEntries int `json:"memoryMaxEntries"`
	HistoryWindow    int `json:"historyWindow"`
}

type SandboxConfig struct {
	TimeoutSeconds int    `json:"timeoutSeconds"`
	MemoryLimitMB  int    `json:"memoryLimitMb"`
	PythonBin      string `json:"pythonBin"`
}

type ToolsConfig struct {
	Workspace            string `json:"workspace"`
	SearchTimeoutSeconds int    `json:"searchTimeoutSeconds"`
	RestrictToWorkspace  bool   `json:"restrictToWorkspace"`
}

type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type CronConfig struct {
	StorePath string `json:"storePath,omitempty"`
}

func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Model: ModelConfig{
			BaseURL:        DefaultModelURL,
			Name:           DefaultModel,
			TimeoutSeconds: DefaultModelTimeout,
		},
		Agents: AgentsConfig{
			MaxSteps:         DefaultMaxSteps,
			MemoryMaxEntries: DefaultMemoryMaxEntries,
			HistoryWindow:    DefaultHistoryWindow,
		},
		Sandbox: SandboxConfig{
			TimeoutSeconds: DefaultSandboxTimeout,
			MemoryLimitMB:  DefaultSandboxMemoryMB,
			PythonBin:      DefaultPythonBin,
		},
		Tools: ToolsConfig{
			Workspace:            filepath.Join(home, ".agentbox", "workspace"),
			SearchTimeoutSeconds: DefaultSearchTimeout,
			RestrictToWorkspace:  true,
		},
		Gateway: GatewayConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Cron: CronConfig{},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".agentbox")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// CronStorePath resolves the cron job store, defaulting under the config dir.
func (c *Config) CronStorePath() string {
	if c.Cron.StorePath != "" {
		return c.Cron.StorePath
	}
	return filepath.Join(ConfigDir(), "data", "cron", "jobs.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if url := os.Getenv("AGENTBOX_MODEL_URL"); url != "" {
		cfg.Model.BaseURL = url
	}
	if name := os.Getenv("AGENTBOX_MODEL"); name != "" {
		cfg.Model.Name = name
	}
	if ws := os.Getenv("AGENTBOX_WORKSPACE"); ws != "" {
		cfg.Tools.Workspace = ws
	}
	if host := os.Getenv("AGENTBOX_HOST"); host != "" {
		cfg.Gateway.Host = host
	}
	if port := os.Getenv("AGENTBOX_PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil {
			cfg.Gateway.Port = parsed
		}
	}
	if bin := os.Getenv("AGENTBOX_PYTHON"); bin != "" {
		cfg.Sandbox.PythonBin = bin
	}

	cfg.applyFloors()
	return cfg, nil
}

// applyFloors pulls zero or negative values back to usable defaults after a
// partial config file overwrote them.
func (c *Config) applyFloors() {
	if c.Model.TimeoutSeconds <= 0 {
		c.Model.TimeoutSeconds = DefaultModelTimeout
	}
	if c.Agents.MaxSteps <= 0 {
		c.Agents.MaxSteps = DefaultMaxSteps
	}
	if c.Agents.HistoryWindow <= 0 {
		c.Agents.HistoryWindow = DefaultHistoryWindow
	}
	if c.Agents.MemoryMaxEntries < 0 {
		c.Agents.MemoryMaxEntries = 0
	}
	if c.Sandbox.TimeoutSeconds <= 0 {
		c.Sandbox.TimeoutSeconds = DefaultSandboxTimeout
	}
	if c.Sandbox.MemoryLimitMB <= 0 {
		c.Sandbox.MemoryLimitMB = DefaultSandboxMemoryMB
	}
	if c.Sandbox.PythonBin == "" {
		c.Sandbox.PythonBin = DefaultPythonBin
	}
	if c.Tools.SearchTimeoutSeconds <= 0 {
		c.Tools.SearchTimeoutSeconds = DefaultSearchTimeout
	}
	if c.Gateway.Port <= 0 {
		c.Gateway.Port = DefaultPort
	}
}
