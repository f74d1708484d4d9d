package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/agentbox/internal/config"
	"github.com/stellarlinkco/agentbox/internal/gateway"
	"github.com/stellarlinkco/agentbox/internal/system"
)

// SystemFactory builds the agent system; injectable for tests.
type SystemFactory func(cfg *config.Config) (*system.System, error)

func defaultSystemFactory(cfg *config.Config) (*system.System, error) {
	return system.New(cfg, nil)
}

// AgentOptions carry injectable dependencies for the agent command.
type AgentOptions struct {
	SystemFactory SystemFactory
	Stdin         io.Reader
	Stdout        io.Writer
	Stderr        io.Writer
}

var rootCmd = &cobra.Command{
	Use:   "agentbox",
	Short: "agentbox - tool-using agents over a local model",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP gateway and cron scheduler",
	RunE:  runServe,
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run an agent in single message or REPL mode",
	RunE:  runAgent,
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the registered tools",
	RunE:  runTools,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config and workspace",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show agentbox status",
	RunE:  runStatus,
}

var (
	agentFlag   string
	messageFlag string
)

func init() {
	agentCmd.Flags().StringVarP(&agentFlag, "agent", "a", "assistant", "Agent to talk to")
	agentCmd.Flags().StringVarP(&messageFlag, "message", "m", "", "Single message to send")
	rootCmd.AddCommand(serveCmd, agentCmd, toolsCmd, onboardCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	sys, err := system.New(cfg, nil)
	if err != nil {
		return fmt.Errorf("build system: %w", err)
	}

	gw := gateway.New(cfg, sys)
	return gw.Run(context.Background())
}

func runAgent(cmd *cobra.Command, args []string) error {
	return runAgentWithOptions(AgentOptions{})
}

// runAgentWithOptions runs the agent command with injectable dependencies.
func runAgentWithOptions(opts AgentOptions) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	factory := opts.SystemFactory
	if factory == nil {
		factory = defaultSystemFactory
	}
	sys, err := factory(cfg)
	if err != nil {
		return fmt.Errorf("build system: %w", err)
	}

	a, err := sys.Agent(agentFlag)
	if err != nil {
		return err
	}

	stdin := opts.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	ctx := context.Background()

	if messageFlag != "" {
		res, err := a.Run(ctx, messageFlag, "")
		if err != nil {
			return fmt.Errorf("agent error: %w", err)
		}
		printResult(stdout, res.Output, res.Truncated)
		return nil
	}

	fmt.Fprintf(stdout, "agentbox %s (type 'exit' to quit)\n", a.ID())
	scanner := bufio.NewScanner(stdin)
	for {
		fmt.Fprint(stdout, "\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		res, err := a.Run(ctx, input, "")
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			continue
		}
		printResult(stdout, res.Output, res.Truncated)
	}
	return nil
}

func printResult(w io.Writer, output string, truncated bool) {
	fmt.Fprintln(w, output)
	if truncated {
		fmt.Fprintln(w, "(answer truncated: step limit reached)")
	}
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	sys, err := system.New(cfg, nil)
	if err != nil {
		return fmt.Errorf("build system: %w", err)
	}
	for _, info := range sys.Registry().List() {
		fmt.Printf("%-14s %s\n", info.Name, info.Description)
	}
	return nil
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgDir := config.ConfigDir()
	cfgPath := config.ConfigPath()

	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		data, _ := json.MarshalIndent(cfg, "", "  ")
		if err := os.WriteFile(cfgPath, data, 0o644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(cfg.Tools.Workspace, "workflows"), 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	fmt.Printf("Workspace ready: %s\n", cfg.Tools.Workspace)
	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Make sure Ollama is running at %s\n", cfg.Model.BaseURL)
	fmt.Printf("  2. Pull the model: ollama pull %s\n", cfg.Model.Name)
	fmt.Println("  3. Run 'agentbox agent -m \"Hello\"' to test")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Model: %s at %s\n", cfg.Model.Name, cfg.Model.BaseURL)
	fmt.Printf("Workspace: %s\n", cfg.Tools.Workspace)
	fmt.Printf("Gateway: %s:%d\n", cfg.Gateway.Host, cfg.Gateway.Port)
	fmt.Printf("Sandbox: %ds timeout, %dMB memory (%s)\n",
		cfg.Sandbox.TimeoutSeconds, cfg.Sandbox.MemoryLimitMB, cfg.Sandbox.PythonBin)

	sys, err := system.New(cfg, nil)
	if err != nil {
		fmt.Printf("System: error (%v)\n", err)
		return nil
	}
	agents := []string{}
	for _, a := range sys.Agents() {
		agents = append(agents, a.ID())
	}
	fmt.Printf("Agents: %s\n", strings.Join(agents, ", "))

	flows := []string{}
	for _, wf := range sys.Workflows() {
		flows = append(flows, wf.Name)
	}
	fmt.Printf("Workflows: %s\n", strings.Join(flows, ", "))

	if _, err := os.Stat(cfg.Tools.Workspace); err != nil {
		fmt.Println("Workspace: not found (run 'agentbox onboard')")
	}
	return nil
}
