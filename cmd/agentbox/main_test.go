package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stellarlinkco/agentbox/internal/config"
	"github.com/stellarlinkco/agentbox/internal/memory"
	"github.com/stellarlinkco/agentbox/internal/system"
)

type fakeModel struct {
	responses []string
	calls     int
}

func (m *fakeModel) Complete(ctx context.Context, prompt string, history []memory.Entry) (string, error) {
	if m.calls >= len(m.responses) {
		return "", fmt.Errorf("model unavailable")
	}
	r := m.responses[m.calls]
	m.calls++
	return r, nil
}

func fakeFactory(t *testing.T, responses ...string) SystemFactory {
	t.Helper()
	return func(cfg *config.Config) (*system.System, error) {
		cfg.Tools.Workspace = t.TempDir()
		return system.New(cfg, &fakeModel{responses: responses})
	}
}

func TestRunAgent_SingleMessage(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	agentFlag = "assistant"
	messageFlag = "hello"
	defer func() { messageFlag = "" }()

	var stdout, stderr bytes.Buffer
	err := runAgentWithOptions(AgentOptions{
		SystemFactory: fakeFactory(t, "Hi there."),
		Stdin:         strings.NewReader(""),
		Stdout:        &stdout,
		Stderr:        &stderr,
	})
	if err != nil {
		t.Fatalf("runAgentWithOptions: %v", err)
	}
	if !strings.Contains(stdout.String(), "Hi there.") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestRunAgent_UnknownAgent(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	agentFlag = "ghost"
	messageFlag = "hello"
	defer func() {
		agentFlag = "assistant"
		messageFlag = ""
	}()

	err := runAgentWithOptions(AgentOptions{
		SystemFactory: fakeFactory(t),
		Stdin:         strings.NewReader(""),
		Stdout:        &bytes.Buffer{},
		Stderr:        &bytes.Buffer{},
	})
	if err == nil {
		t.Error("unknown agent should error")
	}
}

func TestRunAgent_REPL(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	agentFlag = "assistant"
	messageFlag = ""

	var stdout, stderr bytes.Buffer
	err := runAgentWithOptions(AgentOptions{
		SystemFactory: fakeFactory(t, "first answer", "second answer"),
		Stdin:         strings.NewReader("one\n\ntwo\nexit\n"),
		Stdout:        &stdout,
		Stderr:        &stderr,
	})
	if err != nil {
		t.Fatalf("runAgentWithOptions: %v", err)
	}
	out := stdout.String()
	if !strings.Contains(out, "first answer") || !strings.Contains(out, "second answer") {
		t.Errorf("stdout = %q", out)
	}
}

func TestRunAgent_REPLModelError(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	agentFlag = "assistant"
	messageFlag = ""

	var stdout, stderr bytes.Buffer
	err := runAgentWithOptions(AgentOptions{
		SystemFactory: fakeFactory(t), // no responses: every call fails
		Stdin:         strings.NewReader("hello\nexit\n"),
		Stdout:        &stdout,
		Stderr:        &stderr,
	})
	if err != nil {
		t.Fatalf("REPL should keep going after a model error: %v", err)
	}
	if !strings.Contains(stderr.String(), "Error:") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "agent", "tools", "onboard", "status"} {
		if !names[want] {
			t.Errorf("command %q not registered", want)
		}
	}
}
