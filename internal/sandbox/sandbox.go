package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

const (
	// killGrace bounds how long Run waits for the process group to die
	// after SIGKILL before giving up on collecting its exit status.
	killGrace = 2 * time.Second

	// timedOutExitStatus is the sentinel reported when the snippet was
	// killed at the deadline and no real exit status exists.
	timedOutExitStatus = -1
)

// Limits bound a single snippet execution.
type Limits struct {
	Timeout       time.Duration
	MemoryLimitMB int
}

// Outcome is the captured result of one snippet run. Immutable once returned.
type Outcome struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	TimedOut   bool   `json:"timed_out"`
	ExitStatus int    `json:"exit_status"`
	DurationMs int64  `json:"duration_ms"`
}

// Sandbox runs untrusted python snippets in an isolated child process with a
// hard wall-clock deadline and an address-space limit. It is a development
// safety net, not a security boundary against a determined attacker.
type Sandbox struct {
	limits    Limits
	pythonBin string
}

func New(limits Limits, pythonBin string) *Sandbox {
	if limits.Timeout <= 0 {
		limits.Timeout = 5 * time.Second
	}
	if limits.MemoryLimitMB <= 0 {
		limits.MemoryLimitMB = 50
	}
	if pythonBin == "" {
		pythonBin = "python3"
	}
	return &Sandbox{limits: limits, pythonBin: pythonBin}
}

// Limits reports the configured ceilings.
func (s *Sandbox) Limits() Limits { return s.limits }

// Run executes one code snippet. The static policy check rejects forbidden
// imports and calls before anything is spawned; the child process is the
// second enforcement line. The process group is always torn down before Run
// returns: on normal exit, timeout, or ctx cancellation.
//
// A snippet that exceeds the memory limit dies with an ordinary non-zero
// exit status. The rlimit kill is indistinguishable from any other crash at
// this boundary, so no separate status is invented for it.
func (s *Sandbox) Run(ctx context.Context, code string) (Outcome, error) {
	if err := CheckPolicy(code); err != nil {
		return Outcome{}, err
	}

	runCtx, cancel := context.WithTimeout(ctx, s.limits.Timeout)
	defer cancel()

	// ulimit -v is in KiB. exec replaces the shell so the limit applies
	// to the interpreter itself, and -I keeps python from reading user
	// site-packages or environment-injected code.
	script := fmt.Sprintf("ulimit -v %d; exec %s -I -", s.limits.MemoryLimitMB*1024, s.pythonBin)

	cmd := exec.Command("sh", "-c", script)
	cmd.Stdin = strings.NewReader(code)
	cmd.Env = isolatedEnv()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Outcome{}, fmt.Errorf("start sandbox process: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var waitErr error
	timedOut := false
	select {
	case waitErr = <-done:
	case <-runCtx.Done():
		timedOut = runCtx.Err() == context.DeadlineExceeded
		s.killGroup(cmd, done)
		waitErr = runCtx.Err()
	}
	duration := time.Since(start)

	outcome := Outcome{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		TimedOut:   timedOut,
		DurationMs: duration.Milliseconds(),
	}

	switch {
	case timedOut:
		outcome.ExitStatus = timedOutExitStatus
		return outcome, nil
	case runCtx.Err() != nil:
		// Caller cancellation: the child is dead, surface the cancel.
		outcome.ExitStatus = timedOutExitStatus
		return outcome, runCtx.Err()
	case waitErr != nil:
		exitErr, ok := waitErr.(*exec.ExitError)
		if !ok {
			return outcome, fmt.Errorf("wait sandbox process: %w", waitErr)
		}
		outcome.ExitStatus = exitErr.ExitCode()
		return outcome, nil
	default:
		outcome.ExitStatus = 0
		return outcome, nil
	}
}

// killGroup sends SIGKILL to the whole process group and waits a bounded
// grace period for the wait goroutine to observe the exit.
func (s *Sandbox) killGroup(cmd *exec.Cmd, done <-chan error) {
	if cmd.Process == nil {
		return
	}
	// Negative pid targets the group, catching any children the snippet
	// managed to fork despite the policy check.
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		_ = cmd.Process.Kill()
	}
	select {
	case <-done:
	case <-time.After(killGrace):
		log.Printf("[sandbox] process group %d did not exit within grace period", cmd.Process.Pid)
	}
}

// isolatedEnv is the allow-list environment the snippet sees. The host
// environment is never passed through, and PYTHONHASHSEED is pinned so
// identical code produces identical output.
func isolatedEnv() []string {
	return []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		"LANG=C.UTF-8",
		"PYTHONHASHSEED=0",
		"PYTHONDONTWRITEBYTECODE=1",
	}
}
