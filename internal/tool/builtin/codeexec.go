package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stellarlinkco/agentbox/internal/sandbox"
	"github.com/stellarlinkco/agentbox/internal/tool"
)

// codeRequest is the structured input form of the execute_code tool. The
// tool also accepts bare Python source for the common case.
type codeRequest struct {
	Code           string `json:"code"`
	ExpectedOutput string `json:"expected_output"`
	CompareMode    string `json:"compare_mode"`
}

// CodeExec runs Python snippets in the sandbox and optionally checks the
// output against an expectation.
type CodeExec struct {
	box *sandbox.Sandbox
}

func NewCodeExec(box *sandbox.Sandbox) *CodeExec {
	return &CodeExec{box: box}
}

func (c *CodeExec) Name() string { return "execute_code" }

func (c *CodeExec) Description() string {
	return "Execute Python code in a sandbox; input is code, or JSON {code, expected_output, compare_mode}"
}

func (c *CodeExec) Invoke(ctx context.Context, input string) (tool.Result, error) {
	req, err := parseCodeRequest(input)
	if err != nil {
		return tool.Fail(err.Error()), nil
	}

	mode := sandbox.ModeExact
	if req.ExpectedOutput != "" || req.CompareMode != "" {
		parsed, ok := sandbox.ParseMode(req.CompareMode)
		if !ok {
			return tool.Fail(fmt.Sprintf("unknown compare_mode %q", req.CompareMode)), nil
		}
		mode = parsed
	}

	outcome, err := c.box.Run(ctx, req.Code)
	if err != nil {
		return tool.Fail(fmt.Sprintf("execution rejected: %v", err)), nil
	}

	payload := map[string]any{
		"stdout":      outcome.Stdout,
		"stderr":      outcome.Stderr,
		"timed_out":   outcome.TimedOut,
		"exit_status": outcome.ExitStatus,
		"duration_ms": outcome.DurationMs,
	}
	// A timed-out or crashed snippet produced garbage stdout; scoring it
	// against the expectation would be meaningless.
	if req.ExpectedOutput != "" && !outcome.TimedOut && outcome.ExitStatus == 0 {
		cmp := sandbox.Compare(outcome.Stdout, req.ExpectedOutput, mode)
		payload["comparison"] = map[string]any{
			"mode":       string(cmp.Mode),
			"match":      cmp.Match,
			"similarity": cmp.Similarity,
			"details":    cmp.Details,
		}
	}

	if outcome.TimedOut {
		return tool.Result{Success: false, Payload: payload, Error: "execution timed out"}, nil
	}
	if outcome.ExitStatus != 0 {
		return tool.Result{Success: false, Payload: payload, Error: fmt.Sprintf("exit status %d", outcome.ExitStatus)}, nil
	}
	return tool.Ok(payload), nil
}

// parseCodeRequest accepts either a JSON object with a code field or bare
// Python source.
func parseCodeRequest(input string) (codeRequest, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return codeRequest{}, fmt.Errorf("empty code input")
	}

	if strings.HasPrefix(trimmed, "{") {
		var req codeRequest
		if err := json.Unmarshal([]byte(trimmed), &req); err == nil && req.Code != "" {
			return req, nil
		}
		// Fall through: a snippet may legitimately start with "{".
	}
	return codeRequest{Code: input}, nil
}
