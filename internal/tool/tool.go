package tool

import "context"

// Tool is a named capability an agent can invoke with a free-form string
// input. Implementations report failures through Result, not panics.
type Tool interface {
	// Name returns the unique registry identifier of the tool.
	Name() string

	// Description gives a short human readable summary shown to the model.
	Description() string

	// Invoke runs the tool. A returned error is converted by the registry
	// into a failed Result; it never propagates to the agent loop.
	Invoke(ctx context.Context, input string) (Result, error)
}

// Result is the structured outcome of a tool invocation. Failures are
// values: Success false and Error set, never a raised fault.
type Result struct {
	Success bool           `json:"success"`
	Payload map[string]any `json:"payload,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Ok builds a successful result with the given payload.
func Ok(payload map[string]any) Result {
	return Result{Success: true, Payload: payload}
}

// Fail builds a failed result with a human readable message.
func Fail(msg string) Result {
	return Result{Success: false, Error: msg}
}

// Info is the discovery view of a registered tool.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Func adapts a plain function into a Tool.
type Func struct {
	ToolName string
	Desc     string
	Fn       func(ctx context.Context, input string) (Result, error)
}

func (f Func) Name() string        { return f.ToolName }
func (f Func) Description() string { return f.Desc }

func (f Func) Invoke(ctx context.Context, input string) (Result, error) {
	return f.Fn(ctx, input)
}
