package builtin

import (
	"context"
	"time"

	"github.com/stellarlinkco/agentbox/internal/tool"
)

// NewClock reports the current date and time. The now function is
// injectable for tests; pass nil for wall-clock time.
func NewClock(now func() time.Time) tool.Tool {
	if now == nil {
		now = time.Now
	}
	return tool.Func{
		ToolName: "get_time",
		Desc:     "Get the current date and time, input is ignored",
		Fn: func(ctx context.Context, input string) (tool.Result, error) {
			t := now()
			return tool.Ok(map[string]any{
				"iso":      t.Format(time.RFC3339),
				"date":     t.Format("2006-01-02"),
				"time":     t.Format("15:04:05"),
				"weekday":  t.Weekday().String(),
				"timezone": t.Location().String(),
			}), nil
		},
	}
}
