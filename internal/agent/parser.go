package agent

import (
	"regexp"
	"strings"
)

// ToolCall is one tool request extracted from a model response.
type ToolCall struct {
	Name  string
	Input string
}

// toolCallRe matches the marker convention the system prompt teaches the
// model: a TOOL: line naming the tool, then INPUT: carrying the argument,
// separated by a pipe or a newline. Only the first occurrence counts. The
// input runs to the end of the response so multi-line code blocks survive.
var toolCallRe = regexp.MustCompile(`(?s)TOOL:\s*(\w+)\s*(?:\||\n)\s*INPUT:\s*(.+)`)

// ParseToolCall scans a model response for a tool request. The second
// return is false when the response contains none, which ends the loop
// with the response as the final answer.
func ParseToolCall(response string) (ToolCall, bool) {
	m := toolCallRe.FindStringSubmatch(response)
	if m == nil {
		return ToolCall{}, false
	}
	return ToolCall{
		Name:  m[1],
		Input: strings.TrimSpace(m[2]),
	}, true
}
