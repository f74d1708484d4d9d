package agent

import "strings"

// Role selects the base system prompt an agent works under.
type Role string

const (
	RoleResearcher Role = "researcher"
	RoleWriter     Role = "writer"
	RoleAnalyst    Role = "analyst"
	RoleAssistant  Role = "assistant"
)

var rolePrompts = map[Role]string{
	RoleResearcher: "You are a research specialist. Gather accurate information with the tools available and cite what you find.",
	RoleWriter:     "You are a writing specialist. Produce clear, well structured text from the material you are given.",
	RoleAnalyst:    "You are an analysis specialist. Break problems down, run calculations and code when needed, and verify results.",
	RoleAssistant:  "You are a helpful general purpose assistant.",
}

// ParseRole maps a string onto a known role, defaulting to assistant.
func ParseRole(s string) Role {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, known := rolePrompts[r]; known {
		return r
	}
	return RoleAssistant
}

// BasePrompt returns the system prompt fragment for the role.
func (r Role) BasePrompt() string {
	if p, known := rolePrompts[r]; known {
		return p
	}
	return rolePrompts[RoleAssistant]
}

// Known reports whether the role is one of the defined set.
func (r Role) Known() bool {
	_, known := rolePrompts[r]
	return known
}
