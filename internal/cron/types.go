package cron

import (
	"crypto/rand"
	"encoding/hex"
)

// Schedule describes when a job fires. Exactly one kind is active:
// "cron" uses a six-field cron expression with seconds, "every" fires on a
// fixed millisecond interval, "at" fires once at a unix-millisecond instant.
type Schedule struct {
	Kind    string `json:"kind"`
	Expr    string `json:"expr,omitempty"`
	EveryMs int64  `json:"everyMs,omitempty"`
	AtMs    int64  `json:"atMs,omitempty"`
}

// TaskSpec is what a fired job asks the system to do: hand the prompt to
// the named agent.
type TaskSpec struct {
	Agent  string `json:"agent"`
	Prompt string `json:"prompt"`
}

// State tracks the last execution of a job.
type State struct {
	LastRunAtMs int64  `json:"lastRunAtMs,omitempty"`
	LastStatus  string `json:"lastStatus,omitempty"`
	LastError   string `json:"lastError,omitempty"`
}

// Job is one scheduled agent task, persisted across restarts.
type Job struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Enabled        bool     `json:"enabled"`
	DeleteAfterRun bool     `json:"deleteAfterRun,omitempty"`
	Schedule       Schedule `json:"schedule"`
	Task           TaskSpec `json:"task"`
	State          State    `json:"state"`
}

// NewJob builds an enabled job with a fresh random id. One-shot "at"
// schedules default to removal after they fire.
func NewJob(name string, schedule Schedule, task TaskSpec) Job {
	return Job{
		ID:             newID(),
		Name:           name,
		Enabled:        true,
		DeleteAfterRun: schedule.Kind == "at",
		Schedule:       schedule,
		Task:           task,
	}
}

func newID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "job-00000000"
	}
	return "job-" + hex.EncodeToString(buf)
}
