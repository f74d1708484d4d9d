package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stellarlinkco/agentbox/internal/memory"
)

// ErrModelUnavailable marks a connectivity or protocol failure talking to the
// inference service. The agent loop treats it as fatal for the current task;
// retries are a caller policy.
var ErrModelUnavailable = errors.New("model unavailable")

// Client is the language-model collaborator. Implementations are opaque and
// non-deterministic; the loop only depends on this contract.
type Client interface {
	Complete(ctx context.Context, prompt string, history []memory.Entry) (string, error)
}

// OllamaClient talks to an Ollama-compatible /api/generate endpoint.
type OllamaClient struct {
	baseURL string
	model   string
	http    *http.Client
}

func NewOllamaClient(baseURL, model string, timeout time.Duration) *OllamaClient {
	return &OllamaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http:    &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Complete sends the prompt, prefixed with recent interaction history, and
// returns the raw completion text.
func (c *OllamaClient) Complete(ctx context.Context, prompt string, history []memory.Entry) (string, error) {
	payload := generateRequest{
		Model:  c.model,
		Prompt: renderPrompt(prompt, history),
		Stream: false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrModelUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrModelUnavailable, resp.StatusCode, truncate(string(data), 200))
	}

	var out generateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrModelUnavailable, err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrModelUnavailable, out.Error)
	}
	return out.Response, nil
}

// renderPrompt prepends history as a plain transcript. Ollama's generate API
// is single-turn, so prior interactions travel inside the prompt itself.
func renderPrompt(prompt string, history []memory.Entry) string {
	if len(history) == 0 {
		return prompt
	}
	var sb strings.Builder
	sb.WriteString("Previous interactions:\n")
	for _, e := range history {
		sb.WriteString("User: ")
		sb.WriteString(e.Prompt)
		sb.WriteString("\nAssistant: ")
		sb.WriteString(e.Response)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(prompt)
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
