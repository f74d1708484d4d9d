package model

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stellarlinkco/agentbox/internal/memory"
)

func TestOllamaClient_Complete(t *testing.T) {
	var gotReq generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %q, want /api/generate", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(generateResponse{Response: "the answer"})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "llama3.2", 5*time.Second)
	out, err := c.Complete(context.Background(), "What is 2+2?", nil)
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if out != "the answer" {
		t.Errorf("out = %q", out)
	}
	if gotReq.Model != "llama3.2" {
		t.Errorf("model = %q", gotReq.Model)
	}
	if gotReq.Stream {
		t.Error("stream should be false")
	}
	if gotReq.Prompt != "What is 2+2?" {
		t.Errorf("prompt = %q", gotReq.Prompt)
	}
}

func TestOllamaClient_HistoryInPrompt(t *testing.T) {
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotPrompt = req.Prompt
		json.NewEncoder(w).Encode(generateResponse{Response: "ok"})
	}))
	defer srv.Close()

	history := []memory.Entry{
		{Prompt: "first task", Response: "first answer"},
	}
	c := NewOllamaClient(srv.URL, "llama3.2", 5*time.Second)
	if _, err := c.Complete(context.Background(), "second task", history); err != nil {
		t.Fatalf("Complete error: %v", err)
	}

	for _, want := range []string{"first task", "first answer", "second task"} {
		if !strings.Contains(gotPrompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, gotPrompt)
		}
	}
	if !strings.HasSuffix(gotPrompt, "second task") {
		t.Errorf("current task should come last:\n%s", gotPrompt)
	}
}

func TestOllamaClient_Unreachable(t *testing.T) {
	c := NewOllamaClient("http://127.0.0.1:1", "llama3.2", 500*time.Millisecond)
	_, err := c.Complete(context.Background(), "hi", nil)
	if !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("err = %v, want ErrModelUnavailable", err)
	}
}

func TestOllamaClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "llama3.2", 5*time.Second)
	_, err := c.Complete(context.Background(), "hi", nil)
	if !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("err = %v, want ErrModelUnavailable", err)
	}
}

func TestOllamaClient_ErrorField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{Error: "model llama3.2 not found"})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "llama3.2", 5*time.Second)
	_, err := c.Complete(context.Background(), "hi", nil)
	if !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("err = %v, want ErrModelUnavailable", err)
	}
}
