package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/stellarlinkco/agentbox/internal/config"
	"github.com/stellarlinkco/agentbox/internal/cron"
	"github.com/stellarlinkco/agentbox/internal/system"
)

// Gateway is the HTTP surface over the agent system. It owns the server
// lifecycle and the cron scheduler; request handling delegates to System.
type Gateway struct {
	cfg    *config.Config
	sys    *system.System
	cron   *cron.Service
	server *http.Server

	signalChan chan os.Signal // injectable for tests
}

func New(cfg *config.Config, sys *system.System) *Gateway {
	g := &Gateway{cfg: cfg, sys: sys}
	g.cron = cron.NewService(cfg.CronStorePath())
	g.cron.OnJob = g.runCronJob
	return g
}

// Run starts the gateway and the cron scheduler, then blocks until the
// context ends or a termination signal arrives. Shutdown is graceful with a
// bounded drain.
func (g *Gateway) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := g.cron.Start(runCtx); err != nil {
		return fmt.Errorf("start cron: %w", err)
	}
	defer g.cron.Stop()

	addr := fmt.Sprintf("%s:%d", g.cfg.Gateway.Host, g.cfg.Gateway.Port)
	g.server = &http.Server{
		Addr:    addr,
		Handler: g.routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[gateway] listening on %s", addr)
		if err := g.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
	}
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return fmt.Errorf("gateway server: %w", err)
	case sig := <-sigCh:
		log.Printf("[gateway] received %v, shutting down", sig)
	case <-runCtx.Done():
		log.Printf("[gateway] context done, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := g.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Printf("[gateway] stopped")
	return nil
}

// runCronJob hands a fired job to the named agent.
func (g *Gateway) runCronJob(job cron.Job) (string, error) {
	a, err := g.sys.Agent(job.Task.Agent)
	if err != nil {
		return "", err
	}
	res, err := a.Run(context.Background(), job.Task.Prompt, "")
	if err != nil {
		return "", err
	}
	return res.Output, nil
}

func (g *Gateway) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", g.handleHealth)
	mux.HandleFunc("GET /tools", g.handleTools)
	mux.HandleFunc("POST /agent/task", g.handleAgentTask)
	mux.HandleFunc("POST /tool/use", g.handleToolUse)
	mux.HandleFunc("POST /workflow/{name}", g.handleWorkflow)
	mux.HandleFunc("GET /memory/{agent}", g.handleMemory)
	mux.HandleFunc("GET /cron/jobs", g.handleCronList)
	mux.HandleFunc("POST /cron/jobs", g.handleCronAdd)
	mux.HandleFunc("DELETE /cron/jobs/{id}", g.handleCronRemove)
	mux.HandleFunc("POST /cron/jobs/{id}/enable", g.handleCronEnable)
	mux.HandleFunc("GET /ws", g.handleWS)
	return mux
}

func (g *Gateway) handleCronList(w http.ResponseWriter, r *http.Request) {
	jobs := g.cron.ListJobs()
	writeJSON(w, http.StatusOK, map[string]any{"count": len(jobs), "jobs": jobs})
}

type cronJobRequest struct {
	Name     string        `json:"name"`
	Schedule cron.Schedule `json:"schedule"`
	Task     cron.TaskSpec `json:"task"`
}

func (g *Gateway) handleCronAdd(w http.ResponseWriter, r *http.Request) {
	var req cronJobRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	// A job naming an unknown agent would only fail when it fires; reject
	// it at creation instead.
	if _, err := g.sys.Agent(req.Task.Agent); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := g.cron.AddJob(req.Name, req.Schedule, req.Task)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (g *Gateway) handleCronRemove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !g.cron.RemoveJob(id) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("job %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": id})
}

type cronEnableRequest struct {
	Enabled bool `json:"enabled"`
}

func (g *Gateway) handleCronEnable(w http.ResponseWriter, r *http.Request) {
	var req cronEnableRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, err := g.cron.EnableJob(r.PathValue("id"), req.Enabled)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	agents := []string{}
	for _, a := range g.sys.Agents() {
		agents = append(agents, a.ID())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"agents":    agents,
		"tools":     g.sys.Registry().Names(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (g *Gateway) handleTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": g.sys.Registry().List()})
}

type agentTaskRequest struct {
	Agent   string `json:"agent"`
	Task    string `json:"task"`
	Context string `json:"context,omitempty"`
}

func (g *Gateway) handleAgentTask(w http.ResponseWriter, r *http.Request) {
	var req agentTaskRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Agent == "" || strings.TrimSpace(req.Task) == "" {
		writeError(w, http.StatusBadRequest, "agent and task are required")
		return
	}

	a, err := g.sys.Agent(req.Agent)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	res, err := a.Run(r.Context(), req.Task, req.Context)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":     req.Agent,
		"output":    res.Output,
		"truncated": res.Truncated,
		"steps":     res.Steps,
	})
}

type toolUseRequest struct {
	Tool  string `json:"tool"`
	Input string `json:"input"`
}

func (g *Gateway) handleToolUse(w http.ResponseWriter, r *http.Request) {
	var req toolUseRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Tool == "" {
		writeError(w, http.StatusBadRequest, "tool is required")
		return
	}

	result, err := g.sys.Registry().Invoke(r.Context(), req.Tool, req.Input)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tool": req.Tool, "result": result})
}

type workflowRequest struct {
	Topic string `json:"topic"`
}

func (g *Gateway) handleWorkflow(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req workflowRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}

	res, err := g.sys.RunWorkflow(r.Context(), name, req.Topic)
	if err != nil {
		if strings.Contains(err.Error(), "unknown workflow") {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		// Failed mid-run: surface the error plus the completed steps.
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":  err.Error(),
			"result": res,
		})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (g *Gateway) handleMemory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("agent")
	a, err := g.sys.Agent(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	entries := a.Memory().All()
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":   id,
		"count":   len(entries),
		"entries": entries,
	})
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return fmt.Errorf("body closed")
		}
		return fmt.Errorf("invalid json body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[gateway] write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
