package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// Service schedules agent tasks. Jobs persist as JSON at storePath so they
// survive restarts; OnJob is the execution callback the owner wires in
// before Start.
type Service struct {
	storePath string
	OnJob     func(job Job) (string, error)

	mu       sync.Mutex
	jobs     []Job
	cron     *rcron.Cron
	entryMap map[string]rcron.EntryID
	cancel   context.CancelFunc
}

func NewService(storePath string) *Service {
	return &Service{
		storePath: storePath,
		entryMap:  make(map[string]rcron.EntryID),
	}
}

// Start loads persisted jobs and begins scheduling. Cron-expression jobs go
// through the cron runner; "every" and "at" jobs are driven by a one-second
// tick loop.
func (s *Service) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	if err := s.load(); err != nil {
		log.Printf("[cron] load jobs: %v", err)
	}

	s.cron = rcron.New(rcron.WithSeconds())

	s.mu.Lock()
	for i := range s.jobs {
		if s.jobs[i].Enabled && s.jobs[i].Schedule.Kind == "cron" {
			s.registerCronJob(&s.jobs[i])
		}
	}
	count := len(s.jobs)
	s.mu.Unlock()

	s.cron.Start()
	log.Printf("[cron] started with %d job(s)", count)

	go s.tickLoop(runCtx)
	return nil
}

// registerCronJob adds one cron-expression job to the runner. Caller holds
// the lock.
func (s *Service) registerCronJob(job *Job) {
	snapshot := *job
	id, err := s.cron.AddFunc(job.Schedule.Expr, func() {
		s.execute(snapshot)
	})
	if err != nil {
		log.Printf("[cron] register job %s (%q): %v", job.Name, job.Schedule.Expr, err)
		return
	}
	s.entryMap[job.ID] = id
}

func (s *Service) execute(job Job) {
	if s.OnJob == nil {
		log.Printf("[cron] job %s fired with no handler", job.Name)
		return
	}
	log.Printf("[cron] running job %s for agent %s", job.Name, job.Task.Agent)
	output, err := s.OnJob(job)

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.jobs {
		if s.jobs[i].ID != job.ID {
			continue
		}
		s.jobs[i].State.LastRunAtMs = time.Now().UnixMilli()
		if err != nil {
			s.jobs[i].State.LastStatus = "error"
			s.jobs[i].State.LastError = err.Error()
			log.Printf("[cron] job %s failed: %v", job.Name, err)
		} else {
			s.jobs[i].State.LastStatus = "ok"
			s.jobs[i].State.LastError = ""
			log.Printf("[cron] job %s done: %s", job.Name, truncate(output, 100))
		}

		if s.jobs[i].DeleteAfterRun {
			if entryID, ok := s.entryMap[job.ID]; ok && s.cron != nil {
				s.cron.Remove(entryID)
				delete(s.entryMap, job.ID)
			}
			s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
		}
		break
	}
	_ = s.save()
}

// tickLoop drives interval and one-shot schedules, which the cron runner
// does not model.
func (s *Service) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.fireDue(time.Now().UnixMilli())
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) fireDue(now int64) {
	s.mu.Lock()
	due := []Job{}
	for i := range s.jobs {
		job := &s.jobs[i]
		if !job.Enabled {
			continue
		}
		switch job.Schedule.Kind {
		case "every":
			if job.Schedule.EveryMs > 0 && now >= job.State.LastRunAtMs+job.Schedule.EveryMs {
				// Stamp now so the next tick does not double-fire while
				// the handler is still running.
				job.State.LastRunAtMs = now
				due = append(due, *job)
			}
		case "at":
			if job.Schedule.AtMs > 0 && now >= job.Schedule.AtMs {
				job.Enabled = false
				due = append(due, *job)
			}
		}
	}
	s.mu.Unlock()

	for _, job := range due {
		s.execute(job)
	}
}

// Stop halts scheduling and waits a bounded time for in-flight jobs.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	if s.cron != nil {
		stopCtx := s.cron.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(5 * time.Second):
			log.Printf("[cron] stop timed out waiting for running jobs")
		}
	}
	log.Printf("[cron] stopped")
}

// AddJob registers and persists a new job.
func (s *Service) AddJob(name string, schedule Schedule, task TaskSpec) (*Job, error) {
	if err := validateSchedule(schedule); err != nil {
		return nil, err
	}
	if task.Agent == "" || task.Prompt == "" {
		return nil, fmt.Errorf("job task needs agent and prompt")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job := NewJob(name, schedule, task)
	s.jobs = append(s.jobs, job)

	if job.Schedule.Kind == "cron" && s.cron != nil {
		s.registerCronJob(&s.jobs[len(s.jobs)-1])
	}
	if err := s.save(); err != nil {
		return nil, fmt.Errorf("save jobs: %w", err)
	}
	return &job, nil
}

func validateSchedule(schedule Schedule) error {
	switch schedule.Kind {
	case "cron":
		if schedule.Expr == "" {
			return fmt.Errorf("cron schedule needs an expression")
		}
	case "every":
		if schedule.EveryMs <= 0 {
			return fmt.Errorf("every schedule needs a positive interval")
		}
	case "at":
		if schedule.AtMs <= 0 {
			return fmt.Errorf("at schedule needs a timestamp")
		}
	default:
		return fmt.Errorf("unknown schedule kind %q", schedule.Kind)
	}
	return nil
}

// RemoveJob deletes a job by id.
func (s *Service) RemoveJob(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, job := range s.jobs {
		if job.ID == id {
			if entryID, ok := s.entryMap[id]; ok && s.cron != nil {
				s.cron.Remove(entryID)
				delete(s.entryMap, id)
			}
			s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
			_ = s.save()
			return true
		}
	}
	return false
}

// ListJobs snapshots the current job set.
func (s *Service) ListJobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, len(s.jobs))
	copy(out, s.jobs)
	return out
}

// EnableJob toggles a job without removing it.
func (s *Service) EnableJob(id string, enabled bool) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.jobs {
		if s.jobs[i].ID != id {
			continue
		}
		s.jobs[i].Enabled = enabled
		if s.jobs[i].Schedule.Kind == "cron" && s.cron != nil {
			if enabled {
				if _, ok := s.entryMap[id]; !ok {
					s.registerCronJob(&s.jobs[i])
				}
			} else if entryID, ok := s.entryMap[id]; ok {
				s.cron.Remove(entryID)
				delete(s.entryMap, id)
			}
		}
		_ = s.save()
		job := s.jobs[i]
		return &job, nil
	}
	return nil, fmt.Errorf("job %s not found", id)
}

func (s *Service) load() error {
	data, err := os.ReadFile(s.storePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, &s.jobs)
}

func (s *Service) save() error {
	if err := os.MkdirAll(filepath.Dir(s.storePath), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.jobs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.storePath, data, 0o644)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
