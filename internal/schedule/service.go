// Package schedule starts debates on a timetable: recurring cron jobs
// (a standing weekly debate night) or one-shot jobs at a fixed time.
// The job list persists as a JSON file so schedules survive restarts.
package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	rcron "github.com/robfig/cron/v3"
)

// Schedule kinds.
const (
	KindCron = "cron" // Expr: cron expression with a seconds field
	KindAt   = "at"   // AtMs: one-shot unix-milli timestamp
)

// Schedule describes when a job fires.
type Schedule struct {
	Kind string `json:"kind"`
	Expr string `json:"expr,omitempty"`
	AtMs int64  `json:"atMs,omitempty"`
}

// Payload is the debate a job starts when it fires.
type Payload struct {
	Topic        string `json:"topic"`
	MaxTurns     int    `json:"maxTurns,omitempty"`
	FactChecking bool   `json:"factChecking,omitempty"`
}

// RunRecord is the outcome of a job's most recent firing.
type RunRecord struct {
	AtMs      int64  `json:"atMs,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Winner    string `json:"winner,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Job is one scheduled debate.
type Job struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Enabled  bool      `json:"enabled"`
	Schedule Schedule  `json:"schedule"`
	Payload  Payload   `json:"payload"`
	LastRun  RunRecord `json:"lastRun"`
}

// Outcome is what a job runner reports back after a debate finishes.
type Outcome struct {
	SessionID string
	Winner    string
}

// Runner executes one scheduled debate.
type Runner func(job Job) (Outcome, error)

// Service owns the persisted job list and drives the timers. One-shot
// jobs disable themselves after firing; remove them explicitly if the
// record is no longer wanted.
type Service struct {
	storePath string
	runner    Runner

	mu       sync.Mutex
	jobs     []Job
	cron     *rcron.Cron
	entryIDs map[string]rcron.EntryID
	cancel   context.CancelFunc
}

func NewService(storePath string, runner Runner) *Service {
	return &Service{
		storePath: storePath,
		runner:    runner,
		entryIDs:  make(map[string]rcron.EntryID),
	}
}

// Start loads the persisted jobs and arms the timers. It returns
// immediately; firing happens on background goroutines until the
// context is canceled or Stop is called.
func (s *Service) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	if err := s.load(); err != nil {
		log.Printf("[schedule] warning: failed to load jobs: %v", err)
	}
	s.cron = rcron.New(rcron.WithSeconds())
	for i := range s.jobs {
		if s.jobs[i].Enabled && s.jobs[i].Schedule.Kind == KindCron {
			s.armCronJob(s.jobs[i])
		}
	}
	count := len(s.jobs)
	s.mu.Unlock()

	s.cron.Start()
	go s.watchOneShots(runCtx)

	log.Printf("[schedule] started with %d jobs", count)
	return nil
}

// Stop cancels the timers and waits briefly for in-flight jobs.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	cron := s.cron
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if cron != nil {
		done := cron.Stop()
		select {
		case <-done.Done():
		case <-time.After(5 * time.Second):
			log.Printf("[schedule] stop timeout waiting for running jobs")
		}
	}
	log.Printf("[schedule] stopped")
}

// AddJob registers and persists a new scheduled debate.
func (s *Service) AddJob(name string, schedule Schedule, payload Payload) (Job, error) {
	switch schedule.Kind {
	case KindCron:
		if schedule.Expr == "" {
			return Job{}, fmt.Errorf("add job %s: cron schedule needs an expression", name)
		}
	case KindAt:
		if schedule.AtMs <= 0 {
			return Job{}, fmt.Errorf("add job %s: one-shot schedule needs a timestamp", name)
		}
	default:
		return Job{}, fmt.Errorf("add job %s: unknown schedule kind %q", name, schedule.Kind)
	}

	job := Job{
		ID:       uuid.NewString(),
		Name:     name,
		Enabled:  true,
		Schedule: schedule,
		Payload:  payload,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs = append(s.jobs, job)
	if job.Schedule.Kind == KindCron && s.cron != nil {
		s.armCronJob(job)
	}
	if err := s.save(); err != nil {
		return Job{}, fmt.Errorf("save jobs: %w", err)
	}
	return job, nil
}

// RemoveJob deletes a job by ID.
func (s *Service) RemoveJob(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, job := range s.jobs {
		if job.ID == id {
			s.disarmLocked(id)
			s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
			_ = s.save()
			return true
		}
	}
	return false
}

// EnableJob toggles a job, arming or disarming its timer.
func (s *Service) EnableJob(id string, enabled bool) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.jobs {
		if s.jobs[i].ID != id {
			continue
		}
		s.jobs[i].Enabled = enabled
		if s.jobs[i].Schedule.Kind == KindCron && s.cron != nil {
			if enabled {
				if _, armed := s.entryIDs[id]; !armed {
					s.armCronJob(s.jobs[i])
				}
			} else {
				s.disarmLocked(id)
			}
		}
		_ = s.save()
		return s.jobs[i], nil
	}
	return Job{}, fmt.Errorf("job %s not found", id)
}

// Jobs returns a snapshot of the job list.
func (s *Service) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, len(s.jobs))
	copy(out, s.jobs)
	return out
}

// armCronJob must be called with the lock held.
func (s *Service) armCronJob(job Job) {
	entryID, err := s.cron.AddFunc(job.Schedule.Expr, func() {
		s.fire(job)
	})
	if err != nil {
		log.Printf("[schedule] failed to arm job %s (%s): %v", job.Name, job.Schedule.Expr, err)
		return
	}
	s.entryIDs[job.ID] = entryID
}

// disarmLocked must be called with the lock held.
func (s *Service) disarmLocked(id string) {
	if entryID, ok := s.entryIDs[id]; ok && s.cron != nil {
		s.cron.Remove(entryID)
		delete(s.entryIDs, id)
	}
}

// watchOneShots fires due one-shot jobs once per second.
func (s *Service) watchOneShots(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now().UnixMilli()
			var due []Job
			s.mu.Lock()
			for i := range s.jobs {
				job := &s.jobs[i]
				if job.Enabled && job.Schedule.Kind == KindAt && job.Schedule.AtMs > 0 && now >= job.Schedule.AtMs {
					job.Enabled = false
					due = append(due, *job)
				}
			}
			s.mu.Unlock()
			for _, job := range due {
				s.fire(job)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) fire(job Job) {
	log.Printf("[schedule] running debate job %s (%s): %q", job.Name, job.ID, job.Payload.Topic)

	record := RunRecord{AtMs: time.Now().UnixMilli()}
	if s.runner == nil {
		record.Error = "no runner configured"
		log.Printf("[schedule] job %s: no runner configured", job.Name)
	} else if outcome, err := s.runner(job); err != nil {
		record.Error = err.Error()
		log.Printf("[schedule] job %s failed: %v", job.Name, err)
	} else {
		record.SessionID = outcome.SessionID
		record.Winner = outcome.Winner
		log.Printf("[schedule] job %s finished, winner: %s", job.Name, outcome.Winner)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.jobs {
		if s.jobs[i].ID == job.ID {
			s.jobs[i].LastRun = record
			break
		}
	}
	_ = s.save()
}

// Load reads the persisted job list without arming any timers, for
// callers that only inspect or edit the schedule.
func (s *Service) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
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
	if err := os.MkdirAll(filepath.Dir(s.storePath), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.jobs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.storePath, data, 0644)
}
