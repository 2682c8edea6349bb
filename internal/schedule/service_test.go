package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestAddJob_ValidationAndDefaults(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "jobs.json"), nil)

	job, err := s.AddJob("weekly", Schedule{Kind: KindCron, Expr: "0 0 19 * * FRI"}, Payload{Topic: "open borders"})
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if job.ID == "" {
		t.Error("job ID should not be empty")
	}
	if !job.Enabled {
		t.Error("job should be enabled by default")
	}
	if job.Payload.Topic != "open borders" {
		t.Errorf("topic = %q", job.Payload.Topic)
	}

	if _, err := s.AddJob("bad", Schedule{Kind: KindCron}, Payload{}); err == nil {
		t.Error("cron schedule without expression should be rejected")
	}
	if _, err := s.AddJob("bad", Schedule{Kind: KindAt}, Payload{}); err == nil {
		t.Error("one-shot schedule without timestamp should be rejected")
	}
	if _, err := s.AddJob("bad", Schedule{Kind: "hourly"}, Payload{}); err == nil {
		t.Error("unknown schedule kind should be rejected")
	}
}

func TestAddJob_Persists(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "jobs.json")
	s := NewService(storePath, nil)

	if _, err := s.AddJob("weekly", Schedule{Kind: KindCron, Expr: "0 0 19 * * FRI"}, Payload{Topic: "t"}); err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	data, err := os.ReadFile(storePath)
	if err != nil {
		t.Fatalf("read store: %v", err)
	}
	var stored []Job
	if err := json.Unmarshal(data, &stored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(stored) != 1 || stored[0].Name != "weekly" {
		t.Errorf("stored = %+v", stored)
	}
}

func TestRemoveJob(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "jobs.json"), nil)
	job, _ := s.AddJob("rm", Schedule{Kind: KindAt, AtMs: time.Now().Add(time.Hour).UnixMilli()}, Payload{Topic: "t"})

	if !s.RemoveJob(job.ID) {
		t.Error("RemoveJob returned false")
	}
	if len(s.Jobs()) != 0 {
		t.Error("job not removed")
	}
	if s.RemoveJob("nonexistent") {
		t.Error("RemoveJob should return false for nonexistent job")
	}
}

func TestEnableJob(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "jobs.json"), nil)
	job, _ := s.AddJob("toggle", Schedule{Kind: KindCron, Expr: "0 * * * * *"}, Payload{Topic: "t"})

	updated, err := s.EnableJob(job.ID, false)
	if err != nil {
		t.Fatalf("EnableJob: %v", err)
	}
	if updated.Enabled {
		t.Error("job should be disabled")
	}

	updated, err = s.EnableJob(job.ID, true)
	if err != nil {
		t.Fatalf("EnableJob: %v", err)
	}
	if !updated.Enabled {
		t.Error("job should be enabled")
	}

	if _, err := s.EnableJob("nonexistent", true); err == nil {
		t.Error("expected error for nonexistent job")
	}
}

func TestOneShotJob_FiresOnceAndRecordsOutcome(t *testing.T) {
	var fired atomic.Int32
	runner := func(job Job) (Outcome, error) {
		fired.Add(1)
		return Outcome{SessionID: "abc12345", Winner: "Ada"}, nil
	}
	s := NewService(filepath.Join(t.TempDir(), "jobs.json"), runner)

	job, err := s.AddJob("once", Schedule{Kind: KindAt, AtMs: time.Now().UnixMilli() - 1}, Payload{Topic: "t"})
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if fired.Load() != 1 {
		t.Fatalf("fired = %d, want 1", fired.Load())
	}

	// Another couple of ticks must not re-fire the disabled job.
	time.Sleep(2200 * time.Millisecond)
	if fired.Load() != 1 {
		t.Errorf("one-shot job fired %d times", fired.Load())
	}

	jobs := s.Jobs()
	if len(jobs) != 1 || jobs[0].ID != job.ID {
		t.Fatalf("jobs = %+v", jobs)
	}
	if jobs[0].Enabled {
		t.Error("one-shot job should disable itself")
	}
	if jobs[0].LastRun.Winner != "Ada" || jobs[0].LastRun.SessionID != "abc12345" {
		t.Errorf("last run = %+v", jobs[0].LastRun)
	}
}

func TestOneShotJob_RecordsRunnerError(t *testing.T) {
	runner := func(job Job) (Outcome, error) {
		return Outcome{}, errors.New("llm unavailable")
	}
	s := NewService(filepath.Join(t.TempDir(), "jobs.json"), runner)
	job, _ := s.AddJob("failing", Schedule{Kind: KindAt, AtMs: time.Now().UnixMilli() - 1}, Payload{Topic: "t"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		jobs := s.Jobs()
		if len(jobs) == 1 && jobs[0].ID == job.ID && jobs[0].LastRun.Error != "" {
			if jobs[0].LastRun.Error != "llm unavailable" {
				t.Errorf("error = %q", jobs[0].LastRun.Error)
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("runner error was never recorded")
}

func TestPersistenceAcrossServices(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "jobs.json")

	s1 := NewService(storePath, nil)
	s1.AddJob("persist1", Schedule{Kind: KindCron, Expr: "0 0 19 * * FRI"}, Payload{Topic: "a"})
	s1.AddJob("persist2", Schedule{Kind: KindAt, AtMs: time.Now().Add(time.Hour).UnixMilli()}, Payload{Topic: "b"})

	s2 := NewService(storePath, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s2.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s2.Stop()

	jobs := s2.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("len(jobs) = %d, want 2", len(jobs))
	}
	if jobs[0].Name != "persist1" || jobs[1].Name != "persist2" {
		t.Errorf("jobs = %+v", jobs)
	}
}

func TestStartStop(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "jobs.json"), nil)
	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	cancel()
	s.Stop()
}
