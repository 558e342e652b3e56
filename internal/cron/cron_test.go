package cron

import (
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/vargos/internal/bus"
)

func TestTickFiresDueJobEveryMinute(t *testing.T) {
	var mu sync.Mutex
	var fired []string

	p := New(time.Minute, func(job Job, input bus.NormalizedInput) {
		mu.Lock()
		defer mu.Unlock()
		fired = append(fired, job.ID)
		if input.Source.SessionKey != "cron:daily-standup" {
			t.Errorf("session key = %q, want cron:daily-standup", input.Source.SessionKey)
		}
		if input.Content != job.Message {
			t.Errorf("content = %q, want %q", input.Content, job.Message)
		}
	}, nil)

	p.SetJobs([]Job{
		{ID: "daily-standup", Schedule: "0 9 * * *", AgentID: "main", Message: "time to stand up"},
	})

	p.tick(time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC))

	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 1 || fired[0] != "daily-standup" {
		t.Fatalf("fired = %v, want [daily-standup]", fired)
	}
}

func TestTickSkipsJobsNotDue(t *testing.T) {
	called := false
	p := New(time.Minute, func(job Job, input bus.NormalizedInput) { called = true }, nil)
	p.SetJobs([]Job{
		{ID: "daily-standup", Schedule: "0 9 * * *", AgentID: "main", Message: "time to stand up"},
	})

	p.tick(time.Date(2026, 7, 29, 14, 30, 0, 0, time.UTC))

	if called {
		t.Fatal("onDue fired for a schedule that is not due at this tick")
	}
}

func TestTickSkipsInvalidSchedule(t *testing.T) {
	called := false
	p := New(time.Minute, func(job Job, input bus.NormalizedInput) { called = true }, nil)
	p.SetJobs([]Job{
		{ID: "broken", Schedule: "not a schedule", AgentID: "main", Message: "oops"},
	})

	p.tick(time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC))

	if called {
		t.Fatal("onDue fired despite an invalid cron expression")
	}
}

func TestJobSessionKey(t *testing.T) {
	j := Job{ID: "daily-standup"}
	if got, want := j.SessionKey(), "cron:daily-standup"; got != want {
		t.Fatalf("SessionKey() = %q, want %q", got, want)
	}
}
