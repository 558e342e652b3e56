// Package cron is the cron trigger producer: an independent concurrent
// unit (spec §5) that evaluates configured schedules once a minute and
// feeds a synthetic NormalizedInput into the inbound pipeline for every
// job that comes due, exactly like any other message source.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"

	"github.com/nextlevelbuilder/vargos/internal/bus"
)

// Job is one scheduled trigger.
type Job struct {
	ID       string
	Schedule string // standard 5-field cron expression
	AgentID  string
	Message  string
	Channel  string // destination channel for delivery, default "cron"
	ChatID   string // destination chat/recipient, if Deliver
	Deliver  bool
}

// SessionKey returns the session key the Gateway uses for this job's
// runs: "cron:<jobID>" (spec §6 session key format).
func (j Job) SessionKey() string { return fmt.Sprintf("cron:%s", j.ID) }

// OnDue is called once per job per tick where the schedule is due.
type OnDue func(job Job, input bus.NormalizedInput)

// Producer polls a fixed job list against a gronx schedule evaluator.
// Jobs are added/removed by replacing the whole list (SetJobs) rather
// than mutated in place, keeping the producer's read path lock-light.
type Producer struct {
	interval time.Duration
	onDue    OnDue
	now      func() time.Time
	log      *slog.Logger

	gron gronx.Gronx
	jobs []Job
}

// New builds a Producer that ticks every interval (typically 1 minute,
// matching cron's own resolution) and calls onDue for jobs whose
// schedule matches the tick time.
func New(interval time.Duration, onDue OnDue, log *slog.Logger) *Producer {
	if log == nil {
		log = slog.Default()
	}
	return &Producer{
		interval: interval,
		onDue:    onDue,
		now:      time.Now,
		log:      log,
		gron:     gronx.New(),
	}
}

// SetJobs replaces the producer's job list.
func (p *Producer) SetJobs(jobs []Job) { p.jobs = jobs }

// Run blocks, ticking every p.interval, until ctx is cancelled.
func (p *Producer) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			p.tick(t)
		}
	}
}

func (p *Producer) tick(t time.Time) {
	for _, job := range p.jobs {
		due, err := p.gron.IsDue(job.Schedule, t)
		if err != nil {
			p.log.Warn("cron: invalid schedule", "job", job.ID, "schedule", job.Schedule, "error", err)
			continue
		}
		if !due {
			continue
		}

		input := bus.NormalizedInput{
			Type:    bus.InputText,
			Content: job.Message,
			Source: bus.InputSource{
				Channel:    "cron",
				UserID:     job.AgentID,
				SessionKey: job.SessionKey(),
			},
			Timestamp: t,
		}
		p.log.Info("cron: job due", "job", job.ID, "schedule", job.Schedule)
		p.onDue(job, input)
	}
}
