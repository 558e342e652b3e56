package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"

	"github.com/nextlevelbuilder/vargos/internal/cron"
)

// CronToolset implements the agent's "cron" tool (spec §1): schedule,
// list, and cancel jobs the cron.Producer will later fire as synthetic
// inbound messages. A *cron.Producer has no remove-one-job method (it
// only accepts a whole-list replacement via SetJobs), so this toolset
// owns the canonical job list and pushes the full list down on every
// mutation.
type CronToolset struct {
	producer *cron.Producer
	agentID  string

	mu   sync.Mutex
	jobs map[string]cron.Job
}

// NewCronToolset builds a CronToolset that pushes its job list to
// producer. agentID is stamped onto every job this tool creates.
func NewCronToolset(producer *cron.Producer, agentID string) *CronToolset {
	return &CronToolset{producer: producer, agentID: agentID, jobs: make(map[string]cron.Job)}
}

// Register adds cron_schedule, cron_list, and cron_cancel to r.
func (c *CronToolset) Register(r *Registry) {
	r.MustRegister(Tool{
		Name:        "cron_schedule",
		Description: "Schedule a recurring message to this agent using a 5-field cron expression",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"schedule": map[string]interface{}{"type": "string", "description": "5-field cron expression, e.g. \"0 9 * * *\""},
				"message":  map[string]interface{}{"type": "string", "description": "Message to deliver to the agent when due"},
			},
			"required": []string{"schedule", "message"},
		},
		Run: c.schedule,
	})
	r.MustRegister(Tool{
		Name:        "cron_list",
		Description: "List scheduled cron jobs",
		Schema:      map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
		Run:         c.list,
	})
	r.MustRegister(Tool{
		Name:        "cron_cancel",
		Description: "Cancel a scheduled cron job by id",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"id": map[string]interface{}{"type": "string", "description": "Job id returned by cron_schedule or cron_list"},
			},
			"required": []string{"id"},
		},
		Run: c.cancel,
	})
}

func (c *CronToolset) schedule(_ context.Context, _ string, args map[string]interface{}) (string, error) {
	schedule, _ := args["schedule"].(string)
	message, _ := args["message"].(string)
	if schedule == "" || message == "" {
		return "", fmt.Errorf("schedule and message are required")
	}
	if !gronx.IsValid(schedule) {
		return "", fmt.Errorf("invalid cron expression %q", schedule)
	}

	job := cron.Job{
		ID:       uuid.NewString(),
		Schedule: schedule,
		AgentID:  c.agentID,
		Message:  message,
	}

	c.mu.Lock()
	c.jobs[job.ID] = job
	c.pushLocked()
	c.mu.Unlock()

	return fmt.Sprintf("scheduled job %s (%s)", job.ID, schedule), nil
}

func (c *CronToolset) list(_ context.Context, _ string, _ map[string]interface{}) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.jobs) == 0 {
		return "no scheduled jobs", nil
	}
	var lines []string
	for _, j := range c.jobs {
		lines = append(lines, fmt.Sprintf("%s: %s -> %q", j.ID, j.Schedule, j.Message))
	}
	return strings.Join(lines, "\n"), nil
}

func (c *CronToolset) cancel(_ context.Context, _ string, args map[string]interface{}) (string, error) {
	id, _ := args["id"].(string)
	if id == "" {
		return "", fmt.Errorf("id is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.jobs[id]; !ok {
		return "", fmt.Errorf("no job with id %q", id)
	}
	delete(c.jobs, id)
	c.pushLocked()
	return fmt.Sprintf("cancelled job %s", id), nil
}

// pushLocked replaces the producer's job list with the current set.
// Callers must hold c.mu.
func (c *CronToolset) pushLocked() {
	jobs := make([]cron.Job, 0, len(c.jobs))
	for _, j := range c.jobs {
		jobs = append(jobs, j)
	}
	c.producer.SetJobs(jobs)
}
