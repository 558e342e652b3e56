package tools

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/vargos/internal/bus"
	"github.com/nextlevelbuilder/vargos/internal/cron"
)

func TestCronToolsetScheduleListCancel(t *testing.T) {
	producer := cron.New(time.Minute, func(cron.Job, bus.NormalizedInput) {}, nil)
	r := NewRegistry()
	NewCronToolset(producer, "main").Register(r)
	ctx := context.Background()

	out, err := r.InvokeTool(ctx, "cli:local", "cron_list", nil)
	if err != nil {
		t.Fatalf("cron_list on empty set: %v", err)
	}
	if out != "no scheduled jobs" {
		t.Fatalf("cron_list = %q, want %q", out, "no scheduled jobs")
	}

	out, err = r.InvokeTool(ctx, "cli:local", "cron_schedule", map[string]interface{}{
		"schedule": "0 9 * * *", "message": "stand up",
	})
	if err != nil {
		t.Fatalf("cron_schedule: %v", err)
	}
	if !strings.Contains(out, "scheduled job") {
		t.Fatalf("cron_schedule = %q", out)
	}

	id := strings.Fields(out)[2]

	out, err = r.InvokeTool(ctx, "cli:local", "cron_list", nil)
	if err != nil {
		t.Fatalf("cron_list: %v", err)
	}
	if !strings.Contains(out, "stand up") {
		t.Fatalf("cron_list after schedule = %q, want it to mention the job", out)
	}

	if _, err := r.InvokeTool(ctx, "cli:local", "cron_cancel", map[string]interface{}{"id": id}); err != nil {
		t.Fatalf("cron_cancel: %v", err)
	}

	out, err = r.InvokeTool(ctx, "cli:local", "cron_list", nil)
	if err != nil {
		t.Fatalf("cron_list after cancel: %v", err)
	}
	if out != "no scheduled jobs" {
		t.Fatalf("cron_list after cancel = %q, want empty", out)
	}
}

func TestCronToolsetScheduleRejectsInvalidExpression(t *testing.T) {
	producer := cron.New(time.Minute, func(cron.Job, bus.NormalizedInput) {}, nil)
	r := NewRegistry()
	NewCronToolset(producer, "main").Register(r)

	_, err := r.InvokeTool(context.Background(), "cli:local", "cron_schedule", map[string]interface{}{
		"schedule": "not a schedule", "message": "x",
	})
	if err == nil {
		t.Fatal("cron_schedule with an invalid expression succeeded, want an error")
	}
}

func TestCronToolsetCancelUnknownID(t *testing.T) {
	producer := cron.New(time.Minute, func(cron.Job, bus.NormalizedInput) {}, nil)
	r := NewRegistry()
	NewCronToolset(producer, "main").Register(r)

	_, err := r.InvokeTool(context.Background(), "cli:local", "cron_cancel", map[string]interface{}{"id": "nope"})
	if err == nil {
		t.Fatal("cron_cancel with an unknown id succeeded, want an error")
	}
}
