package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/iago/latex-orchestrator/internal/domain"
)

func TestMonitorCancelsJobPastItsTimeoutBudget(t *testing.T) {
	o := testOrchestrator(t, 5)
	ctx := context.Background()

	started := time.Now().Add(-10 * time.Minute)
	job := &domain.Job{
		ID:         "stuck-job",
		WorkingDir: t.TempDir(),
		OutputDir:  t.TempDir(),
		Status:     domain.StatusRunning,
		StartedAt:  &started,
		TimeoutSec: 60,
		CreatedAt:  started,
		Stages:     initialStages(),
	}
	if err := o.reg.Insert(ctx, job); err != nil {
		t.Fatal(err)
	}

	m := NewMonitor(o, 10*time.Second)
	m.checkOnce(ctx)

	got, err := o.reg.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}
}

func TestMonitorLeavesFreshJobRunning(t *testing.T) {
	o := testOrchestrator(t, 5)
	ctx := context.Background()

	started := time.Now()
	job := &domain.Job{
		ID:         "fresh-running-job",
		WorkingDir: t.TempDir(),
		OutputDir:  t.TempDir(),
		Status:     domain.StatusRunning,
		StartedAt:  &started,
		TimeoutSec: 600,
		CreatedAt:  started,
		Stages:     initialStages(),
	}
	if err := o.reg.Insert(ctx, job); err != nil {
		t.Fatal(err)
	}

	m := NewMonitor(o, 10*time.Second)
	m.checkOnce(ctx)

	got, err := o.reg.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.StatusRunning {
		t.Fatalf("expected still running, got %s", got.Status)
	}
}
