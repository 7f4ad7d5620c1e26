package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iago/latex-orchestrator/internal/domain"
)

func TestSweeperCleansExpiredTerminalJob(t *testing.T) {
	o := testOrchestrator(t, 5)
	ctx := context.Background()

	working := filepath.Join(t.TempDir(), "w")
	output := filepath.Join(t.TempDir(), "o")
	if err := os.MkdirAll(working, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(output, 0o755); err != nil {
		t.Fatal(err)
	}

	completedAt := time.Now().Add(-2 * time.Hour)
	job := &domain.Job{
		ID:          "old-job",
		WorkingDir:  working,
		OutputDir:   output,
		Status:      domain.StatusCompleted,
		CompletedAt: &completedAt,
		CreatedAt:   completedAt,
		Stages:      initialStages(),
	}
	if err := o.reg.Insert(ctx, job); err != nil {
		t.Fatal(err)
	}

	s := NewSweeper(o, time.Hour, time.Hour)
	s.sweepOnce(ctx)

	got, err := o.reg.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.StatusCleaned {
		t.Fatalf("expected cleaned, got %s", got.Status)
	}
	if _, err := os.Stat(working); !os.IsNotExist(err) {
		t.Fatalf("expected working dir removed, stat err: %v", err)
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Fatalf("expected output dir removed, stat err: %v", err)
	}
}

func TestSweeperLeavesRecentTerminalJobAlone(t *testing.T) {
	o := testOrchestrator(t, 5)
	ctx := context.Background()

	completedAt := time.Now()
	job := &domain.Job{
		ID:          "fresh-job",
		WorkingDir:  t.TempDir(),
		OutputDir:   t.TempDir(),
		Status:      domain.StatusCompleted,
		CompletedAt: &completedAt,
		CreatedAt:   completedAt,
		Stages:      initialStages(),
	}
	if err := o.reg.Insert(ctx, job); err != nil {
		t.Fatal(err)
	}

	s := NewSweeper(o, time.Hour, time.Hour)
	s.sweepOnce(ctx)

	got, err := o.reg.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.StatusCompleted {
		t.Fatalf("expected job left alone, got %s", got.Status)
	}
}

func TestSweeperIgnoresNonTerminalJob(t *testing.T) {
	o := testOrchestrator(t, 5)
	ctx := context.Background()

	job := &domain.Job{
		ID:        "running-job",
		WorkingDir: t.TempDir(),
		OutputDir:  t.TempDir(),
		Status:    domain.StatusRunning,
		CreatedAt: time.Now().Add(-3 * time.Hour),
		Stages:    initialStages(),
	}
	if err := o.reg.Insert(ctx, job); err != nil {
		t.Fatal(err)
	}

	s := NewSweeper(o, time.Hour, time.Hour)
	s.sweepOnce(ctx)

	got, err := o.reg.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.StatusRunning {
		t.Fatalf("expected running job untouched, got %s", got.Status)
	}
}
