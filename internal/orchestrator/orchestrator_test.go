package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iago/latex-orchestrator/internal/config"
	"github.com/iago/latex-orchestrator/internal/domain"
	"github.com/iago/latex-orchestrator/internal/process"
	"github.com/iago/latex-orchestrator/internal/registry"
)

func testOrchestrator(t *testing.T, maxConcurrent int) *Orchestrator {
	t.Helper()
	root := t.TempDir()
	cfg := config.Config{
		MaxConcurrent: maxConcurrent,
		UploadRoot:    filepath.Join(root, "uploads"),
		OutputRoot:    filepath.Join(root, "outputs"),
		CompilerPath:  "/bin/true",
		ConverterPath: "/bin/true",
	}
	reg := registry.NewMemoryRegistry()
	runner := process.NewRunner(100, 100, "/bin/true")
	return New(cfg, reg, runner, nil)
}

func TestSubmitCreatesJobDirectories(t *testing.T) {
	o := testOrchestrator(t, 5)

	id, err := o.Submit(context.Background(), strings.NewReader("not a real archive"), "paper.zip", domain.Options{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	job, err := o.reg.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := os.Stat(job.WorkingDir); err != nil {
		t.Fatalf("expected working dir to exist: %v", err)
	}
	if _, err := os.Stat(job.OutputDir); err != nil {
		t.Fatalf("expected output dir to exist: %v", err)
	}
	if len(job.Stages) != len(pipelineStages) {
		t.Fatalf("expected %d stages, got %d", len(pipelineStages), len(job.Stages))
	}
}

func TestSubmitRejectsOverCapacity(t *testing.T) {
	o := testOrchestrator(t, 1)
	ctx := context.Background()

	if _, err := o.Submit(ctx, strings.NewReader("x"), "a.zip", domain.Options{}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := o.Submit(ctx, strings.NewReader("x"), "b.zip", domain.Options{}); err != ErrCapacityExceeded {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
}

func TestCancelOnPendingJobTransitionsToCancelled(t *testing.T) {
	o := testOrchestrator(t, 5)
	ctx := context.Background()

	job := &domain.Job{
		ID:         "fixed-id",
		WorkingDir: t.TempDir(),
		OutputDir:  t.TempDir(),
		Status:     domain.StatusPending,
		Stages:     initialStages(),
		CreatedAt:  time.Now(),
	}
	if err := o.reg.Insert(ctx, job); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := o.Cancel(ctx, job.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	got, err := o.reg.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}
	if got.Error == nil || got.Error.Kind != domain.ErrCancelled {
		t.Fatalf("expected ErrCancelled recorded, got %+v", got.Error)
	}
}

func TestCancelOnTerminalJobIsNoop(t *testing.T) {
	o := testOrchestrator(t, 5)
	ctx := context.Background()

	completedAt := time.Now()
	job := &domain.Job{
		ID:          "done-id",
		WorkingDir:  t.TempDir(),
		OutputDir:   t.TempDir(),
		Status:      domain.StatusCompleted,
		CompletedAt: &completedAt,
		Stages:      initialStages(),
		CreatedAt:   time.Now(),
		Result:      &domain.ConversionResult{QualityScore: 90},
	}
	if err := o.reg.Insert(ctx, job); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := o.Cancel(ctx, job.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	got, err := o.reg.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.StatusCompleted {
		t.Fatalf("expected completed status preserved, got %s", got.Status)
	}
	if got.Result == nil || got.Result.QualityScore != 90 {
		t.Fatalf("expected result preserved, got %+v", got.Result)
	}
}

func TestResultReturnsNotReadyBeforeTerminal(t *testing.T) {
	o := testOrchestrator(t, 5)
	ctx := context.Background()

	job := &domain.Job{
		ID:        "running-id",
		Status:    domain.StatusRunning,
		Stages:    initialStages(),
		CreatedAt: time.Now(),
	}
	if err := o.reg.Insert(ctx, job); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if _, _, err := o.Result(ctx, job.ID); err != ErrNotReady {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestStatusSnapshotReflectsStageProgress(t *testing.T) {
	o := testOrchestrator(t, 5)
	ctx := context.Background()

	started := time.Now().Add(-1 * time.Minute)
	job := &domain.Job{
		ID:        "status-id",
		Status:    domain.StatusRunning,
		StartedAt: &started,
		Stages: []domain.Stage{
			{Name: domain.StageAnalyze, Status: domain.StageStatusCompleted},
			{Name: domain.StageCompile, Status: domain.StageStatusSkipped},
			{Name: domain.StageConvert, Status: domain.StageStatusRunning, Progress: 50},
			{Name: domain.StagePostprocess, Status: domain.StageStatusPending},
			{Name: domain.StageValidate, Status: domain.StageStatusPending},
		},
		CreatedAt: time.Now(),
	}
	if err := o.reg.Insert(ctx, job); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	snap, err := o.Status(ctx, job.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if snap.Progress != 50 {
		t.Fatalf("expected progress 50, got %d", snap.Progress)
	}
	if snap.Status != domain.StatusRunning {
		t.Fatalf("expected running, got %s", snap.Status)
	}
}
