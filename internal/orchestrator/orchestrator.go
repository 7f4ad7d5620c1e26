// Package orchestrator implements the Orchestrator (spec §4.1): the
// Submit/Status/Cancel/Result public contract, the fixed pipeline state
// machine, admission control, and the per-Job worker that drives a
// submission through analyze, compile, convert, postprocess, and
// validate. Grounded on internal/worker/processor.go's retry-free
// single-pass dispatch loop, re-expressed as a strict sequential state
// machine instead of a message-queue consumer.
package orchestrator

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/iago/latex-orchestrator/internal/analyzer"
	"github.com/iago/latex-orchestrator/internal/archive"
	"github.com/iago/latex-orchestrator/internal/assets"
	"github.com/iago/latex-orchestrator/internal/config"
	"github.com/iago/latex-orchestrator/internal/domain"
	"github.com/iago/latex-orchestrator/internal/packages"
	"github.com/iago/latex-orchestrator/internal/postprocess"
	"github.com/iago/latex-orchestrator/internal/process"
	"github.com/iago/latex-orchestrator/internal/registry"
	"github.com/iago/latex-orchestrator/internal/stages"
	"github.com/iago/latex-orchestrator/internal/timeoutcalc"
)

var (
	ErrCapacityExceeded = errors.New("orchestrator: max concurrent jobs reached")
	ErrNotReady         = errors.New("orchestrator: job has no result yet")
)

var pipelineStages = []domain.StageName{
	domain.StageAnalyze,
	domain.StageCompile,
	domain.StageConvert,
	domain.StagePostprocess,
	domain.StageValidate,
}

// StatusSnapshot is the Status() return value (spec §6 "Status
// interface").
type StatusSnapshot struct {
	Status    domain.Status
	Progress  int
	Stages    []domain.Stage
	Message   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Orchestrator owns the full pipeline: admission, dispatch, and
// per-stage execution. One Orchestrator is constructed per process.
type Orchestrator struct {
	cfg      config.Config
	reg      registry.JobRegistry
	runner   *process.Runner
	extractor *archive.Extractor
	analyzer  *analyzer.Analyzer
	installer *packages.Installer
	calc      *timeoutcalc.Calculator
	compiler  *stages.Compiler
	converter *stages.Converter

	sem *semaphore.Weighted

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	// progress tracks the last-reported progress percentage per job so
	// Status() never regresses it (spec §4.1 "progress is monotonic
	// non-decreasing").
	progress map[string]int
}

func New(cfg config.Config, reg registry.JobRegistry, runner *process.Runner, availabilityCache packages.AvailabilityCache) *Orchestrator {
	if availabilityCache == nil {
		availabilityCache = packages.NewInMemoryCache(5*time.Minute, 1000)
	}
	return &Orchestrator{
		cfg:       cfg,
		reg:       reg,
		runner:    runner,
		extractor: archive.NewExtractor(),
		analyzer:  analyzer.New(),
		installer: packages.NewInstaller(runner, cfg.PackageInstallerPath, availabilityCache),
		calc:      timeoutcalc.New(),
		compiler:  &stages.Compiler{Runner: runner, Path: cfg.CompilerPath},
		converter: &stages.Converter{Runner: runner, Path: cfg.ConverterPath},
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		cancels:   make(map[string]context.CancelFunc),
		progress:  make(map[string]int),
	}
}

// Submit admits one archive upload into the pipeline. The archive is
// persisted to <UploadRoot>/<job-id>/<filename> per spec §6's on-disk
// layout before the worker goroutine starts, so extraction always reads
// from a stable path regardless of how long the request body took to
// arrive. Registry insertion and directory creation succeed or fail
// together (spec §4.1 "Submit ... atomically").
func (o *Orchestrator) Submit(ctx context.Context, archive io.Reader, filename string, opts domain.Options) (string, error) {
	if !o.sem.TryAcquire(1) {
		return "", ErrCapacityExceeded
	}

	id := uuid.NewString()
	workingDir := filepath.Join(o.cfg.UploadRoot, id)
	outputDir := filepath.Join(o.cfg.OutputRoot, id)

	if err := os.MkdirAll(workingDir, 0o755); err != nil {
		o.sem.Release(1)
		return "", err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		o.sem.Release(1)
		os.RemoveAll(workingDir)
		return "", err
	}

	archivePath := filepath.Join(workingDir, filename)
	if err := writeArchive(archivePath, archive); err != nil {
		o.sem.Release(1)
		os.RemoveAll(workingDir)
		os.RemoveAll(outputDir)
		return "", err
	}

	job := &domain.Job{
		ID:         id,
		Filename:   filename,
		WorkingDir: workingDir,
		OutputDir:  outputDir,
		Status:     domain.StatusPending,
		Stages:     initialStages(),
		Options:    opts,
		CreatedAt:  time.Now(),
	}

	if err := o.reg.Insert(ctx, job); err != nil {
		o.sem.Release(1)
		os.RemoveAll(workingDir)
		os.RemoveAll(outputDir)
		return "", err
	}

	go o.run(id, archivePath)
	return id, nil
}

func writeArchive(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, r)
	return err
}

func initialStages() []domain.Stage {
	out := make([]domain.Stage, len(pipelineStages))
	for i, name := range pipelineStages {
		out[i] = domain.Stage{Name: name, Status: domain.StageStatusPending}
	}
	return out
}

// Status returns a consistent snapshot of the Job.
func (o *Orchestrator) Status(ctx context.Context, id string) (StatusSnapshot, error) {
	job, err := o.reg.Get(ctx, id)
	if err != nil {
		return StatusSnapshot{}, err
	}

	elapsed := time.Duration(0)
	if job.StartedAt != nil {
		end := time.Now()
		if job.CompletedAt != nil {
			end = *job.CompletedAt
		}
		elapsed = end.Sub(*job.StartedAt)
	}

	raw := computeProgress(job.Stages, elapsed)

	o.mu.Lock()
	last := o.progress[id]
	next := monotonicProgress(last, raw)
	if job.Status.Terminal() {
		next = 100
		if job.Status == domain.StatusFailed || job.Status == domain.StatusCancelled {
			next = last
			if next < raw {
				next = raw
			}
		}
	}
	o.progress[id] = next
	o.mu.Unlock()

	msg := ""
	if job.Error != nil {
		msg = job.Error.Message
	}

	return StatusSnapshot{
		Status:    job.Status,
		Progress:  next,
		Stages:    job.Stages,
		Message:   msg,
		CreatedAt: job.CreatedAt,
		UpdatedAt: lastStageTimestamp(job),
	}, nil
}

func lastStageTimestamp(job *domain.Job) time.Time {
	latest := job.CreatedAt
	for _, s := range job.Stages {
		if s.EndedAt != nil && s.EndedAt.After(latest) {
			latest = *s.EndedAt
		}
		if s.StartedAt != nil && s.StartedAt.After(latest) {
			latest = *s.StartedAt
		}
	}
	return latest
}

// Cancel is idempotent and a no-op on terminal jobs. It records the
// terminal status as user-requested cancellation (spec §7: "Cancelled
// ... user-requested termination").
func (o *Orchestrator) Cancel(ctx context.Context, id string) error {
	return o.cancelWithReason(ctx, id, domain.ErrCancelled, "job cancelled")
}

// cancelForTimeout is the stuck-job monitor's entry point: it carries
// the same status transition as Cancel but records ErrTimeoutExceeded
// so callers can tell "the user cancelled this" apart from "the overall
// job budget ran out" (spec §7).
func (o *Orchestrator) cancelForTimeout(ctx context.Context, id string) error {
	return o.cancelWithReason(ctx, id, domain.ErrTimeoutExceeded, "job exceeded its timeout budget")
}

func (o *Orchestrator) cancelWithReason(ctx context.Context, id string, kind domain.ErrorKind, message string) error {
	job, err := o.reg.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return nil
	}

	o.mu.Lock()
	cancel, ok := o.cancels[id]
	o.mu.Unlock()
	if ok {
		cancel()
	}

	job.Status = domain.StatusCancelled
	now := time.Now()
	job.CompletedAt = &now
	job.Error = &domain.ConversionError{Kind: kind, Message: message}
	return o.reg.Update(ctx, job)
}

// ActiveJobCount reports how many jobs are pending or running, for the
// health endpoint's diagnostics (spec §6 health surface).
func (o *Orchestrator) ActiveJobCount() int {
	return o.reg.CountActive()
}

// Result returns the terminal ConversionResult or ConversionError.
func (o *Orchestrator) Result(ctx context.Context, id string) (*domain.ConversionResult, *domain.ConversionError, error) {
	job, err := o.reg.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !job.Status.Terminal() {
		return nil, nil, ErrNotReady
	}
	return job.Result, job.Error, nil
}

func (o *Orchestrator) run(id, archivePath string) {
	defer o.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	o.mu.Lock()
	o.cancels[id] = cancel
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.cancels, id)
		o.mu.Unlock()
		cancel()
	}()

	job, err := o.reg.Get(ctx, id)
	if err != nil || job.Status.Terminal() {
		return
	}

	now := time.Now()
	job.Status = domain.StatusRunning
	job.StartedAt = &now
	_ = o.reg.Update(ctx, job)

	p := &pipelineRun{o: o, id: id, archivePath: archivePath}
	p.execute(ctx)
}

// assetConverterFor builds the postprocess.AssetConverter for a single
// job's working/output directories, or returns nil when the job skips
// images. Kept separate so pipelineRun stays focused on sequencing
// rather than construction.
func (o *Orchestrator) assetConverterFor(job *domain.Job) postprocess.AssetConverter {
	if job.Options.SkipImages {
		return nil
	}
	return assets.New(o.runner, o.cfg.CompilerPath, o.cfg.VectorizerPath, o.cfg.RasterFallbackPath, job.WorkingDir, filepath.Join(job.OutputDir, "assets"))
}
