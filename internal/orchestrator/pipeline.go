package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/iago/latex-orchestrator/internal/domain"
	"github.com/iago/latex-orchestrator/internal/postprocess"
	"github.com/iago/latex-orchestrator/internal/stages"
)

// pipelineRun drives one Job's stage sequence. It is constructed fresh
// per Job run and discarded once execute returns; all mutable state
// lives on the Job record itself, read/written through the registry.
type pipelineRun struct {
	o           *Orchestrator
	id          string
	archivePath string
}

func (p *pipelineRun) execute(ctx context.Context) {
	job, err := p.o.reg.Get(ctx, p.id)
	if err != nil {
		return
	}

	structure, compileSkipped, ok := p.runAnalyzeThroughCompile(ctx, job)
	if !ok {
		return
	}

	convertOut, ok := p.runConvert(ctx, job, structure)
	if !ok {
		return
	}

	htmlBytes, err := os.ReadFile(convertOut.OutputPath)
	if err != nil {
		p.fail(ctx, domain.StageConvert, domain.ErrConverterFailure, "converted output missing: "+err.Error(), "")
		return
	}

	ppResult, ok := p.runPostprocess(ctx, job, htmlBytes, compileSkipped)
	if !ok {
		return
	}

	p.runValidateAndComplete(ctx, job, ppResult, compileSkipped)
}

// runAnalyzeThroughCompile extracts the archive, analyzes the project,
// ensures declared packages are available, computes the timeout
// budget, and runs the (recoverable) compile stage. Returns the
// ProjectStructure and whether compile was skipped.
func (p *pipelineRun) runAnalyzeThroughCompile(ctx context.Context, job *domain.Job) (*domain.ProjectStructure, bool, bool) {
	p.markRunning(ctx, domain.StageAnalyze)

	extractedDir := filepath.Join(job.WorkingDir, "extracted")
	if err := os.MkdirAll(extractedDir, 0o755); err != nil {
		p.fail(ctx, domain.StageAnalyze, domain.ErrInternal, err.Error(), "")
		return nil, false, false
	}

	if _, err := p.o.extractor.Extract(ctx, p.archivePath, extractedDir); err != nil {
		p.fail(ctx, domain.StageAnalyze, domain.ErrUnsafeArchive, err.Error(), "")
		return nil, false, false
	}

	structure, err := p.o.analyzer.Analyze(extractedDir)
	if err != nil {
		p.fail(ctx, domain.StageAnalyze, domain.ErrNoMainSource, err.Error(), "")
		return nil, false, false
	}

	totalBytes, fileCount := treeStats(extractedDir)
	budget := p.o.calc.Compute(extractedDir, totalBytes, fileCount)
	timeoutSec := budget.TotalSeconds
	if job.Options.MaxProcessingTimeSeconds > 0 && job.Options.MaxProcessingTimeSeconds < timeoutSec {
		timeoutSec = job.Options.MaxProcessingTimeSeconds
	}
	job.TimeoutSec = timeoutSec
	if current, err := p.o.reg.Get(ctx, p.id); err == nil && !current.Status.Terminal() {
		current.TimeoutSec = timeoutSec
		_ = p.o.reg.Update(ctx, current)
	}

	if len(structure.Packages) > 0 {
		p.o.installer.EnsureAvailable(ctx, structure.Packages)
	}

	p.markCompleted(ctx, domain.StageAnalyze, nil)

	compileSkipped := p.runCompile(ctx, job, structure)
	return structure, compileSkipped, true
}

// runCompile executes the recoverable compile stage: any failure marks
// the stage skipped and the pipeline proceeds to conversion (spec
// §4.7/§9 redesign).
func (p *pipelineRun) runCompile(ctx context.Context, job *domain.Job, structure *domain.ProjectStructure) bool {
	p.markRunning(ctx, domain.StageCompile)

	compileDir := filepath.Join(job.OutputDir, "compiler")
	_ = os.MkdirAll(compileDir, 0o755)

	timeout := stageTimeout(job, 0.15)
	outcome := p.o.compiler.Run(ctx, structure.MainSourcePath, filepath.Join(job.WorkingDir, "extracted"), compileDir, timeout)

	if outcome.Recovered {
		kind, suggestions := stages.ClassifyFailure(outcome.Stderr)
		diag := map[string]string{"stderr": outcome.Stderr}
		p.markSkipped(ctx, domain.StageCompile, &domain.ConversionError{
			Kind: kind, Message: "compile failed, proceeding to conversion", Suggestions: suggestions, CapturedStderr: truncateStderr(outcome.Stderr),
		}, diag)
		return true
	}

	p.markCompleted(ctx, domain.StageCompile, map[string]string{"duration_ms": msString(outcome.DurationMillis)})
	return false
}

func (p *pipelineRun) runConvert(ctx context.Context, job *domain.Job, structure *domain.ProjectStructure) (stages.ConvertOutcome, bool) {
	p.markRunning(ctx, domain.StageConvert)

	converterDir := filepath.Join(job.OutputDir, "converter")
	_ = os.MkdirAll(converterDir, 0o755)
	outputPath := filepath.Join(converterDir, "index.html")

	extractedDir := filepath.Join(job.WorkingDir, "extracted")
	timeout := stageTimeout(job, 0.60)
	outcome := p.o.converter.Run(ctx, filepath.Join(extractedDir, structure.MainSourcePath), structure.SearchDirs, outputPath, extractedDir, timeout)

	if !outcome.Success {
		kind, suggestions := stages.ClassifyFailure(outcome.Stderr)
		p.fail(ctx, domain.StageConvert, kind, "conversion failed", outcome.Stderr, suggestions...)
		return outcome, false
	}

	p.markCompleted(ctx, domain.StageConvert, map[string]string{"duration_ms": msString(outcome.DurationMillis)})
	return outcome, true
}

func (p *pipelineRun) runPostprocess(ctx context.Context, job *domain.Job, htmlBytes []byte, compileSkipped bool) (postprocess.Result, bool) {
	p.markRunning(ctx, domain.StagePostprocess)

	assetConverter := p.o.assetConverterFor(job)
	proc := postprocess.New(assetConverter)
	result := proc.Run(ctx, htmlBytes, postprocess.Options{
		SkipImages:   job.Options.SkipImages,
		OutputRelDir: "assets",
	})

	finalPath := filepath.Join(job.OutputDir, "final.html")
	if err := os.WriteFile(finalPath, result.HTML, 0o644); err != nil {
		p.fail(ctx, domain.StagePostprocess, domain.ErrPostProcessing, err.Error(), "")
		return result, false
	}

	diag := map[string]string{}
	if result.Degraded {
		diag["parse_error"] = result.ParseError
	}
	p.markCompleted(ctx, domain.StagePostprocess, diag)
	return result, true
}

func (p *pipelineRun) runValidateAndComplete(ctx context.Context, job *domain.Job, ppResult postprocess.Result, compileSkipped bool) {
	p.markRunning(ctx, domain.StageValidate)

	finalPath := filepath.Join(job.OutputDir, "final.html")
	info, err := os.Stat(finalPath)
	var size int64
	if err == nil {
		size = info.Size()
	}

	assetPaths := collectAssetPaths(filepath.Join(job.OutputDir, "assets"))

	score := scoreQuality(qualityInput{
		OutputSizeBytes:     size,
		AssetCount:          len(assetPaths),
		CompileSkipped:      compileSkipped,
		PostprocessWarnings: len(ppResult.Warnings),
	})

	p.markCompleted(ctx, domain.StageValidate, nil)

	job, err = p.o.reg.Get(ctx, p.id)
	if err != nil {
		return
	}
	if job.Status.Terminal() {
		// a Cancel() (or the stuck-job monitor) landed while validate was
		// running; cancelled supersedes stage outcomes (spec §4.1) and must
		// never be overwritten back to completed.
		return
	}
	now := time.Now()
	job.Status = domain.StatusCompleted
	job.CompletedAt = &now
	job.Result = &domain.ConversionResult{
		HTMLPath:     finalPath,
		AssetPaths:   assetPaths,
		QualityScore: score,
		Warnings:     ppResult.Warnings,
		StageDiagnostics: stageDiagnostics(job),
	}
	_ = p.o.reg.Update(ctx, job)
}

func stageDiagnostics(job *domain.Job) map[domain.StageName]map[string]string {
	out := make(map[domain.StageName]map[string]string)
	for _, s := range job.Stages {
		if s.Diagnostics != nil {
			out[s.Name] = s.Diagnostics
		}
	}
	return out
}

func collectAssetPaths(assetsDir string) []string {
	entries, err := os.ReadDir(assetsDir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			out = append(out, filepath.Join("assets", e.Name()))
		}
	}
	return out
}

func msString(ms int64) string {
	return time.Duration(ms * int64(time.Millisecond)).String()
}

func stageTimeout(job *domain.Job, fraction float64) time.Duration {
	total := time.Duration(job.TimeoutSec) * time.Second
	if total <= 0 {
		total = 600 * time.Second
	}
	return time.Duration(float64(total) * fraction)
}

func treeStats(root string) (int64, int) {
	var total int64
	var count int
	_ = filepath.Walk(root, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			total += info.Size()
			count++
		}
		return nil
	})
	return total, count
}
