// Package stages implements the Compilation and Conversion stages
// (spec §4.7, §4.8), each a thin wrapper invoking the process Runner and
// classifying the outcome.
package stages

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iago/latex-orchestrator/internal/domain"
	"github.com/iago/latex-orchestrator/internal/process"
)

// CompileOutcome is the result of running the LaTeX compiler. A non-zero
// exit is recoverable: the caller marks the stage skipped and continues
// to conversion rather than failing the job (spec §4.7/§9 redesign).
type CompileOutcome struct {
	Recovered      bool
	Stderr         string
	DurationMillis int64
}

// Compiler invokes the configured LaTeX compiler binary non-interactively,
// with shell-escape disabled and halt-on-error set, producing an
// intermediate PDF inside the job's working area.
type Compiler struct {
	Runner *process.Runner
	Path   string
}

func (c *Compiler) Run(ctx context.Context, mainTexRelPath, workingDir, outDir string, timeout time.Duration) CompileOutcome {
	start := time.Now()
	res, err := c.Runner.Run(ctx, process.Spec{
		Argv: []string{
			c.Path,
			"--halt-on-error",
			"--no-shell-escape",
			"--outdir", outDir,
			mainTexRelPath,
		},
		Dir:     workingDir,
		Timeout: timeout,
	})
	duration := time.Since(start).Milliseconds()

	if err != nil {
		return CompileOutcome{Recovered: true, Stderr: err.Error(), DurationMillis: duration}
	}
	if res.ExitCode != 0 {
		return CompileOutcome{Recovered: true, Stderr: truncate(res.Stderr, 64*1024), DurationMillis: duration}
	}
	return CompileOutcome{Recovered: false, DurationMillis: duration}
}

// ClassifyFailure infers a likely cause from captured stderr (spec §7:
// suggestions drawn from a stderr-substring lookup keyed by kind).
func ClassifyFailure(stderr string) (kind domain.ErrorKind, suggestions []string) {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "! latex error") && strings.Contains(lower, "file") && strings.Contains(lower, "not found"):
		return domain.ErrNoMainSource, []string{"verify every \\input/\\include target is present in the archive"}
	case strings.Contains(lower, "undefined control sequence"):
		return domain.ErrConverterFailure, []string{"an undefined macro was used; check for a missing \\usepackage"}
	case strings.Contains(lower, "out of memory") || strings.Contains(lower, "texmf memory"):
		return domain.ErrConverterFailure, []string{"document exceeded available memory; consider splitting large figures"}
	case strings.Contains(lower, "! package") && strings.Contains(lower, "error"):
		return domain.ErrConverterFailure, []string{"a declared package failed to load; it may be missing from the installation"}
	default:
		return domain.ErrConverterFailure, []string{"inspect captured stderr for the root cause"}
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + fmt.Sprintf("...[truncated, original %d bytes]", len(s))
}
