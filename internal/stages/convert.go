package stages

import (
	"context"
	"time"

	"github.com/iago/latex-orchestrator/internal/process"
)

// Converter invokes the configured TeX->HTML converter with the required
// options from spec §4.8: disable comments, enable caching, enable
// parallelism, preload the fixed module list. A non-zero exit is NOT
// recoverable (unlike the compile stage): the whole job fails.
type Converter struct {
	Runner *process.Runner
	Path   string
}

var preloadModules = []string{"amsmath", "amssymb", "graphicx", "overpic"}

type ConvertOutcome struct {
	Success        bool
	OutputPath     string
	Stderr         string
	DurationMillis int64
}

func (c *Converter) Run(
	ctx context.Context,
	mainTexAbsPath string,
	searchDirs []string,
	outputPath string,
	workingDir string,
	timeout time.Duration,
) ConvertOutcome {
	argv := []string{
		c.Path,
		"--nocomments",
		"--cache=1",
		"--parallelmath",
		"--dest=" + outputPath,
	}
	for _, m := range preloadModules {
		argv = append(argv, "--preload="+m)
	}
	for _, dir := range searchDirs {
		argv = append(argv, "--path="+dir)
	}
	argv = append(argv, mainTexAbsPath)

	start := time.Now()
	res, err := c.Runner.Run(ctx, process.Spec{
		Argv:    argv,
		Dir:     workingDir,
		Timeout: timeout,
	})
	duration := time.Since(start).Milliseconds()

	if err != nil {
		return ConvertOutcome{Success: false, Stderr: err.Error(), DurationMillis: duration}
	}
	if res.ExitCode != 0 {
		return ConvertOutcome{Success: false, Stderr: truncate(res.Stderr, 64*1024), DurationMillis: duration}
	}
	return ConvertOutcome{Success: true, OutputPath: outputPath, DurationMillis: duration}
}
