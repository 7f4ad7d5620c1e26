package packages

import (
	"context"
	"strings"

	"github.com/iago/latex-orchestrator/internal/process"
)

// PackageResult records the outcome of attempting to install one
// declared package.
type PackageResult struct {
	Name      string
	Installed bool
	Reason    string
}

// InstallResult is the outcome of a full install pass. Installer never
// fails the stage it's called from (spec §4.5) — every outcome, even
// "no installer available", is reported here rather than returned as an
// error.
type InstallResult struct {
	ToolAvailable bool
	Results       []PackageResult
	Warnings      []string
}

// Installer invokes the configured package-installer binary once per
// missing declared package. A probe that hits the cache never spawns a
// process.
type Installer struct {
	runner        *process.Runner
	installerPath string
	cache         AvailabilityCache
}

func NewInstaller(runner *process.Runner, installerPath string, cache AvailabilityCache) *Installer {
	return &Installer{runner: runner, installerPath: installerPath, cache: cache}
}

// EnsureAvailable probes and, for anything missing, attempts to install
// every package name declared by the project analyzer.
func (in *Installer) EnsureAvailable(ctx context.Context, packages []string) InstallResult {
	toolAvailable := in.probeTool(ctx)
	result := InstallResult{ToolAvailable: toolAvailable, Results: make([]PackageResult, 0, len(packages))}

	if !toolAvailable {
		result.Warnings = append(result.Warnings, "package installer binary unavailable; skipping all installs")
		for _, name := range packages {
			result.Results = append(result.Results, PackageResult{Name: name, Installed: false, Reason: "installer unavailable"})
		}
		return result
	}

	for _, name := range packages {
		if available, found := in.cache.Get(name); found && available {
			result.Results = append(result.Results, PackageResult{Name: name, Installed: true, Reason: "cached"})
			continue
		}

		installed, reason := in.installOne(ctx, name)
		in.cache.Set(name, installed)
		result.Results = append(result.Results, PackageResult{Name: name, Installed: installed, Reason: reason})
		if !installed {
			result.Warnings = append(result.Warnings, "failed to install package "+name+": "+reason)
		}
	}
	return result
}

func (in *Installer) probeTool(ctx context.Context) bool {
	res, err := in.runner.Run(ctx, process.Spec{
		Argv: []string{in.installerPath, "--version"},
	})
	if err != nil {
		return false
	}
	return res.ExitCode == 0
}

func (in *Installer) installOne(ctx context.Context, name string) (bool, string) {
	res, err := in.runner.Run(ctx, process.Spec{
		Argv: []string{in.installerPath, "install", name},
	})
	if err != nil {
		return false, err.Error()
	}
	if res.ExitCode != 0 {
		return false, strings.TrimSpace(res.Stderr)
	}
	return true, "installed"
}
