package orchestrator

import (
	"context"
	"time"

	"github.com/iago/latex-orchestrator/internal/domain"
)

// updateStage re-fetches the Job fresh from the registry, applies mutate
// to its named stage, and writes the result back — unless the job has
// already reached a terminal status. A Cancel() (or the stuck-job
// monitor) can write Cancelled to the registry between any two stage
// boundaries; re-fetching and bailing out here is what makes "cancelled
// supersedes stage outcomes" (spec §4.1) hold instead of racing, the
// same pattern sweeper.go and fail() already use for their own writes.
func (p *pipelineRun) updateStage(ctx context.Context, name domain.StageName, mutate func(*domain.Stage)) {
	current, err := p.o.reg.Get(ctx, p.id)
	if err != nil || current.Status.Terminal() {
		return
	}
	s := current.StageByName(name)
	if s == nil {
		return
	}
	mutate(s)
	_ = p.o.reg.Update(ctx, current)
}

func (p *pipelineRun) markRunning(ctx context.Context, name domain.StageName) {
	p.updateStage(ctx, name, func(s *domain.Stage) {
		now := time.Now()
		s.Status = domain.StageStatusRunning
		s.StartedAt = &now
		s.Progress = 0
	})
}

func (p *pipelineRun) markCompleted(ctx context.Context, name domain.StageName, diagnostics map[string]string) {
	p.updateStage(ctx, name, func(s *domain.Stage) {
		now := time.Now()
		s.Status = domain.StageStatusCompleted
		s.EndedAt = &now
		s.Progress = 100
		if diagnostics != nil {
			s.Diagnostics = diagnostics
		}
	})
}

func (p *pipelineRun) markSkipped(ctx context.Context, name domain.StageName, convErr *domain.ConversionError, diagnostics map[string]string) {
	p.updateStage(ctx, name, func(s *domain.Stage) {
		now := time.Now()
		s.Status = domain.StageStatusSkipped
		s.EndedAt = &now
		s.Error = convErr
		if diagnostics != nil {
			s.Diagnostics = diagnostics
		}
	})
}

// fail marks the given stage failed, transitions the whole Job to
// failed, and persists a ConversionError (spec §4.1: "any other
// failure transitions the Job to failed"). It re-fetches the Job and
// bails out if it is already terminal, so a concurrent Cancel() always
// wins over a failure that was already in flight.
func (p *pipelineRun) fail(ctx context.Context, name domain.StageName, kind domain.ErrorKind, message, stderr string, suggestions ...string) {
	job, err := p.o.reg.Get(ctx, p.id)
	if err != nil || job.Status.Terminal() {
		return
	}

	s := job.StageByName(name)
	now := time.Now()
	if s != nil {
		s.Status = domain.StageStatusFailed
		s.EndedAt = &now
	}

	convErr := &domain.ConversionError{
		Kind:           kind,
		Message:        message,
		Stage:          name,
		Suggestions:    suggestions,
		CapturedStderr: truncateStderr(stderr),
	}

	job.Status = domain.StatusFailed
	job.CompletedAt = &now
	job.Error = convErr
	_ = p.o.reg.Update(ctx, job)
}

const maxCapturedStderr = 64 * 1024

func truncateStderr(s string) string {
	if len(s) <= maxCapturedStderr {
		return s
	}
	return s[:maxCapturedStderr]
}
