package orchestrator

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/iago/latex-orchestrator/internal/domain"
	"github.com/iago/latex-orchestrator/internal/registry"
)

// Sweeper runs independently of the Orchestrator's worker goroutines
// (spec §4.1 "Sweeper runs independently"), periodically transitioning
// terminal Jobs older than RetentionHours to cleaned and removing their
// directories. Deletion errors are logged, never raised.
type Sweeper struct {
	o              *Orchestrator
	interval       time.Duration
	retention      time.Duration
}

func NewSweeper(o *Orchestrator, interval, retention time.Duration) *Sweeper {
	return &Sweeper{o: o, interval: interval, retention: retention}
}

// Run blocks until ctx is cancelled, sweeping on each tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	jobs, err := s.o.reg.List(ctx, registry.ListFilter{})
	if err != nil {
		log.Printf("sweeper: list failed: %v", err)
		return
	}

	cutoff := time.Now().Add(-s.retention)
	for i := range jobs {
		job := jobs[i]
		if !job.Status.Terminal() || job.Status == domain.StatusCleaned {
			continue
		}
		reference := job.CreatedAt
		if job.CompletedAt != nil {
			reference = *job.CompletedAt
		}
		if reference.After(cutoff) {
			continue
		}
		s.clean(ctx, &job)
	}
}

func (s *Sweeper) clean(ctx context.Context, job *domain.Job) {
	if err := os.RemoveAll(job.WorkingDir); err != nil {
		log.Printf("sweeper: removing working dir for job %s: %v", job.ID, err)
	}
	if err := os.RemoveAll(job.OutputDir); err != nil {
		log.Printf("sweeper: removing output dir for job %s: %v", job.ID, err)
	}

	current, err := s.o.reg.Get(ctx, job.ID)
	if err != nil {
		return
	}
	current.Status = domain.StatusCleaned
	if err := s.o.reg.Update(ctx, current); err != nil {
		log.Printf("sweeper: updating job %s to cleaned: %v", job.ID, err)
	}
}
