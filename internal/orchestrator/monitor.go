package orchestrator

import (
	"context"
	"log"
	"time"

	"github.com/iago/latex-orchestrator/internal/domain"
	"github.com/iago/latex-orchestrator/internal/registry"
)

const monitorInterval = 30 * time.Second

// Monitor periodically cancels Jobs that have been running far longer
// than their own computed timeout budget allows, guarding against a
// worker goroutine wedged on a process that somehow escaped the
// Process Runner's own timeout (e.g. a hung filesystem call). Grounded
// on original_source/app/services/orchestrator.py's
// _check_stuck_jobs/_monitor_loop: a fixed 30s poll, cancel anything
// running well past its own allotted duration. Not named as a spec.md
// component; it supplements the spec's §4.1 cancellation semantics
// rather than replacing them.
type Monitor struct {
	o       *Orchestrator
	grace   time.Duration
}

// NewMonitor constructs a Monitor. grace is added on top of each Job's
// own TimeoutSec before it is considered stuck, to avoid racing a
// stage that is legitimately finishing up against its own deadline.
func NewMonitor(o *Orchestrator, grace time.Duration) *Monitor {
	return &Monitor{o: o, grace: grace}
}

func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkOnce(ctx)
		}
	}
}

func (m *Monitor) checkOnce(ctx context.Context) {
	jobs, err := m.o.reg.List(ctx, registry.ListFilter{})
	if err != nil {
		log.Printf("monitor: list failed: %v", err)
		return
	}

	now := time.Now()
	for _, job := range jobs {
		if job.Status != domain.StatusRunning || job.StartedAt == nil {
			continue
		}
		budget := time.Duration(job.TimeoutSec)*time.Second + m.grace
		if now.Sub(*job.StartedAt) <= budget {
			continue
		}
		log.Printf("monitor: job %s exceeded its timeout budget, cancelling", job.ID)
		if err := m.o.cancelForTimeout(ctx, job.ID); err != nil {
			log.Printf("monitor: cancelling job %s: %v", job.ID, err)
		}
	}
}
