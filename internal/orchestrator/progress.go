package orchestrator

import (
	"time"

	"github.com/iago/latex-orchestrator/internal/domain"
)

// timeFloors implements the "UI always advances" guarantee from
// spec §4.1: a minimum progress percentage keyed by elapsed job time,
// independent of how far the pipeline has actually gotten.
var timeFloors = []struct {
	after    time.Duration
	floorPct int
}{
	{30 * time.Second, 1},
	{2 * time.Minute, 2},
	{5 * time.Minute, 3},
	{10 * time.Minute, 4},
}

// computeProgress derives the overall 0-100 progress for a Job from its
// stage array and elapsed time: completed/skipped stages count fully,
// the currently running stage contributes its own fractional progress,
// and a time-based floor is applied last.
func computeProgress(stages []domain.Stage, elapsed time.Duration) int {
	if len(stages) == 0 {
		return 0
	}

	done := 0
	var currentFraction float64
	for _, s := range stages {
		switch s.Status {
		case domain.StageStatusCompleted, domain.StageStatusSkipped:
			done++
		case domain.StageStatusRunning:
			currentFraction = float64(s.Progress) / 100
		}
	}

	raw := (float64(done) + currentFraction) / float64(len(stages)) * 100

	floor := 0
	for _, f := range timeFloors {
		if elapsed >= f.after {
			floor = f.floorPct
		}
	}

	pct := int(raw)
	if pct < floor {
		pct = floor
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}

// monotonicProgress never returns a value lower than last, satisfying
// the "progress is monotonic non-decreasing within a Job" invariant.
func monotonicProgress(last, next int) int {
	if next < last {
		return last
	}
	return next
}
