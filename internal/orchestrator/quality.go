package orchestrator

// qualityInput carries the observations the scorer needs. It is kept
// separate from domain.Job so the scoring function stays a pure
// function of plain values, following the shape of the teacher's
// OutputValidator (accumulate penalties/bonuses, then clamp once at
// the end) rather than mutating state as it goes.
type qualityInput struct {
	OutputSizeBytes   int64
	AssetCount        int
	CompileSkipped    bool
	PostprocessWarnings int
}

const (
	baseQualityScore = 85.0

	largeOutputBytes = 10 * 1024
	tinyOutputBytes  = 1024
	largeOutputBonus = 5.0
	tinyOutputPenalty = 10.0

	perAssetBonus   = 2.0
	maxAssetBonus   = 10.0

	compileSkippedPenalty = 8.0
	perWarningPenalty     = 1.5
	maxWarningPenalty     = 15.0
)

// scoreQuality computes the 0-100 quality score recorded on a completed
// Job's ConversionResult. Grounded on
// original_source/app/services/pipeline.py's _calculate_quality_score
// (base score plus size/asset-count adjustments), extended with a
// penalty for a skipped compile stage and for accumulated
// post-processing warnings, scored with the teacher's
// accumulate-then-clamp01 discipline from quality/output_validator.go.
func scoreQuality(in qualityInput) int {
	score := baseQualityScore

	switch {
	case in.OutputSizeBytes > largeOutputBytes:
		score += largeOutputBonus
	case in.OutputSizeBytes < tinyOutputBytes:
		score -= tinyOutputPenalty
	}

	if in.AssetCount > 0 {
		score += min64(float64(in.AssetCount)*perAssetBonus, maxAssetBonus)
	}

	if in.CompileSkipped {
		score -= compileSkippedPenalty
	}

	if in.PostprocessWarnings > 0 {
		score -= min64(float64(in.PostprocessWarnings)*perWarningPenalty, maxWarningPenalty)
	}

	return int(clamp01to100(score))
}

func clamp01to100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
