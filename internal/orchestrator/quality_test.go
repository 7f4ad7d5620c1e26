package orchestrator

import "testing"

func TestScoreQualityBaseline(t *testing.T) {
	got := scoreQuality(qualityInput{OutputSizeBytes: 5000})
	if got != 85 {
		t.Fatalf("expected baseline 85, got %d", got)
	}
}

func TestScoreQualityLargeOutputBonus(t *testing.T) {
	got := scoreQuality(qualityInput{OutputSizeBytes: 20 * 1024})
	if got != 90 {
		t.Fatalf("expected 90, got %d", got)
	}
}

func TestScoreQualityTinyOutputPenalty(t *testing.T) {
	got := scoreQuality(qualityInput{OutputSizeBytes: 100})
	if got != 75 {
		t.Fatalf("expected 75, got %d", got)
	}
}

func TestScoreQualityAssetBonusCapped(t *testing.T) {
	got := scoreQuality(qualityInput{OutputSizeBytes: 5000, AssetCount: 20})
	if got != 95 {
		t.Fatalf("expected asset bonus capped at 10 for 95 total, got %d", got)
	}
}

func TestScoreQualityCompileSkippedAndWarningsStack(t *testing.T) {
	got := scoreQuality(qualityInput{OutputSizeBytes: 5000, CompileSkipped: true, PostprocessWarnings: 4})
	want := int(85 - 8 - 6)
	if got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestScoreQualityClampsToZero(t *testing.T) {
	got := scoreQuality(qualityInput{OutputSizeBytes: 100, CompileSkipped: true, PostprocessWarnings: 100})
	if got != 0 {
		t.Fatalf("expected clamp to 0, got %d", got)
	}
}
