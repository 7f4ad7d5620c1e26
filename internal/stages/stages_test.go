package stages

import (
	"testing"

	"github.com/iago/latex-orchestrator/internal/domain"
)

func TestClassifyFailureMissingFile(t *testing.T) {
	kind, suggestions := ClassifyFailure("! LaTeX Error: File `foo.tex' not found.")
	if kind != domain.ErrNoMainSource {
		t.Fatalf("expected ErrNoMainSource, got %s", kind)
	}
	if len(suggestions) == 0 {
		t.Fatal("expected at least one suggestion")
	}
}

func TestClassifyFailureUndefinedMacro(t *testing.T) {
	kind, _ := ClassifyFailure("Undefined control sequence.\n\\foo")
	if kind != domain.ErrConverterFailure {
		t.Fatalf("expected ErrConverterFailure, got %s", kind)
	}
}

func TestTruncateShortensLongOutput(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'x'
	}
	out := truncate(string(long), 10)
	if len(out) <= 10 {
		t.Fatal("expected truncation marker appended")
	}
}
