package assets

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iago/latex-orchestrator/internal/postprocess"
	"github.com/iago/latex-orchestrator/internal/process"
)

func TestConvertAssetRejectsUnknownKind(t *testing.T) {
	dir := t.TempDir()
	c := New(process.NewRunner(0, 0, "tectonic", "dvisvgm", "pdftoppm"), "tectonic", "dvisvgm", "pdftoppm", dir, dir)

	if _, ok := c.ConvertAsset(context.Background(), postprocess.AssetReference{Path: "x.eps", Kind: "eps"}); ok {
		t.Fatal("expected unknown asset kind to fail conversion")
	}
}

func TestConvertPDFFallsBackWhenVectorizerMissing(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "figure.pdf")
	if err := os.WriteFile(src, []byte("%PDF-1.4 stub"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(process.NewRunner(0, 0, "tectonic", "definitely-not-a-real-vectorizer", "pdftoppm"), "tectonic", "definitely-not-a-real-vectorizer", "pdftoppm", dir, dir)
	_, ok := c.ConvertAsset(context.Background(), postprocess.AssetReference{Path: "figure.pdf", Kind: "pdf"})
	if ok {
		t.Fatal("expected conversion to fail when neither vectorizer nor raster fallback tool is present")
	}
}

func TestBuildTikZWrapperWrapsFragment(t *testing.T) {
	out := string(buildTikZWrapper("\\begin{tikzpicture}\\draw (0,0) -- (1,1);\\end{tikzpicture}"))
	if !strings.Contains(out, "\\documentclass{standalone}") || !strings.Contains(out, "tikzpicture") {
		t.Fatalf("expected wrapper to embed fragment inside a standalone document, got: %s", out)
	}
}
