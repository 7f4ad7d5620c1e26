package analyzer

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestAnalyzeSelectsCandidateMainFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "notes.tex"), `\documentclass{article}`)
	writeFile(t, filepath.Join(root, "main.tex"), "\\documentclass{article}\n\\usepackage{amsmath}\n\\usepackage[utf8]{inputenc}")

	a := New()
	structure, err := a.Analyze(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if structure.MainSourcePath != "main.tex" {
		t.Fatalf("expected main.tex, got %s", structure.MainSourcePath)
	}
	if structure.DocumentClass != "article" {
		t.Fatalf("expected article class, got %s", structure.DocumentClass)
	}
	found := false
	for _, p := range structure.Packages {
		if p == "amsmath" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected amsmath in packages, got %v", structure.Packages)
	}
}

func TestAnalyzeFallsBackToLargestShallowestFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.tex"), "short")
	writeFile(t, filepath.Join(root, "deep", "b.tex"), "this one is a lot longer than the shallow file")

	a := New()
	structure, err := a.Analyze(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if structure.MainSourcePath != "a.tex" {
		t.Fatalf("expected shallowest file a.tex, got %s", structure.MainSourcePath)
	}
}

func TestAnalyzeNoMainSource(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "readme.md"), "no tex here")

	a := New()
	_, err := a.Analyze(root)
	if err != ErrNoMainSource {
		t.Fatalf("expected ErrNoMainSource, got %v", err)
	}
}
