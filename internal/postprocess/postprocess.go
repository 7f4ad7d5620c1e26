// Package postprocess implements the Post-Processor (spec §4.9): a fixed,
// ordered transformation sequence applied to the conversion stage's HTML
// before a Job is reported complete. Every regular expression used across
// the package is compiled exactly once, at package init, following the
// same discipline the teacher used for its PII and content-policy
// matchers: precompile, then run a single enumeration pass per
// transformation class.
package postprocess

import (
	"bytes"
	"context"

	"golang.org/x/net/html"
)

// AssetConverter is the subset of internal/assets.Converter the
// Post-Processor needs: convert one referenced asset and report the
// path to substitute in its place. Declared here (not imported from
// internal/assets) to keep the dependency direction one-way.
type AssetConverter interface {
	ConvertAsset(ctx context.Context, ref AssetReference) (newPath string, ok bool)
}

// AssetReference describes one PDF or TikZ asset discovered in the
// converted HTML, identified by its src/href attribute value.
type AssetReference struct {
	Path string
	Kind string // "pdf" or "tikz"
}

// Options controls which optional transformation steps run.
type Options struct {
	SkipImages bool
	// OutputRelDir is the directory, relative to the final HTML file,
	// that asset and image paths are rewritten to be relative to.
	OutputRelDir string
}

// Result carries everything the orchestrator needs to record about a
// post-processing run: whether it degraded to a skeleton document, and
// the warnings accumulated by individual steps (spec §4.9 item 1).
type Result struct {
	HTML           []byte
	Degraded       bool
	ParseError     string
	Warnings       []string
	AssetsRewritten int
}

// Processor runs the fixed transformation sequence over one HTML
// document. A single Processor is safe to reuse across documents: all
// its regexes are package-level and compiled once.
type Processor struct {
	Assets AssetConverter
}

func New(assets AssetConverter) *Processor {
	return &Processor{Assets: assets}
}

// Run applies the full fixed sequence from spec §4.9 in order. It never
// returns an error: a parse failure degrades to a minimal skeleton
// document rather than failing the job, per item 1.
func (p *Processor) Run(ctx context.Context, input []byte, opts Options) Result {
	doc, err := html.Parse(bytes.NewReader(input))
	if err != nil {
		skeleton := minimalSkeleton()
		return Result{HTML: skeleton, Degraded: true, ParseError: err.Error()}
	}

	var warnings []string

	sanitizeScripts(doc)

	assetsRewritten := 0
	if !opts.SkipImages && p.Assets != nil {
		n, w := convertAssets(ctx, doc, p.Assets)
		assetsRewritten = n
		warnings = append(warnings, w...)
	}

	repairCitations(doc)
	mergeEquations(doc)
	normalizeLinks(doc, opts.OutputRelDir)
	injectMathRenderer(doc)
	applyCleanup(doc)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		skeleton := minimalSkeleton()
		return Result{HTML: skeleton, Degraded: true, ParseError: err.Error()}
	}

	return Result{
		HTML:            buf.Bytes(),
		Warnings:        warnings,
		AssetsRewritten: assetsRewritten,
	}
}

func minimalSkeleton() []byte {
	return []byte("<!DOCTYPE html><html lang=\"en\"><head><meta charset=\"utf-8\"><title>Conversion incomplete</title></head>" +
		"<body><p>The converted document could not be parsed.</p></body></html>")
}
