// Package assets implements the Asset Converter (spec §4.10): PDF and
// TikZ fragments referenced from the converted HTML are rendered to
// SVG, each conversion a separate Process Runner invocation with its
// own timeout. Grounded on original_source/app/services/pdf.py and
// tikz.py for the conversion sequencing (first-page vectorize with a
// raster fallback for PDF; minimal-preamble recompile then vectorize
// for TikZ), re-expressed through internal/process.Runner instead of
// Python subprocess calls.
package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/iago/latex-orchestrator/internal/postprocess"
	"github.com/iago/latex-orchestrator/internal/process"
)

const conversionTimeout = 60 * time.Second

// Converter implements postprocess.AssetConverter. One Converter is
// shared across every asset conversion in a job; it carries no
// per-asset state.
type Converter struct {
	Runner             *process.Runner
	CompilerPath       string // LaTeX compiler, for TikZ fragments
	VectorizerPath     string // dvisvgm or equivalent
	RasterFallbackPath string // pdftoppm or equivalent, used when vectorizing a PDF fails
	SourceRoot         string // job working directory, to resolve relative asset paths
	OutputDir          string // directory SVGs are written into
}

var _ postprocess.AssetConverter = (*Converter)(nil)

func New(runner *process.Runner, compilerPath, vectorizerPath, rasterFallbackPath, sourceRoot, outputDir string) *Converter {
	return &Converter{
		Runner:             runner,
		CompilerPath:       compilerPath,
		VectorizerPath:     vectorizerPath,
		RasterFallbackPath: rasterFallbackPath,
		SourceRoot:         sourceRoot,
		OutputDir:          outputDir,
	}
}

// ConvertAsset dispatches by ref.Kind. Any failure returns ok=false so
// the caller keeps the original reference (spec §4.9 item 3: "any
// asset failure keeps the original reference").
func (c *Converter) ConvertAsset(ctx context.Context, ref postprocess.AssetReference) (string, bool) {
	switch ref.Kind {
	case "pdf":
		return c.convertPDF(ctx, ref.Path)
	case "tikz":
		return c.convertTikZ(ctx, ref.Path)
	default:
		return "", false
	}
}

func (c *Converter) svgPathFor(sourcePath string) string {
	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	return filepath.Join(c.OutputDir, base+".svg")
}

// convertPDF converts the first page of a PDF to SVG via the
// configured vectorizer. On failure, it falls back to wrapping the
// source as an embedded raster image inside a minimal SVG document
// (original_source's pdftoppm-then-convert fallback path).
func (c *Converter) convertPDF(ctx context.Context, srcRel string) (string, bool) {
	src := filepath.Join(c.SourceRoot, srcRel)
	out := c.svgPathFor(srcRel)

	res, err := c.Runner.Run(ctx, process.Spec{
		Argv:    []string{c.VectorizerPath, "--pdf", "--page=1", "--output=" + out, src},
		Timeout: conversionTimeout,
	})
	if err == nil && res.ExitCode == 0 {
		if _, statErr := os.Stat(out); statErr == nil {
			return relOutputPath(c.OutputDir, out), true
		}
	}

	return c.rasterFallback(ctx, src, out)
}

// rasterFallback wraps the PDF's first page as an embedded raster
// image inside a thin SVG wrapper, matching the original's
// pdftoppm/convert fallback when the vector path fails.
func (c *Converter) rasterFallback(ctx context.Context, src, out string) (string, bool) {
	rasterOut := strings.TrimSuffix(out, ".svg") + ".png"
	res, err := c.Runner.Run(ctx, process.Spec{
		Argv:    []string{c.RasterFallbackPath, "-png", "-f", "1", "-l", "1", "-singlefile", src, strings.TrimSuffix(rasterOut, ".png")},
		Timeout: conversionTimeout,
	})
	if err != nil || res.ExitCode != 0 {
		return "", false
	}
	if err := writeRasterWrapperSVG(out, filepath.Base(rasterOut)); err != nil {
		return "", false
	}
	return relOutputPath(c.OutputDir, out), true
}

func writeRasterWrapperSVG(svgPath, imageFile string) error {
	content := fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink"><image xlink:href=%q /></svg>`,
		imageFile,
	)
	return os.WriteFile(svgPath, []byte(content), 0o644)
}

// convertTikZ recompiles a TikZ source fragment inside a minimal
// preamble using the configured LaTeX compiler, then vectorizes the
// resulting PDF.
func (c *Converter) convertTikZ(ctx context.Context, srcRel string) (string, bool) {
	src := filepath.Join(c.SourceRoot, srcRel)
	fragment, err := os.ReadFile(src)
	if err != nil {
		return "", false
	}

	wrapperDir, err := os.MkdirTemp(c.OutputDir, "tikz-*")
	if err != nil {
		return "", false
	}
	defer os.RemoveAll(wrapperDir)

	wrapperPath := filepath.Join(wrapperDir, "fragment.tex")
	if err := os.WriteFile(wrapperPath, buildTikZWrapper(string(fragment)), 0o644); err != nil {
		return "", false
	}

	res, err := c.Runner.Run(ctx, process.Spec{
		Argv:    []string{c.CompilerPath, "--outdir", wrapperDir, wrapperPath},
		Dir:     wrapperDir,
		Timeout: conversionTimeout,
	})
	if err != nil || res.ExitCode != 0 {
		return "", false
	}

	compiled := filepath.Join(wrapperDir, "fragment.pdf")
	out := c.svgPathFor(srcRel)
	res, err = c.Runner.Run(ctx, process.Spec{
		Argv:    []string{c.VectorizerPath, "--pdf", "--page=1", "--output=" + out, compiled},
		Timeout: conversionTimeout,
	})
	if err != nil || res.ExitCode != 0 {
		return "", false
	}
	return relOutputPath(c.OutputDir, out), true
}

func buildTikZWrapper(fragment string) []byte {
	return []byte("\\documentclass{standalone}\n" +
		"\\usepackage{tikz}\n" +
		"\\begin{document}\n" +
		fragment + "\n" +
		"\\end{document}\n")
}

func relOutputPath(outputDir, path string) string {
	rel, err := filepath.Rel(filepath.Dir(outputDir), path)
	if err != nil {
		return filepath.Base(path)
	}
	return rel
}
