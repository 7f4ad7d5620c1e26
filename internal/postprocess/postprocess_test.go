package postprocess

import (
	"context"
	"strings"
	"testing"
)

type stubConverter struct{ succeed bool }

func (s stubConverter) ConvertAsset(_ context.Context, ref AssetReference) (string, bool) {
	if !s.succeed {
		return "", false
	}
	return strings.TrimSuffix(ref.Path, ".pdf") + ".svg", true
}

func TestRunReturnsHTMLForGarbageInput(t *testing.T) {
	p := New(stubConverter{succeed: true})
	res := p.Run(context.Background(), []byte("\x00\x01not html at all"), Options{})
	// html.Parse is lenient and rarely errors; this asserts Run never
	// panics and always returns renderable HTML either way.
	if len(res.HTML) == 0 {
		t.Fatal("expected non-empty HTML output")
	}
}

func TestRunInjectsMathRendererWhenMathPresent(t *testing.T) {
	input := `<html><head><title>t</title></head><body><span class="math">x^2</span></body></html>`
	p := New(stubConverter{succeed: true})
	res := p.Run(context.Background(), []byte(input), Options{})

	out := string(res.HTML)
	if !strings.Contains(out, mathjaxScriptSrc) {
		t.Fatalf("expected math renderer script injected, got: %s", out)
	}
	if !strings.Contains(out, `name="viewport"`) {
		t.Fatal("expected viewport meta tag")
	}
	if !strings.Contains(out, `lang="en"`) {
		t.Fatal("expected lang attribute on html root")
	}
}

func TestRunSanitizesDisallowedScripts(t *testing.T) {
	input := `<html><head></head><body><script src="https://evil.example/x.js"></script><script>alert(1)</script></body></html>`
	p := New(nil)
	res := p.Run(context.Background(), []byte(input), Options{SkipImages: true})

	out := string(res.HTML)
	if strings.Contains(out, "evil.example") {
		t.Fatal("expected disallowed script dropped")
	}
	if strings.Contains(out, "alert(1)") {
		t.Fatal("expected inline script dropped")
	}
}

func TestRunRepairsYearOnlyCitationLink(t *testing.T) {
	input := `<html><head></head><body><p>Smith,<cite class="ltx_cite"> (2020)</cite></p></body></html>`
	p := New(nil)
	res := p.Run(context.Background(), []byte(input), Options{SkipImages: true})

	out := string(res.HTML)
	if !strings.Contains(out, "Smith, (2020)") {
		t.Fatalf("expected merged citation text, got: %s", out)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	input := `<html><head></head><body><p>Doe,<cite class="ltx_cite"> (2019)</cite></p><span class="math">y</span></body></html>`
	p := New(stubConverter{succeed: true})

	first := p.Run(context.Background(), []byte(input), Options{SkipImages: true})
	second := p.Run(context.Background(), first.HTML, Options{SkipImages: true})

	if string(first.HTML) != string(second.HTML) {
		t.Fatalf("expected running post-processing twice to be a fixed point\nfirst:\n%s\nsecond:\n%s", first.HTML, second.HTML)
	}
}

func TestRunMergesEquationTableCells(t *testing.T) {
	input := `<html><head></head><body>
<table class="ltx_equation"><tbody>
<tr class="ltx_equation"><td class="ltx_eqn_cell"><span class="math">a</span></td><td>(1)</td></tr>
</tbody></table>
</body></html>`
	p := New(nil)
	res := p.Run(context.Background(), []byte(input), Options{SkipImages: true})

	out := string(res.HTML)
	if strings.Count(out, "<td") != 1 {
		t.Fatalf("expected single merged cell, got: %s", out)
	}
}
