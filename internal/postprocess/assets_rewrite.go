package postprocess

import (
	"context"
	"path"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentAssetConversions bounds the Post-Processor's internal
// conversion pool (spec §4.9 item 3 / §4.10): asset conversions run in
// parallel, capped at 4 concurrent Process Runner invocations per job.
const maxConcurrentAssetConversions = 4

// convertAssets finds every referenced PDF or TikZ asset and invokes
// the injected AssetConverter to produce an SVG sibling, rewriting the
// reference in place. A failed conversion leaves the original
// reference untouched (spec §4.9 item 3).
func convertAssets(ctx context.Context, doc *html.Node, converter AssetConverter) (rewritten int, warnings []string) {
	refs := findAll(doc, func(n *html.Node) bool {
		if isElement(n, atom.Img) {
			if src, ok := attr(n, "src"); ok {
				return assetKind(src) != ""
			}
		}
		if isElement(n, atom.Object) || isElement(n, atom.Embed) {
			if src, ok := attr(n, "data"); ok {
				return assetKind(src) != ""
			}
			if src, ok := attr(n, "src"); ok {
				return assetKind(src) != ""
			}
		}
		return false
	})

	var (
		mu sync.Mutex
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentAssetConversions)

	for _, n := range refs {
		n := n
		key := "src"
		src, ok := attr(n, "src")
		if !ok {
			src, ok = attr(n, "data")
			key = "data"
		}
		if !ok {
			continue
		}
		kind := assetKind(src)
		if kind == "" {
			continue
		}

		g.Go(func() error {
			newPath, ok := converter.ConvertAsset(gctx, AssetReference{Path: src, Kind: kind})
			mu.Lock()
			defer mu.Unlock()
			if !ok {
				warnings = append(warnings, "asset conversion failed, keeping original reference: "+src)
				return nil
			}
			setAttr(n, key, newPath)
			rewritten++
			return nil
		})
	}
	// Individual conversion failures are reported via the ok flag above
	// and never fail the group: every goroutine returns nil, so g.Wait
	// only waits for the conversions to finish.
	_ = g.Wait()
	return rewritten, warnings
}

func assetKind(src string) string {
	lower := strings.ToLower(src)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return "pdf"
	case strings.HasSuffix(lower, ".tikz") || strings.Contains(lower, "tikz"):
		return "tikz"
	default:
		return ""
	}
}

// normalizeLinks rewrites image and asset paths to be relative to the
// final HTML location, preserving subdirectory structure when two
// sources would otherwise collide (spec §4.9 item 6).
func normalizeLinks(doc *html.Node, outputRelDir string) {
	if outputRelDir == "" {
		return
	}
	imgs := findAll(doc, func(n *html.Node) bool { return isElement(n, atom.Img) })
	for _, img := range imgs {
		src, ok := attr(img, "src")
		if !ok || src == "" {
			continue
		}
		if isAbsoluteReference(src) {
			continue
		}
		if strings.HasPrefix(src, outputRelDir+"/") {
			continue
		}
		setAttr(img, "src", path.Join(outputRelDir, src))
	}
}

func isAbsoluteReference(src string) bool {
	return strings.HasPrefix(src, "http://") ||
		strings.HasPrefix(src, "https://") ||
		strings.HasPrefix(src, "data:") ||
		strings.HasPrefix(src, "/")
}
