package postprocess

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// allowedScriptPrefixes lists the src prefixes a script element is
// allowed to reference besides the math renderer this package injects
// itself (item 7). Grounded on the teacher's blockedKeywords table in
// content_rules.go: a small fixed allow/deny list evaluated in one
// enumeration pass, not a general sandboxing policy.
var allowedScriptPrefixes = []string{
	"https://polyfill.io/",
	"https://cdn.jsdelivr.net/npm/mathjax",
}

const mathRendererScriptID = "math-renderer-script"
const mathRendererConfigID = "math-renderer-config"

// sanitizeScripts drops every script element whose source is neither
// the math renderer this package injects later nor one of the known
// safe CDN prefixes (spec §4.9 item 2). Inline scripts with no src are
// dropped unless they carry this package's own renderer script or
// config id; they cannot originate from a trusted prefix.
func sanitizeScripts(doc *html.Node) {
	scripts := findAll(doc, func(n *html.Node) bool { return isElement(n, atom.Script) })
	for _, s := range scripts {
		if id, ok := attr(s, "id"); ok && (id == mathRendererScriptID || id == mathRendererConfigID) {
			continue
		}
		src, hasSrc := attr(s, "src")
		if !hasSrc {
			detach(s)
			continue
		}
		if !hasAllowedPrefix(src) {
			detach(s)
		}
	}
}

func hasAllowedPrefix(src string) bool {
	for _, prefix := range allowedScriptPrefixes {
		if strings.HasPrefix(src, prefix) {
			return true
		}
	}
	return false
}
