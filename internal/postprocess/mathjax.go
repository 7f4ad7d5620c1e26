package postprocess

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const mathjaxConfig = `
window.MathJax = {
	tex: {
		inlineMath: [['$','$'], ['\\(','\\)']],
		displayMath: [['$$','$$'], ['\\[','\\]']],
		processEscapes: true,
		processEnvironments: true
	},
	options: {
		skipHtmlTags: ['script', 'noscript', 'style', 'textarea', 'pre']
	},
	svg: {
		fontCache: 'global'
	}
};
`

const mathjaxScriptSrc = "https://cdn.jsdelivr.net/npm/mathjax@3/es5/tex-mml-chtml.js"
const polyfillScriptSrc = "https://polyfill.io/v3/polyfill.min.js?features=es6"

// injectMathRenderer adds the math-renderer configuration and script
// tags to <head>, enabling inline, display, and dollar-pair delimiters
// (spec §4.9 item 7). It is a no-op if the document has no <head> or
// carries no math content at all.
func injectMathRenderer(doc *html.Node) {
	if !hasMathContent(doc) {
		return
	}
	head := findHead(doc)
	if head == nil {
		return
	}
	if len(findAll(head, func(n *html.Node) bool {
		id, _ := attr(n, "id")
		return id == mathRendererScriptID
	})) > 0 {
		return
	}

	config := newElement(atom.Script,
		html.Attribute{Key: "type", Val: "text/x-mathjax-config"},
		html.Attribute{Key: "id", Val: mathRendererConfigID},
	)
	config.AppendChild(newText(mathjaxConfig))
	head.AppendChild(config)

	polyfill := newElement(atom.Script, html.Attribute{Key: "src", Val: polyfillScriptSrc})
	head.AppendChild(polyfill)

	renderer := newElement(atom.Script,
		html.Attribute{Key: "id", Val: mathRendererScriptID},
		html.Attribute{Key: "async", Val: ""},
		html.Attribute{Key: "src", Val: mathjaxScriptSrc},
	)
	head.AppendChild(renderer)
}

func hasMathContent(doc *html.Node) bool {
	return len(findAll(doc, func(n *html.Node) bool {
		if isElement(n, atom.Math) {
			return true
		}
		if isElement(n, atom.Span) || isElement(n, atom.Div) {
			return hasClass(n, "math") || hasClass(n, "math-display")
		}
		return false
	})) > 0
}

func findHead(doc *html.Node) *html.Node {
	found := findAll(doc, func(n *html.Node) bool { return isElement(n, atom.Head) })
	if len(found) == 0 {
		return nil
	}
	return found[0]
}
