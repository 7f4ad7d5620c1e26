package postprocess

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// applyCleanup performs the minor cleanup pass (spec §4.9 item 8): a
// responsive viewport meta tag, and a lang attribute on the root
// element.
func applyCleanup(doc *html.Node) {
	addViewportMeta(doc)
	ensureLangAttribute(doc)
}

func addViewportMeta(doc *html.Node) {
	head := findHead(doc)
	if head == nil {
		return
	}
	existing := findAll(head, func(n *html.Node) bool {
		if !isElement(n, atom.Meta) {
			return false
		}
		name, _ := attr(n, "name")
		return name == "viewport"
	})
	if len(existing) > 0 {
		return
	}
	meta := newElement(atom.Meta,
		html.Attribute{Key: "name", Val: "viewport"},
		html.Attribute{Key: "content", Val: "width=device-width, initial-scale=1.0"},
	)
	head.AppendChild(meta)
}

func ensureLangAttribute(doc *html.Node) {
	htmlNodes := findAll(doc, func(n *html.Node) bool { return isElement(n, atom.Html) })
	if len(htmlNodes) == 0 {
		return
	}
	root := htmlNodes[0]
	if _, ok := attr(root, "lang"); ok {
		return
	}
	setAttr(root, "lang", "en")
}
