package postprocess

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// findAll walks the tree once and returns every element node matching
// pred, in document order. Callers that need several distinct element
// types build one predicate rather than calling findAll repeatedly, to
// keep the "single enumeration pass" discipline from spec §4.9.
func findAll(n *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && pred(node) {
			out = append(out, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func isElement(n *html.Node, a atom.Atom) bool {
	return n.Type == html.ElementNode && n.DataAtom == a
}

func attr(n *html.Node, key string) (string, bool) {
	for _, at := range n.Attr {
		if strings.EqualFold(at.Key, key) {
			return at.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, at := range n.Attr {
		if strings.EqualFold(at.Key, key) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func hasClass(n *html.Node, class string) bool {
	classVal, ok := attr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(classVal) {
		if c == class {
			return true
		}
	}
	return false
}

// textContent returns the concatenated text of all descendant text
// nodes. Cache the result at the call site if it is used more than
// once for the same node, per spec §4.9's "cached per element" note.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func newElement(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     a.String(),
		DataAtom: a,
		Attr:     attrs,
	}
}

func newText(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// detach removes n from its parent's child list without touching its
// own children.
func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// replaceChildrenWithSingleText clears node's children and appends one
// text node.
func replaceChildrenWithSingleText(n *html.Node, text string) {
	for n.FirstChild != nil {
		n.RemoveChild(n.FirstChild)
	}
	if text != "" {
		n.AppendChild(newText(text))
	}
}

func firstChildElement(n *html.Node, a atom.Atom) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c, a) {
			return c
		}
	}
	return nil
}
