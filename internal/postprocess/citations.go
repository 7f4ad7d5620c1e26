package postprocess

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Citation-repair patterns (spec §4.9 item 4 / Glossary "Citation
// element"), compiled once at package init rather than per call or per
// Processor instance: none of them carry per-document state.
var (
	yearPattern       = regexp.MustCompile(`\d{4}[a-z]?`)
	yearOnlyPattern   = regexp.MustCompile(`^\s*\(\s*(\d{4}[a-z]?)\s*\)\s*$`)
	authorPattern1    = regexp.MustCompile(`([A-Z][a-zA-Z\s]+(?:et al\.)?)\s*,\s*\(\s*\)?\s*$`)
	authorPattern2    = regexp.MustCompile(`([A-Z][a-zA-Z\s]+(?:et al\.)?)\s*,\s*\(\s*\)`)
	authorPattern3    = regexp.MustCompile(`([A-Z][a-zA-Z\s]+(?:et al\.)?)\s*,`)
	authorPattern4    = regexp.MustCompile(`([A-Z][a-zA-Z\s]+(?:et al\.)?)\s*,\s*$`)
	citationPattern   = regexp.MustCompile(`\([^()]{0,50}?,\s*\d{4}[a-z]?\)`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// repairCitations rewraps every citation whose author and year are
// split across multiple children, so that the entire
// "Author(s), (Year)" run is a single hyperlink into the bibliography,
// rather than just the year being linked (spec §4.9 item 4).
func repairCitations(doc *html.Node) {
	cites := findAll(doc, func(n *html.Node) bool { return isElement(n, atom.Cite) })
	for _, cite := range cites {
		// Cache the text extraction; it is consulted by more than one
		// pattern below and tree traversal is the expensive part.
		citeText := strings.TrimSpace(textContent(cite))
		normalized := whitespacePattern.ReplaceAllString(citeText, " ")

		// Semicolon-separated multi-citation groups are left untouched.
		if strings.Contains(normalized, ";") {
			continue
		}
		if mergeYearLink(cite, normalized) {
			continue
		}
		if yearOnlyPattern.MatchString(citeText) {
			mergeYearOnly(cite, citeText)
			continue
		}
		collapseTextNodes(cite)
	}
}

// mergeYearLink handles the pattern where only the year is wrapped in
// an <a class="ltx_ref">; it rebuilds the cite element so the author
// and the parenthesized year are a single link. Returns true if it
// rewrote the element.
func mergeYearLink(cite *html.Node, normalizedText string) bool {
	yearLink := findYearRefLink(cite)
	if yearLink == nil {
		return false
	}
	yearText := strings.TrimSpace(textContent(yearLink))
	year := yearPattern.FindString(yearText)
	if year == "" {
		return false
	}

	before := textBeforeNode(cite, yearLink)
	before = whitespacePattern.ReplaceAllString(before, " ")

	author := findAuthor(before, normalizedText)
	if author == "" {
		return false
	}

	href, _ := attr(yearLink, "href")
	title, _ := attr(yearLink, "title")
	rebuildCiteAsLink(cite, author, year, href, title)
	return true
}

func findYearRefLink(cite *html.Node) *html.Node {
	for c := cite.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c, atom.A) && hasClass(c, "ltx_ref") {
			return c
		}
	}
	return nil
}

func textBeforeNode(parent, target *html.Node) string {
	var parts []string
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c == target {
			break
		}
		parts = append(parts, strings.TrimSpace(textContent(c)))
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func findAuthor(before, fullText string) string {
	if m := authorPattern1.FindStringSubmatch(before); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := authorPattern2.FindStringSubmatch(fullText); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := authorPattern3.FindStringSubmatch(before); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := authorPattern2.FindStringSubmatch(fullText); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func mergeYearOnly(cite *html.Node, citeText string) {
	parent := cite.Parent
	if parent == nil {
		return
	}
	m := yearOnlyPattern.FindStringSubmatch(citeText)
	if m == nil {
		return
	}
	year := m[1]

	author := findAuthorFromContext(cite, parent)
	if author == "" {
		return
	}
	rebuildCiteAsLink(cite, author, year, "#bib.bib"+year, "")
}

// findAuthorFromContext looks for an author name in the text
// immediately preceding cite within its parent, falling back to the
// previous element sibling's text (spec mirrors the two-step lookback
// the converter's own citation emitter uses).
func findAuthorFromContext(cite, parent *html.Node) string {
	allText := textContent(parent)
	citeText := strings.TrimSpace(textContent(cite))
	idx := strings.Index(allText, citeText)
	if idx > 0 {
		before := strings.TrimSpace(allText[:idx])
		if m := authorPattern4.FindStringSubmatch(before); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	if prev := previousElementSibling(cite); prev != nil {
		prevText := strings.TrimSpace(textContent(prev))
		if m := authorPattern4.FindStringSubmatch(prevText); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func previousElementSibling(n *html.Node) *html.Node {
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

func rebuildCiteAsLink(cite *html.Node, author, year, href, title string) {
	for cite.FirstChild != nil {
		cite.RemoveChild(cite.FirstChild)
	}
	link := newElement(atom.A, html.Attribute{Key: "class", Val: "ltx_ref"}, html.Attribute{Key: "href", Val: href}, html.Attribute{Key: "title", Val: title})
	link.AppendChild(newText(author + ", (" + year + ")"))
	cite.AppendChild(link)
}

// collapseTextNodes combines multiple direct text-node children into
// one, so a citation that is already "Author, (Year)" but split across
// several text nodes becomes a single cohesive run (item 4, pattern 3).
func collapseTextNodes(cite *html.Node) {
	var textNodes []*html.Node
	for c := cite.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) != "" {
			textNodes = append(textNodes, c)
		}
	}
	if len(textNodes) <= 1 {
		return
	}
	var parts []string
	for _, n := range textNodes {
		parts = append(parts, strings.TrimSpace(n.Data))
	}
	combined := whitespacePattern.ReplaceAllString(strings.Join(parts, " "), " ")
	for _, n := range textNodes {
		detach(n)
	}
	if combined != "" {
		cite.InsertBefore(newText(combined), cite.FirstChild)
	}
}
