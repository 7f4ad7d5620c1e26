package postprocess

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// mergeEquations collapses every equation table to a single 1x1 cell
// and merges the mjx-container elements inside that cell into one.
// Math-renderer containers outside equation tables are not merged.
func mergeEquations(doc *html.Node) {
	tables := findAll(doc, func(n *html.Node) bool {
		return isElement(n, atom.Table) && (hasClass(n, "ltx_equation") || hasClass(n, "ltx_eqn_table"))
	})
	for _, table := range tables {
		mergeEquationTable(table)
	}
}

func mergeEquationTable(table *html.Node) {
	tbody := firstChildElement(table, atom.Tbody)
	if tbody == nil {
		return
	}
	rows := findAll(tbody, func(n *html.Node) bool {
		return isElement(n, atom.Tr) && (hasClass(n, "ltx_equation") || hasClass(n, "ltx_eqn_row"))
	})

	switch {
	case len(rows) == 1:
		mergeRowCells(rows[0])
	case len(rows) > 1:
		mergeRowsIntoOne(tbody, rows)
	}

	finalRows := findAll(tbody, func(n *html.Node) bool { return isElement(n, atom.Tr) })
	if len(finalRows) == 1 {
		mergeRowCells(finalRows[0])
	}
}

func isMathBearing(n *html.Node) bool {
	return len(findAll(n, func(c *html.Node) bool {
		return isElement(c, atom.Math) ||
			c.Data == "mjx-container" ||
			c.Data == "mjx-math" ||
			((isElement(c, atom.Span) || isElement(c, atom.Div)) && (hasClass(c, "math") || hasClass(c, "math-display")))
	})) > 0
}

// mergeRowCells collapses a single row's multiple <td> cells into one,
// preferring the cell that actually carries the math content, then
// merges any mjx-container fragments left inside it.
func mergeRowCells(row *html.Node) {
	cells := findAll(row, func(n *html.Node) bool { return isElement(n, atom.Td) })
	if len(cells) <= 1 {
		if len(cells) == 1 {
			mergeMathjaxContainers(cells[0])
		}
		return
	}

	var target *html.Node
	for _, c := range cells {
		if isMathBearing(c) {
			target = c
			break
		}
	}
	if target == nil {
		target = cells[0]
	}

	for _, c := range cells {
		if c == target {
			continue
		}
		moveChildren(c, target)
		detach(c)
	}
	mergeMathjaxContainers(target)
}

// mergeRowsIntoOne merges every row's cell content into the row that
// carries the math content (or the first row if none obviously does),
// discarding the rest.
func mergeRowsIntoOne(tbody *html.Node, rows []*html.Node) {
	var mainRow *html.Node
	for _, r := range rows {
		if isMathBearing(r) {
			mainRow = r
			break
		}
	}
	if mainRow == nil {
		mainRow = rows[0]
	}

	mainCell := findAll(mainRow, func(n *html.Node) bool { return isElement(n, atom.Td) && hasClass(n, "ltx_eqn_cell") })
	var target *html.Node
	if len(mainCell) > 0 {
		target = mainCell[0]
	} else {
		target = newElement(atom.Td, html.Attribute{Key: "class", Val: "ltx_eqn_cell ltx_align_center"})
		mainRow.AppendChild(target)
	}

	for _, r := range rows {
		if r == mainRow {
			continue
		}
		cells := findAll(r, func(n *html.Node) bool { return isElement(n, atom.Td) })
		for _, c := range cells {
			moveChildren(c, target)
		}
		detach(r)
	}

	mergeRowCells(mainRow)
}

func moveChildren(from, to *html.Node) {
	for c := from.FirstChild; c != nil; {
		next := c.NextSibling
		from.RemoveChild(c)
		to.AppendChild(c)
		c = next
	}
}

// mergeMathjaxContainers merges every mjx-container element found under
// container (an equation-table cell) into the first one, concatenating
// their mjx-math subtrees in document order.
func mergeMathjaxContainers(container *html.Node) {
	containers := findAll(container, func(n *html.Node) bool { return n.Data == "mjx-container" })
	if len(containers) <= 1 {
		return
	}

	first := containers[0]
	firstMath := findAll(first, func(n *html.Node) bool { return n.Data == "mjx-math" })

	for _, c := range containers[1:] {
		math := findAll(c, func(n *html.Node) bool { return n.Data == "mjx-math" })
		if len(math) > 0 && len(firstMath) > 0 {
			moveChildren(math[0], firstMath[0])
		}
		for child := c.FirstChild; child != nil; {
			next := child.NextSibling
			if len(math) == 0 || child != math[0] {
				c.RemoveChild(child)
				first.AppendChild(child)
			}
			child = next
		}
		detach(c)
	}
}
