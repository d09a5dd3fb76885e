package render

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// spacerImageMax is the largest declared image side still treated as a spacer
const spacerImageMax = 20

// negligibleText is the longest text a spacer-image cell may carry
const negligibleText = 2

func (tr *Transformer) fixTables(t *Tree) {
	tables := t.FindAll(t.Root(), "table")

	tr.each(t, "tables", tables, func(table NodeID) {
		t.RemoveAttr(table, "width")
		t.updateStyle(table, func(d declarations) declarations {
			d = d.remove("width", "min-width")
			d = d.set("width", "100%")
			d = d.set("table-layout", "auto")
			return d
		})

		columns := maxColumns(t, table)
		for _, row := range tableRows(t, table) {
			collapseRow(t, row, columns)
			trimRowEdges(t, row)
		}
	})

	// inner tables first so an unwrapped child never leaves a stale parent id
	for i := len(tables) - 1; i >= 0; i-- {
		tr.each(t, "tables", tables[i:i+1], func(table NodeID) {
			unwrapSingleCell(t, table)
		})
	}

	tr.each(t, "tables", append(t.FindAll(t.Root(), "td"), t.FindAll(t.Root(), "th")...), func(cell NodeID) {
		t.updateStyle(cell, func(d declarations) declarations {
			d = d.set("word-break", "break-word")
			d = d.set("overflow-wrap", "anywhere")
			return d
		})
	})
}

// isSpacerCell classifies a layout-only cell. A cell is a spacer when its text
// is empty once non-breaking spaces are folded away and it holds no images,
// or when every image it holds is declared at most 20x20 and its text is
// negligible. Markup made only of line breaks or empty blocks has empty text.
func isSpacerCell(t *Tree, cell NodeID) bool {
	text := strings.TrimSpace(strings.ReplaceAll(t.Text(cell), "\u00a0", " "))

	images := t.FindAll(cell, "img")
	if len(images) == 0 {
		return text == "" && !hasMedia(t, cell)
	}

	for _, img := range images {
		n := &t.nodes[img]
		if n.declW < 0 || n.declH < 0 || n.declW > spacerImageMax || n.declH > spacerImageMax {
			return false
		}
	}
	return utf8.RuneCountInString(text) <= negligibleText
}

// hasMedia reports embedded content other than img that carries no text
func hasMedia(t *Tree, id NodeID) bool {
	return len(t.FindAll(id, "picture")) > 0
}

// tableRows returns the rows that belong to table itself, not to nested tables
func tableRows(t *Tree, table NodeID) []NodeID {
	var rows []NodeID
	for _, c := range t.ElementChildren(table) {
		switch t.Tag(c) {
		case "tr":
			rows = append(rows, c)
		case "thead", "tbody", "tfoot":
			for _, r := range t.ElementChildren(c) {
				if t.Tag(r) == "tr" {
					rows = append(rows, r)
				}
			}
		}
	}
	return rows
}

func rowCells(t *Tree, row NodeID) []NodeID {
	var cells []NodeID
	for _, c := range t.ElementChildren(row) {
		if tag := t.Tag(c); tag == "td" || tag == "th" {
			cells = append(cells, c)
		}
	}
	return cells
}

func colspan(t *Tree, cell NodeID) int {
	if v, ok := t.Attr(cell, "colspan"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	return 1
}

func maxColumns(t *Tree, table NodeID) int {
	widest := 0
	for _, row := range tableRows(t, table) {
		span := 0
		for _, cell := range rowCells(t, row) {
			span += colspan(t, cell)
		}
		if span > widest {
			widest = span
		}
	}
	return widest
}

// collapseRow removes spacer columns on both sides of a row. A 3-cell row
// keeps only its middle cell at full width; longer rows lose the two outer
// cells and the width limits on the rest.
func collapseRow(t *Tree, row NodeID, tableColumns int) {
	cells := rowCells(t, row)
	if len(cells) < 3 {
		return
	}

	first, last := cells[0], cells[len(cells)-1]
	if !isSpacerCell(t, first) || !isSpacerCell(t, last) {
		return
	}

	if len(cells) == 3 {
		middle := cells[1]
		if isSpacerCell(t, middle) {
			return
		}
		span := colspan(t, first) + colspan(t, middle) + colspan(t, last)
		t.Remove(first)
		t.Remove(last)
		fillWidth(t, middle)
		if tableColumns > 1 && span > 1 {
			t.SetAttr(middle, "colspan", strconv.Itoa(span))
		}
		return
	}

	t.Remove(first)
	t.Remove(last)
	for _, cell := range cells[1 : len(cells)-1] {
		t.RemoveAttr(cell, "width")
		t.updateStyle(cell, func(d declarations) declarations {
			return d.remove("width", "min-width", "max-width")
		})
	}
}

// trimRowEdges drops contiguous spacer runs touching either end of a row.
// A row made only of spacers is left alone.
func trimRowEdges(t *Tree, row NodeID) {
	cells := rowCells(t, row)

	start := 0
	for start < len(cells) && isSpacerCell(t, cells[start]) {
		start++
	}
	if start == len(cells) {
		return
	}
	end := len(cells) - 1
	for end > start && isSpacerCell(t, cells[end]) {
		end--
	}

	for _, cell := range cells[:start] {
		t.Remove(cell)
	}
	for _, cell := range cells[end+1:] {
		t.Remove(cell)
	}

	if end == start {
		fillWidth(t, cells[start])
	}
}

func fillWidth(t *Tree, cell NodeID) {
	t.RemoveAttr(cell, "width")
	t.updateStyle(cell, func(d declarations) declarations {
		d = d.remove("min-width", "max-width")
		return d.set("width", "100%")
	})
}

// unwrapSingleCell replaces a one-row one-cell table with a div holding the
// cell's content
func unwrapSingleCell(t *Tree, table NodeID) {
	for _, c := range t.ElementChildren(table) {
		switch t.Tag(c) {
		case "tr", "thead", "tbody", "tfoot", "colgroup", "col":
		default:
			// captions and stray elements make it real content
			return
		}
	}

	rows := tableRows(t, table)
	if len(rows) != 1 {
		return
	}
	cells := rowCells(t, rows[0])
	if len(cells) != 1 {
		return
	}
	cell := cells[0]

	div := t.NewElement("div")
	style := t.styleOf(cell).remove("width", "min-width", "height", "min-height")
	style = style.set("max-width", "100%")
	t.setStyle(div, style)
	if class, ok := t.Attr(table, "class"); ok && class != "" {
		t.SetAttr(div, "class", class)
	}

	t.MoveChildren(cell, div)
	t.ReplaceWith(table, div)
}
