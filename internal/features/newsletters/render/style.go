package render

import (
	"strings"
)

type declaration struct {
	prop  string
	value string
}

// declarations is an ordered inline style
type declarations []declaration

// parseStyle splits an inline style attribute into declarations. Semicolons
// inside parentheses or quotes do not end a declaration.
func parseStyle(style string) declarations {
	var out declarations
	var depth int
	var quote rune
	start := 0

	flush := func(end int) {
		part := strings.TrimSpace(style[start:end])
		start = end + 1
		if part == "" {
			return
		}
		colon := strings.Index(part, ":")
		if colon <= 0 {
			return
		}
		prop := strings.ToLower(strings.TrimSpace(part[:colon]))
		value := strings.TrimSpace(part[colon+1:])
		if prop == "" || value == "" {
			return
		}
		out = out.set(prop, value)
	}

	for i, r := range style {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case r == ';' && depth == 0:
			flush(i)
		}
	}
	flush(len(style))
	return out
}

func (d declarations) get(prop string) (string, bool) {
	for _, decl := range d {
		if decl.prop == prop {
			return decl.value, true
		}
	}
	return "", false
}

// set replaces prop in place or appends it
func (d declarations) set(prop, value string) declarations {
	for i := range d {
		if d[i].prop == prop {
			d[i].value = value
			return d
		}
	}
	return append(d, declaration{prop: prop, value: value})
}

func (d declarations) remove(props ...string) declarations {
	out := d[:0]
	for _, decl := range d {
		keep := true
		for _, p := range props {
			if decl.prop == p {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, decl)
		}
	}
	return out
}

func (d declarations) String() string {
	parts := make([]string, 0, len(d))
	for _, decl := range d {
		parts = append(parts, decl.prop+":"+decl.value)
	}
	return strings.Join(parts, "; ")
}

// styleOf parses the style attribute of id
func (t *Tree) styleOf(id NodeID) declarations {
	style, _ := t.Attr(id, "style")
	return parseStyle(style)
}

// setStyle writes decls back, dropping the attribute when empty
func (t *Tree) setStyle(id NodeID, decls declarations) {
	if len(decls) == 0 {
		t.RemoveAttr(id, "style")
		return
	}
	t.SetAttr(id, "style", decls.String())
}

// updateStyle applies fn to the parsed style of id
func (t *Tree) updateStyle(id NodeID, fn func(declarations) declarations) {
	t.setStyle(id, fn(t.styleOf(id)))
}
