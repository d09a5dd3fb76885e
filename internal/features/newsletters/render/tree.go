package render

import (
	"bytes"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// NodeID indexes a node in a Tree
type NodeID int

const noNode NodeID = -1

// unknownDim marks an image dimension that was not declared
const unknownDim = -1

type node struct {
	typ      html.NodeType
	tag      string
	data     string
	attrs    []html.Attribute
	parent   NodeID
	children []NodeID
	removed  bool
	// declared image size, captured before attributes are rewritten
	declW, declH int
}

// Tree is an arena of HTML nodes. Nodes refer to each other by index only:
// a parent id and an ordered list of child ids.
type Tree struct {
	nodes []node
	root  NodeID
}

// parseTree parses an HTML fragment as body content
func parseTree(fragment string) (*Tree, error) {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	parsed, err := html.ParseFragment(strings.NewReader(fragment), context)
	if err != nil {
		return nil, err
	}

	t := &Tree{}
	t.root = t.add(node{typ: html.DocumentNode, parent: noNode, declW: unknownDim, declH: unknownDim})
	for _, n := range parsed {
		t.adopt(t.root, n)
	}
	return t, nil
}

func (t *Tree) add(n node) NodeID {
	t.nodes = append(t.nodes, n)
	return NodeID(len(t.nodes) - 1)
}

func (t *Tree) adopt(parent NodeID, n *html.Node) {
	switch n.Type {
	case html.ElementNode, html.TextNode:
	default:
		// comments and doctypes never reach the output
		return
	}

	nn := node{
		typ:    n.Type,
		parent: parent,
		declW:  unknownDim,
		declH:  unknownDim,
	}
	if n.Type == html.ElementNode {
		nn.tag = strings.ToLower(n.Data)
		nn.attrs = append([]html.Attribute(nil), n.Attr...)
	} else {
		nn.data = n.Data
	}

	id := t.add(nn)
	t.nodes[parent].children = append(t.nodes[parent].children, id)

	if nn.tag == "img" {
		t.nodes[id].declW, t.nodes[id].declH = declaredSize(t, id)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		t.adopt(id, c)
	}
}

// Root returns the fragment root
func (t *Tree) Root() NodeID {
	return t.root
}

func (t *Tree) isElement(id NodeID) bool {
	return t.nodes[id].typ == html.ElementNode
}

// Tag returns the lowercase element name, or "" for non-elements
func (t *Tree) Tag(id NodeID) string {
	return t.nodes[id].tag
}

// Parent returns the parent id or noNode
func (t *Tree) Parent(id NodeID) NodeID {
	return t.nodes[id].parent
}

// Children returns a copy of the live child ids
func (t *Tree) Children(id NodeID) []NodeID {
	return append([]NodeID(nil), t.nodes[id].children...)
}

// ElementChildren returns the element children of id
func (t *Tree) ElementChildren(id NodeID) []NodeID {
	var out []NodeID
	for _, c := range t.nodes[id].children {
		if t.isElement(c) {
			out = append(out, c)
		}
	}
	return out
}

// Attached reports whether id is still part of the tree
func (t *Tree) Attached(id NodeID) bool {
	return !t.nodes[id].removed
}

// Attr returns an attribute value
func (t *Tree) Attr(id NodeID, key string) (string, bool) {
	for _, a := range t.nodes[id].attrs {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or replaces an attribute
func (t *Tree) SetAttr(id NodeID, key, val string) {
	n := &t.nodes[id]
	for i := range n.attrs {
		if n.attrs[i].Key == key {
			n.attrs[i].Val = val
			return
		}
	}
	n.attrs = append(n.attrs, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes an attribute if present
func (t *Tree) RemoveAttr(id NodeID, keys ...string) {
	n := &t.nodes[id]
	kept := n.attrs[:0]
	for _, a := range n.attrs {
		drop := false
		for _, k := range keys {
			if a.Key == k {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, a)
		}
	}
	n.attrs = kept
}

// Remove detaches id and its whole subtree
func (t *Tree) Remove(id NodeID) {
	if id == t.root || t.nodes[id].removed {
		return
	}
	parent := t.nodes[id].parent
	if parent != noNode {
		siblings := t.nodes[parent].children
		for i, c := range siblings {
			if c == id {
				t.nodes[parent].children = append(siblings[:i:i], siblings[i+1:]...)
				break
			}
		}
	}
	t.markRemoved(id)
}

func (t *Tree) markRemoved(id NodeID) {
	t.nodes[id].removed = true
	for _, c := range t.nodes[id].children {
		t.markRemoved(c)
	}
}

// NewElement creates a detached element
func (t *Tree) NewElement(tag string) NodeID {
	return t.add(node{typ: html.ElementNode, tag: tag, parent: noNode, declW: unknownDim, declH: unknownDim})
}

// ReplaceWith puts replacement where id was and detaches id
func (t *Tree) ReplaceWith(id, replacement NodeID) {
	parent := t.nodes[id].parent
	if parent == noNode {
		return
	}
	for i, c := range t.nodes[parent].children {
		if c == id {
			t.nodes[parent].children[i] = replacement
			break
		}
	}
	t.nodes[replacement].parent = parent
	t.nodes[id].parent = noNode
	t.markRemoved(id)
}

// MoveChildren reparents every child of from onto the end of to
func (t *Tree) MoveChildren(from, to NodeID) {
	for _, c := range t.nodes[from].children {
		t.nodes[c].parent = to
		t.nodes[to].children = append(t.nodes[to].children, c)
	}
	t.nodes[from].children = nil
}

// WrapChildren moves every child of id into a new element which becomes the only child
func (t *Tree) WrapChildren(id NodeID, tag string) NodeID {
	wrapper := t.NewElement(tag)
	t.MoveChildren(id, wrapper)
	t.nodes[wrapper].parent = id
	t.nodes[id].children = []NodeID{wrapper}
	return wrapper
}

// Walk visits live elements in document order. The set of nodes is fixed
// before the walk starts; nodes detached during the walk are skipped.
func (t *Tree) Walk(from NodeID, fn func(id NodeID)) {
	var order []NodeID
	var collect func(id NodeID)
	collect = func(id NodeID) {
		for _, c := range t.nodes[id].children {
			if t.isElement(c) {
				order = append(order, c)
			}
			collect(c)
		}
	}
	collect(from)

	for _, id := range order {
		if t.nodes[id].removed {
			continue
		}
		fn(id)
	}
}

// FindAll returns live descendants of from with the given tag, in document order
func (t *Tree) FindAll(from NodeID, tag string) []NodeID {
	var out []NodeID
	t.Walk(from, func(id NodeID) {
		if t.nodes[id].tag == tag {
			out = append(out, id)
		}
	})
	return out
}

// Text returns the concatenated text content under id
func (t *Tree) Text(id NodeID) string {
	var b strings.Builder
	var visit func(id NodeID)
	visit = func(id NodeID) {
		n := &t.nodes[id]
		if n.typ == html.TextNode {
			b.WriteString(n.data)
			return
		}
		for _, c := range n.children {
			visit(c)
		}
	}
	visit(id)
	return b.String()
}

// RenderChildren serializes the children of id
func (t *Tree) RenderChildren(id NodeID) (string, error) {
	var buf bytes.Buffer
	for _, c := range t.nodes[id].children {
		if err := html.Render(&buf, t.toHTML(c)); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// Render serializes id itself
func (t *Tree) Render(id NodeID) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, t.toHTML(id)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (t *Tree) toHTML(id NodeID) *html.Node {
	n := &t.nodes[id]
	out := &html.Node{Type: n.typ}
	if n.typ == html.ElementNode {
		out.Data = n.tag
		out.DataAtom = atom.Lookup([]byte(n.tag))
		out.Attr = append([]html.Attribute(nil), n.attrs...)
	} else {
		out.Data = n.data
	}
	for _, c := range n.children {
		out.AppendChild(t.toHTML(c))
	}
	return out
}

// declaredSize reads width/height from attributes, then from inline style.
// Only plain pixel values count.
func declaredSize(t *Tree, id NodeID) (int, int) {
	w, h := unknownDim, unknownDim
	if v, ok := t.Attr(id, "width"); ok {
		w = parsePixels(v)
	}
	if v, ok := t.Attr(id, "height"); ok {
		h = parsePixels(v)
	}
	if style, ok := t.Attr(id, "style"); ok {
		decls := parseStyle(style)
		if w == unknownDim {
			if v, ok := decls.get("width"); ok {
				w = parsePixels(v)
			}
		}
		if h == unknownDim {
			if v, ok := decls.get("height"); ok {
				h = parsePixels(v)
			}
		}
	}
	return w, h
}

// parsePixels accepts "12", "12px" and "12.0px"
func parsePixels(v string) int {
	v = strings.TrimSpace(strings.ToLower(v))
	v = strings.TrimSuffix(v, "px")
	v = strings.TrimSpace(v)
	if v == "" {
		return unknownDim
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return unknownDim
	}
	return int(f)
}
