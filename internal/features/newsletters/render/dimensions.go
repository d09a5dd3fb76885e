package render

import "strings"

// blockContainers get max-width:100% during dimension stripping
var blockContainers = map[string]bool{
	"div": true, "section": true, "article": true, "header": true, "footer": true,
	"main": true, "aside": true, "nav": true, "figure": true, "blockquote": true,
	"pre": true, "center": true, "table": true,
}

var sizeProps = []string{"width", "height", "min-width", "min-height"}

func (tr *Transformer) stripFixedDimensions(t *Tree) {
	tr.each(t, "dimensions", t.elements(), func(id NodeID) {
		t.RemoveAttr(id, "width", "height")

		t.updateStyle(id, func(d declarations) declarations {
			for _, prop := range sizeProps {
				if v, ok := d.get(prop); ok && isFixedSize(v) {
					d = d.remove(prop)
				}
			}
			if blockContainers[t.Tag(id)] {
				d = d.set("max-width", "100%")
			}
			return d
		})
	})
}

// isFixedSize is true for anything other than auto or a percentage
func isFixedSize(v string) bool {
	v = cssKeyword(v)
	return v != "auto" && !strings.HasSuffix(v, "%")
}
