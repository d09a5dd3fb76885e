package render

import (
	"strings"
)

// ProxyMarker is set on images whose src should go through the image proxy
// when the page is rendered
const ProxyMarker = "data-letterbox-proxy"

func (tr *Transformer) makeImagesResponsive(t *Tree) {
	tr.each(t, "images", t.FindAll(t.Root(), "img"), func(id NodeID) {
		t.RemoveAttr(id, "width", "height")
		t.updateStyle(id, func(d declarations) declarations {
			d = d.remove("width", "height")
			d = d.set("max-width", "100%")
			d = d.set("height", "auto")
			d = d.set("display", "block")
			return d
		})
		t.SetAttr(id, "loading", "lazy")
		t.SetAttr(id, "decoding", "async")

		if src, ok := t.Attr(id, "src"); ok && src != "" && !isDataURL(src) {
			t.SetAttr(id, ProxyMarker, "1")
		}
	})
}

func isDataURL(s string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(s)), "data:")
}

// RewriteImages substitutes the src of every marked image with rewrite(src)
// and drops the marker. A nil rewrite only drops the marker. Unparseable
// input is returned as is.
func RewriteImages(fragment string, rewrite func(src string) string) string {
	if !strings.Contains(fragment, ProxyMarker) {
		return fragment
	}

	t, err := parseTree(fragment)
	if err != nil {
		return fragment
	}

	for _, id := range t.FindAll(t.Root(), "img") {
		if _, marked := t.Attr(id, ProxyMarker); !marked {
			continue
		}
		t.RemoveAttr(id, ProxyMarker)
		if src, ok := t.Attr(id, "src"); ok && src != "" && rewrite != nil {
			t.SetAttr(id, "src", rewrite(src))
		}
	}

	out, err := t.RenderChildren(t.Root())
	if err != nil {
		return fragment
	}
	return out
}
