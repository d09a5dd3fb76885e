package render

import "strings"

// trackingMarkers flag an element as tracking when found in its class or id
var trackingMarkers = []string{"track", "pixel", "analytics", "beacon"}

func (tr *Transformer) removeTracking(t *Tree) {
	removed := 0
	tr.each(t, "tracking", t.elements(), func(id NodeID) {
		if isTrackingPixel(t, id) || hasTrackingMarker(t, id) || isHidden(t, id) {
			t.Remove(id)
			removed++
		}
	})
	if removed > 0 {
		tr.logger.Debug("Removed tracking elements", "count", removed)
	}
}

// isTrackingPixel matches images declared as 1x1 or 0x0
func isTrackingPixel(t *Tree, id NodeID) bool {
	if t.Tag(id) != "img" {
		return false
	}
	n := &t.nodes[id]
	return n.declW >= 0 && n.declW <= 1 && n.declH >= 0 && n.declH <= 1
}

func hasTrackingMarker(t *Tree, id NodeID) bool {
	for _, key := range []string{"class", "id"} {
		v, ok := t.Attr(id, key)
		if !ok {
			continue
		}
		v = strings.ToLower(v)
		for _, marker := range trackingMarkers {
			if strings.Contains(v, marker) {
				return true
			}
		}
	}
	return false
}

// isHidden matches an inline display:none
func isHidden(t *Tree, id NodeID) bool {
	v, ok := t.styleOf(id).get("display")
	if !ok {
		return false
	}
	return cssKeyword(v) == "none"
}

// cssKeyword lowercases v and drops an !important suffix
func cssKeyword(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	v = strings.TrimSuffix(v, "!important")
	return strings.TrimSpace(v)
}
