package render

import (
	"math"
	"strconv"
	"strings"
)

// minContrast is the WCAG AA ratio for body text
const minContrast = 4.5

type rgb struct {
	r, g, b uint8
}

var namedColors = map[string]rgb{
	"black":   {0, 0, 0},
	"white":   {255, 255, 255},
	"red":     {255, 0, 0},
	"green":   {0, 128, 0},
	"blue":    {0, 0, 255},
	"yellow":  {255, 255, 0},
	"orange":  {255, 165, 0},
	"purple":  {128, 0, 128},
	"gray":    {128, 128, 128},
	"grey":    {128, 128, 128},
	"silver":  {192, 192, 192},
	"navy":    {0, 0, 128},
	"maroon":  {128, 0, 0},
	"teal":    {0, 128, 128},
	"olive":   {128, 128, 0},
	"lime":    {0, 255, 0},
	"aqua":    {0, 255, 255},
	"fuchsia": {255, 0, 255},
}

// adaptDarkMode drops author colors the theme should own: black text, white
// backgrounds, and any pair below the minimum contrast ratio. Ancestors are
// visited first so their decisions shape the effective colors below them.
func (tr *Transformer) adaptDarkMode(t *Tree) {
	tr.each(t, "darkmode", t.elements(), func(id NodeID) {
		decls := t.styleOf(id)
		fgValue, hasFG := decls.get("color")
		bgProp, bgValue, hasBG := backgroundOf(decls)
		if !hasFG && !hasBG {
			return
		}

		fg, fgOK := parseColor(fgValue)
		bg, bgOK := parseColor(bgValue)

		if hasFG && fgOK && fg == (rgb{0, 0, 0}) {
			decls = decls.remove("color")
			hasFG = false
		}
		if hasBG && bgOK && bg == (rgb{255, 255, 255}) {
			decls = decls.remove(bgProp)
			hasBG = false
		}

		if hasFG || hasBG {
			effFG, fgKnown := fg, hasFG && fgOK
			if !fgKnown {
				effFG, fgKnown = inheritedColor(t, t.Parent(id), "color")
			}
			effBG, bgKnown := bg, hasBG && bgOK
			if !bgKnown {
				effBG, bgKnown = inheritedColor(t, t.Parent(id), "background")
			}
			if fgKnown && bgKnown && contrastRatio(effFG, effBG) < minContrast {
				decls = decls.remove("color", bgProp)
			}
		}

		t.setStyle(id, decls)
	})
}

// backgroundOf returns the declaration holding the background color. A
// background shorthand only counts when it is a plain color.
func backgroundOf(d declarations) (string, string, bool) {
	if v, ok := d.get("background-color"); ok {
		return "background-color", v, true
	}
	if v, ok := d.get("background"); ok {
		if _, isColor := parseColor(v); isColor {
			return "background", v, true
		}
	}
	return "", "", false
}

// inheritedColor walks up from id to the nearest element still declaring the
// color. kind is "color" or "background".
func inheritedColor(t *Tree, id NodeID, kind string) (rgb, bool) {
	for id != noNode && id != t.Root() {
		decls := t.styleOf(id)
		var value string
		var ok bool
		if kind == "color" {
			value, ok = decls.get("color")
		} else {
			_, value, ok = backgroundOf(decls)
		}
		if ok {
			return parseColor(value)
		}
		id = t.Parent(id)
	}
	return rgb{}, false
}

// parseColor understands hex, rgb(), rgba() with non-zero alpha and a few
// named colors
func parseColor(v string) (rgb, bool) {
	v = cssKeyword(v)
	if v == "" {
		return rgb{}, false
	}

	if c, ok := namedColors[v]; ok {
		return c, true
	}

	if strings.HasPrefix(v, "#") {
		hex := v[1:]
		switch len(hex) {
		case 3, 4:
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		case 6, 8:
			hex = hex[:6]
		default:
			return rgb{}, false
		}
		n, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return rgb{}, false
		}
		return rgb{uint8(n >> 16), uint8(n >> 8), uint8(n)}, true
	}

	if strings.HasPrefix(v, "rgb(") || strings.HasPrefix(v, "rgba(") {
		open := strings.Index(v, "(")
		if !strings.HasSuffix(v, ")") {
			return rgb{}, false
		}
		parts := strings.FieldsFunc(v[open+1:len(v)-1], func(r rune) bool {
			return r == ',' || r == ' ' || r == '/'
		})
		if len(parts) < 3 {
			return rgb{}, false
		}
		if len(parts) >= 4 {
			if a, err := strconv.ParseFloat(strings.TrimSuffix(parts[3], "%"), 64); err == nil && a == 0 {
				return rgb{}, false
			}
		}
		var c [3]uint8
		for i := 0; i < 3; i++ {
			channel, ok := parseChannel(parts[i])
			if !ok {
				return rgb{}, false
			}
			c[i] = channel
		}
		return rgb{c[0], c[1], c[2]}, true
	}

	return rgb{}, false
}

func parseChannel(s string) (uint8, bool) {
	if strings.HasSuffix(s, "%") {
		f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return 0, false
		}
		return uint8(math.Round(clamp(f, 0, 100) * 255 / 100)), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return uint8(math.Round(clamp(f, 0, 255))), true
}

func clamp(f, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, f))
}

// relativeLuminance follows the WCAG 2 definition
func relativeLuminance(c rgb) float64 {
	linear := func(v uint8) float64 {
		s := float64(v) / 255
		if s <= 0.03928 {
			return s / 12.92
		}
		return math.Pow((s+0.055)/1.055, 2.4)
	}
	return 0.2126*linear(c.r) + 0.7152*linear(c.g) + 0.0722*linear(c.b)
}

func contrastRatio(a, b rgb) float64 {
	la, lb := relativeLuminance(a), relativeLuminance(b)
	if la < lb {
		la, lb = lb, la
	}
	return (la + 0.05) / (lb + 0.05)
}
