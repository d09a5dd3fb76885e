package render

import (
	"math"
	"strings"
	"testing"
)

func newTestTransformer() *Transformer {
	return NewTransformer(nil)
}

// imgTag returns the first <img ...> tag in s that mentions marker
func imgTag(s, marker string) string {
	for {
		start := strings.Index(s, "<img")
		if start < 0 {
			return ""
		}
		end := strings.Index(s[start:], ">")
		if end < 0 {
			return ""
		}
		tag := s[start : start+end+1]
		if strings.Contains(tag, marker) {
			return tag
		}
		s = s[start+end+1:]
	}
}

func TestTransformRemovesTrackingPixels(t *testing.T) {
	in := `<p>Hi</p>` +
		`<img src="https://t.example/track/open.gif" width="1" height="1">` +
		`<img src="https://cdn.example/hero.png" width="600" height="400" alt="Hero">`

	out := newTestTransformer().Transform(in, DefaultOptions())

	if strings.Contains(out, "t.example") {
		t.Errorf("Expected tracking pixel removed, got %q", out)
	}

	hero := imgTag(out, "hero.png")
	if hero == "" {
		t.Fatalf("Expected content image to survive, got %q", out)
	}
	if strings.Contains(hero, `width="600"`) || strings.Contains(hero, `height="400"`) {
		t.Errorf("Expected width/height attributes removed, got %q", hero)
	}
	if !strings.Contains(hero, "max-width:100%") {
		t.Errorf("Expected max-width:100%% in style, got %q", hero)
	}
	for _, attr := range []string{`loading="lazy"`, `decoding="async"`, ProxyMarker} {
		if !strings.Contains(hero, attr) {
			t.Errorf("Expected %s on image, got %q", attr, hero)
		}
	}
}

func TestTransformRemovesMarkedAndHiddenElements(t *testing.T) {
	in := `<div class="email-Tracking">a</div>` +
		`<img id="open-beacon" src="https://cdn.example/b.png" width="50" height="50">` +
		`<span style="display: none !important">preheader</span>` +
		`<p>keep</p>`

	out := newTestTransformer().Transform(in, DefaultOptions())

	for _, gone := range []string{"email-Tracking", "open-beacon", "preheader"} {
		if strings.Contains(out, gone) {
			t.Errorf("Expected %q removed, got %q", gone, out)
		}
	}
	if !strings.Contains(out, "<p>keep</p>") {
		t.Errorf("Expected paragraph kept, got %q", out)
	}
}

func TestTransformLeavesDataImagesUnmarked(t *testing.T) {
	in := `<img src="data:image/png;base64,iVBORw0KGgo=" width="40" height="40">`
	out := newTestTransformer().Transform(in, DefaultOptions())

	tag := imgTag(out, "data:image/png")
	if tag == "" {
		t.Fatalf("Expected data image kept, got %q", out)
	}
	if strings.Contains(tag, ProxyMarker) {
		t.Errorf("Expected data image not marked for proxying, got %q", tag)
	}
}

func TestTransformCollapsesSpacerColumns(t *testing.T) {
	in := `<table>` +
		`<tr><td>&nbsp;</td><td><p>Hello</p></td><td>  </td></tr>` +
		`<tr><td colspan="3">Footer</td></tr>` +
		`</table>`

	out := newTestTransformer().Transform(in, DefaultOptions())

	if n := strings.Count(out, "<td"); n != 2 {
		t.Errorf("Expected 2 cells after collapse, got %d in %q", n, out)
	}
	if strings.Contains(out, "\u00a0") {
		t.Errorf("Expected spacer cell removed, got %q", out)
	}
	if !strings.Contains(out, `colspan="3"><p>Hello</p></td>`) {
		t.Errorf("Expected middle cell to span the table, got %q", out)
	}

	cellStart := strings.Index(out, "<td")
	cell := out[cellStart : cellStart+strings.Index(out[cellStart:], ">")]
	if !strings.Contains(cell, "width:100%") {
		t.Errorf("Expected full-width middle cell, got %q", cell)
	}
}

func TestTransformUnwrapsSingleCellTable(t *testing.T) {
	in := `<table width="600"><tr><td>&nbsp;</td><td><p>Hello</p></td><td>&nbsp;</td></tr></table>`

	out := newTestTransformer().Transform(in, DefaultOptions())

	if strings.Contains(out, "<table") || strings.Contains(out, "<td") {
		t.Errorf("Expected table unwrapped, got %q", out)
	}
	if !strings.Contains(out, `<div style="max-width:100%"><p>Hello</p></div>`) {
		t.Errorf("Expected plain container with the cell content, got %q", out)
	}
}

func TestTransformTrimsSpacerRunsAtRowEdges(t *testing.T) {
	in := `<table><tr><td></td><td> </td><td>A</td><td>B</td><td></td></tr></table>`

	out := newTestTransformer().Transform(in, DefaultOptions())

	if n := strings.Count(out, "<td"); n != 2 {
		t.Errorf("Expected 2 cells after edge trim, got %d in %q", n, out)
	}
	if !strings.Contains(out, ">A</td>") || !strings.Contains(out, ">B</td>") {
		t.Errorf("Expected content cells kept, got %q", out)
	}
	if !strings.Contains(out, "overflow-wrap:anywhere") {
		t.Errorf("Expected cell wrapping rules, got %q", out)
	}
}

func TestTransformTableGetsFluidLayout(t *testing.T) {
	in := `<table width="640" style="width: 640px"><tr><td>A</td><td>B</td></tr></table>`

	out := newTestTransformer().Transform(in, DefaultOptions())

	start := strings.Index(out, "<table")
	if start < 0 {
		t.Fatalf("Expected table kept, got %q", out)
	}
	table := out[start : start+strings.Index(out[start:], ">")]
	if strings.Contains(table, "640") {
		t.Errorf("Expected fixed width removed, got %q", table)
	}
	for _, want := range []string{"width:100%", "table-layout:auto"} {
		if !strings.Contains(table, want) {
			t.Errorf("Expected %s on table, got %q", want, table)
		}
	}
}

func TestIsSpacerCell(t *testing.T) {
	cases := []struct {
		name  string
		inner string
		want  bool
	}{
		{"empty", ``, true},
		{"nbsp", `&nbsp;`, true},
		{"whitespace", "  \n\t", true},
		{"line breaks", `<br><br>`, true},
		{"empty blocks", `<div></div><p> </p>`, true},
		{"spacer gif", `<img src="s.gif" width="10" height="10">`, true},
		{"spacer gif with stray char", `<img src="s.gif" width="20" height="1">.`, true},
		{"wide image", `<img src="x.png" width="600" height="10">`, false},
		{"undeclared image", `<img src="x.png">`, false},
		{"small image with text", `<img src="s.gif" width="1" height="1"> hi there`, false},
		{"text", `Hello`, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tree, err := parseTree(`<table><tr><td>` + tc.inner + `</td></tr></table>`)
			if err != nil {
				t.Fatalf("parseTree failed: %v", err)
			}
			cells := tree.FindAll(tree.Root(), "td")
			if len(cells) != 1 {
				t.Fatalf("Expected 1 cell, got %d", len(cells))
			}
			if got := isSpacerCell(tree, cells[0]); got != tc.want {
				t.Errorf("isSpacerCell(%q) = %v, want %v", tc.inner, got, tc.want)
			}
		})
	}
}

func TestTransformStripsFixedDimensions(t *testing.T) {
	in := `<div style="width: 600px; min-width: 600px; height: 50%">x</div><span width="10">y</span>`

	out := newTestTransformer().Transform(in, Options{})

	if strings.Contains(out, "600px") || strings.Contains(out, `width="10"`) {
		t.Errorf("Expected fixed dimensions removed, got %q", out)
	}
	if !strings.Contains(out, `<div style="height:50%; max-width:100%">x</div>`) {
		t.Errorf("Expected percentage kept and max-width added, got %q", out)
	}
	if !strings.Contains(out, "<span>y</span>") {
		t.Errorf("Expected inline element without max-width, got %q", out)
	}
}

func TestTransformPreserveOriginalStyles(t *testing.T) {
	in := `<div style="width: 600px">x</div>`
	out := newTestTransformer().Transform(in, Options{PreserveOriginalStyles: true, MaxWidth: "720px"})

	if !strings.Contains(out, `<div style="width: 600px">x</div>`) {
		t.Errorf("Expected original styles preserved, got %q", out)
	}
	if !strings.Contains(out, "max-width:720px") {
		t.Errorf("Expected container max width, got %q", out)
	}
}

func TestTransformDarkMode(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			"low contrast pair dropped",
			`<p style="color: #777777; background-color: #888888">low</p>`,
			`<p>low</p>`,
		},
		{
			"readable pair kept",
			`<p style="color: #ffffff; background-color: #1a1a1a">ok</p>`,
			`<p style="color:#ffffff; background-color:#1a1a1a">ok</p>`,
		},
		{
			"black text dropped",
			`<p style="color: #000000; font-weight: bold">black</p>`,
			`<p style="font-weight:bold">black</p>`,
		},
		{
			"white background dropped",
			`<p style="background: white">bg</p>`,
			`<p>bg</p>`,
		},
		{
			"inherited background counts",
			`<section style="background-color: rgb(40, 40, 40)"><p style="color: #333">dim</p></section>`,
			`<p>dim</p>`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := newTestTransformer().Transform(tc.in, Options{PreserveOriginalStyles: true, EnableDarkMode: true})
			if !strings.Contains(out, tc.want) {
				t.Errorf("Expected %q in %q", tc.want, out)
			}
		})
	}
}

func TestContrastRatio(t *testing.T) {
	got := contrastRatio(rgb{255, 255, 255}, rgb{0, 0, 0})
	if math.Abs(got-21) > 0.01 {
		t.Errorf("Expected 21:1, got %.2f", got)
	}
	if got := contrastRatio(rgb{10, 10, 10}, rgb{10, 10, 10}); got != 1 {
		t.Errorf("Expected 1:1 for identical colors, got %.2f", got)
	}
}

func TestParseColor(t *testing.T) {
	cases := []struct {
		in   string
		want rgb
		ok   bool
	}{
		{"#fff", rgb{255, 255, 255}, true},
		{"#1A2b3C", rgb{0x1a, 0x2b, 0x3c}, true},
		{"rgb(10, 20, 30)", rgb{10, 20, 30}, true},
		{"rgba(10,20,30,0.5)", rgb{10, 20, 30}, true},
		{"rgba(10,20,30,0)", rgb{}, false},
		{"Navy !important", rgb{0, 0, 128}, true},
		{"inherit", rgb{}, false},
		{"#12", rgb{}, false},
	}

	for _, tc := range cases {
		got, ok := parseColor(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("parseColor(%q) = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestTransformNeverFails(t *testing.T) {
	inputs := []string{
		"",
		"plain text",
		"<p>unclosed <b>bold",
		"<table><tr><td><table><tr><td>deep",
		"</div></div><td>orphan</td>",
	}

	for _, in := range inputs {
		out := newTestTransformer().Transform(in, DefaultOptions())
		if !strings.HasPrefix(out, `<div class="`+ContainerClass+`"`) || !strings.HasSuffix(out, "</div>") {
			t.Errorf("Expected wrapped output for %q, got %q", in, out)
		}
	}
}

func TestEachSkipsOnlyThePanickingElement(t *testing.T) {
	tree, err := parseTree(`<p>a</p><p>b</p><p>c</p>`)
	if err != nil {
		t.Fatalf("parseTree failed: %v", err)
	}

	var visited int
	newTestTransformer().each(tree, "test", tree.FindAll(tree.Root(), "p"), func(id NodeID) {
		visited++
		if tree.Text(id) == "b" {
			panic("bad element")
		}
	})

	if visited != 3 {
		t.Errorf("Expected all 3 elements visited, got %d", visited)
	}
}

func TestRewriteImages(t *testing.T) {
	in := newTestTransformer().Transform(
		`<img src="https://cdn.example/a.png" width="600" height="400"><img src="data:image/png;base64,iVBORw0KGgo=">`,
		DefaultOptions(),
	)

	out := RewriteImages(in, func(src string) string { return "https://proxy.example/?u=" + src })

	if !strings.Contains(out, `src="https://proxy.example/?u=https://cdn.example/a.png"`) {
		t.Errorf("Expected marked image rewritten, got %q", out)
	}
	if !strings.Contains(out, `src="data:image/png;base64,iVBORw0KGgo="`) {
		t.Errorf("Expected data image untouched, got %q", out)
	}
	if strings.Contains(out, ProxyMarker) {
		t.Errorf("Expected marker removed, got %q", out)
	}
}

func TestPipeline(t *testing.T) {
	raw := `<script>steal()</script>` +
		`<table><tr><td>&nbsp;</td><td><img src="https://cdn.example/a.png" width="600" height="400"></td><td>&nbsp;</td></tr></table>` +
		`<img src="https://t.example/open" width="1" height="1">`

	out := newTestTransformer().Pipeline(raw, DefaultOptions(), func(src string) string {
		return "/image-proxy?url=" + src
	})

	if strings.Contains(out, "steal") || strings.Contains(out, "t.example") {
		t.Errorf("Expected script and pixel removed, got %q", out)
	}
	if !strings.Contains(out, `src="/image-proxy?url=https://cdn.example/a.png"`) {
		t.Errorf("Expected proxied image, got %q", out)
	}
	if strings.Contains(out, "<table") {
		t.Errorf("Expected spacer table unwrapped, got %q", out)
	}
}

func TestRewriteImagesNilOnlyDropsMarker(t *testing.T) {
	in := newTestTransformer().Transform(`<img src="https://cdn.example/a.png">`, DefaultOptions())
	if !strings.Contains(in, ProxyMarker) {
		t.Fatalf("Expected transformed image to carry the marker, got %q", in)
	}

	out := RewriteImages(in, nil)
	if strings.Contains(out, ProxyMarker) {
		t.Errorf("Expected marker removed, got %q", out)
	}
	if !strings.Contains(out, `src="https://cdn.example/a.png"`) {
		t.Errorf("Expected source untouched, got %q", out)
	}
}
