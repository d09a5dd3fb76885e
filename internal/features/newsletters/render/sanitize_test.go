package render

import (
	"strings"
	"testing"
)

func TestSanitizeFailsClosed(t *testing.T) {
	got := Sanitize(`<script>alert(1)</script><p onclick="x()">hi</p>`)
	if got != "<p>hi</p>" {
		t.Errorf("Expected <p>hi</p>, got %q", got)
	}
}

func TestSanitizeDropsDangerousMarkup(t *testing.T) {
	cases := map[string]struct {
		in      string
		absent  []string
		present []string
	}{
		"form controls": {
			in:      `<form action="/x"><input name="q"><button>Go</button></form><p>after</p>`,
			absent:  []string{"<form", "<input", "<button"},
			present: []string{"<p>after</p>"},
		},
		"embedded content": {
			in:     `<iframe src="https://evil.example"></iframe><object data="x"></object><embed src="y">`,
			absent: []string{"iframe", "object", "embed", "evil.example"},
		},
		"javascript url": {
			in:      `<a href="javascript:alert(1)">click</a>`,
			absent:  []string{"javascript"},
			present: []string{"click"},
		},
		"data uri link": {
			in:      `<a href="data:image/svg+xml;base64,PHN2Zz48L3N2Zz4=">open</a>`,
			absent:  []string{"data:", "href"},
			present: []string{"open"},
		},
		"unknown attributes": {
			in:      `<div data-x="1" onmouseover="x()" class="box">y</div>`,
			absent:  []string{"data-x", "onmouseover"},
			present: []string{`class="box"`},
		},
		"unsafe styles": {
			in:      `<p style="color: red; position: absolute">x</p>`,
			absent:  []string{"position"},
			present: []string{"color: red"},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := Sanitize(tc.in)
			for _, s := range tc.absent {
				if strings.Contains(got, s) {
					t.Errorf("Expected %q to be stripped from %q", s, got)
				}
			}
			for _, s := range tc.present {
				if !strings.Contains(got, s) {
					t.Errorf("Expected %q in %q", s, got)
				}
			}
		})
	}
}

func TestSanitizeExternalLinksOpenInNewTab(t *testing.T) {
	got := Sanitize(`<a href="https://example.com/post">read</a> <a href="/local">here</a>`)

	external := got[:strings.Index(got, "read")]
	if !strings.Contains(external, `target="_blank"`) {
		t.Errorf("Expected target=_blank on external link, got %q", got)
	}
	if !strings.Contains(external, "noopener") || !strings.Contains(external, "noreferrer") {
		t.Errorf("Expected noopener noreferrer on external link, got %q", got)
	}

	local := got[strings.Index(got, "read"):]
	if strings.Contains(local, "_blank") {
		t.Errorf("Expected relative link untouched, got %q", got)
	}
}

func TestSanitizeKeepsDataImagesAndTableLayout(t *testing.T) {
	in := `<table><tr><td colspan="2" valign="top"><img src="data:image/png;base64,iVBORw0KGgo=" alt="dot"></td></tr></table>`
	got := Sanitize(in)

	if !strings.Contains(got, `src="data:image/png;base64,iVBORw0KGgo="`) {
		t.Errorf("Expected data image to survive, got %q", got)
	}
	if !strings.Contains(got, `colspan="2"`) || !strings.Contains(got, `valign="top"`) {
		t.Errorf("Expected cell layout attributes to survive, got %q", got)
	}
}

func TestStripBridgeFooter(t *testing.T) {
	in := `<p>Hello</p><hr><p>Sent via <a href="https://kill-the-newsletter.com">Kill the Newsletter!</a></p>`
	got := Sanitize(in)

	if got != "<p>Hello</p>" {
		t.Errorf("Expected footer removed, got %q", got)
	}
}

func TestStripBridgeFooterLeavesOrdinaryParagraphs(t *testing.T) {
	in := `<p>Our newsletter talks about feeds.</p>`
	if got := StripBridgeFooter(in); got != in {
		t.Errorf("Expected paragraph untouched, got %q", got)
	}
}

func TestSanitizeKeepsAllowedLinkSchemes(t *testing.T) {
	for _, href := range []string{"https://example.com/a", "http://example.com", "mailto:editor@example.com", "tel:+15550100", "/archive", "issue-2.html", "#top", "?page=2"} {
		got := Sanitize(`<a href="` + href + `">x</a>`)
		if !strings.Contains(got, `href="`+href+`"`) {
			t.Errorf("Expected href %q to survive, got %q", href, got)
		}
	}
}
