package render

import (
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

// allowedElements are the structural and text tags kept by Sanitize
var allowedElements = []string{
	"p", "br", "hr", "h1", "h2", "h3", "h4", "h5", "h6",
	"ul", "ol", "li", "dl", "dt", "dd",
	"table", "thead", "tbody", "tfoot", "tr", "td", "th", "caption", "colgroup", "col",
	"a", "img", "div", "span", "section", "article", "header", "footer", "main", "aside", "nav",
	"figure", "figcaption", "blockquote", "pre", "code",
	"b", "strong", "i", "em", "u", "s", "strike", "del", "ins", "sub", "sup", "small", "mark",
	"abbr", "cite", "q", "center", "font", "picture", "source",
}

// allowedStyles are the inline CSS properties that survive, each validated by
// bluemonday's per-property value handler
var allowedStyles = []string{
	"color", "background", "background-color",
	"font", "font-family", "font-size", "font-style", "font-weight", "line-height",
	"letter-spacing", "text-align", "text-decoration", "text-transform", "white-space",
	"vertical-align", "direction",
	"width", "height", "min-width", "min-height", "max-width", "max-height",
	"margin", "margin-top", "margin-right", "margin-bottom", "margin-left",
	"padding", "padding-top", "padding-right", "padding-bottom", "padding-left",
	"border", "border-top", "border-right", "border-bottom", "border-left",
	"border-color", "border-style", "border-width", "border-radius",
	"border-collapse", "border-spacing",
	"display", "visibility", "table-layout", "word-break", "overflow-wrap", "word-wrap",
	"box-sizing", "opacity",
}

// bridgeFooterRe matches the promotional paragraph the newsletter-to-feed
// bridge appends to every converted email
var bridgeFooterRe = regexp.MustCompile(
	`(?is)(?:<hr\s*/?>\s*)?<p\b[^>]*>(?:[^<]|<(?:/?(?:a|span|b|strong|em|i|small|br)\b[^>]*)>)*?` +
		`(?:kill the newsletter|converted (?:from|to) (?:an? )?(?:rss |atom )?feed by)` +
		`(?:[^<]|<(?:/?(?:a|span|b|strong|em|i|small|br)\b[^>]*)>)*?</p>`,
)

// linkHrefRe admits http, https, mailto and tel links and relative references.
// Data URIs stay limited to image sources.
var linkHrefRe = regexp.MustCompile(`^(?:(?i:https?|mailto|tel):|[^:/?#]*(?:[/?#]|$))`)

func sanitizePolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.NewPolicy()
		p.AllowElements(allowedElements...)

		p.AllowAttrs("alt", "title", "class", "id", "width", "height").Globally()
		p.AllowAttrs("href").Matching(linkHrefRe).OnElements("a")
		p.AllowAttrs("target", "rel").OnElements("a")
		p.AllowAttrs("src").OnElements("img", "source")
		p.AllowAttrs("srcset", "media", "type").OnElements("source")
		p.AllowAttrs("colspan", "rowspan", "align", "valign").OnElements("td", "th")
		p.AllowAttrs("align").OnElements("table", "tr", "p", "div", "img", "h1", "h2", "h3", "h4", "h5", "h6")
		p.AllowStyles(allowedStyles...).Globally()

		p.RequireParseableURLs(true)
		p.AllowRelativeURLs(true)
		p.AllowURLSchemes("http", "https", "mailto", "tel")
		p.AllowDataURIImages()

		p.AddTargetBlankToFullyQualifiedLinks(true)
		p.RequireNoReferrerOnFullyQualifiedLinks(true)

		p.SkipElementsContent("script", "style", "object", "embed", "iframe", "noscript", "title", "head")
		policy = p
	})
	return policy
}

// Sanitize strips everything outside the newsletter allow-list. Unknown tags
// and attributes are dropped, URLs outside http, https, mailto, tel, relative
// paths and inline images are removed, and external anchors open in a new tab
// without a referrer.
func Sanitize(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	clean := sanitizePolicy().Sanitize(raw)
	return StripBridgeFooter(clean)
}

// StripBridgeFooter removes the feed bridge's boilerplate footer
func StripBridgeFooter(s string) string {
	return strings.TrimSpace(bridgeFooterRe.ReplaceAllString(s, ""))
}
