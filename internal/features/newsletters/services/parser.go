package services

import (
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	"letterbox/internal/core"
	"letterbox/internal/features/newsletters/models"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/atom"
	"github.com/mmcdole/gofeed/rss"
	"golang.org/x/net/html/charset"
)

// DefaultMaxItems bounds how many items a single parse returns
const DefaultMaxItems = 50

const untitled = "Untitled"

// ParserService turns raw feed XML into a dialect-neutral ParsedFeed
type ParserService struct {
	logger   *core.Logger
	maxItems int
	now      func() time.Time
}

// NewParserService creates a new parser service
func NewParserService(logger *core.Logger, maxItems int) *ParserService {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &ParserService{
		logger:   logger,
		maxItems: maxItems,
		now:      time.Now,
	}
}

type dialect int

const (
	dialectUnknown dialect = iota
	dialectAtom
	dialectRSS
	// a bare <channel> document without the <rss> wrapper
	dialectChannel
)

// Parse detects the feed dialect from the document structure and extracts
// its items. A single bad item is logged and skipped; only a document that is
// not XML or not a feed fails with *ParseError.
func (p *ParserService) Parse(raw string) (*models.ParsedFeed, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &ParseError{Reason: "empty document"}
	}
	if err := wellFormed(trimmed); err != nil {
		return nil, &ParseError{Reason: "document is not well-formed XML", Err: err}
	}

	switch detectDialect(trimmed) {
	case dialectAtom:
		feed, err := (&atom.Parser{}).Parse(strings.NewReader(trimmed))
		if err != nil {
			return nil, &ParseError{Reason: "malformed atom document", Err: err}
		}
		return p.fromAtom(feed), nil
	case dialectRSS:
		feed, err := (&rss.Parser{}).Parse(strings.NewReader(trimmed))
		if err != nil {
			return nil, &ParseError{Reason: "malformed rss document", Err: err}
		}
		return p.fromRSS(feed), nil
	case dialectChannel:
		wrapped := `<rss version="2.0">` + stripXMLDeclaration(trimmed) + `</rss>`
		feed, err := (&rss.Parser{}).Parse(strings.NewReader(wrapped))
		if err != nil {
			return nil, &ParseError{Reason: "malformed rss channel document", Err: err}
		}
		return p.fromRSS(feed), nil
	default:
		return nil, &ParseError{Reason: "document is neither atom (feed/entry) nor rss (channel/item)"}
	}
}

// detectDialect looks at the root element only
func detectDialect(doc string) dialect {
	switch gofeed.DetectFeedType(strings.NewReader(doc)) {
	case gofeed.FeedTypeAtom:
		return dialectAtom
	case gofeed.FeedTypeRSS:
		return dialectRSS
	}

	if rootElement(doc) == "channel" {
		return dialectChannel
	}
	return dialectUnknown
}

func rootElement(doc string) string {
	d := xml.NewDecoder(strings.NewReader(doc))
	d.Strict = false
	for {
		tok, err := d.Token()
		if err != nil {
			return ""
		}
		if se, ok := tok.(xml.StartElement); ok {
			return strings.ToLower(se.Name.Local)
		}
	}
}

func wellFormed(doc string) error {
	d := xml.NewDecoder(strings.NewReader(doc))
	d.Strict = true
	d.Entity = xml.HTMLEntity
	d.CharsetReader = charset.NewReaderLabel
	for {
		_, err := d.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

var xmlDeclRe = regexp.MustCompile(`^\s*<\?xml[^>]*\?>`)

func stripXMLDeclaration(doc string) string {
	return xmlDeclRe.ReplaceAllString(doc, "")
}

func (p *ParserService) fromAtom(feed *atom.Feed) *models.ParsedFeed {
	parsed := &models.ParsedFeed{
		Title:       decodeText(feed.Title),
		Description: decodeText(feed.Subtitle),
	}
	parsed.LastUpdated, _ = p.firstDate(rawDate{feed.UpdatedParsed, feed.Updated})
	if feed.Logo != "" {
		parsed.ImageURL = strings.TrimSpace(feed.Logo)
	} else if feed.Icon != "" {
		parsed.ImageURL = strings.TrimSpace(feed.Icon)
	}

	items := make([]models.FeedItem, 0, len(feed.Entries))
	for i, entry := range feed.Entries {
		item, err := p.extractSafely(i, func() (models.FeedItem, error) {
			return p.atomItem(entry)
		})
		if err != nil {
			p.logger.Warn("Skipping feed entry", "error", err)
			continue
		}
		items = append(items, item)
	}
	parsed.Items = capNewest(items, p.maxItems)
	return parsed
}

func (p *ParserService) atomItem(entry *atom.Entry) (models.FeedItem, error) {
	if entry == nil {
		return models.FeedItem{}, errors.New("empty entry")
	}

	item := models.FeedItem{
		Title: decodeText(entry.Title),
		Link:  decodeText(atomLink(entry.Links)),
	}
	if item.Title == "" {
		item.Title = untitled
	}

	if entry.Content != nil && strings.TrimSpace(entry.Content.Value) != "" {
		item.ContentHTML = entry.Content.Value
	} else {
		item.ContentHTML = entry.Summary
	}

	var dated bool
	item.PublishedAt, dated = p.firstDate(
		rawDate{entry.PublishedParsed, entry.Published},
		rawDate{entry.UpdatedParsed, entry.Updated},
	)

	if len(entry.Authors) > 0 && entry.Authors[0] != nil {
		item.Author = decodeText(entry.Authors[0].Name)
	}

	item.GUID = decodeText(entry.ID)
	if item.GUID == "" {
		item.GUID = fallbackGUID(item, dated)
	}
	return item, nil
}

// atomLink prefers the alternate (or rel-less) link, else the first one
func atomLink(links []*atom.Link) string {
	var first string
	for _, link := range links {
		if link == nil || strings.TrimSpace(link.Href) == "" {
			continue
		}
		if first == "" {
			first = link.Href
		}
		if link.Rel == "" || link.Rel == "alternate" {
			return link.Href
		}
	}
	return first
}

func (p *ParserService) fromRSS(feed *rss.Feed) *models.ParsedFeed {
	parsed := &models.ParsedFeed{
		Title:       decodeText(feed.Title),
		Description: decodeText(feed.Description),
	}
	parsed.LastUpdated, _ = p.firstDate(
		rawDate{feed.LastBuildDateParsed, feed.LastBuildDate},
		rawDate{feed.PubDateParsed, feed.PubDate},
	)
	if feed.Image != nil {
		parsed.ImageURL = strings.TrimSpace(feed.Image.URL)
	}

	items := make([]models.FeedItem, 0, len(feed.Items))
	for i, rssItem := range feed.Items {
		item, err := p.extractSafely(i, func() (models.FeedItem, error) {
			return p.rssItem(rssItem)
		})
		if err != nil {
			p.logger.Warn("Skipping feed item", "error", err)
			continue
		}
		items = append(items, item)
	}
	parsed.Items = capNewest(items, p.maxItems)
	return parsed
}

func (p *ParserService) rssItem(in *rss.Item) (models.FeedItem, error) {
	if in == nil {
		return models.FeedItem{}, errors.New("empty item")
	}

	item := models.FeedItem{
		Title: decodeText(in.Title),
		Link:  decodeText(in.Link),
	}
	if item.Title == "" {
		item.Title = untitled
	}

	// content:encoded, then description
	if strings.TrimSpace(in.Content) != "" {
		item.ContentHTML = in.Content
	} else {
		item.ContentHTML = in.Description
	}

	dates := []rawDate{{in.PubDateParsed, in.PubDate}}
	if in.DublinCoreExt != nil {
		for _, d := range in.DublinCoreExt.Date {
			dates = append(dates, rawDate{raw: d})
		}
	}
	var dated bool
	item.PublishedAt, dated = p.firstDate(dates...)

	item.Author = decodeText(in.Author)
	if item.Author == "" && in.DublinCoreExt != nil && len(in.DublinCoreExt.Creator) > 0 {
		item.Author = decodeText(in.DublinCoreExt.Creator[0])
	}

	if in.GUID != nil {
		item.GUID = decodeText(in.GUID.Value)
	}
	if item.GUID == "" {
		item.GUID = fallbackGUID(item, dated)
	}
	return item, nil
}

// fallbackGUID hashes the title and published time. A time synthesized at
// parse time differs on every parse, so undated items hash over their link
// and content instead.
func fallbackGUID(item models.FeedItem, dated bool) string {
	if dated {
		return HashGUID(item.Title, item.PublishedAt)
	}
	return HashGUID(item.Title+"|"+item.Link+"|"+item.ContentHTML, time.Time{})
}

// extractSafely turns a failing or panicking extraction into an ItemExtractionError
func (p *ParserService) extractSafely(index int, fn func() (models.FeedItem, error)) (item models.FeedItem, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ItemExtractionError{Index: index, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	item, err = fn()
	if err != nil {
		return models.FeedItem{}, &ItemExtractionError{Index: index, Err: err}
	}
	return item, nil
}

// rawDate is one date field of a feed element
type rawDate struct {
	parsed *time.Time
	raw    string
}

// firstDate returns the first candidate that parses, trying gofeed's value
// then our own layouts. When none does it returns now and false.
func (p *ParserService) firstDate(candidates ...rawDate) (time.Time, bool) {
	for _, c := range candidates {
		if c.parsed != nil && !c.parsed.IsZero() {
			return c.parsed.UTC(), true
		}
		if t, err := parseDate(c.raw); err == nil {
			return t, true
		}
	}
	return p.now().UTC(), false
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 02 Jan 2006 15:04 -0700",
	"2 Jan 2006 15:04:05 -0700",
	"02 Jan 2006 15:04:05 MST",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseDate parses the date formats commonly found in feeds, normalized to UTC
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", raw)
}

// decodeText trims and decodes HTML entities left after XML decoding
func decodeText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !strings.Contains(s, "&") {
		return s
	}
	return strings.TrimSpace(html.UnescapeString(s))
}

// capNewest keeps at most max items, dropping the oldest, in document order
func capNewest(items []models.FeedItem, max int) []models.FeedItem {
	if len(items) <= max {
		return items
	}

	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return items[order[a]].PublishedAt.After(items[order[b]].PublishedAt)
	})

	keep := make([]bool, len(items))
	for _, idx := range order[:max] {
		keep[idx] = true
	}

	capped := make([]models.FeedItem, 0, max)
	for i, item := range items {
		if keep[i] {
			capped = append(capped, item)
		}
	}
	return capped
}
