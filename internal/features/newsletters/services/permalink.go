package services

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"letterbox/internal/core"
	"letterbox/internal/features/newsletters/models"

	"github.com/PuerkitoBio/goquery"
)

var bridgeFeedPathRe = regexp.MustCompile(`^/feeds/([^/]+)\.xml$`)

// LinkCache remembers permalinks resolved by the slow path. It lives for the
// whole process and is never invalidated.
type LinkCache struct {
	mu    sync.RWMutex
	links map[string]string
}

// NewLinkCache creates an empty link cache
func NewLinkCache() *LinkCache {
	return &LinkCache{links: make(map[string]string)}
}

// Get returns a cached link
func (c *LinkCache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	link, ok := c.links[key]
	return link, ok
}

// Put stores a resolved link
func (c *LinkCache) Put(key, link string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.links[key] = link
}

// Len returns the number of cached links
func (c *LinkCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.links)
}

// PermalinkService derives external links for feed items
type PermalinkService struct {
	fetcher DocumentFetcher
	parser  FeedParser
	cache   *LinkCache
	logger  *core.Logger
}

// NewPermalinkService creates a new permalink service. fetcher and parser are
// only used by ResolveLive.
func NewPermalinkService(fetcher DocumentFetcher, parser FeedParser, cache *LinkCache, logger *core.Logger) *PermalinkService {
	if cache == nil {
		cache = NewLinkCache()
	}
	return &PermalinkService{
		fetcher: fetcher,
		parser:  parser,
		cache:   cache,
		logger:  logger,
	}
}

// Resolve returns the item's own link, else a link derived from the bridge
// feed convention, else "" meaning not resolvable.
func (s *PermalinkService) Resolve(feedURL string, item models.FeedItem) string {
	if link := strings.TrimSpace(item.Link); link != "" {
		return link
	}
	return bridgePermalink(feedURL, item)
}

// bridgePermalink maps https://<host>/feeds/{feedId}.xml items to
// https://<host>/feeds/{feedId}/entries/{entryId}.html
func bridgePermalink(feedURL string, item models.FeedItem) string {
	u, err := url.Parse(strings.TrimSpace(feedURL))
	if err != nil || u.Host == "" {
		return ""
	}

	m := bridgeFeedPathRe.FindStringSubmatch(u.Path)
	if m == nil {
		return ""
	}
	feedID := m[1]

	entryID := entryIDFromContent(feedID, item.ContentHTML)
	if entryID == "" {
		entryID = trailingSegment(item.GUID)
	}
	if entryID == "" {
		return ""
	}

	return fmt.Sprintf("https://%s/feeds/%s/entries/%s.html", u.Host, feedID, entryID)
}

// entryIDFromContent looks for the first anchor pointing at this feed's entries
func entryIDFromContent(feedID, content string) string {
	if !strings.Contains(content, "/entries/") {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return ""
	}

	re := regexp.MustCompile(`/feeds/` + regexp.QuoteMeta(feedID) + `/entries/([A-Za-z0-9_-]+)`)

	var entryID string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if m := re.FindStringSubmatch(href); m != nil {
			entryID = m[1]
			return false
		}
		return true
	})
	return entryID
}

// trailingSegment returns what follows the last ':' or '/' of a guid
func trailingSegment(guid string) string {
	guid = strings.TrimSpace(guid)
	if guid == "" {
		return ""
	}
	idx := strings.LastIndexAny(guid, ":/")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(guid[idx+1:])
}

// ResolveLive re-fetches the feed and matches an item by normalized title,
// then by prefix or substring, then by nearest publish date. It is meant for
// display time, never for sync.
func (s *PermalinkService) ResolveLive(ctx context.Context, feedURL, title string, publishedAt *time.Time) (string, error) {
	key := linkCacheKey(feedURL, title, publishedAt)
	if link, ok := s.cache.Get(key); ok {
		return link, nil
	}

	doc, err := s.fetcher.Fetch(ctx, feedURL)
	if err != nil {
		return "", err
	}
	parsed, err := s.parser.Parse(doc.Content)
	if err != nil {
		return "", err
	}

	item, ok := matchItem(parsed.Items, title, publishedAt)
	if !ok {
		return "", ErrNoLink
	}

	link := s.Resolve(feedURL, item)
	if link == "" {
		return "", ErrNoLink
	}

	s.cache.Put(key, link)
	s.logger.Debug("Resolved permalink from live feed", "feed_url", feedURL, "link", link)
	return link, nil
}

func linkCacheKey(feedURL, title string, publishedAt *time.Time) string {
	ts := ""
	if publishedAt != nil {
		ts = publishedAt.UTC().Format(time.RFC3339)
	}
	return feedURL + "\x00" + normalizeTitle(title) + "\x00" + ts
}

func matchItem(items []models.FeedItem, title string, publishedAt *time.Time) (models.FeedItem, bool) {
	want := normalizeTitle(title)

	if want != "" {
		for _, item := range items {
			if normalizeTitle(item.Title) == want {
				return item, true
			}
		}
		for _, item := range items {
			got := normalizeTitle(item.Title)
			if got == "" {
				continue
			}
			if strings.HasPrefix(got, want) || strings.HasPrefix(want, got) {
				return item, true
			}
		}
		for _, item := range items {
			got := normalizeTitle(item.Title)
			if got == "" {
				continue
			}
			if strings.Contains(got, want) || strings.Contains(want, got) {
				return item, true
			}
		}
	}

	if publishedAt != nil && len(items) > 0 {
		best := 0
		bestDiff := absDuration(items[0].PublishedAt.Sub(*publishedAt))
		for i := 1; i < len(items); i++ {
			if d := absDuration(items[i].PublishedAt.Sub(*publishedAt)); d < bestDiff {
				best, bestDiff = i, d
			}
		}
		return items[best], true
	}

	return models.FeedItem{}, false
}

// normalizeTitle lowercases and collapses whitespace
func normalizeTitle(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
