package models

import (
	"time"
)

// FeedDocument is the raw result of fetching a feed URL
type FeedDocument struct {
	URL         string `json:"-"`
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
}

// ParsedFeed is a dialect-neutral view of one fetched feed document.
// It only lives for the duration of a sync call.
type ParsedFeed struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	ImageURL    string     `json:"image_url,omitempty"`
	Items       []FeedItem `json:"items"`
	LastUpdated time.Time  `json:"last_updated"`
}

// FeedItem is one normalized entry/item of a parsed feed
type FeedItem struct {
	GUID        string    `json:"guid"`
	Title       string    `json:"title"`
	ContentHTML string    `json:"content_html"`
	PublishedAt time.Time `json:"published_at"`
	Link        string    `json:"link,omitempty"`
	Author      string    `json:"author,omitempty"`
}

// FetcherConfig holds configuration for the fetcher service
type FetcherConfig struct {
	UserAgent    string        `json:"user_agent"`
	Timeout      time.Duration `json:"timeout"`
	MaxAttempts  int           `json:"max_attempts"`
	BaseDelay    time.Duration `json:"base_delay"`
	MaxBodyBytes int64         `json:"max_body_bytes"`
}

// DefaultFetcherConfig returns default fetcher configuration
func DefaultFetcherConfig() *FetcherConfig {
	return &FetcherConfig{
		UserAgent:    "Letterbox/1.0",
		Timeout:      10 * time.Second,
		MaxAttempts:  3,
		BaseDelay:    time.Second,
		MaxBodyBytes: 10 << 20,
	}
}
