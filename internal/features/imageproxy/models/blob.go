package models

import (
	"time"
)

// Blob is a cached copy of an external image
type Blob struct {
	Key         string    `json:"key"`
	SourceURL   string    `json:"source_url"`
	ContentType string    `json:"content_type"`
	Data        []byte    `json:"-"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CacheConfig holds configuration for the image cache service
type CacheConfig struct {
	FetchTimeout     time.Duration `json:"fetch_timeout"`
	UploadAttempts   int           `json:"upload_attempts"`
	UploadRetryDelay time.Duration `json:"upload_retry_delay"`
	MaxImageBytes    int64         `json:"max_image_bytes"`
	UserAgent        string        `json:"user_agent"`
	// AllowPrivateNetworks lets fetches reach loopback, private and
	// link-local addresses
	AllowPrivateNetworks bool `json:"allow_private_networks"`
}

// DefaultCacheConfig returns default cache configuration
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		FetchTimeout:     5 * time.Second,
		UploadAttempts:   3,
		UploadRetryDelay: 200 * time.Millisecond,
		MaxImageBytes:    8 << 20,
		UserAgent:        "Letterbox/1.0 image proxy",
	}
}
