package imageproxy

import (
	"fmt"
	"time"

	"letterbox/internal/core"
)

// Config represents image proxy feature configuration
type Config struct {
	Enabled       bool
	BaseURL       string
	FetchTimeout  time.Duration
	UploadRetries int
	MaxImageBytes int64
	UserAgent     string
	AllowPrivate  bool
}

// NewConfig creates image proxy config from core config
func NewConfig(coreConfig *core.Config) *Config {
	return &Config{
		Enabled:       coreConfig.Features.ImageProxy.Enabled,
		BaseURL:       coreConfig.Server.BaseURL,
		FetchTimeout:  coreConfig.Features.ImageProxy.FetchTimeout,
		UploadRetries: coreConfig.Features.ImageProxy.UploadRetries,
		MaxImageBytes: coreConfig.Features.ImageProxy.MaxImageBytes,
		UserAgent:     coreConfig.Features.Newsletters.UserAgent,
		AllowPrivate:  coreConfig.Features.ImageProxy.AllowPrivate,
	}
}

// Validate validates the image proxy configuration
func (c *Config) Validate() error {
	if c.FetchTimeout <= 0 || c.FetchTimeout > time.Minute {
		return fmt.Errorf("image fetch timeout must be between 0 and 1m")
	}

	if c.UploadRetries < 1 || c.UploadRetries > 10 {
		return fmt.Errorf("image upload retries must be between 1 and 10")
	}

	if c.MaxImageBytes <= 0 {
		return fmt.Errorf("image max bytes must be positive")
	}

	return nil
}
