package newsletters

import (
	"fmt"
	"time"

	"letterbox/internal/core"
	"letterbox/internal/features/newsletters/models"
	"letterbox/internal/features/newsletters/render"
)

// Config represents newsletters feature configuration
type Config struct {
	Enabled                bool
	SyncInterval           time.Duration
	InterSubscriptionDelay time.Duration
	FetchTimeout           time.Duration
	FetchAttempts          int
	RetryBaseDelay         time.Duration
	MaxItemsPerParse       int
	UserAgent              string
	SyncMode               string
	SeedFile               string
	Render                 render.Options
}

// NewConfig creates newsletters config from core config
func NewConfig(coreConfig *core.Config) *Config {
	n := coreConfig.Features.Newsletters

	renderOpts := render.DefaultOptions()
	if n.RenderMaxWidth != "" {
		renderOpts.MaxWidth = n.RenderMaxWidth
	}
	renderOpts.EnableDarkMode = n.RenderDarkMode

	return &Config{
		Enabled:                n.Enabled,
		SyncInterval:           n.SyncInterval,
		InterSubscriptionDelay: n.InterSubscriptionDelay,
		FetchTimeout:           n.FetchTimeout,
		FetchAttempts:          n.FetchAttempts,
		RetryBaseDelay:         n.RetryBaseDelay,
		MaxItemsPerParse:       n.MaxItemsPerParse,
		UserAgent:              n.UserAgent,
		SyncMode:               n.SyncMode,
		SeedFile:               n.SeedFile,
		Render:                 renderOpts,
	}
}

// Validate validates the newsletters configuration
func (c *Config) Validate() error {
	if c.SyncInterval < time.Minute {
		return fmt.Errorf("sync interval must be at least one minute")
	}

	if c.InterSubscriptionDelay < 0 {
		return fmt.Errorf("inter-subscription delay cannot be negative")
	}

	if c.FetchTimeout <= 0 || c.FetchTimeout > 2*time.Minute {
		return fmt.Errorf("fetch timeout must be between 0 and 2m")
	}

	if c.FetchAttempts < 1 || c.FetchAttempts > 10 {
		return fmt.Errorf("fetch attempts must be between 1 and 10")
	}

	if c.MaxItemsPerParse < 1 || c.MaxItemsPerParse > 1000 {
		return fmt.Errorf("max items per parse must be between 1 and 1000")
	}

	if _, err := c.Mode(); err != nil {
		return err
	}

	return nil
}

// Mode returns the configured scheduled sync mode
func (c *Config) Mode() (models.SyncMode, error) {
	return models.ParseSyncMode(c.SyncMode)
}
