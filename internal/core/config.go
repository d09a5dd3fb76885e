package core

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the main configuration for Letterbox
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Auth     AuthConfig     `json:"auth"`
	Log      LogConfig      `json:"log"`
	Features FeatureConfig  `json:"features"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port    int    `json:"port"`
	Host    string `json:"host"`
	BaseURL string `json:"base_url"`
}

// DatabaseConfig contains database-related configuration
type DatabaseConfig struct {
	Path string `json:"path"`
}

// AuthConfig contains authentication-related configuration
type AuthConfig struct {
	// APITokenHash is a bcrypt hash of the bearer token required on mutating API routes.
	// Empty disables the check.
	APITokenHash string `json:"-"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level string `json:"level"`
}

// FeatureConfig contains feature-specific configuration
type FeatureConfig struct {
	Newsletters NewslettersConfig `json:"newsletters"`
	ImageProxy  ImageProxyConfig  `json:"image_proxy"`
}

// NewslettersConfig contains feed sync configuration
type NewslettersConfig struct {
	Enabled                bool          `json:"enabled"`
	SyncInterval           time.Duration `json:"sync_interval"`
	InterSubscriptionDelay time.Duration `json:"inter_subscription_delay"`
	FetchTimeout           time.Duration `json:"fetch_timeout"`
	FetchAttempts          int           `json:"fetch_attempts"`
	RetryBaseDelay         time.Duration `json:"retry_base_delay"`
	MaxItemsPerParse       int           `json:"max_items_per_parse"`
	UserAgent              string        `json:"user_agent"`
	SyncMode               string        `json:"sync_mode"`
	SeedFile               string        `json:"seed_file"`
	RenderMaxWidth         string        `json:"render_max_width"`
	RenderDarkMode         bool          `json:"render_dark_mode"`
}

// ImageProxyConfig contains image proxy/cache configuration
type ImageProxyConfig struct {
	Enabled       bool          `json:"enabled"`
	FetchTimeout  time.Duration `json:"fetch_timeout"`
	UploadRetries int           `json:"upload_retries"`
	MaxImageBytes int64         `json:"max_image_bytes"`
	AllowPrivate  bool          `json:"allow_private"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port:    getEnvAsInt("LETTERBOX_PORT", 4000),
			Host:    getEnvOrDefault("LETTERBOX_HOST", "0.0.0.0"),
			BaseURL: strings.TrimRight(getEnvOrDefault("LETTERBOX_BASE_URL", ""), "/"),
		},
		Database: DatabaseConfig{
			Path: getEnvOrDefault("LETTERBOX_DB_PATH", "./letterbox.db"),
		},
		Auth: AuthConfig{
			APITokenHash: getEnvOrDefault("LETTERBOX_API_TOKEN_HASH", ""),
		},
		Log: LogConfig{
			Level: getEnvOrDefault("LETTERBOX_LOG_LEVEL", "info"),
		},
		Features: FeatureConfig{
			Newsletters: NewslettersConfig{
				Enabled:                getEnvAsBool("LETTERBOX_ENABLE_SYNC", true),
				SyncInterval:           getEnvAsDuration("LETTERBOX_SYNC_INTERVAL", 30*time.Minute),
				InterSubscriptionDelay: getEnvAsDuration("LETTERBOX_SYNC_DELAY", 2*time.Second),
				FetchTimeout:           getEnvAsDuration("LETTERBOX_FETCH_TIMEOUT", 10*time.Second),
				FetchAttempts:          getEnvAsInt("LETTERBOX_FETCH_ATTEMPTS", 3),
				RetryBaseDelay:         getEnvAsDuration("LETTERBOX_RETRY_BASE_DELAY", time.Second),
				MaxItemsPerParse:       getEnvAsInt("LETTERBOX_MAX_ITEMS", 50),
				UserAgent:              getEnvOrDefault("LETTERBOX_USER_AGENT", "Letterbox/1.0 (+https://github.com/ajbates93/letterbox)"),
				SyncMode:               getEnvOrDefault("LETTERBOX_SYNC_MODE", "incremental"),
				SeedFile:               getEnvOrDefault("LETTERBOX_SEED_FILE", ""),
				RenderMaxWidth:         getEnvOrDefault("LETTERBOX_RENDER_MAX_WIDTH", "100%"),
				RenderDarkMode:         getEnvAsBool("LETTERBOX_RENDER_DARK_MODE", true),
			},
			ImageProxy: ImageProxyConfig{
				Enabled:       getEnvAsBool("LETTERBOX_ENABLE_IMAGE_PROXY", true),
				FetchTimeout:  getEnvAsDuration("LETTERBOX_IMAGE_TIMEOUT", 5*time.Second),
				UploadRetries: getEnvAsInt("LETTERBOX_IMAGE_UPLOAD_RETRIES", 3),
				MaxImageBytes: int64(getEnvAsInt("LETTERBOX_IMAGE_MAX_BYTES", 8<<20)),
				AllowPrivate:  getEnvAsBool("LETTERBOX_IMAGE_ALLOW_PRIVATE", false),
			},
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}

	if c.Features.Newsletters.Enabled {
		n := c.Features.Newsletters
		if n.FetchAttempts < 1 || n.FetchAttempts > 10 {
			return fmt.Errorf("fetch attempts must be between 1 and 10")
		}
		if n.MaxItemsPerParse < 1 {
			return fmt.Errorf("max items per parse must be positive")
		}
		if n.SyncInterval < time.Minute {
			return fmt.Errorf("sync interval must be at least one minute")
		}
	}

	if c.Features.ImageProxy.Enabled && c.Features.ImageProxy.MaxImageBytes <= 0 {
		return fmt.Errorf("image proxy max bytes must be positive")
	}

	return nil
}

// IsFeatureEnabled checks if a feature is enabled
func (c *Config) IsFeatureEnabled(featureName string) bool {
	switch strings.ToLower(featureName) {
	case "newsletters":
		return c.Features.Newsletters.Enabled
	case "imageproxy":
		return c.Features.ImageProxy.Enabled
	default:
		return false
	}
}

// ParseLevel maps a textual log level onto slog
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s") or a bare number of seconds
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
