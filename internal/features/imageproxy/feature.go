package imageproxy

import (
	"context"

	"letterbox/internal/core"
	"letterbox/internal/features/imageproxy/handlers"
	"letterbox/internal/features/imageproxy/migrations"
	"letterbox/internal/features/imageproxy/models"
	"letterbox/internal/features/imageproxy/services"
)

// Feature serves cached copies of newsletter images
type Feature struct {
	*core.BaseFeature
	config       *Config
	migrationMgr *migrations.Manager
	proxy        *services.Proxy
	blobService  *services.BlobService
	cacheService *services.CacheService
	handlers     *handlers.Handlers
}

// NewFeature creates a new image proxy feature
func NewFeature(logger *core.Logger, db *core.Database, config *Config) *Feature {
	migrationMgr := migrations.NewManager(db, logger)

	proxy := services.NewProxy(config.BaseURL)
	blobService := services.NewBlobService(db, logger)

	cacheConfig := models.DefaultCacheConfig()
	cacheConfig.FetchTimeout = config.FetchTimeout
	cacheConfig.UploadAttempts = config.UploadRetries
	cacheConfig.MaxImageBytes = config.MaxImageBytes
	cacheConfig.AllowPrivateNetworks = config.AllowPrivate
	if config.UserAgent != "" {
		cacheConfig.UserAgent = config.UserAgent
	}
	cacheService := services.NewCacheService(blobService, logger, cacheConfig)

	return &Feature{
		BaseFeature:  core.NewBaseFeature("imageproxy", "Newsletter image proxy and cache", config.Enabled, logger, db),
		config:       config,
		migrationMgr: migrationMgr,
		proxy:        proxy,
		blobService:  blobService,
		cacheService: cacheService,
		handlers:     handlers.NewHandlers(logger, proxy, cacheService, blobService),
	}
}

// Init initializes the image proxy feature
func (f *Feature) Init(ctx context.Context) error {
	if err := f.BaseFeature.Init(ctx); err != nil {
		return err
	}

	if err := f.config.Validate(); err != nil {
		return err
	}

	if err := f.migrationMgr.Migrate(ctx); err != nil {
		return err
	}

	f.Logger().Info("Image proxy feature initialized successfully", "base_url", f.config.BaseURL)
	return nil
}

// Routes returns the HTTP routes for the image proxy
func (f *Feature) Routes() []core.Route {
	return []core.Route{
		{Method: "GET", Path: services.ProxyPath, Handler: f.handlers.ProxyImage},
		{Method: "GET", Path: services.CachePath + "*", Handler: f.handlers.ServeCached},
	}
}

// Proxy returns the URL builder used when rendering entries
func (f *Feature) Proxy() *services.Proxy {
	return f.proxy
}

// GetMigrationManager returns the migration manager for this feature
func (f *Feature) GetMigrationManager() *migrations.Manager {
	return f.migrationMgr
}
