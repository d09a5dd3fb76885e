package newsletters

import (
	"context"
	"fmt"

	"letterbox/internal/core"
	"letterbox/internal/features/newsletters/handlers"
	"letterbox/internal/features/newsletters/migrations"
	"letterbox/internal/features/newsletters/models"
	"letterbox/internal/features/newsletters/render"
	"letterbox/internal/features/newsletters/services"
)

// Feature represents the newsletter ingestion and reader feature
type Feature struct {
	*core.BaseFeature
	config              *Config
	migrationMgr        *migrations.Manager
	subscriptionService *services.SubscriptionService
	entryService        *services.EntryService
	fetcherService      *services.FetcherService
	parserService       *services.ParserService
	permalinkService    *services.PermalinkService
	syncService         *services.SyncService
	schedulerService    *services.SchedulerService
	transformer         *render.Transformer
	handlers            *handlers.Handlers
	schedulerRunning    bool
}

// NewFeature creates a new newsletters feature. imageURL routes rendered
// images through the image proxy; nil leaves them as they are.
func NewFeature(logger *core.Logger, db *core.Database, config *Config, imageURL handlers.ImageURLFunc) *Feature {
	// Create migration manager
	migrationMgr := migrations.NewManager(db, logger)

	// Create storage services
	subscriptionService := services.NewSubscriptionService(db, logger)
	entryService := services.NewEntryService(db, logger)

	// Create fetcher and parser
	fetcherConfig := models.DefaultFetcherConfig()
	fetcherConfig.UserAgent = config.UserAgent
	fetcherConfig.Timeout = config.FetchTimeout
	fetcherConfig.MaxAttempts = config.FetchAttempts
	fetcherConfig.BaseDelay = config.RetryBaseDelay
	fetcherService := services.NewFetcherService(logger, fetcherConfig)
	parserService := services.NewParserService(logger, config.MaxItemsPerParse)

	permalinkService := services.NewPermalinkService(fetcherService, parserService, services.NewLinkCache(), logger)
	syncService := services.NewSyncService(entryService, fetcherService, parserService, permalinkService, logger)

	// Create scheduler; an invalid mode is reported by Init
	mode, _ := config.Mode()
	schedulerConfig := models.DefaultSchedulerConfig()
	schedulerConfig.UpdateInterval = config.SyncInterval
	schedulerConfig.InterSubscriptionDelay = config.InterSubscriptionDelay
	schedulerConfig.Mode = mode
	schedulerService := services.NewSchedulerService(subscriptionService, syncService, logger, schedulerConfig)

	transformer := render.NewTransformer(logger.ForFeature("render"))

	h := handlers.NewHandlers(logger, handlers.Services{
		Subscriptions: subscriptionService,
		Entries:       entryService,
		Fetcher:       fetcherService,
		Permalinks:    permalinkService,
		Scheduler:     schedulerService,
		Transformer:   transformer,
	}, config.Render, imageURL, mode)

	return &Feature{
		BaseFeature:         core.NewBaseFeature("newsletters", "Newsletter feeds, sync and reader", config.Enabled, logger, db),
		config:              config,
		migrationMgr:        migrationMgr,
		subscriptionService: subscriptionService,
		entryService:        entryService,
		fetcherService:      fetcherService,
		parserService:       parserService,
		permalinkService:    permalinkService,
		syncService:         syncService,
		schedulerService:    schedulerService,
		transformer:         transformer,
		handlers:            h,
	}
}

// Init validates config, runs migrations and imports the seed file
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

	if f.config.SeedFile != "" {
		if err := f.importSeed(ctx); err != nil {
			return err
		}
	}

	f.Logger().Info("Newsletters feature initialized successfully")
	return nil
}

// StartScheduler begins periodic syncs. It is separate from Init so one-shot
// commands can use the feature without background work.
func (f *Feature) StartScheduler(ctx context.Context) error {
	if !f.config.Enabled || f.schedulerRunning {
		return nil
	}
	if err := f.schedulerService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start newsletter scheduler: %w", err)
	}
	f.schedulerRunning = true
	f.Logger().Info("Newsletter scheduler started")
	return nil
}

func (f *Feature) importSeed(ctx context.Context) error {
	seed, err := services.LoadSeedFile(f.config.SeedFile)
	if err != nil {
		return err
	}
	if _, err := f.subscriptionService.ImportSubscriptions(ctx, seed); err != nil {
		return fmt.Errorf("failed to import seed subscriptions: %w", err)
	}
	return nil
}

// Routes returns the HTTP routes for the newsletters feature
func (f *Feature) Routes() []core.Route {
	return []core.Route{
		// Feed boundaries
		{Method: "POST", Path: "/api/feed", Handler: f.handlers.FetchFeed, Protected: true},
		{Method: "POST", Path: "/api/permalink", Handler: f.handlers.ResolvePermalink, Protected: true},

		// Subscription management
		{Method: "GET", Path: "/api/subscriptions", Handler: f.handlers.ListSubscriptions},
		{Method: "POST", Path: "/api/subscriptions", Handler: f.handlers.CreateSubscription, Protected: true},
		{Method: "PUT", Path: "/api/subscriptions/{id}/status", Handler: f.handlers.UpdateSubscriptionStatus, Protected: true},
		{Method: "DELETE", Path: "/api/subscriptions/{id}", Handler: f.handlers.DeleteSubscription, Protected: true},
		{Method: "POST", Path: "/api/subscriptions/{id}/sync", Handler: f.handlers.SyncSubscription, Protected: true},
		{Method: "POST", Path: "/api/sync", Handler: f.handlers.SyncAll, Protected: true},

		// Entries
		{Method: "GET", Path: "/api/subscriptions/{id}/entries", Handler: f.handlers.ListEntries},
		{Method: "GET", Path: "/api/entries/{id}/content", Handler: f.handlers.GetEntryContent},

		// Reader
		{Method: "GET", Path: "/entries/{id}", Handler: f.handlers.ReaderPage},
	}
}

// Shutdown gracefully shuts down the newsletters feature
func (f *Feature) Shutdown(ctx context.Context) error {
	f.Logger().Info("Shutting down newsletters feature")

	if f.schedulerRunning {
		if err := f.schedulerService.Stop(ctx); err != nil {
			f.Logger().Error("Failed to stop newsletter scheduler", "error", err)
		}
	}

	return f.BaseFeature.Shutdown(ctx)
}

// GetMigrationManager returns the migration manager for this feature
func (f *Feature) GetMigrationManager() *migrations.Manager {
	return f.migrationMgr
}

// GetSubscriptionService returns the subscription service
func (f *Feature) GetSubscriptionService() *services.SubscriptionService {
	return f.subscriptionService
}

// GetEntryService returns the entry service
func (f *Feature) GetEntryService() *services.EntryService {
	return f.entryService
}

// GetSchedulerService returns the scheduler service
func (f *Feature) GetSchedulerService() *services.SchedulerService {
	return f.schedulerService
}

// GetTransformer returns the HTML transformer used for entries
func (f *Feature) GetTransformer() *render.Transformer {
	return f.transformer
}

// RenderOptions returns the configured transform options
func (f *Feature) RenderOptions() render.Options {
	return f.config.Render
}
