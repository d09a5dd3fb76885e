package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"letterbox/internal/auth"
	"letterbox/internal/core"
	"letterbox/internal/features/imageproxy"
	"letterbox/internal/features/newsletters"
	"letterbox/internal/server/handlers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Version is reported by the health endpoint
var Version = "dev"

// Server wires the features into one HTTP server
type Server struct {
	config      *core.Config
	logger      *core.Logger
	db          *core.Database
	registry    *core.Registry
	newsletters *newsletters.Feature
	imageProxy  *imageproxy.Feature
	auth        *auth.Middleware
	router      chi.Router
	server      *http.Server
}

// New builds the registry, registers features and sets up routes. Features
// are not initialized until Init.
func New(config *core.Config, logger *core.Logger, db *core.Database) (*Server, error) {
	verifier, err := auth.NewVerifier(config.Auth.APITokenHash)
	if err != nil {
		return nil, fmt.Errorf("invalid API token hash: %w", err)
	}
	if !verifier.Enabled() {
		logger.Warn("No API token hash configured, mutating routes are open")
	}

	registry := core.NewRegistry(logger)

	// Image proxy first so rendered entries can point at it
	imageProxy := imageproxy.NewFeature(logger, db, imageproxy.NewConfig(config))
	var imageURL func(src, sourceID string) string
	if imageProxy.Enabled() {
		imageURL = imageProxy.Proxy().URL
	}

	newsletterFeature := newsletters.NewFeature(logger, db, newsletters.NewConfig(config), imageURL)

	for _, feature := range []core.Feature{imageProxy, newsletterFeature} {
		if err := registry.Register(feature); err != nil {
			return nil, fmt.Errorf("failed to register feature %s: %w", feature.Name(), err)
		}
	}

	srv := &Server{
		config:      config,
		logger:      logger,
		db:          db,
		registry:    registry,
		newsletters: newsletterFeature,
		imageProxy:  imageProxy,
		auth:        auth.NewMiddleware(verifier, logger),
	}
	srv.setupRoutes()

	return srv, nil
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.logger, s.registry, s.db, Version)

	// Create router
	mux := chi.NewRouter()

	// Add middleware
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Logger)

	// Health check
	mux.Get("/health", healthHandler.HealthCheckHandler)

	routes := s.registry.GetAllRoutes()

	// Public feature routes
	for _, route := range routes {
		if !route.Protected {
			mux.Method(route.Method, route.Path, route.Handler)
		}
	}

	// Protected routes (require the API token)
	mux.Group(func(r chi.Router) {
		r.Use(s.auth.RequireToken)
		for _, route := range routes {
			if route.Protected {
				r.Method(route.Method, route.Path, route.Handler)
			}
		}
	})

	s.router = mux
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Init initializes all enabled features
func (s *Server) Init(ctx context.Context) error {
	if err := s.registry.InitAll(ctx); err != nil {
		s.logger.Error("Failed to initialize features", "error", err)
		return err
	}
	return nil
}

// Start starts the sync scheduler and serves HTTP until Shutdown is called.
// Init must have run first.
func (s *Server) Start(ctx context.Context) error {
	if s.newsletters.Enabled() {
		if err := s.newsletters.StartScheduler(ctx); err != nil {
			return err
		}
	}

	s.logger.Info("Starting server", "host", s.config.Server.Host, "port", s.config.Server.Port)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops features and the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	// Shutdown all features
	if err := s.registry.ShutdownAll(ctx); err != nil {
		s.logger.Error("Failed to shutdown features", "error", err)
	}

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	return nil
}

// Newsletters returns the newsletters feature
func (s *Server) Newsletters() *newsletters.Feature {
	return s.newsletters
}

// Registry returns the feature registry
func (s *Server) Registry() *core.Registry {
	return s.registry
}
