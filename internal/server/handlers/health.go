package handlers

import (
	"net/http"
	"time"

	"letterbox/internal/core"
)

const pingTimeout = 2 * time.Second

// HealthHandler reports liveness and feature status
type HealthHandler struct {
	logger   *core.Logger
	registry *core.Registry
	db       *core.Database
	version  string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(logger *core.Logger, registry *core.Registry, db *core.Database, version string) *HealthHandler {
	return &HealthHandler{
		logger:   logger,
		registry: registry,
		db:       db,
		version:  version,
	}
}

type healthResponse struct {
	Status   string                        `json:"status"`
	Service  string                        `json:"service"`
	Version  string                        `json:"version"`
	Features map[string]core.FeatureStatus `json:"features"`
}

// HealthCheckHandler provides a health check endpoint
func (h *HealthHandler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Service:  "letterbox",
		Version:  h.version,
		Features: h.registry.GetFeatureStatus(),
	}

	status := http.StatusOK
	if err := h.db.PingWithTimeout(pingTimeout); err != nil {
		h.logger.Error("Health check database ping failed", "error", err)
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	core.WriteJSON(w, status, resp)
}
