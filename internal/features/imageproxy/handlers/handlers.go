package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"letterbox/internal/core"
	"letterbox/internal/features/imageproxy/models"
	"letterbox/internal/features/imageproxy/services"

	"github.com/go-chi/chi/v5"
)

// ImageCache is the part of the cache service the handlers use
type ImageCache interface {
	Ensure(ctx context.Context, sourceURL, sourceID string) (string, error)
}

// BlobReader loads stored copies
type BlobReader interface {
	Get(ctx context.Context, key string) (*models.Blob, error)
}

// Handlers contains the image proxy HTTP handlers
type Handlers struct {
	logger *core.Logger
	proxy  *services.Proxy
	cache  ImageCache
	blobs  BlobReader
}

// NewHandlers creates a new handlers instance
func NewHandlers(logger *core.Logger, proxy *services.Proxy, cache ImageCache, blobs BlobReader) *Handlers {
	return &Handlers{
		logger: logger,
		proxy:  proxy,
		cache:  cache,
		blobs:  blobs,
	}
}

// ProxyImage handles GET /image-proxy?url=&sourceId=. It always answers with
// a redirect once the URL is valid: to the stored copy when caching works,
// to the original URL otherwise.
func (h *Handlers) ProxyImage(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		core.HandleError(w, core.NewValidationError("url is required", nil))
		return
	}

	if services.IsDataURL(raw) {
		http.Redirect(w, r, raw, http.StatusFound)
		return
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		core.HandleError(w, core.NewValidationError("url must be an absolute http(s) URL", err))
		return
	}

	key, err := h.cache.Ensure(r.Context(), raw, r.URL.Query().Get("sourceId"))
	if err != nil {
		h.logger.Warn("Image proxy falling back to original", "url", raw, "error", err)
		http.Redirect(w, r, raw, http.StatusFound)
		return
	}

	http.Redirect(w, r, h.proxy.CacheURL(key), http.StatusFound)
}

// ServeCached handles GET /image-cache/*
func (h *Handlers) ServeCached(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		core.HandleError(w, core.NewNotFoundError("Image not found", nil))
		return
	}

	blob, err := h.blobs.Get(r.Context(), key)
	if errors.Is(err, services.ErrBlobNotFound) {
		core.HandleError(w, core.NewNotFoundError("Image not found", err))
		return
	}
	if err != nil {
		h.logger.Error("Failed to load cached image", "key", key, "error", err)
		core.HandleError(w, core.NewDatabaseError("Failed to load image", err))
		return
	}

	etag := `"` + key + `"`
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", blob.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("ETag", etag)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; sandbox")
	w.WriteHeader(http.StatusOK)
	w.Write(blob.Data)
}
