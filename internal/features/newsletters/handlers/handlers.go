package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"letterbox/internal/core"
	"letterbox/internal/features/newsletters/models"
	"letterbox/internal/features/newsletters/render"
	"letterbox/internal/features/newsletters/services"
	"letterbox/internal/views"

	"github.com/go-chi/chi/v5"
)

// PermalinkResolver finds the public link of an entry from its live feed
type PermalinkResolver interface {
	ResolveLive(ctx context.Context, feedURL, title string, publishedAt *time.Time) (string, error)
}

// ImageURLFunc maps an image source to the URL the reader should load
type ImageURLFunc func(src, sourceID string) string

// Services bundles what the handlers need from the newsletters feature
type Services struct {
	Subscriptions *services.SubscriptionService
	Entries       *services.EntryService
	Fetcher       services.DocumentFetcher
	Permalinks    PermalinkResolver
	Scheduler     *services.SchedulerService
	Transformer   *render.Transformer
}

// Handlers contains all newsletters HTTP handlers
type Handlers struct {
	logger      *core.Logger
	svc         Services
	renderOpts  render.Options
	imageURL    ImageURLFunc
	defaultMode models.SyncMode
}

// NewHandlers creates a new handlers instance. A nil imageURL leaves image
// sources untouched when rendering entries.
func NewHandlers(logger *core.Logger, svc Services, renderOpts render.Options, imageURL ImageURLFunc, defaultMode models.SyncMode) *Handlers {
	return &Handlers{
		logger:      logger,
		svc:         svc,
		renderOpts:  renderOpts,
		imageURL:    imageURL,
		defaultMode: defaultMode,
	}
}

type feedRequest struct {
	FeedURL string `json:"feedUrl"`
}

type permalinkRequest struct {
	FeedURL     string     `json:"feedUrl"`
	Title       string     `json:"title"`
	PublishedAt *time.Time `json:"publishedAt"`
}

type permalinkResponse struct {
	Link string `json:"link"`
}

type statusRequest struct {
	Status models.SubscriptionStatus `json:"status"`
}

type entryContentResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	HTML  string `json:"html"`
}

type entryListResponse struct {
	Entries []models.Entry `json:"entries"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return core.NewValidationError("Invalid JSON body", err)
	}
	return nil
}

// FetchFeed handles POST /api/feed: fetch a feed URL server-side and hand
// back the raw document.
func (h *Handlers) FetchFeed(w http.ResponseWriter, r *http.Request) {
	var req feedRequest
	if err := decodeJSON(r, &req); err != nil {
		core.HandleError(w, err)
		return
	}
	if strings.TrimSpace(req.FeedURL) == "" {
		core.HandleError(w, core.NewValidationError("feedUrl is required", nil))
		return
	}

	doc, err := h.svc.Fetcher.Fetch(r.Context(), strings.TrimSpace(req.FeedURL))
	if err != nil {
		h.logger.Warn("Feed fetch failed", "feed_url", req.FeedURL, "error", err)
		core.HandleError(w, core.NewUpstreamError("Failed to fetch feed", err))
		return
	}

	core.WriteJSON(w, http.StatusOK, doc)
}

// ResolvePermalink handles POST /api/permalink
func (h *Handlers) ResolvePermalink(w http.ResponseWriter, r *http.Request) {
	var req permalinkRequest
	if err := decodeJSON(r, &req); err != nil {
		core.HandleError(w, err)
		return
	}
	if strings.TrimSpace(req.FeedURL) == "" {
		core.HandleError(w, core.NewValidationError("feedUrl is required", nil))
		return
	}

	link, err := h.svc.Permalinks.ResolveLive(r.Context(), strings.TrimSpace(req.FeedURL), req.Title, req.PublishedAt)
	if err != nil {
		if !errors.Is(err, services.ErrNoLink) {
			h.logger.Warn("Permalink lookup failed", "feed_url", req.FeedURL, "error", err)
		}
		core.HandleError(w, core.NewNotFoundError("No link found", err))
		return
	}

	core.WriteJSON(w, http.StatusOK, permalinkResponse{Link: link})
}

// ListSubscriptions handles GET /api/subscriptions
func (h *Handlers) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.svc.Subscriptions.ListSubscriptions(r.Context())
	if err != nil {
		core.HandleError(w, core.NewDatabaseError("Failed to list subscriptions", err))
		return
	}
	core.WriteJSON(w, http.StatusOK, subs)
}

// CreateSubscription handles POST /api/subscriptions
func (h *Handlers) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req models.SubscriptionCreate
	if err := decodeJSON(r, &req); err != nil {
		core.HandleError(w, err)
		return
	}
	if err := services.ValidateFeedURL(req.FeedURL); err != nil {
		core.HandleError(w, core.NewValidationError(err.Error(), err))
		return
	}

	sub, err := h.svc.Subscriptions.CreateSubscription(r.Context(), &req)
	switch {
	case errors.Is(err, services.ErrConflict):
		core.HandleError(w, core.NewConflictError("Already subscribed to this feed", err))
		return
	case err != nil:
		core.HandleError(w, core.NewDatabaseError("Failed to create subscription", err))
		return
	}

	core.WriteJSON(w, http.StatusCreated, sub)
}

// UpdateSubscriptionStatus handles PUT /api/subscriptions/{id}/status
func (h *Handlers) UpdateSubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		core.HandleError(w, err)
		return
	}
	if !req.Status.Valid() {
		core.HandleError(w, core.NewValidationError("status must be active, paused or error", nil))
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.svc.Subscriptions.SetStatus(r.Context(), id, req.Status); err != nil {
		h.handleLookupError(w, "Subscription", err)
		return
	}

	sub, err := h.svc.Subscriptions.GetSubscription(r.Context(), id)
	if err != nil {
		h.handleLookupError(w, "Subscription", err)
		return
	}
	core.WriteJSON(w, http.StatusOK, sub)
}

// DeleteSubscription handles DELETE /api/subscriptions/{id}
func (h *Handlers) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Subscriptions.DeleteSubscription(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleLookupError(w, "Subscription", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SyncSubscription handles POST /api/subscriptions/{id}/sync?mode=. A failed
// sync still answers 200: the outcome is in the report.
func (h *Handlers) SyncSubscription(w http.ResponseWriter, r *http.Request) {
	mode, ok := h.syncMode(w, r)
	if !ok {
		return
	}

	report, err := h.svc.Scheduler.SyncOne(r.Context(), chi.URLParam(r, "id"), mode)
	if err != nil && report == nil {
		h.handleLookupError(w, "Subscription", err)
		return
	}
	core.WriteJSON(w, http.StatusOK, report)
}

// SyncAll handles POST /api/sync?mode=
func (h *Handlers) SyncAll(w http.ResponseWriter, r *http.Request) {
	mode, ok := h.syncMode(w, r)
	if !ok {
		return
	}

	report, err := h.svc.Scheduler.SyncAll(r.Context(), mode)
	if err != nil {
		core.HandleError(w, core.NewInternalError("Sync batch failed", err))
		return
	}
	core.WriteJSON(w, http.StatusOK, report)
}

func (h *Handlers) syncMode(w http.ResponseWriter, r *http.Request) (models.SyncMode, bool) {
	raw := r.URL.Query().Get("mode")
	if raw == "" {
		return h.defaultMode, true
	}
	mode, err := models.ParseSyncMode(raw)
	if err != nil {
		core.HandleError(w, core.NewValidationError(err.Error(), err))
		return "", false
	}
	return mode, true
}

// ListEntries handles GET /api/subscriptions/{id}/entries?limit=&offset=
func (h *Handlers) ListEntries(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.svc.Subscriptions.GetSubscription(r.Context(), id); err != nil {
		h.handleLookupError(w, "Subscription", err)
		return
	}

	params := &models.EntryListParams{
		SubscriptionID: id,
		Limit:          queryInt(r, "limit", 50),
		Offset:         queryInt(r, "offset", 0),
	}
	if params.Limit < 1 || params.Limit > 200 || params.Offset < 0 {
		core.HandleError(w, core.NewValidationError("limit must be 1-200 and offset non-negative", nil))
		return
	}

	entries, err := h.svc.Entries.ListEntries(r.Context(), params)
	if err != nil {
		core.HandleError(w, core.NewDatabaseError("Failed to list entries", err))
		return
	}
	total, err := h.svc.Entries.CountEntries(r.Context(), id)
	if err != nil {
		core.HandleError(w, core.NewDatabaseError("Failed to count entries", err))
		return
	}

	core.WriteJSON(w, http.StatusOK, entryListResponse{
		Entries: entries,
		Total:   total,
		Limit:   params.Limit,
		Offset:  params.Offset,
	})
}

// GetEntryContent handles GET /api/entries/{id}/content and returns the
// display-ready HTML of an entry.
func (h *Handlers) GetEntryContent(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.loadEntry(w, r)
	if !ok {
		return
	}
	core.WriteJSON(w, http.StatusOK, entryContentResponse{
		ID:    entry.ID,
		Title: entry.Title,
		HTML:  h.renderEntry(entry),
	})
}

// ReaderPage handles GET /entries/{id}
func (h *Handlers) ReaderPage(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.loadEntry(w, r)
	if !ok {
		return
	}

	page := views.ReaderPage(views.ReaderEntry{
		Title:       entry.Title,
		Author:      entry.Author,
		PublishedAt: entry.PublishedAt,
		Link:        entry.Link,
		HTML:        h.renderEntry(entry),
	}, views.ReaderOptions{DarkMode: h.renderOpts.EnableDarkMode})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := page.Render(r.Context(), w); err != nil {
		h.logger.Error("Failed to render reader page", "entry_id", entry.ID, "error", err)
	}
}

func (h *Handlers) loadEntry(w http.ResponseWriter, r *http.Request) (*models.Entry, bool) {
	entry, err := h.svc.Entries.GetEntry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleLookupError(w, "Entry", err)
		return nil, false
	}
	return entry, true
}

func (h *Handlers) renderEntry(entry *models.Entry) string {
	var rewrite func(string) string
	if h.imageURL != nil {
		rewrite = func(src string) string {
			return h.imageURL(src, entry.SubscriptionID)
		}
	}
	return h.svc.Transformer.Pipeline(entry.ContentHTML, h.renderOpts, rewrite)
}

func (h *Handlers) handleLookupError(w http.ResponseWriter, what string, err error) {
	if services.IsNotFound(err) {
		core.HandleError(w, core.NewNotFoundError(what+" not found", err))
		return
	}
	core.HandleError(w, core.NewDatabaseError("Failed to load "+strings.ToLower(what), err))
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}
