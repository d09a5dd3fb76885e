package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"letterbox/internal/core"
	"letterbox/internal/features/newsletters/models"

	"github.com/cenkalti/backoff/v4"
)

const (
	feedAccept    = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"
	maxRetryDelay = 30 * time.Second
)

// FetcherService retrieves raw feed documents over HTTP with retries
type FetcherService struct {
	client *http.Client
	logger *core.Logger
	config *models.FetcherConfig
}

// NewFetcherService creates a new fetcher service. Timeouts are applied per
// attempt through the request context, so the client itself has none.
func NewFetcherService(logger *core.Logger, config *models.FetcherConfig) *FetcherService {
	if config == nil {
		config = models.DefaultFetcherConfig()
	}
	return &FetcherService{
		client: &http.Client{},
		logger: logger,
		config: config,
	}
}

// feedRetryPolicy backs off exponentially after a 429 and linearly after
// network errors and 5xx responses. The operation flips rateLimited before
// each NextBackOff call.
type feedRetryPolicy struct {
	base        time.Duration
	attempt     int
	rateLimited bool
	retryAfter  time.Duration
}

func (p *feedRetryPolicy) NextBackOff() time.Duration {
	p.attempt++

	var delay time.Duration
	if p.rateLimited {
		delay = p.base << (p.attempt - 1)
		if p.retryAfter > delay {
			delay = p.retryAfter
		}
	} else {
		delay = p.base * time.Duration(p.attempt)
	}

	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}

func (p *feedRetryPolicy) Reset() {
	p.attempt = 0
	p.rateLimited = false
	p.retryAfter = 0
}

// Fetch retrieves the document at feedURL. It fails with *FetchError once the
// retry ceiling is reached or immediately on a non-retryable status.
func (f *FetcherService) Fetch(ctx context.Context, feedURL string) (*models.FeedDocument, error) {
	policy := &feedRetryPolicy{base: f.config.BaseDelay}
	maxAttempts := f.config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var (
		doc      *models.FeedDocument
		lastErr  *FetchError
		attempts int
	)

	operation := func() error {
		attempts++
		result, retryAfter, ferr := f.fetchOnce(ctx, feedURL)
		if ferr == nil {
			doc = result
			return nil
		}
		ferr.Attempts = attempts
		lastErr = ferr

		switch {
		case ferr.StatusCode == http.StatusTooManyRequests:
			policy.rateLimited = true
			policy.retryAfter = retryAfter
		case ferr.StatusCode == 0 || ferr.StatusCode >= 500:
			policy.rateLimited = false
			policy.retryAfter = 0
		default:
			return backoff.Permanent(ferr)
		}
		return ferr
	}

	notify := func(err error, wait time.Duration) {
		f.logger.Warn("Retrying feed fetch", "url", feedURL, "attempt", attempts, "wait", wait, "error", err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(maxAttempts-1)), ctx)
	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		if ctx.Err() != nil {
			return nil, &FetchError{URL: feedURL, Message: "fetch cancelled", Attempts: attempts, Err: ctx.Err()}
		}
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, &FetchError{URL: feedURL, Message: err.Error(), Attempts: attempts, Err: err}
	}

	f.logger.Debug("Fetched feed document", "url", feedURL, "bytes", len(doc.Content), "attempts", attempts)
	return doc, nil
}

// fetchOnce performs a single bounded GET
func (f *FetcherService) fetchOnce(ctx context.Context, feedURL string) (*models.FeedDocument, time.Duration, *FetchError) {
	reqCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, feedURL, nil)
	if err != nil {
		// A malformed URL will not get better by retrying
		return nil, 0, &FetchError{URL: feedURL, StatusCode: http.StatusBadRequest, Message: "invalid feed URL", Err: err}
	}

	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", feedAccept)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, &FetchError{URL: feedURL, Message: networkMessage(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")), &FetchError{
			URL:        feedURL,
			StatusCode: resp.StatusCode,
			Message:    resp.Status,
		}
	}

	limit := f.config.MaxBodyBytes
	if limit <= 0 {
		limit = models.DefaultFetcherConfig().MaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, 0, &FetchError{URL: feedURL, Message: fmt.Sprintf("failed to read response body: %v", err), Err: err}
	}

	return &models.FeedDocument{
		URL:         feedURL,
		Content:     string(body),
		ContentType: resp.Header.Get("Content-Type"),
	}, 0, nil
}

func networkMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	return err.Error()
}

// parseRetryAfter understands the delta-seconds form only
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs < 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > maxRetryDelay {
		d = maxRetryDelay
	}
	return d
}
