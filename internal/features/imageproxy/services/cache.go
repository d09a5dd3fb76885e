package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"syscall"
	"time"

	"letterbox/internal/core"
	"letterbox/internal/features/imageproxy/models"

	"github.com/cenkalti/backoff/v4"
)

// CacheService copies external images into the blob store on first access
type CacheService struct {
	store  BlobStore
	client *http.Client
	logger *core.Logger
	config *models.CacheConfig
}

// NewCacheService creates a new image cache service
func NewCacheService(store BlobStore, logger *core.Logger, config *models.CacheConfig) *CacheService {
	if config == nil {
		config = models.DefaultCacheConfig()
	}
	return &CacheService{
		store:  store,
		client: newImageClient(config.AllowPrivateNetworks),
		logger: logger,
		config: config,
	}
}

// ErrPrivateAddress is returned when an image URL resolves to a non-public address
var ErrPrivateAddress = errors.New("image host resolves to a non-public address")

func newImageClient(allowPrivate bool) *http.Client {
	if allowPrivate {
		return &http.Client{}
	}
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: refusePrivateAddress,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &http.Client{Transport: transport}
}

// refusePrivateAddress runs after DNS resolution, so redirects and rebinding
// are checked against the address actually dialed
func refusePrivateAddress(network, address string, _ syscall.RawConn) error {
	addrPort, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrPrivateAddress, address)
	}
	addr := addrPort.Addr().Unmap()
	if !addr.IsGlobalUnicast() || addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() {
		return fmt.Errorf("%w: %s", ErrPrivateAddress, addr)
	}
	return nil
}

// Ensure makes sure a copy of sourceURL is stored and returns its key. A key
// that already exists is returned without fetching. Concurrent first
// accesses may both upload; the store's upsert keeps one copy.
func (s *CacheService) Ensure(ctx context.Context, sourceURL, sourceID string) (string, error) {
	key := BlobKey(sourceID, sourceURL)

	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		s.logger.Warn("Blob lookup failed, fetching anyway", "key", key, "error", err)
	}
	if exists {
		return key, nil
	}

	blob, err := s.fetch(ctx, sourceURL)
	if err != nil {
		return "", err
	}
	blob.Key = key

	if err := s.upload(ctx, blob); err != nil {
		return "", err
	}

	s.logger.Info("Cached image", "key", key, "size", blob.Size, "content_type", blob.ContentType)
	return key, nil
}

func (s *CacheService) fetch(ctx context.Context, sourceURL string) (*models.Blob, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.config.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid image URL: %w", err)
	}
	req.Header.Set("User-Agent", s.config.UserAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("image fetch returned %s", resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return nil, fmt.Errorf("unexpected content type %q", contentType)
	}
	// SVG can carry script and would run from our origin
	if mediaType == "image/svg+xml" {
		return nil, fmt.Errorf("unsupported image type %q", mediaType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.config.MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > s.config.MaxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", s.config.MaxImageBytes)
	}

	return &models.Blob{
		SourceURL:   sourceURL,
		ContentType: mediaType,
		Data:        data,
		Size:        int64(len(data)),
	}, nil
}

// upload retries the store write a bounded number of times
func (s *CacheService) upload(ctx context.Context, blob *models.Blob) error {
	attempts := s.config.UploadAttempts
	if attempts < 1 {
		attempts = 1
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(s.config.UploadRetryDelay),
				backoff.WithMaxElapsedTime(0),
			),
			uint64(attempts-1),
		),
		ctx,
	)

	operation := func() error {
		return s.store.Put(ctx, blob)
	}
	notify := func(err error, wait time.Duration) {
		s.logger.Warn("Image upload failed, retrying", "key", blob.Key, "wait", wait, "error", err)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return fmt.Errorf("failed to upload image after %d attempts: %w", attempts, err)
	}
	return nil
}
