package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"letterbox/internal/core"
	"letterbox/internal/features/imageproxy/models"
)

// ErrBlobNotFound is returned when no blob is stored under a key
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore is the narrow upload/fetch contract of the image cache. Put must
// be idempotent: writing the same key twice leaves one complete copy.
type BlobStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, blob *models.Blob) error
	Get(ctx context.Context, key string) (*models.Blob, error)
}

// BlobService stores image blobs in sqlite
type BlobService struct {
	db     *core.Database
	logger *core.Logger
}

// NewBlobService creates a new sqlite blob store
func NewBlobService(db *core.Database, logger *core.Logger) *BlobService {
	return &BlobService{
		db:     db,
		logger: logger,
	}
}

// Exists reports whether key is stored
func (s *BlobService) Exists(ctx context.Context, key string) (bool, error) {
	var count int
	if err := s.db.QueryRowWithTimeout(ctx, `SELECT COUNT(1) FROM image_blobs WHERE key = ?`, []any{key}, &count); err != nil {
		return false, fmt.Errorf("failed to check blob: %w", err)
	}
	return count > 0, nil
}

// Put upserts blob under its key
func (s *BlobService) Put(ctx context.Context, blob *models.Blob) error {
	now := time.Now().UTC()
	_, err := s.db.ExecWithTimeout(ctx, `
		INSERT INTO image_blobs (key, source_url, content_type, data, size, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			source_url = excluded.source_url,
			content_type = excluded.content_type,
			data = excluded.data,
			size = excluded.size,
			updated_at = excluded.updated_at
	`, blob.Key, blob.SourceURL, blob.ContentType, blob.Data, int64(len(blob.Data)), now, now)
	if err != nil {
		return fmt.Errorf("failed to store blob: %w", err)
	}
	return nil
}

// Get loads the blob stored under key
func (s *BlobService) Get(ctx context.Context, key string) (*models.Blob, error) {
	var blob models.Blob
	err := s.db.QueryRowWithTimeout(ctx, `
		SELECT key, source_url, content_type, data, size, created_at, updated_at
		FROM image_blobs WHERE key = ?
	`, []any{key}, &blob.Key, &blob.SourceURL, &blob.ContentType, &blob.Data, &blob.Size, &blob.CreatedAt, &blob.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load blob: %w", err)
	}
	return &blob, nil
}
