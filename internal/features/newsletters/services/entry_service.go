package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"letterbox/internal/core"
	"letterbox/internal/features/newsletters/models"

	"github.com/google/uuid"
)

const defaultEntryPageSize = 50

// EntryService is the sqlite EntryStore
type EntryService struct {
	db     *core.Database
	logger *core.Logger
}

// NewEntryService creates a new entry service
func NewEntryService(db *core.Database, logger *core.Logger) *EntryService {
	return &EntryService{
		db:     db,
		logger: logger,
	}
}

// ExistsByGUIDHash checks whether an entry with the given guid hash exists for a subscription
func (s *EntryService) ExistsByGUIDHash(ctx context.Context, subscriptionID, guidHash string) (bool, error) {
	var count int
	err := s.db.QueryRowWithTimeout(ctx,
		`SELECT COUNT(1) FROM entries WHERE subscription_id = ? AND guid_hash = ?`,
		[]any{subscriptionID, guidHash}, &count)
	if err != nil {
		return false, fmt.Errorf("failed to check entry existence: %w", err)
	}
	return count > 0, nil
}

// Insert creates a new unread entry. The (subscription, guid hash) unique
// constraint turns a duplicate into ErrConflict instead of a second row.
func (s *EntryService) Insert(ctx context.Context, entry *models.EntryCreate) (*models.Entry, error) {
	now := time.Now().UTC()
	created := &models.Entry{
		ID:             uuid.NewString(),
		SubscriptionID: entry.SubscriptionID,
		GUIDHash:       entry.GUIDHash,
		Title:          entry.Title,
		ContentHTML:    entry.ContentHTML,
		Link:           entry.Link,
		Author:         entry.Author,
		PublishedAt:    entry.PublishedAt.UTC(),
		Status:         models.EntryUnread,
		Starred:        false,
		Archived:       false,
		CreatedAt:      now,
	}

	query := `
		INSERT INTO entries (id, subscription_id, guid_hash, title, content_html, link, author,
		                     published_at, status, starred, archived, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(subscription_id, guid_hash) DO NOTHING
	`

	result, err := s.db.ExecWithTimeout(ctx, query,
		created.ID,
		created.SubscriptionID,
		created.GUIDHash,
		created.Title,
		created.ContentHTML,
		created.Link,
		created.Author,
		created.PublishedAt,
		created.Status,
		created.Starred,
		created.Archived,
		created.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert entry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read insert result: %w", err)
	}
	if affected == 0 {
		return nil, ErrConflict
	}

	s.logger.Debug("Created entry", "id", created.ID, "subscription_id", created.SubscriptionID, "guid_hash", created.GUIDHash)
	return created, nil
}

// MaxPublishedAt returns the newest stored publish time for a subscription
func (s *EntryService) MaxPublishedAt(ctx context.Context, subscriptionID string) (*time.Time, error) {
	// ORDER BY keeps the DATETIME column type so the driver returns a time.Time
	var latest time.Time
	err := s.db.QueryRowWithTimeout(ctx,
		`SELECT published_at FROM entries WHERE subscription_id = ? ORDER BY published_at DESC LIMIT 1`,
		[]any{subscriptionID}, &latest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sync cutoff: %w", err)
	}

	latest = latest.UTC()
	return &latest, nil
}

// UpdateSubscriptionSyncResult records the outcome of a sync attempt
func (s *EntryService) UpdateSubscriptionSyncResult(ctx context.Context, subscriptionID string, update *models.SyncResultUpdate) error {
	var imageURL *string
	if update.FeedImageURL != "" {
		imageURL = &update.FeedImageURL
	}

	query := `
		UPDATE subscriptions
		SET last_sync_at = ?,
		    sync_error = ?,
		    title = CASE WHEN title = '' AND ? != '' THEN ? ELSE title END,
		    image_url = COALESCE(?, image_url),
		    updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecWithTimeout(ctx, query,
		update.LastSyncAt.UTC(),
		update.SyncError,
		update.FeedTitle, update.FeedTitle,
		imageURL,
		time.Now().UTC(),
		subscriptionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update sync result: %w", err)
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetEntry retrieves an entry by ID
func (s *EntryService) GetEntry(ctx context.Context, id string) (*models.Entry, error) {
	query := `
		SELECT id, subscription_id, guid_hash, title, content_html, link, author,
		       published_at, status, starred, archived, created_at
		FROM entries
		WHERE id = ?
	`

	var entry models.Entry
	var link sql.NullString
	err := s.db.QueryRowWithTimeout(ctx, query, []any{id},
		&entry.ID,
		&entry.SubscriptionID,
		&entry.GUIDHash,
		&entry.Title,
		&entry.ContentHTML,
		&link,
		&entry.Author,
		&entry.PublishedAt,
		&entry.Status,
		&entry.Starred,
		&entry.Archived,
		&entry.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}

	if link.Valid {
		entry.Link = &link.String
	}
	return &entry, nil
}

// ListEntries returns a subscription's entries, newest first
func (s *EntryService) ListEntries(ctx context.Context, params *models.EntryListParams) ([]models.Entry, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultEntryPageSize
	}

	query := `
		SELECT id, subscription_id, guid_hash, title, content_html, link, author,
		       published_at, status, starred, archived, created_at
		FROM entries
		WHERE subscription_id = ?
		ORDER BY published_at DESC, created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, cancel, err := s.db.QueryWithTimeout(ctx, query, params.SubscriptionID, limit, params.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer cancel()
	defer rows.Close()

	entries := make([]models.Entry, 0)
	for rows.Next() {
		var entry models.Entry
		var link sql.NullString
		if err := rows.Scan(
			&entry.ID,
			&entry.SubscriptionID,
			&entry.GUIDHash,
			&entry.Title,
			&entry.ContentHTML,
			&link,
			&entry.Author,
			&entry.PublishedAt,
			&entry.Status,
			&entry.Starred,
			&entry.Archived,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		if link.Valid {
			entry.Link = &link.String
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}
	return entries, nil
}

// CountEntries returns how many entries a subscription has
func (s *EntryService) CountEntries(ctx context.Context, subscriptionID string) (int, error) {
	var count int
	err := s.db.QueryRowWithTimeout(ctx, `SELECT COUNT(1) FROM entries WHERE subscription_id = ?`, []any{subscriptionID}, &count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}
