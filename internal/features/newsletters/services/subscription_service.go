package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"letterbox/internal/core"
	"letterbox/internal/features/newsletters/models"

	"github.com/google/uuid"
)

// SubscriptionService handles subscription CRUD
type SubscriptionService struct {
	db     *core.Database
	logger *core.Logger
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(db *core.Database, logger *core.Logger) *SubscriptionService {
	return &SubscriptionService{
		db:     db,
		logger: logger,
	}
}

// ValidateFeedURL accepts absolute http(s) URLs only
func ValidateFeedURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid feed URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("feed URL must use http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("feed URL must include a host")
	}
	return nil
}

// CreateSubscription creates a new active subscription. A feed URL that is
// already subscribed fails with ErrConflict.
func (s *SubscriptionService) CreateSubscription(ctx context.Context, create *models.SubscriptionCreate) (*models.Subscription, error) {
	feedURL := strings.TrimSpace(create.FeedURL)
	if err := ValidateFeedURL(feedURL); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sub := &models.Subscription{
		ID:        uuid.NewString(),
		FeedURL:   feedURL,
		Title:     strings.TrimSpace(create.Title),
		Status:    models.SubscriptionActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	result, err := s.db.ExecWithTimeout(ctx, `
		INSERT INTO subscriptions (id, feed_url, title, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(feed_url) DO NOTHING
	`, sub.ID, sub.FeedURL, sub.Title, sub.Status, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return nil, ErrConflict
	}

	s.logger.Info("Created subscription", "id", sub.ID, "feed_url", sub.FeedURL)
	return sub, nil
}

const subscriptionColumns = `id, feed_url, title, status, last_sync_at, sync_error, image_url, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var sub models.Subscription
	var lastSync sql.NullTime
	var syncError, imageURL sql.NullString

	if err := row.Scan(
		&sub.ID,
		&sub.FeedURL,
		&sub.Title,
		&sub.Status,
		&lastSync,
		&syncError,
		&imageURL,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if lastSync.Valid {
		t := lastSync.Time.UTC()
		sub.LastSyncAt = &t
	}
	if syncError.Valid {
		sub.SyncError = &syncError.String
	}
	if imageURL.Valid {
		sub.ImageURL = &imageURL.String
	}
	return &sub, nil
}

// GetSubscription retrieves a subscription by ID
func (s *SubscriptionService) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	rows, cancel, err := s.db.QueryWithTimeout(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	defer cancel()
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to get subscription: %w", err)
		}
		return nil, ErrNotFound
	}

	sub, err := scanSubscription(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}
	return sub, nil
}

// ListSubscriptions returns every subscription ordered by creation time
func (s *SubscriptionService) ListSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	rows, cancel, err := s.db.QueryWithTimeout(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer cancel()
	defer rows.Close()

	subs := make([]models.Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subscriptions: %w", err)
	}
	return subs, nil
}

// SetStatus changes the user-driven status of a subscription
func (s *SubscriptionService) SetStatus(ctx context.Context, id string, status models.SubscriptionStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid subscription status: %q", status)
	}

	result, err := s.db.ExecWithTimeout(ctx,
		`UPDATE subscriptions SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update subscription status: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}

	s.logger.Info("Updated subscription status", "id", id, "status", status)
	return nil
}

// DeleteSubscription removes a subscription and, by cascade, its entries
func (s *SubscriptionService) DeleteSubscription(ctx context.Context, id string) error {
	result, err := s.db.ExecWithTimeout(ctx, `DELETE FROM subscriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}

	s.logger.Info("Deleted subscription", "id", id)
	return nil
}

// IsNotFound reports whether err means a missing subscription or entry
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
