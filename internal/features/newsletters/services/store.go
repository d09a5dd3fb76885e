package services

import (
	"context"
	"time"

	"letterbox/internal/features/newsletters/models"
)

// EntryStore is the persistence boundary used by sync
type EntryStore interface {
	// ExistsByGUIDHash reports whether the pair is already stored
	ExistsByGUIDHash(ctx context.Context, subscriptionID, guidHash string) (bool, error)
	// Insert creates an entry or fails with ErrConflict
	Insert(ctx context.Context, entry *models.EntryCreate) (*models.Entry, error)
	// MaxPublishedAt returns nil when the subscription has no entries
	MaxPublishedAt(ctx context.Context, subscriptionID string) (*time.Time, error)
	// UpdateSubscriptionSyncResult records the outcome of a sync attempt
	UpdateSubscriptionSyncResult(ctx context.Context, subscriptionID string, update *models.SyncResultUpdate) error
}

// DocumentFetcher retrieves raw feed documents
type DocumentFetcher interface {
	Fetch(ctx context.Context, feedURL string) (*models.FeedDocument, error)
}

// FeedParser turns raw feed text into a ParsedFeed
type FeedParser interface {
	Parse(raw string) (*models.ParsedFeed, error)
}

// SubscriptionSource lists subscriptions for batch syncs
type SubscriptionSource interface {
	GetSubscription(ctx context.Context, id string) (*models.Subscription, error)
	ListSubscriptions(ctx context.Context) ([]models.Subscription, error)
}
