package models

import (
	"time"
)

// SubscriptionStatus is user-driven and orthogonal to sync outcomes
type SubscriptionStatus string

const (
	SubscriptionActive SubscriptionStatus = "active"
	SubscriptionPaused SubscriptionStatus = "paused"
	SubscriptionError  SubscriptionStatus = "error"
)

// Valid reports whether s is a known status
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionActive, SubscriptionPaused, SubscriptionError:
		return true
	}
	return false
}

// Subscription represents a newsletter feed the user follows
type Subscription struct {
	ID         string             `json:"id"`
	FeedURL    string             `json:"feed_url"`
	Title      string             `json:"title"`
	Status     SubscriptionStatus `json:"status"`
	LastSyncAt *time.Time         `json:"last_sync_at"`
	SyncError  *string            `json:"sync_error"`
	ImageURL   *string            `json:"image_url"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// SubscriptionCreate represents the data needed to create a new subscription
type SubscriptionCreate struct {
	FeedURL string `json:"feed_url" yaml:"feed_url"`
	Title   string `json:"title" yaml:"title"`
}

// SyncResultUpdate is written after every sync attempt, success or failure
type SyncResultUpdate struct {
	LastSyncAt time.Time
	// SyncError nil clears any previous error
	SyncError *string
	// FeedTitle fills in the subscription title when it is still empty
	FeedTitle string
	// FeedImageURL replaces the stored image when non-empty
	FeedImageURL string
}
