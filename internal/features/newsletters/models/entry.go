package models

import (
	"time"
)

// EntryStatus is the read state of an entry
type EntryStatus string

const (
	EntryUnread EntryStatus = "unread"
	EntryRead   EntryStatus = "read"
)

// Entry represents one newsletter issue stored for a subscription.
// (SubscriptionID, GUIDHash) is unique.
type Entry struct {
	ID             string      `json:"id"`
	SubscriptionID string      `json:"subscription_id"`
	GUIDHash       string      `json:"guid_hash"`
	Title          string      `json:"title"`
	ContentHTML    string      `json:"content_html"`
	Link           *string     `json:"link"`
	Author         string      `json:"author"`
	PublishedAt    time.Time   `json:"published_at"`
	Status         EntryStatus `json:"status"`
	Starred        bool        `json:"starred"`
	Archived       bool        `json:"archived"`
	CreatedAt      time.Time   `json:"created_at"`
}

// EntryCreate represents the data needed to create a new entry
type EntryCreate struct {
	SubscriptionID string
	GUIDHash       string
	Title          string
	ContentHTML    string
	Link           *string
	Author         string
	PublishedAt    time.Time
}

// EntryListParams represents parameters for listing entries
type EntryListParams struct {
	SubscriptionID string
	Limit          int
	Offset         int
}
