package models

import (
	"fmt"
	"time"
)

// SyncMode selects which parsed items are candidates for insertion
type SyncMode string

const (
	// SyncFull considers every parsed item
	SyncFull SyncMode = "full"
	// SyncIncremental considers items strictly newer than the stored cutoff
	SyncIncremental SyncMode = "incremental"
	// SyncLatest considers only the newest parsed item
	SyncLatest SyncMode = "latest"
)

// ParseSyncMode validates a textual sync mode; empty means incremental
func ParseSyncMode(s string) (SyncMode, error) {
	switch SyncMode(s) {
	case "":
		return SyncIncremental, nil
	case SyncFull, SyncIncremental, SyncLatest:
		return SyncMode(s), nil
	}
	return "", fmt.Errorf("unknown sync mode: %q", s)
}

// SyncReport is the outcome of one subscription sync
type SyncReport struct {
	SubscriptionID string     `json:"subscription_id"`
	Mode           SyncMode   `json:"mode"`
	Cutoff         *time.Time `json:"cutoff,omitempty"`
	Parsed         int        `json:"parsed"`
	Candidates     int        `json:"candidates"`
	Inserted       []string   `json:"inserted"`
	AlreadySynced  int        `json:"already_synced"`
	Errors         []string   `json:"errors,omitempty"`
	SyncError      string     `json:"sync_error,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     time.Time  `json:"finished_at"`
}

// InsertedCount returns the number of new entries
func (r *SyncReport) InsertedCount() int {
	return len(r.Inserted)
}

// BatchReport collects independent per-subscription outcomes
type BatchReport struct {
	Results    []*SyncReport `json:"results"`
	Skipped    []string      `json:"skipped,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// TotalInserted sums inserted entries across the batch
func (b *BatchReport) TotalInserted() int {
	total := 0
	for _, r := range b.Results {
		total += r.InsertedCount()
	}
	return total
}

// Failed returns the reports whose sync attempt failed
func (b *BatchReport) Failed() []*SyncReport {
	var failed []*SyncReport
	for _, r := range b.Results {
		if r.SyncError != "" {
			failed = append(failed, r)
		}
	}
	return failed
}
