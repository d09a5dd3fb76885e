package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"letterbox/internal/core"
	"letterbox/internal/features/newsletters/models"
)

// SyncService turns a freshly parsed feed into new entries for one subscription
type SyncService struct {
	store      EntryStore
	fetcher    DocumentFetcher
	parser     FeedParser
	permalinks *PermalinkService
	logger     *core.Logger
	now        func() time.Time
}

// NewSyncService creates a new sync service
func NewSyncService(store EntryStore, fetcher DocumentFetcher, parser FeedParser, permalinks *PermalinkService, logger *core.Logger) *SyncService {
	return &SyncService{
		store:      store,
		fetcher:    fetcher,
		parser:     parser,
		permalinks: permalinks,
		logger:     logger,
		now:        time.Now,
	}
}

// Sync fetches, parses and applies one subscription's feed. The sync result
// is written back to the subscription whatever happens. The returned error is
// the fetch, parse or cutoff failure that ended the attempt; per-entry insert
// failures are only reported.
func (s *SyncService) Sync(ctx context.Context, sub *models.Subscription, mode models.SyncMode) (*models.SyncReport, error) {
	logger := s.logger.WithSubscription(sub.ID, sub.FeedURL)
	started := s.now().UTC()

	doc, err := s.fetcher.Fetch(ctx, sub.FeedURL)
	if err != nil {
		return s.fail(ctx, logger, sub, mode, started, err), err
	}

	parsed, err := s.parser.Parse(doc.Content)
	if err != nil {
		return s.fail(ctx, logger, sub, mode, started, err), err
	}

	report, err := s.Apply(ctx, sub, parsed, mode)
	report.StartedAt = started
	if err != nil {
		report.SyncError = err.Error()
		s.finalize(ctx, logger, sub.ID, &models.SyncResultUpdate{
			LastSyncAt: s.now().UTC(),
			SyncError:  &report.SyncError,
		})
		report.FinishedAt = s.now().UTC()
		return report, err
	}

	s.finalize(ctx, logger, sub.ID, &models.SyncResultUpdate{
		LastSyncAt:   s.now().UTC(),
		SyncError:    nil,
		FeedTitle:    parsed.Title,
		FeedImageURL: parsed.ImageURL,
	})
	report.FinishedAt = s.now().UTC()

	logger.Info("Subscription synced",
		"mode", mode,
		"parsed", report.Parsed,
		"inserted", report.InsertedCount(),
		"already_synced", report.AlreadySynced,
		"errors", len(report.Errors),
	)
	return report, nil
}

func (s *SyncService) fail(ctx context.Context, logger *core.Logger, sub *models.Subscription, mode models.SyncMode, started time.Time, cause error) *models.SyncReport {
	message := cause.Error()
	logger.Error("Subscription sync failed", "mode", mode, "error", cause)

	s.finalize(ctx, logger, sub.ID, &models.SyncResultUpdate{
		LastSyncAt: s.now().UTC(),
		SyncError:  &message,
	})

	return &models.SyncReport{
		SubscriptionID: sub.ID,
		Mode:           mode,
		Inserted:       []string{},
		SyncError:      message,
		StartedAt:      started,
		FinishedAt:     s.now().UTC(),
	}
}

func (s *SyncService) finalize(ctx context.Context, logger *core.Logger, subscriptionID string, update *models.SyncResultUpdate) {
	if err := s.store.UpdateSubscriptionSyncResult(ctx, subscriptionID, update); err != nil {
		logger.Error("Failed to record sync result", "error", err)
	}
}

// Apply selects candidates from parsed according to mode and inserts the ones
// not stored yet. It never writes the subscription's sync result.
func (s *SyncService) Apply(ctx context.Context, sub *models.Subscription, parsed *models.ParsedFeed, mode models.SyncMode) (*models.SyncReport, error) {
	report := &models.SyncReport{
		SubscriptionID: sub.ID,
		Mode:           mode,
		Parsed:         len(parsed.Items),
		Inserted:       []string{},
		StartedAt:      s.now().UTC(),
	}

	cutoff, err := s.store.MaxPublishedAt(ctx, sub.ID)
	if err != nil {
		return report, fmt.Errorf("failed to compute sync cutoff: %w", err)
	}
	report.Cutoff = cutoff

	candidates, err := selectCandidates(parsed.Items, mode, cutoff)
	if err != nil {
		return report, err
	}
	report.Candidates = len(candidates)

	for _, item := range candidates {
		exists, err := s.store.ExistsByGUIDHash(ctx, sub.ID, item.GUID)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", item.GUID, err))
			s.logger.Error("Failed to check entry existence", "subscription_id", sub.ID, "guid_hash", item.GUID, "error", err)
			continue
		}
		if exists {
			report.AlreadySynced++
			continue
		}

		entry, err := s.store.Insert(ctx, s.newEntry(sub, item))
		if errors.Is(err, ErrConflict) {
			report.AlreadySynced++
			continue
		}
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", item.GUID, err))
			s.logger.Error("Failed to insert entry", "subscription_id", sub.ID, "guid_hash", item.GUID, "error", err)
			continue
		}

		report.Inserted = append(report.Inserted, entry.ID)
	}

	report.FinishedAt = s.now().UTC()
	return report, nil
}

func (s *SyncService) newEntry(sub *models.Subscription, item models.FeedItem) *models.EntryCreate {
	var link *string
	if s.permalinks != nil {
		if resolved := s.permalinks.Resolve(sub.FeedURL, item); resolved != "" {
			link = &resolved
		}
	} else if item.Link != "" {
		link = &item.Link
	}

	return &models.EntryCreate{
		SubscriptionID: sub.ID,
		GUIDHash:       item.GUID,
		Title:          item.Title,
		ContentHTML:    item.ContentHTML,
		Link:           link,
		Author:         item.Author,
		PublishedAt:    item.PublishedAt,
	}
}

// selectCandidates applies the mode's selection rule
func selectCandidates(items []models.FeedItem, mode models.SyncMode, cutoff *time.Time) ([]models.FeedItem, error) {
	switch mode {
	case models.SyncFull:
		return items, nil

	case models.SyncIncremental:
		sorted := make([]models.FeedItem, len(items))
		copy(sorted, items)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].PublishedAt.Before(sorted[j].PublishedAt)
		})

		if cutoff == nil {
			return sorted, nil
		}
		newer := make([]models.FeedItem, 0, len(sorted))
		for _, item := range sorted {
			if item.PublishedAt.After(*cutoff) {
				newer = append(newer, item)
			}
		}
		return newer, nil

	case models.SyncLatest:
		if len(items) == 0 {
			return nil, nil
		}
		latest := items[0]
		for _, item := range items[1:] {
			if item.PublishedAt.After(latest.PublishedAt) {
				latest = item
			}
		}
		return []models.FeedItem{latest}, nil
	}

	return nil, fmt.Errorf("unknown sync mode: %q", mode)
}
