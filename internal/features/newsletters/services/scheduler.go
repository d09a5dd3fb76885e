package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"letterbox/internal/core"
	"letterbox/internal/features/newsletters/models"

	"golang.org/x/time/rate"
)

// SchedulerService runs periodic batch syncs over all subscriptions
type SchedulerService struct {
	subscriptions SubscriptionSource
	syncService   *SyncService
	logger        *core.Logger
	config        *models.SchedulerConfig
	stopChan      chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
	// batchMu keeps a manual batch and a scheduled one from interleaving
	batchMu sync.Mutex
}

// NewSchedulerService creates a new scheduler service
func NewSchedulerService(
	subscriptions SubscriptionSource,
	syncService *SyncService,
	logger *core.Logger,
	config *models.SchedulerConfig,
) *SchedulerService {
	if config == nil {
		config = models.DefaultSchedulerConfig()
	}
	return &SchedulerService{
		subscriptions: subscriptions,
		syncService:   syncService,
		logger:        logger,
		config:        config,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the scheduler
func (s *SchedulerService) Start(ctx context.Context) error {
	if s.config.UpdateInterval <= 0 {
		return fmt.Errorf("sync interval must be positive, got %s", s.config.UpdateInterval)
	}

	s.logger.Info("Starting newsletter sync scheduler", "interval", s.config.UpdateInterval, "mode", s.config.Mode)

	s.wg.Add(1)
	go s.updateLoop(ctx)

	return nil
}

// Stop gracefully stops the scheduler
func (s *SchedulerService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping newsletter sync scheduler")
	s.stopOnce.Do(func() { close(s.stopChan) })

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// updateLoop runs the main update loop
func (s *SchedulerService) updateLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.UpdateInterval)
	defer ticker.Stop()

	// Stop aborts an in-flight batch too
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stopChan:
			cancel()
		case <-loopCtx.Done():
		}
	}()

	s.runBatch(loopCtx)

	for {
		select {
		case <-loopCtx.Done():
			s.logger.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.runBatch(loopCtx)
		}
	}
}

func (s *SchedulerService) runBatch(ctx context.Context) {
	if _, err := s.SyncAll(ctx, s.config.Mode); err != nil {
		s.logger.Error("Scheduled sync failed", "error", err)
	}
}

// SyncAll syncs every non-paused subscription one after another, waiting the
// configured delay between them. One subscription failing never stops the
// batch; its outcome is recorded in the report.
func (s *SchedulerService) SyncAll(ctx context.Context, mode models.SyncMode) (*models.BatchReport, error) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	report := &models.BatchReport{
		Results:   []*models.SyncReport{},
		StartedAt: time.Now().UTC(),
	}

	subs, err := s.subscriptions.ListSubscriptions(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	s.logger.Info("Starting sync batch", "subscriptions", len(subs), "mode", mode)

	limiter := s.newLimiter()
	for i := range subs {
		sub := &subs[i]
		if sub.Status == models.SubscriptionPaused {
			report.Skipped = append(report.Skipped, sub.ID)
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			s.logger.Warn("Sync batch interrupted", "error", err)
			break
		}

		result, err := s.syncService.Sync(ctx, sub, mode)
		if err != nil {
			s.logger.Warn("Subscription failed in batch", "subscription_id", sub.ID, "error", err)
		}
		report.Results = append(report.Results, result)
	}

	report.FinishedAt = time.Now().UTC()
	s.logger.Info("Sync batch completed",
		"synced", len(report.Results),
		"skipped", len(report.Skipped),
		"failed", len(report.Failed()),
		"inserted", report.TotalInserted(),
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)
	return report, nil
}

// newLimiter allows one sync immediately and then one per delay
func (s *SchedulerService) newLimiter() *rate.Limiter {
	if s.config.InterSubscriptionDelay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(s.config.InterSubscriptionDelay), 1)
}

// SyncOne syncs a single subscription immediately
func (s *SchedulerService) SyncOne(ctx context.Context, subscriptionID string, mode models.SyncMode) (*models.SyncReport, error) {
	sub, err := s.subscriptions.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	return s.syncService.Sync(ctx, sub, mode)
}
