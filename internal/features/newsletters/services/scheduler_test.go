package services

import (
	"context"
	"testing"
	"time"

	"letterbox/internal/core"
	"letterbox/internal/features/newsletters/models"
)

type memorySubscriptions struct {
	subs []models.Subscription
}

func (m *memorySubscriptions) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	for i := range m.subs {
		if m.subs[i].ID == id {
			return &m.subs[i], nil
		}
	}
	return nil, ErrNotFound
}

func (m *memorySubscriptions) ListSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	return m.subs, nil
}

// urlFetcher fails for one URL and serves a fixed document otherwise
type urlFetcher struct {
	failURL string
	fetched []string
}

func (f *urlFetcher) Fetch(ctx context.Context, feedURL string) (*models.FeedDocument, error) {
	f.fetched = append(f.fetched, feedURL)
	if feedURL == f.failURL {
		return nil, &FetchError{URL: feedURL, StatusCode: 500, Message: "boom", Attempts: 3}
	}
	return &models.FeedDocument{URL: feedURL, Content: "<rss/>"}, nil
}

func TestSyncAllIsolatesFailuresAndSkipsPaused(t *testing.T) {
	source := &memorySubscriptions{subs: []models.Subscription{
		{ID: "a", FeedURL: "https://a.example/feed.xml", Status: models.SubscriptionActive},
		{ID: "b", FeedURL: "https://b.example/feed.xml", Status: models.SubscriptionError},
		{ID: "c", FeedURL: "https://c.example/feed.xml", Status: models.SubscriptionPaused},
		{ID: "d", FeedURL: "https://d.example/feed.xml", Status: models.SubscriptionActive},
	}}
	fetcher := &urlFetcher{failURL: "https://b.example/feed.xml"}
	parser := &stubParser{feed: &models.ParsedFeed{Items: []models.FeedItem{feedItem("x", 1)}}}
	store := newMemoryStore()

	syncService := newTestSync(store, fetcher, parser)
	scheduler := NewSchedulerService(source, syncService, core.NopLogger(), &models.SchedulerConfig{
		UpdateInterval: time.Hour,
		Mode:           models.SyncIncremental,
	})

	report, err := scheduler.SyncAll(context.Background(), models.SyncIncremental)
	if err != nil {
		t.Fatalf("SyncAll returned error: %v", err)
	}

	if len(report.Results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(report.Results))
	}
	if len(report.Skipped) != 1 || report.Skipped[0] != "c" {
		t.Errorf("Expected paused subscription to be skipped, got %v", report.Skipped)
	}
	if failed := report.Failed(); len(failed) != 1 || failed[0].SubscriptionID != "b" {
		t.Errorf("Expected only b to fail, got %+v", failed)
	}
	if report.TotalInserted() != 2 {
		t.Errorf("Expected 2 inserts, got %d", report.TotalInserted())
	}

	want := []string{"https://a.example/feed.xml", "https://b.example/feed.xml", "https://d.example/feed.xml"}
	if !equalStrings(fetcher.fetched, want) {
		t.Errorf("Expected sequential fetch order %v, got %v", want, fetcher.fetched)
	}
}

func TestSyncOne(t *testing.T) {
	source := &memorySubscriptions{subs: []models.Subscription{
		{ID: "a", FeedURL: "https://a.example/feed.xml", Status: models.SubscriptionActive},
	}}
	parser := &stubParser{feed: &models.ParsedFeed{Items: []models.FeedItem{feedItem("x", 1)}}}
	syncService := newTestSync(newMemoryStore(), &urlFetcher{}, parser)
	scheduler := NewSchedulerService(source, syncService, core.NopLogger(), nil)

	report, err := scheduler.SyncOne(context.Background(), "a", models.SyncFull)
	if err != nil {
		t.Fatalf("SyncOne returned error: %v", err)
	}
	if report.InsertedCount() != 1 {
		t.Errorf("Expected 1 insert, got %d", report.InsertedCount())
	}

	if _, err := scheduler.SyncOne(context.Background(), "missing", models.SyncFull); !IsNotFound(err) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	source := &memorySubscriptions{}
	syncService := newTestSync(newMemoryStore(), &urlFetcher{}, &stubParser{})
	scheduler := NewSchedulerService(source, syncService, core.NopLogger(), &models.SchedulerConfig{UpdateInterval: time.Hour})

	if err := scheduler.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := scheduler.Stop(ctx); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}

	bad := NewSchedulerService(source, syncService, core.NopLogger(), &models.SchedulerConfig{})
	if err := bad.Start(context.Background()); err == nil {
		t.Error("Expected zero interval to be rejected")
	}
}
