package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"letterbox/internal/core"
	"letterbox/internal/features/newsletters/models"
)

// memoryStore is an in-memory EntryStore keyed by (subscription, guid hash)
type memoryStore struct {
	entries   []models.Entry
	updates   []models.SyncResultUpdate
	insertErr map[string]error
	// conflictOnInsert simulates a concurrent sync winning the race
	conflictOnInsert map[string]bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{insertErr: map[string]error{}, conflictOnInsert: map[string]bool{}}
}

func (m *memoryStore) ExistsByGUIDHash(ctx context.Context, subscriptionID, guidHash string) (bool, error) {
	for _, e := range m.entries {
		if e.SubscriptionID == subscriptionID && e.GUIDHash == guidHash {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) Insert(ctx context.Context, entry *models.EntryCreate) (*models.Entry, error) {
	if err := m.insertErr[entry.GUIDHash]; err != nil {
		return nil, err
	}
	if m.conflictOnInsert[entry.GUIDHash] {
		return nil, ErrConflict
	}
	if exists, _ := m.ExistsByGUIDHash(ctx, entry.SubscriptionID, entry.GUIDHash); exists {
		return nil, ErrConflict
	}
	created := models.Entry{
		ID:             fmt.Sprintf("e%d", len(m.entries)+1),
		SubscriptionID: entry.SubscriptionID,
		GUIDHash:       entry.GUIDHash,
		Title:          entry.Title,
		ContentHTML:    entry.ContentHTML,
		Link:           entry.Link,
		PublishedAt:    entry.PublishedAt,
		Status:         models.EntryUnread,
	}
	m.entries = append(m.entries, created)
	return &created, nil
}

func (m *memoryStore) MaxPublishedAt(ctx context.Context, subscriptionID string) (*time.Time, error) {
	var max *time.Time
	for i := range m.entries {
		e := m.entries[i]
		if e.SubscriptionID != subscriptionID {
			continue
		}
		if max == nil || e.PublishedAt.After(*max) {
			t := e.PublishedAt
			max = &t
		}
	}
	return max, nil
}

func (m *memoryStore) UpdateSubscriptionSyncResult(ctx context.Context, subscriptionID string, update *models.SyncResultUpdate) error {
	m.updates = append(m.updates, *update)
	return nil
}

func at(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(n) * time.Hour)
}

func feedItem(guid string, n int) models.FeedItem {
	return models.FeedItem{GUID: guid, Title: "Item " + guid, ContentHTML: "<p>" + guid + "</p>", PublishedAt: at(n)}
}

func newTestSync(store EntryStore, fetcher DocumentFetcher, parser FeedParser) *SyncService {
	permalinks := NewPermalinkService(fetcher, parser, NewLinkCache(), core.NopLogger())
	s := NewSyncService(store, fetcher, parser, permalinks, core.NopLogger())
	s.now = func() time.Time { return at(100) }
	return s
}

var testSub = &models.Subscription{ID: "sub-1", FeedURL: "https://bridge.example/feeds/abc123.xml"}

func insertedGUIDs(store *memoryStore) []string {
	guids := make([]string, 0, len(store.entries))
	for _, e := range store.entries {
		guids = append(guids, e.GUIDHash)
	}
	return guids
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestApplyIsIdempotent(t *testing.T) {
	for _, mode := range []models.SyncMode{models.SyncFull, models.SyncIncremental, models.SyncLatest} {
		t.Run(string(mode), func(t *testing.T) {
			store := newMemoryStore()
			s := newTestSync(store, nil, nil)
			feed := &models.ParsedFeed{Items: []models.FeedItem{feedItem("a", 1), feedItem("b", 2), feedItem("c", 3)}}

			first, err := s.Apply(context.Background(), testSub, feed, mode)
			if err != nil {
				t.Fatalf("Apply returned error: %v", err)
			}
			if first.InsertedCount() == 0 {
				t.Fatal("Expected the first run to insert entries")
			}

			second, err := s.Apply(context.Background(), testSub, feed, mode)
			if err != nil {
				t.Fatalf("Apply returned error: %v", err)
			}
			if second.InsertedCount() != 0 {
				t.Errorf("Expected no inserts on second run, got %d", second.InsertedCount())
			}
		})
	}
}

func TestApplyIncrementalOrderingAfterCutoff(t *testing.T) {
	store := newMemoryStore()
	store.entries = append(store.entries, models.Entry{ID: "old", SubscriptionID: testSub.ID, GUIDHash: "seed", PublishedAt: at(2)})
	s := newTestSync(store, nil, nil)

	feed := &models.ParsedFeed{Items: []models.FeedItem{
		feedItem("p3", 3), feedItem("p1", 1), feedItem("p4", 4), feedItem("p1b", 1), feedItem("p5", 5),
	}}

	report, err := s.Apply(context.Background(), testSub, feed, models.SyncIncremental)
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}

	got := insertedGUIDs(store)[1:]
	if want := []string{"p3", "p4", "p5"}; !equalStrings(got, want) {
		t.Errorf("Expected insert order %v, got %v", want, got)
	}
	if report.Cutoff == nil || !report.Cutoff.Equal(at(2)) {
		t.Errorf("Expected cutoff %v, got %v", at(2), report.Cutoff)
	}
	if report.Candidates != 3 {
		t.Errorf("Expected 3 candidates, got %d", report.Candidates)
	}
}

func TestApplyIncrementalFirstSyncTakesAll(t *testing.T) {
	store := newMemoryStore()
	s := newTestSync(store, nil, nil)
	feed := &models.ParsedFeed{Items: []models.FeedItem{feedItem("b", 2), feedItem("a", 1)}}

	if _, err := s.Apply(context.Background(), testSub, feed, models.SyncIncremental); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if got := insertedGUIDs(store); !equalStrings(got, []string{"a", "b"}) {
		t.Errorf("Expected ascending inserts, got %v", got)
	}
}

func TestApplyFullKeepsFeedOrderAndSkipsExisting(t *testing.T) {
	store := newMemoryStore()
	store.entries = append(store.entries, models.Entry{ID: "x", SubscriptionID: testSub.ID, GUIDHash: "b", PublishedAt: at(9)})
	s := newTestSync(store, nil, nil)
	feed := &models.ParsedFeed{Items: []models.FeedItem{feedItem("c", 3), feedItem("b", 2), feedItem("a", 1)}}

	report, err := s.Apply(context.Background(), testSub, feed, models.SyncFull)
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if got := insertedGUIDs(store)[1:]; !equalStrings(got, []string{"c", "a"}) {
		t.Errorf("Expected feed order inserts, got %v", got)
	}
	if report.AlreadySynced != 1 {
		t.Errorf("Expected 1 already synced, got %d", report.AlreadySynced)
	}
}

func TestApplyLatestOnly(t *testing.T) {
	store := newMemoryStore()
	s := newTestSync(store, nil, nil)
	feed := &models.ParsedFeed{Items: []models.FeedItem{feedItem("a", 1), feedItem("newest", 7), feedItem("b", 2)}}

	if _, err := s.Apply(context.Background(), testSub, feed, models.SyncLatest); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if got := insertedGUIDs(store); !equalStrings(got, []string{"newest"}) {
		t.Errorf("Expected only the newest item, got %v", got)
	}
}

func TestApplyConflictIsBenignAndErrorsContinue(t *testing.T) {
	store := newMemoryStore()
	store.conflictOnInsert["a"] = true
	store.insertErr["b"] = errors.New("disk full")
	s := newTestSync(store, nil, nil)
	feed := &models.ParsedFeed{Items: []models.FeedItem{feedItem("a", 1), feedItem("b", 2), feedItem("c", 3)}}

	report, err := s.Apply(context.Background(), testSub, feed, models.SyncFull)
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if report.AlreadySynced != 1 {
		t.Errorf("Expected conflict counted as already synced, got %d", report.AlreadySynced)
	}
	if len(report.Errors) != 1 {
		t.Errorf("Expected 1 recorded error, got %v", report.Errors)
	}
	if got := insertedGUIDs(store); !equalStrings(got, []string{"c"}) {
		t.Errorf("Expected c inserted after failures, got %v", got)
	}
}

func TestApplyNewEntryFields(t *testing.T) {
	store := newMemoryStore()
	s := newTestSync(store, nil, nil)
	feed := &models.ParsedFeed{Items: []models.FeedItem{
		{GUID: "tag:bridge.example,2024:entry42", Title: "Bridge", ContentHTML: "<table></table>", PublishedAt: at(1)},
		{GUID: "plain", Title: "No link", PublishedAt: at(2)},
	}}

	if _, err := s.Apply(context.Background(), testSub, feed, models.SyncFull); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}

	first := store.entries[0]
	if first.Link == nil || *first.Link != "https://bridge.example/feeds/abc123/entries/entry42.html" {
		t.Errorf("Expected derived permalink, got %v", first.Link)
	}
	if first.ContentHTML != "<table></table>" {
		t.Errorf("Expected raw content to be stored, got %q", first.ContentHTML)
	}
	if first.Status != models.EntryUnread || first.Starred || first.Archived {
		t.Errorf("Unexpected initial state: %+v", first)
	}
	if store.entries[1].Link != nil {
		t.Errorf("Expected nil link for unresolvable item, got %q", *store.entries[1].Link)
	}
}

func TestSyncRecordsFetchFailure(t *testing.T) {
	store := newMemoryStore()
	fetcher := &stubFetcher{err: &FetchError{URL: testSub.FeedURL, StatusCode: 404, Message: "404 Not Found", Attempts: 1}}
	s := newTestSync(store, fetcher, &stubParser{})

	report, err := s.Sync(context.Background(), testSub, models.SyncIncremental)

	var ferr *FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("Expected *FetchError, got %v", err)
	}
	if report.SyncError == "" {
		t.Error("Expected sync error in report")
	}
	if len(store.updates) != 1 {
		t.Fatalf("Expected 1 sync result update, got %d", len(store.updates))
	}
	update := store.updates[0]
	if update.SyncError == nil || *update.SyncError != err.Error() {
		t.Errorf("Expected sync error to be recorded, got %v", update.SyncError)
	}
	if !update.LastSyncAt.Equal(at(100)) {
		t.Errorf("Expected lastSyncAt to be set, got %v", update.LastSyncAt)
	}
}

func TestSyncRecordsParseFailure(t *testing.T) {
	store := newMemoryStore()
	fetcher := &stubFetcher{doc: &models.FeedDocument{Content: "nope"}}
	s := newTestSync(store, fetcher, &stubParser{err: &ParseError{Reason: "not a feed"}})

	if _, err := s.Sync(context.Background(), testSub, models.SyncIncremental); err == nil {
		t.Fatal("Expected parse error")
	}
	if len(store.updates) != 1 || store.updates[0].SyncError == nil {
		t.Errorf("Expected failure to be recorded, got %+v", store.updates)
	}
}

func TestSyncSuccessClearsError(t *testing.T) {
	store := newMemoryStore()
	feed := &models.ParsedFeed{Title: "Feed title", ImageURL: "https://example.com/logo.png", Items: []models.FeedItem{feedItem("a", 1)}}
	fetcher := &stubFetcher{doc: &models.FeedDocument{Content: "<rss/>"}}
	s := newTestSync(store, fetcher, &stubParser{feed: feed})

	report, err := s.Sync(context.Background(), testSub, models.SyncIncremental)
	if err != nil {
		t.Fatalf("Sync returned error: %v", err)
	}
	if report.InsertedCount() != 1 {
		t.Errorf("Expected 1 insert, got %d", report.InsertedCount())
	}

	update := store.updates[0]
	if update.SyncError != nil {
		t.Errorf("Expected sync error to be cleared, got %q", *update.SyncError)
	}
	if update.FeedTitle != "Feed title" || update.FeedImageURL != "https://example.com/logo.png" {
		t.Errorf("Expected feed metadata in update, got %+v", update)
	}
}

func TestSelectCandidatesRejectsUnknownMode(t *testing.T) {
	if _, err := selectCandidates(nil, models.SyncMode("sideways"), nil); err == nil {
		t.Error("Expected unknown mode error")
	}
}

func TestSyncUndatedItemsWithoutGUIDAreIdempotent(t *testing.T) {
	doc := `<rss version="2.0"><channel><title>Undated</title>
  <item><title>Weekly note</title><description>&lt;p&gt;Hello&lt;/p&gt;</description></item>
</channel></rss>`

	for _, mode := range []models.SyncMode{models.SyncFull, models.SyncIncremental} {
		t.Run(string(mode), func(t *testing.T) {
			store := newMemoryStore()
			fetcher := &stubFetcher{doc: &models.FeedDocument{Content: doc}}
			parser := newTestParser(0)
			s := newTestSync(store, fetcher, parser)

			first, err := s.Sync(context.Background(), testSub, mode)
			if err != nil {
				t.Fatalf("First sync returned error: %v", err)
			}

			parser.now = func() time.Time { return time.Date(2024, 6, 2, 8, 0, 0, 0, time.UTC) }
			second, err := s.Sync(context.Background(), testSub, mode)
			if err != nil {
				t.Fatalf("Second sync returned error: %v", err)
			}

			if first.InsertedCount() != 1 || second.InsertedCount() != 0 {
				t.Errorf("Expected 1 then 0 inserts, got %d then %d", first.InsertedCount(), second.InsertedCount())
			}
			if len(store.entries) != 1 {
				t.Errorf("Expected 1 stored entry, got %d", len(store.entries))
			}
		})
	}
}
