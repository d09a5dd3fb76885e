package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"letterbox/internal/core"

	"golang.org/x/crypto/bcrypt"
)

func testConfig(t *testing.T, token string) *core.Config {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash token: %v", err)
	}
	return &core.Config{
		Server:   core.ServerConfig{Port: 4000, Host: "127.0.0.1", BaseURL: "https://letterbox.test"},
		Database: core.DatabaseConfig{Path: ":memory:"},
		Auth:     core.AuthConfig{APITokenHash: string(hash)},
		Log:      core.LogConfig{Level: "error"},
		Features: core.FeatureConfig{
			Newsletters: core.NewslettersConfig{
				Enabled:          true,
				SyncInterval:     time.Hour,
				FetchTimeout:     time.Second,
				FetchAttempts:    1,
				RetryBaseDelay:   time.Millisecond,
				MaxItemsPerParse: 50,
				UserAgent:        "letterbox-test",
				SyncMode:         "incremental",
				RenderMaxWidth:   "100%",
			},
			ImageProxy: core.ImageProxyConfig{
				Enabled:       true,
				FetchTimeout:  time.Second,
				UploadRetries: 3,
				MaxImageBytes: 1 << 20,
			},
		},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := core.OpenDatabase(":memory:", core.NopLogger())
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	srv, err := New(testConfig(t, "s3cret"), core.NopLogger(), db)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := srv.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return srv
}

func TestHealthReportsFeatures(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body struct {
		Status   string                        `json:"status"`
		Features map[string]core.FeatureStatus `json:"features"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("Expected ok, got %q", body.Status)
	}
	for _, name := range []string{"newsletters", "imageproxy"} {
		if !body.Features[name].Enabled {
			t.Errorf("Expected feature %s to be enabled", name)
		}
	}
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	srv := newTestServer(t)

	body := `{"feed_url":"https://example.com/feed.xml"}`

	req := httptest.NewRequest(http.MethodPost, "/api/subscriptions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/subscriptions", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201 with token, got %d: %s", rec.Code, rec.Body.String())
	}

	// Reads stay public
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/subscriptions", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 listing subscriptions, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "https://example.com/feed.xml") {
		t.Errorf("Expected created subscription in list, got %s", rec.Body.String())
	}
}

func TestImageProxyRejectsMissingURL(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/image-proxy", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestNewRejectsMalformedTokenHash(t *testing.T) {
	cfg := testConfig(t, "x")
	cfg.Auth.APITokenHash = "plaintext-by-mistake"

	db, err := core.OpenDatabase(":memory:", core.NopLogger())
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if _, err := New(cfg, core.NopLogger(), db); err == nil {
		t.Error("Expected an error for a malformed token hash")
	}
}
