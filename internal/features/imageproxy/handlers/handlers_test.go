package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"letterbox/internal/core"
	"letterbox/internal/features/imageproxy/models"
	"letterbox/internal/features/imageproxy/services"

	"github.com/go-chi/chi/v5"
)

type stubCache struct {
	key   string
	err   error
	calls int
}

func (s *stubCache) Ensure(ctx context.Context, sourceURL, sourceID string) (string, error) {
	s.calls++
	return s.key, s.err
}

type stubBlobs map[string]*models.Blob

func (s stubBlobs) Get(ctx context.Context, key string) (*models.Blob, error) {
	if blob, ok := s[key]; ok {
		return blob, nil
	}
	return nil, services.ErrBlobNotFound
}

func newTestRouter(cache ImageCache, blobs BlobReader) http.Handler {
	h := NewHandlers(core.NopLogger(), services.NewProxy(""), cache, blobs)
	r := chi.NewRouter()
	r.Get(services.ProxyPath, h.ProxyImage)
	r.Get(services.CachePath+"*", h.ServeCached)
	return r
}

func proxyRequest(raw string) *http.Request {
	return httptest.NewRequest(http.MethodGet, services.ProxyPath+"?url="+url.QueryEscape(raw)+"&sourceId=sub1", nil)
}

func TestProxyImageRedirectsToCachedCopy(t *testing.T) {
	cache := &stubCache{key: "sub1/abc"}
	rec := httptest.NewRecorder()
	newTestRouter(cache, stubBlobs{}).ServeHTTP(rec, proxyRequest("https://cdn.example/a.png"))

	if rec.Code != http.StatusFound {
		t.Fatalf("Expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/image-cache/sub1/abc" {
		t.Errorf("Expected redirect to cached copy, got %q", loc)
	}
}

func TestProxyImageFallsBackToOriginal(t *testing.T) {
	cache := &stubCache{err: errors.New("upstream timeout")}
	rec := httptest.NewRecorder()
	newTestRouter(cache, stubBlobs{}).ServeHTTP(rec, proxyRequest("https://cdn.example/a.png"))

	if rec.Code != http.StatusFound {
		t.Fatalf("Expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://cdn.example/a.png" {
		t.Errorf("Expected redirect to the original URL, got %q", loc)
	}
}

func TestProxyImageDataURLRedirectsToItself(t *testing.T) {
	cache := &stubCache{}
	data := "data:image/png;base64,iVBORw0KGgo="
	rec := httptest.NewRecorder()
	newTestRouter(cache, stubBlobs{}).ServeHTTP(rec, proxyRequest(data))

	if rec.Code != http.StatusFound {
		t.Fatalf("Expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != data {
		t.Errorf("Expected data URL redirect, got %q", loc)
	}
	if cache.calls != 0 {
		t.Errorf("Expected no cache work for data URLs, got %d calls", cache.calls)
	}
}

func TestProxyImageRejectsBadInput(t *testing.T) {
	for _, raw := range []string{"", "ftp://cdn.example/a.png", "/relative.png"} {
		rec := httptest.NewRecorder()
		newTestRouter(&stubCache{}, stubBlobs{}).ServeHTTP(rec, proxyRequest(raw))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for %q, got %d", raw, rec.Code)
		}
	}
}

func TestServeCached(t *testing.T) {
	blobs := stubBlobs{
		"sub1/abc": {Key: "sub1/abc", ContentType: "image/png", Data: []byte("png")},
	}
	router := newTestRouter(&stubCache{}, blobs)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/image-cache/sub1/abc", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Expected image/png, got %q", ct)
	}
	if rec.Body.String() != "png" {
		t.Errorf("Unexpected body %q", rec.Body.String())
	}
	if csp := rec.Header().Get("Content-Security-Policy"); csp != "default-src 'none'; sandbox" {
		t.Errorf("Expected locked-down CSP on cached images, got %q", csp)
	}

	req := httptest.NewRequest(http.MethodGet, "/image-cache/sub1/abc", nil)
	req.Header.Set("If-None-Match", rec.Header().Get("ETag"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Errorf("Expected 304 for matching ETag, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/image-cache/sub1/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}
