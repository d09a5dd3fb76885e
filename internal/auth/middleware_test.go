package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"letterbox/internal/core"

	"golang.org/x/crypto/bcrypt"
)

func newTestMiddleware(t *testing.T, token string) *Middleware {
	t.Helper()
	hash := ""
	if token != "" {
		// Minimum cost keeps the test fast
		b, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("Failed to hash token: %v", err)
		}
		hash = string(b)
	}
	verifier, err := NewVerifier(hash)
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}
	return NewMiddleware(verifier, core.NopLogger())
}

func TestRequireToken(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{"disabled lets everything through", "", "", http.StatusTeapot},
		{"missing header", "s3cret", "", http.StatusUnauthorized},
		{"wrong scheme", "s3cret", "Basic s3cret", http.StatusUnauthorized},
		{"wrong token", "s3cret", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "s3cret", "Bearer s3cret", http.StatusTeapot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestMiddleware(t, tt.token).RequireToken(ok)

			req := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestNewVerifierRejectsMalformedHash(t *testing.T) {
	if _, err := NewVerifier("not-a-bcrypt-hash"); err == nil {
		t.Error("Expected an error for a malformed hash")
	}
}

func TestGenerateTokenVerifies(t *testing.T) {
	plaintext, hash, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if len(plaintext) != 32 {
		t.Errorf("Expected 32 character token, got %d", len(plaintext))
	}

	verifier, err := NewVerifier(hash)
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}
	if err := verifier.Verify(plaintext); err != nil {
		t.Errorf("Expected generated token to verify, got %v", err)
	}
	if err := verifier.Verify(plaintext + "x"); err != ErrInvalidToken {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}
