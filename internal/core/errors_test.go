package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandleErrorStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NewValidationError("bad", nil), http.StatusBadRequest},
		{NewNotFoundError("missing", nil), http.StatusNotFound},
		{NewUnauthorizedError("who", nil), http.StatusUnauthorized},
		{NewConflictError("dup", nil), http.StatusConflict},
		{NewDatabaseError("db", nil), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", NewNotFoundError("missing", nil)), http.StatusNotFound},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		HandleError(rec, tt.err)
		if rec.Code != tt.want {
			t.Errorf("HandleError(%v) = %d, want %d", tt.err, rec.Code, tt.want)
		}
	}
}

func TestUpstreamErrorExposesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleError(rec, NewUpstreamError("Failed to fetch feed", errors.New("HTTP 503: Service Unavailable")))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", rec.Code)
	}
	var body ErrorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body.Error != "HTTP 503: Service Unavailable" || body.Code != ErrCodeUpstream {
		t.Errorf("Unexpected body %+v", body)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("cause")
	err := NewInternalError("boom", cause)
	if !errors.Is(err, cause) {
		t.Error("Expected AppError to unwrap to its cause")
	}
}
