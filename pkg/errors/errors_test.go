package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", New(ErrInvalidInput, http.StatusTeapot, "x"), http.StatusTeapot},
		{"invalid input", fmt.Errorf("parsing limit: %w", ErrInvalidInput), http.StatusBadRequest},
		{"decoding", Newf(ErrDecoding, http.StatusUnprocessableEntity, "file %s", "a.txt"), http.StatusUnprocessableEntity},
		{"wrapped decoding", fmt.Errorf("loading: %w", ErrDecoding), http.StatusUnprocessableEntity},
		{"corpus unavailable", ErrCorpusUnavailable, http.StatusServiceUnavailable},
		{"timeout", fmt.Errorf("reload: %w", ErrTimeout), http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("reload: %w", Newf(ErrDecoding, http.StatusUnprocessableEntity, "file %s", "bad.txt"))
	if !errors.Is(err, ErrDecoding) {
		t.Error("wrapped AppError should match its sentinel")
	}
	want := "reload: document is not valid text: file bad.txt"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestPublic(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"app error", New(ErrInvalidInput, http.StatusBadRequest, "limit must be positive"), http.StatusBadRequest, "invalid input: limit must be positive"},
		{"bare sentinel", fmt.Errorf("reload: %w", ErrTimeout), http.StatusServiceUnavailable, "reload: operation timed out"},
		{"unclassified", errors.New("dial tcp 10.0.0.3:6379: connection refused"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := Public(tt.err)
			if status != tt.wantStatus || msg != tt.wantMsg {
				t.Errorf("Public = %d %q, want %d %q", status, msg, tt.wantStatus, tt.wantMsg)
			}
		})
	}
}
