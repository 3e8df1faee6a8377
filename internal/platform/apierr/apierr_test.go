package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusOf(t *testing.T) {
	base := errors.New("pool 42 not found")
	wrapped := fmt.Errorf("suggest: %w", NotFound("pool_not_found", base))
	if got := StatusOf(wrapped); got != http.StatusNotFound {
		t.Fatalf("StatusOf=%d want 404", got)
	}
	if !errors.Is(wrapped, base) {
		t.Fatalf("expected Unwrap to expose the cause")
	}
	if got := StatusOf(errors.New("boom")); got != http.StatusInternalServerError {
		t.Fatalf("StatusOf=%d want 500", got)
	}
}

func TestErrorMessageFallbacks(t *testing.T) {
	if got := New(http.StatusBadRequest, "invalid_filters", nil).Error(); got != "invalid_filters" {
		t.Fatalf("Error()=%q", got)
	}
	if got := New(http.StatusConflict, "", nil).Error(); got != "api error (409)" {
		t.Fatalf("Error()=%q", got)
	}
}
