package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesSentinelByKind(t *testing.T) {
	err := E(NotFound, "task.get", "task %s not found", "abc")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("errors.Is(%v, ErrNotFound) = false", err)
	}
	if errors.Is(err, ErrStoreFailure) {
		t.Errorf("errors.Is(%v, ErrStoreFailure) = true", err)
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !errors.Is(wrapped, ErrNotFound) {
		t.Errorf("wrapped error lost its kind")
	}
}

func TestWrapKeepsExistingKind(t *testing.T) {
	inner := E(NoMatch, "classify.priority", "no label")
	got := Wrap(StoreFailure, "task.create", inner)
	if KindOf(got) != NoMatch {
		t.Errorf("KindOf = %q, want %q", KindOf(got), NoMatch)
	}

	if Wrap(StoreFailure, "x", nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}

	raw := errors.New("disk full")
	got = Wrap(StoreFailure, "task.create", raw)
	if !errors.Is(got, raw) {
		t.Error("wrapped error should unwrap to the driver error")
	}
	if KindOf(got) != StoreFailure {
		t.Errorf("KindOf = %q, want store_failure", KindOf(got))
	}
}

func TestKindOfUnclassified(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != StoreFailure {
		t.Errorf("KindOf(plain) = %q, want %q", got, StoreFailure)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{NotFound, http.StatusNotFound},
		{ValidationFailure, http.StatusBadRequest},
		{NoopUpdate, http.StatusBadRequest},
		{AlreadyDecomposed, http.StatusBadRequest},
		{ClassificationUnavailable, http.StatusInternalServerError},
		{NoMatch, http.StatusInternalServerError},
		{StoreFailure, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.kind); got != tt.want {
			t.Errorf("HTTPStatus(%q) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Kind: StoreFailure, Op: "tag.associate", Err: errors.New("locked")}
	if got, want := err.Error(), "tag.associate: store_failure: locked"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
