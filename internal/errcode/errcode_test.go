package errcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	if got := CodeOf(nil); got != OK {
		t.Fatalf("nil: want OK, got %d", got)
	}
	if got := CodeOf(New(Conflict, "taken")); got != Conflict {
		t.Fatalf("business error: want Conflict, got %d", got)
	}
	wrapped := fmt.Errorf("outer: %w", New(NotFound, "missing"))
	if got := CodeOf(wrapped); got != NotFound {
		t.Fatalf("wrapped error: want NotFound, got %d", got)
	}
	if got := CodeOf(errors.New("plain")); got != SystemError {
		t.Fatalf("plain error: want SystemError, got %d", got)
	}
}

func TestErrorMessage(t *testing.T) {
	err := New(BadRequest, "bad input")
	if err.Error() != "bad input" {
		t.Fatalf("want message, got %q", err.Error())
	}
}
