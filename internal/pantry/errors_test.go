package pantry_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"pantry-go/internal/pantry"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want pantry.Kind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "validation", err: fmt.Errorf("%w: quantity", pantry.ErrValidation), want: pantry.KindValidation},
		{name: "wrapped twice", err: fmt.Errorf("outer: %w", fmt.Errorf("%w: item x", pantry.ErrNotFound)), want: pantry.KindNotFound},
		{name: "stale", err: pantry.ErrStale, want: pantry.KindStale},
		{name: "unauthorized", err: pantry.ErrUnauthorized, want: pantry.KindUnauthorized},
		{name: "partial failure", err: &pantry.PartialFailureError{Op: "commit"}, want: pantry.KindPartialFailure},
		{name: "anything else", err: errors.New("disk on fire"), want: pantry.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pantry.KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestPartialFailureError(t *testing.T) {
	err := error(&pantry.PartialFailureError{
		Op: "commit",
		Failures: []pantry.ItemFailure{
			{Index: 0, Name: "Eggs", ItemID: "item-1", Err: pantry.ErrNotFound},
			{Index: 2, Name: "Milk", Err: errors.New("locked")},
		},
	})

	if !errors.Is(err, pantry.ErrPartialFailure) {
		t.Error("errors.Is(err, ErrPartialFailure) = false, want true")
	}
	if errors.Is(err, pantry.ErrNotFound) {
		t.Error("errors.Is(err, ErrNotFound) = true, want false")
	}

	var pf *pantry.PartialFailureError
	if !errors.As(fmt.Errorf("wrapped: %w", err), &pf) {
		t.Fatal("errors.As did not find PartialFailureError")
	}
	if len(pf.Failures) != 2 {
		t.Errorf("len(Failures) = %d, want 2", len(pf.Failures))
	}

	msg := err.Error()
	for _, want := range []string{"commit", "2 item(s) failed", "#0 Eggs (item-1)", "#2 Milk: locked"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, want it to contain %q", msg, want)
		}
	}
}
