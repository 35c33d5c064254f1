package pantry

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds surfaced to callers. Every error returned by PantryService
// wraps exactly one of these, so errors.Is and KindOf can classify it.
var (
	ErrValidation     = errors.New("validation")
	ErrNotFound       = errors.New("not found")
	ErrStale          = errors.New("stale")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrPartialFailure = errors.New("partial failure")
)

// Kind is a short tag naming the class of an error.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindStale          Kind = "stale"
	KindUnauthorized   Kind = "unauthorized"
	KindPartialFailure Kind = "partial_failure"
	KindInternal       Kind = "internal"
)

// KindOf classifies err. Unclassified errors are KindInternal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrStale):
		return KindStale
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrPartialFailure):
		return KindPartialFailure
	default:
		return KindInternal
	}
}

// ItemFailure describes one item of a batch that could not be applied.
type ItemFailure struct {
	Index  int
	Name   string
	ItemID string
	Err    error
}

func (f ItemFailure) String() string {
	if f.ItemID != "" {
		return fmt.Sprintf("#%d %s (%s): %v", f.Index, f.Name, f.ItemID, f.Err)
	}
	return fmt.Sprintf("#%d %s: %v", f.Index, f.Name, f.Err)
}

// PartialFailureError is returned alongside a batch result when some items
// failed and the rest were applied.
type PartialFailureError struct {
	Op       string
	Failures []ItemFailure
}

func (e *PartialFailureError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.String()
	}
	return fmt.Sprintf("%s: %d item(s) failed: %s", e.Op, len(e.Failures), strings.Join(parts, "; "))
}

func (e *PartialFailureError) Is(target error) bool {
	return target == ErrPartialFailure
}

// partialFailure returns nil when there is nothing to report.
func partialFailure(op string, failures []ItemFailure) error {
	if len(failures) == 0 {
		return nil
	}
	return &PartialFailureError{Op: op, Failures: failures}
}
