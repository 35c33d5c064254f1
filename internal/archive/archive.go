// Package archive implements pantry.Archive backends: in-memory, local
// directory and S3.
package archive

import (
	"fmt"
	"strings"

	"pantry-go/internal/pantry"
)

// checkKey rejects owner ids and item names that would escape their slot
// in a directory or bucket layout.
func checkKey(ownerID, name string) error {
	for _, part := range []string{ownerID, name} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return fmt.Errorf("%w: invalid archive key %q/%q", pantry.ErrValidation, ownerID, name)
		}
	}
	return nil
}

func notFound(ownerID, name string) error {
	return fmt.Errorf("%w: archive item %q for owner %s", pantry.ErrNotFound, name, ownerID)
}
