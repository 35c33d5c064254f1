package pantry

import (
	"context"
	"io"
)

// Names of the items an archive keeps per owner.
const (
	ArchiveSnapshot   = "db"
	ArchivePublicKey  = "public_key"
	ArchivePrivateKey = "private_key"
)

// Archive stores database snapshots and key material off the machine.
// Items are addressed by owner and name and carry a version, which for
// snapshots is the id of the operation that produced them.
type Archive interface {
	// Put stores a named item for an owner, replacing any previous one.
	// size is the number of bytes that will be read from r.
	Put(ctx context.Context, ownerID, name string, r io.Reader, size int64, version int64) error

	// Get writes the named item for an owner to w. A missing item is ErrNotFound.
	Get(ctx context.Context, ownerID, name string, w io.Writer) error

	// Version returns the stored version of the named item, or 0 if there
	// is none.
	Version(ctx context.Context, ownerID, name string) (int64, error)

	// ValidateSetup verifies that the archive is reachable and usable.
	ValidateSetup(ctx context.Context) error
}
