package testutil

import (
	"pantry-go/internal/archive"
	"pantry-go/internal/encryption"
	"pantry-go/internal/pantry"
)

// NewTestArchive creates a new in-memory archive for testing.
func NewTestArchive() pantry.Archive {
	return archive.NewMemoryArchive()
}

// NewTestEncryptor creates a deterministic encryptor for testing.
func NewTestEncryptor() pantry.Encryptor {
	return encryption.NewTestEncryptor()
}
