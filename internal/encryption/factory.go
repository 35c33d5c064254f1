package encryption

import (
	"fmt"

	"pantry-go/internal/config"
	"pantry-go/internal/pantry"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// Type "none" yields a nil Encryptor: snapshots are archived in plaintext.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (pantry.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		return NewAgeEncryptor(cfg), nil
	case "none":
		return nil, nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
