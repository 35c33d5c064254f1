package archive

import (
	"context"
	"fmt"

	"pantry-go/internal/config"
	"pantry-go/internal/pantry"
)

// NewArchiveFromConfig creates an Archive based on the archive config type.
// Type "none" (or empty) yields a nil Archive: snapshots are not kept.
func NewArchiveFromConfig(ctx context.Context, cfg config.ArchiveConfig) (pantry.Archive, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemoryArchive(), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem archive requires fs_root to be set")
		}
		return NewFileSystemArchive(cfg.FSRoot)
	case "s3":
		return NewS3Archive(ctx, S3Options{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unknown archive type: %s", cfg.Type)
	}
}
