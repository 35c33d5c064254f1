package database

import (
	"fmt"
	"os"
	"path/filepath"

	"pantry-go/internal/config"
)

// NewDatabaseFromConfig creates a SQLiteDatabase based on the database config type.
// A memory database is migrated immediately since it starts empty every time.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, ownerID string) (*SQLiteDatabase, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return NewSQLiteDatabase(FilePath(cfg, ownerID))
	case "memory":
		db, err := NewSQLiteDatabase(":memory:")
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

// FilePath returns where a sqlite database for ownerID lives.
func FilePath(cfg config.DatabaseConfig, ownerID string) string {
	return filepath.Join(cfg.DataDir, ownerID+".db")
}
