package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"pantry-go/internal/archive"
	"pantry-go/internal/config"
	"pantry-go/internal/database"
	"pantry-go/internal/encryption"
	"pantry-go/internal/pantry"
)

// GenerateKeys creates the snapshot encryption key pair and, when an
// archive is configured, stores both key files there so another machine
// can restore. The private key only ever leaves the machine encrypted with
// passphrase.
func GenerateKeys(ctx context.Context, cfg *config.Config, passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if enc == nil {
		return fmt.Errorf("%w: encryption is disabled (encryption.type = \"none\")", pantry.ErrValidation)
	}

	if err := enc.Setup(passphrase); err != nil {
		return fmt.Errorf("generating keys: %w", err)
	}

	arch, err := archive.NewArchiveFromConfig(ctx, cfg.Archive)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	if arch == nil || cfg.Encryption.Type != "age" {
		return nil
	}

	keys := map[string]string{
		pantry.ArchivePublicKey:  cfg.Encryption.PublicKeyPath,
		pantry.ArchivePrivateKey: cfg.Encryption.PrivateKeyPath,
	}
	for name, path := range keys {
		if err := putFile(ctx, arch, cfg.OwnerID, name, path, 1); err != nil {
			return fmt.Errorf("archiving %s: %w", name, err)
		}
	}
	return nil
}

// Restore replaces the local database with the newest archived snapshot
// and returns the snapshot version. Missing key files are fetched from the
// archive first. The previous database file, if any, is kept next to the
// restored one with a .bak suffix.
func Restore(ctx context.Context, cfg *config.Config, passphrase string) (int64, error) {
	if err := cfg.Validate(); err != nil {
		return 0, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Database.Type != "sqlite" {
		return 0, fmt.Errorf("%w: restore needs a sqlite database, not %q", pantry.ErrValidation, cfg.Database.Type)
	}

	arch, err := archive.NewArchiveFromConfig(ctx, cfg.Archive)
	if err != nil {
		return 0, fmt.Errorf("creating archive: %w", err)
	}
	if arch == nil {
		return 0, fmt.Errorf("%w: no archive configured", pantry.ErrValidation)
	}

	version, err := arch.Version(ctx, cfg.OwnerID, pantry.ArchiveSnapshot)
	if err != nil {
		return 0, fmt.Errorf("checking archived snapshot version: %w", err)
	}
	if version == 0 {
		return 0, fmt.Errorf("%w: no snapshot archived for owner %s", pantry.ErrNotFound, cfg.OwnerID)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return 0, fmt.Errorf("creating encryptor: %w", err)
	}
	var dc pantry.DecryptionContext
	if enc != nil {
		if !enc.IsConfigured() {
			if err := fetchKeys(ctx, arch, cfg); err != nil {
				return 0, err
			}
		}
		dc, err = enc.Unlock(passphrase)
		if err != nil {
			return 0, fmt.Errorf("unlocking private key: %w", err)
		}
	}

	dest := database.FilePath(cfg.Database, cfg.OwnerID)
	if err := os.MkdirAll(filepath.Dir(dest), 0700); err != nil {
		return 0, fmt.Errorf("creating database directory: %w", err)
	}

	tmpPath, err := download(ctx, arch, cfg.OwnerID, dc, filepath.Dir(dest))
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmpPath)

	if err := checkSnapshot(tmpPath); err != nil {
		return 0, err
	}

	if _, err := os.Stat(dest); err == nil {
		if err := os.Rename(dest, dest+".bak"); err != nil {
			return 0, fmt.Errorf("keeping previous database: %w", err)
		}
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return 0, fmt.Errorf("installing restored database: %w", err)
	}

	return version, nil
}

// download writes the archived snapshot, decrypted when dc is non-nil, to a
// temp file in dir and returns its path.
func download(ctx context.Context, arch pantry.Archive, ownerID string, dc pantry.DecryptionContext, dir string) (string, error) {
	out, err := os.CreateTemp(dir, ".pantry-restore-*.db")
	if err != nil {
		return "", fmt.Errorf("creating temp file for restore: %w", err)
	}
	tmpPath := out.Name()

	fail := func(err error) (string, error) {
		out.Close()
		os.Remove(tmpPath)
		return "", err
	}

	if dc == nil {
		if err := arch.Get(ctx, ownerID, pantry.ArchiveSnapshot, out); err != nil {
			return fail(fmt.Errorf("downloading snapshot: %w", err))
		}
	} else {
		pr, pw := io.Pipe()
		go func() {
			pw.CloseWithError(arch.Get(ctx, ownerID, pantry.ArchiveSnapshot, pw))
		}()
		err := dc.Decrypt(pr, out)
		pr.Close()
		if err != nil {
			return fail(fmt.Errorf("decrypting snapshot: %w", err))
		}
	}

	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing restored snapshot: %w", err)
	}
	return tmpPath, nil
}

// checkSnapshot opens a downloaded snapshot and verifies its schema.
func checkSnapshot(path string) error {
	db, err := database.NewSQLiteDatabase(path)
	if err != nil {
		return fmt.Errorf("opening restored snapshot: %w", err)
	}
	defer db.Close()

	if err := db.CheckMigrations(); err != nil {
		return fmt.Errorf("restored snapshot schema: %w", err)
	}
	return nil
}

// fetchKeys downloads the archived key files into the configured paths.
// Key files already present are left alone.
func fetchKeys(ctx context.Context, arch pantry.Archive, cfg *config.Config) error {
	keys := []struct {
		name string
		path string
		perm os.FileMode
	}{
		{pantry.ArchivePublicKey, cfg.Encryption.PublicKeyPath, 0644},
		{pantry.ArchivePrivateKey, cfg.Encryption.PrivateKeyPath, 0600},
	}

	for _, k := range keys {
		if _, err := os.Stat(k.path); err == nil {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(k.path), 0700); err != nil {
			return fmt.Errorf("creating key directory: %w", err)
		}

		f, err := os.OpenFile(k.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, k.perm)
		if err != nil {
			return fmt.Errorf("creating %s: %w", k.path, err)
		}
		err = arch.Get(ctx, cfg.OwnerID, k.name, f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(k.path)
			if errors.Is(err, pantry.ErrNotFound) {
				return fmt.Errorf("%w: no %s in the archive: copy the key files from the original machine", pantry.ErrNotFound, k.name)
			}
			return fmt.Errorf("fetching %s: %w", k.name, err)
		}
	}
	return nil
}
