package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"pantry-go/internal/pantry"
)

// FileSystemArchive stores items as files under a root directory:
//
//	<root>/
//	  <ownerID>/
//	    db            (latest snapshot)
//	    db.version    (operation id of the snapshot)
//	    public_key
//	    ...
type FileSystemArchive struct {
	root string
}

// NewFileSystemArchive creates an archive rooted at root, creating the
// directory if needed.
func NewFileSystemArchive(root string) (*FileSystemArchive, error) {
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("failed to create archive root: %w", err)
	}
	return &FileSystemArchive{root: root}, nil
}

func (a *FileSystemArchive) Put(ctx context.Context, ownerID, name string, r io.Reader, size int64, version int64) error {
	if err := checkKey(ownerID, name); err != nil {
		return err
	}

	dir := filepath.Join(a.root, ownerID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create owner directory: %w", err)
	}

	if err := writeFile(filepath.Join(dir, name), r, size); err != nil {
		return err
	}

	versionData := strconv.FormatInt(version, 10)
	return writeFile(filepath.Join(dir, name+".version"), strings.NewReader(versionData), int64(len(versionData)))
}

func (a *FileSystemArchive) Get(ctx context.Context, ownerID, name string, w io.Writer) error {
	if err := checkKey(ownerID, name); err != nil {
		return err
	}

	f, err := os.Open(filepath.Join(a.root, ownerID, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notFound(ownerID, name)
		}
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	return nil
}

// Version returns 0 if no version file exists.
func (a *FileSystemArchive) Version(ctx context.Context, ownerID, name string) (int64, error) {
	if err := checkKey(ownerID, name); err != nil {
		return 0, err
	}

	data, err := os.ReadFile(filepath.Join(a.root, ownerID, name+".version"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup verifies that the root exists and is a directory.
func (a *FileSystemArchive) ValidateSetup(ctx context.Context) error {
	info, err := os.Stat(a.root)
	if err != nil {
		return fmt.Errorf("archive root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("archive root is not a directory: %s", a.root)
	}
	return nil
}

// writeFile writes r to destPath via a temp file and rename, so a reader
// never sees a partial item.
func writeFile(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

var _ pantry.Archive = (*FileSystemArchive)(nil)
