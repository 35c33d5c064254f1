package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"pantry-go/internal/pantry"
)

type memoryItem struct {
	data    []byte
	version int64
}

// MemoryArchive keeps items in memory. It is safe for concurrent use.
type MemoryArchive struct {
	mu    sync.RWMutex
	items map[string]memoryItem // "ownerID/name" -> item
}

// NewMemoryArchive creates an empty in-memory archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{items: make(map[string]memoryItem)}
}

func memoryKey(ownerID, name string) string {
	return ownerID + "/" + name
}

func (m *MemoryArchive) Put(ctx context.Context, ownerID, name string, r io.Reader, size int64, version int64) error {
	if err := checkKey(ownerID, name); err != nil {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[memoryKey(ownerID, name)] = memoryItem{data: data, version: version}
	return nil
}

func (m *MemoryArchive) Get(ctx context.Context, ownerID, name string, w io.Writer) error {
	m.mu.RLock()
	item, ok := m.items[memoryKey(ownerID, name)]
	m.mu.RUnlock()

	if !ok {
		return notFound(ownerID, name)
	}
	if _, err := io.Copy(w, bytes.NewReader(item.data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func (m *MemoryArchive) Version(ctx context.Context, ownerID, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.items[memoryKey(ownerID, name)].version, nil
}

// ValidateSetup always succeeds for the in-memory archive.
func (m *MemoryArchive) ValidateSetup(ctx context.Context) error {
	return nil
}

var _ pantry.Archive = (*MemoryArchive)(nil)
