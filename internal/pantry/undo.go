package pantry

import (
	"context"
	"fmt"
	"time"
)

// DefaultUndoWindow is how long after an import its inserts can be reverted.
const DefaultUndoWindow = 24 * time.Hour

// UndoLedger tracks the rows inserted by each import and reverts them as a
// unit while the entry is inside the undo window.
type UndoLedger struct {
	database Database
	clock    Clock
	window   time.Duration
}

// NewUndoLedger creates a ledger with the given undo window.
func NewUndoLedger(database Database, clock Clock, window time.Duration) *UndoLedger {
	return &UndoLedger{database: database, clock: clock, window: window}
}

// Record stores an entry for the rows inserted by importID.
func (l *UndoLedger) Record(ctx context.Context, importID, ownerID string, insertedIDs []string) (*UndoEntry, error) {
	if importID == "" {
		return nil, fmt.Errorf("%w: import id is required", ErrValidation)
	}

	entry := &UndoEntry{
		ImportID:    importID,
		OwnerID:     ownerID,
		InsertedIDs: append([]string(nil), insertedIDs...),
		CreatedAt:   l.clock.Now(),
	}
	if err := l.database.CreateUndoEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("creating undo entry: %w", err)
	}
	return entry, nil
}

// CanUndo reports whether entry is still inside the undo window.
func (l *UndoLedger) CanUndo(entry *UndoEntry) bool {
	return l.clock.Now().Sub(entry.CreatedAt) < l.window
}

// ExpiresAt returns the moment entry leaves the undo window.
func (l *UndoLedger) ExpiresAt(entry *UndoEntry) time.Time {
	return entry.CreatedAt.Add(l.window)
}

// Undo deletes the recorded rows that still exist and returns how many were
// removed. Rows outside the entry are never touched, and a second call
// deletes nothing. An expired entry fails with ErrStale and deletes nothing.
func (l *UndoLedger) Undo(ctx context.Context, entry *UndoEntry) (int, error) {
	if !l.CanUndo(entry) {
		return 0, fmt.Errorf("%w: import %s expired at %s", ErrStale,
			entry.ImportID, l.ExpiresAt(entry).Format(time.RFC3339))
	}

	deleted, err := l.database.DeleteItems(ctx, entry.OwnerID, entry.InsertedIDs)
	if err != nil {
		return 0, fmt.Errorf("deleting imported items: %w", err)
	}

	if entry.UndoneAt == nil {
		now := l.clock.Now()
		if err := l.database.MarkUndone(ctx, entry.ImportID, now); err != nil {
			return deleted, fmt.Errorf("marking import undone: %w", err)
		}
		entry.UndoneAt = &now
	}

	return deleted, nil
}

// UndoImport reverts the rows inserted by importID for ownerID.
func (s *PantryService) UndoImport(ctx context.Context, ownerID, importID string) (int, error) {
	deleted, err := s.undoImport(ctx, ownerID, importID)
	s.recorder.UndoRecorded(deleted, err)
	return deleted, err
}

func (s *PantryService) undoImport(ctx context.Context, ownerID, importID string) (int, error) {
	entry, err := s.database.GetUndoEntry(ctx, importID)
	if err != nil {
		return 0, fmt.Errorf("loading undo entry: %w", err)
	}
	if entry == nil {
		return 0, fmt.Errorf("%w: import %s", ErrNotFound, importID)
	}
	if entry.OwnerID != ownerID {
		return 0, fmt.Errorf("%w: import %s belongs to another owner", ErrUnauthorized, importID)
	}

	deleted, err := s.ledger.Undo(ctx, entry)
	if err != nil {
		return deleted, err
	}

	s.logger.Info("import undone", "import_id", importID, "deleted", deleted)
	return deleted, nil
}

// ListUndoEntries returns the owner's imports, newest first.
func (s *PantryService) ListUndoEntries(ctx context.Context, ownerID string) ([]*UndoEntry, error) {
	entries, err := s.database.ListUndoEntries(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing undo entries: %w", err)
	}
	return entries, nil
}
