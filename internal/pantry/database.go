package pantry

import (
	"context"
	"time"
)

// Database provides persistence for inventory, undo entries, purchase
// history, staple records and the operation log.
// Lookups by id return (nil, nil) when nothing matches.
type Database interface {
	// Inventory operations

	// ListItems returns an owner's items in a location, oldest first.
	// An empty location lists every location.
	ListItems(ctx context.Context, ownerID string, location Location) ([]*InventoryItem, error)

	// GetItem returns an item by id regardless of owner.
	GetItem(ctx context.Context, id string) (*InventoryItem, error)

	// InsertItem stores a new item. item.ID must already be set.
	InsertItem(ctx context.Context, item *InventoryItem) error

	// UpdateItem overwrites the mutable fields of an existing item.
	UpdateItem(ctx context.Context, item *InventoryItem) error

	// DeleteItem removes an item. Returns false if it no longer existed.
	DeleteItem(ctx context.Context, ownerID, id string) (bool, error)

	// DeleteItems removes whichever of ids still exist for the owner and
	// returns how many rows were removed.
	DeleteItems(ctx context.Context, ownerID string, ids []string) (int, error)

	// RemoveItem deletes an item and logs the reason in one transaction.
	RemoveItem(ctx context.Context, item *InventoryItem, reason RemovalReason, at time.Time) error

	// CountItemsByLocation returns the number of items per location.
	CountItemsByLocation(ctx context.Context, ownerID string) (map[Location]int, error)

	// Undo ledger operations

	// CreateUndoEntry stores an entry together with its inserted ids.
	CreateUndoEntry(ctx context.Context, entry *UndoEntry) error

	// GetUndoEntry returns the entry for an import id regardless of owner.
	GetUndoEntry(ctx context.Context, importID string) (*UndoEntry, error)

	// ListUndoEntries returns an owner's entries, newest first.
	ListUndoEntries(ctx context.Context, ownerID string) ([]*UndoEntry, error)

	// MarkUndone stamps an entry as undone.
	MarkUndone(ctx context.Context, importID string, at time.Time) error

	// Purchase history operations

	// InsertPurchaseEvents stores receipt lines in one transaction.
	InsertPurchaseEvents(ctx context.Context, events []*PurchaseEvent) error

	// ListPurchaseEvents returns an owner's events in insertion order.
	ListPurchaseEvents(ctx context.Context, ownerID string) ([]*PurchaseEvent, error)

	// HasReceipt reports whether the owner already has events for receiptID.
	HasReceipt(ctx context.Context, ownerID, receiptID string) (bool, error)

	// Staple operations

	// UpsertStapleRecord inserts rec, or updates the record already stored
	// for (rec.OwnerID, rec.NormalizedName), in a single statement. It
	// returns the stored record and whether it was newly inserted. When
	// sticky is true, manually overridden records keep their flags.
	UpsertStapleRecord(ctx context.Context, rec *StapleRecord, sticky bool) (*StapleRecord, bool, error)

	// GetStapleRecord returns a record by id regardless of owner.
	GetStapleRecord(ctx context.Context, id string) (*StapleRecord, error)

	// UpdateStapleFlags writes IsStaple, IsOccasional and ManualOverride.
	UpdateStapleFlags(ctx context.Context, rec *StapleRecord) error

	// ListStapleRecords returns an owner's records ordered by purchase count
	// descending, then display name.
	ListStapleRecords(ctx context.Context, ownerID string) ([]*StapleRecord, error)

	// DeleteStapleRecords removes all of an owner's records.
	DeleteStapleRecords(ctx context.Context, ownerID string) (int, error)

	// Operation log

	CreateOperation(ctx context.Context, name, parameters string, startedAt time.Time) (int64, error)
	FinishOperation(ctx context.Context, id int64, status string, finishedAt time.Time) error
	ListOperations(ctx context.Context, limit int) ([]*Operation, error)
	CountOperations(ctx context.Context) ([]OperationCount, error)
	MaxOperationID(ctx context.Context) (int64, error)

	// CheckMigrations verifies the schema is current.
	CheckMigrations() error

	// BackupTo writes a consistent copy of the database to destPath.
	BackupTo(destPath string) error

	// Close closes the database connection.
	Close() error
}
