package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"pantry-go/internal/database/migrations"
	"pantry-go/internal/pantry"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements the pantry.Database interface using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
// The schema is not touched; call Migrate or CheckMigrations.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteDatabase{db: db, path: path}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// This is exported for use in tools and tests that need a properly configured SQLite connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer, and every connection to :memory: is its own
	// database, so the pool holds a single connection.
	db.SetMaxOpenConns(1)

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// DB returns the underlying connection.
func (s *SQLiteDatabase) DB() *sql.DB {
	return s.db
}

// Inventory operations

const itemColumns = `id, owner_id, location, name, storage_category, nutrition_type, quantity, unit,
	expiry_date, freshness, confidence, import_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*pantry.InventoryItem, error) {
	var (
		item     pantry.InventoryItem
		expiry   sql.NullTime
		importID sql.NullString
	)
	err := row.Scan(&item.ID, &item.OwnerID, &item.Location, &item.Name, &item.StorageCategory,
		&item.NutritionType, &item.Quantity, &item.Unit, &expiry, &item.Freshness, &item.Confidence,
		&importID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if expiry.Valid {
		t := expiry.Time
		item.ExpiryDate = &t
	}
	item.ImportID = importID.String
	return &item, nil
}

func (s *SQLiteDatabase) ListItems(ctx context.Context, ownerID string, location pantry.Location) ([]*pantry.InventoryItem, error) {
	query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE owner_id = ?`
	args := []any{ownerID}
	if location != "" {
		query += ` AND location = ?`
		args = append(args, location)
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []*pantry.InventoryItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return items, nil
}

func (s *SQLiteDatabase) GetItem(ctx context.Context, id string) (*pantry.InventoryItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

func (s *SQLiteDatabase) InsertItem(ctx context.Context, item *pantry.InventoryItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory_items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.OwnerID, item.Location, item.Name, item.StorageCategory, item.NutritionType,
		item.Quantity, item.Unit, nullTime(item.ExpiryDate), item.Freshness, item.Confidence,
		nullString(item.ImportID), item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting item: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) UpdateItem(ctx context.Context, item *pantry.InventoryItem) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE inventory_items
		SET location = ?, name = ?, storage_category = ?, nutrition_type = ?, quantity = ?, unit = ?,
			expiry_date = ?, freshness = ?, confidence = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		item.Location, item.Name, item.StorageCategory, item.NutritionType, item.Quantity, item.Unit,
		nullTime(item.ExpiryDate), item.Freshness, item.Confidence, item.UpdatedAt,
		item.ID, item.OwnerID)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("updating item %s: %w", item.ID, pantry.ErrNotFound)
	}
	return nil
}

func (s *SQLiteDatabase) DeleteItem(ctx context.Context, ownerID, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("deleting item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting item: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteDatabase) DeleteItems(ctx context.Context, ownerID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, ownerID)
	for _, id := range ids {
		args = append(args, id)
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM inventory_items WHERE owner_id = ? AND id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting items: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteDatabase) RemoveItem(ctx context.Context, item *pantry.InventoryItem, reason pantry.RemovalReason, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = ? AND owner_id = ?`, item.ID, item.OwnerID)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("deleting item: %w", err)
	} else if n == 0 {
		return fmt.Errorf("removing item %s: %w", item.ID, pantry.ErrNotFound)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO inventory_removals (item_id, owner_id, name, location, quantity, unit, reason, removed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.OwnerID, item.Name, item.Location, item.Quantity, item.Unit, reason, at)
	if err != nil {
		return fmt.Errorf("logging removal: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) CountItemsByLocation(ctx context.Context, ownerID string) (map[pantry.Location]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT location, COUNT(*) FROM inventory_items WHERE owner_id = ? GROUP BY location`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("counting items: %w", err)
	}
	defer rows.Close()

	counts := make(map[pantry.Location]int, len(pantry.Locations))
	for _, loc := range pantry.Locations {
		counts[loc] = 0
	}
	for rows.Next() {
		var (
			loc pantry.Location
			n   int
		)
		if err := rows.Scan(&loc, &n); err != nil {
			return nil, fmt.Errorf("scanning item count: %w", err)
		}
		counts[loc] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("counting items: %w", err)
	}
	return counts, nil
}

// Undo ledger operations

func (s *SQLiteDatabase) CreateUndoEntry(ctx context.Context, entry *pantry.UndoEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO undo_entries (import_id, owner_id, created_at, undone_at) VALUES (?, ?, ?, ?)`,
		entry.ImportID, entry.OwnerID, entry.CreatedAt, nullTime(entry.UndoneAt))
	if err != nil {
		return fmt.Errorf("inserting undo entry: %w", err)
	}

	for i, id := range entry.InsertedIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO undo_entry_items (import_id, position, item_id) VALUES (?, ?, ?)`,
			entry.ImportID, i, id)
		if err != nil {
			return fmt.Errorf("inserting undo entry item %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) GetUndoEntry(ctx context.Context, importID string) (*pantry.UndoEntry, error) {
	var (
		entry    pantry.UndoEntry
		undoneAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT import_id, owner_id, created_at, undone_at FROM undo_entries WHERE import_id = ?`, importID).
		Scan(&entry.ImportID, &entry.OwnerID, &entry.CreatedAt, &undoneAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("getting undo entry: %w", err)
	}
	if undoneAt.Valid {
		t := undoneAt.Time
		entry.UndoneAt = &t
	}

	ids, err := s.undoEntryItems(ctx, importID)
	if err != nil {
		return nil, err
	}
	entry.InsertedIDs = ids
	return &entry, nil
}

func (s *SQLiteDatabase) undoEntryItems(ctx context.Context, importID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id FROM undo_entry_items WHERE import_id = ? ORDER BY position`, importID)
	if err != nil {
		return nil, fmt.Errorf("listing undo entry items: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning undo entry item: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing undo entry items: %w", err)
	}
	return ids, nil
}

func (s *SQLiteDatabase) ListUndoEntries(ctx context.Context, ownerID string) ([]*pantry.UndoEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT import_id, owner_id, created_at, undone_at
		FROM undo_entries WHERE owner_id = ?
		ORDER BY created_at DESC, rowid DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing undo entries: %w", err)
	}

	var entries []*pantry.UndoEntry
	for rows.Next() {
		var (
			entry    pantry.UndoEntry
			undoneAt sql.NullTime
		)
		if err := rows.Scan(&entry.ImportID, &entry.OwnerID, &entry.CreatedAt, &undoneAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning undo entry: %w", err)
		}
		if undoneAt.Valid {
			t := undoneAt.Time
			entry.UndoneAt = &t
		}
		entries = append(entries, &entry)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("listing undo entries: %w", err)
	}

	// Item ids are loaded after the cursor is closed; the pool has one connection.
	for _, entry := range entries {
		ids, err := s.undoEntryItems(ctx, entry.ImportID)
		if err != nil {
			return nil, err
		}
		entry.InsertedIDs = ids
	}
	return entries, nil
}

func (s *SQLiteDatabase) MarkUndone(ctx context.Context, importID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE undo_entries SET undone_at = ? WHERE import_id = ?`, at, importID)
	if err != nil {
		return fmt.Errorf("marking undo entry undone: %w", err)
	}
	return nil
}

// Purchase history operations

func (s *SQLiteDatabase) InsertPurchaseEvents(ctx context.Context, events []*pantry.PurchaseEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, ev := range events {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO purchase_events (id, owner_id, receipt_id, name, category, quantity, unit, purchased_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.ID, ev.OwnerID, ev.ReceiptID, ev.Name, ev.Category, ev.Quantity, ev.Unit, ev.PurchasedAt)
		if err != nil {
			return fmt.Errorf("inserting purchase event %q: %w", ev.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ListPurchaseEvents(ctx context.Context, ownerID string) ([]*pantry.PurchaseEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, receipt_id, name, category, quantity, unit, purchased_at
		FROM purchase_events WHERE owner_id = ?
		ORDER BY rowid`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing purchase events: %w", err)
	}
	defer rows.Close()

	var events []*pantry.PurchaseEvent
	for rows.Next() {
		var ev pantry.PurchaseEvent
		err := rows.Scan(&ev.ID, &ev.OwnerID, &ev.ReceiptID, &ev.Name, &ev.Category,
			&ev.Quantity, &ev.Unit, &ev.PurchasedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning purchase event: %w", err)
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing purchase events: %w", err)
	}
	return events, nil
}

func (s *SQLiteDatabase) HasReceipt(ctx context.Context, ownerID, receiptID string) (bool, error) {
	var found bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM purchase_events WHERE owner_id = ? AND receipt_id = ?)`,
		ownerID, receiptID).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("looking up receipt %s: %w", receiptID, err)
	}
	return found, nil
}

// Staple operations

const stapleColumns = `id, owner_id, normalized_name, display_name, category, purchase_count,
	first_purchased_at, last_purchased_at, avg_frequency_days, is_staple, is_occasional,
	manual_override, created_at, updated_at`

func scanStaple(row rowScanner) (*pantry.StapleRecord, error) {
	var (
		rec  pantry.StapleRecord
		freq sql.NullInt64
	)
	err := row.Scan(&rec.ID, &rec.OwnerID, &rec.NormalizedName, &rec.DisplayName, &rec.Category,
		&rec.PurchaseCount, &rec.FirstPurchasedAt, &rec.LastPurchasedAt, &freq, &rec.IsStaple,
		&rec.IsOccasional, &rec.ManualOverride, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if freq.Valid {
		days := int(freq.Int64)
		rec.AvgFrequencyDays = &days
	}
	return &rec, nil
}

// upsertStaple is a single statement so that concurrent analyses of the same
// owner cannot both insert a record for one name. The display name of an
// existing record is never replaced. Parameters 11 and 12 are the sticky
// flag.
const upsertStaple = `
	INSERT INTO staple_records (id, owner_id, normalized_name, display_name, category, purchase_count,
		first_purchased_at, last_purchased_at, avg_frequency_days, is_staple, is_occasional,
		manual_override, created_at, updated_at)
	VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?9, ?10, 0, 0, ?13, ?13)
	ON CONFLICT (owner_id, normalized_name) DO UPDATE SET
		category = CASE WHEN staple_records.category = 'other' THEN excluded.category ELSE staple_records.category END,
		purchase_count = excluded.purchase_count,
		first_purchased_at = excluded.first_purchased_at,
		last_purchased_at = excluded.last_purchased_at,
		avg_frequency_days = excluded.avg_frequency_days,
		is_staple = CASE WHEN ?11 AND staple_records.manual_override
			THEN staple_records.is_staple ELSE excluded.is_staple END,
		is_occasional = CASE WHEN ?11 AND staple_records.manual_override
			THEN staple_records.is_occasional
			WHEN excluded.is_staple THEN 0
			ELSE staple_records.is_occasional END,
		manual_override = CASE WHEN ?12 THEN staple_records.manual_override ELSE 0 END,
		updated_at = excluded.updated_at
	RETURNING id`

func (s *SQLiteDatabase) UpsertStapleRecord(ctx context.Context, rec *pantry.StapleRecord, sticky bool) (*pantry.StapleRecord, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx, upsertStaple,
		rec.ID, rec.OwnerID, rec.NormalizedName, rec.DisplayName, rec.Category, rec.PurchaseCount,
		rec.FirstPurchasedAt, rec.LastPurchasedAt, nullInt(rec.AvgFrequencyDays), rec.IsStaple,
		sticky, sticky, rec.UpdatedAt).Scan(&id)
	if err != nil {
		return nil, false, fmt.Errorf("upserting staple record: %w", err)
	}

	saved, err := scanStaple(tx.QueryRowContext(ctx, `SELECT `+stapleColumns+` FROM staple_records WHERE id = ?`, id))
	if err != nil {
		return nil, false, fmt.Errorf("reading staple record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("committing transaction: %w", err)
	}
	return saved, id == rec.ID, nil
}

func (s *SQLiteDatabase) GetStapleRecord(ctx context.Context, id string) (*pantry.StapleRecord, error) {
	rec, err := scanStaple(s.db.QueryRowContext(ctx, `SELECT `+stapleColumns+` FROM staple_records WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("getting staple record: %w", err)
	}
	return rec, nil
}

func (s *SQLiteDatabase) UpdateStapleFlags(ctx context.Context, rec *pantry.StapleRecord) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE staple_records
		SET is_staple = ?, is_occasional = ?, manual_override = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		rec.IsStaple, rec.IsOccasional, rec.ManualOverride, rec.UpdatedAt, rec.ID, rec.OwnerID)
	if err != nil {
		return fmt.Errorf("updating staple flags: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating staple flags: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("updating staple record %s: %w", rec.ID, pantry.ErrNotFound)
	}
	return nil
}

func (s *SQLiteDatabase) ListStapleRecords(ctx context.Context, ownerID string) ([]*pantry.StapleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+stapleColumns+` FROM staple_records WHERE owner_id = ?
		ORDER BY purchase_count DESC, display_name`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing staple records: %w", err)
	}
	defer rows.Close()

	var recs []*pantry.StapleRecord
	for rows.Next() {
		rec, err := scanStaple(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning staple record: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing staple records: %w", err)
	}
	return recs, nil
}

func (s *SQLiteDatabase) DeleteStapleRecords(ctx context.Context, ownerID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM staple_records WHERE owner_id = ?`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("deleting staple records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting staple records: %w", err)
	}
	return int(n), nil
}

// Operation log

func (s *SQLiteDatabase) CreateOperation(ctx context.Context, name, parameters string, startedAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO operations (name, parameters, status, started_at) VALUES (?, ?, 'running', ?)`,
		name, parameters, startedAt)
	if err != nil {
		return 0, fmt.Errorf("creating operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("creating operation: %w", err)
	}
	return id, nil
}

func (s *SQLiteDatabase) FinishOperation(ctx context.Context, id int64, status string, finishedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE operations SET status = ?, finished_at = ? WHERE id = ?`, status, finishedAt, id)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ListOperations(ctx context.Context, limit int) ([]*pantry.Operation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, parameters, status, started_at, finished_at
		FROM operations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*pantry.Operation
	for rows.Next() {
		var (
			op       pantry.Operation
			finished sql.NullTime
		)
		if err := rows.Scan(&op.ID, &op.Name, &op.Parameters, &op.Status, &op.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			op.FinishedAt = &t
		}
		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

func (s *SQLiteDatabase) CountOperations(ctx context.Context) ([]pantry.OperationCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, status, COUNT(*) FROM operations
		GROUP BY name, status ORDER BY name, status`)
	if err != nil {
		return nil, fmt.Errorf("counting operations: %w", err)
	}
	defer rows.Close()

	var counts []pantry.OperationCount
	for rows.Next() {
		var c pantry.OperationCount
		if err := rows.Scan(&c.Name, &c.Status, &c.Count); err != nil {
			return nil, fmt.Errorf("scanning operation count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("counting operations: %w", err)
	}
	return counts, nil
}

func (s *SQLiteDatabase) MaxOperationID(ctx context.Context) (int64, error) {
	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM operations`).Scan(&id); err != nil {
		return 0, fmt.Errorf("getting max operation ID: %w", err)
	}
	return id, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// Migrate applies pending schema migrations.
func (s *SQLiteDatabase) Migrate() error {
	if err := migrations.MigrateUp(s.db); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
// destPath must not exist yet.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// Compile-time check that SQLiteDatabase implements pantry.Database interface
var _ pantry.Database = (*SQLiteDatabase)(nil)
