package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"pantry-go/internal/archive"
	"pantry-go/internal/config"
	"pantry-go/internal/database"
	"pantry-go/internal/pantry"
)

const (
	owner    = "household-1"
	scanJSON = `{"location": "fridge", "items": [
		{"name": "Milk", "category": "dairy", "quantity": 1, "unit": "l", "confidence": 0.95},
		{"name": "Eggs", "category": "dairy", "quantity": 12, "confidence": 0.9}
	]}`
)

func qty(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// testConfig returns a config rooted in a temp dir with a sqlite database,
// a filesystem archive and the test encryptor. The database is initialized.
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.NewConfig(owner, t.TempDir())
	cfg.Encryption.Type = "test"
	if err := InitDatabase(cfg); err != nil {
		t.Fatalf("InitDatabase() error = %v", err)
	}
	return cfg
}

func openApp(t *testing.T, cfg *config.Config, operation string) *PantryApp {
	t.Helper()
	a, err := NewPantryApp(context.Background(), cfg, operation)
	if err != nil {
		t.Fatalf("NewPantryApp(%s) error = %v", operation, err)
	}
	return a
}

func closeApp(t *testing.T, a *PantryApp) {
	t.Helper()
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func archivedVersion(t *testing.T, cfg *config.Config, name string) int64 {
	t.Helper()
	arch, err := archive.NewFileSystemArchive(cfg.Archive.FSRoot)
	if err != nil {
		t.Fatalf("NewFileSystemArchive() error = %v", err)
	}
	v, err := arch.Version(context.Background(), owner, name)
	if err != nil {
		t.Fatalf("Version(%s) error = %v", name, err)
	}
	return v
}

func TestNewPantryApp_RequiresSchema(t *testing.T) {
	cfg := config.NewConfig(owner, t.TempDir())
	cfg.Encryption.Type = "none"

	_, err := NewPantryApp(context.Background(), cfg, "List")
	if err == nil || !strings.Contains(err.Error(), "schema") {
		t.Errorf("NewPantryApp() error = %v, want schema error", err)
	}
}

func TestNewPantryApp_InvalidConfig(t *testing.T) {
	cfg := config.NewConfig("", t.TempDir())

	_, err := NewPantryApp(context.Background(), cfg, "List")
	if err == nil || !strings.Contains(err.Error(), "owner_id") {
		t.Errorf("NewPantryApp() error = %v, want owner_id problem", err)
	}
}

func TestPantryApp_ScanUndoHistory(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a := openApp(t, cfg, "Scan")
	list, result, err := a.Scan(ctx, strings.NewReader(scanJSON), "", "import-1")
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(list.Items) != 2 || result.Inserted != 2 {
		t.Errorf("rows = %d, inserted = %d, want 2, 2", len(list.Items), result.Inserted)
	}
	closeApp(t, a)

	if v := archivedVersion(t, cfg, pantry.ArchiveSnapshot); v != 1 {
		t.Errorf("snapshot version after scan = %d, want 1", v)
	}

	a = openApp(t, cfg, "Imports")
	imports, err := a.ListImports(ctx)
	if err != nil {
		t.Fatalf("ListImports() error = %v", err)
	}
	if len(imports) != 1 || imports[0].Entry.ImportID != "import-1" || !imports[0].CanUndo {
		t.Errorf("imports = %+v, want one undoable import-1", imports)
	}
	closeApp(t, a)

	a = openApp(t, cfg, "Undo")
	n, err := a.Undo(ctx, "import-1")
	if err != nil {
		t.Fatalf("Undo() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Undo() = %d, want 2", n)
	}
	closeApp(t, a)

	if v := archivedVersion(t, cfg, pantry.ArchiveSnapshot); v != 2 {
		t.Errorf("snapshot version after undo = %d, want 2", v)
	}

	a = openApp(t, cfg, "History")
	items, err := a.ListInventory(ctx, "")
	if err != nil {
		t.Fatalf("ListInventory() error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("len(items) = %d, want 0", len(items))
	}

	ops, err := a.GetHistory(ctx, 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("len(ops) = %d, want 2", len(ops))
	}
	if ops[0].Name != "Undo" || ops[1].Name != "Scan" {
		t.Errorf("ops = %s, %s, want Undo, Scan", ops[0].Name, ops[1].Name)
	}
	if ops[1].Parameters != "import-1" || ops[1].Status != StatusSuccess || ops[1].FinishedAt == nil {
		t.Errorf("scan op = %+v", ops[1])
	}
	closeApp(t, a)

	if v := archivedVersion(t, cfg, pantry.ArchiveSnapshot); v != 2 {
		t.Errorf("read-only command changed snapshot version to %d", v)
	}
}

func TestPantryApp_FailedCommandIsRecorded(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a := openApp(t, cfg, "Undo")
	if _, err := a.Undo(ctx, "missing"); pantry.KindOf(err) != pantry.KindNotFound {
		t.Errorf("Undo(missing) error = %v, want not found", err)
	}
	closeApp(t, a)

	a = openApp(t, cfg, "History")
	defer closeApp(t, a)
	ops, err := a.GetHistory(ctx, 1)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(ops) != 1 || ops[0].Status != StatusError {
		t.Errorf("ops = %+v, want one failed op", ops)
	}
}

func TestPantryApp_ReceiptAndStaples(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	receipts := []string{
		`{"receipt_id": "r-1", "purchased_at": "2024-01-01", "items": [{"name": "Bananas", "category": "produce", "quantity": 6}]}`,
		`{"receipt_id": "r-2", "purchased_at": "2024-01-15", "items": [{"name": "bananas", "category": "produce", "quantity": 6}]}`,
		`{"receipt_id": "r-3", "purchased_at": "2024-01-29", "items": [{"name": "Banana", "quantity": 6}, {"name": "Saffron"}]}`,
	}
	for _, r := range receipts {
		a := openApp(t, cfg, "Receipt")
		if _, err := a.Receipt(ctx, strings.NewReader(r), ""); err != nil {
			t.Fatalf("Receipt() error = %v", err)
		}
		closeApp(t, a)
	}

	a := openApp(t, cfg, "AnalyzeStaples")
	analysis, err := a.AnalyzeStaples(ctx)
	if err != nil {
		t.Fatalf("AnalyzeStaples() error = %v", err)
	}
	if analysis.StaplesIdentified != 1 || analysis.ItemsFound != 2 {
		t.Errorf("staples = %d, items = %d, want 1, 2", analysis.StaplesIdentified, analysis.ItemsFound)
	}

	items, err := a.ListInventory(ctx, "pantry")
	if err != nil {
		t.Fatalf("ListInventory() error = %v", err)
	}
	var bananas *pantry.InventoryItem
	for _, it := range items {
		if it.Name == "Bananas" {
			bananas = it
		}
	}
	if bananas == nil || !bananas.Quantity.Equal(qty("18")) {
		t.Errorf("bananas = %+v, want one item with quantity 18", bananas)
	}

	path := filepath.Join(t.TempDir(), "staples.xlsx")
	n, err := a.ExportStaples(ctx, path)
	if err != nil {
		t.Fatalf("ExportStaples() error = %v", err)
	}
	if n != 2 {
		t.Errorf("ExportStaples() = %d, want 2", n)
	}
	closeApp(t, a)

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Staples")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 || rows[1][0] != "Bananas" {
		t.Errorf("rows = %v, want Bananas first", rows)
	}
}

func TestPantryApp_ReceiptReuseRejected(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	receipt := `{"receipt_id": "r-1", "purchased_at": "2024-01-01", "items": [{"name": "Milk"}]}`

	a := openApp(t, cfg, "Receipt")
	if _, err := a.Receipt(ctx, strings.NewReader(receipt), pantry.LocationFridge); err != nil {
		t.Fatalf("Receipt() error = %v", err)
	}
	closeApp(t, a)

	a = openApp(t, cfg, "Receipt")
	defer closeApp(t, a)
	_, err := a.Receipt(ctx, strings.NewReader(receipt), pantry.LocationFridge)
	if pantry.KindOf(err) != pantry.KindValidation {
		t.Errorf("second Receipt() error = %v, want validation", err)
	}

	events, err := a.db.ListPurchaseEvents(ctx, owner)
	if err != nil {
		t.Fatalf("ListPurchaseEvents() error = %v", err)
	}
	if len(events) != 1 {
		t.Errorf("len(events) = %d, want 1 (rejected receipt records nothing)", len(events))
	}
}

func TestPantryApp_ReceiptReplayOfUpdatesRejected(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a := openApp(t, cfg, "Scan")
	if _, _, err := a.Scan(ctx, strings.NewReader(scanJSON), "", "import-1"); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	closeApp(t, a)

	// Every line matches an item already in the fridge, so the commit
	// inserts nothing and leaves no undo entry behind.
	receipt := `{"receipt_id": "r-1", "purchased_at": "2024-01-01", "location": "fridge", "items": [{"name": "Milk"}]}`

	a = openApp(t, cfg, "Receipt")
	result, err := a.Receipt(ctx, strings.NewReader(receipt), "")
	if err != nil {
		t.Fatalf("Receipt() error = %v", err)
	}
	if result.Inserted != 0 || result.Updated != 1 {
		t.Errorf("Inserted = %d, Updated = %d, want 0, 1", result.Inserted, result.Updated)
	}
	closeApp(t, a)

	for i := 0; i < 2; i++ {
		a = openApp(t, cfg, "Receipt")
		if _, err := a.Receipt(ctx, strings.NewReader(receipt), ""); pantry.KindOf(err) != pantry.KindValidation {
			t.Errorf("replay %d: Receipt() error = %v, want validation", i+1, err)
		}
		closeApp(t, a)
	}

	a = openApp(t, cfg, "AnalyzeStaples")
	defer closeApp(t, a)

	events, err := a.db.ListPurchaseEvents(ctx, owner)
	if err != nil {
		t.Fatalf("ListPurchaseEvents() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if !events[0].Quantity.Equal(qty("1")) {
		t.Errorf("event quantity = %s, want 1 (same as inventory)", events[0].Quantity)
	}

	items, err := a.ListInventory(ctx, "fridge")
	if err != nil {
		t.Fatalf("ListInventory() error = %v", err)
	}
	for _, it := range items {
		if it.Name == "Milk" && !it.Quantity.Equal(qty("2")) {
			t.Errorf("milk quantity = %s, want 2", it.Quantity)
		}
	}

	analysis, err := a.AnalyzeStaples(ctx)
	if err != nil {
		t.Fatalf("AnalyzeStaples() error = %v", err)
	}
	if analysis.StaplesIdentified != 0 {
		t.Errorf("StaplesIdentified = %d, want 0", analysis.StaplesIdentified)
	}
}

func TestPantryApp_RemoveAndClassify(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a := openApp(t, cfg, "Scan")
	_, result, err := a.Scan(ctx, strings.NewReader(scanJSON), "", "")
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if result.UndoEntry == nil || !strings.HasPrefix(result.UndoEntry.ImportID, "scan-") {
		t.Errorf("generated import id = %+v, want scan- prefix", result.UndoEntry)
	}
	closeApp(t, a)

	a = openApp(t, cfg, "Remove")
	if _, err := a.RemoveItem(ctx, result.InsertedIDs[0], "thrown-away"); pantry.KindOf(err) != pantry.KindValidation {
		t.Errorf("RemoveItem(bad reason) error = %v, want validation", err)
	}
	removed, err := a.RemoveItem(ctx, result.InsertedIDs[0], "eaten")
	if err != nil {
		t.Fatalf("RemoveItem() error = %v", err)
	}
	if removed.ID != result.InsertedIDs[0] {
		t.Errorf("removed %s, want %s", removed.ID, result.InsertedIDs[0])
	}

	_, err = a.ClassifyStaple(ctx, "no-such-staple", pantry.StapleOverride{})
	if pantry.KindOf(err) != pantry.KindValidation {
		t.Errorf("ClassifyStaple(empty) error = %v, want validation", err)
	}
	cleared, err := a.ClearStaples(ctx)
	if err != nil || cleared != 0 {
		t.Errorf("ClearStaples() = %d, %v, want 0, nil", cleared, err)
	}
	closeApp(t, a)
}

func TestPantryApp_BehindArchiveAndRestore(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a := openApp(t, cfg, "Scan")
	if _, _, err := a.Scan(ctx, strings.NewReader(scanJSON), "", "import-1"); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	closeApp(t, a)

	// Lose the local database.
	dbPath := database.FilePath(cfg.Database, owner)
	if err := os.Remove(dbPath); err != nil {
		t.Fatalf("removing database: %v", err)
	}
	if err := InitDatabase(cfg); err != nil {
		t.Fatalf("InitDatabase() error = %v", err)
	}

	_, err := NewPantryApp(ctx, cfg, "List")
	if !errors.Is(err, pantry.ErrStale) {
		t.Fatalf("NewPantryApp() error = %v, want ErrStale", err)
	}

	version, err := Restore(ctx, cfg, "")
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if version != 1 {
		t.Errorf("Restore() version = %d, want 1", version)
	}
	if _, err := os.Stat(dbPath + ".bak"); err != nil {
		t.Errorf("previous database not kept: %v", err)
	}

	a = openApp(t, cfg, "List")
	defer closeApp(t, a)
	items, err := a.ListInventory(ctx, "fridge")
	if err != nil {
		t.Fatalf("ListInventory() error = %v", err)
	}
	if len(items) != 2 {
		t.Errorf("len(items) after restore = %d, want 2", len(items))
	}
}

func TestRestore_Rejects(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing archived", func(t *testing.T) {
		cfg := testConfig(t)
		if _, err := Restore(ctx, cfg, ""); !errors.Is(err, pantry.ErrNotFound) {
			t.Errorf("Restore() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("no archive", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Archive.Type = "none"
		if _, err := Restore(ctx, cfg, ""); !errors.Is(err, pantry.ErrValidation) {
			t.Errorf("Restore() error = %v, want ErrValidation", err)
		}
	})

	t.Run("memory database", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Database = config.DatabaseConfig{Type: "memory"}
		if _, err := Restore(ctx, cfg, ""); !errors.Is(err, pantry.ErrValidation) {
			t.Errorf("Restore() error = %v, want ErrValidation", err)
		}
	})
}

func TestPantryApp_AgeEncryptedSnapshots(t *testing.T) {
	ctx := context.Background()
	cfg := config.NewConfig(owner, t.TempDir())
	if err := InitDatabase(cfg); err != nil {
		t.Fatalf("InitDatabase() error = %v", err)
	}

	if _, err := NewPantryApp(ctx, cfg, "Scan"); err == nil || !strings.Contains(err.Error(), "keygen") {
		t.Fatalf("NewPantryApp() without keys error = %v, want keygen hint", err)
	}

	if err := GenerateKeys(ctx, cfg, "correct horse"); err != nil {
		t.Fatalf("GenerateKeys() error = %v", err)
	}
	if v := archivedVersion(t, cfg, pantry.ArchivePrivateKey); v != 1 {
		t.Errorf("private key version = %d, want 1", v)
	}

	a := openApp(t, cfg, "Scan")
	if _, _, err := a.Scan(ctx, strings.NewReader(scanJSON), "", "import-1"); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	closeApp(t, a)

	arch, err := archive.NewFileSystemArchive(cfg.Archive.FSRoot)
	if err != nil {
		t.Fatalf("NewFileSystemArchive() error = %v", err)
	}
	var snap bytes.Buffer
	if err := arch.Get(ctx, owner, pantry.ArchiveSnapshot, &snap); err != nil {
		t.Fatalf("Get(snapshot) error = %v", err)
	}
	if bytes.HasPrefix(snap.Bytes(), []byte("SQLite format 3")) {
		t.Error("archived snapshot is plaintext SQLite")
	}

	// A new machine: no database, no keys.
	for _, p := range []string{database.FilePath(cfg.Database, owner), cfg.Encryption.PublicKeyPath, cfg.Encryption.PrivateKeyPath} {
		if err := os.Remove(p); err != nil {
			t.Fatalf("removing %s: %v", p, err)
		}
	}

	if _, err := Restore(ctx, cfg, "wrong horse"); !errors.Is(err, pantry.ErrUnauthorized) {
		t.Errorf("Restore(wrong passphrase) error = %v, want ErrUnauthorized", err)
	}
	if _, err := Restore(ctx, cfg, "correct horse"); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	a = openApp(t, cfg, "List")
	defer closeApp(t, a)
	items, err := a.ListInventory(ctx, "")
	if err != nil {
		t.Fatalf("ListInventory() error = %v", err)
	}
	if len(items) != 2 {
		t.Errorf("len(items) after restore = %d, want 2", len(items))
	}
}

func TestPantryApp_Metrics(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Archive.Type = "none"

	a := openApp(t, cfg, "Scan")
	defer closeApp(t, a)
	if _, _, err := a.Scan(ctx, strings.NewReader(scanJSON), "", ""); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if err := a.DumpMetrics(ctx, ""); !errors.Is(err, pantry.ErrValidation) {
		t.Errorf("DumpMetrics(no path) error = %v, want ErrValidation", err)
	}

	path := filepath.Join(t.TempDir(), "pantry.prom")
	if err := a.DumpMetrics(ctx, path); err != nil {
		t.Fatalf("DumpMetrics() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), `pantry_items_committed_total{op="insert"} 2`) {
		t.Errorf("textfile missing insert counter:\n%s", data)
	}

	srv := httptest.NewServer(a.MetricsHandler())
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `pantry_inventory_items{location="fridge"} 2`) {
		t.Errorf("/metrics missing fridge gauge:\n%s", body)
	}
	if a.MetricsAddr() != "127.0.0.1:9464" {
		t.Errorf("MetricsAddr() = %q", a.MetricsAddr())
	}
}
