package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"pantry-go/internal/archive"
	"pantry-go/internal/config"
	"pantry-go/internal/database"
	"pantry-go/internal/encryption"
	"pantry-go/internal/export"
	"pantry-go/internal/metrics"
	"pantry-go/internal/pantry"
)

// PantryApp is the application layer between the CLI and PantryService.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw CLI input, and snapshots the database to the archive on
// Close.
type PantryApp struct {
	cfg       *config.Config
	db        *database.SQLiteDatabase
	archive   pantry.Archive
	encryptor pantry.Encryptor
	service   *pantry.PantryService
	metrics   *metrics.Collector
	registry  *prometheus.Registry
	clock     pantry.Clock
	idgen     pantry.IDGenerator
	op        *Operation
	logger    *slogAdapter
	logFile   *os.File
}

// NewPantryApp creates a fully wired PantryApp from the given config.
// operation identifies the CLI command being run (e.g. "Scan", "Undo").
// The caller must call Close when done.
func NewPantryApp(ctx context.Context, cfg *config.Config, operation string) (*PantryApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	arch, err := archive.NewArchiveFromConfig(ctx, cfg.Archive)
	if err != nil {
		return nil, fmt.Errorf("creating archive: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	if arch != nil && enc != nil && !enc.IsConfigured() {
		return nil, fmt.Errorf("encryption keys not found: run 'pantry config keygen' or set encryption.type = \"none\"")
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date (run 'pantry config init' or 'pantry archive restore'): %w", err)
	}

	if arch != nil {
		if err := checkArchiveVersion(ctx, arch, db, cfg.OwnerID); err != nil {
			db.Close()
			return nil, err
		}
	}

	clock := pantry.RealClock{}
	opID := clock.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	adapter := &slogAdapter{l: logger.With("owner", cfg.OwnerID)}

	registry := prometheus.NewRegistry()
	collector := metrics.New(db, cfg.OwnerID)
	collector.Register(registry)

	idgen := pantry.UUIDGenerator{}
	svc := pantry.NewPantryService(db, collector, adapter, clock, idgen, serviceOptions(cfg))

	return &PantryApp{
		cfg:       cfg,
		db:        db,
		archive:   arch,
		encryptor: enc,
		service:   svc,
		metrics:   collector,
		registry:  registry,
		clock:     clock,
		idgen:     idgen,
		op:        NewOperation(operation, ""),
		logger:    adapter,
		logFile:   logFile,
	}, nil
}

// checkArchiveVersion refuses to run on a local database that is older than
// the newest archived snapshot.
func checkArchiveVersion(ctx context.Context, arch pantry.Archive, db *database.SQLiteDatabase, ownerID string) error {
	remoteVersion, err := arch.Version(ctx, ownerID, pantry.ArchiveSnapshot)
	if err != nil {
		return fmt.Errorf("checking archived snapshot version: %w", err)
	}

	localMax, err := db.MaxOperationID(ctx)
	if err != nil {
		return fmt.Errorf("checking local database version: %w", err)
	}

	if remoteVersion > localMax {
		return fmt.Errorf("%w: local database is behind the archive (local=%d, archive=%d): run 'pantry archive restore'",
			pantry.ErrStale, localMax, remoteVersion)
	}
	return nil
}

func serviceOptions(cfg *config.Config) pantry.Options {
	opts := pantry.DefaultOptions()
	if cfg.Reconcile.MinConfidence > 0 {
		opts.Reconcile.MinConfidence = cfg.Reconcile.MinConfidence
	}
	if cfg.Reconcile.Duplicates != "" {
		opts.Reconcile.Duplicates = pantry.DuplicatePolicy(cfg.Reconcile.Duplicates)
	}
	opts.StickyOverrides = cfg.Staples.StickyOverrides
	return opts
}

// InitDatabase creates the local database for cfg and applies the schema.
func InitDatabase(cfg *config.Config) error {
	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.OwnerID)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// persistOperation saves the operation to the database, giving it an
// auto-increment ID. Only mutating commands call it.
func (a *PantryApp) persistOperation(ctx context.Context, parameters string) error {
	if a.op.Persisted() {
		return nil
	}
	a.op.Parameters = parameters
	id, err := a.db.CreateOperation(ctx, a.op.Name, a.op.Parameters, a.clock.Now())
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = id
	return nil
}

// Service exposes the underlying service for read-only callers.
func (a *PantryApp) Service() *pantry.PantryService {
	return a.service
}

// Reconcile reads a scan document and returns the review list without
// writing anything.
func (a *PantryApp) Reconcile(ctx context.Context, r io.Reader, location pantry.Location) (*pantry.ReviewList, error) {
	obs, err := ReadScan(r, location)
	if err != nil {
		return nil, err
	}
	return a.service.Reconcile(ctx, a.cfg.OwnerID, obs)
}

// Scan reconciles a scan document and commits the pre-selected rows as one
// import. An empty importID gets a generated one.
func (a *PantryApp) Scan(ctx context.Context, r io.Reader, location pantry.Location, importID string) (*pantry.ReviewList, *pantry.CommitResult, error) {
	list, err := a.Reconcile(ctx, r, location)
	if err != nil {
		return nil, nil, err
	}

	if importID == "" {
		importID = "scan-" + a.idgen.New()
	}
	if err := a.persistOperation(ctx, importID); err != nil {
		return nil, nil, err
	}

	result, err := a.service.Commit(ctx, a.cfg.OwnerID, list, importID)
	a.op.Observe(err)
	return list, result, err
}

// Receipt commits a receipt into its location under the receipt id, so the
// whole receipt can be undone, and then records its lines as purchases.
// A receipt id already in the purchase history is rejected before anything
// is written. Purchases are recorded even when some rows failed to commit.
func (a *PantryApp) Receipt(ctx context.Context, r io.Reader, location pantry.Location) (*pantry.CommitResult, error) {
	in, purchasedAt, err := ReadReceipt(r, location)
	if err != nil {
		return nil, err
	}

	if err := a.persistOperation(ctx, in.ReceiptID); err != nil {
		return nil, err
	}

	if err := a.service.CheckReceipt(ctx, a.cfg.OwnerID, in.ReceiptID); err != nil {
		a.op.Observe(err)
		return nil, err
	}

	list, err := a.service.Reconcile(ctx, a.cfg.OwnerID, in.Observation())
	if err != nil {
		a.op.Observe(err)
		return nil, err
	}

	result, commitErr := a.service.Commit(ctx, a.cfg.OwnerID, list, in.ReceiptID)
	a.op.Observe(commitErr)
	if commitErr != nil && !errors.Is(commitErr, pantry.ErrPartialFailure) {
		return nil, commitErr
	}

	if _, err := a.service.RecordPurchases(ctx, a.cfg.OwnerID, in.ReceiptID, purchasedAt, in.Items); err != nil {
		a.op.Observe(err)
		return result, err
	}
	return result, commitErr
}

// Undo removes the items inserted by an import.
func (a *PantryApp) Undo(ctx context.Context, importID string) (int, error) {
	if err := a.persistOperation(ctx, importID); err != nil {
		return 0, err
	}
	n, err := a.service.UndoImport(ctx, a.cfg.OwnerID, importID)
	a.op.Observe(err)
	return n, err
}

// ImportStatus is an undo entry with its undo deadline.
type ImportStatus struct {
	Entry     *pantry.UndoEntry
	ExpiresAt time.Time
	CanUndo   bool
}

// ListImports returns the owner's imports, newest first.
func (a *PantryApp) ListImports(ctx context.Context) ([]ImportStatus, error) {
	entries, err := a.service.ListUndoEntries(ctx, a.cfg.OwnerID)
	if err != nil {
		return nil, err
	}
	ledger := a.service.Ledger()
	out := make([]ImportStatus, len(entries))
	for i, e := range entries {
		out[i] = ImportStatus{Entry: e, ExpiresAt: ledger.ExpiresAt(e), CanUndo: ledger.CanUndo(e)}
	}
	return out, nil
}

// ListInventory lists items in location, or everywhere when location is empty.
func (a *PantryApp) ListInventory(ctx context.Context, location string) ([]*pantry.InventoryItem, error) {
	return a.service.ListInventory(ctx, a.cfg.OwnerID, pantry.Location(location))
}

// RemoveItem deletes one item by hand.
func (a *PantryApp) RemoveItem(ctx context.Context, itemID, reason string) (*pantry.InventoryItem, error) {
	r, err := pantry.ParseRemovalReason(reason)
	if err != nil {
		return nil, err
	}
	if err := a.persistOperation(ctx, itemID+" "+reason); err != nil {
		return nil, err
	}
	item, err := a.service.RemoveItem(ctx, a.cfg.OwnerID, itemID, r)
	a.op.Observe(err)
	return item, err
}

// AnalyzeStaples recomputes the staple records from purchase history.
func (a *PantryApp) AnalyzeStaples(ctx context.Context) (*pantry.StapleAnalysis, error) {
	if err := a.persistOperation(ctx, ""); err != nil {
		return nil, err
	}
	analysis, err := a.service.AnalyzeStaples(ctx, a.cfg.OwnerID)
	a.op.Observe(err)
	return analysis, err
}

// ClearStaples deletes every staple record.
func (a *PantryApp) ClearStaples(ctx context.Context) (int, error) {
	if err := a.persistOperation(ctx, ""); err != nil {
		return 0, err
	}
	n, err := a.service.ClearStaples(ctx, a.cfg.OwnerID)
	a.op.Observe(err)
	return n, err
}

// ClassifyStaple applies a manual classification to one staple record.
func (a *PantryApp) ClassifyStaple(ctx context.Context, stapleID string, override pantry.StapleOverride) (*pantry.StapleRecord, error) {
	if err := a.persistOperation(ctx, stapleID); err != nil {
		return nil, err
	}
	rec, err := a.service.ClassifyOverride(ctx, a.cfg.OwnerID, stapleID, override)
	a.op.Observe(err)
	return rec, err
}

// ListStaples returns the owner's staple records, most purchased first.
func (a *PantryApp) ListStaples(ctx context.Context) ([]*pantry.StapleRecord, error) {
	return a.service.ListStaples(ctx, a.cfg.OwnerID)
}

// ExportStaples writes the staple records to an xlsx workbook at path.
func (a *PantryApp) ExportStaples(ctx context.Context, path string) (int, error) {
	recs, err := a.service.ListStaples(ctx, a.cfg.OwnerID)
	if err != nil {
		return 0, err
	}
	if err := export.SaveStaples(path, recs); err != nil {
		return 0, err
	}
	return len(recs), nil
}

// GetHistory returns the most recent mutating operations.
func (a *PantryApp) GetHistory(ctx context.Context, limit int) ([]*pantry.Operation, error) {
	return a.service.GetHistory(ctx, limit)
}

// DumpMetrics writes the current metrics to a Prometheus textfile.
func (a *PantryApp) DumpMetrics(ctx context.Context, path string) error {
	if path == "" {
		path = a.cfg.Metrics.TextfilePath
	}
	if path == "" {
		return fmt.Errorf("%w: no metrics file given and metrics.textfile_path is not set", pantry.ErrValidation)
	}
	return metrics.WriteTextfile(ctx, a.metrics, a.registry, path)
}

// MetricsHandler serves /metrics for this app's registry.
func (a *PantryApp) MetricsHandler() http.Handler {
	return metrics.Router(a.metrics, a.registry)
}

// MetricsAddr is the configured listen address for the metrics server.
func (a *PantryApp) MetricsAddr() string {
	return a.cfg.Metrics.ListenAddr
}

// Close finalizes the operation and closes all resources.
// For persisted operations: finishes the operation record, snapshots the
// database and uploads it to the archive. For non-persisted operations:
// just closes the database.
func (a *PantryApp) Close() error {
	ctx := context.Background()
	var firstErr error

	if a.op.Persisted() {
		if err := a.db.FinishOperation(ctx, a.op.ID, a.op.Status, a.clock.Now()); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}

		var snapshot string
		if a.archive != nil {
			path, err := a.snapshot()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
			} else {
				snapshot = path
			}
		}

		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}

		// Snapshot version = operation ID
		if snapshot != "" {
			if err := a.upload(ctx, snapshot, a.op.ID); err != nil && firstErr == nil {
				firstErr = err
			}
			os.Remove(snapshot)
		}
	} else {
		if err := a.db.Close(); err != nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}

	if firstErr != nil {
		a.logger.Error("close failed", "error", firstErr)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

// snapshot copies the database to a temp file and returns its path.
func (a *PantryApp) snapshot() (string, error) {
	tmpFile, err := os.CreateTemp("", "pantry-db-snapshot-*.db")
	if err != nil {
		return "", fmt.Errorf("creating temp file for snapshot: %w", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()

	if err := a.db.BackupTo(tmpPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("snapshotting database: %w", err)
	}
	return tmpPath, nil
}

// upload encrypts the snapshot at path, when an encryptor is configured,
// and stores it in the archive.
func (a *PantryApp) upload(ctx context.Context, path string, version int64) error {
	if a.encryptor != nil {
		encPath, err := encryptFile(a.encryptor, path)
		if err != nil {
			return err
		}
		defer os.Remove(encPath)
		path = encPath
	}

	if err := putFile(ctx, a.archive, a.cfg.OwnerID, pantry.ArchiveSnapshot, path, version); err != nil {
		return fmt.Errorf("uploading snapshot: %w", err)
	}
	a.logger.Info("snapshot archived", "version", version)
	return nil
}

func encryptFile(enc pantry.Encryptor, path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening snapshot: %w", err)
	}
	defer in.Close()

	out, err := os.CreateTemp("", "pantry-db-snapshot-*.age")
	if err != nil {
		return "", fmt.Errorf("creating temp file for encrypted snapshot: %w", err)
	}

	if err := enc.Encrypt(in, out); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", fmt.Errorf("encrypting snapshot: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("closing encrypted snapshot: %w", err)
	}
	return out.Name(), nil
}

// putFile stores the file at path in the archive under name.
func putFile(ctx context.Context, arch pantry.Archive, ownerID, name, path string, version int64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	return arch.Put(ctx, ownerID, name, f, info.Size(), version)
}
