package pantry

import (
	"context"
	"fmt"
	"time"
)

// Options holds the tunable behaviour of PantryService.
type Options struct {
	Reconcile ReconcileOptions

	// StickyOverrides keeps manually classified staple flags across
	// reanalysis. Counters and frequency are refreshed either way.
	StickyOverrides bool

	// UndoWindow is how long an import can be undone.
	UndoWindow time.Duration
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Reconcile:  DefaultReconcileOptions(),
		UndoWindow: DefaultUndoWindow,
	}
}

// PantryService coordinates reconciliation, the undo ledger and staple
// analysis on top of a Database. Every call runs synchronously and writes
// items one at a time.
type PantryService struct {
	database  Database
	ledger    *UndoLedger
	validator *Validator
	recorder  Recorder
	logger    Logger
	clock     Clock
	idgen     IDGenerator
	opts      Options
}

// NewPantryService creates a new PantryService with the provided dependencies.
// A nil recorder or logger disables that concern.
func NewPantryService(database Database, recorder Recorder, logger Logger, clock Clock, idgen IDGenerator, opts Options) *PantryService {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	if opts.Reconcile.Duplicates == "" {
		opts.Reconcile.Duplicates = DuplicatesKeep
	}
	if opts.UndoWindow <= 0 {
		opts.UndoWindow = DefaultUndoWindow
	}

	return &PantryService{
		database:  database,
		ledger:    NewUndoLedger(database, clock, opts.UndoWindow),
		validator: NewValidator(),
		recorder:  recorder,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
		opts:      opts,
	}
}

// Ledger exposes the undo ledger used by the service.
func (s *PantryService) Ledger() *UndoLedger {
	return s.ledger
}

// Reconcile reads the owner's items in the observed location and merges
// them with the observation. Nothing is written.
func (s *PantryService) Reconcile(ctx context.Context, ownerID string, obs Observation) (*ReviewList, error) {
	if obs.Source == "" {
		obs.Source = SourceScan
	}
	if err := s.validator.Struct(obs); err != nil {
		return nil, fmt.Errorf("reconciling observation: %w", err)
	}

	existing, err := s.database.ListItems(ctx, ownerID, obs.Location)
	if err != nil {
		return nil, fmt.Errorf("listing existing items: %w", err)
	}

	list := Reconcile(existing, obs, s.opts.Reconcile)
	list.OwnerID = ownerID

	s.logger.Debug("observation reconciled",
		"location", obs.Location,
		"source", obs.Source,
		"observed", len(obs.Items),
		"existing", len(existing),
		"rows", len(list.Items),
	)
	return list, nil
}
