// Package metrics exposes pantry activity and inventory levels as
// Prometheus metrics.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"pantry-go/internal/pantry"
)

const namespace = "pantry"

// Collector counts service outcomes and reports inventory gauges for one
// owner. It implements pantry.Recorder.
//
// The counters live as long as the process, so they only accumulate under
// `pantry metrics serve`. The gauges, including the per-command operation
// totals, are read from the store by Refresh and survive across runs.
type Collector struct {
	db      pantry.Database
	ownerID string

	commits        *prometheus.CounterVec
	itemsCommitted *prometheus.CounterVec
	undos          *prometheus.CounterVec
	analyses       prometheus.Counter

	inventoryItems *prometheus.GaugeVec
	staples        prometheus.Gauge
	operations     *prometheus.GaugeVec
}

var _ pantry.Recorder = (*Collector)(nil)

func New(db pantry.Database, ownerID string) *Collector {
	c := &Collector{db: db, ownerID: ownerID}

	c.commits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_commits_total",
		Help:      "Review list commits by result (ok, partial, error)",
	}, []string{"result"})

	c.itemsCommitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "items_committed_total",
		Help:      "Inventory rows written by commits, by operation",
	}, []string{"op"})

	c.undos = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "undo_total",
		Help:      "Import undo attempts by result (error results use the error kind)",
	}, []string{"result"})

	c.analyses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "staple_analyses_total",
		Help:      "Staple analyses run",
	})

	c.inventoryItems = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "inventory_items",
		Help:      "Items currently tracked per location",
	}, []string{"location"})

	c.staples = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "staples",
		Help:      "Staple records currently classified as staples",
	})

	c.operations = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "operations",
		Help:      "Logged commands by name and status",
	}, []string{"name", "status"})

	return c
}

func (c *Collector) Register(reg prometheus.Registerer) {
	reg.MustRegister(
		c.commits,
		c.itemsCommitted,
		c.undos,
		c.analyses,
		c.inventoryItems,
		c.staples,
		c.operations,
	)
}

// Refresh recomputes the gauges from the store. Call it before each scrape
// or dump.
func (c *Collector) Refresh(ctx context.Context) error {
	counts, err := c.db.CountItemsByLocation(ctx, c.ownerID)
	if err != nil {
		return fmt.Errorf("counting items: %w", err)
	}
	c.inventoryItems.Reset()
	for _, loc := range pantry.Locations {
		c.inventoryItems.WithLabelValues(string(loc)).Set(float64(counts[loc]))
	}

	recs, err := c.db.ListStapleRecords(ctx, c.ownerID)
	if err != nil {
		return fmt.Errorf("listing staple records: %w", err)
	}
	n := 0
	for _, r := range recs {
		if r.IsStaple {
			n++
		}
	}
	c.staples.Set(float64(n))

	ops, err := c.db.CountOperations(ctx)
	if err != nil {
		return fmt.Errorf("counting operations: %w", err)
	}
	c.operations.Reset()
	for _, op := range ops {
		c.operations.WithLabelValues(op.Name, op.Status).Set(float64(op.Count))
	}

	return nil
}

func (c *Collector) CommitRecorded(result *pantry.CommitResult, err error) {
	c.commits.WithLabelValues(outcome(err)).Inc()
	if result == nil {
		return
	}
	c.itemsCommitted.WithLabelValues("insert").Add(float64(result.Inserted))
	c.itemsCommitted.WithLabelValues("update").Add(float64(result.Updated))
	c.itemsCommitted.WithLabelValues("delete").Add(float64(result.Deleted))
}

func (c *Collector) UndoRecorded(deleted int, err error) {
	if err != nil {
		c.undos.WithLabelValues(string(pantry.KindOf(err))).Inc()
		return
	}
	c.undos.WithLabelValues("ok").Inc()
}

func (c *Collector) StaplesAnalyzed(analysis *pantry.StapleAnalysis, err error) {
	if analysis == nil {
		return
	}
	c.analyses.Inc()
}

func outcome(err error) string {
	switch pantry.KindOf(err) {
	case "":
		return "ok"
	case pantry.KindPartialFailure:
		return "partial"
	default:
		return "error"
	}
}
