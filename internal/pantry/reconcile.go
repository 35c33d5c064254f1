package pantry

import "github.com/shopspring/decimal"

// DefaultMinConfidence is the detection confidence at or above which an
// observed item is selected by default.
const DefaultMinConfidence = 0.7

// DuplicatePolicy decides what happens when one observation contains the
// same normalized name more than once.
type DuplicatePolicy string

const (
	// DuplicatesKeep passes duplicates through as distinct rows.
	DuplicatesKeep DuplicatePolicy = "keep"
	// DuplicatesMerge folds duplicates into the first occurrence, summing
	// quantities and keeping the highest confidence.
	DuplicatesMerge DuplicatePolicy = "merge"
)

func (p DuplicatePolicy) Valid() bool {
	return p == DuplicatesKeep || p == DuplicatesMerge
}

// ReconcileOptions tunes Reconcile.
type ReconcileOptions struct {
	MinConfidence float64
	Duplicates    DuplicatePolicy
}

// DefaultReconcileOptions returns the options used when nothing is configured.
func DefaultReconcileOptions() ReconcileOptions {
	return ReconcileOptions{
		MinConfidence: DefaultMinConfidence,
		Duplicates:    DuplicatesKeep,
	}
}

// Reconcile merges an observation with the existing items of the same
// location. It has no side effects.
//
// An observed item refers to an existing item when its MatchedID names one,
// or else when their normalized names are equal; the rest are new. For a
// scan, every existing item that was not matched is appended as a carry-over
// row with quantity 0, marked NotDetected and selected. Every existing item therefore appears exactly
// once in the result. Receipts never produce carry-over rows, and a matched
// receipt line adds its quantity to what is already stored.
func Reconcile(existing []*InventoryItem, obs Observation, opts ReconcileOptions) *ReviewList {
	byKey := make(map[NormalizedKey]*InventoryItem, len(existing))
	byID := make(map[string]*InventoryItem, len(existing))
	for _, item := range existing {
		byID[item.ID] = item
		key := Normalize(item.Name)
		if _, ok := byKey[key]; !ok {
			byKey[key] = item
		}
	}

	observed := obs.Items
	if opts.Duplicates == DuplicatesMerge {
		observed = mergeDuplicates(observed)
	}

	list := &ReviewList{
		Location: obs.Location,
		Source:   obs.Source,
		Items:    make([]ReviewItem, 0, len(observed)+len(existing)),
	}

	matched := make(map[string]bool, len(existing))
	for _, o := range observed {
		row := ReviewItem{
			Name:       o.Name,
			Category:   o.Category,
			Quantity:   o.Quantity,
			Unit:       o.Unit,
			Confidence: o.Confidence,
			Selected:   o.Confidence >= opts.MinConfidence,
		}

		match, ok := byID[o.MatchedID]
		if !ok {
			match, ok = byKey[Normalize(o.Name)]
		}
		if ok {
			matched[match.ID] = true
			row.ID = match.ID
			row.PreviousQuantity = match.Quantity
			if row.Unit == "" {
				row.Unit = match.Unit
			}
			if obs.Source == SourceReceipt {
				row.Quantity = match.Quantity.Add(o.Quantity)
			}
		}

		list.Items = append(list.Items, row)
	}

	if obs.Source == SourceReceipt {
		return list
	}

	for _, item := range existing {
		// A second stored item with an observed name was not matched and is
		// carried over like any other, so it cannot drop out of the list.
		if matched[item.ID] {
			continue
		}
		list.Items = append(list.Items, ReviewItem{
			ID:               item.ID,
			Name:             item.Name,
			Category:         item.StorageCategory,
			Quantity:         decimal.Zero,
			PreviousQuantity: item.Quantity,
			Unit:             item.Unit,
			Confidence:       item.Confidence,
			Selected:         true,
			NotDetected:      true,
		})
	}

	return list
}

// mergeDuplicates folds items sharing a normalized name into the first one.
func mergeDuplicates(items []ObservedItem) []ObservedItem {
	index := make(map[NormalizedKey]int, len(items))
	merged := make([]ObservedItem, 0, len(items))

	for _, o := range items {
		key := Normalize(o.Name)
		i, ok := index[key]
		if !ok {
			index[key] = len(merged)
			merged = append(merged, o)
			continue
		}
		m := &merged[i]
		m.Quantity = m.Quantity.Add(o.Quantity)
		if o.Confidence > m.Confidence {
			m.Confidence = o.Confidence
		}
		if m.Category == "" {
			m.Category = o.Category
		}
	}

	return merged
}
