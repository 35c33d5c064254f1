package pantry

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// PurchaseSummary aggregates the purchase events of one normalized name.
type PurchaseSummary struct {
	Key              NormalizedKey
	DisplayName      string
	Category         StorageCategory
	PurchaseCount    int
	FirstPurchasedAt time.Time
	LastPurchasedAt  time.Time
	Dates            []time.Time
	AvgFrequencyDays *int
}

// AggregatePurchases groups events by normalized name. Dates are compared
// at day granularity in UTC. The display name of a group is the original
// name of its chronologically first event, ties going to input order, and
// its category is the first one more specific than CategoryOther. The
// result is sorted by key.
func AggregatePurchases(events []*PurchaseEvent) []PurchaseSummary {
	ordered := make([]*PurchaseEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return day(ordered[i].PurchasedAt).Before(day(ordered[j].PurchasedAt))
	})

	groups := make(map[NormalizedKey]*PurchaseSummary)
	var keys []NormalizedKey
	for _, ev := range ordered {
		key := Normalize(ev.Name)
		g, ok := groups[key]
		if !ok {
			g = &PurchaseSummary{Key: key, DisplayName: strings.TrimSpace(ev.Name)}
			groups[key] = g
			keys = append(keys, key)
		}
		if g.Category == "" || g.Category == CategoryOther {
			g.Category = ev.Category
		}
		g.PurchaseCount++
		g.Dates = append(g.Dates, day(ev.PurchasedAt))
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	summaries := make([]PurchaseSummary, 0, len(keys))
	for _, key := range keys {
		g := groups[key]
		g.FirstPurchasedAt = g.Dates[0]
		g.LastPurchasedAt = g.Dates[len(g.Dates)-1]
		g.AvgFrequencyDays = meanGapDays(g.Dates)
		summaries = append(summaries, *g)
	}
	return summaries
}

// meanGapDays returns the mean gap between successive sorted dates, rounded
// to the nearest day, or nil for fewer than two dates.
func meanGapDays(dates []time.Time) *int {
	if len(dates) < 2 {
		return nil
	}
	var total float64
	for i := 1; i < len(dates); i++ {
		total += dates[i].Sub(dates[i-1]).Hours() / 24
	}
	mean := int(math.Round(total / float64(len(dates)-1)))
	return &mean
}

// CheckReceipt fails with ErrValidation when the owner has already recorded
// purchases under receiptID.
func (s *PantryService) CheckReceipt(ctx context.Context, ownerID, receiptID string) error {
	found, err := s.database.HasReceipt(ctx, ownerID, receiptID)
	if err != nil {
		return fmt.Errorf("checking receipt: %w", err)
	}
	if found {
		return fmt.Errorf("%w: receipt %s has already been recorded", ErrValidation, receiptID)
	}
	return nil
}

// RecordPurchases stores the lines of one receipt as purchase events.
// Nothing is stored if any line is invalid or the receipt was already
// recorded.
func (s *PantryService) RecordPurchases(ctx context.Context, ownerID, receiptID string, purchasedAt time.Time, lines []PurchaseLine) ([]*PurchaseEvent, error) {
	if strings.TrimSpace(receiptID) == "" {
		return nil, fmt.Errorf("%w: receipt id is required", ErrValidation)
	}
	if purchasedAt.IsZero() {
		return nil, fmt.Errorf("%w: purchase date is required", ErrValidation)
	}
	for i := range lines {
		if err := s.validator.Struct(lines[i]); err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
	}
	if err := s.CheckReceipt(ctx, ownerID, receiptID); err != nil {
		return nil, err
	}

	events := make([]*PurchaseEvent, len(lines))
	for i, line := range lines {
		category := line.Category
		if category == "" {
			category = CategoryOther
		}
		events[i] = &PurchaseEvent{
			ID:          s.idgen.New(),
			OwnerID:     ownerID,
			ReceiptID:   receiptID,
			Name:        strings.TrimSpace(line.Name),
			Category:    category,
			Quantity:    line.Quantity,
			Unit:        line.Unit,
			PurchasedAt: day(purchasedAt),
		}
	}

	if err := s.database.InsertPurchaseEvents(ctx, events); err != nil {
		return nil, fmt.Errorf("recording purchases: %w", err)
	}

	s.logger.Info("purchases recorded", "receipt_id", receiptID, "lines", len(events))
	return events, nil
}
