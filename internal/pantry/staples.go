package pantry

import (
	"context"
	"fmt"
	"sort"
)

// StapleThreshold is the purchase count at which an item becomes a staple.
const StapleThreshold = 3

// topListSize bounds TopStaples and FrequentOccasional.
const topListSize = 10

// StapleAnalysis is the outcome of a full staple recomputation.
type StapleAnalysis struct {
	ItemsFound         int
	StaplesIdentified  int
	TopStaples         []*StapleRecord
	FrequentOccasional []*StapleRecord
	Inserted           int
	Updated            int
	Skipped            int
	Failures           []ItemFailure
}

// Classify turns a purchase summary into a fresh staple record.
// IsOccasional is never derived; only a user sets it.
func Classify(ownerID string, summary PurchaseSummary) *StapleRecord {
	category := summary.Category
	if category == "" {
		category = CategoryOther
	}
	return &StapleRecord{
		OwnerID:          ownerID,
		NormalizedName:   summary.Key,
		DisplayName:      summary.DisplayName,
		Category:         category,
		PurchaseCount:    summary.PurchaseCount,
		FirstPurchasedAt: summary.FirstPurchasedAt,
		LastPurchasedAt:  summary.LastPurchasedAt,
		AvgFrequencyDays: summary.AvgFrequencyDays,
		IsStaple:         summary.PurchaseCount >= StapleThreshold,
	}
}

// AnalyzeStaples recomputes every staple record of the owner from the full
// purchase history. Each record is upserted on its own; one failing record
// is reported and does not stop the others.
func (s *PantryService) AnalyzeStaples(ctx context.Context, ownerID string) (*StapleAnalysis, error) {
	analysis, err := s.analyzeStaples(ctx, ownerID)
	s.recorder.StaplesAnalyzed(analysis, err)
	return analysis, err
}

func (s *PantryService) analyzeStaples(ctx context.Context, ownerID string) (*StapleAnalysis, error) {
	events, err := s.database.ListPurchaseEvents(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing purchase events: %w", err)
	}

	summaries := AggregatePurchases(events)
	analysis := &StapleAnalysis{ItemsFound: len(summaries)}

	var stored []*StapleRecord
	for i, summary := range summaries {
		if summary.Key == "" {
			analysis.Skipped++
			continue
		}

		rec := Classify(ownerID, summary)
		rec.ID = s.idgen.New()
		now := s.clock.Now()
		rec.CreatedAt, rec.UpdatedAt = now, now

		saved, inserted, err := s.database.UpsertStapleRecord(ctx, rec, s.opts.StickyOverrides)
		if err != nil {
			s.logger.Warn("staple upsert failed", "name", summary.DisplayName, "error", err)
			analysis.Failures = append(analysis.Failures, ItemFailure{
				Index: i,
				Name:  summary.DisplayName,
				Err:   fmt.Errorf("saving staple record: %w", err),
			})
			continue
		}

		if inserted {
			analysis.Inserted++
		} else {
			analysis.Updated++
		}
		stored = append(stored, saved)
	}

	for _, rec := range stored {
		if rec.IsStaple {
			analysis.StaplesIdentified++
			analysis.TopStaples = append(analysis.TopStaples, rec)
		} else if rec.PurchaseCount >= 2 {
			analysis.FrequentOccasional = append(analysis.FrequentOccasional, rec)
		}
	}
	analysis.TopStaples = topByCount(analysis.TopStaples)
	analysis.FrequentOccasional = topByCount(analysis.FrequentOccasional)

	s.logger.Info("staples analyzed",
		"items_found", analysis.ItemsFound,
		"staples", analysis.StaplesIdentified,
		"inserted", analysis.Inserted,
		"updated", analysis.Updated,
		"skipped", analysis.Skipped,
		"failed", len(analysis.Failures),
	)

	return analysis, partialFailure("analyze staples", analysis.Failures)
}

// topByCount orders records by purchase count, most frequent first, and
// keeps at most topListSize of them.
func topByCount(recs []*StapleRecord) []*StapleRecord {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].PurchaseCount != recs[j].PurchaseCount {
			return recs[i].PurchaseCount > recs[j].PurchaseCount
		}
		return recs[i].DisplayName < recs[j].DisplayName
	})
	if len(recs) > topListSize {
		recs = recs[:topListSize]
	}
	return recs
}

// ClearStaples deletes every staple record of the owner, manual overrides
// included, and returns how many were removed.
func (s *PantryService) ClearStaples(ctx context.Context, ownerID string) (int, error) {
	deleted, err := s.database.DeleteStapleRecords(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("clearing staple records: %w", err)
	}
	s.logger.Info("staples cleared", "deleted", deleted)
	return deleted, nil
}

// ClassifyOverride applies a manual classification to one staple record.
// Staple and occasional exclude each other: setting one clears the other.
// A record that does not exist or belongs to someone else is ErrNotFound.
func (s *PantryService) ClassifyOverride(ctx context.Context, ownerID, stapleID string, override StapleOverride) (*StapleRecord, error) {
	if override.IsStaple == nil && override.IsOccasional == nil {
		return nil, fmt.Errorf("%w: override sets nothing", ErrValidation)
	}
	if override.IsStaple != nil && override.IsOccasional != nil && *override.IsStaple && *override.IsOccasional {
		return nil, fmt.Errorf("%w: an item cannot be both staple and occasional", ErrValidation)
	}

	rec, err := s.database.GetStapleRecord(ctx, stapleID)
	if err != nil {
		return nil, fmt.Errorf("loading staple record: %w", err)
	}
	if rec == nil || rec.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: staple record %s", ErrNotFound, stapleID)
	}

	if override.IsStaple != nil {
		rec.IsStaple = *override.IsStaple
		if rec.IsStaple {
			rec.IsOccasional = false
		}
	}
	if override.IsOccasional != nil {
		rec.IsOccasional = *override.IsOccasional
		if rec.IsOccasional {
			rec.IsStaple = false
		}
	}
	rec.ManualOverride = true
	rec.UpdatedAt = s.clock.Now()

	if err := s.database.UpdateStapleFlags(ctx, rec); err != nil {
		return nil, fmt.Errorf("saving staple override: %w", err)
	}

	s.logger.Info("staple classified manually",
		"id", rec.ID,
		"name", rec.DisplayName,
		"is_staple", rec.IsStaple,
		"is_occasional", rec.IsOccasional,
	)
	return rec, nil
}

// ListStaples returns the owner's staple records, most purchased first.
func (s *PantryService) ListStaples(ctx context.Context, ownerID string) ([]*StapleRecord, error) {
	recs, err := s.database.ListStapleRecords(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing staple records: %w", err)
	}
	return recs, nil
}
