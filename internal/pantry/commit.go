package pantry

import (
	"context"
	"fmt"
	"strings"
)

// Commit applies the selected rows of a review list.
//
// A selected row with a positive quantity is inserted when it has no ID and
// updated otherwise. A selected row with quantity zero deletes the item it
// refers to, or is skipped when it refers to nothing. Unselected rows are
// ignored. Rows are applied one at a time; a row that fails is reported in
// the result and does not stop the rest. When importID is non-empty and at
// least one row was inserted, the inserted ids are recorded in the undo
// ledger under importID.
//
// The returned error wraps ErrPartialFailure when some rows failed. The
// result is non-nil in that case and its counts reflect what was applied.
func (s *PantryService) Commit(ctx context.Context, ownerID string, list *ReviewList, importID string) (*CommitResult, error) {
	result, err := s.commit(ctx, ownerID, list, importID)
	s.recorder.CommitRecorded(result, err)
	return result, err
}

func (s *PantryService) commit(ctx context.Context, ownerID string, list *ReviewList, importID string) (*CommitResult, error) {
	if err := s.checkCommit(ctx, ownerID, list, importID); err != nil {
		return nil, err
	}

	result := &CommitResult{}
	for i, row := range list.Items {
		if !row.Selected {
			continue
		}
		if err := s.applyRow(ctx, ownerID, list.Location, importID, row, result); err != nil {
			s.logger.Warn("commit row failed", "index", i, "name", row.Name, "error", err)
			result.Failures = append(result.Failures, ItemFailure{
				Index:  i,
				Name:   row.Name,
				ItemID: row.ID,
				Err:    err,
			})
		}
	}

	if result.Inserted > 0 && importID != "" {
		entry, err := s.ledger.Record(ctx, importID, ownerID, result.InsertedIDs)
		if err != nil {
			return result, fmt.Errorf("recording undo entry: %w", err)
		}
		result.UndoEntry = entry
	}

	s.logger.Info("reconciliation committed",
		"location", list.Location,
		"import_id", importID,
		"inserted", result.Inserted,
		"updated", result.Updated,
		"deleted", result.Deleted,
		"skipped", result.Skipped,
		"failed", len(result.Failures),
	)

	return result, partialFailure("commit", result.Failures)
}

// checkCommit rejects a review list before anything is written.
func (s *PantryService) checkCommit(ctx context.Context, ownerID string, list *ReviewList, importID string) error {
	if list == nil {
		return fmt.Errorf("%w: review list is required", ErrValidation)
	}
	if list.OwnerID != "" && list.OwnerID != ownerID {
		return fmt.Errorf("%w: review list belongs to another owner", ErrUnauthorized)
	}
	if !list.Location.Valid() {
		return fmt.Errorf("%w: unknown location %q", ErrValidation, list.Location)
	}

	for i, row := range list.Items {
		if !row.Selected {
			continue
		}
		if row.Quantity.IsNegative() {
			return fmt.Errorf("%w: row %d (%s) has negative quantity %s", ErrValidation, i, row.Name, row.Quantity)
		}
		if row.ID == "" && row.Quantity.IsPositive() && strings.TrimSpace(row.Name) == "" {
			return fmt.Errorf("%w: row %d has no name", ErrValidation, i)
		}
		if row.Category != "" && !row.Category.Valid() {
			return fmt.Errorf("%w: row %d has unknown category %q", ErrValidation, i, row.Category)
		}
	}

	if importID != "" {
		existing, err := s.database.GetUndoEntry(ctx, importID)
		if err != nil {
			return fmt.Errorf("checking import id: %w", err)
		}
		// Import ids are global; the message must not tell another owner
		// that the id is taken.
		if existing != nil {
			return fmt.Errorf("%w: import id %s cannot be reused", ErrValidation, importID)
		}
	}

	return nil
}

// applyRow performs the single write a selected row calls for and counts it.
func (s *PantryService) applyRow(ctx context.Context, ownerID string, location Location, importID string, row ReviewItem, result *CommitResult) error {
	switch {
	case row.Quantity.IsPositive() && row.ID == "":
		id, err := s.insertRow(ctx, ownerID, location, importID, row)
		if err != nil {
			return err
		}
		result.Inserted++
		result.InsertedIDs = append(result.InsertedIDs, id)

	case row.Quantity.IsPositive():
		if err := s.updateRow(ctx, ownerID, row); err != nil {
			return err
		}
		result.Updated++

	case row.ID != "":
		deleted, err := s.deleteRow(ctx, ownerID, row)
		if err != nil {
			return err
		}
		if deleted {
			result.Deleted++
		} else {
			result.Skipped++
		}

	default:
		result.Skipped++
	}
	return nil
}

func (s *PantryService) insertRow(ctx context.Context, ownerID string, location Location, importID string, row ReviewItem) (string, error) {
	category := row.Category
	if category == "" {
		category = CategoryOther
	}

	now := s.clock.Now()
	item := &InventoryItem{
		ID:              s.idgen.New(),
		OwnerID:         ownerID,
		Location:        location,
		Name:            strings.TrimSpace(row.Name),
		StorageCategory: category,
		NutritionType:   NutritionUnknown,
		Quantity:        row.Quantity,
		Unit:            row.Unit,
		Freshness:       FreshnessFresh,
		Confidence:      row.Confidence,
		ImportID:        importID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.database.InsertItem(ctx, item); err != nil {
		return "", fmt.Errorf("inserting item: %w", err)
	}

	s.logger.Debug("item inserted", "id", item.ID, "name", item.Name)
	return item.ID, nil
}

// updateRow keeps the stored name, which already normalizes to the same key.
func (s *PantryService) updateRow(ctx context.Context, ownerID string, row ReviewItem) error {
	item, err := s.ownedItem(ctx, ownerID, row.ID)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("%w: item %s", ErrNotFound, row.ID)
	}

	item.Quantity = row.Quantity
	if row.Unit != "" {
		item.Unit = row.Unit
	}
	if row.Category != "" {
		item.StorageCategory = row.Category
	}
	if !row.NotDetected {
		item.Confidence = row.Confidence
	}
	item.UpdatedAt = s.clock.Now()

	if err := s.database.UpdateItem(ctx, item); err != nil {
		return fmt.Errorf("updating item: %w", err)
	}

	s.logger.Debug("item updated", "id", item.ID, "quantity", item.Quantity.String())
	return nil
}

// deleteRow reports false when the item was already gone.
func (s *PantryService) deleteRow(ctx context.Context, ownerID string, row ReviewItem) (bool, error) {
	item, err := s.ownedItem(ctx, ownerID, row.ID)
	if err != nil {
		return false, err
	}
	if item == nil {
		s.logger.Debug("item already removed", "id", row.ID)
		return false, nil
	}

	deleted, err := s.database.DeleteItem(ctx, ownerID, item.ID)
	if err != nil {
		return false, fmt.Errorf("deleting item: %w", err)
	}

	s.logger.Debug("item deleted", "id", item.ID, "name", item.Name)
	return deleted, nil
}

// ownedItem loads an item and checks that it belongs to ownerID.
// A missing item is (nil, nil).
func (s *PantryService) ownedItem(ctx context.Context, ownerID, id string) (*InventoryItem, error) {
	item, err := s.database.GetItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading item: %w", err)
	}
	if item == nil {
		return nil, nil
	}
	if item.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: item %s belongs to another owner", ErrUnauthorized, id)
	}
	return item, nil
}
