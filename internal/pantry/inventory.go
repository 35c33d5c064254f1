package pantry

import (
	"context"
	"fmt"
)

// ListInventory returns the owner's items in location, or in every
// location when location is empty.
func (s *PantryService) ListInventory(ctx context.Context, ownerID string, location Location) ([]*InventoryItem, error) {
	if location != "" && !location.Valid() {
		return nil, fmt.Errorf("%w: unknown location %q", ErrValidation, location)
	}
	items, err := s.database.ListItems(ctx, ownerID, location)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return items, nil
}

// RemoveItem deletes one item by hand and logs why it went.
func (s *PantryService) RemoveItem(ctx context.Context, ownerID, itemID string, reason RemovalReason) (*InventoryItem, error) {
	if !reason.Valid() {
		return nil, fmt.Errorf("%w: unknown removal reason %q", ErrValidation, reason)
	}

	item, err := s.ownedItem(ctx, ownerID, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: item %s", ErrNotFound, itemID)
	}

	if err := s.database.RemoveItem(ctx, item, reason, s.clock.Now()); err != nil {
		return nil, fmt.Errorf("removing item: %w", err)
	}

	s.logger.Info("item removed", "id", item.ID, "name", item.Name, "reason", reason)
	return item, nil
}
