package pantry

import (
	"context"
	"fmt"
)

// GetHistory returns the most recent mutating operations, newest first.
func (s *PantryService) GetHistory(ctx context.Context, limit int) ([]*Operation, error) {
	s.logger.Debug("fetching operation history", "limit", limit)

	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrValidation)
	}

	ops, err := s.database.ListOperations(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}
