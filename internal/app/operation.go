package app

import "pantry-go/internal/pantry"

// Operation statuses recorded in the operations table.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusError   = "error"
)

// Operation tracks a CLI command that may mutate the database.
// Operations are created in memory with ID=0. Only mutating commands
// persist them, which gives them an auto-increment ID that doubles as the
// snapshot version.
type Operation struct {
	ID         int64
	Name       string
	Parameters string
	Status     string
}

// NewOperation creates a new in-memory operation.
func NewOperation(name, parameters string) *Operation {
	return &Operation{
		Name:       name,
		Parameters: parameters,
		Status:     StatusSuccess,
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// Observe downgrades the status according to err. A later success never
// upgrades it again.
func (op *Operation) Observe(err error) {
	switch pantry.KindOf(err) {
	case "":
	case pantry.KindPartialFailure:
		if op.Status == StatusSuccess {
			op.Status = StatusPartial
		}
	default:
		op.Status = StatusError
	}
}
