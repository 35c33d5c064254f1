package pantry

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryItem is one tracked item in a household location.
type InventoryItem struct {
	ID              string
	OwnerID         string
	Location        Location
	Name            string
	StorageCategory StorageCategory
	NutritionType   NutritionType
	Quantity        decimal.Decimal
	Unit            string
	ExpiryDate      *time.Time
	Freshness       Freshness
	Confidence      float64
	ImportID        string // empty when the item was not created by an import
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ObservedItem is one item seen in a scan or read off a receipt.
type ObservedItem struct {
	Name       string          `json:"name" validate:"notblank"`
	Category   StorageCategory `json:"category" validate:"omitempty,enum"`
	Quantity   decimal.Decimal `json:"quantity" validate:"gte=0"`
	Unit       string          `json:"unit"`
	Confidence float64         `json:"confidence" validate:"gte=0,lte=1"`
	MatchedID  string          `json:"matched_id,omitempty"`
}

// Observation is the full set of items seen in one location at one time.
type Observation struct {
	Location Location          `validate:"enum"`
	Source   ObservationSource `validate:"enum"`
	Items    []ObservedItem    `validate:"dive"`
}

// ReviewItem is one row of the list shown to the user before committing.
// ID is set when the row refers to an existing inventory item.
type ReviewItem struct {
	ID               string
	Name             string
	Category         StorageCategory
	Quantity         decimal.Decimal
	PreviousQuantity decimal.Decimal
	Unit             string
	Confidence       float64
	Selected         bool
	NotDetected      bool
}

// ReviewList is the merged result of reconciling an observation.
// Observed rows come first, carry-over rows after them.
type ReviewList struct {
	OwnerID  string
	Location Location
	Source   ObservationSource
	Items    []ReviewItem
}

// SelectedCount returns the number of rows that a commit will act on.
func (l *ReviewList) SelectedCount() int {
	n := 0
	for _, it := range l.Items {
		if it.Selected {
			n++
		}
	}
	return n
}

// CommitResult reports what a commit did. Inserted, Updated, Deleted,
// Skipped and len(Failures) add up to the number of selected rows.
type CommitResult struct {
	Inserted    int
	Updated     int
	Deleted     int
	Skipped     int
	InsertedIDs []string
	Failures    []ItemFailure
	UndoEntry   *UndoEntry
}

// UndoEntry remembers the rows inserted by one import.
type UndoEntry struct {
	ImportID    string
	OwnerID     string
	InsertedIDs []string
	CreatedAt   time.Time
	UndoneAt    *time.Time
}

// PurchaseLine is one line of a receipt as supplied by the caller.
type PurchaseLine struct {
	Name     string          `json:"name" validate:"notblank"`
	Category StorageCategory `json:"category" validate:"omitempty,enum"`
	Quantity decimal.Decimal `json:"quantity" validate:"gte=0"`
	Unit     string          `json:"unit"`
}

// PurchaseEvent is a recorded receipt line. Events are never modified.
type PurchaseEvent struct {
	ID          string
	OwnerID     string
	ReceiptID   string
	Name        string
	Category    StorageCategory
	Quantity    decimal.Decimal
	Unit        string
	PurchasedAt time.Time
}

// StapleRecord is the persisted classification of one normalized item name.
type StapleRecord struct {
	ID               string
	OwnerID          string
	NormalizedName   NormalizedKey
	DisplayName      string
	Category         StorageCategory
	PurchaseCount    int
	FirstPurchasedAt time.Time
	LastPurchasedAt  time.Time
	AvgFrequencyDays *int
	IsStaple         bool
	IsOccasional     bool
	ManualOverride   bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// StapleOverride is a user's manual classification. Nil fields are left alone.
type StapleOverride struct {
	IsStaple     *bool
	IsOccasional *bool
}

// Operation is a mutating CLI command recorded in the database.
type Operation struct {
	ID         int64
	Name       string
	Parameters string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// OperationCount is the number of logged operations with one name and status.
type OperationCount struct {
	Name   string
	Status string
	Count  int
}
