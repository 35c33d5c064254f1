package pantry

import "fmt"

// Location is the storage area an inventory item lives in.
type Location string

const (
	LocationFridge  Location = "fridge"
	LocationFreezer Location = "freezer"
	LocationPantry  Location = "pantry"
)

// Locations lists every storage area in display order.
var Locations = []Location{LocationFridge, LocationFreezer, LocationPantry}

func (l Location) Valid() bool {
	switch l {
	case LocationFridge, LocationFreezer, LocationPantry:
		return true
	}
	return false
}

// ParseLocation converts user input into a Location.
func ParseLocation(s string) (Location, error) {
	l := Location(s)
	if !l.Valid() {
		return "", fmt.Errorf("%w: unknown location %q", ErrValidation, s)
	}
	return l, nil
}

// StorageCategory is the aisle-style grouping attached to items and purchases.
type StorageCategory string

const (
	CategoryProduce    StorageCategory = "produce"
	CategoryDairy      StorageCategory = "dairy"
	CategoryMeat       StorageCategory = "meat"
	CategorySeafood    StorageCategory = "seafood"
	CategoryBakery     StorageCategory = "bakery"
	CategoryFrozen     StorageCategory = "frozen"
	CategoryBeverages  StorageCategory = "beverages"
	CategoryCondiments StorageCategory = "condiments"
	CategoryGrains     StorageCategory = "grains"
	CategoryCanned     StorageCategory = "canned"
	CategorySnacks     StorageCategory = "snacks"
	CategoryOther      StorageCategory = "other"
)

func (c StorageCategory) Valid() bool {
	switch c {
	case CategoryProduce, CategoryDairy, CategoryMeat, CategorySeafood, CategoryBakery,
		CategoryFrozen, CategoryBeverages, CategoryCondiments, CategoryGrains,
		CategoryCanned, CategorySnacks, CategoryOther:
		return true
	}
	return false
}

// ParseStorageCategory converts user input into a StorageCategory.
// An empty string maps to CategoryOther.
func ParseStorageCategory(s string) (StorageCategory, error) {
	if s == "" {
		return CategoryOther, nil
	}
	c := StorageCategory(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown storage category %q", ErrValidation, s)
	}
	return c, nil
}

// NutritionType is the dominant macro group of an item.
type NutritionType string

const (
	NutritionProtein   NutritionType = "protein"
	NutritionCarbs     NutritionType = "carbohydrate"
	NutritionVegetable NutritionType = "vegetable"
	NutritionFruit     NutritionType = "fruit"
	NutritionDairy     NutritionType = "dairy"
	NutritionFat       NutritionType = "fat"
	NutritionMixed     NutritionType = "mixed"
	NutritionUnknown   NutritionType = "unknown"
)

func (n NutritionType) Valid() bool {
	switch n {
	case NutritionProtein, NutritionCarbs, NutritionVegetable, NutritionFruit,
		NutritionDairy, NutritionFat, NutritionMixed, NutritionUnknown:
		return true
	}
	return false
}

// Freshness is the condition tag shown next to an item.
type Freshness string

const (
	FreshnessFresh   Freshness = "fresh"
	FreshnessGood    Freshness = "good"
	FreshnessUseSoon Freshness = "use_soon"
	FreshnessExpired Freshness = "expired"
)

func (f Freshness) Valid() bool {
	switch f {
	case FreshnessFresh, FreshnessGood, FreshnessUseSoon, FreshnessExpired:
		return true
	}
	return false
}

// RemovalReason records why an item was removed by hand.
type RemovalReason string

const (
	RemovalEaten   RemovalReason = "eaten"
	RemovalSpoiled RemovalReason = "spoiled"
	RemovalMistake RemovalReason = "mistake"
)

func (r RemovalReason) Valid() bool {
	switch r {
	case RemovalEaten, RemovalSpoiled, RemovalMistake:
		return true
	}
	return false
}

// ParseRemovalReason converts user input into a RemovalReason.
func ParseRemovalReason(s string) (RemovalReason, error) {
	r := RemovalReason(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: unknown removal reason %q", ErrValidation, s)
	}
	return r, nil
}

// ObservationSource says where an observation came from.
//
// A scan reports absolute quantities for everything visible in a location,
// so anything not seen is surfaced for removal. A receipt reports what was
// bought, so matched items grow by the purchased amount and nothing is
// carried over.
type ObservationSource string

const (
	SourceScan    ObservationSource = "scan"
	SourceReceipt ObservationSource = "receipt"
)

func (s ObservationSource) Valid() bool {
	switch s {
	case SourceScan, SourceReceipt:
		return true
	}
	return false
}
