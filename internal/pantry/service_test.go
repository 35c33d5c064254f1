package pantry_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pantry-go/internal/pantry"
	"pantry-go/internal/testutil"
)

const owner = "household-1"

type harness struct {
	svc   *pantry.PantryService
	db    pantry.Database
	clock *testutil.StubClock
	ids   *testutil.StubIDGenerator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithOptions(t, pantry.DefaultOptions())
}

func newHarnessWithOptions(t *testing.T, opts pantry.Options) *harness {
	t.Helper()

	db := testutil.NewTestDatabase(t)
	clock := testutil.FixedClock()
	ids := testutil.NewStubIDGenerator()
	svc := pantry.NewPantryService(db, nil, nil, clock, ids, opts)

	return &harness{svc: svc, db: db, clock: clock, ids: ids}
}

func qty(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// seedItem stores an item directly, bypassing the service.
func (h *harness) seedItem(t *testing.T, id string, location pantry.Location, name, quantity, unit string) *pantry.InventoryItem {
	t.Helper()

	now := h.clock.Now()
	item := &pantry.InventoryItem{
		ID:              id,
		OwnerID:         owner,
		Location:        location,
		Name:            name,
		StorageCategory: pantry.CategoryOther,
		NutritionType:   pantry.NutritionUnknown,
		Quantity:        qty(quantity),
		Unit:            unit,
		Freshness:       pantry.FreshnessFresh,
		Confidence:      0.9,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := h.db.InsertItem(context.Background(), item); err != nil {
		t.Fatalf("InsertItem(%s) error = %v", id, err)
	}
	// Successive seeds get distinct creation times so list order is stable.
	h.clock.Advance(time.Second)
	return item
}

func (h *harness) items(t *testing.T, location pantry.Location) []*pantry.InventoryItem {
	t.Helper()
	items, err := h.svc.ListInventory(context.Background(), owner, location)
	if err != nil {
		t.Fatalf("ListInventory() error = %v", err)
	}
	return items
}

func itemByName(items []*pantry.InventoryItem, name string) *pantry.InventoryItem {
	for _, it := range items {
		if it.Name == name {
			return it
		}
	}
	return nil
}

func TestPantryService_Reconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("reads only the observed location", func(t *testing.T) {
		h := newHarness(t)
		h.seedItem(t, "milk", pantry.LocationFridge, "Milk", "1", "l")
		h.seedItem(t, "peas", pantry.LocationFreezer, "Peas", "2", "bag")

		list, err := h.svc.Reconcile(ctx, owner, pantry.Observation{
			Location: pantry.LocationFridge,
			Items:    []pantry.ObservedItem{{Name: "Eggs", Quantity: qty("12"), Confidence: 0.9}},
		})
		if err != nil {
			t.Fatalf("Reconcile() error = %v", err)
		}
		if list.OwnerID != owner {
			t.Errorf("OwnerID = %q, want %q", list.OwnerID, owner)
		}
		if list.Source != pantry.SourceScan {
			t.Errorf("Source = %q, want default %q", list.Source, pantry.SourceScan)
		}
		if len(list.Items) != 2 {
			t.Fatalf("len(Items) = %d, want 2 (eggs + milk carry-over)", len(list.Items))
		}
		for _, row := range list.Items {
			if row.ID == "peas" {
				t.Error("freezer item appeared in fridge review list")
			}
		}
	})

	t.Run("rejects invalid observations", func(t *testing.T) {
		tests := []struct {
			name string
			obs  pantry.Observation
		}{
			{
				name: "unknown location",
				obs:  pantry.Observation{Location: "garage"},
			},
			{
				name: "blank name",
				obs: pantry.Observation{Location: pantry.LocationFridge, Items: []pantry.ObservedItem{
					{Name: "  ", Quantity: qty("1"), Confidence: 0.9},
				}},
			},
			{
				name: "negative quantity",
				obs: pantry.Observation{Location: pantry.LocationFridge, Items: []pantry.ObservedItem{
					{Name: "Eggs", Quantity: qty("-1"), Confidence: 0.9},
				}},
			},
			{
				name: "confidence above one",
				obs: pantry.Observation{Location: pantry.LocationFridge, Items: []pantry.ObservedItem{
					{Name: "Eggs", Quantity: qty("1"), Confidence: 1.5},
				}},
			},
			{
				name: "unknown category",
				obs: pantry.Observation{Location: pantry.LocationFridge, Items: []pantry.ObservedItem{
					{Name: "Eggs", Category: "toys", Quantity: qty("1"), Confidence: 0.9},
				}},
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				h := newHarness(t)
				_, err := h.svc.Reconcile(ctx, owner, tt.obs)
				if pantry.KindOf(err) != pantry.KindValidation {
					t.Errorf("Reconcile() error = %v, want validation", err)
				}
			})
		}
	})
}

func TestPantryService_GetHistory(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	if _, err := h.svc.GetHistory(ctx, 0); pantry.KindOf(err) != pantry.KindValidation {
		t.Errorf("GetHistory(0) error = %v, want validation", err)
	}

	if _, err := h.db.CreateOperation(ctx, "Scan", "fridge.json", h.clock.Now()); err != nil {
		t.Fatalf("CreateOperation() error = %v", err)
	}
	ops, err := h.svc.GetHistory(ctx, 5)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(ops) != 1 || ops[0].Name != "Scan" {
		t.Errorf("GetHistory() = %v, want one Scan operation", ops)
	}
}
