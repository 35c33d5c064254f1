package app

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"pantry-go/internal/pantry"
)

// ScanInput is the JSON document produced by a scan of one location.
//
//	{"location": "fridge", "items": [{"name": "Milk", "quantity": 1, "unit": "l", "confidence": 0.9}]}
type ScanInput struct {
	Location pantry.Location       `json:"location"`
	Items    []pantry.ObservedItem `json:"items"`
}

// ReceiptInput is the JSON document read off a shopping receipt.
// PurchasedAt is a YYYY-MM-DD date.
type ReceiptInput struct {
	ReceiptID   string                `json:"receipt_id"`
	PurchasedAt string                `json:"purchased_at"`
	Location    pantry.Location       `json:"location"`
	Items       []pantry.PurchaseLine `json:"items"`
}

// ReadScan decodes a scan document. location, when non-empty, overrides
// the location in the document.
func ReadScan(r io.Reader, location pantry.Location) (pantry.Observation, error) {
	var in ScanInput
	if err := decodeStrict(r, &in); err != nil {
		return pantry.Observation{}, fmt.Errorf("%w: reading scan: %v", pantry.ErrValidation, err)
	}
	if location != "" {
		in.Location = location
	}
	return pantry.Observation{
		Location: in.Location,
		Source:   pantry.SourceScan,
		Items:    in.Items,
	}, nil
}

// ReadReceipt decodes a receipt document and checks the fields the
// service does not.
func ReadReceipt(r io.Reader, location pantry.Location) (*ReceiptInput, time.Time, error) {
	var in ReceiptInput
	if err := decodeStrict(r, &in); err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: reading receipt: %v", pantry.ErrValidation, err)
	}
	if location != "" {
		in.Location = location
	}
	if in.Location == "" {
		in.Location = pantry.LocationPantry
	}
	if in.ReceiptID == "" {
		return nil, time.Time{}, fmt.Errorf("%w: receipt_id is required", pantry.ErrValidation)
	}
	purchasedAt, err := time.Parse("2006-01-02", in.PurchasedAt)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: purchased_at %q is not a YYYY-MM-DD date", pantry.ErrValidation, in.PurchasedAt)
	}
	// A line without a quantity is one unit, in inventory and history alike.
	for i := range in.Items {
		if in.Items[i].Quantity.IsZero() {
			in.Items[i].Quantity = decimal.NewFromInt(1)
		}
	}
	return &in, purchasedAt, nil
}

// Observation turns the receipt lines into an observation of the receipt's
// location. Lines read off a receipt are certain.
func (in *ReceiptInput) Observation() pantry.Observation {
	items := make([]pantry.ObservedItem, len(in.Items))
	for i, line := range in.Items {
		items[i] = pantry.ObservedItem{
			Name:       line.Name,
			Category:   line.Category,
			Quantity:   line.Quantity,
			Unit:       line.Unit,
			Confidence: 1,
		}
	}
	return pantry.Observation{
		Location: in.Location,
		Source:   pantry.SourceReceipt,
		Items:    items,
	}
}

func decodeStrict(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
