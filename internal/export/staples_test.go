package export_test

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"pantry-go/internal/export"
	"pantry-go/internal/pantry"
)

func TestWriteStaples(t *testing.T) {
	fourteen := 14
	recs := []*pantry.StapleRecord{
		{
			DisplayName:      "Bananas",
			Category:         pantry.CategoryProduce,
			PurchaseCount:    3,
			FirstPurchasedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			LastPurchasedAt:  time.Date(2024, 1, 29, 0, 0, 0, 0, time.UTC),
			AvgFrequencyDays: &fourteen,
			IsStaple:         true,
		},
		{
			DisplayName:      "Saffron",
			Category:         pantry.CategoryOther,
			PurchaseCount:    1,
			FirstPurchasedAt: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
			LastPurchasedAt:  time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
			IsOccasional:     true,
			ManualOverride:   true,
		},
	}

	var buf bytes.Buffer
	if err := export.WriteStaples(&buf, recs); err != nil {
		t.Fatalf("WriteStaples() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(export.StaplesSheet)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}

	if rows[0][0] != "Name" || rows[0][2] != "Purchases" {
		t.Errorf("header = %v", rows[0])
	}

	want := []string{"Bananas", "produce", "3", "2024-01-01", "2024-01-29", "14", "yes"}
	for i, w := range want {
		if rows[1][i] != w {
			t.Errorf("row 1 col %d = %q, want %q", i, rows[1][i], w)
		}
	}

	saffron := rows[2]
	if saffron[0] != "Saffron" || saffron[5] != "" {
		t.Errorf("Saffron row = %v, want empty average", saffron)
	}
	if len(saffron) < 9 || saffron[7] != "yes" || saffron[8] != "yes" {
		t.Errorf("Saffron flags = %v, want occasional and manual", saffron)
	}
}

func TestSaveStaples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "staples.xlsx")
	if err := export.SaveStaples(path, nil); err != nil {
		t.Fatalf("SaveStaples() error = %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()

	if idx, _ := f.GetSheetIndex(export.StaplesSheet); idx < 0 {
		t.Errorf("workbook has no %s sheet", export.StaplesSheet)
	}

	if err := export.SaveStaples(filepath.Join(t.TempDir(), "missing", "x.xlsx"), nil); err == nil {
		t.Error("SaveStaples() into missing directory error = nil")
	}
}
