// Package export writes staple reports as spreadsheets.
package export

import (
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"

	"pantry-go/internal/pantry"
)

// StaplesSheet is the name of the worksheet holding the staple report.
const StaplesSheet = "Staples"

var staplesHeaders = []string{
	"Name", "Category", "Purchases", "First Purchase", "Last Purchase",
	"Avg Days Between", "Staple", "Occasional", "Manual",
}

// WriteStaples writes recs as an xlsx workbook to w, one row per record in
// the order given.
func WriteStaples(w io.Writer, recs []*pantry.StapleRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", StaplesSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#C6E0B4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, header := range staplesHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(StaplesSheet, cell, header); err != nil {
			return fmt.Errorf("failed to write header %s: %w", header, err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(staplesHeaders), 1)
	if err := f.SetCellStyle(StaplesSheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, rec := range recs {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(StaplesSheet, cell, &[]any{
			rec.DisplayName,
			string(rec.Category),
			rec.PurchaseCount,
			rec.FirstPurchasedAt.Format("2006-01-02"),
			rec.LastPurchasedAt.Format("2006-01-02"),
			avgDays(rec.AvgFrequencyDays),
			flag(rec.IsStaple),
			flag(rec.IsOccasional),
			flag(rec.ManualOverride),
		}); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", rec.DisplayName, err)
		}
	}

	if err := f.SetColWidth(StaplesSheet, "A", "A", 28); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}
	if err := f.SetColWidth(StaplesSheet, "B", "I", 15); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}
	if err := f.SetPanes(StaplesSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// SaveStaples writes the staple report to a new file at path.
func SaveStaples(path string, recs []*pantry.StapleRecord) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if err := WriteStaples(out, recs); err != nil {
		out.Close()
		os.Remove(path)
		return err
	}
	return out.Close()
}

func avgDays(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}

func flag(v bool) string {
	if v {
		return "yes"
	}
	return ""
}
