package bank

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const expenseSheet = "Expenses"

var expenseHeaders = []string{
	"Date",
	"Amount",
	"Currency",
	"Name",
	"Purpose",
	"Store",
	"Items",
	"Receipt File",
}

// WriteXLSX writes the report as a single-sheet workbook with a total row
// under the transactions
func WriteXLSX(w io.Writer, report *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(expenseSheet); err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("removing default sheet: %w", err)
	}
	index, _ := f.GetSheetIndex(expenseSheet)
	f.SetActiveSheet(index)

	for i, h := range expenseHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(expenseSheet, cell, h); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	row := 2
	for _, e := range report.Transactions {
		values := []any{
			e.Date,
			e.Amount.InexactFloat64(),
			e.Currency,
			e.Name,
			e.Purpose,
			deref(e.Store),
			itemSummary(e),
			deref(e.File),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(expenseSheet, cell, v); err != nil {
				return fmt.Errorf("writing row %d: %w", row, err)
			}
		}
		row++
	}

	totalLabel, _ := excelize.CoordinatesToCellName(1, row)
	totalCell, _ := excelize.CoordinatesToCellName(2, row)
	_ = f.SetCellValue(expenseSheet, totalLabel, "Total")
	_ = f.SetCellValue(expenseSheet, totalCell, report.Total.InexactFloat64())

	_ = f.SetColWidth(expenseSheet, "A", "A", 12) // date
	_ = f.SetColWidth(expenseSheet, "D", "E", 32) // name, purpose
	_ = f.SetColWidth(expenseSheet, "F", "F", 22) // store
	_ = f.SetColWidth(expenseSheet, "G", "G", 48) // items
	_ = f.SetColWidth(expenseSheet, "H", "H", 28) // file

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// itemSummary renders items as "Milch 2x 1.80; Brot 2.49"
func itemSummary(e Expense) string {
	parts := make([]string, 0, len(e.Items))
	for _, it := range e.Items {
		if it.Qty > 1 {
			parts = append(parts, fmt.Sprintf("%s %dx %s", it.Name, it.Qty, it.Price.StringFixed(2)))
		} else {
			parts = append(parts, fmt.Sprintf("%s %s", it.Name, it.Price.StringFixed(2)))
		}
	}
	return strings.Join(parts, "; ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
