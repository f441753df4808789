package report

import (
	"fmt"
	"unicode/utf8"

	"github.com/kevalkarani/balance-sheet-buddy/internal/domain"
	"github.com/xuri/excelize/v2"
)

// ClassificationSheet is the sheet name of the classification workbook.
const ClassificationSheet = "Classification View"

// ClassificationColumns is the column order of the classification workbook.
var ClassificationColumns = []string{"Account", "Balance_Type", "Amount", "Category", "Subcategory", "Status", "Commentary"}

const (
	maxColumnWidth = 50
	amountColumn   = 3
	statusColumn   = 6
	// built-in number format #,##0.00
	amountNumFmt = 4
)

var statusFill = map[domain.Status]string{
	domain.StatusMismatch: "FFCCCC",
	domain.StatusPass:     "CCFFCC",
}

// ClassificationWorkbook renders records as an .xlsx file.
func ClassificationWorkbook(records []domain.ClassificationRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", ClassificationSheet); err != nil {
		return nil, fmt.Errorf("ClassificationWorkbook: rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("ClassificationWorkbook: header style: %w", err)
	}
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: amountNumFmt})
	if err != nil {
		return nil, fmt.Errorf("ClassificationWorkbook: amount style: %w", err)
	}
	fills := make(map[domain.Status]int, len(statusFill))
	for status, color := range statusFill {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err != nil {
			return nil, fmt.Errorf("ClassificationWorkbook: %s style: %w", status, err)
		}
		fills[status] = id
	}

	widths := make([]int, len(ClassificationColumns))
	header := make([]interface{}, len(ClassificationColumns))
	for i, c := range ClassificationColumns {
		header[i] = c
		widths[i] = utf8.RuneCountInString(c)
	}
	if err := f.SetSheetRow(ClassificationSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("ClassificationWorkbook: header: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(ClassificationColumns), 1)
	if err := f.SetCellStyle(ClassificationSheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("ClassificationWorkbook: header style: %w", err)
	}

	for i, r := range records {
		rowNum := i + 2
		amountText := r.Amount.StringFixed(2)
		values := []interface{}{
			r.Account,
			string(r.BalanceType),
			r.Amount.InexactFloat64(),
			r.Category,
			r.Subcategory,
			string(r.Status),
			r.Commentary,
		}
		texts := []string{r.Account, string(r.BalanceType), amountText, r.Category, r.Subcategory, string(r.Status), r.Commentary}
		for c, t := range texts {
			if n := utf8.RuneCountInString(t); n > widths[c] {
				widths[c] = n
			}
		}

		start, _ := excelize.CoordinatesToCellName(1, rowNum)
		if err := f.SetSheetRow(ClassificationSheet, start, &values); err != nil {
			return nil, fmt.Errorf("ClassificationWorkbook: row %d: %w", rowNum, err)
		}
		amountCell, _ := excelize.CoordinatesToCellName(amountColumn, rowNum)
		if err := f.SetCellStyle(ClassificationSheet, amountCell, amountCell, amountStyle); err != nil {
			return nil, fmt.Errorf("ClassificationWorkbook: amount style row %d: %w", rowNum, err)
		}
		if style, ok := fills[r.Status]; ok {
			statusCell, _ := excelize.CoordinatesToCellName(statusColumn, rowNum)
			if err := f.SetCellStyle(ClassificationSheet, statusCell, statusCell, style); err != nil {
				return nil, fmt.Errorf("ClassificationWorkbook: status style row %d: %w", rowNum, err)
			}
		}
	}

	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		width := w + 2
		if width > maxColumnWidth {
			width = maxColumnWidth
		}
		if err := f.SetColWidth(ClassificationSheet, col, col, float64(width)); err != nil {
			return nil, fmt.Errorf("ClassificationWorkbook: width %s: %w", col, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("ClassificationWorkbook: write: %w", err)
	}
	return buf.Bytes(), nil
}
