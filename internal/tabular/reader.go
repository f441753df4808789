package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// File is a named blob of tabular data. The name's extension selects the reader.
type File struct {
	Name string
	Data []byte
}

// sheet is one grid of cell text.
type sheet struct {
	Name string
	Rows [][]string
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readSheets decodes data into sheets according to the file extension:
// .xlsx/.xlsm through excelize, .xls through extrame/xls, anything else as CSV.
func readSheets(name string, data []byte) ([]sheet, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return readXLSX(data)
	case ".xls":
		return readXLS(data)
	default:
		rows, err := readCSV(data)
		if err != nil {
			return nil, err
		}
		return []sheet{{Name: filepath.Base(name), Rows: rows}}, nil
	}
}

func readXLSX(data []byte) ([]sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open excel: %w", err)
	}
	defer func() { _ = f.Close() }()

	names := f.GetSheetList()
	if len(names) == 0 {
		return nil, fmt.Errorf("no sheets found")
	}

	sheets := make([]sheet, 0, len(names))
	for _, n := range names {
		rows, err := f.GetRows(n, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", n, err)
		}
		sheets = append(sheets, sheet{Name: n, Rows: rows})
	}
	return sheets, nil
}

func readXLS(data []byte) ([]sheet, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}

	var sheets []sheet
	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		rows := make([][]string, 0, int(ws.MaxRow)+1)
		for r := 0; r <= int(ws.MaxRow); r++ {
			xr := ws.Row(r)
			if xr == nil {
				rows = append(rows, nil)
				continue
			}
			cells := make([]string, 0, xr.LastCol())
			for c := 0; c < xr.LastCol(); c++ {
				cells = append(cells, xr.Col(c))
			}
			rows = append(rows, cells)
		}
		sheets = append(sheets, sheet{Name: ws.Name, Rows: rows})
	}
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found")
	}
	return sheets, nil
}

func readCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}
