// Package modeltable extracts a pipe-delimited table from free-form model output.
package modeltable

import (
	"regexp"
	"strings"
)

// Canonical column names.
const (
	Account     = "Account"
	BalanceType = "Balance_Type"
	Amount      = "Amount"
	Category    = "Category"
	Subcategory = "Subcategory"
	Commentary  = "Commentary"
	Status      = "Status"
)

var (
	headerKeywords = []string{"account", "balance", "status", "commentary"}
	separatorLine  = regexp.MustCompile(`^[\s\-|:]+$`)
)

// renameRules are tried in order; the first match names the column.
var renameRules = []struct {
	matches func(h string) bool
	name    string
}{
	{func(h string) bool { return strings.Contains(h, "account") }, Account},
	{func(h string) bool { return strings.Contains(h, "balance") && strings.Contains(h, "type") }, BalanceType},
	{func(h string) bool { return strings.Contains(h, "amount") }, Amount},
	{func(h string) bool { return strings.Contains(h, "category") && !strings.Contains(h, "sub") }, Category},
	{func(h string) bool {
		return strings.Contains(h, "subcategory") || strings.Contains(h, "sub-category") || strings.Contains(h, "sub category")
	}, Subcategory},
	{func(h string) bool { return strings.Contains(h, "comment") }, Commentary},
	{func(h string) bool { return strings.Contains(h, "status") }, Status},
}

// Table is a parsed model table. The zero value is empty.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// Len is the number of data rows.
func (t Table) Len() int { return len(t.rows) }

// Empty reports whether no usable table was found.
func (t Table) Empty() bool { return len(t.rows) == 0 }

// Columns returns the column names after canonical renaming.
func (t Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Has reports whether a column is present.
func (t Table) Has(column string) bool {
	_, ok := t.index[column]
	return ok
}

// Value returns the trimmed cell at row for column, or "" when either is out of range.
func (t Table) Value(row int, column string) string {
	idx, ok := t.index[column]
	if !ok || row < 0 || row >= len(t.rows) {
		return ""
	}
	return strings.TrimSpace(t.rows[row][idx])
}

// Parse finds the first pipe table whose header names an account, balance,
// status or commentary column and returns its rows. Text without such a
// table, or a header with no rows beneath it, yields an empty Table.
func Parse(text string) Table {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	start := -1
	for i, line := range lines {
		if strings.Contains(line, "|") && hasKeyword(line) {
			start = i
			break
		}
	}
	if start < 0 {
		return Table{}
	}

	var kept []string
	for _, line := range lines[start:] {
		if !strings.Contains(line, "|") || separatorLine.MatchString(line) {
			continue
		}
		kept = append(kept, stripOuterPipes(line))
	}
	if len(kept) < 2 {
		return Table{}
	}

	var headers []string
	for _, h := range strings.Split(kept[0], "|") {
		if h = strings.TrimSpace(h); h != "" {
			headers = append(headers, h)
		}
	}
	if len(headers) == 0 {
		return Table{}
	}

	var rows [][]string
	for _, line := range kept[1:] {
		cells := strings.Split(line, "|")
		if len(cells) == 0 {
			continue
		}
		row := make([]string, len(headers))
		for i := range row {
			if i < len(cells) {
				row[i] = strings.TrimSpace(cells[i])
			}
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return Table{}
	}

	columns := make([]string, len(headers))
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		columns[i] = canonical(h)
		if _, dup := index[columns[i]]; !dup {
			index[columns[i]] = i
		}
	}
	return Table{columns: columns, index: index, rows: rows}
}

func hasKeyword(line string) bool {
	lower := strings.ToLower(line)
	for _, k := range headerKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func stripOuterPipes(line string) string {
	s := strings.TrimSpace(line)
	s = strings.TrimPrefix(s, "|")
	s = strings.TrimSuffix(s, "|")
	return s
}

func canonical(header string) string {
	h := strings.ToLower(header)
	for _, r := range renameRules {
		if r.matches(h) {
			return r.name
		}
	}
	return header
}
