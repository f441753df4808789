// Package tabular loads trial balances, mapping tables and general-ledger
// dumps from spreadsheets or delimited text whose real header row may sit
// below a few title rows.
package tabular

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kevalkarani/balance-sheet-buddy/internal/domain"
	"github.com/kevalkarani/balance-sheet-buddy/internal/ledger"
	"github.com/shopspring/decimal"
)

// CoercionFunc is told about every amount cell that could not be parsed and
// was read as zero. row is the 1-based row number in the source sheet.
type CoercionFunc func(row int, column, raw string)

// Option configures a load.
type Option func(*options)

type options struct {
	headerScanRows int
	onCoerce       CoercionFunc
}

// WithHeaderScanRows overrides how many leading rows are searched for the header.
func WithHeaderScanRows(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.headerScanRows = n
		}
	}
}

// WithCoercionHandler registers fn to observe lossy amount conversions.
func WithCoercionHandler(fn CoercionFunc) Option {
	return func(o *options) { o.onCoerce = fn }
}

func buildOptions(opts []Option) options {
	o := options{headerScanRows: DefaultHeaderScanRows}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// table is the located header plus the data rows below it.
type table struct {
	headers   []string
	rows      [][]string
	firstLine int // 1-based source row of rows[0]
}

// locate reads the file and returns the first sheet whose scan window holds
// a row carrying every token.
func locate(name string, data []byte, tokens []string, limit int) (*table, error) {
	sheets, err := readSheets(name, data)
	if err != nil {
		return nil, err
	}
	for _, s := range sheets {
		idx, ok := findHeader(s.Rows, tokens, limit)
		if !ok {
			continue
		}
		return &table{
			headers:   s.Rows[idx],
			rows:      s.Rows[idx+1:],
			firstLine: idx + 2,
		}, nil
	}
	return nil, &HeaderNotFoundError{Tokens: tokens, Scanned: limit}
}

func (o options) amount(raw string, line int, column string) decimal.Decimal {
	v, coerced := ledger.NormalizeAmount(raw)
	if coerced && o.onCoerce != nil {
		o.onCoerce(line, column, raw)
	}
	return v
}

// LoadTrialBalance reads Account, Debit and Credit columns from a trial balance export.
// Account text is trimmed; rows are otherwise returned as found.
func LoadTrialBalance(name string, data []byte, opts ...Option) ([]domain.LedgerRow, error) {
	o := buildOptions(opts)

	t, err := locate(name, data, ledgerHeaderTokens, o.headerScanRows)
	if err != nil {
		return nil, fmt.Errorf("LoadTrialBalance: %s: %w", name, err)
	}
	cols := assignColumns(t.headers, trialBalanceColumns)
	if err := requireColumns(t.headers, cols, RoleAccount, RoleDebit, RoleCredit); err != nil {
		return nil, fmt.Errorf("LoadTrialBalance: %s: %w", name, err)
	}

	out := make([]domain.LedgerRow, 0, len(t.rows))
	for i, r := range t.rows {
		if blankRow(r) {
			continue
		}
		line := t.firstLine + i
		out = append(out, domain.LedgerRow{
			Account: strings.TrimSpace(cell(r, cols[RoleAccount])),
			Debit:   o.amount(cell(r, cols[RoleDebit]), line, RoleDebit),
			Credit:  o.amount(cell(r, cols[RoleCredit]), line, RoleCredit),
		})
	}
	return out, nil
}

// LoadMapping reads the account to category/subcategory reference table.
// Keys are normalized with ledger.AccountKey; rows with a blank key are skipped.
func LoadMapping(name string, data []byte, opts ...Option) ([]domain.MappingEntry, error) {
	o := buildOptions(opts)

	t, err := locate(name, data, mappingHeaderTokens, o.headerScanRows)
	if err != nil {
		return nil, fmt.Errorf("LoadMapping: %s: %w", name, err)
	}
	cols := assignColumns(t.headers, mappingColumns)
	if err := requireColumns(t.headers, cols, RoleAccount, RoleCategory, RoleSubcategory); err != nil {
		var mce *MissingColumnError
		if errors.As(err, &mce) {
			return nil, fmt.Errorf("LoadMapping: %s: mapping file needs Account, Category and Subcategory columns (found %s): %w",
				name, strings.Join(mce.Found, ", "), err)
		}
		return nil, fmt.Errorf("LoadMapping: %s: %w", name, err)
	}

	out := make([]domain.MappingEntry, 0, len(t.rows))
	for _, r := range t.rows {
		key := ledger.AccountKey(cell(r, cols[RoleAccount]))
		if key == "" {
			continue
		}
		out = append(out, domain.MappingEntry{
			AccountKey:  key,
			Category:    strings.TrimSpace(cell(r, cols[RoleCategory])),
			Subcategory: strings.TrimSpace(cell(r, cols[RoleSubcategory])),
		})
	}
	return out, nil
}

// LoadGL reads a general-ledger transaction dump. The description column is
// optional; an unparseable date leaves GLEntry.Date invalid.
func LoadGL(name string, data []byte, opts ...Option) ([]domain.GLEntry, error) {
	o := buildOptions(opts)

	t, err := locate(name, data, ledgerHeaderTokens, o.headerScanRows)
	if err != nil {
		return nil, fmt.Errorf("LoadGL: %s: %w", name, err)
	}
	cols := assignColumns(t.headers, glColumns)
	if err := requireColumns(t.headers, cols, RoleAccount, RoleDate, RoleDebit, RoleCredit); err != nil {
		return nil, fmt.Errorf("LoadGL: %s: %w", name, err)
	}
	descIdx, hasDesc := cols[RoleDescription]
	if !hasDesc {
		descIdx = -1
	}

	out := make([]domain.GLEntry, 0, len(t.rows))
	for i, r := range t.rows {
		if blankRow(r) {
			continue
		}
		line := t.firstLine + i
		out = append(out, domain.GLEntry{
			Account:     strings.TrimSpace(cell(r, cols[RoleAccount])),
			Date:        ParseDate(cell(r, cols[RoleDate])),
			Description: strings.TrimSpace(cell(r, descIdx)),
			Debit:       o.amount(cell(r, cols[RoleDebit]), line, RoleDebit),
			Credit:      o.amount(cell(r, cols[RoleCredit]), line, RoleCredit),
		})
	}
	return out, nil
}

// LoadGLFiles concatenates several GL dumps. A file that fails to load is
// reported in errs and the rest are still read.
func LoadGLFiles(files []File, opts ...Option) (entries []domain.GLEntry, errs []error) {
	for _, f := range files {
		got, err := LoadGL(f.Name, f.Data, opts...)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		entries = append(entries, got...)
	}
	return entries, errs
}
