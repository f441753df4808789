package ledger

import (
	"strings"

	"github.com/kevalkarani/balance-sheet-buddy/internal/domain"
)

// Merge attaches a category and subcategory from mapping to every row.
//
// Rows are matched on the normalized account key first. Rows left without a
// category fall back to the first mapping entry, in table order, whose key
// starts with the row's leading account number. Anything still empty is
// set to Unmapped/Unknown. The result is a new slice.
func Merge(rows []domain.LedgerRow, mapping []domain.MappingEntry) []domain.LedgerRow {
	byKey := make(map[string]domain.MappingEntry, len(mapping))
	for _, m := range mapping {
		if _, seen := byKey[m.AccountKey]; !seen {
			byKey[m.AccountKey] = m
		}
	}

	out := make([]domain.LedgerRow, len(rows))
	for i, r := range rows {
		merged := r
		merged.Category, merged.Subcategory = "", ""

		if m, ok := byKey[AccountKey(r.Account)]; ok {
			merged.Category, merged.Subcategory = m.Category, m.Subcategory
		}

		if strings.TrimSpace(merged.Category) == "" {
			if m, ok := prefixMatch(r.Account, mapping); ok {
				merged.Category, merged.Subcategory = m.Category, m.Subcategory
			}
		}

		if strings.TrimSpace(merged.Category) == "" {
			merged.Category = domain.UnmappedCategory
		}
		if strings.TrimSpace(merged.Subcategory) == "" {
			merged.Subcategory = domain.UnknownSubcategory
		}
		out[i] = merged
	}
	return out
}

func prefixMatch(account string, mapping []domain.MappingEntry) (domain.MappingEntry, bool) {
	num, ok := AccountNumber(account)
	if !ok {
		return domain.MappingEntry{}, false
	}
	for _, m := range mapping {
		if strings.HasPrefix(m.AccountKey, num) {
			return m, true
		}
	}
	return domain.MappingEntry{}, false
}
