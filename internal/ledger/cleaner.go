package ledger

import (
	"regexp"
	"strings"

	"github.com/kevalkarani/balance-sheet-buddy/internal/domain"
)

var (
	totalPrefix    = regexp.MustCompile(`(?i)^\s*total[\s-]`)
	totalExact     = regexp.MustCompile(`(?i)^\s*(total|subtotal|sub-total|grand total|sum)\s*$`)
	openingBalance = regexp.MustCompile(`(?i)^\s*opening\s+balance`)
)

// dropRules are independent predicates; a row matching any of them is removed.
var dropRules = []func(domain.LedgerRow) bool{
	func(r domain.LedgerRow) bool { return strings.TrimSpace(r.Account) == "" },
	func(r domain.LedgerRow) bool { return totalPrefix.MatchString(r.Account) },
	func(r domain.LedgerRow) bool { return totalExact.MatchString(r.Account) },
	func(r domain.LedgerRow) bool { return r.Debit.IsZero() && r.Credit.IsZero() },
	func(r domain.LedgerRow) bool { return openingBalance.MatchString(r.Account) },
}

// Clean removes blank, total/subtotal, all-zero and opening-balance rows.
// The surviving rows keep their order; the input slice is not modified.
func Clean(rows []domain.LedgerRow) []domain.LedgerRow {
	out := make([]domain.LedgerRow, 0, len(rows))
	for _, r := range rows {
		if isAggregate(r) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func isAggregate(r domain.LedgerRow) bool {
	for _, drop := range dropRules {
		if drop(r) {
			return true
		}
	}
	return false
}
