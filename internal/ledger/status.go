package ledger

import (
	"strings"

	"github.com/kevalkarani/balance-sheet-buddy/internal/domain"
)

// statusRule pairs a category predicate with the balance side it expects.
type statusRule struct {
	matches  func(category string) bool
	expected domain.BalanceType
}

// statusRules are evaluated in order against the lowercased category.
// Categories matching none of them always PASS.
var statusRules = []statusRule{
	{
		matches:  func(c string) bool { return strings.Contains(c, "asset") && !strings.Contains(c, "contra") },
		expected: domain.BalanceDebit,
	},
	{
		matches:  func(c string) bool { return strings.Contains(c, "liability") || strings.Contains(c, "equity") },
		expected: domain.BalanceCredit,
	},
	{
		matches:  func(c string) bool { return strings.Contains(c, "clearing") },
		expected: domain.BalanceZero,
	},
}

// InferStatus classifies a category/balance-type pair as PASS or MISMATCH.
// It is total: every input yields exactly one of the two.
func InferStatus(category string, bt domain.BalanceType) domain.Status {
	c := strings.ToLower(category)
	for _, rule := range statusRules {
		if !rule.matches(c) {
			continue
		}
		if bt == rule.expected {
			return domain.StatusPass
		}
		return domain.StatusMismatch
	}
	return domain.StatusPass
}

// InferRowStatus computes the balance type of row and classifies it.
func InferRowStatus(row domain.LedgerRow) (domain.BalanceType, domain.Status) {
	bt := ComputeBalanceType(row.Debit, row.Credit)
	return bt, InferStatus(row.Category, bt)
}
