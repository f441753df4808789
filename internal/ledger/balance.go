package ledger

import (
	"regexp"
	"strings"

	"github.com/kevalkarani/balance-sheet-buddy/internal/domain"
	"github.com/shopspring/decimal"
)

var leadingNumber = regexp.MustCompile(`^(\d+)`)

// ComputeBalanceType reports which side a debit/credit pair sits on.
// Pairs that are neither single-sided nor both zero are Mixed.
func ComputeBalanceType(debit, credit decimal.Decimal) domain.BalanceType {
	switch {
	case debit.IsPositive() && credit.IsZero():
		return domain.BalanceDebit
	case credit.IsPositive() && debit.IsZero():
		return domain.BalanceCredit
	case debit.IsZero() && credit.IsZero():
		return domain.BalanceZero
	default:
		return domain.BalanceMixed
	}
}

// AmountOf returns the debit when it is positive, otherwise the credit.
func AmountOf(debit, credit decimal.Decimal) decimal.Decimal {
	if debit.IsPositive() {
		return debit
	}
	return credit
}

// AccountNumber extracts the leading digit run of an account label, e.g.
// "1000 - Cash" -> "1000". ok is false when the label does not start with a digit.
func AccountNumber(account string) (string, bool) {
	m := leadingNumber.FindStringSubmatch(strings.TrimSpace(account))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// AccountKey is the normalized join key for an account label.
func AccountKey(account string) string {
	return strings.ToLower(strings.TrimSpace(account))
}
