// Package report merges model output onto the ledger and renders the
// classification workbook, HTML report and plain-text summary.
package report

import (
	"strings"

	"github.com/kevalkarani/balance-sheet-buddy/internal/domain"
	"github.com/kevalkarani/balance-sheet-buddy/internal/ledger"
	"github.com/kevalkarani/balance-sheet-buddy/internal/modeltable"
)

// Source records where the statuses of an Assembly came from.
type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

// Assembly is the classification result for one ledger.
type Assembly struct {
	Records []domain.ClassificationRecord
	Source  Source
}

// Assemble produces one ClassificationRecord per ledger row, in row order.
//
// When parsed carries a Status column with at least one value, model rows are
// joined to ledger rows by trimmed account and any gaps are filled by the
// deterministic rules. Otherwise every record is derived from the ledger alone.
func Assemble(rows []domain.LedgerRow, parsed modeltable.Table) Assembly {
	useModel := usable(parsed)

	byAccount := make(map[string]int)
	if useModel {
		for i := 0; i < parsed.Len(); i++ {
			key := parsed.Value(i, modeltable.Account)
			if key == "" {
				continue
			}
			if _, seen := byAccount[key]; !seen {
				byAccount[key] = i
			}
		}
	}

	out := Assembly{Records: make([]domain.ClassificationRecord, 0, len(rows)), Source: SourceFallback}
	if useModel {
		out.Source = SourceModel
	}

	for _, r := range rows {
		computed, inferred := ledger.InferRowStatus(r)
		rec := domain.ClassificationRecord{
			LedgerRow:   r,
			BalanceType: computed,
			Amount:      ledger.AmountOf(r.Debit, r.Credit),
		}

		if idx, ok := byAccount[strings.TrimSpace(r.Account)]; ok {
			if bt, ok := ParseBalanceType(parsed.Value(idx, modeltable.BalanceType)); ok && computed != domain.BalanceMixed {
				rec.BalanceType = bt
			}
			rec.Status = normalizeStatus(parsed.Value(idx, modeltable.Status))
			rec.Commentary = parsed.Value(idx, modeltable.Commentary)
		}
		if rec.Status == "" {
			rec.Status = inferred
		}
		if rec.Commentary == "" {
			rec.Commentary = Commentary(rec.Category, rec.BalanceType, rec.Status)
		}
		out.Records = append(out.Records, rec)
	}
	return out
}

func usable(t modeltable.Table) bool {
	if t.Empty() || !t.Has(modeltable.Status) {
		return false
	}
	for i := 0; i < t.Len(); i++ {
		if t.Value(i, modeltable.Status) != "" {
			return true
		}
	}
	return false
}

// ParseBalanceType accepts the four balance types case-insensitively plus the Dr/Cr abbreviations.
func ParseBalanceType(s string) (domain.BalanceType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debit", "dr":
		return domain.BalanceDebit, true
	case "credit", "cr":
		return domain.BalanceCredit, true
	case "zero":
		return domain.BalanceZero, true
	case "mixed":
		return domain.BalanceMixed, true
	}
	return "", false
}

// normalizeStatus upper-cases PASS and MISMATCH and keeps anything else verbatim.
func normalizeStatus(s string) domain.Status {
	switch up := strings.ToUpper(s); up {
	case string(domain.StatusPass), string(domain.StatusMismatch):
		return domain.Status(up)
	}
	return domain.Status(s)
}

// Commentary is the generated note for a record without model commentary.
func Commentary(category string, bt domain.BalanceType, status domain.Status) string {
	switch status {
	case domain.StatusPass:
		return category + " with " + string(bt) + " balance - Correct"
	case domain.StatusMismatch:
		return category + " with " + string(bt) + " balance - Incorrect (should be opposite)"
	default:
		return category + " - Review required"
	}
}
