package prompts

import (
	"fmt"
	"sort"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/kevalkarani/balance-sheet-buddy/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultGLContextRows caps the transactions embedded in a chat context.
const DefaultGLContextRows = 500

var (
	rule    = strings.Repeat("=", 80)
	subRule = strings.Repeat("-", 80)
)

// FormatAmount renders d with thousands separators and two decimals, e.g. 1,234.56.
// The digits come from the decimal itself, so any magnitude renders exactly.
func FormatAmount(d decimal.Decimal) string {
	fixed := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	b.WriteString(sign)
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

func sideLabel(debit, credit decimal.Decimal) (string, decimal.Decimal) {
	switch {
	case debit.IsPositive():
		return "Dr", debit
	case credit.IsPositive():
		return "Cr", credit
	default:
		return "Zero", credit
	}
}

// FormatTrialBalance renders merged ledger rows as the plain-text table embedded in prompts.
// Output depends only on the rows and their order.
func FormatTrialBalance(rows []domain.LedgerRow) string {
	var b strings.Builder
	b.WriteString("TRIAL BALANCE DATA\n")
	b.WriteString(rule + "\n\n")

	totalDebit, totalCredit := decimal.Zero, decimal.Zero
	for _, r := range rows {
		side, amount := sideLabel(r.Debit, r.Credit)
		fmt.Fprintf(&b, "Account: %s | Type: %s | Amount: %s", r.Account, side, FormatAmount(amount))
		if r.Category != "" {
			fmt.Fprintf(&b, " | Category: %s | Subcategory: %s", r.Category, r.Subcategory)
		}
		b.WriteString("\n")
		totalDebit = totalDebit.Add(r.Debit)
		totalCredit = totalCredit.Add(r.Credit)
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "Total Accounts: %d\n", len(rows))
	fmt.Fprintf(&b, "Total Debits: %s\n", FormatAmount(totalDebit))
	fmt.Fprintf(&b, "Total Credits: %s", FormatAmount(totalCredit))
	return b.String()
}

func formatDate(d civil.Date) string {
	if !d.IsValid() {
		return "Unknown"
	}
	return d.String()
}

func glLine(e domain.GLEntry) string {
	return fmt.Sprintf("%s | %s | %s | Amount: %s",
		formatDate(e.Date), e.Account, e.Description, FormatAmount(e.SignedAmount()))
}

func glTotals(entries []domain.GLEntry) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, e := range entries {
		debit = debit.Add(e.Debit)
		credit = credit.Add(e.Credit)
	}
	return debit, credit
}

// FilterGL keeps the entries whose account contains account, case-insensitively.
// An empty account keeps everything.
func FilterGL(entries []domain.GLEntry, account string) []domain.GLEntry {
	if account == "" {
		return entries
	}
	needle := strings.ToLower(account)
	var out []domain.GLEntry
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Account), needle) {
			out = append(out, e)
		}
	}
	return out
}

// FormatGL renders GL transactions in date order, optionally restricted to one account.
// Undated entries sort first.
func FormatGL(entries []domain.GLEntry, account string) string {
	filtered := FilterGL(entries, account)
	suffix := ""
	if account != "" {
		suffix = " for " + account
	}
	if len(filtered) == 0 {
		return "No GL transactions found" + suffix + "."
	}

	sorted := make([]domain.GLEntry, len(filtered))
	copy(sorted, filtered)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Date, sorted[j].Date
		if !a.IsValid() || !b.IsValid() {
			return !a.IsValid() && b.IsValid()
		}
		return a.Before(b)
	})

	var b strings.Builder
	b.WriteString("GENERAL LEDGER TRANSACTIONS")
	if account != "" {
		b.WriteString(" - " + account)
	}
	b.WriteString("\n" + rule + "\n\n")
	for _, e := range sorted {
		b.WriteString(glLine(e) + "\n")
	}

	debit, credit := glTotals(sorted)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Total Transactions: %d\n", len(sorted))
	fmt.Fprintf(&b, "Total Debits: %s\n", FormatAmount(debit))
	fmt.Fprintf(&b, "Total Credits: %s", FormatAmount(credit))
	return b.String()
}

// FormatGLContext renders the most recent maxRows transactions with summary
// figures for use as a chat system context. maxRows <= 0 uses DefaultGLContextRows.
func FormatGLContext(entries []domain.GLEntry, maxRows int) string {
	if len(entries) == 0 {
		return "No GL data available."
	}
	if maxRows <= 0 {
		maxRows = DefaultGLContextRows
	}

	sorted := make([]domain.GLEntry, len(entries))
	copy(sorted, entries)
	// newest first, undated last
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Date, sorted[j].Date
		if !a.IsValid() || !b.IsValid() {
			return a.IsValid() && !b.IsValid()
		}
		return b.Before(a)
	})

	note := fmt.Sprintf("(All %d transactions included)", len(entries))
	if len(sorted) > maxRows {
		sorted = sorted[:maxRows]
		note = fmt.Sprintf("(Showing most recent %d of %d total transactions)", maxRows, len(entries))
	}

	first, last := dateRange(sorted)
	debit, credit := glTotals(sorted)
	accounts := make(map[string]struct{})
	for _, e := range sorted {
		accounts[e.Account] = struct{}{}
	}

	var b strings.Builder
	b.WriteString("GENERAL LEDGER DATA\n")
	b.WriteString(rule + "\n")
	b.WriteString(note + "\n\n")
	fmt.Fprintf(&b, "Date Range: %s to %s\n", first, last)
	fmt.Fprintf(&b, "Total Debits: %s\n", FormatAmount(debit))
	fmt.Fprintf(&b, "Total Credits: %s\n", FormatAmount(credit))
	fmt.Fprintf(&b, "Unique Accounts: %d\n\n", len(accounts))
	b.WriteString("TRANSACTIONS:\n")
	b.WriteString(subRule + "\n")
	for i, e := range sorted {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(glLine(e))
	}
	return b.String()
}

func dateRange(entries []domain.GLEntry) (first, last string) {
	first, last = "Unknown", "Unknown"
	var (
		seen   bool
		lo, hi civil.Date
	)
	for _, e := range entries {
		if !e.Date.IsValid() {
			continue
		}
		if !seen {
			lo, hi, seen = e.Date, e.Date, true
			continue
		}
		if e.Date.Before(lo) {
			lo = e.Date
		}
		if hi.Before(e.Date) {
			hi = e.Date
		}
	}
	if seen {
		first, last = lo.String(), hi.String()
	}
	return first, last
}
