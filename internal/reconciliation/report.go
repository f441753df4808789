package reconciliation

import (
	"fmt"
	"strings"

	"github.com/kevalkarani/balance-sheet-buddy/internal/domain"
	"github.com/kevalkarani/balance-sheet-buddy/internal/prompts"
)

// Report renders a downloadable reconciliation report for one account.
func Report(record domain.ClassificationRecord, analysis Analysis, entry Entry) string {
	var b strings.Builder
	b.WriteString("ACCOUNT RECONCILIATION REPORT\n")
	b.WriteString(strings.Repeat("=", 80) + "\n\n")
	fmt.Fprintf(&b, "Account: %s\n", record.Account)
	fmt.Fprintf(&b, "Category: %s\n", record.Category)
	fmt.Fprintf(&b, "Subcategory: %s\n", record.Subcategory)
	fmt.Fprintf(&b, "Balance: Debit %s / Credit %s\n", prompts.FormatAmount(record.Debit), prompts.FormatAmount(record.Credit))
	fmt.Fprintf(&b, "Status: %s\n", record.Status)
	fmt.Fprintf(&b, "GL Transactions: %d\n", analysis.GLRows)
	if entry.Reconciled {
		fmt.Fprintf(&b, "Reconciled: Yes (%s)\n", entry.Timestamp.Format("2006-01-02 15:04:05"))
	} else {
		b.WriteString("Reconciled: No\n")
	}
	b.WriteString("\n" + strings.Repeat("-", 80) + "\n\n")
	b.WriteString(strings.TrimSpace(analysis.Text))
	b.WriteString("\n")
	return b.String()
}

// ProgressText is a one-line progress summary.
func ProgressText(p Progress) string {
	return fmt.Sprintf("%d of %d accounts reconciled (%.1f%%)", p.Reconciled, p.Total, p.Percent())
}
