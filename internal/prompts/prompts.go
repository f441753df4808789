// Package prompts renders ledger data as text and builds the instructions
// sent to the model for classification, reconciliation and GL chat.
package prompts

import (
	"fmt"
	"strings"

	"github.com/kevalkarani/balance-sheet-buddy/internal/domain"
)

// Framework is prepended to every analysis prompt.
const Framework = `Balance Sheet Buddy - Balance Sheet Reconciliation Framework

You are reviewing a Trial Balance, and where supplied General Ledger detail, for balance sheet reconciliation.

1. OBJECTIVE
- Confirm every balance sheet account is classified correctly.
- Check that balances reflect the economic substance of the account.
- Point out mismatches and areas of risk.
- Where something is ambiguous, state your assumption and keep going rather than stopping.

2. WORKING RULES
- Use only the Trial Balance, GL and mapping data provided.
- Do not stop unless the data is entirely unreadable.
- Never leave an account out of the output.
- Skip aggregation lines such as Total or Subtotal.

3. EXPECTED BALANCE SIDE
- Asset: Debit is PASS, Credit is MISMATCH
- Contra-Asset: Credit is PASS, Debit is MISMATCH
- Liability: Credit is PASS, Debit is MISMATCH
- Equity: Credit is PASS, Debit is MISMATCH
- Clearing: a zero balance is expected, anything else is flagged
- P&L accounts: outside the scope of balance sheet reconciliation

4. ACCOUNT RULES BY SUBCATEGORY
- Accounts Payable: propose write off or write back for balances dated before 1 Jan 2024; propose squaring off offsetting balances.
- Accounts Receivable: ask for the collection status of outstanding balances.
- Accrued Expenses: summarize by date and memo.
- Banks: should be reconciled on a regular basis.
- Clearing: should be nil; find and flag open balances.
- Deferred Revenue: summarize with a deferred revenue waterfall.
- PPE: check the depreciation setup.
- Intercompany: summarize by counterparty.
- P&L accounts: ignore for reconciliation.
- Anything else: summarize by posting period and GL memo.
`

const tableColumns = "Account | Balance_Type | Amount | Category | Subcategory | Commentary | Status"

// Classification asks for Output A, the classification view of every account.
func Classification(trialBalance string) string {
	var b strings.Builder
	b.WriteString(Framework)
	b.WriteString("\nTASK: Produce Output A (Classification View) covering every account.\n\n")
	b.WriteString("TRIAL BALANCE:\n")
	b.WriteString(trialBalance)
	b.WriteString("\n\nINSTRUCTIONS:\n")
	b.WriteString("1. For every account:\n")
	b.WriteString("   - state whether the balance is Debit or Credit\n")
	b.WriteString("   - give the amount\n")
	b.WriteString("   - repeat the Category and Subcategory supplied in the data\n")
	b.WriteString("   - check the balance side against the category\n")
	b.WriteString("   - add a short commentary on the check\n")
	b.WriteString("   - set Status to PASS when the side is as expected, otherwise MISMATCH\n")
	b.WriteString("2. Clearing accounts with a non-zero balance are MISMATCH. P&L accounts get Status N/A.\n")
	b.WriteString("3. Reply with a pipe-delimited table using exactly these columns:\n")
	b.WriteString("   " + tableColumns + "\n")
	b.WriteString("4. Include every account from the trial balance.\n")
	b.WriteString("5. Accounts with category \"" + domain.UnmappedCategory + "\" are MISMATCH; say so in the commentary.\n\n")
	b.WriteString("Provide the complete classification now.\n")
	return b.String()
}

// MismatchOnly asks for Output A restricted to accounts that fail validation.
func MismatchOnly(trialBalance string) string {
	var b strings.Builder
	b.WriteString(Framework)
	b.WriteString("\nTASK: Produce Output A (Classification View) for MISMATCH accounts only.\n\n")
	b.WriteString("TRIAL BALANCE:\n")
	b.WriteString(trialBalance)
	b.WriteString("\n\nINSTRUCTIONS:\n")
	b.WriteString("1. Find the accounts that fail validation: assets with credit balances, liabilities or equity with debit balances, non-zero clearing accounts and unmapped accounts.\n")
	b.WriteString("2. For each one give the account, balance side, amount, category, subcategory and a commentary explaining the mismatch. Status is MISMATCH.\n")
	b.WriteString("3. Reply with a pipe-delimited table using exactly these columns:\n")
	b.WriteString("   " + tableColumns + "\n")
	b.WriteString("4. When nothing fails, reply \"All accounts PASS validation - no mismatches found.\"\n\n")
	b.WriteString("Provide the mismatch analysis now.\n")
	return b.String()
}

// Reconciliation asks for Output B (account-level reconciliation) and Output C (executive summary).
func Reconciliation(trialBalance, gl string) string {
	var b strings.Builder
	b.WriteString(Framework)
	b.WriteString("\nTASK: Produce Output B (Account-Level Reconciliation) and Output C (Executive Summary).\n\n")
	b.WriteString("TRIAL BALANCE:\n")
	b.WriteString(trialBalance)
	b.WriteString("\n\nGENERAL LEDGER TRANSACTIONS:\n")
	b.WriteString(gl)
	b.WriteString("\n\nOUTPUT B - for each account:\n")
	b.WriteString("1. Balance break-up: what the GL says the balance is made of.\n")
	b.WriteString("2. Top 5 components: the largest transactions behind the balance.\n")
	b.WriteString("3. Ageing for AP and AR: under 30 days, 30-60, 60-90, over 90, and anything before 1 Jan 2024 flagged for write-off review.\n")
	b.WriteString("4. Actions, following the subcategory rules above.\n")
	b.WriteString("\nOUTPUT C - executive summary:\n")
	b.WriteString("1. Accounts fully reconciled: PASS with nothing outstanding.\n")
	b.WriteString("2. Accounts needing action: MISMATCH, open clearing balances, items over a year old, unclear or undocumented entries.\n")
	b.WriteString("3. Key risks: the 5 to 10 items that need attention first.\n")
	b.WriteString("\nStart Output C with a line reading \"OUTPUT C - EXECUTIVE SUMMARY\". Keep it to one or two pages.\n")
	b.WriteString("\nProvide both outputs now.\n")
	return b.String()
}

// AccountReconciliation asks for a memo, schedule and recommendations for one account.
func AccountReconciliation(r domain.ClassificationRecord, glText string) string {
	var b strings.Builder
	b.WriteString("Reconcile this account.\n\n")
	fmt.Fprintf(&b, "Account: %s\n", r.Account)
	fmt.Fprintf(&b, "Category: %s\n", valueOr(r.Category, "N/A"))
	fmt.Fprintf(&b, "Subcategory: %s\n", valueOr(r.Subcategory, "N/A"))
	fmt.Fprintf(&b, "Balance: Debit %s / Credit %s\n\n", FormatAmount(r.Debit), FormatAmount(r.Credit))
	b.WriteString("Rules for this subcategory:\n")
	b.WriteString(AccountRules(r.Subcategory))
	b.WriteString("\nGL Transactions:\n")
	b.WriteString(glText)
	b.WriteString("\n\nProvide:\n")
	b.WriteString("1. Reconciliation memo: account activity, key findings, issues.\n")
	b.WriteString("2. Reconciliation schedule: a breakdown by vendor, date or type as fits the account.\n")
	b.WriteString("3. Recommendations: any action required.\n\n")
	b.WriteString("Use this layout:\nMEMO:\n[memo]\n\nSCHEDULE:\n[schedule as a table]\n\nRECOMMENDATIONS:\n[recommendations]\n")
	return b.String()
}

// ChatSystem is the system instruction for questions about GL data.
func ChatSystem(glContext string) string {
	return "You are a financial analysis assistant with access to the General Ledger data below.\n\n" +
		glContext + "\n\n" +
		"Answer questions about this data with summaries, analysis and specific transactions. " +
		"Support answers with figures from the GL and format numbers with thousands separators. " +
		"Be concise. If the answer is not in the data, say so."
}

func valueOr(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
