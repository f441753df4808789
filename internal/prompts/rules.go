package prompts

import "strings"

var accountRules = map[string][]string{
	"accounts payable": {
		"Flag balances dated before 1 January 2024 for write-off or write-back",
		"Find offsetting balances that can be squared off",
		"Summarize by vendor where possible",
		"Look for debit balances that suggest overpayment",
	},
	"accounts receivable": {
		"Age the balance: under 30, 30-60, 60-90 and over 90 days",
		"Ask for the collection status of overdue amounts",
		"Flag balances more than a year old",
		"Look for credit balances that suggest misposting",
	},
	"accrued expenses": {
		"Summarize by accrual date and description",
		"Check whether accruals reversed in the following period",
		"Compare amounts with historical patterns",
	},
	"banks": {
		"The account should be reconciled to the bank regularly",
		"Look for old or unusual outstanding items",
		"Check the book balance against the expected bank balance",
	},
	"clearing": {
		"The balance should be nil",
		"Find and explain every open item",
		"Identify offsetting entries that have not cleared",
		"Recommend how to resolve hanging items",
	},
	"deferred revenue": {
		"Show a waterfall: opening balance, additions, revenue recognized, closing balance",
		"Summarize by contract or customer where available",
	},
	"ppe": {
		"Check the depreciation setup and rates",
		"Note fully depreciated assets still in use",
		"Flag disposals and impairments",
	},
	"intercompany": {
		"Summarize by counterparty entity",
		"Recommend an intercompany reconciliation",
		"Flag old or unusual balances",
		"Look for offsetting balances between entities",
	},
}

var defaultRules = []string{
	"Summarize transactions by posting period",
	"Summarize descriptions and memos",
	"Identify unusual or large transactions",
	"Note any patterns or concerns",
}

// AccountRules returns the analysis checklist for a subcategory as bullet lines.
// Unknown subcategories get the general checklist.
func AccountRules(subcategory string) string {
	rules, ok := accountRules[strings.ToLower(strings.TrimSpace(subcategory))]
	if !ok {
		rules = defaultRules
	}
	var b strings.Builder
	for _, r := range rules {
		b.WriteString("- " + r + "\n")
	}
	return b.String()
}

const (
	minClassificationTokens = 16384
	maxClassificationTokens = 32000
	tokensPerAccount        = 100
	tokenOverhead           = 2000

	// ReconciliationMaxTokens bounds the Output B & C response.
	ReconciliationMaxTokens = 16384
	// AccountMaxTokens bounds per-account reconciliation and chat responses.
	AccountMaxTokens = 4096
)

// EstimateMaxTokens sizes the classification response for n accounts.
func EstimateMaxTokens(n int) int32 {
	est := tokensPerAccount*n + tokenOverhead
	if est < minClassificationTokens {
		est = minClassificationTokens
	}
	if est > maxClassificationTokens {
		est = maxClassificationTokens
	}
	return int32(est)
}
