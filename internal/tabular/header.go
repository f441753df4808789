package tabular

import (
	"strings"
)

// DefaultHeaderScanRows is how many leading rows are searched for the header.
const DefaultHeaderScanRows = 20

// Column roles.
const (
	RoleAccount     = "Account"
	RoleDebit       = "Debit"
	RoleCredit      = "Credit"
	RoleDate        = "Date"
	RoleDescription = "Description"
	RoleCategory    = "Category"
	RoleSubcategory = "Subcategory"
)

// columnRule assigns a role to the first unclaimed header its predicate accepts.
// Predicates see the lowercased, trimmed header text.
type columnRule struct {
	role    string
	matches func(header string) bool
}

func contains(tokens ...string) func(string) bool {
	return func(h string) bool {
		for _, t := range tokens {
			if strings.Contains(h, t) {
				return true
			}
		}
		return false
	}
}

func equals(token string) func(string) bool {
	return func(h string) bool { return h == token }
}

var (
	trialBalanceColumns = []columnRule{
		{RoleAccount, contains("account")},
		{RoleDebit, contains("debit")},
		{RoleCredit, contains("credit")},
	}

	glColumns = []columnRule{
		{RoleAccount, contains("account")},
		{RoleDate, contains("date")},
		{RoleDescription, contains("description", "memo", "narration")},
		{RoleDebit, contains("debit")},
		{RoleCredit, contains("credit")},
	}

	mappingColumns = []columnRule{
		{RoleAccount, contains("account")},
		{RoleCategory, equals("category")},
		{RoleSubcategory, contains("subcategory")},
	}
)

var (
	ledgerHeaderTokens  = []string{"account", "debit", "credit"}
	mappingHeaderTokens = []string{"account", "category"}
)

// findHeader returns the index of the first row among the first limit rows
// whose joined, lowercased cells contain every token.
func findHeader(rows [][]string, tokens []string, limit int) (int, bool) {
	if limit <= 0 {
		limit = DefaultHeaderScanRows
	}
	for i := 0; i < len(rows) && i < limit; i++ {
		if rowHasTokens(rows[i], tokens) {
			return i, true
		}
	}
	return 0, false
}

func rowHasTokens(cells []string, tokens []string) bool {
	parts := make([]string, 0, len(cells))
	for _, c := range cells {
		if c = strings.TrimSpace(c); c != "" {
			parts = append(parts, strings.ToLower(c))
		}
	}
	joined := strings.Join(parts, " ")
	for _, t := range tokens {
		if !strings.Contains(joined, t) {
			return false
		}
	}
	return true
}

// assignColumns walks headers in order and maps each role to a column index.
// A header takes the first rule that accepts it and whose role is still free.
func assignColumns(headers []string, rules []columnRule) map[string]int {
	assigned := make(map[string]int, len(rules))
	for idx, raw := range headers {
		h := strings.ToLower(strings.TrimSpace(raw))
		if h == "" {
			continue
		}
		for _, rule := range rules {
			if _, taken := assigned[rule.role]; taken {
				continue
			}
			if rule.matches(h) {
				assigned[rule.role] = idx
				break
			}
		}
	}
	return assigned
}

// requireColumns reports a MissingColumnError when any required role is absent.
func requireColumns(headers []string, assigned map[string]int, required ...string) error {
	var missing []string
	for _, role := range required {
		if _, ok := assigned[role]; !ok {
			missing = append(missing, role)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	found := make([]string, 0, len(headers))
	for _, h := range headers {
		if h = strings.TrimSpace(h); h != "" {
			found = append(found, h)
		}
	}
	return &MissingColumnError{Missing: missing, Found: found}
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
