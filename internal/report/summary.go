package report

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kevalkarani/balance-sheet-buddy/internal/domain"
	"github.com/kevalkarani/balance-sheet-buddy/internal/prompts"
	"github.com/shopspring/decimal"
)

var (
	executiveSummaryHeading = regexp.MustCompile(`(?is)OUTPUT C.*?EXECUTIVE SUMMARY[^\n]*\n(.*)`)

	passWord     = regexp.MustCompile(`(?i)\bPASS\b`)
	mismatchWord = regexp.MustCompile(`(?i)\bMISMATCH\b`)
	unmappedWord = regexp.MustCompile(`(?i)\bUnmapped\b`)

	balanceTolerance = decimal.New(1, -2)
)

// ExecutiveSummary returns the text following the Output C heading line, or
// the whole text when there is no such heading.
func ExecutiveSummary(text string) string {
	if m := executiveSummaryHeading.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

// CategoryStats counts statuses within one category.
type CategoryStats struct {
	Total    int `json:"total"`
	Pass     int `json:"pass"`
	Mismatch int `json:"mismatch"`
}

// SummaryStats are headline figures for a classification.
type SummaryStats struct {
	TotalAccounts    int                      `json:"total_accounts"`
	PassCount        int                      `json:"pass_count"`
	MismatchCount    int                      `json:"mismatch_count"`
	UnmappedCount    int                      `json:"unmapped_count"`
	OtherStatusCount int                      `json:"other_status_count"`
	ByCategory       map[string]int           `json:"by_category,omitempty"`
	ByStatus         map[string]CategoryStats `json:"by_status,omitempty"`
	TotalDebit       decimal.Decimal          `json:"total_debit"`
	TotalCredit      decimal.Decimal          `json:"total_credit"`
	// HasTotals is false for stats counted from raw text.
	HasTotals bool `json:"has_totals"`
}

// Difference is the absolute gap between total debits and credits.
func (s SummaryStats) Difference() decimal.Decimal {
	return s.TotalDebit.Sub(s.TotalCredit).Abs()
}

// Balanced reports whether debits and credits agree within a cent.
func (s SummaryStats) Balanced() bool {
	return s.Difference().LessThan(balanceTolerance)
}

// Stats computes summary figures from classification records.
func Stats(records []domain.ClassificationRecord) SummaryStats {
	s := SummaryStats{
		TotalAccounts: len(records),
		ByCategory:    make(map[string]int),
		ByStatus:      make(map[string]CategoryStats),
		TotalDebit:    decimal.Zero,
		TotalCredit:   decimal.Zero,
		HasTotals:     true,
	}
	for _, r := range records {
		status := strings.ToUpper(strings.TrimSpace(string(r.Status)))
		cat := s.ByStatus[r.Category]
		cat.Total++
		switch status {
		case string(domain.StatusPass):
			s.PassCount++
			cat.Pass++
		case string(domain.StatusMismatch):
			s.MismatchCount++
			cat.Mismatch++
		case "":
		default:
			s.OtherStatusCount++
		}
		s.ByStatus[r.Category] = cat
		s.ByCategory[r.Category]++
		if r.Category == domain.UnmappedCategory {
			s.UnmappedCount++
		}
		s.TotalDebit = s.TotalDebit.Add(r.Debit)
		s.TotalCredit = s.TotalCredit.Add(r.Credit)
	}
	return s
}

// StatsFromText counts PASS, MISMATCH and Unmapped words in raw model output.
// It is the fallback when no records are available.
func StatsFromText(text string) SummaryStats {
	s := SummaryStats{
		PassCount:     len(passWord.FindAllStringIndex(text, -1)),
		MismatchCount: len(mismatchWord.FindAllStringIndex(text, -1)),
		UnmappedCount: len(unmappedWord.FindAllStringIndex(text, -1)),
	}
	s.TotalAccounts = s.PassCount + s.MismatchCount
	return s
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// SummaryText renders stats, and the mismatched records, as a plain-text report.
func SummaryText(s SummaryStats, records []domain.ClassificationRecord) string {
	var b strings.Builder
	line := strings.Repeat("=", 60)
	thin := strings.Repeat("-", 60)

	b.WriteString("ANALYSIS SUMMARY\n" + line + "\n\n")
	fmt.Fprintf(&b, "Total Accounts Analyzed: %d\n", s.TotalAccounts)
	fmt.Fprintf(&b, "PASS: %d (%.1f%%)\n", s.PassCount, percent(s.PassCount, s.TotalAccounts))
	fmt.Fprintf(&b, "MISMATCH: %d (%.1f%%)\n", s.MismatchCount, percent(s.MismatchCount, s.TotalAccounts))
	fmt.Fprintf(&b, "Unmapped Accounts: %d\n", s.UnmappedCount)
	if s.OtherStatusCount > 0 {
		fmt.Fprintf(&b, "Other Status: %d\n", s.OtherStatusCount)
	}
	if missing := s.TotalAccounts - s.PassCount - s.MismatchCount - s.OtherStatusCount; missing > 0 {
		fmt.Fprintf(&b, "WARNING: %d accounts with empty/missing Status\n", missing)
	}
	b.WriteString("\n")

	if s.HasTotals {
		diff := s.Difference()
		b.WriteString("TRIAL BALANCE TOTALS:\n")
		fmt.Fprintf(&b, "   Total Debits:  %s\n", prompts.FormatAmount(s.TotalDebit))
		fmt.Fprintf(&b, "   Total Credits: %s\n", prompts.FormatAmount(s.TotalCredit))
		fmt.Fprintf(&b, "   Difference:    %s\n", prompts.FormatAmount(diff))
		if s.Balanced() {
			b.WriteString("   Trial Balance is BALANCED\n")
		} else {
			fmt.Fprintf(&b, "   Trial Balance OUT OF BALANCE by %s\n", prompts.FormatAmount(diff))
		}
		b.WriteString("\n")
	}

	var mismatched []domain.ClassificationRecord
	for _, r := range records {
		if strings.EqualFold(string(r.Status), string(domain.StatusMismatch)) {
			mismatched = append(mismatched, r)
		}
	}
	if len(mismatched) > 0 {
		b.WriteString("ACCOUNTS REQUIRING REVIEW:\n" + thin + "\n")
		for _, r := range mismatched {
			fmt.Fprintf(&b, "   - %s (%s) - %s\n", r.Account, r.Category, prompts.FormatAmount(r.Amount))
		}
		b.WriteString("\n")
	}

	if len(s.ByCategory) > 0 {
		b.WriteString("BREAKDOWN BY CATEGORY:\n" + thin + "\n")
		for _, cat := range categoriesByCount(s.ByCategory) {
			count := s.ByCategory[cat]
			fmt.Fprintf(&b, "   %-20s: %3d accounts (%5.1f%%)", cat, count, percent(count, s.TotalAccounts))
			if cs, ok := s.ByStatus[cat]; ok {
				fmt.Fprintf(&b, " (PASS %d | MISMATCH %d)", cs.Pass, cs.Mismatch)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(line + "\n")
	if s.MismatchCount == 0 {
		b.WriteString("ALL ACCOUNTS VALIDATED SUCCESSFULLY\n")
	} else {
		fmt.Fprintf(&b, "ATTENTION REQUIRED: %d account(s) need review\n", s.MismatchCount)
	}
	b.WriteString(line)
	return b.String()
}

// categoriesByCount orders categories by descending count, then by name.
func categoriesByCount(counts map[string]int) []string {
	cats := make([]string, 0, len(counts))
	for c := range counts {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool {
		if counts[cats[i]] != counts[cats[j]] {
			return counts[cats[i]] > counts[cats[j]]
		}
		return cats[i] < cats[j]
	})
	return cats
}
