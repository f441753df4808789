package notionsync

import (
	"time"

	"github.com/jomei/notionapi"

	"github.com/kevalkarani/balance-sheet-buddy/internal/domain"
	"github.com/kevalkarani/balance-sheet-buddy/internal/reconciliation"
)

// Checklist database property names.
const (
	PropAccount       = "Account"
	PropSession       = "Session"
	PropCategory      = "Category"
	PropSubcategory   = "Subcategory"
	PropDebit         = "Debit"
	PropCredit        = "Credit"
	PropBalanceType   = "Balance Type"
	PropStatus        = "Status"
	PropReconciled    = "Reconciled"
	PropReconciledAt  = "Reconciled At"
	PropMemo          = "Memo"
	PropGLTransaction = "GL Transactions"
)

// maxRichText is the Notion limit for one rich text object.
const maxRichText = 2000

func richText(content string) []notionapi.RichText {
	if r := []rune(content); len(r) > maxRichText {
		content = string(r[:maxRichText])
	}
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{
				Content: content,
			},
		},
	}
}

func selectOption(name string) notionapi.SelectProperty {
	return notionapi.SelectProperty{
		Select: notionapi.Option{
			Name: name,
		},
	}
}

// AccountToNotionProperties converts one classified account and its
// reconciliation entry to checklist page properties.
func AccountToNotionProperties(sessionID string, rec domain.ClassificationRecord, entry reconciliation.Entry) notionapi.Properties {
	debit, _ := rec.Debit.Round(2).Float64()
	credit, _ := rec.Credit.Round(2).Float64()

	props := notionapi.Properties{
		PropAccount: notionapi.TitleProperty{
			Title: richText(rec.Account),
		},
		PropSession: notionapi.RichTextProperty{
			RichText: richText(sessionID),
		},
		PropDebit:         notionapi.NumberProperty{Number: debit},
		PropCredit:        notionapi.NumberProperty{Number: credit},
		PropReconciled:    notionapi.CheckboxProperty{Checkbox: entry.Reconciled},
		PropGLTransaction: notionapi.NumberProperty{Number: float64(entry.GLRows)},
	}

	// Select options cannot be empty
	if rec.Category != "" {
		props[PropCategory] = selectOption(rec.Category)
	}
	if rec.Subcategory != "" {
		props[PropSubcategory] = selectOption(rec.Subcategory)
	}
	if rec.BalanceType != "" {
		props[PropBalanceType] = selectOption(string(rec.BalanceType))
	}
	if rec.Status != "" {
		props[PropStatus] = selectOption(string(rec.Status))
	}

	props[PropMemo] = notionapi.RichTextProperty{
		RichText: richText(entry.Memo),
	}

	if entry.Reconciled && !entry.Timestamp.IsZero() {
		props[PropReconciledAt] = notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: func() *notionapi.Date {
					d := notionapi.Date(entry.Timestamp.UTC().Truncate(time.Second))
					return &d
				}(),
			},
		}
	}

	return props
}

// extractAccount returns the account title of a checklist page.
func extractAccount(page notionapi.Page) string {
	if prop, ok := page.Properties[PropAccount]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			if len(title.Title) > 0 {
				return title.Title[0].PlainText
			}
		}
	}
	return ""
}
