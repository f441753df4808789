package reconciliation

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kevalkarani/balance-sheet-buddy/internal/domain"
	"github.com/kevalkarani/balance-sheet-buddy/internal/llm"
	"github.com/kevalkarani/balance-sheet-buddy/internal/prompts"
)

// Analysis is the model's reconciliation of one account.
type Analysis struct {
	Account string `json:"account"`
	Text    string `json:"text"`
	GLRows  int    `json:"gl_rows"`
}

// Reconciler asks the model to reconcile single accounts against the GL.
type Reconciler struct {
	client  llm.Client
	timeout time.Duration
}

// NewReconciler creates a Reconciler. timeout <= 0 means no extra deadline.
func NewReconciler(client llm.Client, timeout time.Duration) *Reconciler {
	return &Reconciler{client: client, timeout: timeout}
}

// Reconcile analyses record using the GL entries booked to its account.
func (r *Reconciler) Reconcile(ctx context.Context, record domain.ClassificationRecord, entries []domain.GLEntry) (Analysis, error) {
	matched := prompts.FilterGL(entries, record.Account)
	prompt := prompts.AccountReconciliation(record, prompts.FormatGL(entries, record.Account))

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	text, err := r.client.Generate(ctx, llm.Request{Prompt: prompt, MaxOutputTokens: prompts.AccountMaxTokens})
	if err != nil {
		return Analysis{}, fmt.Errorf("Reconcile: %s: %w", record.Account, err)
	}
	return Analysis{
		Account: record.Account,
		Text:    llm.StripCodeFences(text),
		GLRows:  len(matched),
	}, nil
}

var memoSection = regexp.MustCompile(`(?is)MEMO:(?:\*\*)?\s*(.*?)(?:\n\s*(?:#+\s*)?(?:\*\*)?SCHEDULE:|\z)`)

// ExtractMemo returns the MEMO section of an analysis, or the whole text when
// there is none.
func ExtractMemo(text string) string {
	if m := memoSection.FindStringSubmatch(text); m != nil {
		if memo := strings.TrimSpace(m[1]); memo != "" {
			return memo
		}
	}
	return strings.TrimSpace(text)
}
