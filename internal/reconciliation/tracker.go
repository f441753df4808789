// Package reconciliation tracks which accounts of a session have been
// reconciled against the GL and produces per-account reconciliation analyses.
package reconciliation

import (
	"fmt"
	"strings"
	"time"

	"github.com/kevalkarani/balance-sheet-buddy/internal/domain"
)

// Entry is the reconciliation state of one account.
type Entry struct {
	Reconciled bool      `json:"reconciled"`
	Timestamp  time.Time `json:"timestamp"`
	Memo       string    `json:"memo"`
	GLRows     int       `json:"gl_rows"`
}

// State maps account text to its Entry.
type State map[string]Entry

// Filter selects records for review.
type Filter string

const (
	FilterAll           Filter = "all"
	FilterNotReconciled Filter = "not-reconciled"
	FilterReconciled    Filter = "reconciled"
	FilterMismatch      Filter = "mismatch"
)

// ParseFilter maps a filter name onto a Filter. Empty selects FilterAll.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterNotReconciled, FilterReconciled, FilterMismatch:
		return f, nil
	}
	return "", fmt.Errorf("ParseFilter: unknown filter %q", s)
}

// Progress counts reconciled accounts.
type Progress struct {
	Total      int `json:"total"`
	Reconciled int `json:"reconciled"`
}

// Percent is the reconciled share in [0, 100].
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Reconciled) / float64(p.Total) * 100
}

// Tracker holds the reconciliation state of one session. It is not safe for
// concurrent use.
type Tracker struct {
	state State
	now   func() time.Time
}

// NewTracker wraps state, which may be nil.
func NewTracker(state State) *Tracker {
	t := &Tracker{state: make(State, len(state)), now: time.Now}
	for k, v := range state {
		t.state[k] = v
	}
	return t
}

// MarkReconciled records account as reconciled with the given memo.
func (t *Tracker) MarkReconciled(account, memo string, glRows int) {
	t.state[account] = Entry{
		Reconciled: true,
		Timestamp:  t.now(),
		Memo:       memo,
		GLRows:     glRows,
	}
}

// MarkNotReconciled clears the reconciled flag and keeps the last memo.
func (t *Tracker) MarkNotReconciled(account string) {
	e := t.state[account]
	e.Reconciled = false
	e.Timestamp = t.now()
	t.state[account] = e
}

// IsReconciled reports whether account has been marked reconciled.
func (t *Tracker) IsReconciled(account string) bool {
	return t.state[account].Reconciled
}

// Entry returns the stored entry for account.
func (t *Tracker) Entry(account string) (Entry, bool) {
	e, ok := t.state[account]
	return e, ok
}

// State returns a copy of the tracked state.
func (t *Tracker) State() State {
	out := make(State, len(t.state))
	for k, v := range t.state {
		out[k] = v
	}
	return out
}

// Progress counts the records that are reconciled.
func (t *Tracker) Progress(records []domain.ClassificationRecord) Progress {
	p := Progress{Total: len(records)}
	for _, r := range records {
		if t.IsReconciled(r.Account) {
			p.Reconciled++
		}
	}
	return p
}

// Filter returns the records matching f, restricted to subcategory when it is
// not empty. Subcategory matching ignores case.
func (t *Tracker) Filter(records []domain.ClassificationRecord, f Filter, subcategory string) []domain.ClassificationRecord {
	subcategory = strings.TrimSpace(subcategory)
	var out []domain.ClassificationRecord
	for _, r := range records {
		if subcategory != "" && !strings.EqualFold(strings.TrimSpace(r.Subcategory), subcategory) {
			continue
		}
		switch f {
		case FilterNotReconciled:
			if t.IsReconciled(r.Account) {
				continue
			}
		case FilterReconciled:
			if !t.IsReconciled(r.Account) {
				continue
			}
		case FilterMismatch:
			if r.Status != domain.StatusMismatch {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}
