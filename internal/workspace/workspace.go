// Package workspace combines stored sessions with their reconciliation state
// and runs the follow-up work on them: per-account reconciliation, marking
// accounts and GL chat.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kevalkarani/balance-sheet-buddy/internal/domain"
	"github.com/kevalkarani/balance-sheet-buddy/internal/llm"
	"github.com/kevalkarani/balance-sheet-buddy/internal/logger"
	"github.com/kevalkarani/balance-sheet-buddy/internal/pipeline"
	"github.com/kevalkarani/balance-sheet-buddy/internal/prompts"
	"github.com/kevalkarani/balance-sheet-buddy/internal/reconciliation"
	"github.com/kevalkarani/balance-sheet-buddy/internal/session"
)

// ErrUnknownAccount is returned for an account not in the session.
var ErrUnknownAccount = errors.New("account not found in session")

// Options tune a Service.
type Options struct {
	ModelTimeout time.Duration
	ChatMaxRows  int
	Now          func() time.Time
}

// Service opens and updates sessions.
type Service struct {
	sessions *session.Manager
	states   *reconciliation.FileStore
	client   llm.Client
	opts     Options
}

// NewService creates a Service. client may be nil when no model work is needed.
func NewService(sessions *session.Manager, states *reconciliation.FileStore, client llm.Client, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{sessions: sessions, states: states, client: client, opts: opts}
}

// Sessions returns the underlying session manager.
func (s *Service) Sessions() *session.Manager { return s.sessions }

// Save stores an analysis result as a session, carrying over any reconciliation
// state already recorded for the same ledger.
func (s *Service) Save(res *pipeline.Result) (string, error) {
	state, err := s.states.Load(reconciliation.SessionKey(res.Ledger))
	if err != nil {
		return "", fmt.Errorf("Save: %w", err)
	}
	path, err := s.sessions.AutoSave(res.Snapshot(state))
	if err != nil {
		return "", fmt.Errorf("Save: %w", err)
	}
	return path, nil
}

// Workspace is an opened session.
type Workspace struct {
	Snapshot *session.Snapshot
	Tracker  *reconciliation.Tracker
	key      string
}

// Open loads the session id. The reconciliation state file wins over the
// state embedded in the snapshot when it has entries.
func (s *Service) Open(id string) (*Workspace, error) {
	snap, err := s.sessions.AutoLoad(id)
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}
	key := reconciliation.SessionKey(snap.Data.Ledger)
	state, err := s.states.Load(key)
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}
	if len(state) == 0 {
		state = snap.Data.ReconciliationState
	}
	return &Workspace{Snapshot: snap, Tracker: reconciliation.NewTracker(state), key: key}, nil
}

// Records returns the classified records of the session.
func (w *Workspace) Records() []domain.ClassificationRecord {
	return w.Snapshot.Data.Classification
}

// Record finds the classification record for account by trimmed exact match.
func (w *Workspace) Record(account string) (domain.ClassificationRecord, error) {
	account = strings.TrimSpace(account)
	for _, r := range w.Snapshot.Data.Classification {
		if strings.TrimSpace(r.Account) == account {
			return r, nil
		}
	}
	return domain.ClassificationRecord{}, fmt.Errorf("%q: %w", account, ErrUnknownAccount)
}

// Analysis returns the stored model analysis for account.
func (w *Workspace) Analysis(account string) (reconciliation.Analysis, bool) {
	a, ok := w.Snapshot.Data.AccountAnalyses[account]
	return a, ok
}

// Progress counts reconciled accounts.
func (w *Workspace) Progress() reconciliation.Progress {
	return w.Tracker.Progress(w.Records())
}

// Filter selects records by reconciliation filter and subcategory.
func (w *Workspace) Filter(f reconciliation.Filter, subcategory string) []domain.ClassificationRecord {
	return w.Tracker.Filter(w.Records(), f, subcategory)
}

func (s *Service) persist(w *Workspace) error {
	state := w.Tracker.State()
	if err := s.states.Save(w.key, state); err != nil {
		return err
	}
	w.Snapshot.Data.ReconciliationState = state
	w.Snapshot.ExportTimestamp = s.opts.Now()
	if _, err := s.sessions.AutoSave(*w.Snapshot); err != nil {
		return err
	}
	return nil
}

// Reconcile asks the model to reconcile account and stores the analysis in
// the session. It does not mark the account reconciled.
func (s *Service) Reconcile(ctx context.Context, w *Workspace, account string) (reconciliation.Analysis, error) {
	record, err := w.Record(account)
	if err != nil {
		return reconciliation.Analysis{}, fmt.Errorf("Reconcile: %w", err)
	}
	if s.client == nil {
		return reconciliation.Analysis{}, fmt.Errorf("Reconcile: no model client configured")
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("session_id", w.Snapshot.SessionID).
		Str("account", record.Account).
		Msg("reconciling account")

	analysis, err := reconciliation.NewReconciler(s.client, s.opts.ModelTimeout).Reconcile(ctx, record, w.Snapshot.Data.GLEntries)
	if err != nil {
		return reconciliation.Analysis{}, err
	}
	if w.Snapshot.Data.AccountAnalyses == nil {
		w.Snapshot.Data.AccountAnalyses = map[string]reconciliation.Analysis{}
	}
	w.Snapshot.Data.AccountAnalyses[record.Account] = analysis
	if err := s.persist(w); err != nil {
		return analysis, fmt.Errorf("Reconcile: %w", err)
	}
	return analysis, nil
}

// MarkReconciled marks account reconciled. An empty memo is taken from the
// MEMO section of the stored analysis.
func (s *Service) MarkReconciled(w *Workspace, account, memo string) (reconciliation.Entry, error) {
	record, err := w.Record(account)
	if err != nil {
		return reconciliation.Entry{}, fmt.Errorf("MarkReconciled: %w", err)
	}
	analysis, ok := w.Analysis(record.Account)
	glRows := len(prompts.FilterGL(w.Snapshot.Data.GLEntries, record.Account))
	if ok {
		glRows = analysis.GLRows
		if strings.TrimSpace(memo) == "" {
			memo = reconciliation.ExtractMemo(analysis.Text)
		}
	}
	w.Tracker.MarkReconciled(record.Account, strings.TrimSpace(memo), glRows)
	if err := s.persist(w); err != nil {
		return reconciliation.Entry{}, fmt.Errorf("MarkReconciled: %w", err)
	}
	entry, _ := w.Tracker.Entry(record.Account)
	return entry, nil
}

// MarkNotReconciled clears the reconciled flag of account.
func (s *Service) MarkNotReconciled(w *Workspace, account string) (reconciliation.Entry, error) {
	record, err := w.Record(account)
	if err != nil {
		return reconciliation.Entry{}, fmt.Errorf("MarkNotReconciled: %w", err)
	}
	w.Tracker.MarkNotReconciled(record.Account)
	if err := s.persist(w); err != nil {
		return reconciliation.Entry{}, fmt.Errorf("MarkNotReconciled: %w", err)
	}
	entry, _ := w.Tracker.Entry(record.Account)
	return entry, nil
}

// Report renders the reconciliation report of account.
func (s *Service) Report(w *Workspace, account string) (string, error) {
	record, err := w.Record(account)
	if err != nil {
		return "", fmt.Errorf("Report: %w", err)
	}
	analysis, ok := w.Analysis(record.Account)
	if !ok {
		return "", fmt.Errorf("Report: %s has not been analysed yet", record.Account)
	}
	entry, _ := w.Tracker.Entry(record.Account)
	return reconciliation.Report(record, analysis, entry), nil
}

// Chat starts a GL chat over the session's entries, continuing history.
func (s *Service) Chat(w *Workspace, history []llm.Message) *pipeline.Chat {
	return pipeline.NewChat(s.client, w.Snapshot.Data.GLEntries, s.opts.ChatMaxRows, s.opts.ModelTimeout).WithHistory(history)
}
