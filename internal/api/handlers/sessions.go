package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kevalkarani/balance-sheet-buddy/internal/api/middleware"
	"github.com/kevalkarani/balance-sheet-buddy/internal/domain"
	"github.com/kevalkarani/balance-sheet-buddy/internal/llm"
	"github.com/kevalkarani/balance-sheet-buddy/internal/reconciliation"
	"github.com/kevalkarani/balance-sheet-buddy/internal/report"
	"github.com/kevalkarani/balance-sheet-buddy/internal/session"
	"github.com/kevalkarani/balance-sheet-buddy/internal/workspace"
)

// SessionsHandler serves stored sessions and the follow-up work on them.
type SessionsHandler struct {
	svc *workspace.Service
	log zerolog.Logger

	// mu serialises read-modify-write of session files.
	mu sync.Mutex
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(svc *workspace.Service, log zerolog.Logger) *SessionsHandler {
	return &SessionsHandler{svc: svc, log: log}
}

func (h *SessionsHandler) writeError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Session not found")
	case errors.Is(err, workspace.ErrUnknownAccount):
		middleware.WriteError(w, http.StatusNotFound, "Account not found")
	case errors.Is(err, session.ErrInvalidID), errors.Is(err, session.ErrInvalidSnapshot):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error().Err(err).Msg(msg)
		middleware.WriteError(w, http.StatusInternalServerError, msg)
	}
}

// ListSessions handles GET /api/sessions
func (h *SessionsHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	infos, err := h.svc.Sessions().List()
	if err != nil {
		h.writeError(w, err, "Failed to list sessions")
		return
	}
	if infos == nil {
		infos = []session.Info{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": infos,
		"count":    len(infos),
	})
}

// SessionResponse is the body of GET /api/sessions/{id}.
type SessionResponse struct {
	SessionID        string                        `json:"session_id"`
	ExportTimestamp  time.Time                     `json:"export_timestamp"`
	Description      string                        `json:"description"`
	Mode             string                        `json:"mode,omitempty"`
	Stats            report.SummaryStats           `json:"stats"`
	Balanced         bool                          `json:"balanced"`
	Progress         reconciliation.Progress       `json:"progress"`
	Records          []domain.ClassificationRecord `json:"records"`
	ExecutiveSummary string                        `json:"executive_summary,omitempty"`
	SummaryText      string                        `json:"summary_text,omitempty"`
}

// GetSession handles GET /api/sessions/{id}
func (h *SessionsHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	ws, err := h.svc.Open(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err, "Failed to load session")
		return
	}
	snap := ws.Snapshot
	stats := report.Stats(ws.Records())
	snap.Data.ReconciliationState = ws.Tracker.State()

	middleware.WriteJSON(w, http.StatusOK, SessionResponse{
		SessionID:        snap.SessionID,
		ExportTimestamp:  snap.ExportTimestamp,
		Description:      session.Describe(snap),
		Mode:             snap.Data.Mode,
		Stats:            stats,
		Balanced:         stats.Balanced(),
		Progress:         ws.Progress(),
		Records:          ws.Records(),
		ExecutiveSummary: snap.Data.ExecutiveSummary,
		SummaryText:      snap.Data.SummaryText,
	})
}

// ReportHTML handles GET /api/sessions/{id}/report.html
func (h *SessionsHandler) ReportHTML(w http.ResponseWriter, r *http.Request) {
	ws, err := h.svc.Open(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err, "Failed to load session")
		return
	}
	html := ws.Snapshot.Data.ReportHTML
	if html == "" {
		data := ws.Snapshot.Data
		summary := data.ExecutiveSummary
		if summary == "" {
			summary = data.SummaryText
		}
		html, err = report.CombinedHTML(report.ReportInput{
			Classification: data.ClassificationResult,
			Reconciliation: data.ReconciliationResult,
			Summary:        summary,
			Records:        data.Classification,
			GeneratedAt:    ws.Snapshot.ExportTimestamp,
		})
		if err != nil {
			h.writeError(w, err, "Failed to render report")
			return
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

// Workbook handles GET /api/sessions/{id}/classification.xlsx
func (h *SessionsHandler) Workbook(w http.ResponseWriter, r *http.Request) {
	ws, err := h.svc.Open(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err, "Failed to load session")
		return
	}
	data := ws.Snapshot.Data.ExcelOutput
	if len(data) == 0 {
		data, err = report.ClassificationWorkbook(ws.Records())
		if err != nil {
			h.writeError(w, err, "Failed to build workbook")
			return
		}
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="classification.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// AccountStatus is one account in the reconciliation listing.
type AccountStatus struct {
	domain.ClassificationRecord
	Reconciled bool                  `json:"reconciled"`
	Entry      *reconciliation.Entry `json:"entry,omitempty"`
	Analysed   bool                  `json:"analysed"`
}

// Reconciliation handles GET /api/sessions/{id}/reconciliation?filter=&subcategory=
func (h *SessionsHandler) Reconciliation(w http.ResponseWriter, r *http.Request) {
	filter, err := reconciliation.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	ws, err := h.svc.Open(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err, "Failed to load session")
		return
	}

	records := ws.Filter(filter, r.URL.Query().Get("subcategory"))
	accounts := make([]AccountStatus, 0, len(records))
	for _, rec := range records {
		status := AccountStatus{ClassificationRecord: rec, Reconciled: ws.Tracker.IsReconciled(rec.Account)}
		if e, ok := ws.Tracker.Entry(rec.Account); ok {
			status.Entry = &e
		}
		_, status.Analysed = ws.Analysis(rec.Account)
		accounts = append(accounts, status)
	}

	progress := ws.Progress()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":    ws.Snapshot.SessionID,
		"filter":        filter,
		"progress":      progress,
		"progress_text": reconciliation.ProgressText(progress),
		"accounts":      accounts,
		"count":         len(accounts),
	})
}

// Reconciliation actions accepted by ReconcileAccount.
const (
	ActionAnalyze     = "analyze"
	ActionReconcile   = "reconcile"
	ActionUnreconcile = "unreconcile"
)

// ReconcileRequest is the body of POST /api/sessions/{id}/reconciliation/{account}.
type ReconcileRequest struct {
	Action string `json:"action"`
	Memo   string `json:"memo,omitempty"`
}

// ReconcileAccount handles POST /api/sessions/{id}/reconciliation/{account}
func (h *SessionsHandler) ReconcileAccount(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	account := r.PathValue("account")

	h.mu.Lock()
	defer h.mu.Unlock()

	ws, err := h.svc.Open(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err, "Failed to load session")
		return
	}

	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case ActionAnalyze:
		analysis, err := h.svc.Reconcile(r.Context(), ws, account)
		if err != nil {
			h.writeError(w, err, "Failed to reconcile account")
			return
		}
		text, err := h.svc.Report(ws, account)
		if err != nil {
			h.writeError(w, err, "Failed to render reconciliation report")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"analysis": analysis,
			"memo":     reconciliation.ExtractMemo(analysis.Text),
			"report":   text,
		})
	case ActionReconcile:
		entry, err := h.svc.MarkReconciled(ws, account, req.Memo)
		if err != nil {
			h.writeError(w, err, "Failed to mark account reconciled")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"account":  account,
			"entry":    entry,
			"progress": ws.Progress(),
		})
	case ActionUnreconcile:
		entry, err := h.svc.MarkNotReconciled(ws, account)
		if err != nil {
			h.writeError(w, err, "Failed to mark account not reconciled")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"account":  account,
			"entry":    entry,
			"progress": ws.Progress(),
		})
	default:
		middleware.WriteError(w, http.StatusBadRequest, "action must be one of analyze, reconcile, unreconcile")
	}
}

// ChatRequest is the body of POST /api/sessions/{id}/chat.
type ChatRequest struct {
	Question string        `json:"question"`
	History  []llm.Message `json:"history,omitempty"`
}

// Chat handles POST /api/sessions/{id}/chat
func (h *SessionsHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "question is required")
		return
	}

	ws, err := h.svc.Open(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err, "Failed to load session")
		return
	}

	chat := h.svc.Chat(ws, req.History)
	answer, err := chat.Ask(r.Context(), req.Question)
	if err != nil {
		h.log.Error().Err(err).Str("session_id", ws.Snapshot.SessionID).Msg("Chat failed")
		middleware.WriteError(w, http.StatusBadGateway, "Model request failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"answer":  answer,
		"history": chat.History(),
	})
}
