package handlers

import (
	"net/http"
	"time"

	"github.com/kevalkarani/balance-sheet-buddy/internal/api/middleware"
)

// Routes are the handlers mounted by Register. Runs may be nil when run
// history is disabled.
type Routes struct {
	Analyses *AnalysesHandler
	Jobs     *JobsHandler
	Sessions *SessionsHandler
	Runs     *RunsHandler
}

// Register mounts every endpoint on mux.
func Register(mux *http.ServeMux, rt Routes) {
	mux.HandleFunc("POST /api/analyses", rt.Analyses.CreateAnalysis)

	mux.HandleFunc("GET /api/jobs", rt.Jobs.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", rt.Jobs.GetJob)

	mux.HandleFunc("GET /api/sessions", rt.Sessions.ListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", rt.Sessions.GetSession)
	mux.HandleFunc("GET /api/sessions/{id}/report.html", rt.Sessions.ReportHTML)
	mux.HandleFunc("GET /api/sessions/{id}/classification.xlsx", rt.Sessions.Workbook)
	mux.HandleFunc("GET /api/sessions/{id}/reconciliation", rt.Sessions.Reconciliation)
	mux.HandleFunc("POST /api/sessions/{id}/reconciliation/{account}", rt.Sessions.ReconcileAccount)
	mux.HandleFunc("POST /api/sessions/{id}/chat", rt.Sessions.Chat)

	if rt.Runs != nil {
		mux.HandleFunc("GET /api/runs", rt.Runs.ListRuns)
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
}
