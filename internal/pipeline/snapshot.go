package pipeline

import (
	"github.com/kevalkarani/balance-sheet-buddy/internal/reconciliation"
	"github.com/kevalkarani/balance-sheet-buddy/internal/session"
)

// Snapshot packs the result and the reconciliation state into a session snapshot.
func (r *Result) Snapshot(state reconciliation.State) session.Snapshot {
	return session.Snapshot{
		Version:   session.Version,
		SessionID: r.SessionID,
		Data: session.Data{
			Mode:                 string(r.Mode),
			Classification:       r.Records,
			Ledger:               r.Ledger,
			GLEntries:            r.GL,
			ClassificationResult: r.ClassificationText,
			ReconciliationResult: r.ReconciliationText,
			ExecutiveSummary:     r.ExecutiveSummary,
			SummaryText:          r.SummaryText,
			ExcelOutput:          r.Workbook,
			ReportHTML:           r.HTML,
			ReconciliationState:  state,
			AnalysisComplete:     true,
		},
	}
}
