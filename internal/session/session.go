// Package session saves and restores complete analysis sessions as JSON snapshots.
package session

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kevalkarani/balance-sheet-buddy/internal/domain"
	"github.com/kevalkarani/balance-sheet-buddy/internal/reconciliation"
)

// Version is written to every exported snapshot.
const Version = "1.0"

// ErrInvalidSnapshot is returned by Import for data that is not a session snapshot.
var ErrInvalidSnapshot = errors.New("invalid session snapshot")

// Data is the analysis content of a session.
type Data struct {
	Mode                 string                             `json:"mode,omitempty"`
	Classification       []domain.ClassificationRecord      `json:"classification"`
	Ledger               []domain.LedgerRow                 `json:"ledger"`
	GLEntries            []domain.GLEntry                   `json:"gl_entries"`
	ClassificationResult string                             `json:"classification_result"`
	ReconciliationResult string                             `json:"reconciliation_result"`
	ExecutiveSummary     string                             `json:"executive_summary,omitempty"`
	SummaryText          string                             `json:"summary_text,omitempty"`
	ExcelOutput          []byte                             `json:"excel_output"`
	ReportHTML           string                             `json:"report_html,omitempty"`
	ReconciliationState  reconciliation.State               `json:"reconciliation_state"`
	AccountAnalyses      map[string]reconciliation.Analysis `json:"account_analyses,omitempty"`
	AnalysisComplete     bool                               `json:"analysis_complete"`
}

// Snapshot is one exported session.
type Snapshot struct {
	Version         string    `json:"version"`
	ExportTimestamp time.Time `json:"export_timestamp"`
	SessionID       string    `json:"session_id"`
	Data            Data      `json:"data"`
}

// NewID derives a session id from the ledger content and the current time:
// session_<first 8 hex chars of md5(ledger JSON)>_<YYYYmmdd_HHMMSS>.
func NewID(rows []domain.LedgerRow, now time.Time) string {
	payload, err := json.Marshal(rows)
	if err != nil {
		payload = []byte(fmt.Sprint(rows))
	}
	sum := md5.Sum(payload)
	return fmt.Sprintf("session_%s_%s", hex.EncodeToString(sum[:])[:8], now.Format("20060102_150405"))
}

// Export encodes s. A missing Version or ExportTimestamp is filled in.
func Export(s Snapshot) ([]byte, error) {
	if s.Version == "" {
		s.Version = Version
	}
	if s.ExportTimestamp.IsZero() {
		s.ExportTimestamp = time.Now()
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("Export: %w", err)
	}
	return data, nil
}

// Import decodes a snapshot. The document must carry both "version" and "data".
func Import(raw []byte) (*Snapshot, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("Import: %w: %v", ErrInvalidSnapshot, err)
	}
	for _, key := range []string{"version", "data"} {
		if _, ok := probe[key]; !ok {
			return nil, fmt.Errorf("Import: %w: missing %q", ErrInvalidSnapshot, key)
		}
	}

	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("Import: %w: %v", ErrInvalidSnapshot, err)
	}
	return &s, nil
}

// Describe summarises a snapshot in one line.
func Describe(s *Snapshot) string {
	state := "in progress"
	if s.Data.AnalysisComplete {
		state = "complete"
	}
	reconciled := 0
	for _, e := range s.Data.ReconciliationState {
		if e.Reconciled {
			reconciled++
		}
	}
	return fmt.Sprintf("%s (exported %s): %d accounts, %d GL entries, %d reconciled, analysis %s",
		s.SessionID,
		s.ExportTimestamp.Format("2006-01-02 15:04:05"),
		len(s.Data.Ledger),
		len(s.Data.GLEntries),
		reconciled,
		state,
	)
}
