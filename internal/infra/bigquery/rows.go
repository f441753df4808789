package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
)

// Run statuses stored in analysis_runs.status.
const (
	StatusRunning = "RUNNING"
	StatusFailed  = "FAILED"
	StatusSuccess = "SUCCESS"
)

type AnalysisRunRow struct {
	RunID     string `bigquery:"run_id"`     // REQUIRED
	SessionID string `bigquery:"session_id"` // REQUIRED
	Mode      string `bigquery:"mode"`       // REQUIRED
	Accounts  int64  `bigquery:"accounts"`   // REQUIRED

	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	Status       string              `bigquery:"status"`        // REQUIRED
	Source       bigquery.NullString `bigquery:"source"`        // NULLABLE (model | fallback)
	ErrorMessage bigquery.NullString `bigquery:"error_message"` // NULLABLE
}

type ModelOutputRow struct {
	OutputID  string `bigquery:"output_id"`  // REQUIRED
	RunID     string `bigquery:"run_id"`     // REQUIRED
	Stage     string `bigquery:"stage"`      // REQUIRED (classification | reconciliation)
	ModelName string `bigquery:"model_name"` // REQUIRED

	Text      string    `bigquery:"text"`       // REQUIRED
	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

type ClassificationRecordRow struct {
	RunID    string `bigquery:"run_id"`   // REQUIRED
	Position int64  `bigquery:"position"` // REQUIRED

	Account     string `bigquery:"account"`     // REQUIRED
	Category    string `bigquery:"category"`    // REQUIRED
	Subcategory string `bigquery:"subcategory"` // REQUIRED

	Debit  *big.Rat `bigquery:"debit"`  // NUMERIC
	Credit *big.Rat `bigquery:"credit"` // NUMERIC
	Amount *big.Rat `bigquery:"amount"` // NUMERIC

	BalanceType string `bigquery:"balance_type"` // REQUIRED
	Status      string `bigquery:"status"`       // REQUIRED
	Commentary  string `bigquery:"commentary"`   // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}
