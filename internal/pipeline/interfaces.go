package pipeline

import (
	"context"

	"github.com/kevalkarani/balance-sheet-buddy/internal/domain"
)

// StorageService is an interface for storage operations.
type StorageService interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
	ExtractFilenameFromGCSURI(uri string) string
}

// RunRecorder keeps a history of analysis runs.
// *bigquery.RunRepository satisfies it; a nil RunRecorder disables recording.
type RunRecorder interface {
	// StartRun creates a run with status RUNNING and returns its id.
	StartRun(ctx context.Context, sessionID, mode string, accounts int) (string, error)
	InsertModelOutput(ctx context.Context, runID, stage, modelName, text string) error
	InsertClassificationRecords(ctx context.Context, runID string, records []domain.ClassificationRecord) error
	MarkRunSucceeded(ctx context.Context, runID, source string) error
	// MarkRunFailed is best effort and only logs its own failures.
	MarkRunFailed(ctx context.Context, runID string, runErr error)
}
