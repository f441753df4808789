// Package bigquery persists analysis run history: one analysis_runs row per
// run, the raw model outputs and the assembled classification records.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/kevalkarani/balance-sheet-buddy/internal/domain"
)

// RunRepository is the BigQuery-backed run recorder. It holds a shared
// client to avoid creating a new connection for each operation.
type RunRepository struct {
	client  *bigquery.Client
	dataset string
}

// NewRunRepository creates a RunRepository for project and dataset.
func NewRunRepository(ctx context.Context, project, dataset string) (*RunRepository, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("NewRunRepository: creating client: %w", err)
	}
	return &RunRepository{client: client, dataset: dataset}, nil
}

// Close closes the BigQuery client connection. This should be called when
// the repository is no longer needed to release resources.
func (r *RunRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// StartRun delegates to StartRunWithClient with the shared client.
func (r *RunRepository) StartRun(ctx context.Context, sessionID, mode string, accounts int) (string, error) {
	return StartRunWithClient(ctx, r.client, r.dataset, sessionID, mode, accounts)
}

// InsertModelOutput delegates to InsertModelOutputWithClient with the shared client.
func (r *RunRepository) InsertModelOutput(ctx context.Context, runID, stage, modelName, text string) error {
	return InsertModelOutputWithClient(ctx, r.client, r.dataset, &ModelOutputRow{
		RunID:     runID,
		Stage:     stage,
		ModelName: modelName,
		Text:      text,
	})
}

// InsertClassificationRecords delegates to InsertClassificationRecordsWithClient with the shared client.
func (r *RunRepository) InsertClassificationRecords(ctx context.Context, runID string, records []domain.ClassificationRecord) error {
	return InsertClassificationRecordsWithClient(ctx, r.client, r.dataset, runID, records)
}

// MarkRunSucceeded delegates to MarkRunSucceededWithClient with the shared client.
func (r *RunRepository) MarkRunSucceeded(ctx context.Context, runID, source string) error {
	return MarkRunSucceededWithClient(ctx, r.client, r.dataset, runID, source)
}

// MarkRunFailed delegates to MarkRunFailedWithClient with the shared client.
func (r *RunRepository) MarkRunFailed(ctx context.Context, runID string, runErr error) {
	MarkRunFailedWithClient(ctx, r.client, r.dataset, runID, runErr)
}

// ListRuns delegates to ListRunsWithClient with the shared client.
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]*AnalysisRunRow, error) {
	return ListRunsWithClient(ctx, r.client, r.dataset, limit)
}
