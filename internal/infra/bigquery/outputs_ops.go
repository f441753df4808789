package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	"github.com/kevalkarani/balance-sheet-buddy/internal/domain"
)

const (
	modelOutputsTable          = "model_outputs"
	classificationRecordsTable = "classification_records"
)

// InsertModelOutputWithClient stores the raw text of one model call.
// Uses DML INSERT to avoid streaming buffer issues.
func InsertModelOutputWithClient(ctx context.Context, client *bigquery.Client, dataset string, row *ModelOutputRow) error {
	if row.OutputID == "" {
		row.OutputID = uuid.NewString()
	}
	if row.CreatedTS.IsZero() {
		row.CreatedTS = time.Now()
	}

	q := client.Query(fmt.Sprintf(`
		INSERT INTO %s (
			output_id, run_id, stage,
			model_name, text, created_ts
		)
		VALUES (
			@output_id, @run_id, @stage,
			@model_name, @text, @created_ts
		)
	`, tableRef(client, dataset, modelOutputsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "output_id", Value: row.OutputID},
		{Name: "run_id", Value: row.RunID},
		{Name: "stage", Value: row.Stage},
		{Name: "model_name", Value: row.ModelName},
		{Name: "text", Value: row.Text},
		{Name: "created_ts", Value: row.CreatedTS},
	}

	if err := runQuery(ctx, q); err != nil {
		return fmt.Errorf("InsertModelOutput: %w", err)
	}
	return nil
}

// ClassificationRows converts records into rows in ledger order.
func ClassificationRows(runID string, records []domain.ClassificationRecord, created time.Time) []*ClassificationRecordRow {
	rows := make([]*ClassificationRecordRow, 0, len(records))
	for i, r := range records {
		rows = append(rows, &ClassificationRecordRow{
			RunID:       runID,
			Position:    int64(i),
			Account:     r.Account,
			Category:    r.Category,
			Subcategory: r.Subcategory,
			Debit:       r.Debit.Rat(),
			Credit:      r.Credit.Rat(),
			Amount:      r.Amount.Rat(),
			BalanceType: string(r.BalanceType),
			Status:      string(r.Status),
			Commentary:  r.Commentary,
			CreatedTS:   created,
		})
	}
	return rows
}

// InsertClassificationRecordsWithClient streams the assembled records of a run.
func InsertClassificationRecordsWithClient(ctx context.Context, client *bigquery.Client, dataset, runID string, records []domain.ClassificationRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := ClassificationRows(runID, records, time.Now())
	inserter := client.Dataset(dataset).Table(classificationRecordsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertClassificationRecords: inserting rows: %w", err)
	}
	return nil
}
