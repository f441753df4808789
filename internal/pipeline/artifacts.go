package pipeline

import (
	"errors"

	"github.com/kevalkarani/balance-sheet-buddy/internal/gcsuploader"
	"github.com/kevalkarani/balance-sheet-buddy/internal/tabular"
)

// Artifact file names.
const (
	WorkbookFile       = "classification.xlsx"
	ReportFile         = "report.html"
	SummaryFile        = "summary.txt"
	ClassificationFile = "classification_result.txt"
	ReconciliationFile = "reconciliation_result.txt"
)

// Artifacts lists the output files of the result. Raw model texts are
// included only when the model produced them.
func (r *Result) Artifacts() []gcsuploader.Artifact {
	out := []gcsuploader.Artifact{
		{Name: WorkbookFile, ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", Data: r.Workbook},
		{Name: ReportFile, ContentType: "text/html; charset=utf-8", Data: []byte(r.HTML)},
		{Name: SummaryFile, ContentType: "text/plain; charset=utf-8", Data: []byte(r.SummaryText)},
	}
	if r.ClassificationText != "" {
		out = append(out, gcsuploader.Artifact{Name: ClassificationFile, ContentType: "text/plain; charset=utf-8", Data: []byte(r.ClassificationText)})
	}
	if r.ReconciliationText != "" {
		out = append(out, gcsuploader.Artifact{Name: ReconciliationFile, ContentType: "text/plain; charset=utf-8", Data: []byte(r.ReconciliationText)})
	}
	return out
}

// IsInputError reports whether err comes from unusable input files, which a
// retry cannot fix.
func IsInputError(err error) bool {
	var headerErr *tabular.HeaderNotFoundError
	var columnErr *tabular.MissingColumnError
	return errors.As(err, &headerErr) || errors.As(err, &columnErr) || errors.Is(err, ErrEmptyLedger)
}
