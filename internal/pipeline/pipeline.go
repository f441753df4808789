// Package pipeline runs a trial-balance analysis from input files to rendered artifacts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kevalkarani/balance-sheet-buddy/internal/domain"
	"github.com/kevalkarani/balance-sheet-buddy/internal/llm"
	"github.com/kevalkarani/balance-sheet-buddy/internal/logger"
	"github.com/kevalkarani/balance-sheet-buddy/internal/report"
	"github.com/kevalkarani/balance-sheet-buddy/internal/tabular"
)

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// ErrEmptyLedger is returned when no ledger rows survive cleaning.
var ErrEmptyLedger = errors.New("no ledger rows left after cleaning")

// Request is the input of one analysis.
type Request struct {
	TrialBalance tabular.File
	Mapping      tabular.File
	GL           []tabular.File
	Mode         Mode
}

// Result is everything an analysis produced.
type Result struct {
	SessionID string
	RunID     string
	Mode      Mode

	Ledger  []domain.LedgerRow
	GL      []domain.GLEntry
	Records []domain.ClassificationRecord
	Source  report.Source

	ClassificationText string
	ReconciliationText string
	ExecutiveSummary   string

	Stats       report.SummaryStats
	SummaryText string
	Workbook    []byte
	HTML        string

	Coercions int
	Warnings  []string
}

// Options tune an Analyzer.
type Options struct {
	ModelName      string
	ModelTimeout   time.Duration
	HeaderScanRows int
	RenderMarkdown bool
	Now            func() time.Time
}

// Analyzer runs analyses against a model client.
type Analyzer struct {
	client   llm.Client
	recorder RunRecorder
	opts     Options
}

// NewAnalyzer creates an Analyzer. recorder may be nil.
func NewAnalyzer(client llm.Client, recorder RunRecorder, opts Options) *Analyzer {
	return &Analyzer{client: client, recorder: recorder, opts: opts}
}

// NewAnalysisPipeline creates the standard step sequence used by Analyzer.Run.
func NewAnalysisPipeline(client llm.Client, recorder RunRecorder, opts Options) *Pipeline {
	var loadOpts []tabular.Option
	if opts.HeaderScanRows > 0 {
		loadOpts = append(loadOpts, tabular.WithHeaderScanRows(opts.HeaderScanRows))
	}
	return NewPipeline(
		&LoadTrialBalanceStep{Options: loadOpts},
		&CleanStep{},
		&LoadMappingStep{Options: loadOpts},
		&MergeStep{},
		&StartRunStep{Recorder: recorder, Now: opts.Now},
		&FormatStep{},
		&ClassifyStep{Client: client, Recorder: recorder, ModelName: opts.ModelName, Timeout: opts.ModelTimeout},
		&ParseStep{},
		&AssembleStep{},
		&LoadGLStep{Options: loadOpts},
		&ReconcileStep{Client: client, Recorder: recorder, ModelName: opts.ModelName, Timeout: opts.ModelTimeout},
		&SummarizeStep{},
		&RenderStep{RenderMarkdown: opts.RenderMarkdown, Now: opts.Now},
		&RecordResultsStep{Recorder: recorder},
	)
}

// Run analyses one trial balance. Loader errors fail the run; model failures
// are reported in Result.Warnings.
func (a *Analyzer) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Mode == "" {
		req.Mode = ModeClassification
	}
	if _, ok := ParseMode(string(req.Mode)); !ok {
		return nil, fmt.Errorf("Run: unknown mode %q", req.Mode)
	}

	log := logger.FromContext(ctx).With().Str("mode", string(req.Mode)).Logger()
	ctx = logger.WithContext(ctx, log)

	state := &PipelineState{Request: req}
	if err := NewAnalysisPipeline(a.client, a.recorder, a.opts).Execute(ctx, state); err != nil {
		if a.recorder != nil && state.RunID != "" {
			a.recorder.MarkRunFailed(ctx, state.RunID, err)
		}
		log.Error().Err(err).Str("session_id", state.SessionID).Msg("analysis failed")
		return nil, fmt.Errorf("Run: %w", err)
	}

	log.Info().
		Str("session_id", state.SessionID).
		Int("records", len(state.Assembly.Records)).
		Int("warnings", len(state.Warnings)).
		Msg("analysis complete")

	return &Result{
		SessionID:          state.SessionID,
		RunID:              state.RunID,
		Mode:               req.Mode,
		Ledger:             state.Ledger,
		GL:                 state.GL,
		Records:            state.Assembly.Records,
		Source:             state.Assembly.Source,
		ClassificationText: state.ClassificationText,
		ReconciliationText: state.ReconciliationText,
		ExecutiveSummary:   state.ExecutiveSummary,
		Stats:              state.Stats,
		SummaryText:        state.SummaryText,
		Workbook:           state.Workbook,
		HTML:               state.HTML,
		Coercions:          state.Coercions,
		Warnings:           state.Warnings,
	}, nil
}
