package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/kevalkarani/balance-sheet-buddy/internal/domain"
	"github.com/kevalkarani/balance-sheet-buddy/internal/ledger"
	"github.com/kevalkarani/balance-sheet-buddy/internal/llm"
	"github.com/kevalkarani/balance-sheet-buddy/internal/logger"
	"github.com/kevalkarani/balance-sheet-buddy/internal/modeltable"
	"github.com/kevalkarani/balance-sheet-buddy/internal/prompts"
	"github.com/kevalkarani/balance-sheet-buddy/internal/report"
	"github.com/kevalkarani/balance-sheet-buddy/internal/session"
	"github.com/kevalkarani/balance-sheet-buddy/internal/tabular"
	"github.com/rs/zerolog"
)

// PipelineStep represents a single step in the analysis pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Request   Request
	SessionID string
	RunID     string

	Ledger    []domain.LedgerRow
	Mapping   []domain.MappingEntry
	Coercions int

	TrialBalanceText   string
	ClassificationText string
	ClassificationErr  error
	Parsed             modeltable.Table
	Assembly           report.Assembly

	GL                 []domain.GLEntry
	ReconciliationText string
	ReconciliationErr  error
	ExecutiveSummary   string

	Stats       report.SummaryStats
	SummaryText string
	Workbook    []byte
	HTML        string

	Warnings []string

	recordErr error
}

func (s *PipelineState) warn(ctx context.Context, step, msg string) {
	log := stepLogger(ctx, s, step)
	log.Warn().Msg(msg)
	s.Warnings = append(s.Warnings, msg)
}

// recording reports whether run history should still be written for this state.
func (s *PipelineState) recording(r RunRecorder) bool {
	return r != nil && s.RunID != "" && s.recordErr == nil
}

// recordFailed turns a run history error into a warning. The run is marked
// FAILED once and not written to again; the analysis itself continues.
func (s *PipelineState) recordFailed(ctx context.Context, r RunRecorder, step string, err error) {
	s.recordErr = err
	s.warn(ctx, step, fmt.Sprintf("run history unavailable, continuing without it: %v", err))
	if s.RunID != "" {
		r.MarkRunFailed(ctx, s.RunID, err)
	}
}

func stepLogger(ctx context.Context, state *PipelineState, step string) zerolog.Logger {
	return logger.FromContext(ctx).With().Str("session_id", state.SessionID).Str("step", step).Logger()
}

func coercionLogger(ctx context.Context, state *PipelineState, file string) tabular.Option {
	return tabular.WithCoercionHandler(func(row int, column, raw string) {
		state.Coercions++
		log := logger.FromContext(ctx)
		log.Warn().
			Str("file", file).
			Int("row", row).
			Str("column", column).
			Str("raw", raw).
			Msg("amount cell coerced to 0")
	})
}

// LoadTrialBalanceStep reads the trial balance file into ledger rows.
type LoadTrialBalanceStep struct {
	Options []tabular.Option
}

func (s *LoadTrialBalanceStep) Execute(ctx context.Context, state *PipelineState) error {
	f := state.Request.TrialBalance
	opts := append([]tabular.Option{coercionLogger(ctx, state, f.Name)}, s.Options...)
	rows, err := tabular.LoadTrialBalance(f.Name, f.Data, opts...)
	if err != nil {
		return err
	}
	state.Ledger = rows
	log := stepLogger(ctx, state, "load_trial_balance")
	log.Info().Str("file", f.Name).Int("rows", len(rows)).Msg("trial balance loaded")
	return nil
}

// CleanStep drops blank, zero and aggregate rows.
type CleanStep struct{}

func (s *CleanStep) Execute(ctx context.Context, state *PipelineState) error {
	before := len(state.Ledger)
	state.Ledger = ledger.Clean(state.Ledger)
	log := stepLogger(ctx, state, "clean")
	log.Info().Int("before", before).Int("after", len(state.Ledger)).Msg("ledger cleaned")
	return nil
}

// LoadMappingStep reads the category mapping file.
type LoadMappingStep struct {
	Options []tabular.Option
}

func (s *LoadMappingStep) Execute(ctx context.Context, state *PipelineState) error {
	f := state.Request.Mapping
	mapping, err := tabular.LoadMapping(f.Name, f.Data, s.Options...)
	if err != nil {
		return err
	}
	state.Mapping = mapping
	log := stepLogger(ctx, state, "load_mapping")
	log.Info().Str("file", f.Name).Int("entries", len(mapping)).Msg("mapping loaded")
	return nil
}

// MergeStep attaches categories to ledger rows.
type MergeStep struct{}

func (s *MergeStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Ledger = ledger.Merge(state.Ledger, state.Mapping)
	unmapped := 0
	for _, r := range state.Ledger {
		if r.Category == domain.UnmappedCategory {
			unmapped++
		}
	}
	log := stepLogger(ctx, state, "merge")
	log.Info().Int("rows", len(state.Ledger)).Int("unmapped", unmapped).Msg("mapping merged")
	return nil
}

// StartRunStep assigns the session id and opens a run record when a recorder is set.
type StartRunStep struct {
	Recorder RunRecorder
	Now      func() time.Time
}

func (s *StartRunStep) Execute(ctx context.Context, state *PipelineState) error {
	if len(state.Ledger) == 0 {
		return fmt.Errorf("StartRunStep: %w", ErrEmptyLedger)
	}
	state.SessionID = session.NewID(state.Ledger, now(s.Now))
	if s.Recorder == nil {
		return nil
	}
	runID, err := s.Recorder.StartRun(ctx, state.SessionID, string(state.Request.Mode), len(state.Ledger))
	if err != nil {
		state.recordFailed(ctx, s.Recorder, "start_run", err)
		return nil
	}
	state.RunID = runID
	return nil
}

// FormatStep renders the ledger as prompt text.
type FormatStep struct{}

func (s *FormatStep) Execute(ctx context.Context, state *PipelineState) error {
	state.TrialBalanceText = prompts.FormatTrialBalance(state.Ledger)
	return nil
}

// ClassifyStep asks the model for the classification table. A failed call is
// logged and leaves ClassificationText empty so the assembler falls back.
type ClassifyStep struct {
	Client    llm.Client
	Recorder  RunRecorder
	ModelName string
	Timeout   time.Duration
}

func (s *ClassifyStep) Execute(ctx context.Context, state *PipelineState) error {
	prompt := prompts.Classification(state.TrialBalanceText)
	if state.Request.Mode == ModeMismatchOnly {
		prompt = prompts.MismatchOnly(state.TrialBalanceText)
	}

	text, err := generate(ctx, s.Client, s.Timeout, llm.Request{
		Prompt:          prompt,
		MaxOutputTokens: prompts.EstimateMaxTokens(len(state.Ledger)),
	})
	if err != nil {
		state.ClassificationErr = err
		state.warn(ctx, "classify", fmt.Sprintf("classification model call failed, using rule-based statuses: %v", err))
		return nil
	}
	state.ClassificationText = text

	if state.recording(s.Recorder) {
		if err := s.Recorder.InsertModelOutput(ctx, state.RunID, StageClassification, s.ModelName, text); err != nil {
			state.recordFailed(ctx, s.Recorder, "classify", err)
		}
	}
	log := stepLogger(ctx, state, "classify")
	log.Info().Int("chars", len(text)).Msg("classification received")
	return nil
}

// ParseStep extracts the pipe table from the classification text.
type ParseStep struct{}

func (s *ParseStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Parsed = modeltable.Parse(state.ClassificationText)
	log := stepLogger(ctx, state, "parse")
	log.Info().Int("rows", state.Parsed.Len()).Strs("columns", state.Parsed.Columns()).Msg("model table parsed")
	return nil
}

// AssembleStep builds one classification record per ledger row.
type AssembleStep struct{}

func (s *AssembleStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Assembly = report.Assemble(state.Ledger, state.Parsed)
	if state.Assembly.Source == report.SourceFallback && state.ClassificationErr == nil {
		state.warn(ctx, "assemble", "model response had no usable Status column, using rule-based statuses")
	}
	log := stepLogger(ctx, state, "assemble")
	log.Info().Str("source", string(state.Assembly.Source)).Int("records", len(state.Assembly.Records)).Msg("records assembled")
	return nil
}

// LoadGLStep reads every GL file. Files that fail to load are reported as warnings.
type LoadGLStep struct {
	Options []tabular.Option
}

func (s *LoadGLStep) Execute(ctx context.Context, state *PipelineState) error {
	if len(state.Request.GL) == 0 {
		return nil
	}
	entries, errs := tabular.LoadGLFiles(state.Request.GL, s.Options...)
	for _, err := range errs {
		state.warn(ctx, "load_gl", err.Error())
	}
	state.GL = entries
	log := stepLogger(ctx, state, "load_gl")
	log.Info().Int("files", len(state.Request.GL)).Int("entries", len(entries)).Msg("GL loaded")
	return nil
}

// ReconcileStep produces Outputs B and C in ModeFull. Failures are not fatal.
type ReconcileStep struct {
	Client    llm.Client
	Recorder  RunRecorder
	ModelName string
	Timeout   time.Duration
}

func (s *ReconcileStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Request.Mode != ModeFull {
		return nil
	}
	if len(state.GL) == 0 {
		state.warn(ctx, "reconcile", "no GL entries available, skipping reconciliation and executive summary")
		return nil
	}

	text, err := generate(ctx, s.Client, s.Timeout, llm.Request{
		Prompt:          prompts.Reconciliation(state.TrialBalanceText, prompts.FormatGL(state.GL, "")),
		MaxOutputTokens: prompts.ReconciliationMaxTokens,
	})
	if err != nil {
		state.ReconciliationErr = err
		state.warn(ctx, "reconcile", fmt.Sprintf("reconciliation model call failed: %v", err))
		return nil
	}
	state.ReconciliationText = text
	state.ExecutiveSummary = report.ExecutiveSummary(text)

	if state.recording(s.Recorder) {
		if err := s.Recorder.InsertModelOutput(ctx, state.RunID, StageReconciliation, s.ModelName, text); err != nil {
			state.recordFailed(ctx, s.Recorder, "reconcile", err)
		}
	}
	return nil
}

// SummarizeStep computes the summary statistics and text.
type SummarizeStep struct{}

func (s *SummarizeStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Stats = report.Stats(state.Assembly.Records)
	state.SummaryText = report.SummaryText(state.Stats, state.Assembly.Records)
	log := stepLogger(ctx, state, "summarize")
	log.Info().
		Int("pass", state.Stats.PassCount).
		Int("mismatch", state.Stats.MismatchCount).
		Bool("balanced", state.Stats.Balanced()).
		Msg("summary computed")
	return nil
}

// RenderStep writes the workbook and the combined HTML report.
type RenderStep struct {
	RenderMarkdown bool
	Now            func() time.Time
}

func (s *RenderStep) Execute(ctx context.Context, state *PipelineState) error {
	wb, err := report.ClassificationWorkbook(state.Assembly.Records)
	if err != nil {
		return fmt.Errorf("RenderStep: %w", err)
	}
	state.Workbook = wb

	summary := state.ExecutiveSummary
	if summary == "" {
		summary = state.SummaryText
	}
	html, err := report.CombinedHTML(report.ReportInput{
		Classification: state.ClassificationText,
		Reconciliation: state.ReconciliationText,
		Summary:        summary,
		Records:        state.Assembly.Records,
		GeneratedAt:    now(s.Now),
		RenderMarkdown: s.RenderMarkdown,
	})
	if err != nil {
		return fmt.Errorf("RenderStep: %w", err)
	}
	state.HTML = html
	return nil
}

// RecordResultsStep stores the records and marks the run SUCCESS. Errors
// become warnings.
type RecordResultsStep struct {
	Recorder RunRecorder
}

func (s *RecordResultsStep) Execute(ctx context.Context, state *PipelineState) error {
	if !state.recording(s.Recorder) {
		return nil
	}
	if err := s.Recorder.InsertClassificationRecords(ctx, state.RunID, state.Assembly.Records); err != nil {
		state.recordFailed(ctx, s.Recorder, "record_results", err)
		return nil
	}
	if err := s.Recorder.MarkRunSucceeded(ctx, state.RunID, string(state.Assembly.Source)); err != nil {
		state.recordFailed(ctx, s.Recorder, "record_results", err)
	}
	return nil
}

func generate(ctx context.Context, client llm.Client, timeout time.Duration, req llm.Request) (string, error) {
	if client == nil {
		return "", fmt.Errorf("generate: no model client configured")
	}
	if timeout <= 0 {
		timeout = DefaultModelTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text, err := client.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	return llm.StripCodeFences(text), nil
}

func now(fn func() time.Time) time.Time {
	if fn != nil {
		return fn()
	}
	return time.Now()
}
