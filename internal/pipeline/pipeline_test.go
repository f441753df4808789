package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kevalkarani/balance-sheet-buddy/internal/domain"
	"github.com/kevalkarani/balance-sheet-buddy/internal/llm"
	"github.com/kevalkarani/balance-sheet-buddy/internal/pipeline"
	"github.com/kevalkarani/balance-sheet-buddy/internal/report"
	"github.com/kevalkarani/balance-sheet-buddy/internal/tabular"
	"github.com/shopspring/decimal"
)

// MockModelClient is a mock implementation of llm.Client for testing.
type MockModelClient struct {
	GenerateFunc func(ctx context.Context, req llm.Request) (string, error)
	Requests     []llm.Request
}

func (m *MockModelClient) Generate(ctx context.Context, req llm.Request) (string, error) {
	m.Requests = append(m.Requests, req)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return "", llm.ErrEmptyResponse
}

// MockRunRecorder is a mock implementation of RunRecorder for testing.
type MockRunRecorder struct {
	StartRunFunc                    func(ctx context.Context, sessionID, mode string, accounts int) (string, error)
	InsertModelOutputFunc           func(ctx context.Context, runID, stage, modelName, text string) error
	InsertClassificationRecordsFunc func(ctx context.Context, runID string, records []domain.ClassificationRecord) error
	MarkRunSucceededFunc            func(ctx context.Context, runID, source string) error
	MarkRunFailedFunc               func(ctx context.Context, runID string, runErr error)

	stages []string
	failed error
	source string
}

func (m *MockRunRecorder) StartRun(ctx context.Context, sessionID, mode string, accounts int) (string, error) {
	if m.StartRunFunc != nil {
		return m.StartRunFunc(ctx, sessionID, mode, accounts)
	}
	return "test-run-id", nil
}

func (m *MockRunRecorder) InsertModelOutput(ctx context.Context, runID, stage, modelName, text string) error {
	m.stages = append(m.stages, stage)
	if m.InsertModelOutputFunc != nil {
		return m.InsertModelOutputFunc(ctx, runID, stage, modelName, text)
	}
	return nil
}

func (m *MockRunRecorder) InsertClassificationRecords(ctx context.Context, runID string, records []domain.ClassificationRecord) error {
	if m.InsertClassificationRecordsFunc != nil {
		return m.InsertClassificationRecordsFunc(ctx, runID, records)
	}
	return nil
}

func (m *MockRunRecorder) MarkRunSucceeded(ctx context.Context, runID, source string) error {
	m.source = source
	if m.MarkRunSucceededFunc != nil {
		return m.MarkRunSucceededFunc(ctx, runID, source)
	}
	return nil
}

func (m *MockRunRecorder) MarkRunFailed(ctx context.Context, runID string, runErr error) {
	m.failed = runErr
	if m.MarkRunFailedFunc != nil {
		m.MarkRunFailedFunc(ctx, runID, runErr)
	}
}

// MockStorageService is a mock implementation of StorageService for testing.
type MockStorageService struct {
	FetchFromGCSFunc              func(ctx context.Context, gcsURI string) ([]byte, error)
	ExtractFilenameFromGCSURIFunc func(uri string) string
}

func (m *MockStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	if m.FetchFromGCSFunc != nil {
		return m.FetchFromGCSFunc(ctx, gcsURI)
	}
	return []byte("Account,Debit,Credit\n"), nil
}

func (m *MockStorageService) ExtractFilenameFromGCSURI(uri string) string {
	if m.ExtractFilenameFromGCSURIFunc != nil {
		return m.ExtractFilenameFromGCSURIFunc(uri)
	}
	return "mock-file.csv"
}

var (
	_ llm.Client              = (*MockModelClient)(nil)
	_ pipeline.RunRecorder    = (*MockRunRecorder)(nil)
	_ pipeline.StorageService = (*MockStorageService)(nil)
)

const (
	trialBalanceCSV = "Trial Balance\nAs at 31 Jan 2024\nAccount,Debit,Credit\n1000 - Cash,\"$1,500.00\",0\n2000 - AP,300,0\n3000 - Suspense,10,20\nTotal,1810,20\n"
	mappingCSV      = "Account,Category,Subcategory\n1000 - Cash,Asset,Banks\n2000 - AP,Liability,Accounts Payable\n3000,Clearing,Clearing\n"
	glCSV           = "Account,Date,Description,Debit,Credit\n1000 - Cash,2024-01-31,Deposit,1500,0\n2000 - AP,2024-01-15,Supplier refund,300,0\n"
)

func request(mode pipeline.Mode, withGL bool) pipeline.Request {
	req := pipeline.Request{
		TrialBalance: tabular.File{Name: "tb.csv", Data: []byte(trialBalanceCSV)},
		Mapping:      tabular.File{Name: "mapping.csv", Data: []byte(mappingCSV)},
		Mode:         mode,
	}
	if withGL {
		req.GL = []tabular.File{{Name: "gl.csv", Data: []byte(glCSV)}}
	}
	return req
}

func fixedNow() time.Time { return time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC) }

func TestAnalyzer_ClassificationMode(t *testing.T) {
	client := &MockModelClient{
		GenerateFunc: func(ctx context.Context, req llm.Request) (string, error) {
			return "```markdown\n| Account | Balance_Type | Amount | Category | Subcategory | Commentary | Status |\n|---|---|---|---|---|---|---|\n| 1000 - Cash | Debit | 1500 | Asset | Banks | Operating account | PASS |\n| 2000 - AP | Debit | 300 | Liability | Accounts Payable | Debit AP | MISMATCH |\n```", nil
		},
	}
	recorder := &MockRunRecorder{}
	a := pipeline.NewAnalyzer(client, recorder, pipeline.Options{ModelName: "test-model", Now: fixedNow})

	res, err := a.Run(context.Background(), request(pipeline.ModeClassification, false))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(res.Records) != 3 {
		t.Fatalf("len(Records) = %d, want 3", len(res.Records))
	}
	if res.Source != report.SourceModel {
		t.Errorf("Source = %s, want model", res.Source)
	}
	if res.Records[0].Commentary != "Operating account" || res.Records[1].Status != domain.StatusMismatch {
		t.Errorf("joined records = %+v", res.Records[:2])
	}
	if res.Records[2].BalanceType != domain.BalanceMixed || res.Records[2].Category != "Clearing" {
		t.Errorf("gap-filled record = %+v", res.Records[2])
	}
	if !strings.HasPrefix(res.SessionID, "session_") || !strings.HasSuffix(res.SessionID, "_20240201_100000") {
		t.Errorf("SessionID = %q", res.SessionID)
	}
	if res.RunID != "test-run-id" || recorder.source != string(report.SourceModel) {
		t.Errorf("run = %q, source = %q", res.RunID, recorder.source)
	}
	if len(recorder.stages) != 1 || recorder.stages[0] != pipeline.StageClassification {
		t.Errorf("recorded stages = %v", recorder.stages)
	}
	if len(res.Workbook) == 0 || !strings.Contains(res.HTML, "Classification Analysis") {
		t.Error("artifacts were not rendered")
	}
	if len(client.Requests) != 1 || client.Requests[0].MaxOutputTokens != 16384 {
		t.Errorf("model requests = %+v", client.Requests)
	}
	if !strings.Contains(client.Requests[0].Prompt, "Account: 1000 - Cash | Type: Dr | Amount: 1,500.00") {
		t.Errorf("prompt missing formatted trial balance:\n%s", client.Requests[0].Prompt)
	}

	snap := res.Snapshot(nil)
	if snap.SessionID != res.SessionID || snap.Version != "1.0" || !snap.Data.AnalysisComplete || len(snap.Data.Classification) != 3 {
		t.Errorf("Snapshot() = %+v", snap)
	}
}

func TestAnalyzer_ModelFailureFallsBack(t *testing.T) {
	client := &MockModelClient{
		GenerateFunc: func(ctx context.Context, req llm.Request) (string, error) {
			return "", errors.New("service unavailable")
		},
	}
	recorder := &MockRunRecorder{}
	res, err := pipeline.NewAnalyzer(client, recorder, pipeline.Options{}).Run(context.Background(), request(pipeline.ModeClassification, false))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Source != report.SourceFallback {
		t.Errorf("Source = %s, want fallback", res.Source)
	}
	want := []domain.Status{domain.StatusPass, domain.StatusMismatch, domain.StatusMismatch}
	for i, rec := range res.Records {
		if rec.Status != want[i] {
			t.Errorf("record %d status = %s, want %s", i, rec.Status, want[i])
		}
	}
	if len(res.Warnings) == 0 || !strings.Contains(res.Warnings[0], "service unavailable") {
		t.Errorf("Warnings = %v", res.Warnings)
	}
	if recorder.failed != nil || len(recorder.stages) != 0 {
		t.Errorf("recorder failed = %v, stages = %v", recorder.failed, recorder.stages)
	}
}

func TestAnalyzer_FullMode(t *testing.T) {
	client := &MockModelClient{
		GenerateFunc: func(ctx context.Context, req llm.Request) (string, error) {
			if strings.Contains(req.Prompt, "GENERAL LEDGER TRANSACTIONS") {
				return "OUTPUT B\nCash agrees to GL.\n\nOUTPUT C - EXECUTIVE SUMMARY\nTwo accounts need review.", nil
			}
			return "Account | Status\n1000 - Cash | PASS", nil
		},
	}
	recorder := &MockRunRecorder{}
	res, err := pipeline.NewAnalyzer(client, recorder, pipeline.Options{}).Run(context.Background(), request(pipeline.ModeFull, true))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.GL) != 2 {
		t.Errorf("len(GL) = %d, want 2", len(res.GL))
	}
	if res.ExecutiveSummary != "Two accounts need review." {
		t.Errorf("ExecutiveSummary = %q", res.ExecutiveSummary)
	}
	if len(client.Requests) != 2 || client.Requests[1].MaxOutputTokens != 16384 {
		t.Errorf("model requests = %d", len(client.Requests))
	}
	if !strings.Contains(res.HTML, "Account-Level Reconciliation") || !strings.Contains(res.HTML, "Two accounts need review.") {
		t.Error("reconciliation sections missing from report")
	}
	if len(recorder.stages) != 2 || recorder.stages[1] != pipeline.StageReconciliation {
		t.Errorf("recorded stages = %v", recorder.stages)
	}
}

func TestAnalyzer_FullModeWithoutGL(t *testing.T) {
	client := &MockModelClient{
		GenerateFunc: func(ctx context.Context, req llm.Request) (string, error) {
			return "Account | Status\n1000 - Cash | PASS", nil
		},
	}
	res, err := pipeline.NewAnalyzer(client, nil, pipeline.Options{}).Run(context.Background(), request(pipeline.ModeFull, false))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(client.Requests) != 1 {
		t.Errorf("model called %d times, want 1", len(client.Requests))
	}
	if res.ReconciliationText != "" || len(res.Warnings) != 1 {
		t.Errorf("ReconciliationText = %q, Warnings = %v", res.ReconciliationText, res.Warnings)
	}
	if strings.Contains(res.HTML, "Account-Level Reconciliation") {
		t.Error("reconciliation section should be omitted")
	}
}

func TestAnalyzer_MismatchOnlyPrompt(t *testing.T) {
	client := &MockModelClient{
		GenerateFunc: func(ctx context.Context, req llm.Request) (string, error) {
			return "Account | Status\n2000 - AP | MISMATCH", nil
		},
	}
	res, err := pipeline.NewAnalyzer(client, nil, pipeline.Options{}).Run(context.Background(), request(pipeline.ModeMismatchOnly, false))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(client.Requests[0].Prompt, "MISMATCH") {
		t.Errorf("prompt = %q", client.Requests[0].Prompt)
	}
	if res.Records[0].Status != domain.StatusPass || res.Records[1].Status != domain.StatusMismatch {
		t.Errorf("statuses = %s, %s", res.Records[0].Status, res.Records[1].Status)
	}
}

func TestAnalyzer_LoaderErrorsFail(t *testing.T) {
	tests := []struct {
		name    string
		req     pipeline.Request
		check   func(error) bool
		started bool
	}{
		{
			name: "header not found",
			req: pipeline.Request{
				TrialBalance: tabular.File{Name: "tb.csv", Data: []byte("Name,Value\nCash,1\n")},
				Mapping:      tabular.File{Name: "mapping.csv", Data: []byte(mappingCSV)},
			},
			check: func(err error) bool {
				var target *tabular.HeaderNotFoundError
				return errors.As(err, &target)
			},
		},
		{
			name: "mapping missing columns",
			req: pipeline.Request{
				TrialBalance: tabular.File{Name: "tb.csv", Data: []byte(trialBalanceCSV)},
				Mapping:      tabular.File{Name: "mapping.csv", Data: []byte("Account,Category\n1000,Asset\n")},
			},
			check: func(err error) bool {
				var target *tabular.MissingColumnError
				return errors.As(err, &target)
			},
		},
		{
			name: "empty ledger",
			req: pipeline.Request{
				TrialBalance: tabular.File{Name: "tb.csv", Data: []byte("Account,Debit,Credit\nTotal,0,0\n")},
				Mapping:      tabular.File{Name: "mapping.csv", Data: []byte(mappingCSV)},
			},
			check: func(err error) bool { return errors.Is(err, pipeline.ErrEmptyLedger) },
		},
		{
			name: "unknown mode",
			req:  pipeline.Request{Mode: "everything"},
			check: func(err error) bool {
				return strings.Contains(err.Error(), "unknown mode")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &MockModelClient{}
			_, err := pipeline.NewAnalyzer(client, &MockRunRecorder{}, pipeline.Options{}).Run(context.Background(), tt.req)
			if err == nil || !tt.check(err) {
				t.Fatalf("Run() error = %v", err)
			}
			if got, want := pipeline.IsInputError(err), tt.name != "unknown mode"; got != want {
				t.Errorf("IsInputError() = %v, want %v", got, want)
			}
			if len(client.Requests) != 0 {
				t.Error("model should not be called")
			}
		})
	}
}

func TestAnalyzer_RecorderFailureKeepsRecords(t *testing.T) {
	outage := errors.New("bigquery: 503 backend unavailable")
	tests := []struct {
		name       string
		recorder   *MockRunRecorder
		wantRunID  string
		wantFailed bool
	}{
		{
			name: "start run",
			recorder: &MockRunRecorder{
				StartRunFunc: func(ctx context.Context, sessionID, mode string, accounts int) (string, error) {
					return "", outage
				},
			},
		},
		{
			name: "model output",
			recorder: &MockRunRecorder{
				InsertModelOutputFunc: func(ctx context.Context, runID, stage, modelName, text string) error {
					return outage
				},
			},
			wantRunID:  "test-run-id",
			wantFailed: true,
		},
		{
			name: "classification records",
			recorder: &MockRunRecorder{
				InsertClassificationRecordsFunc: func(ctx context.Context, runID string, records []domain.ClassificationRecord) error {
					return outage
				},
			},
			wantRunID:  "test-run-id",
			wantFailed: true,
		},
		{
			name: "mark succeeded",
			recorder: &MockRunRecorder{
				MarkRunSucceededFunc: func(ctx context.Context, runID, source string) error {
					return outage
				},
			},
			wantRunID:  "test-run-id",
			wantFailed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &MockModelClient{
				GenerateFunc: func(ctx context.Context, req llm.Request) (string, error) {
					return "Account | Status\n1000 - Cash | PASS", nil
				},
			}
			res, err := pipeline.NewAnalyzer(client, tt.recorder, pipeline.Options{}).Run(context.Background(), request(pipeline.ModeClassification, false))
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if len(res.Records) != 3 || len(res.Workbook) == 0 {
				t.Errorf("records = %d, workbook = %d bytes", len(res.Records), len(res.Workbook))
			}
			if res.RunID != tt.wantRunID {
				t.Errorf("RunID = %q, want %q", res.RunID, tt.wantRunID)
			}
			warned := 0
			for _, w := range res.Warnings {
				if strings.Contains(w, "run history unavailable") && strings.Contains(w, "503") {
					warned++
				}
			}
			if warned != 1 {
				t.Errorf("run history warnings = %d in %v, want 1", warned, res.Warnings)
			}
			if (tt.recorder.failed != nil) != tt.wantFailed {
				t.Errorf("run marked failed = %v, want %v", tt.recorder.failed, tt.wantFailed)
			}
		})
	}
}

func TestPipeline_StopsAtFirstError(t *testing.T) {
	var ran []int
	step := func(n int, err error) pipeline.PipelineStep {
		return stepFunc(func(ctx context.Context, state *pipeline.PipelineState) error {
			ran = append(ran, n)
			return err
		})
	}
	boom := errors.New("boom")
	err := pipeline.NewPipeline(step(1, nil), step(2, boom), step(3, nil)).Execute(context.Background(), &pipeline.PipelineState{})
	if !errors.Is(err, boom) || err.Error() != "pipeline step 2 failed: boom" {
		t.Errorf("Execute() error = %v", err)
	}
	if len(ran) != 2 {
		t.Errorf("ran = %v", ran)
	}
}

type stepFunc func(ctx context.Context, state *pipeline.PipelineState) error

func (f stepFunc) Execute(ctx context.Context, state *pipeline.PipelineState) error {
	return f(ctx, state)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want pipeline.Mode
		ok   bool
	}{
		{"", pipeline.ModeClassification, true},
		{"full", pipeline.ModeFull, true},
		{"mismatch-only", pipeline.ModeMismatchOnly, true},
		{"FULL", "", false},
	}
	for _, tt := range tests {
		got, ok := pipeline.ParseMode(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseMode(%q) = %q, %v", tt.in, got, ok)
		}
	}
}

func TestFileSource_Open(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tb.csv")
	if err := os.WriteFile(path, []byte(trialBalanceCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	var fetched string
	src := &pipeline.FileSource{Storage: &MockStorageService{
		FetchFromGCSFunc: func(ctx context.Context, gcsURI string) ([]byte, error) {
			fetched = gcsURI
			return []byte(mappingCSV), nil
		},
		ExtractFilenameFromGCSURIFunc: func(uri string) string { return "mapping.csv" },
	}}

	req, err := src.OpenRequest(context.Background(), path, "gs://bucket/in/mapping.csv", nil, pipeline.ModeFull)
	if err != nil {
		t.Fatalf("OpenRequest() error = %v", err)
	}
	if req.TrialBalance.Name != "tb.csv" || req.Mapping.Name != "mapping.csv" || fetched != "gs://bucket/in/mapping.csv" {
		t.Errorf("request = %+v", req)
	}
	if req.Mode != pipeline.ModeFull {
		t.Errorf("Mode = %s", req.Mode)
	}

	if _, err := (&pipeline.FileSource{}).Open(context.Background(), "gs://bucket/x.csv"); err == nil {
		t.Error("expected error without storage service")
	}
	if _, err := src.Open(context.Background(), filepath.Join(dir, "missing.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestChat_Ask(t *testing.T) {
	client := &MockModelClient{
		GenerateFunc: func(ctx context.Context, req llm.Request) (string, error) {
			return "The largest deposit is 1,500.00.", nil
		},
	}
	gl := []domain.GLEntry{{Account: "1000 - Cash", Description: "Deposit", Debit: decimal.RequireFromString("1500")}}
	chat := pipeline.NewChat(client, gl, 0, time.Minute).WithHistory([]llm.Message{
		{Role: llm.RoleUser, Text: "hello"},
		{Role: llm.RoleAssistant, Text: "hi"},
	})

	answer, err := chat.Ask(context.Background(), "  What is the largest deposit?  ")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer != "The largest deposit is 1,500.00." {
		t.Errorf("answer = %q", answer)
	}
	req := client.Requests[0]
	if len(req.History) != 2 || !strings.Contains(req.System, "1000 - Cash") || req.Prompt != "What is the largest deposit?" {
		t.Errorf("request = %+v", req)
	}
	if len(chat.History()) != 4 {
		t.Errorf("len(History) = %d, want 4", len(chat.History()))
	}
	if !strings.HasSuffix(chat.Transcript(), "User: What is the largest deposit?\n\nAssistant: The largest deposit is 1,500.00.") {
		t.Errorf("Transcript() = %q", chat.Transcript())
	}

	if _, err := chat.Ask(context.Background(), "   "); err == nil {
		t.Error("expected error for empty question")
	}
}

func TestResult_Artifacts(t *testing.T) {
	res := &pipeline.Result{Workbook: []byte("xlsx"), HTML: "<html></html>", SummaryText: "summary"}
	names := func(r *pipeline.Result) []string {
		var out []string
		for _, a := range r.Artifacts() {
			out = append(out, a.Name)
		}
		return out
	}

	if got := names(res); strings.Join(got, ",") != "classification.xlsx,report.html,summary.txt" {
		t.Errorf("Artifacts() = %v", got)
	}

	res.ClassificationText = "Account | Status"
	res.ReconciliationText = "OUTPUT B"
	if got := names(res); len(got) != 5 || got[3] != pipeline.ClassificationFile || got[4] != pipeline.ReconciliationFile {
		t.Errorf("Artifacts() = %v", got)
	}
}
