package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/kevalkarani/balance-sheet-buddy/internal/domain"
	"github.com/kevalkarani/balance-sheet-buddy/internal/gcsuploader"
	"github.com/kevalkarani/balance-sheet-buddy/internal/infra/bigquery"
	"github.com/kevalkarani/balance-sheet-buddy/internal/jobs"
	"github.com/kevalkarani/balance-sheet-buddy/internal/jobs/inmemory"
	"github.com/kevalkarani/balance-sheet-buddy/internal/llm"
	"github.com/kevalkarani/balance-sheet-buddy/internal/pipeline"
	"github.com/kevalkarani/balance-sheet-buddy/internal/reconciliation"
	"github.com/kevalkarani/balance-sheet-buddy/internal/session"
	"github.com/kevalkarani/balance-sheet-buddy/internal/tabular"
	"github.com/kevalkarani/balance-sheet-buddy/internal/workspace"
)

// MockPublisher is a mock implementation of jobs.Publisher for testing.
type MockPublisher struct {
	PublishAnalysisFunc func(ctx context.Context, job *jobs.AnalysisJob) error
	Published           []*jobs.AnalysisJob
}

func (m *MockPublisher) PublishAnalysis(ctx context.Context, job *jobs.AnalysisJob) error {
	m.Published = append(m.Published, job)
	if m.PublishAnalysisFunc != nil {
		return m.PublishAnalysisFunc(ctx, job)
	}
	job.JobID = "job-1"
	job.Status = jobs.JobStatusPending
	return nil
}

func (m *MockPublisher) Close() error { return nil }

// MockModelClient is a mock implementation of llm.Client for testing.
type MockModelClient struct {
	GenerateFunc func(ctx context.Context, req llm.Request) (string, error)
}

func (m *MockModelClient) Generate(ctx context.Context, req llm.Request) (string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return "", errors.New("no response configured")
}

// MockAnalyzer is a mock implementation of Analyzer for testing.
type MockAnalyzer struct {
	RunFunc func(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

func (m *MockAnalyzer) Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	return m.RunFunc(ctx, req)
}

// MockArtifactPublisher is a mock implementation of ArtifactPublisher for testing.
type MockArtifactPublisher struct {
	PublishArtifactsFunc func(ctx context.Context, bucket, sessionID string, artifacts []gcsuploader.Artifact) ([]string, error)
}

func (m *MockArtifactPublisher) PublishArtifacts(ctx context.Context, bucket, sessionID string, artifacts []gcsuploader.Artifact) ([]string, error) {
	return m.PublishArtifactsFunc(ctx, bucket, sessionID, artifacts)
}

// MockRunLister is a mock implementation of RunLister for testing.
type MockRunLister struct {
	ListRunsFunc func(ctx context.Context, limit int) ([]*bigquery.AnalysisRunRow, error)
}

func (m *MockRunLister) ListRuns(ctx context.Context, limit int) ([]*bigquery.AnalysisRunRow, error) {
	return m.ListRunsFunc(ctx, limit)
}

const sessionID = "session_ab12cd34_20240201_100000"

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func result() *pipeline.Result {
	rows := []domain.LedgerRow{
		{Account: "1000 - Cash", Debit: d("1500"), Category: "Current Assets", Subcategory: "Cash"},
		{Account: "2000 - Accounts Payable", Debit: d("50"), Category: "Current Liabilities", Subcategory: "Payables"},
	}
	return &pipeline.Result{
		SessionID: sessionID,
		Mode:      pipeline.ModeFull,
		Ledger:    rows,
		GL: []domain.GLEntry{
			{Account: "1000 - Cash", Date: civil.Date{Year: 2024, Month: 1, Day: 15}, Description: "Deposit", Debit: d("1500")},
		},
		Records: []domain.ClassificationRecord{
			{LedgerRow: rows[0], BalanceType: domain.BalanceDebit, Amount: d("1500"), Status: domain.StatusPass},
			{LedgerRow: rows[1], BalanceType: domain.BalanceDebit, Amount: d("50"), Status: domain.StatusMismatch},
		},
		HTML:        "<html><body>report</body></html>",
		SummaryText: "summary",
	}
}

type fixture struct {
	mux       *http.ServeMux
	publisher *MockPublisher
	store     *inmemory.Store
	svc       *workspace.Service
}

func newFixture(t *testing.T, client llm.Client) *fixture {
	t.Helper()
	dir := t.TempDir()
	svc := workspace.NewService(session.NewManager(dir), &reconciliation.FileStore{Dir: dir}, client, workspace.Options{})
	if _, err := svc.Save(result()); err != nil {
		t.Fatal(err)
	}

	f := &fixture{mux: http.NewServeMux(), publisher: &MockPublisher{}, store: inmemory.NewStore(), svc: svc}
	runs := &MockRunLister{ListRunsFunc: func(ctx context.Context, limit int) ([]*bigquery.AnalysisRunRow, error) {
		return []*bigquery.AnalysisRunRow{{RunID: "run-1", SessionID: sessionID, Status: bigquery.StatusSuccess}}, nil
	}}
	log := zerolog.Nop()
	Register(f.mux, Routes{
		Analyses: NewAnalysesHandler(f.publisher, log),
		Jobs:     NewJobsHandler(f.store, log),
		Sessions: NewSessionsHandler(svc, log),
		Runs:     NewRunsHandler(runs, log),
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestCreateAnalysis(t *testing.T) {
	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"accepted", AnalysisRequest{TrialBalance: "gs://b/tb.xlsx", Mapping: "gs://b/map.csv", Mode: "full"}, http.StatusAccepted},
		{"default mode", AnalysisRequest{TrialBalance: "tb.csv", Mapping: "map.csv"}, http.StatusAccepted},
		{"missing mapping", AnalysisRequest{TrialBalance: "tb.csv"}, http.StatusBadRequest},
		{"unknown mode", AnalysisRequest{TrialBalance: "tb.csv", Mapping: "map.csv", Mode: "everything"}, http.StatusBadRequest},
		{"bad json", "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			rec := f.do(t, http.MethodPost, "/api/analyses", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
			if tt.status == http.StatusAccepted {
				if got := decode(t, rec)["job_id"]; got != "job-1" {
					t.Errorf("job_id = %v", got)
				}
				if f.publisher.Published[0].Mode == "" {
					t.Error("mode not defaulted")
				}
			}
		})
	}
}

func TestJobsEndpoints(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_ = f.store.SaveJob(ctx, &jobs.AnalysisJob{JobID: "a", Status: jobs.JobStatusCompleted, SessionID: sessionID, CreatedAt: time.Now()})
	_ = f.store.SaveJob(ctx, &jobs.AnalysisJob{JobID: "b", Status: jobs.JobStatusFailed, CreatedAt: time.Now()})

	rec := f.do(t, http.MethodGet, "/api/jobs?status=completed", nil)
	if rec.Code != http.StatusOK || decode(t, rec)["count"] != float64(1) {
		t.Errorf("list: %d %s", rec.Code, rec.Body.String())
	}
	if rec := f.do(t, http.MethodGet, "/api/jobs/a", nil); rec.Code != http.StatusOK {
		t.Errorf("get: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/jobs/missing", nil); rec.Code != http.StatusNotFound {
		t.Errorf("get missing: %d", rec.Code)
	}
}

func TestSessionEndpoints(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/sessions", nil)
	if rec.Code != http.StatusOK || decode(t, rec)["count"] != float64(1) {
		t.Fatalf("list: %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/api/sessions/"+sessionID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: %d %s", rec.Code, rec.Body.String())
	}
	var got SessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Stats.MismatchCount != 1 || got.Progress.Total != 2 || len(got.Records) != 2 {
		t.Errorf("session = %+v", got)
	}

	rec = f.do(t, http.MethodGet, "/api/sessions/"+sessionID+"/report.html", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "report") {
		t.Errorf("report: %d %s", rec.Code, rec.Body.String())
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html") {
		t.Errorf("content type = %q", rec.Header().Get("Content-Type"))
	}

	// The stored result has no workbook so it is built on demand.
	rec = f.do(t, http.MethodGet, "/api/sessions/"+sessionID+"/classification.xlsx", nil)
	if rec.Code != http.StatusOK || !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Errorf("workbook: %d, %d bytes", rec.Code, rec.Body.Len())
	}

	if rec := f.do(t, http.MethodGet, "/api/sessions/session_missing", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing session: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/sessions/..", nil); rec.Code == http.StatusOK {
		t.Errorf("invalid id served: %d", rec.Code)
	}
}

func TestReconciliationEndpoints(t *testing.T) {
	client := &MockModelClient{GenerateFunc: func(ctx context.Context, req llm.Request) (string, error) {
		return "MEMO: Agrees to bank statement.\nSCHEDULE:\n| Date | Amount |", nil
	}}
	f := newFixture(t, client)
	base := "/api/sessions/" + sessionID + "/reconciliation"
	cash := "/" + url.PathEscape("1000 - Cash")

	rec := f.do(t, http.MethodGet, base+"?filter=mismatch", nil)
	if rec.Code != http.StatusOK || decode(t, rec)["count"] != float64(1) {
		t.Fatalf("filter mismatch: %d %s", rec.Code, rec.Body.String())
	}
	if rec := f.do(t, http.MethodGet, base+"?filter=bogus", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad filter: %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, base+cash, ReconcileRequest{Action: ActionAnalyze})
	if rec.Code != http.StatusOK {
		t.Fatalf("analyze: %d %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["memo"] != "Agrees to bank statement." || !strings.Contains(body["report"].(string), "ACCOUNT RECONCILIATION REPORT") {
		t.Errorf("analyze body = %v", body)
	}

	rec = f.do(t, http.MethodPost, base+cash, ReconcileRequest{Action: ActionReconcile})
	if rec.Code != http.StatusOK {
		t.Fatalf("reconcile: %d %s", rec.Code, rec.Body.String())
	}
	entry := decode(t, rec)["entry"].(map[string]any)
	if entry["reconciled"] != true || entry["memo"] != "Agrees to bank statement." {
		t.Errorf("entry = %v", entry)
	}

	rec = f.do(t, http.MethodGet, base+"?filter=reconciled", nil)
	body = decode(t, rec)
	if body["count"] != float64(1) || body["progress_text"] != "1 of 2 accounts reconciled (50.0%)" {
		t.Errorf("reconciled listing = %v", body)
	}

	if rec := f.do(t, http.MethodPost, base+"/"+url.PathEscape("9999 - Nope"), ReconcileRequest{Action: ActionReconcile}); rec.Code != http.StatusNotFound {
		t.Errorf("unknown account: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, base+cash, ReconcileRequest{Action: "delete"}); rec.Code != http.StatusBadRequest {
		t.Errorf("bad action: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, base+cash, ReconcileRequest{Action: ActionUnreconcile}); rec.Code != http.StatusOK {
		t.Errorf("unreconcile: %d", rec.Code)
	}
}

func TestChatEndpoint(t *testing.T) {
	client := &MockModelClient{GenerateFunc: func(ctx context.Context, req llm.Request) (string, error) {
		if len(req.History) != 2 {
			return "", errors.New("history not forwarded")
		}
		return "One deposit of 1,500.00.", nil
	}}
	f := newFixture(t, client)
	path := "/api/sessions/" + sessionID + "/chat"

	rec := f.do(t, http.MethodPost, path, ChatRequest{
		Question: "What hit cash?",
		History:  []llm.Message{{Role: llm.RoleUser, Text: "hi"}, {Role: llm.RoleAssistant, Text: "hello"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("chat: %d %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["answer"] != "One deposit of 1,500.00." || len(body["history"].([]any)) != 4 {
		t.Errorf("chat body = %v", body)
	}

	if rec := f.do(t, http.MethodPost, path, ChatRequest{Question: "  "}); rec.Code != http.StatusBadRequest {
		t.Errorf("empty question: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, path, ChatRequest{Question: "no history"}); rec.Code != http.StatusBadGateway {
		t.Errorf("model failure: %d", rec.Code)
	}
}

func TestRunsAndHealth(t *testing.T) {
	f := newFixture(t, nil)
	if rec := f.do(t, http.MethodGet, "/api/runs?limit=5", nil); rec.Code != http.StatusOK || decode(t, rec)["count"] != float64(1) {
		t.Errorf("runs: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/health", nil); rec.Code != http.StatusOK || decode(t, rec)["status"] != "healthy" {
		t.Errorf("health: %d", rec.Code)
	}
}

func TestAnalysisRunner_Handle(t *testing.T) {
	dir := t.TempDir()
	tb := filepath.Join(dir, "tb.csv")
	mapping := filepath.Join(dir, "map.csv")
	for _, p := range []string{tb, mapping} {
		if err := os.WriteFile(p, []byte("Account,Debit,Credit\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	svc := workspace.NewService(session.NewManager(dir), &reconciliation.FileStore{Dir: dir}, nil, workspace.Options{})

	tests := []struct {
		name      string
		job       *jobs.AnalysisJob
		runErr    error
		publish   error
		wantErr   bool
		permanent bool
	}{
		{name: "success", job: &jobs.AnalysisJob{JobID: "1", Mode: "full", TrialBalance: tb, Mapping: mapping}},
		{name: "publish failure is a warning", job: &jobs.AnalysisJob{JobID: "2", TrialBalance: tb, Mapping: mapping}, publish: errors.New("bucket gone")},
		{name: "unknown mode", job: &jobs.AnalysisJob{JobID: "3", Mode: "x", TrialBalance: tb, Mapping: mapping}, wantErr: true, permanent: true},
		{name: "missing file", job: &jobs.AnalysisJob{JobID: "4", TrialBalance: filepath.Join(dir, "nope.csv"), Mapping: mapping}, wantErr: true, permanent: true},
		{name: "input error", job: &jobs.AnalysisJob{JobID: "5", TrialBalance: tb, Mapping: mapping}, runErr: &tabular.HeaderNotFoundError{Scanned: 20}, wantErr: true, permanent: true},
		{name: "transient error", job: &jobs.AnalysisJob{JobID: "6", TrialBalance: tb, Mapping: mapping}, runErr: errors.New("bigquery unavailable"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &AnalysisRunner{
				Analyzer: &MockAnalyzer{RunFunc: func(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
					if tt.runErr != nil {
						return nil, tt.runErr
					}
					return result(), nil
				}},
				Source:    &pipeline.FileSource{},
				Workspace: svc,
				Publisher: &MockArtifactPublisher{PublishArtifactsFunc: func(ctx context.Context, bucket, id string, artifacts []gcsuploader.Artifact) ([]string, error) {
					if tt.publish != nil {
						return nil, tt.publish
					}
					return []string{"gs://" + bucket + "/analyses/" + id + "/report.html"}, nil
				}},
				Bucket: "outputs",
			}

			err := runner.Handle(context.Background(), tt.job)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Handle() error = %v, wantErr %v", err, tt.wantErr)
			}
			if jobs.IsPermanent(err) != tt.permanent {
				t.Errorf("IsPermanent() = %v, want %v", jobs.IsPermanent(err), tt.permanent)
			}
			if tt.wantErr {
				return
			}
			if tt.job.SessionID != sessionID {
				t.Errorf("SessionID = %q", tt.job.SessionID)
			}
			if tt.publish != nil && len(tt.job.Warnings) == 0 {
				t.Error("publish failure not reported")
			}
			if tt.publish == nil && len(tt.job.Artifacts) != 1 {
				t.Errorf("Artifacts = %v", tt.job.Artifacts)
			}
			if _, err := svc.Open(sessionID); err != nil {
				t.Errorf("session not saved: %v", err)
			}
		})
	}
}
