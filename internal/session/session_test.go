package session

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/kevalkarani/balance-sheet-buddy/internal/domain"
	"github.com/kevalkarani/balance-sheet-buddy/internal/reconciliation"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func snapshot(id string) Snapshot {
	rows := []domain.LedgerRow{{Account: "1000 - Cash", Debit: d("500"), Credit: d("0"), Category: "Asset", Subcategory: "Banks"}}
	return Snapshot{
		SessionID:       id,
		ExportTimestamp: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		Data: Data{
			Ledger: rows,
			Classification: []domain.ClassificationRecord{{
				LedgerRow:   rows[0],
				BalanceType: domain.BalanceDebit,
				Amount:      d("500"),
				Status:      domain.StatusPass,
				Commentary:  "Asset with Debit balance - Correct",
			}},
			GLEntries: []domain.GLEntry{
				{Account: "1000 - Cash", Date: civil.Date{Year: 2024, Month: 1, Day: 31}, Description: "Deposit", Debit: d("500"), Credit: d("0")},
				{Account: "1000 - Cash", Description: "Undated", Debit: d("0"), Credit: d("1")},
			},
			ClassificationResult: "Account | Status\n1000 - Cash | PASS",
			ExcelOutput:          []byte{0x50, 0x4b, 0x03, 0x04},
			ReconciliationState:  reconciliation.State{"1000 - Cash": {Reconciled: true, Memo: "ok", GLRows: 1}},
			AnalysisComplete:     true,
		},
	}
}

func TestNewID(t *testing.T) {
	rows := []domain.LedgerRow{{Account: "1000 - Cash", Debit: d("500"), Credit: d("0")}}
	at := time.Date(2024, 2, 1, 10, 4, 5, 0, time.UTC)

	id := NewID(rows, at)
	if !regexp.MustCompile(`^session_[0-9a-f]{8}_20240201_100405$`).MatchString(id) {
		t.Errorf("NewID() = %q", id)
	}
	if NewID(rows, at) != id {
		t.Error("NewID is not deterministic")
	}
	other := []domain.LedgerRow{{Account: "1000 - Cash", Debit: d("501"), Credit: d("0")}}
	if NewID(other, at) == id {
		t.Error("different ledgers share an id")
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	raw, err := Export(snapshot("session_abc12345_20240301_090000"))
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	for _, key := range []string{`"version": "1.0"`, `"export_timestamp"`, `"excel_output": "UEsDBA=="`, `"analysis_complete": true`} {
		if !strings.Contains(string(raw), key) {
			t.Errorf("export missing %s", key)
		}
	}

	got, err := Import(raw)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	want := snapshot("session_abc12345_20240301_090000")
	if got.SessionID != want.SessionID || !got.ExportTimestamp.Equal(want.ExportTimestamp) {
		t.Errorf("header = %+v", got)
	}
	if len(got.Data.GLEntries) != 2 || got.Data.GLEntries[0].Date != want.Data.GLEntries[0].Date || got.Data.GLEntries[1].Date.IsValid() {
		t.Errorf("GL entries = %+v", got.Data.GLEntries)
	}
	rec := got.Data.Classification[0]
	if !rec.Amount.Equal(d("500")) || rec.Status != domain.StatusPass || rec.Category != "Asset" {
		t.Errorf("record = %+v", rec)
	}
	if string(got.Data.ExcelOutput) != string(want.Data.ExcelOutput) {
		t.Errorf("excel output = %v", got.Data.ExcelOutput)
	}
	if !got.Data.ReconciliationState["1000 - Cash"].Reconciled {
		t.Error("reconciliation state lost")
	}
}

func TestImport_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "{"},
		{"missing version", `{"data": {}}`},
		{"missing data", `{"version": "1.0"}`},
		{"array", `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Import([]byte(tt.raw)); !errors.Is(err, ErrInvalidSnapshot) {
				t.Errorf("Import() error = %v, want ErrInvalidSnapshot", err)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	s := snapshot("session_abc12345_20240301_090000")
	want := "session_abc12345_20240301_090000 (exported 2024-03-01 09:00:00): 1 accounts, 2 GL entries, 1 reconciled, analysis complete"
	if got := Describe(&s); got != want {
		t.Errorf("Describe() = %q, want %q", got, want)
	}
}

func TestManager_SaveLoadListCleanup(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sessions")
	now := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	m := NewManager(dir)
	m.now = func() time.Time { return now }

	if infos, err := m.List(); err != nil || len(infos) != 0 {
		t.Fatalf("List(missing dir) = %v, %v", infos, err)
	}

	oldPath, err := m.AutoSave(snapshot("session_old00000_20240101_000000"))
	if err != nil {
		t.Fatalf("AutoSave() error = %v", err)
	}
	if _, err := m.AutoSave(snapshot("session_new00000_20240309_000000")); err != nil {
		t.Fatalf("AutoSave() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	oldTime := now.Add(-10 * 24 * time.Hour)
	if err := os.Chtimes(oldPath, oldTime, oldTime); err != nil {
		t.Fatal(err)
	}
	newTime := now.Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(dir, "session_new00000_20240309_000000.json"), newTime, newTime); err != nil {
		t.Fatal(err)
	}

	infos, err := m.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(infos) != 2 || infos[0].ID != "session_new00000_20240309_000000" {
		t.Errorf("List() = %+v", infos)
	}

	loaded, err := m.AutoLoad("session_old00000_20240101_000000")
	if err != nil || !loaded.Data.AnalysisComplete {
		t.Fatalf("AutoLoad() = %+v, %v", loaded, err)
	}
	if _, err := m.AutoLoad("session_missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("AutoLoad(missing) error = %v", err)
	}
	if _, err := m.AutoLoad("../etc/passwd"); !errors.Is(err, ErrInvalidID) {
		t.Error("expected error for path traversal")
	}

	removed, err := m.Cleanup(DefaultRetention)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if len(removed) != 1 || removed[0] != "session_old00000_20240101_000000" {
		t.Errorf("removed = %v", removed)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("old session still on disk")
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Error("unrelated file was removed")
	}
}

func TestStartSweeper(t *testing.T) {
	m := NewManager(t.TempDir())
	c, err := StartSweeper(m, SweeperConfig{Schedule: "@every 1h", Timezone: "Europe/London"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("StartSweeper() error = %v", err)
	}
	if len(c.Entries()) != 1 {
		t.Errorf("entries = %d, want 1", len(c.Entries()))
	}
	<-c.Stop().Done()

	if _, err := StartSweeper(m, SweeperConfig{Schedule: "not a schedule"}, zerolog.Nop()); err == nil {
		t.Error("expected error for invalid schedule")
	}
}
