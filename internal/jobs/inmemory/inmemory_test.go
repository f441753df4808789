package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kevalkarani/balance-sheet-buddy/internal/jobs"
	"github.com/kevalkarani/balance-sheet-buddy/internal/logger"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), zerolog.Nop()))
	t.Cleanup(cancel)
	return ctx
}

func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus) *jobs.AnalysisJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := store.GetJob(context.Background(), jobID)
	t.Fatalf("job %s did not reach %s, last state %+v", jobID, want, job)
	return nil
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		job := &jobs.AnalysisJob{JobID: id, Status: jobs.JobStatusPending, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if id == "b" {
			job.SessionID = "session_1"
			job.Status = jobs.JobStatusCompleted
		}
		if err := store.SaveJob(ctx, job); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"all newest first", jobs.JobFilter{}, []string{"c", "b", "a"}},
		{"by status", jobs.JobFilter{Status: jobs.JobStatusPending}, []string{"c", "a"}},
		{"by session", jobs.JobFilter{SessionID: "session_1"}, []string{"b"}},
		{"limit", jobs.JobFilter{Limit: 1}, []string{"c"}},
		{"offset", jobs.JobFilter{Offset: 2}, []string{"a"}},
		{"offset past end", jobs.JobFilter{Offset: 5}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListJobs(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].JobID != tt.want[i] {
					t.Errorf("job %d = %s, want %s", i, got[i].JobID, tt.want[i])
				}
			}
		})
	}

	if _, err := store.GetJob(ctx, "missing"); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("GetJob() error = %v", err)
	}
	if err := store.SaveJob(ctx, &jobs.AnalysisJob{}); err == nil {
		t.Error("expected error for empty job id")
	}
	if err := store.UpdateJobStatus(ctx, "a", jobs.JobStatusFailed, "boom"); err != nil {
		t.Fatal(err)
	}
	if job, _ := store.GetJob(ctx, "a"); job.Status != jobs.JobStatusFailed || job.Error != "boom" {
		t.Errorf("job = %+v", job)
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	job := &jobs.AnalysisJob{JobID: "a", GL: []string{"gl.csv"}}
	_ = store.SaveJob(ctx, job)
	job.GL[0] = "changed.csv"

	got, _ := store.GetJob(ctx, "a")
	if got.GL[0] != "gl.csv" {
		t.Errorf("stored job aliased caller slice: %v", got.GL)
	}
}

func TestQueue_ProcessesJob(t *testing.T) {
	ctx := testContext(t)
	store := NewStore()
	q := NewQueue(10, store)
	defer q.Close()

	err := q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		j := job.(*jobs.AnalysisJob)
		j.SessionID = "session_ab12cd34_20240201_100000"
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	job := &jobs.AnalysisJob{TrialBalance: "tb.csv", Mapping: "map.csv"}
	if err := q.PublishAnalysis(ctx, job); err != nil {
		t.Fatal(err)
	}
	if job.JobID == "" || job.MaxRetries != jobs.DefaultMaxRetries {
		t.Errorf("defaults not applied: %+v", job)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.SessionID == "" || done.CompletedAt == nil {
		t.Errorf("job = %+v", done)
	}
}

func TestQueue_RetriesThenFails(t *testing.T) {
	ctx := testContext(t)
	store := NewStore()
	q := NewQueue(10, store)
	q.Workers = 1
	q.Backoff = func(int) time.Duration { return time.Millisecond }
	defer q.Close()

	var calls int32
	_ = q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("model unavailable")
	})

	job := &jobs.AnalysisJob{MaxRetries: 2}
	if err := q.PublishAnalysis(ctx, job); err != nil {
		t.Fatal(err)
	}

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if failed.RetryCount != 2 || failed.Error != "model unavailable" {
		t.Errorf("job = %+v", failed)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("handler calls = %d, want 3", got)
	}
}

func TestQueue_PermanentErrorNotRetried(t *testing.T) {
	ctx := testContext(t)
	store := NewStore()
	q := NewQueue(10, store)
	defer q.Close()

	var calls int32
	_ = q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		atomic.AddInt32(&calls, 1)
		return jobs.Permanent(errors.New("header not found"))
	})

	job := &jobs.AnalysisJob{}
	_ = q.PublishAnalysis(ctx, job)

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if failed.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", failed.RetryCount)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("handler calls = %d, want 1", got)
	}
}

func TestQueue_Closed(t *testing.T) {
	q := NewQueue(1, nil)
	if err := q.Close(); err != nil {
		t.Fatal(err)
	}
	if err := q.PublishAnalysis(context.Background(), &jobs.AnalysisJob{}); err == nil {
		t.Error("expected error publishing to closed queue")
	}
	if err := q.Start(context.Background(), nil); err == nil {
		t.Error("expected error starting closed queue")
	}
	if err := q.Stop(context.Background()); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}
