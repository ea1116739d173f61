package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/appmetry/appmetry/internal/store"
)

// fakeDispatcher records calls and returns a scripted outcome.
type fakeDispatcher struct {
	calls []string
	meta  store.RunMetadata
	err   error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, job *Job, runID string) (store.RunMetadata, error) {
	f.calls = append(f.calls, job.Type)
	return f.meta, f.err
}

func TestWorkerProcess_SuccessCompletesRunAndJob(t *testing.T) {
	// WHAT: a successful dispatch yields one completed run with the
	// handler's metadata and a done job.
	q, db := openTestQueue(t, Config{})
	st := store.NewStore(db)
	ctx := context.Background()

	disp := &fakeDispatcher{meta: store.RunMetadata{ItemsScraped: 3, ItemsFailed: 1}}
	w := NewWorker(q, st, disp, Background, 0, nil)

	id, err := q.Enqueue(ctx, &Job{Type: "app_details", TriggeredBy: "test"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job, _ := q.ClaimNext(ctx, Background)
	w.Process(ctx, job)

	if len(disp.calls) != 1 || disp.calls[0] != "app_details" {
		t.Fatalf("dispatch calls = %v", disp.calls)
	}

	runs, err := st.ListRuns(ctx, "app_details", 10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	run := runs[0]
	if run.Status != store.RunCompleted {
		t.Fatalf("run status = %s, want completed", run.Status)
	}
	if run.Metadata.ItemsScraped != 3 || run.Metadata.ItemsFailed != 1 {
		t.Fatalf("run metadata = %+v", run.Metadata)
	}
	if run.TriggeredBy != "test" {
		t.Fatalf("triggered_by = %s", run.TriggeredBy)
	}

	var status string
	db.QueryRow(`SELECT status FROM jobs WHERE id = ?`, id).Scan(&status)
	if status != statusDone {
		t.Fatalf("job status = %s, want done", status)
	}
}

func TestWorkerProcess_FailureFailsRunAndRequeues(t *testing.T) {
	// WHAT: a dispatch error records a failed run with the error text and
	// leaves the job queued for retry.
	// WHY: Every execution gets exactly one terminal run; retries are the
	// queue's business, not the run tracker's.
	q, db := openTestQueue(t, Config{MaxAttempts: 3})
	st := store.NewStore(db)
	ctx := context.Background()

	disp := &fakeDispatcher{err: errors.New("parse exploded")}
	w := NewWorker(q, st, disp, Background, 0, nil)

	id, _ := q.Enqueue(ctx, &Job{Type: "reviews"})
	job, _ := q.ClaimNext(ctx, Background)
	w.Process(ctx, job)

	runs, _ := st.ListRuns(ctx, "reviews", 10)
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	if runs[0].Status != store.RunFailed {
		t.Fatalf("run status = %s, want failed", runs[0].Status)
	}
	if runs[0].Error != "parse exploded" {
		t.Fatalf("run error = %q", runs[0].Error)
	}

	var status string
	db.QueryRow(`SELECT status FROM jobs WHERE id = ?`, id).Scan(&status)
	if status != statusQueued {
		t.Fatalf("job status = %s, want queued for retry", status)
	}
}

func TestWorkerProcess_EachAttemptGetsOwnRun(t *testing.T) {
	// WHAT: three failing attempts leave three failed runs, one per
	// execution, and a terminally failed job.
	q, db := openTestQueue(t, Config{MaxAttempts: 3, RetryBackoff: 1})
	st := store.NewStore(db)
	ctx := context.Background()

	disp := &fakeDispatcher{err: errors.New("still broken")}
	w := NewWorker(q, st, disp, Background, 0, nil)

	id, _ := q.Enqueue(ctx, &Job{Type: "featured"})
	for i := 0; i < 3; i++ {
		job, err := q.ClaimNext(ctx, Background)
		if err != nil || job == nil {
			t.Fatalf("claim %d: job=%v err=%v", i, job, err)
		}
		w.Process(ctx, job)
	}

	runs, _ := st.ListRuns(ctx, "featured", 10)
	if len(runs) != 3 {
		t.Fatalf("runs = %d, want 3", len(runs))
	}

	var status string
	db.QueryRow(`SELECT status FROM jobs WHERE id = ?`, id).Scan(&status)
	if status != statusFailed {
		t.Fatalf("job status = %s, want failed", status)
	}
	if j, _ := q.ClaimNext(ctx, Background); j != nil {
		t.Fatalf("terminal job still claimable: %+v", j)
	}
}
