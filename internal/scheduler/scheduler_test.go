package scheduler

import (
	"context"
	"testing"

	"github.com/appmetry/appmetry/internal/dbopen"
	"github.com/appmetry/appmetry/internal/queue"
	"github.com/appmetry/appmetry/internal/store"
	_ "modernc.org/sqlite"
)

func testScheduler(t *testing.T) (*Scheduler, *queue.Queue, *store.Store) {
	t.Helper()
	db := dbopen.OpenMemory(t)
	if err := store.ApplySchema(db); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	st := store.NewStore(db)
	q := queue.New(db, queue.Config{}, nil)
	return New(q, st, nil), q, st
}

func TestRegister_ValidatesEntries(t *testing.T) {
	// WHAT: incomplete schedules and bad cron expressions are rejected at
	// registration, before the scheduler ever starts.
	s, _, _ := testScheduler(t)

	if err := s.Register(Schedule{Name: "x", Cron: "0 3 * * *"}); err == nil {
		t.Fatal("missing job type accepted")
	}
	if err := s.Register(Schedule{Name: "x", Cron: "not cron", JobType: "reviews"}); err == nil {
		t.Fatal("bad cron accepted")
	}
	if err := s.Register(Schedule{Name: "ok", Cron: "0 3 * * *", JobType: "reviews"}); err != nil {
		t.Fatalf("valid schedule rejected: %v", err)
	}
	if names := s.Names(); len(names) != 1 || names[0] != "ok" {
		t.Fatalf("names = %v", names)
	}
}

func TestFire_EnqueuesBackgroundJob(t *testing.T) {
	// WHAT: one tick enqueues one background job of the schedule's type,
	// attributed to the scheduler.
	s, q, _ := testScheduler(t)

	s.fire(Schedule{Name: "daily_apps", Cron: "0 3 * * *", JobType: "app_details"})

	job, err := q.ClaimNext(context.Background(), queue.Background)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if job == nil {
		t.Fatal("tick enqueued nothing")
	}
	if job.Type != "app_details" || job.TriggeredBy != "scheduler" {
		t.Fatalf("job = %+v", job)
	}
}

func TestFire_QueueOutageLeavesPendingRun(t *testing.T) {
	// WHAT: when the jobs table is unavailable the tick survives as a
	// pending run and the scheduler does not panic.
	s, _, st := testScheduler(t)
	if _, err := st.DB.Exec(`DROP TABLE jobs`); err != nil {
		t.Fatalf("drop jobs: %v", err)
	}

	s.fire(Schedule{Name: "daily_apps", Cron: "0 3 * * *", JobType: "app_details"})

	runs, err := st.ListRuns(context.Background(), "app_details", 10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != store.RunPending {
		t.Fatalf("runs = %+v, want one pending", runs)
	}
}
