// Package queue implements the database-backed job queue and its workers.
//
// Two logical queues share one table: "background" for scheduled and
// admin-triggered batch jobs, "interactive" for user-initiated single-item
// lookups that must not wait behind a batch run. Claiming is a single
// atomic UPDATE, so multiple worker processes can poll the same table.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/appmetry/appmetry/internal/idgen"
	"github.com/appmetry/appmetry/internal/store"
)

// Logical queue names.
const (
	Background  = "background"
	Interactive = "interactive"
)

// Job statuses.
const (
	statusQueued  = "queued"
	statusRunning = "running"
	statusDone    = "done"
	statusFailed  = "failed"
)

// ErrEmptyType is returned when an enqueued job has no type.
var ErrEmptyType = errors.New("queue: job type is required")

// Job is one queue message. Jobs are transient: they exist for dispatch and
// retry bookkeeping only; the audit trail lives in scrape_runs.
type Job struct {
	ID          string
	Queue       string
	Type        string
	Target      string // optional: single slug/keyword to scope the pipeline
	TriggeredBy string
	Attempts    int
}

// Config configures queue behaviour.
type Config struct {
	// MaxAttempts is the total number of executions before a job is marked
	// failed. Default: 3.
	MaxAttempts int
	// RetryBackoff is the base requeue delay, doubled per prior attempt.
	// Default: 30s.
	RetryBackoff time.Duration
}

func (c *Config) defaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 30 * time.Second
	}
}

// Queue wraps the jobs table.
type Queue struct {
	db     *sql.DB
	config Config
	logger *slog.Logger
	newID  idgen.Generator
	now    func() time.Time
}

// New creates a Queue.
func New(db *sql.DB, cfg Config, logger *slog.Logger) *Queue {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		db:     db,
		config: cfg,
		logger: logger,
		newID:  idgen.Prefixed("job_", idgen.Default),
		now:    time.Now,
	}
}

// Enqueue inserts a job and returns its ID.
func (q *Queue) Enqueue(ctx context.Context, job *Job) (string, error) {
	if job.Type == "" {
		return "", ErrEmptyType
	}
	if job.Queue == "" {
		job.Queue = Background
	}
	if job.ID == "" {
		job.ID = q.newID()
	}
	now := q.now().UnixMilli()
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO jobs (id, queue, job_type, target, triggered_by, status,
		max_attempts, next_attempt_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Queue, job.Type, job.Target, job.TriggeredBy,
		statusQueued, q.config.MaxAttempts, now, now, now)
	if err != nil {
		return "", fmt.Errorf("enqueue: %w", err)
	}
	return job.ID, nil
}

// ClaimNext atomically claims the oldest due job in a queue, or returns nil
// when none is due. The claim bumps the attempt counter.
func (q *Queue) ClaimNext(ctx context.Context, queueName string) (*Job, error) {
	now := q.now().UnixMilli()
	row := q.db.QueryRowContext(ctx,
		`UPDATE jobs SET status = ?, attempts = attempts + 1, updated_at = ?
		WHERE id = (
			SELECT id FROM jobs
			WHERE queue = ? AND status = ? AND next_attempt_at <= ?
			ORDER BY created_at ASC LIMIT 1
		)
		RETURNING id, queue, job_type, target, triggered_by, attempts`,
		statusRunning, now, queueName, statusQueued, now)

	var job Job
	err := row.Scan(&job.ID, &job.Queue, &job.Type, &job.Target, &job.TriggeredBy, &job.Attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return &job, nil
}

// Complete marks a claimed job done.
func (q *Queue) Complete(ctx context.Context, jobID string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`,
		statusDone, q.now().UnixMilli(), jobID)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// Release returns a claimed job after a failed execution: requeued with
// backoff while attempts remain, otherwise marked failed with the terminal
// error preserved. Reports whether the job is terminally failed.
func (q *Queue) Release(ctx context.Context, job *Job, errText string) (bool, error) {
	now := q.now().UnixMilli()
	if job.Attempts >= q.config.MaxAttempts {
		_, err := q.db.ExecContext(ctx,
			`UPDATE jobs SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
			statusFailed, errText, now, job.ID)
		if err != nil {
			return false, fmt.Errorf("fail job: %w", err)
		}
		return true, nil
	}

	backoff := q.config.RetryBackoff
	for i := 1; i < job.Attempts; i++ {
		backoff *= 2
	}
	_, err := q.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, last_error = ?, next_attempt_at = ?,
		updated_at = ? WHERE id = ?`,
		statusQueued, errText, now+backoff.Milliseconds(), now, job.ID)
	if err != nil {
		return false, fmt.Errorf("requeue job: %w", err)
	}
	return false, nil
}

// EnqueueOrRecord enqueues a job; if the queue backend rejects the write,
// the request is preserved as a pending ScrapeRun for a later reconciliation
// pass instead of being lost.
func EnqueueOrRecord(ctx context.Context, q *Queue, st *store.Store, job *Job, logger *slog.Logger) (string, error) {
	id, err := q.Enqueue(ctx, job)
	if err == nil {
		return id, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("queue: enqueue failed, recording pending run", "job_type", job.Type, "error", err)

	runID, runErr := st.InsertRun(ctx, &store.Run{
		ScraperType: job.Type,
		Status:      store.RunPending,
		TriggeredBy: job.TriggeredBy,
		Queue:       job.Queue,
	})
	if runErr != nil {
		return "", fmt.Errorf("enqueue failed (%v) and pending-run fallback failed: %w", err, runErr)
	}
	return runID, nil
}
