package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/appmetry/appmetry/internal/store"
)

// Dispatcher routes a claimed job to the pipeline stage matching its type.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *Job, runID string) (store.RunMetadata, error)
}

// Worker polls one logical queue and processes claimed jobs sequentially.
// Every execution gets exactly one ScrapeRun with a terminal status; nothing
// is swallowed above the fetcher's attempt-level logging.
type Worker struct {
	queue        *Queue
	store        *store.Store
	dispatcher   Dispatcher
	queueName    string
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewWorker creates a Worker for one logical queue.
func NewWorker(q *Queue, st *store.Store, d Dispatcher, queueName string, pollInterval time.Duration, logger *slog.Logger) *Worker {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		queue:        q,
		store:        st,
		dispatcher:   d,
		queueName:    queueName,
		pollInterval: pollInterval,
		logger:       logger.With("queue", queueName),
	}
}

// Run polls for jobs on a ticker, draining the queue each tick.
// Blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := w.queue.ClaimNext(ctx, w.queueName)
		if err != nil {
			w.logger.Error("worker: claim failed", "error", err)
			return
		}
		if job == nil {
			return
		}
		w.Process(ctx, job)
	}
}

// Process executes one claimed job: run row, pipeline dispatch, terminal
// status, queue-level retry-or-fail.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.logger.With("job_id", job.ID, "job_type", job.Type, "attempt", job.Attempts)
	start := time.Now()

	runID, err := w.store.InsertRun(ctx, &store.Run{
		ScraperType: job.Type,
		Status:      store.RunRunning,
		TriggeredBy: job.TriggeredBy,
		Queue:       job.Queue,
	})
	if err != nil {
		log.Error("worker: insert run failed", "error", err)
		if _, relErr := w.queue.Release(ctx, job, "insert run: "+err.Error()); relErr != nil {
			log.Error("worker: release failed", "error", relErr)
		}
		return
	}

	meta, dispatchErr := w.dispatcher.Dispatch(ctx, job, runID)
	meta.DurationMs = time.Since(start).Milliseconds()

	if dispatchErr != nil {
		if err := w.store.FailRun(ctx, runID, dispatchErr.Error(), meta); err != nil {
			log.Error("worker: fail run failed", "error", err)
		}
		terminal, err := w.queue.Release(ctx, job, dispatchErr.Error())
		if err != nil {
			log.Error("worker: release failed", "error", err)
		}
		log.Warn("worker: job failed", "error", dispatchErr, "terminal", terminal,
			"duration_ms", meta.DurationMs)
		return
	}

	if err := w.store.CompleteRun(ctx, runID, meta); err != nil {
		log.Error("worker: complete run failed", "error", err)
	}
	if err := w.queue.Complete(ctx, job.ID); err != nil {
		log.Error("worker: complete job failed", "error", err)
	}
	log.Info("worker: job completed", "items_scraped", meta.ItemsScraped,
		"items_failed", meta.ItemsFailed, "duration_ms", meta.DurationMs)
}
