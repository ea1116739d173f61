package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition is returned when a run status update targets a row
// that is not in the expected prior state.
var ErrInvalidTransition = errors.New("store: invalid run status transition")

// InsertRun creates a run row. Status must be RunPending or RunRunning;
// StartedAt is stamped for running runs.
func (s *Store) InsertRun(ctx context.Context, run *Run) (string, error) {
	if run.ID == "" {
		run.ID = "run_" + s.newID()
	}
	now := time.Now().UnixMilli()
	if run.CreatedAt == 0 {
		run.CreatedAt = now
	}
	if run.Status == "" {
		run.Status = RunPending
	}
	if run.Status == RunRunning && run.StartedAt == 0 {
		run.StartedAt = now
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO scrape_runs (id, scraper_type, status, triggered_by, queue,
		created_at, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ScraperType, run.Status, run.TriggeredBy, run.Queue,
		run.CreatedAt, run.StartedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return run.ID, nil
}

// StartRun moves a pending run to running. Used by the reconciliation path
// for runs recorded while the queue backend was unavailable.
func (s *Store) StartRun(ctx context.Context, id string) error {
	now := time.Now().UnixMilli()
	res, err := s.DB.ExecContext(ctx,
		`UPDATE scrape_runs SET status=?, started_at=? WHERE id=? AND status=?`,
		RunRunning, now, id, RunPending)
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return requireTransition(res)
}

// CompleteRun moves a running run to completed with its outcome metadata.
// Terminal states are final; completing a non-running run is an error.
func (s *Store) CompleteRun(ctx context.Context, id string, meta RunMetadata) error {
	now := time.Now().UnixMilli()
	res, err := s.DB.ExecContext(ctx,
		`UPDATE scrape_runs SET status=?, items_scraped=?, items_failed=?,
		duration_ms=?, completed_at=? WHERE id=? AND status=?`,
		RunCompleted, meta.ItemsScraped, meta.ItemsFailed,
		meta.DurationMs, now, id, RunRunning)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return requireTransition(res)
}

// FailRun moves a running run to failed, preserving the error text verbatim.
func (s *Store) FailRun(ctx context.Context, id string, errText string, meta RunMetadata) error {
	now := time.Now().UnixMilli()
	res, err := s.DB.ExecContext(ctx,
		`UPDATE scrape_runs SET status=?, error=?, items_scraped=?, items_failed=?,
		duration_ms=?, completed_at=? WHERE id=? AND status=?`,
		RunFailed, errText, meta.ItemsScraped, meta.ItemsFailed,
		meta.DurationMs, now, id, RunRunning)
	if err != nil {
		return fmt.Errorf("fail run: %w", err)
	}
	return requireTransition(res)
}

// GetRun retrieves a run by ID, or nil if absent.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, scraper_type, status, triggered_by, queue, items_scraped,
		items_failed, duration_ms, error, created_at, started_at, completed_at
		FROM scrape_runs WHERE id = ?`, id)
	run, err := scanRun(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

// ListRuns returns runs newest-first, optionally filtered by scraper type.
func (s *Store) ListRuns(ctx context.Context, scraperType string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, scraper_type, status, triggered_by, queue, items_scraped,
		items_failed, duration_ms, error, created_at, started_at, completed_at
		FROM scrape_runs`
	args := []any{}
	if scraperType != "" {
		query += ` WHERE scraper_type = ?`
		args = append(args, scraperType)
	}
	query += ` ORDER BY started_at DESC, created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CountRunsSince returns terminal-run counts by status since a cutoff.
// Used by the daily digest.
func (s *Store) CountRunsSince(ctx context.Context, since int64) (completed, failed int, err error) {
	err = s.DB.QueryRowContext(ctx,
		`SELECT
		COUNT(CASE WHEN status = ? THEN 1 END),
		COUNT(CASE WHEN status = ? THEN 1 END)
		FROM scrape_runs WHERE completed_at >= ?`,
		RunCompleted, RunFailed, since).Scan(&completed, &failed)
	return completed, failed, err
}

func scanRun(scan func(dest ...any) error) (*Run, error) {
	var r Run
	err := scan(
		&r.ID, &r.ScraperType, &r.Status, &r.TriggeredBy, &r.Queue,
		&r.Metadata.ItemsScraped, &r.Metadata.ItemsFailed, &r.Metadata.DurationMs,
		&r.Error, &r.CreatedAt, &r.StartedAt, &r.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return &r, nil
}

func requireTransition(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidTransition
	}
	return nil
}
