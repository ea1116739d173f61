package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RecordSighting upserts the day-granularity counter for one observation of
// subjectKey in contextKey. First observation of the (subject, context, day)
// triple inserts the row; later same-day observations increment
// times_seen_in_day and overwrite last_seen_run_id. first_seen_run_id never
// changes after insert.
//
// The increment is a single atomic upsert, safe under concurrent writers.
func (s *Store) RecordSighting(ctx context.Context, subjectKey, contextKey string, observedAt time.Time, runID string) error {
	seenDate := observedAt.UTC().Format("2006-01-02")
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO sightings (subject_key, context_key, seen_date,
		first_seen_run_id, last_seen_run_id, times_seen_in_day)
		VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT(subject_key, context_key, seen_date) DO UPDATE SET
			times_seen_in_day = times_seen_in_day + 1,
			last_seen_run_id = excluded.last_seen_run_id`,
		subjectKey, contextKey, seenDate, runID, runID)
	if err != nil {
		return fmt.Errorf("record sighting: %w", err)
	}
	return nil
}

// GetSighting returns the counter row for one (subject, context, day), or nil.
func (s *Store) GetSighting(ctx context.Context, subjectKey, contextKey, seenDate string) (*Sighting, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT subject_key, context_key, seen_date, first_seen_run_id,
		last_seen_run_id, times_seen_in_day
		FROM sightings WHERE subject_key = ? AND context_key = ? AND seen_date = ?`,
		subjectKey, contextKey, seenDate)

	var sg Sighting
	err := row.Scan(&sg.SubjectKey, &sg.ContextKey, &sg.SeenDate,
		&sg.FirstSeenRunID, &sg.LastSeenRunID, &sg.TimesSeenInDay)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan sighting: %w", err)
	}
	return &sg, nil
}

// ListSightings returns a context's sighting rows from a date onward,
// newest day first.
func (s *Store) ListSightings(ctx context.Context, contextKey, fromDate string) ([]*Sighting, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT subject_key, context_key, seen_date, first_seen_run_id,
		last_seen_run_id, times_seen_in_day
		FROM sightings WHERE context_key = ? AND seen_date >= ?
		ORDER BY seen_date DESC, subject_key ASC`, contextKey, fromDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Sighting
	for rows.Next() {
		var sg Sighting
		if err := rows.Scan(&sg.SubjectKey, &sg.ContextKey, &sg.SeenDate,
			&sg.FirstSeenRunID, &sg.LastSeenRunID, &sg.TimesSeenInDay); err != nil {
			return nil, fmt.Errorf("scan sighting: %w", err)
		}
		result = append(result, &sg)
	}
	return result, rows.Err()
}
