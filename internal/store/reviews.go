package store

import (
	"context"
	"fmt"
	"time"
)

// InsertReviews appends scraped reviews, skipping ones already recorded for
// the app. Returns the number actually inserted.
func (s *Store) InsertReviews(ctx context.Context, reviews []*Review) (int, error) {
	inserted := 0
	for _, r := range reviews {
		res, err := s.DB.ExecContext(ctx,
			`INSERT INTO reviews (app_key, review_id, rating, author, body, posted_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(app_key, review_id) DO NOTHING`,
			r.AppKey, r.ReviewID, r.Rating, r.Author, r.Body, r.PostedAt)
		if err != nil {
			return inserted, fmt.Errorf("insert review %s/%s: %w", r.AppKey, r.ReviewID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, err
		}
		inserted += int(n)
	}
	return inserted, nil
}

// ReviewWindows returns the trailing 7/30/90-day review counts for an app,
// relative to now. These feed the momentum scorer.
func (s *Store) ReviewWindows(ctx context.Context, appKey string, now time.Time) (v7, v30, v90 int, err error) {
	cut7 := now.AddDate(0, 0, -7).UnixMilli()
	cut30 := now.AddDate(0, 0, -30).UnixMilli()
	cut90 := now.AddDate(0, 0, -90).UnixMilli()
	err = s.DB.QueryRowContext(ctx,
		`SELECT
		COUNT(CASE WHEN posted_at >= ? THEN 1 END),
		COUNT(CASE WHEN posted_at >= ? THEN 1 END),
		COUNT(CASE WHEN posted_at >= ? THEN 1 END)
		FROM reviews WHERE app_key = ?`,
		cut7, cut30, cut90, appKey).Scan(&v7, &v30, &v90)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("review windows: %w", err)
	}
	return v7, v30, v90, nil
}
