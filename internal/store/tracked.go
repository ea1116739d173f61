package store

import (
	"context"
	"fmt"
	"time"
)

// UpsertTrackedApp adds a listing to the tracked set or refreshes its name.
func (s *Store) UpsertTrackedApp(ctx context.Context, slug, name string) error {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO tracked_apps (slug, name, enabled, added_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(slug) DO UPDATE SET name = excluded.name`,
		slug, name, now)
	if err != nil {
		return fmt.Errorf("upsert tracked app: %w", err)
	}
	return nil
}

// ListTrackedApps returns enabled tracked apps, oldest first.
func (s *Store) ListTrackedApps(ctx context.Context) ([]*TrackedApp, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT slug, name, enabled, added_at FROM tracked_apps
		WHERE enabled = 1 ORDER BY added_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []*TrackedApp
	for rows.Next() {
		var a TrackedApp
		var enabled int
		if err := rows.Scan(&a.Slug, &a.Name, &enabled, &a.AddedAt); err != nil {
			return nil, fmt.Errorf("scan tracked app: %w", err)
		}
		a.Enabled = enabled != 0
		apps = append(apps, &a)
	}
	return apps, rows.Err()
}

// UpsertTrackedKeyword adds a keyword to the tracked set.
func (s *Store) UpsertTrackedKeyword(ctx context.Context, keyword string) error {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO tracked_keywords (keyword, enabled, added_at)
		VALUES (?, 1, ?)
		ON CONFLICT(keyword) DO NOTHING`, keyword, now)
	if err != nil {
		return fmt.Errorf("upsert tracked keyword: %w", err)
	}
	return nil
}

// ListTrackedKeywords returns enabled tracked keywords, oldest first.
func (s *Store) ListTrackedKeywords(ctx context.Context) ([]*TrackedKeyword, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT keyword, enabled, added_at FROM tracked_keywords
		WHERE enabled = 1 ORDER BY added_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var kws []*TrackedKeyword
	for rows.Next() {
		var k TrackedKeyword
		var enabled int
		if err := rows.Scan(&k.Keyword, &enabled, &k.AddedAt); err != nil {
			return nil, fmt.Errorf("scan tracked keyword: %w", err)
		}
		k.Enabled = enabled != 0
		kws = append(kws, &k)
	}
	return kws, rows.Err()
}
