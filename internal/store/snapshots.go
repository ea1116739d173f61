package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

// RecordSnapshot inserts a new immutable snapshot row. It never updates an
// existing snapshot; history accumulates append-only.
func (s *Store) RecordSnapshot(ctx context.Context, entityType, entityKey string, fields Fields, scrapedAt time.Time) (string, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}
	id := "snap_" + s.newID()
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO snapshots (id, entity_type, entity_key, fields_json, scraped_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, entityType, entityKey, string(data), scrapedAt.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("insert snapshot: %w", err)
	}
	return id, nil
}

// LatestSnapshot returns the newest snapshot for an entity, or nil.
func (s *Store) LatestSnapshot(ctx context.Context, entityType, entityKey string) (*Snapshot, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, entity_type, entity_key, fields_json, scraped_at
		FROM snapshots WHERE entity_type = ? AND entity_key = ?
		ORDER BY scraped_at DESC LIMIT 1`, entityType, entityKey)
	return scanSnapshot(row)
}

// latestTwo returns up to the two newest snapshots for an entity,
// newest first.
func (s *Store) latestTwo(ctx context.Context, entityType, entityKey string) ([]*Snapshot, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, entity_type, entity_key, fields_json, scraped_at
		FROM snapshots WHERE entity_type = ? AND entity_key = ?
		ORDER BY scraped_at DESC LIMIT 2`, entityType, entityKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []*Snapshot
	for rows.Next() {
		var snap Snapshot
		var fieldsJSON string
		if err := rows.Scan(&snap.ID, &snap.EntityType, &snap.EntityKey, &fieldsJSON, &snap.ScrapedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(fieldsJSON), &snap.Fields); err != nil {
			return nil, fmt.Errorf("unmarshal fields: %w", err)
		}
		snaps = append(snaps, &snap)
	}
	return snaps, rows.Err()
}

// DetectChanges compares the entity's two newest snapshots field-by-field
// over the given tracked fields and records one FieldChange row per
// difference. If fewer than two snapshots exist, the first observation is
// baseline only and no changes are recorded.
//
// Comparison is structural: scalar values compare exactly; list values
// compare as order-insensitive sets. Recorded values are the full JSON
// encodings of before and after; consumers compute added/removed diffs.
//
// The caller invokes this exactly once per newly inserted snapshot.
func (s *Store) DetectChanges(ctx context.Context, entityType, entityKey string, trackedFields []string) ([]*FieldChange, error) {
	snaps, err := s.latestTwo(ctx, entityType, entityKey)
	if err != nil {
		return nil, err
	}
	if len(snaps) < 2 {
		return nil, nil
	}
	newest, prev := snaps[0], snaps[1]

	now := time.Now().UnixMilli()
	var changes []*FieldChange
	for _, field := range trackedFields {
		oldVal := prev.Fields[field]
		newVal := newest.Fields[field]
		if fieldEqual(oldVal, newVal) {
			continue
		}
		oldJSON, err := json.Marshal(oldVal)
		if err != nil {
			return nil, fmt.Errorf("marshal old %s: %w", field, err)
		}
		newJSON, err := json.Marshal(newVal)
		if err != nil {
			return nil, fmt.Errorf("marshal new %s: %w", field, err)
		}
		change := &FieldChange{
			ID:         "chg_" + s.newID(),
			EntityType: entityType,
			EntityKey:  entityKey,
			Field:      field,
			OldValue:   string(oldJSON),
			NewValue:   string(newJSON),
			DetectedAt: now,
		}
		_, err = s.DB.ExecContext(ctx,
			`INSERT INTO field_changes (id, entity_type, entity_key, field,
			old_value, new_value, detected_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			change.ID, change.EntityType, change.EntityKey, change.Field,
			change.OldValue, change.NewValue, change.DetectedAt)
		if err != nil {
			return nil, fmt.Errorf("insert field change: %w", err)
		}
		changes = append(changes, change)
	}
	return changes, nil
}

// ListChanges returns an entity's field changes newest-first.
func (s *Store) ListChanges(ctx context.Context, entityType, entityKey string, limit int) ([]*FieldChange, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, entity_type, entity_key, field, old_value, new_value, detected_at
		FROM field_changes WHERE entity_type = ? AND entity_key = ?
		ORDER BY detected_at DESC LIMIT ?`, entityType, entityKey, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectChanges(rows)
}

// ListChangesSince returns all field changes detected at or after a cutoff,
// newest-first. Feeds the daily digest.
func (s *Store) ListChangesSince(ctx context.Context, since int64, limit int) ([]*FieldChange, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, entity_type, entity_key, field, old_value, new_value, detected_at
		FROM field_changes WHERE detected_at >= ?
		ORDER BY detected_at DESC LIMIT ?`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectChanges(rows)
}

func collectChanges(rows *sql.Rows) ([]*FieldChange, error) {
	var changes []*FieldChange
	for rows.Next() {
		var c FieldChange
		if err := rows.Scan(&c.ID, &c.EntityType, &c.EntityKey, &c.Field,
			&c.OldValue, &c.NewValue, &c.DetectedAt); err != nil {
			return nil, fmt.Errorf("scan field change: %w", err)
		}
		changes = append(changes, &c)
	}
	return changes, rows.Err()
}

func scanSnapshot(row *sql.Row) (*Snapshot, error) {
	var snap Snapshot
	var fieldsJSON string
	err := row.Scan(&snap.ID, &snap.EntityType, &snap.EntityKey, &fieldsJSON, &snap.ScrapedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(fieldsJSON), &snap.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	return &snap, nil
}

// fieldEqual compares two snapshot field values structurally. Lists compare
// as order-insensitive string sets; everything else compares by normalized
// JSON scalar value. Values arrive either as Go types (fresh snapshot) or as
// decoded JSON (float64, []any), so both shapes normalize first.
func fieldEqual(a, b any) bool {
	la, aIsList := asStringList(a)
	lb, bIsList := asStringList(b)
	if aIsList || bIsList {
		if !aIsList || !bIsList {
			return false
		}
		if len(la) != len(lb) {
			return false
		}
		sort.Strings(la)
		sort.Strings(lb)
		for i := range la {
			if la[i] != lb[i] {
				return false
			}
		}
		return true
	}
	return scalarString(a) == scalarString(b)
}

func asStringList(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		out := make([]string, len(list))
		copy(out, list)
		return out, true
	case []any:
		out := make([]string, 0, len(list))
		for _, it := range list {
			out = append(out, scalarString(it))
		}
		return out, true
	default:
		return nil, false
	}
}

// scalarString normalizes scalars across the marshal/unmarshal boundary
// (int vs float64, etc.) by re-encoding to JSON.
func scalarString(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
