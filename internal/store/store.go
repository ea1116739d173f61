// Package store is the persistence layer: run tracking, immutable snapshots,
// field-change detection, sighting aggregation, reviews, the tracked-entity
// registry, derived metrics, and the job queue table.
//
// Everything is append-only or unique-key upserts; historical rows are never
// deleted or rewritten.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/appmetry/appmetry/internal/idgen"
)

// Store wraps the shared SQLite database.
type Store struct {
	DB    *sql.DB
	newID idgen.Generator
}

// NewStore creates a Store from an already-opened database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db, newID: idgen.Default}
}

// ignoreNoRows turns sql.ErrNoRows into a nil error for nil-row getters
// and wraps everything else.
func ignoreNoRows(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
