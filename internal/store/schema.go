package store

import "database/sql"

// Schema is the complete appmetry schema.
const Schema = `
-- One row per job execution (audit trail, never deleted)
CREATE TABLE IF NOT EXISTS scrape_runs (
    id            TEXT PRIMARY KEY,
    scraper_type  TEXT NOT NULL,
    status        TEXT NOT NULL DEFAULT 'pending',
    triggered_by  TEXT NOT NULL DEFAULT '',
    queue         TEXT NOT NULL DEFAULT '',
    items_scraped INTEGER NOT NULL DEFAULT 0,
    items_failed  INTEGER NOT NULL DEFAULT 0,
    duration_ms   INTEGER NOT NULL DEFAULT 0,
    error         TEXT NOT NULL DEFAULT '',
    created_at    INTEGER NOT NULL,
    started_at    INTEGER NOT NULL DEFAULT 0,
    completed_at  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_type_started ON scrape_runs(scraper_type, started_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_started ON scrape_runs(started_at DESC);

-- Queue backend: jobs are transient but retry bookkeeping lives here
CREATE TABLE IF NOT EXISTS jobs (
    id              TEXT PRIMARY KEY,
    queue           TEXT NOT NULL,
    job_type        TEXT NOT NULL,
    target          TEXT NOT NULL DEFAULT '',
    triggered_by    TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL DEFAULT 'queued',
    attempts        INTEGER NOT NULL DEFAULT 0,
    max_attempts    INTEGER NOT NULL DEFAULT 3,
    next_attempt_at INTEGER NOT NULL DEFAULT 0,
    last_error      TEXT NOT NULL DEFAULT '',
    created_at      INTEGER NOT NULL,
    updated_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_claim ON jobs(queue, status, next_attempt_at, created_at);

-- Immutable entity snapshots; latest = max(scraped_at) per entity
CREATE TABLE IF NOT EXISTS snapshots (
    id           TEXT PRIMARY KEY,
    entity_type  TEXT NOT NULL,
    entity_key   TEXT NOT NULL,
    fields_json  TEXT NOT NULL,
    scraped_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_entity ON snapshots(entity_type, entity_key, scraped_at DESC);

-- One row per changed tracked field between consecutive snapshots
CREATE TABLE IF NOT EXISTS field_changes (
    id           TEXT PRIMARY KEY,
    entity_type  TEXT NOT NULL,
    entity_key   TEXT NOT NULL,
    field        TEXT NOT NULL,
    old_value    TEXT NOT NULL,
    new_value    TEXT NOT NULL,
    detected_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_changes_entity ON field_changes(entity_type, entity_key, detected_at DESC);
CREATE INDEX IF NOT EXISTS idx_changes_time ON field_changes(detected_at DESC);

-- Day-granularity sighting counters (ads, featured placements)
CREATE TABLE IF NOT EXISTS sightings (
    subject_key       TEXT NOT NULL,
    context_key       TEXT NOT NULL,
    seen_date         TEXT NOT NULL,
    first_seen_run_id TEXT NOT NULL,
    last_seen_run_id  TEXT NOT NULL,
    times_seen_in_day INTEGER NOT NULL DEFAULT 1,
    UNIQUE(subject_key, context_key, seen_date)
);
CREATE INDEX IF NOT EXISTS idx_sightings_context ON sightings(context_key, seen_date DESC);

-- Append-only scraped reviews, deduplicated per app
CREATE TABLE IF NOT EXISTS reviews (
    app_key    TEXT NOT NULL,
    review_id  TEXT NOT NULL,
    rating     INTEGER NOT NULL DEFAULT 0,
    author     TEXT NOT NULL DEFAULT '',
    body       TEXT NOT NULL DEFAULT '',
    posted_at  INTEGER NOT NULL,
    UNIQUE(app_key, review_id)
);
CREATE INDEX IF NOT EXISTS idx_reviews_app_posted ON reviews(app_key, posted_at DESC);

-- Curated tracked set
CREATE TABLE IF NOT EXISTS tracked_apps (
    slug     TEXT PRIMARY KEY,
    name     TEXT NOT NULL DEFAULT '',
    enabled  INTEGER NOT NULL DEFAULT 1,
    added_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS tracked_keywords (
    keyword  TEXT PRIMARY KEY,
    enabled  INTEGER NOT NULL DEFAULT 1,
    added_at INTEGER NOT NULL
);

-- Derived metrics: recomputation is an idempotent upsert
CREATE TABLE IF NOT EXISTS review_metrics (
    app_key     TEXT PRIMARY KEY,
    v7          INTEGER NOT NULL,
    v30         INTEGER NOT NULL,
    v90         INTEGER NOT NULL,
    acc_micro   REAL NOT NULL,
    acc_macro   REAL NOT NULL,
    trend       TEXT NOT NULL,
    computed_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS keyword_scores (
    keyword         TEXT PRIMARY KEY,
    score           INTEGER NOT NULL,
    room            REAL NOT NULL,
    demand          REAL NOT NULL,
    organic         REAL NOT NULL,
    maturity        REAL NOT NULL,
    quality         REAL NOT NULL,
    organic_count   INTEGER NOT NULL,
    sponsored_count INTEGER NOT NULL,
    bfs_count       INTEGER NOT NULL,
    apps_1000_plus  INTEGER NOT NULL,
    apps_100_plus   INTEGER NOT NULL,
    top1_share      REAL NOT NULL,
    top4_share      REAL NOT NULL,
    top_apps_json   TEXT NOT NULL DEFAULT '[]',
    computed_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS similarity_scores (
    app_a          TEXT NOT NULL,
    app_b          TEXT NOT NULL,
    category_score REAL NOT NULL,
    feature_score  REAL NOT NULL,
    keyword_score  REAL NOT NULL,
    text_score     REAL NOT NULL,
    overall        REAL NOT NULL,
    computed_at    INTEGER NOT NULL,
    UNIQUE(app_a, app_b)
);
`

// ApplySchema creates all tables and indexes on the given database.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
