package store

// RunStatus is the ScrapeRun lifecycle state.
// pending → running → {completed | failed}; terminal states never transition.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is one recorded execution of a scrape/compute job.
type Run struct {
	ID          string
	ScraperType string
	Status      RunStatus
	TriggeredBy string
	Queue       string
	Metadata    RunMetadata
	Error       string
	CreatedAt   int64 // unix millis
	StartedAt   int64
	CompletedAt int64 // 0 until terminal
}

// RunMetadata is the outcome bookkeeping attached to a terminal run.
type RunMetadata struct {
	ItemsScraped int
	ItemsFailed  int
	DurationMs   int64
}

// Entity types snapshotted by the pipeline.
const (
	EntityApp      = "app"
	EntityCategory = "category"
	EntityKeyword  = "keyword"
	EntitySimilar  = "similar"
)

// Fields is the scraped field set of one snapshot. Values are strings,
// numbers, or lists of strings; the set of keys is fixed per entity type.
type Fields map[string]any

// Snapshot is an immutable, timestamped copy of an entity's scraped fields.
type Snapshot struct {
	ID         string
	EntityType string
	EntityKey  string
	Fields     Fields
	ScrapedAt  int64 // unix millis
}

// FieldChange records one field whose value differs between an entity's two
// most recent snapshots. Values are JSON-encoded; list-valued fields carry
// the full before/after lists.
type FieldChange struct {
	ID         string
	EntityType string
	EntityKey  string
	Field      string
	OldValue   string
	NewValue   string
	DetectedAt int64
}

// Sighting is a day-granularity frequency counter over observations of a
// subject in a context (an ad under a keyword, an app in a featured section).
type Sighting struct {
	SubjectKey     string
	ContextKey     string
	SeenDate       string // "2006-01-02", UTC
	FirstSeenRunID string
	LastSeenRunID  string
	TimesSeenInDay int
}

// Review is one scraped app review, deduplicated by (app, review ID).
type Review struct {
	AppKey   string
	ReviewID string
	Rating   int
	Author   string
	Body     string
	PostedAt int64 // unix millis
}

// TrackedApp is a curated marketplace listing the pipelines iterate.
type TrackedApp struct {
	Slug    string
	Name    string
	Enabled bool
	AddedAt int64
}

// TrackedKeyword is a curated search keyword the pipelines iterate.
type TrackedKeyword struct {
	Keyword string
	Enabled bool
	AddedAt int64
}

// ReviewMetricsRow is the persisted momentum derivation for one app.
type ReviewMetricsRow struct {
	AppKey     string
	V7         int
	V30        int
	V90        int
	AccMicro   float64
	AccMacro   float64
	Trend      string
	ComputedAt int64
}

// KeywordScoreRow is the persisted opportunity derivation for one keyword.
type KeywordScoreRow struct {
	Keyword        string
	Score          int
	Room           float64
	Demand         float64
	Organic        float64
	Maturity       float64
	Quality        float64
	OrganicCount   int
	SponsoredCount int
	BFSCount       int
	Apps1000Plus   int
	Apps100Plus    int
	Top1Share      float64
	Top4Share      float64
	TopAppsJSON    string
	ComputedAt     int64
}

// SimilarityRow is the persisted similarity derivation for one app pair.
// AppA < AppB lexicographically so recomputation hits the same row.
type SimilarityRow struct {
	AppA          string
	AppB          string
	CategoryScore float64
	FeatureScore  float64
	KeywordScore  float64
	TextScore     float64
	Overall       float64
	ComputedAt    int64
}
