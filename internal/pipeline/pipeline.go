// Package pipeline executes scrape and compute jobs: fetch the page, parse
// it, snapshot the result, detect changes, and record sightings. One handler
// per job type; Dispatch routes a claimed job to its handler.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/appmetry/appmetry/internal/mail"
	"github.com/appmetry/appmetry/internal/queue"
	"github.com/appmetry/appmetry/internal/store"
)

// Job types understood by Dispatch. The scheduler's job_type column and the
// admin API use these names.
const (
	JobAppDetails     = "app_details"
	JobCategory       = "category"
	JobReviews        = "reviews"
	JobKeywordSearch  = "keyword_search"
	JobFeatured       = "featured"
	JobSimilarApps    = "similar_apps"
	JobComputeMetrics = "compute_metrics"
	JobDailyDigest    = "daily_digest"
)

// ErrUnknownJobType is returned for job types Dispatch does not route.
var ErrUnknownJobType = errors.New("pipeline: unknown job type")

// PageFetcher retrieves one marketplace page as text.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string, extraHeaders map[string]string) (string, error)
}

// Config carries the pipeline's non-store inputs.
type Config struct {
	// BaseURL is the marketplace root, no trailing slash.
	BaseURL string
	// Categories is the curated category-slug list to scrape.
	Categories []string
	// DigestRecipients receive the daily digest mail.
	DigestRecipients []string
}

// Pipeline holds the shared dependencies of all job handlers.
type Pipeline struct {
	fetcher PageFetcher
	store   *store.Store
	mailer  mail.Sender
	config  Config
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Pipeline. mailer may be nil; the digest then only logs.
func New(fetcher PageFetcher, st *store.Store, mailer mail.Sender, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		fetcher: fetcher,
		store:   st,
		mailer:  mailer,
		config:  cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Dispatch routes a claimed job to its handler and returns the run outcome.
// Batch handlers fail the run only when every item failed; a job with an
// explicit Target propagates that single item's error.
func (p *Pipeline) Dispatch(ctx context.Context, job *queue.Job, runID string) (store.RunMetadata, error) {
	switch job.Type {
	case JobAppDetails:
		return p.runAppDetails(ctx, job.Target, runID)
	case JobCategory:
		return p.runCategories(ctx, job.Target, runID)
	case JobReviews:
		return p.runReviews(ctx, job.Target, runID)
	case JobKeywordSearch:
		return p.runKeywordSearch(ctx, job.Target, runID)
	case JobFeatured:
		return p.runFeatured(ctx, runID)
	case JobSimilarApps:
		return p.runSimilarApps(ctx, job.Target, runID)
	case JobComputeMetrics:
		return p.runComputeMetrics(ctx)
	case JobDailyDigest:
		return p.runDailyDigest(ctx)
	default:
		return store.RunMetadata{}, fmt.Errorf("%w: %q", ErrUnknownJobType, job.Type)
	}
}

// batch accumulates per-item outcomes for a batch handler.
type batch struct {
	meta    store.RunMetadata
	lastErr error
}

func (b *batch) ok()            { b.meta.ItemsScraped++ }
func (b *batch) fail(err error) { b.meta.ItemsFailed++; b.lastErr = err }

// result converts the tally into the run outcome: total failure fails the
// run, partial failure completes it with the failed count recorded.
func (b *batch) result() (store.RunMetadata, error) {
	if b.meta.ItemsScraped == 0 && b.meta.ItemsFailed > 0 {
		return b.meta, fmt.Errorf("all %d item(s) failed, last error: %w", b.meta.ItemsFailed, b.lastErr)
	}
	return b.meta, nil
}

func (p *Pipeline) appURL(slug string) string      { return p.config.BaseURL + "/apps/" + slug }
func (p *Pipeline) reviewsURL(slug string) string  { return p.config.BaseURL + "/apps/" + slug + "/reviews" }
func (p *Pipeline) similarURL(slug string) string  { return p.config.BaseURL + "/apps/" + slug + "/similar" }
func (p *Pipeline) categoryURL(slug string) string { return p.config.BaseURL + "/categories/" + slug }
func (p *Pipeline) featuredURL() string            { return p.config.BaseURL + "/featured" }

// trackedAppSlugs resolves the iteration set of an app-scoped batch job:
// the explicit target if present, otherwise every enabled tracked app.
func (p *Pipeline) trackedAppSlugs(ctx context.Context, target string) ([]string, error) {
	if target != "" {
		return []string{target}, nil
	}
	apps, err := p.store.ListTrackedApps(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tracked apps: %w", err)
	}
	slugs := make([]string, 0, len(apps))
	for _, a := range apps {
		slugs = append(slugs, a.Slug)
	}
	return slugs, nil
}
