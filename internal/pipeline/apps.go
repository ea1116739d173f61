package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/appmetry/appmetry/internal/parse"
	"github.com/appmetry/appmetry/internal/store"
)

// appTrackedFields are the app-detail fields the change detector compares.
var appTrackedFields = []string{
	"name", "developer", "tagline", "description",
	"categories", "features", "pricing", "rating", "review_count",
}

// ErrStructuralMiss is returned when a fetched page no longer carries the
// markers the parser relies on. Usually means the marketplace shipped a
// markup change.
var ErrStructuralMiss = errors.New("pipeline: page structure not recognized")

// runAppDetails scrapes the detail page of each app in scope, snapshots the
// listing, and detects field changes against the previous snapshot.
func (p *Pipeline) runAppDetails(ctx context.Context, target, runID string) (store.RunMetadata, error) {
	slugs, err := p.trackedAppSlugs(ctx, target)
	if err != nil {
		return store.RunMetadata{}, err
	}

	var b batch
	for _, slug := range slugs {
		if err := p.scrapeAppDetail(ctx, slug); err != nil {
			p.logger.Warn("pipeline: app detail failed", "app", slug, "run_id", runID, "error", err)
			b.fail(err)
			continue
		}
		b.ok()
	}
	if target != "" && b.lastErr != nil {
		return b.meta, b.lastErr
	}
	return b.result()
}

func (p *Pipeline) scrapeAppDetail(ctx context.Context, slug string) error {
	page, err := p.fetcher.FetchPage(ctx, p.appURL(slug), nil)
	if err != nil {
		return err
	}
	rec, err := parse.ParseAppDetail(page)
	if err != nil {
		return fmt.Errorf("parse app %s: %w", slug, err)
	}
	if rec == nil {
		return fmt.Errorf("app %s: %w", slug, ErrStructuralMiss)
	}

	fields := store.Fields{
		"name":         rec.Name,
		"developer":    rec.Developer,
		"tagline":      rec.Tagline,
		"description":  rec.Description,
		"categories":   rec.Categories,
		"features":     rec.Features,
		"pricing":      rec.Pricing,
		"rating":       rec.Rating,
		"review_count": rec.ReviewCount,
	}
	if _, err := p.store.RecordSnapshot(ctx, store.EntityApp, slug, fields, p.now()); err != nil {
		return err
	}
	changes, err := p.store.DetectChanges(ctx, store.EntityApp, slug, appTrackedFields)
	if err != nil {
		return err
	}
	if len(changes) > 0 {
		p.logger.Info("pipeline: app changed", "app", slug, "fields", changeFields(changes))
	}
	return nil
}

func changeFields(changes []*store.FieldChange) string {
	names := make([]string, 0, len(changes))
	for _, c := range changes {
		names = append(names, c.Field)
	}
	return strings.Join(names, ",")
}
