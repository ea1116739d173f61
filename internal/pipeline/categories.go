package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/appmetry/appmetry/internal/parse"
	"github.com/appmetry/appmetry/internal/store"
)

// categoryTrackedFields are the category fields the change detector compares.
// "ranking" is the comma-joined ordered slug list, so a pure reordering of
// the same apps still registers as a change; "app_slugs" catches membership
// churn regardless of order.
var categoryTrackedFields = []string{"name", "ranking", "app_slugs", "app_count"}

// runCategories scrapes each configured category listing and snapshots its
// ranking.
func (p *Pipeline) runCategories(ctx context.Context, target, runID string) (store.RunMetadata, error) {
	slugs := p.config.Categories
	if target != "" {
		slugs = []string{target}
	}

	var b batch
	for _, slug := range slugs {
		if err := p.scrapeCategory(ctx, slug); err != nil {
			p.logger.Warn("pipeline: category failed", "category", slug, "run_id", runID, "error", err)
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

func (p *Pipeline) scrapeCategory(ctx context.Context, slug string) error {
	page, err := p.fetcher.FetchPage(ctx, p.categoryURL(slug), nil)
	if err != nil {
		return err
	}
	rec, err := parse.ParseCategory(page)
	if err != nil {
		return fmt.Errorf("parse category %s: %w", slug, err)
	}
	if rec == nil {
		return fmt.Errorf("category %s: %w", slug, ErrStructuralMiss)
	}

	appSlugs := make([]string, 0, len(rec.Apps))
	for _, a := range rec.Apps {
		appSlugs = append(appSlugs, a.Slug)
	}
	fields := store.Fields{
		"name":      rec.Name,
		"ranking":   strings.Join(appSlugs, ","),
		"app_slugs": appSlugs,
		"app_count": len(appSlugs),
	}
	if _, err := p.store.RecordSnapshot(ctx, store.EntityCategory, slug, fields, p.now()); err != nil {
		return err
	}
	changes, err := p.store.DetectChanges(ctx, store.EntityCategory, slug, categoryTrackedFields)
	if err != nil {
		return err
	}
	if len(changes) > 0 {
		p.logger.Info("pipeline: category changed", "category", slug, "fields", changeFields(changes))
	}
	return nil
}
