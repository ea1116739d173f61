package pipeline

import (
	"context"
	"fmt"

	"github.com/appmetry/appmetry/internal/parse"
	"github.com/appmetry/appmetry/internal/store"
)

// runFeatured scrapes the marketplace's featured page and records one
// sighting per (app, section) placement observed. The sighting counters are
// the only durable output; featured placement is too volatile for snapshot
// diffing to be useful.
func (p *Pipeline) runFeatured(ctx context.Context, runID string) (store.RunMetadata, error) {
	page, err := p.fetcher.FetchPage(ctx, p.featuredURL(), nil)
	if err != nil {
		return store.RunMetadata{}, err
	}
	rec, err := parse.ParseFeatured(page)
	if err != nil {
		return store.RunMetadata{}, fmt.Errorf("parse featured: %w", err)
	}
	if rec == nil {
		return store.RunMetadata{}, fmt.Errorf("featured: %w", ErrStructuralMiss)
	}

	observedAt := p.now()
	var meta store.RunMetadata
	for _, section := range rec.Sections {
		for _, slug := range section.AppSlugs {
			if err := p.store.RecordSighting(ctx, slug, "featured:"+section.Handle, observedAt, runID); err != nil {
				return meta, err
			}
			meta.ItemsScraped++
		}
	}
	p.logger.Info("pipeline: featured recorded", "sections", len(rec.Sections), "placements", meta.ItemsScraped)
	return meta, nil
}
