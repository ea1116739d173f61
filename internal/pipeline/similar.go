package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/appmetry/appmetry/internal/parse"
	"github.com/appmetry/appmetry/internal/store"
)

// similarTrackedFields: the recommendation list is compared both as an
// ordered ranking and as a membership set, same convention as categories.
var similarTrackedFields = []string{"ranking", "similar_slugs"}

// runSimilarApps scrapes each tracked app's similar-apps carousel and
// snapshots the recommendation list.
func (p *Pipeline) runSimilarApps(ctx context.Context, target, runID string) (store.RunMetadata, error) {
	slugs, err := p.trackedAppSlugs(ctx, target)
	if err != nil {
		return store.RunMetadata{}, err
	}

	var b batch
	for _, slug := range slugs {
		if err := p.scrapeSimilar(ctx, slug); err != nil {
			p.logger.Warn("pipeline: similar apps failed", "app", slug, "run_id", runID, "error", err)
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

func (p *Pipeline) scrapeSimilar(ctx context.Context, slug string) error {
	page, err := p.fetcher.FetchPage(ctx, p.similarURL(slug), nil)
	if err != nil {
		return err
	}
	rec, err := parse.ParseSimilarApps(page)
	if err != nil {
		return fmt.Errorf("parse similar %s: %w", slug, err)
	}
	if rec == nil {
		return fmt.Errorf("similar %s: %w", slug, ErrStructuralMiss)
	}

	fields := store.Fields{
		"ranking":       strings.Join(rec.Similar, ","),
		"similar_slugs": rec.Similar,
	}
	if _, err := p.store.RecordSnapshot(ctx, store.EntitySimilar, slug, fields, p.now()); err != nil {
		return err
	}
	changes, err := p.store.DetectChanges(ctx, store.EntitySimilar, slug, similarTrackedFields)
	if err != nil {
		return err
	}
	if len(changes) > 0 {
		p.logger.Info("pipeline: similar apps changed", "app", slug, "fields", changeFields(changes))
	}
	return nil
}
