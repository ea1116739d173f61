package pipeline

import (
	"context"
	"fmt"

	"github.com/appmetry/appmetry/internal/parse"
	"github.com/appmetry/appmetry/internal/store"
)

// runReviews scrapes the newest review page of each app in scope and appends
// unseen reviews. Reviews already recorded for the app are skipped, so
// rescraping the same page is harmless.
func (p *Pipeline) runReviews(ctx context.Context, target, runID string) (store.RunMetadata, error) {
	slugs, err := p.trackedAppSlugs(ctx, target)
	if err != nil {
		return store.RunMetadata{}, err
	}

	var b batch
	for _, slug := range slugs {
		inserted, err := p.scrapeReviews(ctx, slug)
		if err != nil {
			p.logger.Warn("pipeline: reviews failed", "app", slug, "run_id", runID, "error", err)
			b.fail(err)
			continue
		}
		b.ok()
		if inserted > 0 {
			p.logger.Info("pipeline: reviews stored", "app", slug, "new", inserted)
		}
	}
	if target != "" && b.lastErr != nil {
		return b.meta, b.lastErr
	}
	return b.result()
}

func (p *Pipeline) scrapeReviews(ctx context.Context, slug string) (int, error) {
	page, err := p.fetcher.FetchPage(ctx, p.reviewsURL(slug), nil)
	if err != nil {
		return 0, err
	}
	rec, err := parse.ParseReviews(page)
	if err != nil {
		return 0, fmt.Errorf("parse reviews %s: %w", slug, err)
	}
	if rec == nil {
		return 0, fmt.Errorf("reviews %s: %w", slug, ErrStructuralMiss)
	}

	reviews := make([]*store.Review, 0, len(rec.Reviews))
	for _, r := range rec.Reviews {
		postedAt := int64(0)
		if !r.PostedAt.IsZero() {
			postedAt = r.PostedAt.UnixMilli()
		}
		reviews = append(reviews, &store.Review{
			AppKey:   slug,
			ReviewID: r.ID,
			Rating:   r.Rating,
			Author:   r.Author,
			Body:     r.Body,
			PostedAt: postedAt,
		})
	}
	return p.store.InsertReviews(ctx, reviews)
}
