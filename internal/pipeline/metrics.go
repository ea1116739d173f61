package pipeline

import (
	"context"
	"fmt"

	"github.com/appmetry/appmetry/internal/scoring"
	"github.com/appmetry/appmetry/internal/store"
)

// runComputeMetrics derives review momentum for every tracked app and
// pairwise similarity for every tracked app pair, from data already in the
// store. No fetching happens here.
func (p *Pipeline) runComputeMetrics(ctx context.Context) (store.RunMetadata, error) {
	apps, err := p.store.ListTrackedApps(ctx)
	if err != nil {
		return store.RunMetadata{}, fmt.Errorf("list tracked apps: %w", err)
	}

	var b batch
	for _, app := range apps {
		if err := p.computeMomentum(ctx, app.Slug); err != nil {
			p.logger.Warn("pipeline: momentum failed", "app", app.Slug, "error", err)
			b.fail(err)
			continue
		}
		b.ok()
	}

	if err := p.computeSimilarities(ctx, apps, &b); err != nil {
		return b.meta, err
	}
	return b.result()
}

func (p *Pipeline) computeMomentum(ctx context.Context, slug string) error {
	now := p.now()
	v7, v30, v90, err := p.store.ReviewWindows(ctx, slug, now)
	if err != nil {
		return err
	}
	m := scoring.Momentum(v7, v30, v90)
	return p.store.UpsertReviewMetrics(ctx, &store.ReviewMetricsRow{
		AppKey:     slug,
		V7:         m.V7,
		V30:        m.V30,
		V90:        m.V90,
		AccMicro:   m.AccMicro,
		AccMacro:   m.AccMacro,
		Trend:      string(m.Trend),
		ComputedAt: now.UnixMilli(),
	})
}

// computeSimilarities scores every pair of tracked apps that both have a
// detail snapshot. Apps without one are skipped silently; they will be
// covered after their next detail scrape.
func (p *Pipeline) computeSimilarities(ctx context.Context, apps []*store.TrackedApp, b *batch) error {
	keywordsByApp, err := p.keywordMembership(ctx)
	if err != nil {
		return err
	}

	sets := make(map[string]scoring.ListingSets)
	var slugs []string
	for _, app := range apps {
		snap, err := p.store.LatestSnapshot(ctx, store.EntityApp, app.Slug)
		if err != nil {
			return err
		}
		if snap == nil {
			continue
		}
		text := fieldString(snap.Fields, "tagline") + " " + fieldString(snap.Fields, "description")
		sets[app.Slug] = scoring.ListingSets{
			Categories: fieldStrings(snap.Fields, "categories"),
			Features:   fieldStrings(snap.Fields, "features"),
			Keywords:   keywordsByApp[app.Slug],
			Tokens:     scoring.Tokenize(text),
		}
		slugs = append(slugs, app.Slug)
	}

	computedAt := p.now().UnixMilli()
	for i := 0; i < len(slugs); i++ {
		for j := i + 1; j < len(slugs); j++ {
			a, bSlug := slugs[i], slugs[j]
			r := scoring.Similarity(sets[a], sets[bSlug])
			err := p.store.UpsertSimilarity(ctx, &store.SimilarityRow{
				AppA:          a,
				AppB:          bSlug,
				CategoryScore: r.Category,
				FeatureScore:  r.Feature,
				KeywordScore:  r.Keyword,
				TextScore:     r.Text,
				Overall:       r.Overall,
				ComputedAt:    computedAt,
			})
			if err != nil {
				p.logger.Warn("pipeline: similarity failed", "app_a", a, "app_b", bSlug, "error", err)
				b.fail(err)
				continue
			}
			b.ok()
		}
	}
	return nil
}

// keywordMembership inverts the latest keyword snapshots into an
// app → keywords map: which tracked keywords each app currently ranks under.
func (p *Pipeline) keywordMembership(ctx context.Context) (map[string][]string, error) {
	keywords, err := p.store.ListTrackedKeywords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tracked keywords: %w", err)
	}
	byApp := make(map[string][]string)
	for _, kw := range keywords {
		snap, err := p.store.LatestSnapshot(ctx, store.EntityKeyword, kw.Keyword)
		if err != nil {
			return nil, err
		}
		if snap == nil {
			continue
		}
		for _, slug := range fieldStrings(snap.Fields, "result_slugs") {
			byApp[slug] = append(byApp[slug], kw.Keyword)
		}
	}
	return byApp, nil
}

// fieldString reads a scalar string field from decoded snapshot fields.
func fieldString(fields store.Fields, key string) string {
	s, _ := fields[key].(string)
	return s
}

// fieldStrings reads a list field from decoded snapshot fields. Snapshots
// round-trip through JSON, so lists arrive as []any.
func fieldStrings(fields store.Fields, key string) []string {
	switch list := fields[key].(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, it := range list {
			if s, ok := it.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
