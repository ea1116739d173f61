package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/appmetry/appmetry/internal/parse"
	"github.com/appmetry/appmetry/internal/scoring"
	"github.com/appmetry/appmetry/internal/store"
)

// keywordTrackedFields are the search-page fields the change detector
// compares. "ranking" is order-sensitive; "result_slugs" is the membership
// set; sponsored slots are tracked separately because an ad entering or
// leaving a page is signal on its own.
var keywordTrackedFields = []string{"total_results", "ranking", "result_slugs", "sponsored_slugs"}

// runKeywordSearch scrapes each tracked keyword's result page, snapshots the
// ranking, records ad sightings, and refreshes the opportunity score.
func (p *Pipeline) runKeywordSearch(ctx context.Context, target, runID string) (store.RunMetadata, error) {
	var keywords []string
	if target != "" {
		keywords = []string{target}
	} else {
		tracked, err := p.store.ListTrackedKeywords(ctx)
		if err != nil {
			return store.RunMetadata{}, fmt.Errorf("list tracked keywords: %w", err)
		}
		for _, k := range tracked {
			keywords = append(keywords, k.Keyword)
		}
	}

	var b batch
	for _, kw := range keywords {
		if err := p.scrapeKeyword(ctx, kw, runID); err != nil {
			p.logger.Warn("pipeline: keyword failed", "keyword", kw, "run_id", runID, "error", err)
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

func (p *Pipeline) scrapeKeyword(ctx context.Context, keyword, runID string) error {
	searchURL := p.config.BaseURL + "/search?q=" + url.QueryEscape(keyword)
	page, err := p.fetcher.FetchPage(ctx, searchURL, nil)
	if err != nil {
		return err
	}
	rec, err := parse.ParseSearchResults(page)
	if err != nil {
		return fmt.Errorf("parse search %q: %w", keyword, err)
	}
	if rec == nil {
		return fmt.Errorf("search %q: %w", keyword, ErrStructuralMiss)
	}

	var resultSlugs, sponsoredSlugs []string
	results := make([]scoring.ResultApp, 0, len(rec.Results))
	for _, r := range rec.Results {
		resultSlugs = append(resultSlugs, r.Slug)
		if r.Sponsored {
			sponsoredSlugs = append(sponsoredSlugs, r.Slug)
		}
		results = append(results, scoring.ResultApp{
			Slug:             r.Slug,
			Name:             r.Name,
			Sponsored:        r.Sponsored,
			BuiltIn:          r.BuiltIn,
			BuiltForPlatform: r.BuiltForPlatform,
			Rating:           r.Rating,
			ReviewCount:      r.ReviewCount,
		})
	}

	fields := store.Fields{
		"total_results":   rec.TotalResults,
		"ranking":         strings.Join(resultSlugs, ","),
		"result_slugs":    resultSlugs,
		"sponsored_slugs": sponsoredSlugs,
	}
	if _, err := p.store.RecordSnapshot(ctx, store.EntityKeyword, keyword, fields, p.now()); err != nil {
		return err
	}
	changes, err := p.store.DetectChanges(ctx, store.EntityKeyword, keyword, keywordTrackedFields)
	if err != nil {
		return err
	}
	if len(changes) > 0 {
		p.logger.Info("pipeline: keyword changed", "keyword", keyword, "fields", changeFields(changes))
	}

	// Every sponsored slot observed counts as one sighting of that app
	// advertising under this keyword today.
	observedAt := p.now()
	for _, slug := range sponsoredSlugs {
		if err := p.store.RecordSighting(ctx, slug, "keyword:"+keyword, observedAt, runID); err != nil {
			return err
		}
	}

	return p.scoreKeyword(ctx, keyword, results, rec.TotalResults)
}

// scoreKeyword computes and persists the opportunity derivation for one
// keyword's freshly scraped result list.
func (p *Pipeline) scoreKeyword(ctx context.Context, keyword string, results []scoring.ResultApp, totalResults int) error {
	opp := scoring.Opportunity(results, totalResults)
	topApps, err := json.Marshal(opp.TopApps)
	if err != nil {
		return fmt.Errorf("marshal top apps: %w", err)
	}
	return p.store.UpsertKeywordScore(ctx, &store.KeywordScoreRow{
		Keyword:        keyword,
		Score:          opp.Score,
		Room:           opp.Room,
		Demand:         opp.Demand,
		Organic:        opp.Organic,
		Maturity:       opp.Maturity,
		Quality:        opp.Quality,
		OrganicCount:   opp.OrganicCount,
		SponsoredCount: opp.SponsoredCount,
		BFSCount:       opp.BuiltForPlatformCount,
		Apps1000Plus:   opp.Apps1000Plus,
		Apps100Plus:    opp.Apps100Plus,
		Top1Share:      opp.Top1Share,
		Top4Share:      opp.Top4Share,
		TopAppsJSON:    string(topApps),
		ComputedAt:     p.now().UnixMilli(),
	})
}
