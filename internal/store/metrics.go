package store

import (
	"context"
	"fmt"
)

// UpsertReviewMetrics persists a momentum derivation for one app.
// Recomputation replaces the previous row; never a duplicate insert.
func (s *Store) UpsertReviewMetrics(ctx context.Context, row *ReviewMetricsRow) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO review_metrics (app_key, v7, v30, v90, acc_micro, acc_macro,
		trend, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(app_key) DO UPDATE SET
			v7 = excluded.v7, v30 = excluded.v30, v90 = excluded.v90,
			acc_micro = excluded.acc_micro, acc_macro = excluded.acc_macro,
			trend = excluded.trend, computed_at = excluded.computed_at`,
		row.AppKey, row.V7, row.V30, row.V90, row.AccMicro, row.AccMacro,
		row.Trend, row.ComputedAt)
	if err != nil {
		return fmt.Errorf("upsert review metrics: %w", err)
	}
	return nil
}

// GetReviewMetrics returns the latest momentum row for an app, or nil.
func (s *Store) GetReviewMetrics(ctx context.Context, appKey string) (*ReviewMetricsRow, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT app_key, v7, v30, v90, acc_micro, acc_macro, trend, computed_at
		FROM review_metrics WHERE app_key = ?`, appKey)
	var m ReviewMetricsRow
	err := row.Scan(&m.AppKey, &m.V7, &m.V30, &m.V90, &m.AccMicro, &m.AccMacro,
		&m.Trend, &m.ComputedAt)
	if err != nil {
		return nil, ignoreNoRows(err, "scan review metrics")
	}
	return &m, nil
}

// UpsertKeywordScore persists an opportunity derivation for one keyword.
func (s *Store) UpsertKeywordScore(ctx context.Context, row *KeywordScoreRow) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO keyword_scores (keyword, score, room, demand, organic,
		maturity, quality, organic_count, sponsored_count, bfs_count,
		apps_1000_plus, apps_100_plus, top1_share, top4_share, top_apps_json,
		computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(keyword) DO UPDATE SET
			score = excluded.score, room = excluded.room,
			demand = excluded.demand, organic = excluded.organic,
			maturity = excluded.maturity, quality = excluded.quality,
			organic_count = excluded.organic_count,
			sponsored_count = excluded.sponsored_count,
			bfs_count = excluded.bfs_count,
			apps_1000_plus = excluded.apps_1000_plus,
			apps_100_plus = excluded.apps_100_plus,
			top1_share = excluded.top1_share, top4_share = excluded.top4_share,
			top_apps_json = excluded.top_apps_json,
			computed_at = excluded.computed_at`,
		row.Keyword, row.Score, row.Room, row.Demand, row.Organic,
		row.Maturity, row.Quality, row.OrganicCount, row.SponsoredCount,
		row.BFSCount, row.Apps1000Plus, row.Apps100Plus, row.Top1Share,
		row.Top4Share, row.TopAppsJSON, row.ComputedAt)
	if err != nil {
		return fmt.Errorf("upsert keyword score: %w", err)
	}
	return nil
}

// GetKeywordScore returns the latest opportunity row for a keyword, or nil.
func (s *Store) GetKeywordScore(ctx context.Context, keyword string) (*KeywordScoreRow, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT keyword, score, room, demand, organic, maturity, quality,
		organic_count, sponsored_count, bfs_count, apps_1000_plus,
		apps_100_plus, top1_share, top4_share, top_apps_json, computed_at
		FROM keyword_scores WHERE keyword = ?`, keyword)
	var k KeywordScoreRow
	err := row.Scan(&k.Keyword, &k.Score, &k.Room, &k.Demand, &k.Organic,
		&k.Maturity, &k.Quality, &k.OrganicCount, &k.SponsoredCount,
		&k.BFSCount, &k.Apps1000Plus, &k.Apps100Plus, &k.Top1Share,
		&k.Top4Share, &k.TopAppsJSON, &k.ComputedAt)
	if err != nil {
		return nil, ignoreNoRows(err, "scan keyword score")
	}
	return &k, nil
}

// UpsertSimilarity persists a similarity derivation for one app pair.
// The pair is canonicalized (app_a < app_b) so recomputation in either
// order hits the same row.
func (s *Store) UpsertSimilarity(ctx context.Context, row *SimilarityRow) error {
	a, b := row.AppA, row.AppB
	if a > b {
		a, b = b, a
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO similarity_scores (app_a, app_b, category_score,
		feature_score, keyword_score, text_score, overall, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(app_a, app_b) DO UPDATE SET
			category_score = excluded.category_score,
			feature_score = excluded.feature_score,
			keyword_score = excluded.keyword_score,
			text_score = excluded.text_score,
			overall = excluded.overall,
			computed_at = excluded.computed_at`,
		a, b, row.CategoryScore, row.FeatureScore, row.KeywordScore,
		row.TextScore, row.Overall, row.ComputedAt)
	if err != nil {
		return fmt.Errorf("upsert similarity: %w", err)
	}
	return nil
}

// GetSimilarity returns the similarity row for a pair in either order, or nil.
func (s *Store) GetSimilarity(ctx context.Context, appA, appB string) (*SimilarityRow, error) {
	if appA > appB {
		appA, appB = appB, appA
	}
	row := s.DB.QueryRowContext(ctx,
		`SELECT app_a, app_b, category_score, feature_score, keyword_score,
		text_score, overall, computed_at
		FROM similarity_scores WHERE app_a = ? AND app_b = ?`, appA, appB)
	var sr SimilarityRow
	err := row.Scan(&sr.AppA, &sr.AppB, &sr.CategoryScore, &sr.FeatureScore,
		&sr.KeywordScore, &sr.TextScore, &sr.Overall, &sr.ComputedAt)
	if err != nil {
		return nil, ignoreNoRows(err, "scan similarity")
	}
	return &sr, nil
}
