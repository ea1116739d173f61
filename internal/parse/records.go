// Package parse turns fetched marketplace markup into typed page records.
//
// Parsers are tolerant by design: when a page's structure no longer matches
// expectations they return a nil record, not an error. The pipeline treats
// nil records as structural-change warnings and carries on — the external
// site changes markup without notice, and partial data beats a failed job.
package parse

import "time"

// AppSummary is one listing card on a category or featured page.
type AppSummary struct {
	Slug        string
	Name        string
	Rating      float64
	ReviewCount int
}

// CategoryRecord is a parsed category-listing page.
type CategoryRecord struct {
	Slug string
	Name string
	Apps []AppSummary
}

// AppDetailRecord is a parsed app-detail page. Description is markdown,
// converted from the page's HTML description block.
type AppDetailRecord struct {
	Slug        string
	Name        string
	Developer   string
	Tagline     string
	Description string
	Categories  []string
	Features    []string
	Pricing     []string
	Rating      float64
	ReviewCount int
}

// ReviewRecord is one review on a review page.
type ReviewRecord struct {
	ID       string
	Author   string
	Rating   int
	Body     string
	PostedAt time.Time
}

// ReviewPageRecord is a parsed review page.
type ReviewPageRecord struct {
	AppSlug string
	Reviews []ReviewRecord
}

// SearchResultRecord is one entry of a keyword's ordered result list.
type SearchResultRecord struct {
	Slug             string
	Name             string
	Sponsored        bool
	BuiltIn          bool
	BuiltForPlatform bool
	Rating           float64
	ReviewCount      int
}

// SearchPageRecord is a parsed keyword-search-results page.
type SearchPageRecord struct {
	Keyword      string
	TotalResults int
	Results      []SearchResultRecord
}

// FeaturedSection is one named placement block on the featured page.
type FeaturedSection struct {
	Handle   string
	AppSlugs []string
}

// FeaturedPageRecord is a parsed featured-sections page.
type FeaturedPageRecord struct {
	Sections []FeaturedSection
}

// SimilarAppsRecord is a parsed similar-apps page.
type SimilarAppsRecord struct {
	AppSlug string
	Similar []string
}
