package parse

import (
	"strings"
	"testing"
)

const appDetailPage = `<html><body>
<div data-app-detail="smart-popups">
  <h1 class="app-name">Smart Popups</h1>
  <span class="app-developer">Acme Labs</span>
  <p class="app-tagline">Convert visitors with exit popups</p>
  <span class="rating-value">4.7 out of 5</span>
  <span class="review-count">1,234 reviews</span>
  <div class="app-description"><p>Grow your list with <strong>smart</strong> popups.</p></div>
  <a class="category-tag">Marketing</a>
  <a class="category-tag">Conversion</a>
  <li class="feature-item" data-handle="exit-intent">Exit intent</li>
  <li class="feature-item" data-handle="ab-testing">A/B testing</li>
  <div class="pricing-plan"><span class="plan-name">Free</span></div>
  <div class="pricing-plan"><span class="plan-name">Pro</span></div>
</div>
</body></html>`

func TestParseAppDetail_FullPage(t *testing.T) {
	// WHAT: a well-formed detail page yields every field, numerics parsed
	// out of their display strings and the description as markdown.
	rec, err := ParseAppDetail(appDetailPage)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rec == nil {
		t.Fatal("structural miss on valid page")
	}
	if rec.Slug != "smart-popups" || rec.Name != "Smart Popups" {
		t.Fatalf("identity = %s / %s", rec.Slug, rec.Name)
	}
	if rec.Developer != "Acme Labs" {
		t.Fatalf("developer = %q", rec.Developer)
	}
	if rec.Rating != 4.7 {
		t.Fatalf("rating = %v, want 4.7", rec.Rating)
	}
	if rec.ReviewCount != 1234 {
		t.Fatalf("review count = %d, want 1234", rec.ReviewCount)
	}
	if len(rec.Categories) != 2 || rec.Categories[0] != "Marketing" {
		t.Fatalf("categories = %v", rec.Categories)
	}
	if len(rec.Features) != 2 || rec.Features[0] != "exit-intent" {
		t.Fatalf("features = %v", rec.Features)
	}
	if len(rec.Pricing) != 2 || rec.Pricing[1] != "Pro" {
		t.Fatalf("pricing = %v", rec.Pricing)
	}
	if !strings.Contains(rec.Description, "**smart**") {
		t.Fatalf("description not markdown: %q", rec.Description)
	}
	if strings.Contains(rec.Description, "<") {
		t.Fatalf("description retains markup: %q", rec.Description)
	}
}

func TestParseAppDetail_StructuralMiss(t *testing.T) {
	// WHAT: a page without the detail root returns nil, nil.
	// WHY: Markup drift must surface as a structural-miss warning in the
	// pipeline, not a hard parse error.
	rec, err := ParseAppDetail(`<html><body><div class="totally-different"></div></body></html>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record, got %+v", rec)
	}
}

func TestParseCategory_RankedCards(t *testing.T) {
	// WHAT: category cards come back in document order with their stats.
	page := `<html><body><div data-category="marketing">
	<h1 class="category-title">Marketing</h1>
	<div class="app-card" data-app-slug="first"><span class="app-card-name">First</span>
	  <span class="app-card-rating">4.9</span><span class="app-card-reviews">500 reviews</span></div>
	<div class="app-card" data-app-slug="second"><span class="app-card-name">Second</span>
	  <span class="app-card-rating">4.1</span><span class="app-card-reviews">50</span></div>
	</div></body></html>`
	rec, err := ParseCategory(page)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rec == nil || rec.Slug != "marketing" || rec.Name != "Marketing" {
		t.Fatalf("record = %+v", rec)
	}
	if len(rec.Apps) != 2 {
		t.Fatalf("apps = %d, want 2", len(rec.Apps))
	}
	if rec.Apps[0].Slug != "first" || rec.Apps[0].ReviewCount != 500 {
		t.Fatalf("first card = %+v", rec.Apps[0])
	}
	if rec.Apps[1].Rating != 4.1 {
		t.Fatalf("second card = %+v", rec.Apps[1])
	}
}

func TestParseReviews_SkipsReviewsWithoutID(t *testing.T) {
	// WHAT: reviews missing their ID are dropped; the rest parse fully.
	page := `<html><body><div data-reviews-for="smart-popups">
	<div class="review" data-review-id="r1" data-rating="5">
	  <span class="review-author">Shop A</span>
	  <time datetime="2026-08-20"></time>
	  <div class="review-body"><p>Love it &amp; use it daily</p></div>
	</div>
	<div class="review" data-rating="1">
	  <span class="review-author">Anon</span>
	  <div class="review-body">no id here</div>
	</div>
	</div></body></html>`
	rec, err := ParseReviews(page)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rec == nil || rec.AppSlug != "smart-popups" {
		t.Fatalf("record = %+v", rec)
	}
	if len(rec.Reviews) != 1 {
		t.Fatalf("reviews = %d, want 1", len(rec.Reviews))
	}
	r := rec.Reviews[0]
	if r.ID != "r1" || r.Rating != 5 || r.Author != "Shop A" {
		t.Fatalf("review = %+v", r)
	}
	if r.Body != "Love it & use it daily" {
		t.Fatalf("body = %q", r.Body)
	}
	if r.PostedAt.Format("2006-01-02") != "2026-08-20" {
		t.Fatalf("posted at = %v", r.PostedAt)
	}
}

func TestParseSearchResults_PlacementFlags(t *testing.T) {
	// WHAT: sponsored, built-in, and badge flags come off the result card
	// classes; the total comes off the root attribute.
	page := `<html><body><div data-search-results="exit intent" data-total-results="1,847">
	<div class="search-result sponsored" data-app-slug="ad-app">
	  <span class="result-name">Ad App</span></div>
	<div class="search-result built-in" data-app-slug="native-app">
	  <span class="result-name">Native</span></div>
	<div class="search-result built-for-platform" data-app-slug="badged-app">
	  <span class="result-name">Badged</span>
	  <span class="result-rating">4.8</span><span class="result-reviews">2,000</span></div>
	</div></body></html>`
	rec, err := ParseSearchResults(page)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rec == nil || rec.Keyword != "exit intent" {
		t.Fatalf("record = %+v", rec)
	}
	if rec.TotalResults != 1847 {
		t.Fatalf("total = %d, want 1847", rec.TotalResults)
	}
	if len(rec.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(rec.Results))
	}
	if !rec.Results[0].Sponsored || rec.Results[0].BuiltIn {
		t.Fatalf("first flags = %+v", rec.Results[0])
	}
	if !rec.Results[1].BuiltIn {
		t.Fatalf("second flags = %+v", rec.Results[1])
	}
	third := rec.Results[2]
	if !third.BuiltForPlatform || third.Rating != 4.8 || third.ReviewCount != 2000 {
		t.Fatalf("third = %+v", third)
	}
}

func TestParseFeatured_SectionsAndSlugs(t *testing.T) {
	// WHAT: each named section yields its handle and card slugs in order.
	page := `<html><body><div data-featured="1">
	<section class="featured-section" data-handle="trending">
	  <div class="app-card" data-app-slug="a"></div>
	  <div class="app-card" data-app-slug="b"></div>
	</section>
	<section class="featured-section" data-handle="staff-picks">
	  <div class="app-card" data-app-slug="c"></div>
	</section>
	</div></body></html>`
	rec, err := ParseFeatured(page)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rec == nil || len(rec.Sections) != 2 {
		t.Fatalf("record = %+v", rec)
	}
	if rec.Sections[0].Handle != "trending" || len(rec.Sections[0].AppSlugs) != 2 {
		t.Fatalf("first section = %+v", rec.Sections[0])
	}
	if rec.Sections[1].AppSlugs[0] != "c" {
		t.Fatalf("second section = %+v", rec.Sections[1])
	}
}

func TestParseSimilarApps_SlugList(t *testing.T) {
	// WHAT: the similar-apps carousel parses into an ordered slug list.
	page := `<html><body><div data-similar-for="smart-popups">
	<div class="app-card" data-app-slug="x"></div>
	<div class="app-card" data-app-slug="y"></div>
	</div></body></html>`
	rec, err := ParseSimilarApps(page)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rec == nil || rec.AppSlug != "smart-popups" {
		t.Fatalf("record = %+v", rec)
	}
	if len(rec.Similar) != 2 || rec.Similar[0] != "x" {
		t.Fatalf("similar = %v", rec.Similar)
	}
}

func TestStripHTML_RemovesMarkupAndEntities(t *testing.T) {
	// WHAT: markup goes, entities decode, whitespace collapses.
	got := StripHTML("<p>Fast &amp; simple</p>\n\t<b>setup</b>")
	if got != "Fast & simple setup" {
		t.Fatalf("stripped = %q", got)
	}
}

func TestHTMLToMarkdown_FallsBackOnEmpty(t *testing.T) {
	// WHAT: empty input yields empty output, no converter error surfacing.
	if got := HTMLToMarkdown("   "); got != "" {
		t.Fatalf("markdown of blank = %q", got)
	}
}
