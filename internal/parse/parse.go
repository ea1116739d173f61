package parse

import (
	"time"

	"golang.org/x/net/html"
)

// ParseAppDetail extracts an app-detail record. Returns nil when the page
// lacks the detail root marker (structural miss).
func ParseAppDetail(page string) (*AppDetailRecord, error) {
	doc, err := parseDoc(page)
	if err != nil {
		return nil, err
	}
	root := findOne(doc, byAttr("data-app-detail"))
	if root == nil {
		return nil, nil
	}

	rec := &AppDetailRecord{
		Slug:        attr(root, "data-app-detail"),
		Name:        classText(root, "app-name"),
		Developer:   classText(root, "app-developer"),
		Tagline:     classText(root, "app-tagline"),
		Rating:      looseFloat(classText(root, "rating-value")),
		ReviewCount: looseInt(classText(root, "review-count")),
	}
	if rec.Slug == "" || rec.Name == "" {
		return nil, nil
	}

	if desc := findOne(root, byClass("app-description")); desc != nil {
		rec.Description = HTMLToMarkdown(innerHTML(desc))
	}
	for _, el := range findAll(root, byClass("category-tag")) {
		if t := textContent(el); t != "" {
			rec.Categories = append(rec.Categories, t)
		}
	}
	for _, el := range findAll(root, byClass("feature-item")) {
		handle := attr(el, "data-handle")
		if handle == "" {
			handle = textContent(el)
		}
		if handle != "" {
			rec.Features = append(rec.Features, handle)
		}
	}
	for _, el := range findAll(root, byClass("pricing-plan")) {
		if t := classText(el, "plan-name"); t != "" {
			rec.Pricing = append(rec.Pricing, t)
		}
	}
	return rec, nil
}

// ParseCategory extracts a category-listing record with its ranked app
// cards. Returns nil on structural miss.
func ParseCategory(page string) (*CategoryRecord, error) {
	doc, err := parseDoc(page)
	if err != nil {
		return nil, err
	}
	root := findOne(doc, byAttr("data-category"))
	if root == nil {
		return nil, nil
	}

	rec := &CategoryRecord{
		Slug: attr(root, "data-category"),
		Name: classText(root, "category-title"),
	}
	if rec.Slug == "" {
		return nil, nil
	}
	rec.Apps = appCards(root)
	return rec, nil
}

// ParseReviews extracts a review-page record. Returns nil on structural miss.
// Reviews with no ID are skipped: without one they cannot be deduplicated.
func ParseReviews(page string) (*ReviewPageRecord, error) {
	doc, err := parseDoc(page)
	if err != nil {
		return nil, err
	}
	root := findOne(doc, byAttr("data-reviews-for"))
	if root == nil {
		return nil, nil
	}

	rec := &ReviewPageRecord{AppSlug: attr(root, "data-reviews-for")}
	for _, el := range findAll(root, byClass("review")) {
		id := attr(el, "data-review-id")
		if id == "" {
			continue
		}
		review := ReviewRecord{
			ID:     id,
			Author: classText(el, "review-author"),
			Rating: looseInt(attr(el, "data-rating")),
			Body:   StripHTML(innerHTMLOfClass(el, "review-body")),
		}
		if ts := findOne(el, func(n *html.Node) bool { return n.Data == "time" }); ts != nil {
			if t, err := time.Parse("2006-01-02", attr(ts, "datetime")); err == nil {
				review.PostedAt = t
			}
		}
		rec.Reviews = append(rec.Reviews, review)
	}
	return rec, nil
}

// ParseSearchResults extracts a keyword-search record: the ordered result
// list with placement flags, plus the reported total hit count. Returns nil
// on structural miss.
func ParseSearchResults(page string) (*SearchPageRecord, error) {
	doc, err := parseDoc(page)
	if err != nil {
		return nil, err
	}
	root := findOne(doc, byAttr("data-search-results"))
	if root == nil {
		return nil, nil
	}

	rec := &SearchPageRecord{
		Keyword:      attr(root, "data-search-results"),
		TotalResults: looseInt(attr(root, "data-total-results")),
	}
	for _, el := range findAll(root, byClass("search-result")) {
		slug := attr(el, "data-app-slug")
		if slug == "" {
			continue
		}
		rec.Results = append(rec.Results, SearchResultRecord{
			Slug:             slug,
			Name:             classText(el, "result-name"),
			Sponsored:        hasClass(el, "sponsored"),
			BuiltIn:          hasClass(el, "built-in"),
			BuiltForPlatform: hasClass(el, "built-for-platform"),
			Rating:           looseFloat(classText(el, "result-rating")),
			ReviewCount:      looseInt(classText(el, "result-reviews")),
		})
	}
	return rec, nil
}

// ParseFeatured extracts the featured-sections record. Returns nil on
// structural miss.
func ParseFeatured(page string) (*FeaturedPageRecord, error) {
	doc, err := parseDoc(page)
	if err != nil {
		return nil, err
	}
	root := findOne(doc, byAttr("data-featured"))
	if root == nil {
		return nil, nil
	}

	rec := &FeaturedPageRecord{}
	for _, sec := range findAll(root, byClass("featured-section")) {
		handle := attr(sec, "data-handle")
		if handle == "" {
			continue
		}
		section := FeaturedSection{Handle: handle}
		for _, card := range findAll(sec, byClass("app-card")) {
			if slug := attr(card, "data-app-slug"); slug != "" {
				section.AppSlugs = append(section.AppSlugs, slug)
			}
		}
		rec.Sections = append(rec.Sections, section)
	}
	return rec, nil
}

// ParseSimilarApps extracts the similar-apps record. Returns nil on
// structural miss.
func ParseSimilarApps(page string) (*SimilarAppsRecord, error) {
	doc, err := parseDoc(page)
	if err != nil {
		return nil, err
	}
	root := findOne(doc, byAttr("data-similar-for"))
	if root == nil {
		return nil, nil
	}

	rec := &SimilarAppsRecord{AppSlug: attr(root, "data-similar-for")}
	for _, card := range findAll(root, byClass("app-card")) {
		if slug := attr(card, "data-app-slug"); slug != "" {
			rec.Similar = append(rec.Similar, slug)
		}
	}
	return rec, nil
}

// appCards extracts the ranked listing cards under a node.
func appCards(root *html.Node) []AppSummary {
	var apps []AppSummary
	for _, card := range findAll(root, byClass("app-card")) {
		slug := attr(card, "data-app-slug")
		if slug == "" {
			continue
		}
		apps = append(apps, AppSummary{
			Slug:        slug,
			Name:        classText(card, "app-card-name"),
			Rating:      looseFloat(classText(card, "app-card-rating")),
			ReviewCount: looseInt(classText(card, "app-card-reviews")),
		})
	}
	return apps
}

// innerHTMLOfClass returns the inner HTML of the first descendant with
// class, or "".
func innerHTMLOfClass(n *html.Node, class string) string {
	if el := findOne(n, byClass(class)); el != nil {
		return innerHTML(el)
	}
	return ""
}
