package scoring

import "math"

// ResultApp is one entry of a keyword's ordered search-result list.
type ResultApp struct {
	Slug             string
	Name             string
	Sponsored        bool // paid placement
	BuiltIn          bool // first-party listing, not a competitor
	BuiltForPlatform bool // carries the platform's quality badge
	Rating           float64
	ReviewCount      int
}

// OpportunityResult is the 0-100 composite plus its sub-scores and the
// first-page structure counts the dashboard surfaces.
type OpportunityResult struct {
	Score int // 0..100

	Room     float64 // review headroom in the top 8
	Demand   float64 // total result volume
	Organic  float64 // first page share not taken by sponsored slots
	Maturity float64 // inverse of entrenched (1000+ review) competitors
	Quality  float64 // badge density and top-4 rating pressure

	OrganicCount          int
	SponsoredCount        int
	BuiltForPlatformCount int
	Apps1000Plus          int
	Apps100Plus           int

	Top1Share float64 // top-1 share of first-page reviews
	Top4Share float64 // top-4 share of first-page reviews

	TopApps []ResultApp // the top 4 organic apps
}

// Opportunity estimates how winnable a keyword's first results page is for a
// new entrant. results is the ordered search-result list; totalResults is the
// query's reported total hit count.
func Opportunity(results []ResultApp, totalResults int) OpportunityResult {
	var organic []ResultApp
	sponsoredCount := 0
	for _, a := range results {
		if a.Sponsored {
			sponsoredCount++
			continue
		}
		if a.BuiltIn {
			continue
		}
		organic = append(organic, a)
	}

	firstPage := head(organic, 24)
	top8 := head(organic, 8)
	top4 := head(organic, 4)

	top8Reviews := 0
	for _, a := range top8 {
		top8Reviews += a.ReviewCount
	}
	room := clamp01(1 - float64(top8Reviews)/20000)

	demand := clamp01(float64(totalResults) / 1000)

	organicScore := clamp01(float64(24-sponsoredCount) / 24)

	apps1000 := 0
	apps100 := 0
	bfsCount := 0
	firstPageReviews := 0
	for _, a := range firstPage {
		if a.ReviewCount >= 1000 {
			apps1000++
		}
		if a.ReviewCount >= 100 {
			apps100++
		}
		if a.BuiltForPlatform {
			bfsCount++
		}
		firstPageReviews += a.ReviewCount
	}
	maturity := 1 - clamp01(float64(apps1000)/12)

	bfsFactor := clamp01(1 - float64(bfsCount)/24)
	ratingFactor := 0.5
	ratedCount := 0
	ratingSum := 0.0
	for _, a := range top4 {
		if a.Rating > 0 {
			ratedCount++
			ratingSum += a.Rating
		}
	}
	if ratedCount > 0 {
		avg := ratingSum / float64(ratedCount)
		ratingFactor = clamp01(1 - (avg-3.5)/1.5)
	}
	quality := clamp01(bfsFactor * ratingFactor)

	score := int(math.Round(100 * (0.35*room + 0.20*demand + 0.15*organicScore + 0.10*maturity + 0.20*quality)))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	top1Share := 0.0
	top4Share := 0.0
	if firstPageReviews > 0 {
		if len(organic) > 0 {
			top1Share = float64(organic[0].ReviewCount) / float64(firstPageReviews)
		}
		top4Reviews := 0
		for _, a := range top4 {
			top4Reviews += a.ReviewCount
		}
		top4Share = float64(top4Reviews) / float64(firstPageReviews)
	}

	return OpportunityResult{
		Score:                 score,
		Room:                  room,
		Demand:                demand,
		Organic:               organicScore,
		Maturity:              maturity,
		Quality:               quality,
		OrganicCount:          len(organic),
		SponsoredCount:        sponsoredCount,
		BuiltForPlatformCount: bfsCount,
		Apps1000Plus:          apps1000,
		Apps100Plus:           apps100,
		Top1Share:             top1Share,
		Top4Share:             top4Share,
		TopApps:               top4,
	}
}

func head(apps []ResultApp, n int) []ResultApp {
	if len(apps) < n {
		return apps
	}
	return apps[:n]
}
