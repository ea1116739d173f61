package scoring

import (
	"strings"
	"unicode"
)

// ListingSets are the four comparison dimensions extracted from one listing.
type ListingSets struct {
	Categories []string
	Features   []string
	Keywords   []string
	Tokens     []string // normalized text tokens, see Tokenize
}

// SimilarityResult is the per-dimension Jaccard breakdown and the equal-weight
// composite.
type SimilarityResult struct {
	Category float64
	Feature  float64
	Keyword  float64
	Text     float64
	Overall  float64
}

// Similarity compares two listings across categories, features, keywords,
// and text tokens. Each dimension contributes 0.25 to the overall score.
func Similarity(a, b ListingSets) SimilarityResult {
	r := SimilarityResult{
		Category: Jaccard(a.Categories, b.Categories),
		Feature:  Jaccard(a.Features, b.Features),
		Keyword:  Jaccard(a.Keywords, b.Keywords),
		Text:     Jaccard(a.Tokens, b.Tokens),
	}
	r.Overall = 0.25*r.Category + 0.25*r.Feature + 0.25*r.Keyword + 0.25*r.Text
	return r
}

// Jaccard computes |A∩B| / |A∪B| with set semantics (duplicates ignored).
// Defined as 0 when both sets are empty.
func Jaccard(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}
	inter := 0
	for k := range setA {
		if setB[k] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		if it != "" {
			set[it] = true
		}
	}
	return set
}

// stopWords are dropped during tokenization. Short functional English words
// that carry no listing-specific signal.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "your": true,
	"you": true, "app": true, "all": true, "can": true, "our": true,
	"are": true, "from": true, "that": true, "this": true, "will": true,
	"into": true, "has": true, "have": true, "more": true, "any": true,
	"get": true, "use": true, "using": true, "not": true, "was": true,
	"its": true, "their": true, "them": true, "they": true, "when": true,
	"what": true, "how": true, "why": true, "who": true, "which": true,
	"about": true, "also": true, "than": true, "then": true, "out": true,
}

// Tokenize normalizes free text into comparison tokens: lowercase, strip
// punctuation, drop stop words and tokens shorter than 3 characters.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	var tokens []string
	for _, f := range fields {
		if len(f) < 3 || stopWords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}
