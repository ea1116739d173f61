package scoring

import (
	"math"
	"testing"
)

func TestJaccard_SetSemantics(t *testing.T) {
	// WHAT: Jaccard treats inputs as sets: duplicates collapse, order is
	// irrelevant, and the measure is symmetric.
	a := []string{"crm", "email", "crm"}
	b := []string{"email", "crm"}
	if got := Jaccard(a, b); got != 1.0 {
		t.Fatalf("duplicate-collapsed identical sets = %v, want 1", got)
	}
	if Jaccard(a, b) != Jaccard(b, a) {
		t.Fatal("jaccard is not symmetric")
	}
}

func TestJaccard_BothEmptyIsZero(t *testing.T) {
	// WHAT: two empty sets score 0, not NaN and not 1.
	// WHY: Two listings that both lack a dimension share nothing; treating
	// absence as perfect agreement inflates every sparse pair.
	if got := Jaccard(nil, nil); got != 0 {
		t.Fatalf("empty sets = %v, want 0", got)
	}
	if got := Jaccard([]string{""}, nil); got != 0 {
		t.Fatalf("blank-only set = %v, want 0", got)
	}
}

func TestJaccard_PartialOverlap(t *testing.T) {
	// WHAT: |A∩B| / |A∪B| for a plain partial overlap.
	got := Jaccard([]string{"a", "b", "c"}, []string{"b", "c", "d"})
	want := 2.0 / 4.0
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("jaccard = %v, want %v", got, want)
	}
}

func TestSimilarity_IdenticalListingsScoreOne(t *testing.T) {
	// WHAT: a listing compared with itself scores 1.0 overall when every
	// dimension is populated.
	sets := ListingSets{
		Categories: []string{"marketing"},
		Features:   []string{"popups", "banners"},
		Keywords:   []string{"exit intent"},
		Tokens:     Tokenize("Grow sales with smart popups"),
	}
	r := Similarity(sets, sets)
	if r.Overall != 1.0 {
		t.Fatalf("self similarity = %v, want 1.0 (%+v)", r.Overall, r)
	}
}

func TestSimilarity_DisjointListingsScoreZero(t *testing.T) {
	// WHAT: listings sharing nothing on any dimension score 0.
	a := ListingSets{
		Categories: []string{"marketing"},
		Features:   []string{"popups"},
		Keywords:   []string{"exit intent"},
		Tokens:     []string{"popup", "banner"},
	}
	b := ListingSets{
		Categories: []string{"shipping"},
		Features:   []string{"labels"},
		Keywords:   []string{"tracking"},
		Tokens:     []string{"courier", "parcel"},
	}
	r := Similarity(a, b)
	if r.Overall != 0 {
		t.Fatalf("disjoint similarity = %v, want 0 (%+v)", r.Overall, r)
	}
}

func TestSimilarity_EqualWeights(t *testing.T) {
	// WHAT: one fully matching dimension out of four contributes exactly
	// 0.25 to the overall score.
	a := ListingSets{Categories: []string{"marketing"}, Features: []string{"x"}}
	b := ListingSets{Categories: []string{"marketing"}, Features: []string{"y"}}
	r := Similarity(a, b)
	if r.Category != 1.0 {
		t.Fatalf("category dimension = %v, want 1.0", r.Category)
	}
	if math.Abs(r.Overall-0.25) > 1e-9 {
		t.Fatalf("overall = %v, want 0.25", r.Overall)
	}
}

func TestTokenize_NormalizesAndFilters(t *testing.T) {
	// WHAT: tokenization lowercases, splits on punctuation, and drops stop
	// words and sub-3-character tokens.
	got := Tokenize("Boost YOUR sales with the #1 AI-powered CRM!")
	want := map[string]bool{"boost": true, "sales": true, "powered": true, "crm": true}
	if len(got) != len(want) {
		t.Fatalf("tokens = %v, want keys of %v", got, want)
	}
	for _, tok := range got {
		if !want[tok] {
			t.Fatalf("unexpected token %q in %v", tok, got)
		}
	}
}
