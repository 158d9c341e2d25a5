package scoring

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDirectMatchExactSubstring(t *testing.T) {
	// Name contained in the search text earns the fixed bonus plus the
	// per-keyword bonuses and the length-similarity term.
	got := DirectMatch("phones smart phone", "Phones", []string{"phones", "smart", "phone"})
	// 5 (substring) + 2 ("phones" in name) + 2 ("phone" in name)
	// + (1 - |18-6|/18)
	want := 5.0 + 2.0 + 2.0 + (1.0 - 12.0/18.0)
	if !almostEqual(got, want) {
		t.Fatalf("got %f, want %f", got, want)
	}
}

func TestDirectMatchZeroLengths(t *testing.T) {
	if got := DirectMatch("", "", nil); got != 0 {
		t.Fatalf("expected 0 for empty inputs, got %f", got)
	}
}

func TestKeywordOverlap(t *testing.T) {
	// One of two keywords fuzzy-matches a token of the category text.
	got := KeywordOverlap([]string{"گوشی", "سامسونگ"}, "گوشی موبایل")
	if !almostEqual(got, 0.5) {
		t.Fatalf("got %f, want 0.5", got)
	}
}

func TestKeywordOverlapBidirectional(t *testing.T) {
	// Fuzzy match counts containment in either direction.
	if got := KeywordOverlap([]string{"phone"}, "phones"); !almostEqual(got, 1.0) {
		t.Fatalf("keyword in token: got %f", got)
	}
	if got := KeywordOverlap([]string{"phones"}, "phone"); !almostEqual(got, 1.0) {
		t.Fatalf("token in keyword: got %f", got)
	}
	if got := KeywordOverlap([]string{"book"}, "phone"); got != 0 {
		t.Fatalf("no containment either way: got %f", got)
	}
}

func TestKeywordOverlapNoCategoryKeywords(t *testing.T) {
	if got := KeywordOverlap([]string{"alpha"}, ""); got != 0 {
		t.Fatalf("expected 0 without category keywords, got %f", got)
	}
}

func TestSelectBestDirectMatchOverridesEngineGap(t *testing.T) {
	// "Phone Cases" has the higher engine score, but the exact
	// substring bonus for "Phones" outweighs the 0.1 gap.
	text := "phones smart phone"
	keywords := []string{"phones", "smart", "phone"}
	candidates := []Candidate{
		{CategoryID: 1, Name: "Phones", EngineScore: 2.0},
		{CategoryID: 2, Name: "Phone Cases", EngineScore: 2.1},
	}

	best, ok := SelectBest(text, keywords, candidates, DefaultWeights())
	if !ok {
		t.Fatal("expected a winner")
	}
	if best.CategoryID != 1 {
		t.Fatalf("expected Phones (1) to win, got %d (%s)", best.CategoryID, best.Name)
	}

	wantDirect := 5.0 + 4.0 + (1.0 - 12.0/18.0)
	wantFused := 2.0 + 10.0*wantDirect
	if !almostEqual(best.Fused, wantFused) {
		t.Fatalf("fused score: got %f, want %f", best.Fused, wantFused)
	}
}

func TestSelectBestEmptyCandidates(t *testing.T) {
	if _, ok := SelectBest("alpha", nil, nil, DefaultWeights()); ok {
		t.Fatal("expected no match for empty candidate list")
	}
}

func TestSelectBestAllNonPositive(t *testing.T) {
	// Engine scores are opaque and may be negative; when no fused score
	// is positive there is no match.
	candidates := []Candidate{
		{CategoryID: 1, Name: "zz", EngineScore: -50},
		{CategoryID: 2, Name: "yy", EngineScore: -80},
	}
	if _, ok := SelectBest("x", nil, candidates, DefaultWeights()); ok {
		t.Fatal("expected no match when every fused score is non-positive")
	}
}

func TestSelectBestTieFirstSeenWins(t *testing.T) {
	candidates := []Candidate{
		{CategoryID: 7, Name: "Books", EngineScore: 1.0},
		{CategoryID: 8, Name: "Books", EngineScore: 1.0},
	}
	best, ok := SelectBest("books", []string{"books"}, candidates, DefaultWeights())
	if !ok {
		t.Fatal("expected a winner")
	}
	if best.CategoryID != 7 {
		t.Fatalf("tie must go to the first candidate, got %d", best.CategoryID)
	}
}

func TestSelectBestDeterministic(t *testing.T) {
	text := "گوشی موبایل سامسونگ"
	keywords := []string{"گوشی", "موبایل", "سامسونگ"}
	candidates := []Candidate{
		{CategoryID: 1, Name: "موبایل", Keywords: "گوشی تلفن هوشمند", EngineScore: 3.1},
		{CategoryID: 2, Name: "لوازم جانبی موبایل", Keywords: "قاب شارژر", EngineScore: 3.3},
		{CategoryID: 3, Name: "کتاب", Keywords: "book", EngineScore: 0.4},
	}

	first, ok := SelectBest(text, keywords, candidates, DefaultWeights())
	if !ok {
		t.Fatal("expected a winner")
	}
	for i := 0; i < 10; i++ {
		got, ok := SelectBest(text, keywords, candidates, DefaultWeights())
		if !ok || got.CategoryID != first.CategoryID || !almostEqual(got.Fused, first.Fused) {
			t.Fatalf("non-deterministic selection: %+v vs %+v", got, first)
		}
	}
}

func TestFuseWeights(t *testing.T) {
	c := Candidate{CategoryID: 1, Name: "alpha", Keywords: "alpha", EngineScore: 2.0}
	r := Fuse(c, "alpha", []string{"alpha"}, Weights{Direct: 10, Overlap: 5})
	// direct = 5 + 2 + 1 (identical lengths), overlap = 1.
	if !almostEqual(r.Direct, 8.0) {
		t.Errorf("direct: got %f, want 8", r.Direct)
	}
	if !almostEqual(r.Overlap, 1.0) {
		t.Errorf("overlap: got %f, want 1", r.Overlap)
	}
	if !almostEqual(r.Fused, 2.0+80.0+5.0) {
		t.Errorf("fused: got %f, want 87", r.Fused)
	}
}
