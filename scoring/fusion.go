// Package scoring fuses the ranking engine's relevance score with
// direct-match and keyword-overlap heuristics, and selects the winning
// candidate. Everything here is pure: no I/O, deterministic for
// identical inputs.
package scoring

import (
	"strings"
	"unicode/utf8"
)

// Candidate is one ranked category returned by the index. EngineScore
// is opaque and only comparable to other candidates of the same query.
type Candidate struct {
	CategoryID  int64
	Name        string
	Keywords    string
	EngineScore float64
}

// Weights are the fusion multipliers. Direct must exceed Overlap and
// both must exceed 1 so the heuristics can flip small relevance gaps
// without drowning a high engine score.
type Weights struct {
	Direct  float64
	Overlap float64
}

// DefaultWeights matches the production configuration.
func DefaultWeights() Weights {
	return Weights{Direct: 10, Overlap: 5}
}

// Result is the chosen candidate with its score breakdown.
type Result struct {
	CategoryID int64
	Name       string
	Fused      float64
	Direct     float64
	Overlap    float64
}

// Fixed direct-match bonuses.
const (
	exactMatchBonus = 5.0
	keywordBonus    = 2.0
)

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// DirectMatch scores how directly the candidate name matches the search
// text: a fixed bonus for bidirectional substring containment, a
// smaller bonus per keyword found in the name, plus a length-similarity
// term in [0,1].
func DirectMatch(searchText, categoryName string, keywords []string) float64 {
	score := 0.0

	if searchText != "" && categoryName != "" &&
		(containsFold(searchText, categoryName) || containsFold(categoryName, searchText)) {
		score += exactMatchBonus
	}

	for _, kw := range keywords {
		if containsFold(categoryName, kw) {
			score += keywordBonus
		}
	}

	lt := utf8.RuneCountInString(searchText)
	ln := utf8.RuneCountInString(categoryName)
	if m := max(lt, ln); m > 0 {
		diff := lt - ln
		if diff < 0 {
			diff = -diff
		}
		score += 1 - float64(diff)/float64(m)
	}

	return score
}

// KeywordOverlap returns the fraction of extracted keywords that fuzzy
// match (bidirectional substring) at least one token of the candidate's
// keyword text. Zero when the candidate has no keyword text.
func KeywordOverlap(keywords []string, categoryKeywords string) float64 {
	if categoryKeywords == "" || len(keywords) == 0 {
		return 0
	}

	tokens := strings.Fields(categoryKeywords)
	matched := 0
	for _, kw := range keywords {
		for _, tok := range tokens {
			if containsFold(tok, kw) || containsFold(kw, tok) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(keywords))
}

// Fuse computes the final comparable score for one candidate.
func Fuse(c Candidate, searchText string, keywords []string, w Weights) Result {
	direct := DirectMatch(searchText, c.Name, keywords)
	overlap := KeywordOverlap(keywords, c.Keywords)
	return Result{
		CategoryID: c.CategoryID,
		Name:       c.Name,
		Direct:     direct,
		Overlap:    overlap,
		Fused:      c.EngineScore + w.Direct*direct + w.Overlap*overlap,
	}
}

// SelectBest returns the candidate with the strictly highest fused
// score, ties broken by input order. ok is false when the list is empty
// or every fused score is non-positive.
func SelectBest(searchText string, keywords []string, candidates []Candidate, w Weights) (Result, bool) {
	var best Result
	bestScore := 0.0
	found := false

	for _, c := range candidates {
		r := Fuse(c, searchText, keywords, w)
		if r.Fused > bestScore {
			bestScore = r.Fused
			best = r
			found = true
		}
	}
	return best, found
}
