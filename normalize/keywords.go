package normalize

import (
	"strings"
	"unicode/utf8"
)

// Persian stop words, matching the category index analyzer's stop set.
var stopWords = map[string]struct{}{
	"و": {}, "در": {}, "با": {}, "به": {}, "از": {},
	"که": {}, "این": {}, "آن": {}, "را": {}, "تا": {},
	"برای": {}, "یا": {}, "اما": {}, "اگر": {},
}

// IsStopWord reports whether w belongs to the fixed stop-word set.
func IsStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}

// Extractor tokenizes free text into a bounded list of significant
// terms. The zero value is not usable; construct via NewExtractor.
type Extractor struct {
	// MaxTerms caps the returned keyword list.
	MaxTerms int
	// MinRunes drops tokens at or below this rune length.
	MinRunes int
}

// NewExtractor returns an Extractor with the production defaults
// (at most 10 terms, tokens of 2 runes or fewer dropped).
func NewExtractor(maxTerms, minRunes int) Extractor {
	if maxTerms <= 0 {
		maxTerms = 10
	}
	if minRunes <= 0 {
		minRunes = 2
	}
	return Extractor{MaxTerms: maxTerms, MinRunes: minRunes}
}

// Extract returns up to MaxTerms significant terms from text, in
// first-seen order. Markup and punctuation are stripped, short tokens
// and stop words dropped, duplicates removed. Deterministic for
// identical input.
func (e Extractor) Extract(text string) []string {
	if text == "" {
		return nil
	}

	seen := make(map[string]struct{})
	var terms []string
	for _, w := range strings.Fields(Clean(text)) {
		if utf8.RuneCountInString(w) <= e.MinRunes {
			continue
		}
		if IsStopWord(w) {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		terms = append(terms, w)
		if len(terms) == e.MaxTerms {
			break
		}
	}
	return terms
}
