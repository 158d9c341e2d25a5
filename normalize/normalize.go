// Package normalize builds the canonical search text for a product and
// extracts significant keywords from free text. All functions are pure
// and never fail; absent fields contribute nothing.
package normalize

import (
	"regexp"
	"strings"

	"github.com/hkhosravi/catsort/store"
)

var (
	tagRE   = regexp.MustCompile(`<[^>]*>`)
	punctRE = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	spaceRE = regexp.MustCompile(`\s+`)
)

// StripTags removes markup from a text fragment.
func StripTags(s string) string {
	return tagRE.ReplaceAllString(s, " ")
}

// Clean strips markup and punctuation and collapses whitespace runs to
// a single space.
func Clean(s string) string {
	s = StripTags(s)
	s = punctRE.ReplaceAllString(s, " ")
	s = spaceRE.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Canonicalize folds visually-equivalent glyph variants so lexical
// comparisons are not defeated by encoding differences: Arabic kaf and
// yeh become their Persian forms, and ASCII plus Arabic-Indic digits
// become Extended Arabic-Indic digits.
func Canonicalize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == 'ك':
			return 'ک'
		case r == 'ي':
			return 'ی'
		case r >= '0' && r <= '9':
			return '۰' + (r - '0')
		case r >= '٠' && r <= '٩': // Arabic-Indic U+0660..U+0669
			return '۰' + (r - '٠')
		}
		return r
	}, s)
}

// SearchText concatenates the product's text fields in priority order
// (title, keyword hint, SEO title, first bodyWordCap body words), then
// cleans and canonicalizes the result. Returns "" when no field is
// populated.
func SearchText(p store.Product, bodyWordCap int) string {
	var parts []string

	if p.Title != "" {
		parts = append(parts, p.Title)
	}
	if p.Keyword != "" {
		parts = append(parts, p.Keyword)
	}
	if p.TitleSeo != "" {
		parts = append(parts, p.TitleSeo)
	}
	if p.Body != "" {
		words := strings.Fields(StripTags(p.Body))
		if len(words) > bodyWordCap {
			words = words[:bodyWordCap]
		}
		parts = append(parts, strings.Join(words, " "))
	}

	return Canonicalize(Clean(strings.Join(parts, " ")))
}
