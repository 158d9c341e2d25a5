package index

import (
	"strings"
	"unicode/utf8"

	"github.com/hkhosravi/catsort/normalize"
)

// ftsEscaper strips FTS5 query syntax so user text cannot break the
// MATCH expression.
var ftsEscaper = strings.NewReplacer(
	"\"", "", "*", "", "(", "", ")", "",
	"+", "", "-", "", "^", "", ":", "",
	"?", "", "[", "", "]", "", "{", "",
	"}", "", "!", "", ".", "", ",", "",
	";", "",
)

// buildQuery turns the search text and extracted keywords into an FTS5
// OR query: the full phrase (quoted, for exact matches) plus each
// significant term. Returns "" when nothing usable remains.
func buildQuery(text string, keywords []string) string {
	cleaned := ftsEscaper.Replace(text)
	words := strings.Fields(cleaned)

	seen := make(map[string]struct{})
	var parts []string
	add := func(term string) {
		if term == "" {
			return
		}
		if _, dup := seen[term]; dup {
			return
		}
		seen[term] = struct{}{}
		parts = append(parts, term)
	}

	if len(words) > 1 {
		add("\"" + strings.Join(words, " ") + "\"")
	}
	for _, w := range words {
		if utf8.RuneCountInString(w) > 2 && !normalize.IsStopWord(w) {
			add(w)
		}
	}
	for _, kw := range keywords {
		add(ftsEscaper.Replace(kw))
	}

	return strings.Join(parts, " OR ")
}
