package index

import (
	"sort"
	"strings"
)

// synonymMap expands common Persian category names with colloquial and
// English equivalents so products described in either register still
// rank their category.
var synonymMap = map[string][]string{
	"موبایل":  {"گوشی", "تلفن هوشمند", "smartphone"},
	"لپ تاپ":  {"laptop", "نوت بوک", "رایانه همراه"},
	"کتاب":    {"book", "کتب", "نشریه"},
	"لباس":    {"پوشاک", "dress", "clothing"},
	"کفش":     {"shoes", "پادوش"},
	"ساعت":    {"watch", "clock", "زمان سنج"},
	"عطر":     {"perfume", "ادکلن", "fragrance"},
	"کیف":     {"bag", "کیسه", "ساک"},
	"عینک":    {"glasses", "عینک آفتابی", "eyewear"},
	"گوشواره": {"earrings", "jewelry"},
	"انگشتر":  {"ring", "حلقه", "jewelry"},
	"گردنبند": {"necklace", "زنجیر", "jewelry"},
}

// synonymKeys is sorted so enrichment output is stable across runs.
var synonymKeys = func() []string {
	keys := make([]string, 0, len(synonymMap))
	for k := range synonymMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}()

// synonymsFor returns the expansions whose key occurs in the category
// name.
func synonymsFor(categoryName string) []string {
	var out []string
	for _, word := range synonymKeys {
		if strings.Contains(categoryName, word) {
			out = append(out, synonymMap[word]...)
		}
	}
	return out
}
