// Package index is the ranking engine boundary: an FTS5 virtual table
// holding denormalized category text, queried for candidates ranked by
// bm25. The core treats the returned relevance score as opaque;
// "higher is more relevant within this query" is the whole contract.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/hkhosravi/catsort/normalize"
	"github.com/hkhosravi/catsort/scoring"
	"github.com/hkhosravi/catsort/store"
)

const tableName = "category_index"

// bm25 column weights for (name, keywords, description, slug), standing
// in for the per-field boosts of the original search engine query.
const rankWeights = "3.0, 2.5, 1.0, 1.5"

// Index administers and queries the category FTS5 table. It shares the
// catalog database handle.
type Index struct {
	db  *sql.DB
	log *slog.Logger
}

// New returns an Index over db.
func New(db *sql.DB, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{db: db, log: logger}
}

// Exists reports whether the index table has been created.
func (ix *Index) Exists(ctx context.Context) (bool, error) {
	var n int
	err := ix.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?
	`, tableName).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking index existence: %w", err)
	}
	return n > 0, nil
}

// Healthy reports whether the index exists and answers queries.
func (ix *Index) Healthy(ctx context.Context) bool {
	ok, err := ix.Exists(ctx)
	if err != nil || !ok {
		return false
	}
	var n int
	if err := ix.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s`, tableName)).Scan(&n); err != nil {
		ix.log.Warn("index health check failed", "error", err)
		return false
	}
	return true
}

// Create drops any existing index table and creates a fresh one.
func (ix *Index) Create(ctx context.Context) error {
	if _, err := ix.db.ExecContext(ctx,
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, tableName)); err != nil {
		return fmt.Errorf("dropping index: %w", err)
	}
	_, err := ix.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE VIRTUAL TABLE %s USING fts5(
			name,
			keywords,
			description,
			slug,
			category_id UNINDEXED
		)
	`, tableName))
	if err != nil {
		return fmt.Errorf("creating index: %w", err)
	}
	ix.log.Info("category index created")
	return nil
}

// IndexCategories repopulates the index from the given categories.
// Keywords are enriched with name words and synonyms so sparse category
// rows still rank. Returns the number of indexed categories.
func (ix *Index) IndexCategories(ctx context.Context, cats []store.Category) (int, error) {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning index load: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s`, tableName)); err != nil {
		return 0, fmt.Errorf("clearing index: %w", err)
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (name, keywords, description, slug, category_id)
		VALUES (?, ?, ?, ?, ?)
	`, tableName)
	for _, c := range cats {
		_, err := tx.ExecContext(ctx, stmt,
			c.Name, enrichKeywords(c), description(c), c.Slug, c.ID)
		if err != nil {
			return 0, fmt.Errorf("indexing category %d: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing index load: %w", err)
	}
	ix.log.Info("categories indexed", "count", len(cats))
	return len(cats), nil
}

// Search returns up to limit candidates ranked by relevance, best
// first. An empty query yields no candidates.
func (ix *Index) Search(ctx context.Context, text string, keywords []string, limit int) ([]scoring.Candidate, error) {
	q := buildQuery(text, keywords)
	if q == "" {
		return nil, nil
	}

	rows, err := ix.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT category_id, name, keywords, bm25(%s, %s) AS rank
		FROM %s
		WHERE %s MATCH ?
		ORDER BY rank
		LIMIT ?
	`, tableName, rankWeights, tableName, tableName), q, limit)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}
	defer rows.Close()

	var out []scoring.Candidate
	for rows.Next() {
		var c scoring.Candidate
		var rank float64
		if err := rows.Scan(&c.CategoryID, &c.Name, &c.Keywords, &rank); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		// bm25 rank is negative (lower = better); negate to a positive
		// higher-is-better score.
		c.EngineScore = -rank
		out = append(out, c)
	}
	return out, rows.Err()
}

// Stats describes the current index.
type Stats struct {
	Exists     bool `json:"exists"`
	Categories int  `json:"categories"`
}

// IndexStats returns document-count statistics for the index.
func (ix *Index) IndexStats(ctx context.Context) (Stats, error) {
	ok, err := ix.Exists(ctx)
	if err != nil {
		return Stats{}, err
	}
	if !ok {
		return Stats{}, nil
	}
	var n int
	if err := ix.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s`, tableName)).Scan(&n); err != nil {
		return Stats{Exists: true}, fmt.Errorf("counting index rows: %w", err)
	}
	return Stats{Exists: true, Categories: n}, nil
}

// enrichKeywords builds the denormalized keyword text for a category:
// its keyword hint, the words of its name, and synonym expansions,
// deduplicated with single-rune tokens dropped.
func enrichKeywords(c store.Category) string {
	var words []string
	if c.Keyword != "" {
		words = append(words, strings.Fields(c.Keyword)...)
	}
	words = append(words, strings.Fields(c.Name)...)
	words = append(words, synonymsFor(c.Name)...)

	seen := make(map[string]struct{}, len(words))
	var out []string
	for _, w := range words {
		w = strings.TrimSpace(w)
		if utf8.RuneCountInString(w) <= 1 {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

// description assembles the searchable description: SEO name, SEO body
// and body, markup stripped.
func description(c store.Category) string {
	var parts []string
	if c.NameSeo != "" {
		parts = append(parts, c.NameSeo)
	}
	if c.BodySeo != "" {
		parts = append(parts, normalize.StripTags(c.BodySeo))
	}
	if c.Body != "" {
		parts = append(parts, normalize.StripTags(c.Body))
	}
	return strings.Join(parts, " ")
}
