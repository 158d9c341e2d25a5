// Package store wraps the SQLite catalog database: products, categories
// and the polymorphic assignment table that links categories to both
// products and other categories.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// Subject kinds for the catables table.
const (
	SubjectProduct  = "product"
	SubjectCategory = "category"
)

// Product is a catalog entity to classify.
type Product struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	TitleSeo string `json:"title_seo"`
	Body     string `json:"body"`
	Keyword  string `json:"keyword"`
	Active   bool   `json:"active"`
}

// Category is a taxonomy node.
type Category struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	NameSeo string `json:"name_seo"`
	BodySeo string `json:"body_seo"`
	Body    string `json:"body"`
	Keyword string `json:"keyword"`
	Slug    string `json:"slug"`
	Type    string `json:"type"`
}

// Assignment links a category to a subject (product or category).
type Assignment struct {
	ID          int64  `json:"id"`
	CategoryID  int64  `json:"category_id"`
	SubjectID   int64  `json:"subject_id"`
	SubjectType string `json:"subject_type"`
}

// Store wraps the SQLite database for all catalog persistence.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the catalog database at the given path and
// initialises the schema. The connection uses immediate transactions so
// that every BeginTx takes the write lock up front; this is what makes
// the assignment existence check a locking read.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_fk=1&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialising schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle so the index package can manage its
// FTS5 virtual table in the same database.
func (s *Store) DB() *sql.DB {
	return s.db
}

// --- Product operations ---

// UpsertProduct inserts or replaces a product. A zero ID lets SQLite
// assign one. Returns the product ID.
func (s *Store) UpsertProduct(ctx context.Context, p Product) (int64, error) {
	if p.ID > 0 {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO products (id, title, title_seo, body, keyword, active)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				title_seo = excluded.title_seo,
				body = excluded.body,
				keyword = excluded.keyword,
				active = excluded.active
		`, p.ID, p.Title, p.TitleSeo, p.Body, p.Keyword, p.Active)
		if err != nil {
			return 0, fmt.Errorf("upserting product %d: %w", p.ID, err)
		}
		return p.ID, nil
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO products (title, title_seo, body, keyword, active)
		VALUES (?, ?, ?, ?, ?)
	`, p.Title, p.TitleSeo, p.Body, p.Keyword, p.Active)
	if err != nil {
		return 0, fmt.Errorf("inserting product: %w", err)
	}
	return res.LastInsertId()
}

// Product fetches a single product by ID.
func (s *Store) Product(ctx context.Context, id int64) (*Product, error) {
	var p Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, title_seo, body, keyword, active
		FROM products WHERE id = ?
	`, id).Scan(&p.ID, &p.Title, &p.TitleSeo, &p.Body, &p.Keyword, &p.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching product %d: %w", id, err)
	}
	return &p, nil
}

// NextProduct returns the product with the lowest ID at or above
// sinceID, or ErrNotFound when the catalog is exhausted. The batch
// runner advances its cursor with this one row at a time, so iteration
// is bounded-memory and tolerant of catalog mutation mid-run.
func (s *Store) NextProduct(ctx context.Context, sinceID int64) (*Product, error) {
	var p Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, title_seo, body, keyword, active
		FROM products WHERE id >= ?
		ORDER BY id LIMIT 1
	`, sinceID).Scan(&p.ID, &p.Title, &p.TitleSeo, &p.Body, &p.Keyword, &p.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching next product from %d: %w", sinceID, err)
	}
	return &p, nil
}

// CountProductsFrom counts products with ID at or above sinceID.
func (s *Store) CountProductsFrom(ctx context.Context, sinceID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE id >= ?`, sinceID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting products: %w", err)
	}
	return n, nil
}

// --- Category operations ---

// UpsertCategory inserts or replaces a category. Returns the category ID.
func (s *Store) UpsertCategory(ctx context.Context, c Category) (int64, error) {
	if c.ID > 0 {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO categories (id, name, name_seo, body_seo, body, keyword, slug, type)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				name_seo = excluded.name_seo,
				body_seo = excluded.body_seo,
				body = excluded.body,
				keyword = excluded.keyword,
				slug = excluded.slug,
				type = excluded.type
		`, c.ID, c.Name, c.NameSeo, c.BodySeo, c.Body, c.Keyword, c.Slug, c.Type)
		if err != nil {
			return 0, fmt.Errorf("upserting category %d: %w", c.ID, err)
		}
		return c.ID, nil
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (name, name_seo, body_seo, body, keyword, slug, type)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.Name, c.NameSeo, c.BodySeo, c.Body, c.Keyword, c.Slug, c.Type)
	if err != nil {
		return 0, fmt.Errorf("inserting category: %w", err)
	}
	return res.LastInsertId()
}

// Category fetches a single category by ID.
func (s *Store) Category(ctx context.Context, id int64) (*Category, error) {
	var c Category
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, name_seo, body_seo, body, keyword, slug, type
		FROM categories WHERE id = ?
	`, id).Scan(&c.ID, &c.Name, &c.NameSeo, &c.BodySeo, &c.Body, &c.Keyword, &c.Slug, &c.Type)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching category %d: %w", id, err)
	}
	return &c, nil
}

// Categories returns all taxonomy nodes, ordered by ID.
func (s *Store) Categories(ctx context.Context) ([]Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, name_seo, body_seo, body, keyword, slug, type
		FROM categories ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var cats []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.NameSeo, &c.BodySeo, &c.Body, &c.Keyword, &c.Slug, &c.Type); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// CategoryNames resolves category IDs to names, preserving input order.
// Unknown IDs resolve to "".
func (s *Store) CategoryNames(ctx context.Context, ids []int64) ([]string, error) {
	names := make([]string, len(ids))
	for i, id := range ids {
		err := s.db.QueryRowContext(ctx,
			`SELECT name FROM categories WHERE id = ?`, id).Scan(&names[i])
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("resolving category name %d: %w", id, err)
		}
	}
	return names, nil
}

// --- Assignment operations ---

// CategoryParentIDs returns the direct parents of a category: the
// categories it is itself assigned to, in edge insertion order.
func (s *Store) CategoryParentIDs(ctx context.Context, categoryID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category_id FROM catables
		WHERE subject_id = ? AND subject_type = ?
		ORDER BY id
	`, categoryID, SubjectCategory)
	if err != nil {
		return nil, fmt.Errorf("fetching parents of category %d: %w", categoryID, err)
	}
	defer rows.Close()

	var parents []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning parent id: %w", err)
		}
		parents = append(parents, id)
	}
	return parents, rows.Err()
}

// AddAssignment inserts a single assignment edge. Used to build the
// taxonomy graph (category->category links) and by tests.
func (s *Store) AddAssignment(ctx context.Context, a Assignment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO catables (category_id, subject_id, subject_type)
		VALUES (?, ?, ?)
	`, a.CategoryID, a.SubjectID, a.SubjectType)
	if err != nil {
		return fmt.Errorf("inserting assignment: %w", err)
	}
	return nil
}

// AssignmentsFor returns a subject's assignments in insertion order.
func (s *Store) AssignmentsFor(ctx context.Context, subjectType string, subjectID int64) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category_id, subject_id, subject_type FROM catables
		WHERE subject_id = ? AND subject_type = ?
		ORDER BY id
	`, subjectID, subjectType)
	if err != nil {
		return nil, fmt.Errorf("fetching assignments: %w", err)
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.ID, &a.CategoryID, &a.SubjectID, &a.SubjectType); err != nil {
			return nil, fmt.Errorf("scanning assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// HasAssignments reports whether the subject has any assignment. The
// check runs inside an immediate transaction, so it holds the write
// lock and serializes against concurrent writers deciding the same
// product is unclassified.
func (s *Store) HasAssignments(ctx context.Context, subjectType string, subjectID int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning existence check: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM catables WHERE subject_id = ? AND subject_type = ?
		)
	`, subjectID, subjectType).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking assignments: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing existence check: %w", err)
	}
	return exists, nil
}

// ReplaceAssignments atomically replaces a subject's assignments with
// the ancestor chain (general to specific) followed by the leaf. Prior
// assignments are deleted, duplicates within the chain are skipped, and
// any failure rolls back the whole operation: the subject is never left
// with a partial chain.
func (s *Store) ReplaceAssignments(ctx context.Context, subjectType string, subjectID int64, chain []int64, leafID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning assignment replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM catables WHERE subject_id = ? AND subject_type = ?
	`, subjectID, subjectType); err != nil {
		return fmt.Errorf("deleting prior assignments: %w", err)
	}

	seen := make(map[int64]struct{}, len(chain)+1)
	insert := func(categoryID int64) error {
		if _, dup := seen[categoryID]; dup {
			return nil
		}
		seen[categoryID] = struct{}{}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO catables (category_id, subject_id, subject_type)
			VALUES (?, ?, ?)
		`, categoryID, subjectID, subjectType)
		if err != nil {
			return fmt.Errorf("inserting assignment %d: %w", categoryID, err)
		}
		return nil
	}

	for _, ancestorID := range chain {
		if err := insert(ancestorID); err != nil {
			return err
		}
	}
	if err := insert(leafID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing assignment replace: %w", err)
	}
	return nil
}
