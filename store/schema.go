package store

// schemaSQL is the DDL for the catalog tables. The category index is a
// separate FTS5 virtual table administered by the index package.
const schemaSQL = `
-- Catalog products. Read-only to the categorizer core.
CREATE TABLE IF NOT EXISTS products (
    id INTEGER PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    title_seo TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL DEFAULT '',
    keyword TEXT NOT NULL DEFAULT '',
    active INTEGER NOT NULL DEFAULT 1
);

-- Taxonomy nodes. Parent links live in catables as category->category
-- edges, so the taxonomy is a general directed graph, not a tree.
CREATE TABLE IF NOT EXISTS categories (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    name_seo TEXT NOT NULL DEFAULT '',
    body_seo TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL DEFAULT '',
    keyword TEXT NOT NULL DEFAULT '',
    slug TEXT NOT NULL DEFAULT '',
    type TEXT NOT NULL DEFAULT ''
);

-- Polymorphic join: one category assigned to one subject, where the
-- subject is either a product or another category.
CREATE TABLE IF NOT EXISTS catables (
    id INTEGER PRIMARY KEY,
    category_id INTEGER NOT NULL REFERENCES categories(id),
    subject_id INTEGER NOT NULL,
    subject_type TEXT NOT NULL CHECK (subject_type IN ('product', 'category'))
);

CREATE INDEX IF NOT EXISTS idx_catables_subject ON catables(subject_id, subject_type);
CREATE INDEX IF NOT EXISTS idx_catables_category ON catables(category_id);
`
