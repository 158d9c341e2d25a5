// Package feed imports catalog rows from XLSX workbooks: a "products"
// sheet and a "categories" sheet, each with a header row. Category rows
// may name a parent, which becomes a category->category assignment edge
// in the taxonomy graph.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hkhosravi/catsort/store"
)

// Summary reports what an import did.
type Summary struct {
	Products    int `json:"products"`
	Categories  int `json:"categories"`
	ParentLinks int `json:"parent_links"`
}

// Importer loads feed workbooks into the catalog store.
type Importer struct {
	store *store.Store
	log   *slog.Logger
}

// NewImporter returns an Importer writing into st.
func NewImporter(st *store.Store, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: st, log: logger}
}

// ImportFile reads an XLSX workbook and upserts its products and
// categories. Sheet and column names are matched case-insensitively;
// unknown sheets are ignored.
func (im *Importer) ImportFile(ctx context.Context, path string) (Summary, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Summary{}, fmt.Errorf("opening feed %s: %w", path, err)
	}
	defer f.Close()

	var sum Summary
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			im.log.Warn("skipping unreadable sheet", "sheet", sheet, "error", err)
			continue
		}
		if len(rows) < 2 {
			continue
		}

		switch strings.ToLower(strings.TrimSpace(sheet)) {
		case "products":
			n, err := im.importProducts(ctx, rows)
			if err != nil {
				return sum, fmt.Errorf("sheet %s: %w", sheet, err)
			}
			sum.Products += n
		case "categories":
			n, links, err := im.importCategories(ctx, rows)
			if err != nil {
				return sum, fmt.Errorf("sheet %s: %w", sheet, err)
			}
			sum.Categories += n
			sum.ParentLinks += links
		}
	}

	im.log.Info("feed imported", "path", path,
		"products", sum.Products, "categories", sum.Categories,
		"parent_links", sum.ParentLinks)
	return sum, nil
}

// columnMap maps lowercased header names to column positions.
func columnMap(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return cols
}

func cell(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func cellInt(row []string, cols map[string]int, name string) int64 {
	v := cell(row, cols, name)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func cellBool(row []string, cols map[string]int, name string, def bool) bool {
	switch strings.ToLower(cell(row, cols, name)) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return def
}

func (im *Importer) importProducts(ctx context.Context, rows [][]string) (int, error) {
	cols := columnMap(rows[0])
	count := 0
	for _, row := range rows[1:] {
		p := store.Product{
			ID:       cellInt(row, cols, "id"),
			Title:    cell(row, cols, "title"),
			TitleSeo: cell(row, cols, "title_seo"),
			Body:     cell(row, cols, "body"),
			Keyword:  cell(row, cols, "keyword"),
			Active:   cellBool(row, cols, "active", true),
		}
		if p.ID == 0 && p.Title == "" {
			continue
		}
		if _, err := im.store.UpsertProduct(ctx, p); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (im *Importer) importCategories(ctx context.Context, rows [][]string) (int, int, error) {
	cols := columnMap(rows[0])
	count, links := 0, 0

	// Parent edges are created after all rows exist so forward
	// references within the sheet resolve.
	parentsOf := make(map[int64][]int64)
	var children []int64

	for _, row := range rows[1:] {
		c := store.Category{
			ID:      cellInt(row, cols, "id"),
			Name:    cell(row, cols, "name"),
			NameSeo: cell(row, cols, "name_seo"),
			BodySeo: cell(row, cols, "body_seo"),
			Body:    cell(row, cols, "body"),
			Keyword: cell(row, cols, "keyword"),
			Slug:    cell(row, cols, "slug"),
			Type:    cell(row, cols, "type"),
		}
		if c.ID == 0 && c.Name == "" {
			continue
		}
		id, err := im.store.UpsertCategory(ctx, c)
		if err != nil {
			return count, links, err
		}
		count++

		if parent := cellInt(row, cols, "parent_id"); parent > 0 {
			if _, known := parentsOf[id]; !known {
				children = append(children, id)
			}
			parentsOf[id] = append(parentsOf[id], parent)
		}
	}

	// Replace each child's parent set atomically so re-imports do not
	// stack duplicate edges.
	for _, child := range children {
		parents := parentsOf[child]
		leaf := parents[len(parents)-1]
		err := im.store.ReplaceAssignments(ctx, store.SubjectCategory, child, parents[:len(parents)-1], leaf)
		if err != nil {
			return count, links, err
		}
		links += len(parents)
	}
	return count, links, nil
}
