// Package catsort assigns each product in a catalog to the most
// relevant node of a hierarchical category taxonomy. An FTS index ranks
// candidate categories by text relevance, a fusion layer reconciles
// that ranking with direct-match and keyword-overlap heuristics, and
// the winning category is committed together with its full ancestor
// chain.
package catsort

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hkhosravi/catsort/checkpoint"
	"github.com/hkhosravi/catsort/feed"
	"github.com/hkhosravi/catsort/hierarchy"
	"github.com/hkhosravi/catsort/index"
	"github.com/hkhosravi/catsort/normalize"
	"github.com/hkhosravi/catsort/runner"
	"github.com/hkhosravi/catsort/scoring"
	"github.com/hkhosravi/catsort/store"
)

// Engine wires the catalog store, the category index, the scorer, the
// hierarchy resolver and the batch runner into one entry point.
type Engine struct {
	cfg         Config
	store       *store.Store
	index       *index.Index
	resolver    *hierarchy.Resolver
	extractor   normalize.Extractor
	weights     scoring.Weights
	checkpoints checkpoint.Store
	log         *slog.Logger
}

// New validates cfg, opens the catalog database and assembles the
// engine. Pass a nil logger to use slog.Default.
func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening catalog store: %w", err)
	}

	return &Engine{
		cfg:         cfg,
		store:       st,
		index:       index.New(st.DB(), logger),
		resolver:    hierarchy.NewResolver(st.CategoryParentIDs),
		extractor:   normalize.NewExtractor(cfg.MaxKeywords, cfg.MinKeywordRunes),
		weights:     scoring.Weights{Direct: cfg.DirectWeight, Overlap: cfg.OverlapWeight},
		checkpoints: checkpoint.NewFileStore(cfg.CheckpointPath),
		log:         logger,
	}, nil
}

// Close releases the underlying database.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store exposes the catalog store for diagnostics and importers.
func (e *Engine) Store() *store.Store { return e.store }

// Index exposes the category index for administration.
func (e *Engine) Index() *index.Index { return e.index }

// Checkpoints exposes the checkpoint store for progress inspection.
func (e *Engine) Checkpoints() checkpoint.Store { return e.checkpoints }

// Setup creates the category index and populates it from the taxonomy.
func (e *Engine) Setup(ctx context.Context) error {
	if err := e.index.Create(ctx); err != nil {
		return err
	}
	_, err := e.ReindexCategories(ctx)
	return err
}

// ReindexCategories repopulates the index from the current taxonomy.
// Returns the number of indexed categories.
func (e *Engine) ReindexCategories(ctx context.Context) (int, error) {
	ok, err := e.index.Exists(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrIndexMissing
	}
	cats, err := e.store.Categories(ctx)
	if err != nil {
		return 0, err
	}
	return e.index.IndexCategories(ctx, cats)
}

// ImportFeed loads an XLSX catalog feed into the store.
func (e *Engine) ImportFeed(ctx context.Context, path string) (feed.Summary, error) {
	return feed.NewImporter(e.store, e.log).ImportFile(ctx, path)
}

// search is the classify function handed to the batch runner: query the
// index, fuse the scores, and confirm the winner exists in the catalog.
func (e *Engine) search(ctx context.Context, searchText string, keywords []string) (*runner.Match, error) {
	cands, err := e.index.Search(ctx, searchText, keywords, e.cfg.CandidateLimit)
	if err != nil {
		return nil, err
	}
	best, ok := scoring.SelectBest(searchText, keywords, cands, e.weights)
	if !ok {
		return nil, nil
	}

	cat, err := e.store.Category(ctx, best.CategoryID)
	if errors.Is(err, store.ErrNotFound) {
		// Stale index entry; treat as no match rather than failing the
		// product.
		e.log.Warn("indexed category missing from catalog", "category_id", best.CategoryID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &runner.Match{CategoryID: cat.ID, Name: cat.Name, Score: best.Fused}, nil
}

// ready aborts a run before iteration when the index is absent.
func (e *Engine) ready(ctx context.Context) error {
	ok, err := e.index.Exists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrIndexMissing
	}
	return nil
}

// Run processes the whole catalog, resuming from any persisted
// checkpoint. progress may be nil.
func (e *Engine) Run(ctx context.Context, progress runner.ProgressFunc) (runner.Results, error) {
	r := runner.New(e.store, e.checkpoints, e.search, e.resolver, e.ready, runner.Options{
		CheckpointEvery: e.cfg.CheckpointEvery,
		QueryTimeout:    time.Duration(e.cfg.QueryTimeoutSeconds) * time.Second,
		Throttle:        time.Duration(e.cfg.ThrottleMillis) * time.Millisecond,
		BodyWordCap:     e.cfg.BodyWordCap,
		MaxKeywords:     e.cfg.MaxKeywords,
		MinKeywordRunes: e.cfg.MinKeywordRunes,
	}, e.log)
	return r.Run(ctx, progress)
}

// ProductTest is the dry-run diagnosis for a single product. Nothing is
// written.
type ProductTest struct {
	ProductID  int64    `json:"product_id"`
	SearchText string   `json:"search_text"`
	Keywords   []string `json:"keywords"`
	Matched    bool     `json:"matched"`
	CategoryID int64    `json:"category_id,omitempty"`
	Category   string   `json:"category,omitempty"`
	Score      float64  `json:"score,omitempty"`
	Path       []string `json:"path,omitempty"`
}

// TestProduct runs the full search/score/resolve pipeline for one
// product without committing anything.
func (e *Engine) TestProduct(ctx context.Context, productID int64) (*ProductTest, error) {
	if err := e.ready(ctx); err != nil {
		return nil, err
	}

	p, err := e.store.Product(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	out := &ProductTest{ProductID: p.ID}
	out.SearchText = normalize.SearchText(*p, e.cfg.BodyWordCap)
	if out.SearchText == "" {
		return out, nil
	}
	out.Keywords = e.extractor.Extract(out.SearchText)

	match, err := e.search(ctx, out.SearchText, out.Keywords)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return out, nil
	}

	out.Matched = true
	out.CategoryID = match.CategoryID
	out.Category = match.Name
	out.Score = match.Score

	chain, err := e.resolver.AncestorChain(ctx, match.CategoryID)
	if err != nil {
		return nil, err
	}
	out.Path, err = e.store.CategoryNames(ctx, append(append([]int64{}, chain...), match.CategoryID))
	if err != nil {
		return nil, err
	}
	return out, nil
}
