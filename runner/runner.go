// Package runner drives the full-catalog categorization batch: a single
// logical worker iterating products in ascending ID order, skipping
// already-assigned products behind a locking check, checkpointing
// progress, and isolating per-product failures so one bad row never
// aborts the run.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hkhosravi/catsort/checkpoint"
	"github.com/hkhosravi/catsort/hierarchy"
	"github.com/hkhosravi/catsort/normalize"
	"github.com/hkhosravi/catsort/store"
)

// Outcome classifies what happened to one product.
type Outcome string

const (
	// OutcomeSkipped means the product already had an assignment.
	OutcomeSkipped Outcome = "already-assigned"
	// OutcomeClassified means a category was chosen and committed.
	OutcomeClassified Outcome = "classified"
	// OutcomeUnmatched means no suitable category was found (or the
	// product had no usable text).
	OutcomeUnmatched Outcome = "unmatched"
	// OutcomeError means processing this product failed; the run
	// continued with the next one.
	OutcomeError Outcome = "error"
)

// Match is the category chosen for a product by the search/classify
// function.
type Match struct {
	CategoryID int64
	Name       string
	Score      float64
}

// SearchFunc obtains ranked candidates for the search text and fuses
// them into at most one winner. A nil Match with nil error means no
// suitable category.
type SearchFunc func(ctx context.Context, searchText string, keywords []string) (*Match, error)

// Event is delivered to the progress observer once per processed
// product, with the running counters alongside.
type Event struct {
	ProductID  int64
	Outcome    Outcome
	CategoryID int64
	Category   string
	Score      float64
	Path       []string
	Err        error
	Processed  int
	Classified int
	Skipped    int
}

// ProgressFunc observes per-product outcomes. Presentation only; the
// runner's control flow never depends on it.
type ProgressFunc func(Event)

// Results are the aggregate counters for a completed run.
type Results struct {
	Processed  int `json:"processed"`
	Classified int `json:"classified"`
	Skipped    int `json:"skipped"`
	Errored    int `json:"errored"`
}

// Options tune the batch run.
type Options struct {
	// CheckpointEvery persists progress after this many processed
	// products. Values below 1 default to 5.
	CheckpointEvery int
	// QueryTimeout bounds each product's index and store calls. Zero
	// disables the per-product deadline.
	QueryTimeout time.Duration
	// Throttle sleeps between products. Zero disables.
	Throttle time.Duration
	// BodyWordCap is the search-text body word cap.
	BodyWordCap int
	// MaxKeywords / MinKeywordRunes configure keyword extraction.
	MaxKeywords     int
	MinKeywordRunes int
}

// Runner processes the catalog end to end.
type Runner struct {
	store       *store.Store
	checkpoints checkpoint.Store
	search      SearchFunc
	resolver    *hierarchy.Resolver
	ready       func(ctx context.Context) error
	extractor   normalize.Extractor
	opts        Options
	log         *slog.Logger
}

// New assembles a Runner. ready is called once before iteration; a
// non-nil error aborts the run with nothing processed (used for the
// index-missing check). ready may be nil.
func New(
	st *store.Store,
	cps checkpoint.Store,
	search SearchFunc,
	resolver *hierarchy.Resolver,
	ready func(ctx context.Context) error,
	opts Options,
	logger *slog.Logger,
) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.CheckpointEvery < 1 {
		opts.CheckpointEvery = 5
	}
	if opts.BodyWordCap < 1 {
		opts.BodyWordCap = 15
	}
	return &Runner{
		store:       st,
		checkpoints: cps,
		search:      search,
		resolver:    resolver,
		ready:       ready,
		extractor:   normalize.NewExtractor(opts.MaxKeywords, opts.MinKeywordRunes),
		opts:        opts,
		log:         logger,
	}
}

// Run iterates the catalog from the persisted checkpoint (or the
// start), processing one product at a time. It is interruptible via ctx
// between products: each product's work commits atomically, so
// cancellation never leaves a partial chain, only at most
// CheckpointEvery-1 products of redundant re-processing on resume.
func (r *Runner) Run(ctx context.Context, progress ProgressFunc) (Results, error) {
	var res Results

	if r.ready != nil {
		if err := r.ready(ctx); err != nil {
			return res, err
		}
	}

	cursor := int64(0)
	cp, err := r.checkpoints.Load()
	switch {
	case err != nil:
		// Degrade to a fresh start; re-processing is safe because
		// assigned products are skipped.
		r.log.Warn("could not read checkpoint, starting fresh", "error", err)
	case cp != nil:
		cursor = cp.LastProcessedID + 1
		r.log.Info("resuming categorization", "from_id", cursor)
	default:
		r.log.Info("starting fresh categorization")
	}

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		p, err := r.store.NextProduct(ctx, cursor)
		if errors.Is(err, store.ErrNotFound) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("advancing catalog cursor: %w", err)
		}
		cursor = p.ID + 1

		res.Processed++
		r.processOne(ctx, *p, &res, progress)

		if res.Processed%r.opts.CheckpointEvery == 0 {
			r.saveCheckpoint(p.ID)
		}
		if r.opts.Throttle > 0 {
			time.Sleep(r.opts.Throttle)
		}
	}

	if err := r.checkpoints.Clear(); err != nil {
		r.log.Warn("could not clear checkpoint", "error", err)
	}
	r.log.Info("categorization completed",
		"processed", res.Processed, "classified", res.Classified,
		"skipped", res.Skipped, "errored", res.Errored)
	return res, nil
}

// processOne runs the per-product pipeline. Failures are recorded and
// reported, never propagated.
func (r *Runner) processOne(ctx context.Context, p store.Product, res *Results, progress ProgressFunc) {
	if r.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.QueryTimeout)
		defer cancel()
	}

	notify := func(ev Event) {
		if progress == nil {
			return
		}
		ev.ProductID = p.ID
		ev.Processed = res.Processed
		ev.Classified = res.Classified
		ev.Skipped = res.Skipped
		progress(ev)
	}
	fail := func(stage string, err error) {
		res.Errored++
		r.log.Error("product processing failed", "product_id", p.ID, "stage", stage, "error", err)
		notify(Event{Outcome: OutcomeError, Err: err})
	}

	assigned, err := r.store.HasAssignments(ctx, store.SubjectProduct, p.ID)
	if err != nil {
		fail("existence check", err)
		return
	}
	if assigned {
		res.Skipped++
		notify(Event{Outcome: OutcomeSkipped})
		return
	}

	searchText := normalize.SearchText(p, r.opts.BodyWordCap)
	if searchText == "" {
		r.log.Warn("empty search text", "product_id", p.ID)
		notify(Event{Outcome: OutcomeUnmatched})
		return
	}
	keywords := r.extractor.Extract(searchText)

	match, err := r.search(ctx, searchText, keywords)
	if err != nil {
		fail("search", err)
		return
	}
	if match == nil {
		notify(Event{Outcome: OutcomeUnmatched})
		return
	}

	// Double-check with the same locking read: another writer may have
	// assigned this product while we were scoring. A hit here is a
	// normal skip, not an error.
	assigned, err = r.store.HasAssignments(ctx, store.SubjectProduct, p.ID)
	if err != nil {
		fail("double check", err)
		return
	}
	if assigned {
		res.Skipped++
		r.log.Warn("product assigned by another writer, skipping", "product_id", p.ID)
		notify(Event{Outcome: OutcomeSkipped})
		return
	}

	chain, err := r.resolver.AncestorChain(ctx, match.CategoryID)
	if err != nil {
		fail("hierarchy", err)
		return
	}
	if err := r.store.ReplaceAssignments(ctx, store.SubjectProduct, p.ID, chain, match.CategoryID); err != nil {
		fail("assignment", err)
		return
	}
	res.Classified++

	path, err := r.store.CategoryNames(ctx, append(append([]int64{}, chain...), match.CategoryID))
	if err != nil {
		r.log.Warn("could not resolve category path", "product_id", p.ID, "error", err)
		path = nil
	}
	r.log.Info("product classified",
		"product_id", p.ID, "category_id", match.CategoryID,
		"category", match.Name, "score", match.Score)
	notify(Event{
		Outcome:    OutcomeClassified,
		CategoryID: match.CategoryID,
		Category:   match.Name,
		Score:      match.Score,
		Path:       path,
	})
}

// saveCheckpoint persists progress; failures degrade to "no checkpoint
// saved" rather than aborting the run.
func (r *Runner) saveCheckpoint(lastID int64) {
	err := r.checkpoints.Save(checkpoint.Checkpoint{
		LastProcessedID: lastID,
		Timestamp:       time.Now().Format(time.DateTime),
		ProcessID:       os.Getpid(),
	})
	if err != nil {
		r.log.Warn("could not save checkpoint", "error", err)
	}
}
