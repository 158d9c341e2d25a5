//go:build cgo

package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hkhosravi/catsort/checkpoint"
	"github.com/hkhosravi/catsort/hierarchy"
	"github.com/hkhosravi/catsort/store"
)

type fixture struct {
	store          *store.Store
	checkpoints    *checkpoint.FileStore
	checkpointPath string
	resolver       *hierarchy.Resolver
	searchCalls    int
}

// newFixture builds a store with categories 1 (root) and 2 (leaf, child
// of 1) plus n products titled "samsung phone".
func newFixture(t *testing.T, products int) *fixture {
	t.Helper()
	dir := t.TempDir()
	s, err := store.New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	if _, err := s.UpsertCategory(ctx, store.Category{ID: 1, Name: "electronics"}); err != nil {
		t.Fatalf("seeding root category: %v", err)
	}
	if _, err := s.UpsertCategory(ctx, store.Category{ID: 2, Name: "phones"}); err != nil {
		t.Fatalf("seeding leaf category: %v", err)
	}
	err = s.AddAssignment(ctx, store.Assignment{CategoryID: 1, SubjectID: 2, SubjectType: store.SubjectCategory})
	if err != nil {
		t.Fatalf("linking categories: %v", err)
	}
	for i := 1; i <= products; i++ {
		if _, err := s.UpsertProduct(ctx, store.Product{ID: int64(i), Title: "samsung phone"}); err != nil {
			t.Fatalf("seeding product %d: %v", i, err)
		}
	}

	cpPath := filepath.Join(dir, "progress.json")
	return &fixture{
		store:          s,
		checkpoints:    checkpoint.NewFileStore(cpPath),
		checkpointPath: cpPath,
		resolver: hierarchy.NewResolver(func(ctx context.Context, id int64) ([]int64, error) {
			return s.CategoryParentIDs(ctx, id)
		}),
	}
}

// matchLeaf is a SearchFunc that always matches category 2 and counts
// its invocations.
func (f *fixture) matchLeaf(ctx context.Context, text string, keywords []string) (*Match, error) {
	f.searchCalls++
	return &Match{CategoryID: 2, Name: "phones", Score: 50}, nil
}

func (f *fixture) runner(t *testing.T, search SearchFunc, opts Options) *Runner {
	t.Helper()
	return New(f.store, f.checkpoints, search, f.resolver, nil, opts, nil)
}

func TestRunClassifiesWholeCatalog(t *testing.T) {
	f := newFixture(t, 3)
	var events []Event
	r := f.runner(t, f.matchLeaf, Options{})

	res, err := r.Run(context.Background(), func(ev Event) { events = append(events, ev) })
	if err != nil {
		t.Fatalf("running: %v", err)
	}
	if res.Processed != 3 || res.Classified != 3 || res.Skipped != 0 || res.Errored != 0 {
		t.Fatalf("unexpected results %+v", res)
	}
	if f.searchCalls != 3 {
		t.Fatalf("search called %d times, want 3", f.searchCalls)
	}

	for _, ev := range events {
		if ev.Outcome != OutcomeClassified {
			t.Fatalf("product %d outcome %s, want classified", ev.ProductID, ev.Outcome)
		}
		if want := []string{"electronics", "phones"}; !reflect.DeepEqual(ev.Path, want) {
			t.Fatalf("product %d path %v, want %v", ev.ProductID, ev.Path, want)
		}
	}

	// Every product carries the full chain, general before specific.
	for id := int64(1); id <= 3; id++ {
		got, err := f.store.AssignmentsFor(context.Background(), store.SubjectProduct, id)
		if err != nil {
			t.Fatalf("fetching assignments for %d: %v", id, err)
		}
		var ids []int64
		for _, a := range got {
			ids = append(ids, a.CategoryID)
		}
		if want := []int64{1, 2}; !reflect.DeepEqual(ids, want) {
			t.Fatalf("product %d assignments %v, want %v", id, ids, want)
		}
	}

	// A completed run leaves no checkpoint behind.
	cp, err := f.checkpoints.Load()
	if err != nil {
		t.Fatalf("loading checkpoint: %v", err)
	}
	if cp != nil {
		t.Fatalf("checkpoint survived a completed run: %+v", cp)
	}
}

func TestRunSkipsAssignedProducts(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	if err := f.store.ReplaceAssignments(ctx, store.SubjectProduct, 1, nil, 2); err != nil {
		t.Fatalf("pre-assigning product 1: %v", err)
	}

	r := f.runner(t, f.matchLeaf, Options{})
	res, err := r.Run(ctx, nil)
	if err != nil {
		t.Fatalf("running: %v", err)
	}
	if res.Processed != 2 || res.Classified != 1 || res.Skipped != 1 {
		t.Fatalf("unexpected results %+v", res)
	}
	if f.searchCalls != 1 {
		t.Fatalf("search called %d times for the skipped catalog, want 1", f.searchCalls)
	}
}

func TestRunEmptyTextIsUnmatchedWithoutSearch(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	if _, err := f.store.UpsertProduct(ctx, store.Product{ID: 1}); err != nil {
		t.Fatalf("seeding blank product: %v", err)
	}

	var got []Outcome
	r := f.runner(t, f.matchLeaf, Options{})
	res, err := r.Run(ctx, func(ev Event) { got = append(got, ev.Outcome) })
	if err != nil {
		t.Fatalf("running: %v", err)
	}
	if res.Processed != 1 || res.Classified != 0 {
		t.Fatalf("unexpected results %+v", res)
	}
	if f.searchCalls != 0 {
		t.Fatal("search must not run for a product with no usable text")
	}
	if want := []Outcome{OutcomeUnmatched}; !reflect.DeepEqual(got, want) {
		t.Fatalf("outcomes %v, want %v", got, want)
	}
}

func TestRunIsolatesSearchErrors(t *testing.T) {
	f := newFixture(t, 3)
	boom := errors.New("engine unavailable")
	search := func(ctx context.Context, text string, keywords []string) (*Match, error) {
		f.searchCalls++
		if f.searchCalls == 2 {
			return nil, boom
		}
		return f.matchLeaf(ctx, text, keywords)
	}

	var errored []int64
	r := f.runner(t, search, Options{})
	res, err := r.Run(context.Background(), func(ev Event) {
		if ev.Outcome == OutcomeError {
			errored = append(errored, ev.ProductID)
			if !errors.Is(ev.Err, boom) {
				t.Errorf("event error %v, want %v", ev.Err, boom)
			}
		}
	})
	if err != nil {
		t.Fatalf("running: %v", err)
	}
	if res.Processed != 3 || res.Classified != 2 || res.Errored != 1 {
		t.Fatalf("one bad product must not stop the run: %+v", res)
	}
	if want := []int64{2}; !reflect.DeepEqual(errored, want) {
		t.Fatalf("errored products %v, want %v", errored, want)
	}
}

func TestRunNoMatchIsUnmatched(t *testing.T) {
	f := newFixture(t, 1)
	search := func(ctx context.Context, text string, keywords []string) (*Match, error) {
		return nil, nil
	}

	r := f.runner(t, search, Options{})
	res, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("running: %v", err)
	}
	if res.Processed != 1 || res.Classified != 0 || res.Errored != 0 {
		t.Fatalf("unexpected results %+v", res)
	}
	ok, err := f.store.HasAssignments(context.Background(), store.SubjectProduct, 1)
	if err != nil {
		t.Fatalf("checking assignments: %v", err)
	}
	if ok {
		t.Fatal("unmatched product must stay unassigned")
	}
}

func TestRunReadyErrorAborts(t *testing.T) {
	f := newFixture(t, 2)
	notReady := errors.New("index missing")
	r := New(f.store, f.checkpoints, f.matchLeaf, f.resolver,
		func(ctx context.Context) error { return notReady }, Options{}, nil)

	res, err := r.Run(context.Background(), nil)
	if !errors.Is(err, notReady) {
		t.Fatalf("expected readiness error, got %v", err)
	}
	if res.Processed != 0 {
		t.Fatalf("aborted run processed %d products", res.Processed)
	}
	if f.searchCalls != 0 {
		t.Fatal("search must not run when the readiness check fails")
	}
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	f := newFixture(t, 6)

	// First run: cancel after the third product. With CheckpointEvery=2
	// the persisted cursor points at product 2.
	ctx, cancel := context.WithCancel(context.Background())
	r := f.runner(t, f.matchLeaf, Options{CheckpointEvery: 2})
	res1, err := r.Run(ctx, func(ev Event) {
		if ev.Processed == 3 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if res1.Processed != 3 || res1.Classified != 3 {
		t.Fatalf("unexpected first-run results %+v", res1)
	}

	cp, err := f.checkpoints.Load()
	if err != nil {
		t.Fatalf("loading checkpoint: %v", err)
	}
	if cp == nil || cp.LastProcessedID != 2 {
		t.Fatalf("checkpoint %+v, want last processed id 2", cp)
	}

	// Second run picks up after the checkpoint. Product 3 was already
	// classified before the cancel, so it comes back as a skip; the
	// rest classify fresh.
	res2, err := f.runner(t, f.matchLeaf, Options{CheckpointEvery: 2}).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("resumed run: %v", err)
	}
	if res2.Processed != 4 || res2.Classified != 3 || res2.Skipped != 1 {
		t.Fatalf("unexpected resumed results %+v", res2)
	}

	// Between the two runs every product ended up assigned exactly once.
	for id := int64(1); id <= 6; id++ {
		got, err := f.store.AssignmentsFor(context.Background(), store.SubjectProduct, id)
		if err != nil {
			t.Fatalf("fetching assignments for %d: %v", id, err)
		}
		if len(got) != 2 {
			t.Fatalf("product %d has %d assignments, want 2", id, len(got))
		}
	}

	cp, err = f.checkpoints.Load()
	if err != nil {
		t.Fatalf("reloading checkpoint: %v", err)
	}
	if cp != nil {
		t.Fatalf("checkpoint survived the completed resume: %+v", cp)
	}
}

func TestRunCorruptCheckpointStartsFresh(t *testing.T) {
	f := newFixture(t, 2)
	// Overwrite the checkpoint file with invalid JSON; the run must
	// degrade to a fresh start instead of failing.
	if err := os.WriteFile(f.checkpointPath, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupting checkpoint: %v", err)
	}

	res, err := f.runner(t, f.matchLeaf, Options{}).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("running: %v", err)
	}
	if res.Processed != 2 || res.Classified != 2 {
		t.Fatalf("unexpected results %+v", res)
	}
}
