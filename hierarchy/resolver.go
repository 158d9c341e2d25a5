// Package hierarchy computes a category's full ancestor chain over the
// self-referential assignment graph. The taxonomy is a general directed
// graph: nodes may have multiple parents and cycles are tolerated, not
// assumed absent.
package hierarchy

import "context"

// ParentFunc returns the direct parent IDs of a category, in edge
// order. Backed by the store's category->category assignment lookup.
type ParentFunc func(ctx context.Context, categoryID int64) ([]int64, error)

// Resolver walks ancestor chains.
type Resolver struct {
	parents ParentFunc
}

// NewResolver returns a Resolver reading parent links via fn.
func NewResolver(fn ParentFunc) *Resolver {
	return &Resolver{parents: fn}
}

// frame is one node being expanded on the explicit worklist. Using an
// explicit stack instead of recursion keeps deep or adversarial graphs
// from exhausting the goroutine stack.
type frame struct {
	id      int64
	parents []int64
	next    int
	acc     []int64
}

// AncestorChain returns the ordered transitive ancestors of categoryID,
// general to specific, excluding the category itself. Each node is
// visited at most once per call: a re-visit (shared ancestor or cycle)
// contributes nothing rather than erroring, so the walk terminates on
// any finite graph. The result is duplicate-free, first occurrence
// preserved.
func (r *Resolver) AncestorChain(ctx context.Context, categoryID int64) ([]int64, error) {
	visited := map[int64]bool{categoryID: true}

	parents, err := r.parents(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	stack := []*frame{{id: categoryID, parents: parents}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		f := stack[len(stack)-1]
		if f.next < len(f.parents) {
			p := f.parents[f.next]
			f.next++
			if visited[p] {
				continue
			}
			visited[p] = true
			pp, err := r.parents(ctx, p)
			if err != nil {
				return nil, err
			}
			stack = append(stack, &frame{id: p, parents: pp})
			continue
		}

		// Node fully expanded: fold its transitive ancestors, then the
		// node itself, into the frame below. That ordering is what
		// keeps chains general-before-specific.
		stack = stack[:len(stack)-1]
		if len(stack) == 0 {
			return dedupe(f.acc), nil
		}
		below := stack[len(stack)-1]
		below.acc = append(below.acc, f.acc...)
		below.acc = append(below.acc, f.id)
	}
	return nil, nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
