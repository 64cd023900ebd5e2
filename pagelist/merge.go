package pagelist

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MergeCursor is the cursor of a merged list: one constituent cursor per
// merged list, in the order the lists were passed to Merge.
type MergeCursor[C any] []C

// Merge returns the k-way merge of lists, which must share one ordering.
//
// Each fetch pages every constituent concurrently with AtLeast precision and
// emits only the entries no unseen constituent item can precede, so merged
// pages stay globally sorted. IsFirst and IsLast are reported only once every
// constituent reports them.
//
// Lists with different cursor types can be merged after Erase.
func Merge[I, C, F, O any](lists ...*List[I, C, F, O]) *List[I, MergeCursor[C], F, O] {
	for i, l := range lists {
		if l == nil {
			panic(fmt.Sprintf("pagelist: Merge: list %d is nil", i))
		}
	}
	logger := zap.NewNop()
	if len(lists) > 0 {
		logger = lists[0].logger
	}
	return &List[I, MergeCursor[C], F, O]{
		src:    &mergeSource[I, C, F, O]{lists: slices.Clone(lists)},
		logger: logger,
	}
}

type mergeSource[I, C, F, O any] struct {
	lists []*List[I, C, F, O]
}

// mergeEntry is a constituent entry tagged with its list index.
type mergeEntry[I, C any] struct {
	Entry[I, C]
	list int
}

func (s *mergeSource[I, C, F, O]) FirstCursor() MergeCursor[C] {
	c := make(MergeCursor[C], len(s.lists))
	for i, l := range s.lists {
		c[i] = l.FirstCursor()
	}
	return c
}

func (s *mergeSource[I, C, F, O]) LastCursor() MergeCursor[C] {
	c := make(MergeCursor[C], len(s.lists))
	for i, l := range s.lists {
		c[i] = l.LastCursor()
	}
	return c
}

// Compare panics with an *AssertionError wrapping ErrCompareMismatch when
// the constituents do not agree on the sign of the comparison.
func (s *mergeSource[I, C, F, O]) Compare(orderBy O, a, b I) int {
	if len(s.lists) == 0 {
		return 0
	}
	results := make([]int, len(s.lists))
	for i, l := range s.lists {
		results[i] = cmp.Compare(l.Compare(orderBy, a, b), 0)
	}
	for _, r := range results[1:] {
		if r != results[0] {
			ae := newAssertionError(ErrCompareMismatch, -1, Next, orderBy, []I{a, b})
			ae.Results = results
			s.lists[0].logger.Error("pagelist assertion failed",
				zap.Error(ae.Err),
				zap.Ints("results", results),
			)
			panic(ae)
		}
	}
	return results[0]
}

func (s *mergeSource[I, C, F, O]) Fetch(ctx context.Context, dir Direction, q Query[MergeCursor[C], F, O]) (Result[I, MergeCursor[C]], error) {
	if len(q.Cursor) != len(s.lists) {
		return Result[I, MergeCursor[C]]{}, fmt.Errorf("pagelist: merge: %w: %d constituent cursors for %d lists",
			ErrInvalidCursor, len(q.Cursor), len(s.lists))
	}

	pages := make([]Result[I, C], len(s.lists))
	g, gctx := errgroup.WithContext(ctx)
	for i, l := range s.lists {
		g.Go(func() error {
			page, err := l.NextOrPrev(gctx, dir, Query[C, F, O]{
				Cursor:    q.Cursor[i],
				Filter:    q.Filter,
				OrderBy:   q.OrderBy,
				Limit:     q.Limit,
				Precision: AtLeast,
			})
			if err != nil {
				return err
			}
			pages[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result[I, MergeCursor[C]]{}, err
	}

	var all []mergeEntry[I, C]
	for i, page := range pages {
		for _, e := range page.Entries {
			all = append(all, mergeEntry[I, C]{Entry: e, list: i})
		}
	}
	slices.SortStableFunc(all, func(a, b mergeEntry[I, C]) int {
		if c := s.Compare(q.OrderBy, a.Item, b.Item); c != 0 {
			return c
		}
		return cmp.Compare(a.list, b.list)
	})

	emitted := s.emittable(dir, q.OrderBy, pages, all)
	consumed := make([]int, len(s.lists))
	for _, e := range emitted {
		consumed[e.list]++
	}

	cursor := slices.Clone(q.Cursor)
	entries := make([]Entry[I, MergeCursor[C]], len(emitted))
	if dir == Next {
		for i, e := range emitted {
			cursor[e.list] = e.Cursor
			entries[i] = Entry[I, MergeCursor[C]]{Item: e.Item, Cursor: slices.Clone(cursor)}
		}
	} else {
		for i, e := range slices.Backward(emitted) {
			cursor[e.list] = e.Cursor
			entries[i] = Entry[I, MergeCursor[C]]{Item: e.Item, Cursor: slices.Clone(cursor)}
		}
	}

	isFirst, isLast := true, true
	for i, page := range pages {
		if consumed[i] == len(page.Entries) {
			cursor[i] = page.Cursor
		}
		isFirst = isFirst && page.IsFirst
		isLast = isLast && page.IsLast
	}

	return Result[I, MergeCursor[C]]{
		Entries: entries,
		IsFirst: isFirst,
		IsLast:  isLast,
		Cursor:  cursor,
	}, nil
}

// emittable returns the prefix (Next) or suffix (Prev) of the sorted entries
// that no unseen item of a constituent can precede in traversal order.
//
// A constituent that has not reached its boundary bounds the merge by the
// last entry it returned (Next) or the first one (Prev).
func (s *mergeSource[I, C, F, O]) emittable(dir Direction, orderBy O, pages []Result[I, C], sorted []mergeEntry[I, C]) []mergeEntry[I, C] {
	var (
		bound    I
		hasBound bool
	)
	for _, page := range pages {
		if page.exhausted(dir) {
			continue
		}
		if len(page.Entries) == 0 {
			// Nothing is known about this constituent's next item.
			return nil
		}
		var edge I
		if dir == Next {
			edge = page.Entries[len(page.Entries)-1].Item
		} else {
			edge = page.Entries[0].Item
		}
		if !hasBound ||
			(dir == Next && s.Compare(orderBy, edge, bound) < 0) ||
			(dir == Prev && s.Compare(orderBy, edge, bound) > 0) {
			bound, hasBound = edge, true
		}
	}
	if !hasBound {
		return sorted
	}

	if dir == Next {
		n := 0
		for n < len(sorted) && s.Compare(orderBy, sorted[n].Item, bound) <= 0 {
			n++
		}
		return sorted[:n]
	}
	n := len(sorted)
	for n > 0 && s.Compare(orderBy, sorted[n-1].Item, bound) >= 0 {
		n--
	}
	return sorted[n:]
}
