package pagelist

import (
	"context"
	"fmt"
	"math"
	"slices"
)

// SliceFilter selects the items of a Slice. A nil filter selects all items.
type SliceFilter[I any] func(item I) bool

// SliceOrder orders the items of a Slice. A nil order keeps insertion order.
type SliceOrder[I any] func(a, b I) int

// Slice is an in-memory Source over a fixed set of items.
//
// Cursors are gap indices into the filtered and sorted view of the items:
// cursor g lies between view items g-1 and g. FirstCursor is 0 and
// LastCursor is math.MaxInt, which is clamped to the view length.
type Slice[I any] struct {
	items []I
}

// NewSlice creates a Slice over a copy of items.
func NewSlice[I any](items []I) *Slice[I] {
	return &Slice[I]{items: slices.Clone(items)}
}

// NewSliceList creates a List over a Slice of items.
func NewSliceList[I any](items []I, opts ...Option) *List[I, int, SliceFilter[I], SliceOrder[I]] {
	return New[I, int, SliceFilter[I], SliceOrder[I]](NewSlice(items), opts...)
}

func (s *Slice[I]) FirstCursor() int { return 0 }

func (s *Slice[I]) LastCursor() int { return math.MaxInt }

func (s *Slice[I]) Compare(orderBy SliceOrder[I], a, b I) int {
	if orderBy == nil {
		return 0
	}
	return orderBy(a, b)
}

func (s *Slice[I]) Fetch(_ context.Context, dir Direction, q Query[int, SliceFilter[I], SliceOrder[I]]) (Result[I, int], error) {
	if q.Cursor < 0 {
		return Result[I, int]{}, fmt.Errorf("pagelist: slice: %w: %d", ErrInvalidCursor, q.Cursor)
	}

	view := s.view(q.Filter, q.OrderBy)
	n := len(view)
	g := min(q.Cursor, n)
	limit := max(q.Limit, 0)

	if dir == Next {
		end := g + min(limit, n-g)
		entries := make([]Entry[I, int], 0, end-g)
		for p := g; p < end; p++ {
			entries = append(entries, Entry[I, int]{Item: view[p], Cursor: p + 1})
		}
		return Result[I, int]{
			Entries: entries,
			IsFirst: g == 0,
			IsLast:  end == n,
			Cursor:  end,
		}, nil
	}

	start := g - min(limit, g)
	entries := make([]Entry[I, int], 0, g-start)
	for p := start; p < g; p++ {
		entries = append(entries, Entry[I, int]{Item: view[p], Cursor: p})
	}
	return Result[I, int]{
		Entries: entries,
		IsFirst: start == 0,
		IsLast:  g == n,
		Cursor:  start,
	}, nil
}

func (s *Slice[I]) view(filter SliceFilter[I], orderBy SliceOrder[I]) []I {
	view := make([]I, 0, len(s.items))
	for _, item := range s.items {
		if filter == nil || filter(item) {
			view = append(view, item)
		}
	}
	if orderBy != nil {
		slices.SortStableFunc(view, orderBy)
	}
	return view
}

var _ Source[int, int, SliceFilter[int], SliceOrder[int]] = (*Slice[int])(nil)
