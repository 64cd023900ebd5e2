package pagelist

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type (
	intFilter = SliceFilter[int]
	intOrder  = SliceOrder[int]
	intList   = List[int, int, intFilter, intOrder]
	intQuery  = Query[int, intFilter, intOrder]
)

var asc intOrder = cmp.Compare[int]

func newIntList(src Source[int, int, intFilter, intOrder], opts ...Option) *intList {
	return New(src, opts...)
}

func seq(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

// drain pages through l from q.Cursor until the boundary in dir and returns
// the items in ascending order together with every page.
func drain[I, C, F, O any](t *testing.T, l *List[I, C, F, O], dir Direction, q Query[C, F, O]) ([]I, []Result[I, C]) {
	t.Helper()
	var (
		items []I
		pages []Result[I, C]
	)
	for range 1000 {
		res, err := l.NextOrPrev(t.Context(), dir, q)
		require.NoError(t, err)
		pages = append(pages, res)
		if dir == Next {
			items = append(items, res.Items()...)
		} else {
			items = append(res.Items(), items...)
		}
		if res.exhausted(dir) {
			return items, pages
		}
		q.Cursor = res.Cursor
	}
	t.Fatal("traversal did not reach the boundary")
	return nil, nil
}

// -----------------------------------------------------------------------------
// Test sources
// -----------------------------------------------------------------------------

// chunkedSource returns at most chunk items per fetch.
type chunkedSource struct {
	*Slice[int]
	chunk int
}

func (s chunkedSource) Fetch(ctx context.Context, dir Direction, q intQuery) (Result[int, int], error) {
	q.Limit = min(q.Limit, s.chunk)
	return s.Slice.Fetch(ctx, dir, q)
}

// greedySource returns extra items beyond the requested limit.
type greedySource struct {
	*Slice[int]
	extra int
}

func (s greedySource) Fetch(ctx context.Context, dir Direction, q intQuery) (Result[int, int], error) {
	q.Limit += s.extra
	return s.Slice.Fetch(ctx, dir, q)
}

// unsortedSource returns a fixed page regardless of the query.
type unsortedSource struct {
	*Slice[int]
	items []int
}

func (s unsortedSource) Fetch(context.Context, Direction, intQuery) (Result[int, int], error) {
	entries := make([]Entry[int, int], len(s.items))
	for i, item := range s.items {
		entries[i] = Entry[int, int]{Item: item, Cursor: i + 1}
	}
	return Result[int, int]{Entries: entries, IsFirst: true, IsLast: true, Cursor: len(entries)}, nil
}

// stuckSource never advances.
type stuckSource struct {
	*Slice[int]
}

func (s stuckSource) Fetch(_ context.Context, _ Direction, q intQuery) (Result[int, int], error) {
	return Result[int, int]{Entries: []Entry[int, int]{}, Cursor: q.Cursor}, nil
}

// failingSource fails every fetch with err.
type failingSource struct {
	*Slice[int]
	err error
}

func (s failingSource) Fetch(context.Context, Direction, intQuery) (Result[int, int], error) {
	return Result[int, int]{}, s.err
}

// -----------------------------------------------------------------------------
// Concrete scenarios
// -----------------------------------------------------------------------------

func TestNext_ExactPages(t *testing.T) {
	ctx := t.Context()
	l := NewSliceList(seq(1, 5))
	opts := NextOptions[int, intFilter, intOrder]{After: l.FirstCursor(), OrderBy: asc, Limit: 2, Precision: Exact}

	res, err := l.Next(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, res.Items())
	assert.True(t, res.IsFirst)
	assert.False(t, res.IsLast)
	assert.Equal(t, res.Entries[1].Cursor, res.Cursor)

	opts.After = res.Cursor
	res, err = l.Next(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, res.Items())
	assert.False(t, res.IsFirst)
	assert.False(t, res.IsLast)

	opts.After = res.Cursor
	res, err = l.Next(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, []int{5}, res.Items())
	assert.True(t, res.IsLast)
}

func TestPrev_ExactPages(t *testing.T) {
	ctx := t.Context()
	l := NewSliceList(seq(1, 5))
	opts := PrevOptions[int, intFilter, intOrder]{Before: l.LastCursor(), OrderBy: asc, Limit: 2, Precision: Exact}

	res, err := l.Prev(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5}, res.Items())
	assert.True(t, res.IsLast)
	assert.False(t, res.IsFirst)
	assert.Equal(t, res.Entries[0].Cursor, res.Cursor)

	opts.Before = res.Cursor
	res, err = l.Prev(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, res.Items())
	assert.False(t, res.IsFirst)
	assert.False(t, res.IsLast)

	opts.Before = res.Cursor
	res, err = l.Prev(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, res.Items())
	assert.True(t, res.IsFirst)
}

func TestNext_UnsortedSourceFails(t *testing.T) {
	l := newIntList(unsortedSource{Slice: NewSlice[int](nil), items: []int{3, 1, 2}})

	res, err := l.Next(t.Context(), NextOptions[int, intFilter, intOrder]{OrderBy: asc, Limit: 3})
	require.Error(t, err)
	assert.Empty(t, res.Entries)
	assert.ErrorIs(t, err, ErrUnsorted)

	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 1, ae.Index)
	assert.Equal(t, Next, ae.Direction)
	assert.Len(t, ae.Entries, 3)
}

// -----------------------------------------------------------------------------
// Precision
// -----------------------------------------------------------------------------

func TestNextOrPrev_Precision(t *testing.T) {
	tests := []struct {
		name      string
		src       Source[int, int, intFilter, intOrder]
		precision Precision
		want      int
	}{
		{"greedy exact", greedySource{NewSlice(seq(1, 20)), 2}, Exact, 3},
		{"greedy at-least", greedySource{NewSlice(seq(1, 20)), 2}, AtLeast, 5},
		{"greedy at-most", greedySource{NewSlice(seq(1, 20)), 2}, AtMost, 3},
		{"greedy approximate", greedySource{NewSlice(seq(1, 20)), 2}, Approximate, 5},
		{"chunked exact", chunkedSource{NewSlice(seq(1, 20)), 2}, Exact, 3},
		{"chunked at-least", chunkedSource{NewSlice(seq(1, 20)), 2}, AtLeast, 3},
		{"chunked at-most", chunkedSource{NewSlice(seq(1, 20)), 2}, AtMost, 2},
		{"chunked approximate", chunkedSource{NewSlice(seq(1, 20)), 2}, Approximate, 2},
	}
	for _, tt := range tests {
		for _, dir := range []Direction{Next, Prev} {
			t.Run(fmt.Sprintf("%s %s", tt.name, dir), func(t *testing.T) {
				l := newIntList(tt.src)
				cursor := l.FirstCursor()
				if dir == Prev {
					cursor = l.LastCursor()
				}
				res, err := l.NextOrPrev(t.Context(), dir, intQuery{Cursor: cursor, OrderBy: asc, Limit: 3, Precision: tt.precision})
				require.NoError(t, err)
				assert.Len(t, res.Entries, tt.want)
				assert.NotEqual(t, cursor, res.Cursor)
			})
		}
	}
}

func TestNextOrPrev_PrecisionPageSizes(t *testing.T) {
	const limit = 4
	for _, precision := range []Precision{Exact, AtLeast, AtMost, Approximate} {
		for _, src := range []Source[int, int, intFilter, intOrder]{
			chunkedSource{NewSlice(seq(1, 23)), 3},
			greedySource{NewSlice(seq(1, 23)), 3},
		} {
			t.Run(fmt.Sprintf("%s %T", precision, src), func(t *testing.T) {
				l := newIntList(src)
				items, pages := drain(t, l, Next, intQuery{Cursor: l.FirstCursor(), OrderBy: asc, Limit: limit, Precision: precision})
				assert.Equal(t, seq(1, 23), items)

				for i, page := range pages {
					final := i == len(pages)-1
					switch precision {
					case Exact:
						if !final {
							assert.Len(t, page.Entries, limit)
						}
					case AtLeast:
						if !final {
							assert.GreaterOrEqual(t, len(page.Entries), limit)
						}
					case AtMost:
						assert.LessOrEqual(t, len(page.Entries), limit)
					}
				}
			})
		}
	}
}

func TestNextOrPrev_ZeroAndNegativeLimit(t *testing.T) {
	l := NewSliceList(seq(1, 5))
	for _, limit := range []int{0, -3} {
		res, err := l.NextOrPrev(t.Context(), Next, intQuery{Cursor: 2, OrderBy: asc, Limit: limit})
		require.NoError(t, err)
		assert.NotNil(t, res.Entries)
		assert.Empty(t, res.Entries)
		assert.Equal(t, 2, res.Cursor)
		assert.False(t, res.IsFirst)
		assert.False(t, res.IsLast)
	}
}

// -----------------------------------------------------------------------------
// Boundaries
// -----------------------------------------------------------------------------

func TestNextOrPrev_BoundaryCompleteness(t *testing.T) {
	items := []int{9, 4, 7, 1, 8, 2, 6, 3, 5, 10, 4}
	want := slices.Sorted(slices.Values(items))

	for _, limit := range []int{1, 2, 3, 5, 11, 50} {
		for _, precision := range []Precision{Exact, AtLeast, AtMost, Approximate} {
			t.Run(fmt.Sprintf("limit %d %s", limit, precision), func(t *testing.T) {
				l := newIntList(chunkedSource{NewSlice(items), 2})

				got, _ := drain(t, l, Next, intQuery{Cursor: l.FirstCursor(), OrderBy: asc, Limit: limit, Precision: precision})
				assert.Equal(t, want, got)

				got, _ = drain(t, l, Prev, intQuery{Cursor: l.LastCursor(), OrderBy: asc, Limit: limit, Precision: precision})
				assert.Equal(t, want, got)
			})
		}
	}
}

func TestNextOrPrev_Filter(t *testing.T) {
	l := NewSliceList(seq(1, 10))
	even := func(x int) bool { return x%2 == 0 }

	got, _ := drain(t, l, Next, intQuery{Filter: even, OrderBy: asc, Limit: 2})
	assert.Equal(t, []int{2, 4, 6, 8, 10}, got)
}

// -----------------------------------------------------------------------------
// Failures
// -----------------------------------------------------------------------------

func TestNextOrPrev_NoProgress(t *testing.T) {
	l := newIntList(stuckSource{NewSlice(seq(1, 3))})

	_, err := l.Next(t.Context(), NextOptions[int, intFilter, intOrder]{OrderBy: asc, Limit: 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoProgress)
}

func TestNextOrPrev_SourceErrorUnchanged(t *testing.T) {
	errBoom := errors.New("boom")
	l := newIntList(failingSource{NewSlice(seq(1, 3)), errBoom})

	_, err := l.Prev(t.Context(), PrevOptions[int, intFilter, intOrder]{Before: l.LastCursor(), OrderBy: asc, Limit: 2})
	assert.Equal(t, errBoom, err)
}

func TestNextOrPrev_InvalidCursor(t *testing.T) {
	l := NewSliceList(seq(1, 3))

	_, err := l.NextOrPrev(t.Context(), Next, intQuery{Cursor: -1, OrderBy: asc, Limit: 2})
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

// -----------------------------------------------------------------------------
// All
// -----------------------------------------------------------------------------

func TestAll(t *testing.T) {
	l := newIntList(chunkedSource{NewSlice(seq(1, 7)), 2})

	var forward []int
	for e, err := range l.All(t.Context(), Next, intQuery{OrderBy: asc, Limit: 3}) {
		require.NoError(t, err)
		forward = append(forward, e.Item)
	}
	assert.Equal(t, seq(1, 7), forward)

	var backward []int
	for e, err := range l.All(t.Context(), Prev, intQuery{Cursor: l.LastCursor(), OrderBy: asc}) {
		require.NoError(t, err)
		backward = append(backward, e.Item)
	}
	assert.Equal(t, []int{7, 6, 5, 4, 3, 2, 1}, backward)
}

func TestAll_StopsEarly(t *testing.T) {
	l := NewSliceList(seq(1, 100))

	var got []int
	for e, err := range l.All(t.Context(), Next, intQuery{OrderBy: asc, Limit: 10}) {
		require.NoError(t, err)
		got = append(got, e.Item)
		if len(got) == 15 {
			break
		}
	}
	assert.Equal(t, seq(1, 15), got)
}

func TestAll_Error(t *testing.T) {
	errBoom := errors.New("boom")
	l := newIntList(failingSource{NewSlice(seq(1, 3)), errBoom})

	var errs []error
	for _, err := range l.All(t.Context(), Next, intQuery{OrderBy: asc}) {
		errs = append(errs, err)
	}
	assert.Equal(t, []error{errBoom}, errs)
}

func TestAll_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	l := NewSliceList(seq(1, 3))
	for _, err := range l.All(ctx, Next, intQuery{OrderBy: asc}) {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

// -----------------------------------------------------------------------------
// Logging
// -----------------------------------------------------------------------------

func TestWithLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	l := newIntList(chunkedSource{NewSlice(seq(1, 5)), 2}, WithLogger(logger))
	_, err := l.Next(t.Context(), NextOptions[int, intFilter, intOrder]{OrderBy: asc, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 3, logs.FilterMessage("fetched page").Len())

	bad := newIntList(unsortedSource{Slice: NewSlice[int](nil), items: []int{2, 1}}, WithLogger(logger))
	_, err = bad.Next(t.Context(), NextOptions[int, intFilter, intOrder]{OrderBy: asc, Limit: 5})
	require.Error(t, err)
	assert.Equal(t, 1, logs.FilterMessage("pagelist assertion failed").Len())
}

func TestWithLogger_Nil(t *testing.T) {
	l := NewSliceList(seq(1, 3), WithLogger(nil))
	_, err := l.Next(t.Context(), NextOptions[int, intFilter, intOrder]{OrderBy: asc, Limit: 1})
	require.NoError(t, err)
}

func TestNew_NilSourcePanics(t *testing.T) {
	assert.Panics(t, func() { New[int, int, intFilter, intOrder](nil) })
}
