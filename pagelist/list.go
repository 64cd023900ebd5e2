package pagelist

import (
	"context"
	"iter"
	"reflect"
	"slices"

	"go.uber.org/zap"
)

// DefaultPageSize is the page size All uses when the query has no limit.
const DefaultPageSize = 100

// List is a paginated list over a Source.
//
// A List is immutable and safe for concurrent use. It performs no I/O of its
// own; every suspension point is a call into the source.
type List[I, C, F, O any] struct {
	src    Source[I, C, F, O]
	logger *zap.Logger
}

// New creates a List over src.
func New[I, C, F, O any](src Source[I, C, F, O], opts ...Option) *List[I, C, F, O] {
	if src == nil {
		panic("pagelist: source is required")
	}
	cfg := newConfig(opts)
	return &List[I, C, F, O]{src: src, logger: cfg.logger}
}

// FirstCursor returns the sentinel before the first item.
func (l *List[I, C, F, O]) FirstCursor() C { return l.src.FirstCursor() }

// LastCursor returns the sentinel after the last item.
func (l *List[I, C, F, O]) LastCursor() C { return l.src.LastCursor() }

// Compare orders two items under orderBy.
//
// Lists built by Merge panic with an *AssertionError when their constituents
// disagree; Next and Prev report that panic as an error.
func (l *List[I, C, F, O]) Compare(orderBy O, a, b I) int { return l.src.Compare(orderBy, a, b) }

// Next returns the page after opts.After.
func (l *List[I, C, F, O]) Next(ctx context.Context, opts NextOptions[C, F, O]) (Result[I, C], error) {
	return l.NextOrPrev(ctx, Next, Query[C, F, O]{
		Cursor:    opts.After,
		Filter:    opts.Filter,
		OrderBy:   opts.OrderBy,
		Limit:     opts.Limit,
		Precision: opts.Precision,
	})
}

// Prev returns the page before opts.Before.
func (l *List[I, C, F, O]) Prev(ctx context.Context, opts PrevOptions[C, F, O]) (Result[I, C], error) {
	return l.NextOrPrev(ctx, Prev, Query[C, F, O]{
		Cursor:    opts.Before,
		Filter:    opts.Filter,
		OrderBy:   opts.OrderBy,
		Limit:     opts.Limit,
		Precision: opts.Precision,
	})
}

// NextOrPrev returns one page in direction dir.
//
// The source is fetched repeatedly until q.Limit entries are accumulated or
// the boundary in direction dir is reached; Approximate and AtMost stop after
// a single fetch. The accumulated page must be sorted, otherwise an
// *AssertionError wrapping ErrUnsorted is returned. Exact and AtMost then
// trim the page to q.Limit entries on the side away from the cursor.
//
// Errors returned by the source are passed through unchanged.
func (l *List[I, C, F, O]) NextOrPrev(ctx context.Context, dir Direction, q Query[C, F, O]) (res Result[I, C], err error) {
	defer recoverAssertion(&err)

	limit := max(q.Limit, 0)
	entries := []Entry[I, C]{}
	includesFirst, includesLast := false, false
	cursor := q.Cursor
	remaining := limit

	for remaining > 0 && !(dir == Next && includesLast) && !(dir == Prev && includesFirst) {
		page, err := l.src.Fetch(ctx, dir, Query[C, F, O]{
			Cursor:    cursor,
			Filter:    q.Filter,
			OrderBy:   q.OrderBy,
			Limit:     remaining,
			Precision: Approximate,
		})
		if err != nil {
			return Result[I, C]{}, err
		}
		if ce := l.logger.Check(zap.DebugLevel, "fetched page"); ce != nil {
			ce.Write(
				zap.Stringer("direction", dir),
				zap.Int("requested", remaining),
				zap.Int("fetched", len(page.Entries)),
				zap.Bool("is_first", page.IsFirst),
				zap.Bool("is_last", page.IsLast),
			)
		}

		if len(page.Entries) == 0 && !page.exhausted(dir) && reflect.DeepEqual(page.Cursor, cursor) {
			return Result[I, C]{}, l.assertionFailed(newAssertionError(ErrNoProgress, -1, dir, q, entries))
		}

		if dir == Next {
			entries = append(entries, page.Entries...)
		} else {
			entries = slices.Concat(page.Entries, entries)
		}
		remaining -= len(page.Entries)
		includesFirst = includesFirst || page.IsFirst
		includesLast = includesLast || page.IsLast
		cursor = page.Cursor

		if q.Precision.singleIteration() {
			break
		}
	}

	for i := 1; i < len(entries); i++ {
		if l.src.Compare(q.OrderBy, entries[i].Item, entries[i-1].Item) < 0 {
			return Result[I, C]{}, l.assertionFailed(newAssertionError(ErrUnsorted, i, dir, q, entries))
		}
	}

	if q.Precision.trims() && len(entries) > limit {
		if dir == Next {
			entries = entries[:limit]
			includesLast = false
			if limit > 0 {
				cursor = entries[len(entries)-1].Cursor
			}
		} else {
			entries = entries[len(entries)-limit:]
			includesFirst = false
			if limit > 0 {
				cursor = entries[0].Cursor
			}
		}
	}

	return Result[I, C]{
		Entries: entries,
		IsFirst: includesFirst,
		IsLast:  includesLast,
		Cursor:  cursor,
	}, nil
}

func (l *List[I, C, F, O]) assertionFailed(ae *AssertionError) *AssertionError {
	l.logger.Error("pagelist assertion failed",
		zap.Error(ae.Err),
		zap.Int("index", ae.Index),
		zap.Stringer("direction", ae.Direction),
		zap.Any("query", ae.Query),
	)
	return ae
}

// All walks the list from q.Cursor in direction dir until the boundary is
// reached, fetching pages of q.Limit entries (DefaultPageSize when zero).
//
// Entries are yielded in traversal order: ascending for Next, descending for
// Prev. The first error ends the sequence.
func (l *List[I, C, F, O]) All(ctx context.Context, dir Direction, q Query[C, F, O]) iter.Seq2[Entry[I, C], error] {
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	return func(yield func(Entry[I, C], error) bool) {
		for {
			if err := ctx.Err(); err != nil {
				yield(Entry[I, C]{}, err)
				return
			}

			page, err := l.NextOrPrev(ctx, dir, q)
			if err != nil {
				yield(Entry[I, C]{}, err)
				return
			}

			if dir == Next {
				for _, e := range page.Entries {
					if !yield(e, nil) {
						return
					}
				}
			} else {
				for _, e := range slices.Backward(page.Entries) {
					if !yield(e, nil) {
						return
					}
				}
			}

			if page.exhausted(dir) {
				return
			}
			q.Cursor = page.Cursor
		}
	}
}
