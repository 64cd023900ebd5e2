package pagelist

import "context"

// -----------------------------------------------------------------------------
// FlatMap
// -----------------------------------------------------------------------------

// FlatMapOptions configures FlatMap. Fields suffixed 2 in the type parameters
// describe the new list.
type FlatMapOptions[I, C, F, O, I2, C2, F2, O2 any] struct {
	// ItemMapper maps one upstream entry to zero or more new entries.
	// Required.
	ItemMapper func(entry Entry[I, C], filter F2, orderBy O2) []Entry[I2, C2]

	// Compare orders items of the new list. Required.
	Compare func(orderBy O2, a, b I2) int

	// NewCursor converts an upstream cursor into a cursor of the new list.
	// Required.
	NewCursor func(C) C2

	// OldCursor converts a cursor of the new list back into an upstream
	// cursor. Required. Errors are returned from Next and Prev unchanged.
	OldCursor func(C2) (C, error)

	// OldFilter converts the new filter into the upstream filter.
	// When nil, F2 must be F.
	OldFilter func(F2) F

	// OldOrderBy converts the new order into the upstream order.
	// When nil, O2 must be O.
	OldOrderBy func(O2) O

	// EstimateItemsToFetch returns how many upstream items to request for a
	// page of limit new items. Correctness does not depend on it. When nil,
	// limit is used.
	EstimateItemsToFetch func(filter F2, orderBy O2, limit int) int
}

// FlatMap returns a list whose entries are the upstream entries mapped
// through opts.ItemMapper. Each fetch of the new list performs one
// Approximate fetch of l; the new list's own traversal loop makes up for
// entries dropped by the mapper.
func FlatMap[I, C, F, O, I2, C2, F2, O2 any](l *List[I, C, F, O], opts FlatMapOptions[I, C, F, O, I2, C2, F2, O2]) *List[I2, C2, F2, O2] {
	if l == nil {
		panic("pagelist: FlatMap: list is required")
	}
	if opts.ItemMapper == nil || opts.Compare == nil || opts.NewCursor == nil || opts.OldCursor == nil {
		panic("pagelist: FlatMap: ItemMapper, Compare, NewCursor and OldCursor are required")
	}
	if opts.OldFilter == nil {
		opts.OldFilter = convert[F2, F]
	}
	if opts.OldOrderBy == nil {
		opts.OldOrderBy = convert[O2, O]
	}
	if opts.EstimateItemsToFetch == nil {
		opts.EstimateItemsToFetch = func(_ F2, _ O2, limit int) int { return limit }
	}
	return &List[I2, C2, F2, O2]{
		src:    &flatMapSource[I, C, F, O, I2, C2, F2, O2]{upstream: l, opts: opts},
		logger: l.logger,
	}
}

type flatMapSource[I, C, F, O, I2, C2, F2, O2 any] struct {
	upstream *List[I, C, F, O]
	opts     FlatMapOptions[I, C, F, O, I2, C2, F2, O2]
}

func (s *flatMapSource[I, C, F, O, I2, C2, F2, O2]) FirstCursor() C2 {
	return s.opts.NewCursor(s.upstream.FirstCursor())
}

func (s *flatMapSource[I, C, F, O, I2, C2, F2, O2]) LastCursor() C2 {
	return s.opts.NewCursor(s.upstream.LastCursor())
}

func (s *flatMapSource[I, C, F, O, I2, C2, F2, O2]) Compare(orderBy O2, a, b I2) int {
	return s.opts.Compare(orderBy, a, b)
}

func (s *flatMapSource[I, C, F, O, I2, C2, F2, O2]) Fetch(ctx context.Context, dir Direction, q Query[C2, F2, O2]) (Result[I2, C2], error) {
	cursor, err := s.opts.OldCursor(q.Cursor)
	if err != nil {
		return Result[I2, C2]{}, err
	}

	limit := s.opts.EstimateItemsToFetch(q.Filter, q.OrderBy, q.Limit)
	if q.Limit > 0 && limit < 1 {
		limit = 1
	}

	page, err := s.upstream.NextOrPrev(ctx, dir, Query[C, F, O]{
		Cursor:    cursor,
		Filter:    s.opts.OldFilter(q.Filter),
		OrderBy:   s.opts.OldOrderBy(q.OrderBy),
		Limit:     limit,
		Precision: Approximate,
	})
	if err != nil {
		return Result[I2, C2]{}, err
	}

	mapped := make([]Entry[I2, C2], 0, len(page.Entries))
	for _, e := range page.Entries {
		mapped = append(mapped, s.opts.ItemMapper(e, q.Filter, q.OrderBy)...)
	}

	return Result[I2, C2]{
		Entries: mapped,
		IsFirst: page.IsFirst,
		IsLast:  page.IsLast,
		Cursor:  s.opts.NewCursor(page.Cursor),
	}, nil
}

// convert is the default for conversions between identical type parameters.
func convert[A, B any](a A) B {
	return any(a).(B)
}

// -----------------------------------------------------------------------------
// Map
// -----------------------------------------------------------------------------

// MapOptions configures Map.
type MapOptions[I, F, O, I2, F2, O2 any] struct {
	// Mapper maps an upstream item to a new item. Required.
	Mapper func(I) I2

	// Inverse maps a new item back to the upstream item. Required.
	// The new list compares items by mapping them back and using the
	// upstream comparator, so Inverse must preserve ordering.
	Inverse func(I2) I

	// OldFilter converts the new filter. When nil, F2 must be F.
	OldFilter func(F2) F

	// OldOrderBy converts the new order. When nil, O2 must be O.
	OldOrderBy func(O2) O
}

// Map returns a list whose items are the upstream items mapped one-to-one.
// Cursors are passed through unchanged.
func Map[I, C, F, O, I2, F2, O2 any](l *List[I, C, F, O], opts MapOptions[I, F, O, I2, F2, O2]) *List[I2, C, F2, O2] {
	if opts.Mapper == nil || opts.Inverse == nil {
		panic("pagelist: Map: Mapper and Inverse are required")
	}
	oldOrderBy := opts.OldOrderBy
	if oldOrderBy == nil {
		oldOrderBy = convert[O2, O]
	}
	return FlatMap(l, FlatMapOptions[I, C, F, O, I2, C, F2, O2]{
		ItemMapper: func(e Entry[I, C], _ F2, _ O2) []Entry[I2, C] {
			return []Entry[I2, C]{{Item: opts.Mapper(e.Item), Cursor: e.Cursor}}
		},
		Compare: func(orderBy O2, a, b I2) int {
			return l.Compare(oldOrderBy(orderBy), opts.Inverse(a), opts.Inverse(b))
		},
		NewCursor:  identity[C],
		OldCursor:  identityCursor[C],
		OldFilter:  opts.OldFilter,
		OldOrderBy: oldOrderBy,
	})
}

func identity[T any](v T) T { return v }

func identityCursor[C any](c C) (C, error) { return c, nil }

// -----------------------------------------------------------------------------
// Filter
// -----------------------------------------------------------------------------

// FilterOptions configures Filter.
type FilterOptions[I, F, O, F2 any] struct {
	// Predicate keeps items for which it returns true. Required.
	Predicate func(item I, filter F2) bool

	// OldFilter converts the new filter into the upstream filter.
	// When nil, F2 must be F.
	OldFilter func(F2) F

	// EstimateItemsToFetch returns how many upstream items to request for a
	// page of limit matching items. When nil, limit is used.
	EstimateItemsToFetch func(filter F2, orderBy O, limit int) int
}

// Filter returns a list that drops upstream items rejected by
// opts.Predicate. Cursors are passed through unchanged.
func Filter[I, C, F, O, F2 any](l *List[I, C, F, O], opts FilterOptions[I, F, O, F2]) *List[I, C, F2, O] {
	if opts.Predicate == nil {
		panic("pagelist: Filter: Predicate is required")
	}
	return FlatMap(l, FlatMapOptions[I, C, F, O, I, C, F2, O]{
		ItemMapper: func(e Entry[I, C], filter F2, _ O) []Entry[I, C] {
			if opts.Predicate(e.Item, filter) {
				return []Entry[I, C]{e}
			}
			return nil
		},
		Compare:              l.Compare,
		NewCursor:            identity[C],
		OldCursor:            identityCursor[C],
		OldFilter:            opts.OldFilter,
		OldOrderBy:           identity[O],
		EstimateItemsToFetch: opts.EstimateItemsToFetch,
	})
}

// AddFilterOptions configures AddFilter.
type AddFilterOptions[I, F, O any] struct {
	// Predicate keeps items for which it returns true. Required.
	Predicate func(item I, filter F) bool

	// EstimateItemsToFetch returns how many upstream items to request for a
	// page of limit matching items. When nil, limit is used.
	EstimateItemsToFetch func(filter F, orderBy O, limit int) int
}

// AddFilter is Filter with the filter type kept: the same filter value is
// passed to the upstream list and to opts.Predicate, which interprets the
// criteria the upstream list does not.
func AddFilter[I, C, F, O any](l *List[I, C, F, O], opts AddFilterOptions[I, F, O]) *List[I, C, F, O] {
	return Filter(l, FilterOptions[I, F, O, F]{
		Predicate:            opts.Predicate,
		OldFilter:            identity[F],
		EstimateItemsToFetch: opts.EstimateItemsToFetch,
	})
}
