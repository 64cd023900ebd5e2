package pagelist

import "context"

// EmptyCursor is the single cursor of an Empty list.
const EmptyCursor = "empty"

// Empty returns a list with no items. Both sentinels are EmptyCursor, Compare
// always returns 0 and every page is empty with IsFirst and IsLast set.
func Empty[I, F, O any](opts ...Option) *List[I, string, F, O] {
	return New[I, string, F, O](emptySource[I, F, O]{}, opts...)
}

type emptySource[I, F, O any] struct{}

func (emptySource[I, F, O]) FirstCursor() string { return EmptyCursor }

func (emptySource[I, F, O]) LastCursor() string { return EmptyCursor }

func (emptySource[I, F, O]) Compare(O, I, I) int { return 0 }

func (emptySource[I, F, O]) Fetch(context.Context, Direction, Query[string, F, O]) (Result[I, string], error) {
	return Result[I, string]{
		Entries: []Entry[I, string]{},
		IsFirst: true,
		IsLast:  true,
		Cursor:  EmptyCursor,
	}, nil
}

var _ Source[int, string, struct{}, struct{}] = emptySource[int, struct{}, struct{}]{}
