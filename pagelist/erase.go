package pagelist

import (
	"fmt"

	"github.com/justapithecus/pagelist/internal/codec"
)

// Erase returns l with its cursor type erased to any, so that lists with
// different cursor types can be merged.
//
// Cursors passed back to the erased list are either the values it returned
// or their decoded JSON form, as produced by DecodeCursor[any]; the latter
// is converted back into C.
func Erase[I, C, F, O any](l *List[I, C, F, O]) *List[I, any, F, O] {
	return FlatMap(l, FlatMapOptions[I, C, F, O, I, any, F, O]{
		ItemMapper: func(e Entry[I, C], _ F, _ O) []Entry[I, any] {
			return []Entry[I, any]{{Item: e.Item, Cursor: e.Cursor}}
		},
		Compare:    l.Compare,
		NewCursor:  func(c C) any { return c },
		OldCursor:  restoreCursor[C],
		OldFilter:  identity[F],
		OldOrderBy: identity[O],
	})
}

func restoreCursor[C any](v any) (C, error) {
	if c, ok := v.(C); ok {
		return c, nil
	}
	var c C
	if err := codec.Convert(v, &c); err != nil {
		var zero C
		return zero, fmt.Errorf("pagelist: %w: %T is not a %T: %v", ErrInvalidCursor, v, zero, err)
	}
	return c, nil
}
