// Package pagelist provides cursor-based paginated lists over ordered,
// filterable collections backed by arbitrary data sources.
//
// A leaf data source implements the small Source contract. New wraps it in a
// List, which implements Next and Prev with the requested limit precision,
// verifies that every page is sorted, and trims over-fetched entries.
// Combinators (FlatMap, Map, Filter, AddFilter, Merge, Empty) build new lists
// from existing ones without re-implementing the traversal loop and without
// materializing the underlying collection.
//
// Lists hold no traversal state. A traversal is the cursor the caller passes
// back into successive calls, and a cursor is only meaningful to the list that
// returned it.
package pagelist

import (
	"context"
	"fmt"
	"strings"
)

// -----------------------------------------------------------------------------
// Direction and precision
// -----------------------------------------------------------------------------

// Direction selects forward (Next) or backward (Prev) traversal.
type Direction int

const (
	// Next fetches items strictly after the cursor.
	Next Direction = iota
	// Prev fetches items strictly before the cursor.
	Prev
)

func (d Direction) String() string {
	switch d {
	case Next:
		return "next"
	case Prev:
		return "prev"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Precision controls how strictly a page's size must match the requested limit.
type Precision int

const (
	// Exact returns exactly min(limit, available) entries.
	// Over-fetched entries are trimmed.
	Exact Precision = iota

	// AtLeast returns at least limit entries unless the boundary in the
	// traversal direction is reached. It may return more.
	AtLeast

	// AtMost returns at most limit entries. It may return fewer when fetching
	// more would be costly, but still advances the cursor when limit > 0.
	AtMost

	// Approximate gives no guarantee on the count. A single underlying fetch
	// is performed.
	Approximate
)

var precisionNames = [...]string{
	Exact:       "exact",
	AtLeast:     "at-least",
	AtMost:      "at-most",
	Approximate: "approximate",
}

func (p Precision) String() string {
	if p >= 0 && int(p) < len(precisionNames) {
		return precisionNames[p]
	}
	return fmt.Sprintf("Precision(%d)", int(p))
}

// ParsePrecision parses the textual form of a Precision ("exact", "at-least",
// "at-most", "approximate"). Underscores are accepted in place of dashes.
func ParsePrecision(s string) (Precision, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for p, n := range precisionNames {
		if n == name {
			return Precision(p), nil
		}
	}
	return 0, fmt.Errorf("pagelist: unknown precision %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Precision) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Precision) UnmarshalText(text []byte) error {
	parsed, err := ParsePrecision(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// singleIteration reports whether the precision takes the cheapest path of
// one underlying fetch.
func (p Precision) singleIteration() bool {
	return p == Approximate || p == AtMost
}

// trims reports whether entries beyond the limit are dropped.
func (p Precision) trims() bool {
	return p == Exact || p == AtMost
}

// -----------------------------------------------------------------------------
// Queries and results
// -----------------------------------------------------------------------------

// Query describes one traversal step in either direction.
type Query[C, F, O any] struct {
	// Cursor is the exclusive boundary to continue from.
	Cursor C

	// Filter is passed unchanged to the underlying source.
	Filter F

	// OrderBy selects the ordering. It must match the comparator.
	OrderBy O

	// Limit is the requested page size. Negative values are treated as zero.
	Limit int

	// Precision controls how strictly Limit is honored.
	Precision Precision
}

// NextOptions are the options of List.Next.
type NextOptions[C, F, O any] struct {
	After     C
	Filter    F
	OrderBy   O
	Limit     int
	Precision Precision
}

// PrevOptions are the options of List.Prev.
type PrevOptions[C, F, O any] struct {
	Before    C
	Filter    F
	OrderBy   O
	Limit     int
	Precision Precision
}

// Entry is one item of a page together with its cursor.
//
// For forward results the cursor continues traversal exactly after the item;
// for backward results it continues exactly before it.
type Entry[I, C any] struct {
	Item   I `json:"item"`
	Cursor C `json:"cursor"`
}

// Result is one page of a traversal.
type Result[I, C any] struct {
	// Entries are sorted under the comparator of the query's OrderBy.
	Entries []Entry[I, C] `json:"entries"`

	// IsFirst reports that the leading edge of the page touches the start of
	// the filtered collection.
	IsFirst bool `json:"is_first"`

	// IsLast reports that the trailing edge of the page touches the end of the
	// filtered collection.
	IsLast bool `json:"is_last"`

	// Cursor continues the traversal in the same direction.
	Cursor C `json:"cursor"`
}

// Items returns the items of the page in order.
func (r Result[I, C]) Items() []I {
	items := make([]I, len(r.Entries))
	for i, e := range r.Entries {
		items[i] = e.Item
	}
	return items
}

// exhausted reports whether the boundary in direction dir has been reached.
func (r Result[I, C]) exhausted(dir Direction) bool {
	if dir == Next {
		return r.IsLast
	}
	return r.IsFirst
}

// -----------------------------------------------------------------------------
// Source contract
// -----------------------------------------------------------------------------

// Source is the primitive contract a leaf data source implements.
//
// Fetch is always called with Precision set to Approximate. It may return
// more or fewer than Limit items, but it must make progress and must report
// IsFirst and IsLast accurately. Items must be ordered consistently with
// Compare; violations are detected by List, not by the source.
type Source[I, C, F, O any] interface {
	// FirstCursor returns the sentinel before the first possible item.
	FirstCursor() C

	// LastCursor returns the sentinel after the last possible item.
	LastCursor() C

	// Compare orders two items under orderBy. It returns a negative number
	// when a sorts before b, zero when they are equal and a positive number
	// otherwise.
	Compare(orderBy O, a, b I) int

	// Fetch returns up to q.Limit items strictly after (Next) or strictly
	// before (Prev) q.Cursor that match q.Filter, ordered by q.OrderBy.
	Fetch(ctx context.Context, dir Direction, q Query[C, F, O]) (Result[I, C], error)
}
