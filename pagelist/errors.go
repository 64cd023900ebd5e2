package pagelist

import (
	"errors"
	"fmt"
	"io"

	pkgerrors "github.com/pkg/errors"
)

// Error sentinels. Assertion failures wrap one of the first three in an
// *AssertionError.
var (
	// ErrUnsorted indicates a page that is not sorted under its comparator.
	ErrUnsorted = errors.New("paginated list result is not sorted")

	// ErrCompareMismatch indicates merged lists whose comparators disagree.
	ErrCompareMismatch = errors.New("lists have different compare results")

	// ErrNoProgress indicates a source that returned no entries, reached no
	// boundary and handed back the cursor it was given.
	ErrNoProgress = errors.New("source made no progress")

	// ErrInvalidCursor indicates a cursor or cursor token a source cannot use.
	ErrInvalidCursor = errors.New("invalid cursor")

	// ErrUnsupportedOrder indicates an OrderBy a source cannot fetch in.
	ErrUnsupportedOrder = errors.New("unsupported order")
)

// AssertionError reports a broken contract between a list and its source:
// an unsorted page, merged comparators that disagree, or a source that stops
// making progress. It is never recovered by the engine.
//
// Formatting with %+v prints the stack where the violation was detected.
type AssertionError struct {
	// Err is the sentinel describing the violation.
	Err error

	// Index is the offending entry index, or -1 when not applicable.
	Index int

	// Direction is the traversal direction of the failing call.
	Direction Direction

	// Query is the query of the failing call.
	Query any

	// Entries holds the accumulated entries, or the compared items for
	// ErrCompareMismatch.
	Entries any

	// Results holds the per-list comparison results for ErrCompareMismatch.
	Results []int

	cause error
}

func newAssertionError(sentinel error, index int, dir Direction, query, entries any) *AssertionError {
	return &AssertionError{
		Err:       sentinel,
		Index:     index,
		Direction: dir,
		Query:     query,
		Entries:   entries,
		cause:     pkgerrors.WithStack(sentinel),
	}
}

func (e *AssertionError) Error() string {
	msg := "pagelist: assertion failed: " + e.Err.Error()
	if e.Index >= 0 {
		msg += fmt.Sprintf(" (index %d, %s)", e.Index, e.Direction)
	}
	if len(e.Results) > 0 {
		msg += fmt.Sprintf(" (results %v)", e.Results)
	}
	return msg
}

// Unwrap returns the sentinel, wrapped with the detection stack.
func (e *AssertionError) Unwrap() error { return e.cause }

// StackTrace returns the stack captured when the violation was detected.
func (e *AssertionError) StackTrace() pkgerrors.StackTrace {
	var st interface{ StackTrace() pkgerrors.StackTrace }
	if errors.As(e.cause, &st) {
		return st.StackTrace()
	}
	return nil
}

// Format implements fmt.Formatter.
func (e *AssertionError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		_, _ = fmt.Fprintf(s, "%s\nquery: %+v\nentries: %+v%+v", e.Error(), e.Query, e.Entries, e.StackTrace())
		return
	}
	_, _ = io.WriteString(s, e.Error())
}

// recoverAssertion turns an *AssertionError panic raised by a comparator
// into an error. Other panics are re-raised.
func recoverAssertion(err *error) {
	r := recover()
	if r == nil {
		return
	}
	ae, ok := r.(*AssertionError)
	if !ok {
		panic(r)
	}
	*err = ae
}
