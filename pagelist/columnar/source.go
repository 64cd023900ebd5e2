package columnar

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/justapithecus/pagelist/pagelist"
)

// readBatch is the number of rows decoded per ReadRows call.
const readBatch = 256

// RecordFilter selects the rows a fetch returns. A nil filter selects every
// row.
type RecordFilter func(Record) bool

// Source implements pagelist.Source over the rows of one Parquet file.
// The cursor is a row gap index, and the only supported order is the sort
// column the file was written in.
type Source struct {
	file       *parquet.File
	schema     Schema
	sortColumn string
	columns    map[int]Field
	numRows    int64
}

// Open reads the footer of the file in r and returns a source over its rows.
//
// Every field of schema must be a column of the file. The rows must already
// be sorted by sortColumn; an unsorted file is reported by the list as
// pagelist.ErrUnsorted.
func Open(r io.ReaderAt, size int64, schema Schema, sortColumn string) (*Source, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if _, ok := schema.Field(sortColumn); !ok {
		return nil, fmt.Errorf("%w: sort column %q is not in the schema", ErrSchemaViolation, sortColumn)
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidFormat)
	}

	file, err := parquet.OpenFile(r, size)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrInvalidFormat
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}

	columns := make(map[int]Field, len(schema.Fields))
	for _, field := range schema.Fields {
		leaf, ok := file.Schema().Lookup(field.Name)
		if !ok {
			return nil, fmt.Errorf("%w: file has no column %q", ErrSchemaViolation, field.Name)
		}
		columns[leaf.ColumnIndex] = field
	}

	return &Source{
		file:       file,
		schema:     schema,
		sortColumn: sortColumn,
		columns:    columns,
		numRows:    file.NumRows(),
	}, nil
}

// OpenList opens a source and wraps it in a pagelist.List.
func OpenList(r io.ReaderAt, size int64, schema Schema, sortColumn string, opts ...pagelist.Option) (*pagelist.List[Record, int64, RecordFilter, string], error) {
	src, err := Open(r, size, schema, sortColumn)
	if err != nil {
		return nil, err
	}
	return pagelist.New[Record, int64, RecordFilter, string](src, opts...), nil
}

// NumRows returns the number of rows in the file.
func (s *Source) NumRows() int64 { return s.numRows }

// SortColumn returns the column the rows are ordered by.
func (s *Source) SortColumn() string { return s.sortColumn }

func (s *Source) FirstCursor() int64 { return 0 }

func (s *Source) LastCursor() int64 { return s.numRows }

// Compare orders records by the orderBy column, or by the sort column when
// orderBy is empty. Nulls sort first.
func (s *Source) Compare(orderBy string, a, b Record) int {
	if orderBy == "" {
		orderBy = s.sortColumn
	}
	return compareValues(a[orderBy], b[orderBy])
}

func (s *Source) Fetch(ctx context.Context, dir pagelist.Direction, q pagelist.Query[int64, RecordFilter, string]) (pagelist.Result[Record, int64], error) {
	if q.OrderBy != "" && q.OrderBy != s.sortColumn {
		return pagelist.Result[Record, int64]{}, fmt.Errorf("columnar: %w: %q (file is sorted by %q)",
			pagelist.ErrUnsupportedOrder, q.OrderBy, s.sortColumn)
	}
	if q.Cursor < 0 {
		return pagelist.Result[Record, int64]{}, fmt.Errorf("columnar: %w: negative row %d", pagelist.ErrInvalidCursor, q.Cursor)
	}
	gap := min(q.Cursor, s.numRows)
	limit := max(q.Limit, 1)

	if dir == pagelist.Next {
		return s.next(ctx, gap, limit, q.Filter)
	}
	return s.prev(ctx, gap, limit, q.Filter)
}

// next scans forward from gap until limit rows match or the file ends.
func (s *Source) next(ctx context.Context, gap int64, limit int, filter RecordFilter) (pagelist.Result[Record, int64], error) {
	res := pagelist.Result[Record, int64]{
		Entries: []pagelist.Entry[Record, int64]{},
		IsFirst: gap == 0,
	}

	pos := gap
	err := s.scan(ctx, gap, s.numRows, func(row int64, rec Record) bool {
		pos = row + 1
		if filter != nil && !filter(rec) {
			return true
		}
		res.Entries = append(res.Entries, pagelist.Entry[Record, int64]{Item: rec, Cursor: row + 1})
		return len(res.Entries) < limit
	})
	if err != nil {
		return pagelist.Result[Record, int64]{}, err
	}

	res.IsLast = pos == s.numRows
	res.Cursor = pos
	return res, nil
}

// prev scans backward from gap, one window of rows at a time, until limit
// rows match or the start of the file is reached.
func (s *Source) prev(ctx context.Context, gap int64, limit int, filter RecordFilter) (pagelist.Result[Record, int64], error) {
	matched := []pagelist.Entry[Record, int64]{}
	pos := gap
	for pos > 0 && len(matched) < limit {
		start := max(pos-readBatch, 0)
		var window []pagelist.Entry[Record, int64]
		err := s.scan(ctx, start, pos, func(row int64, rec Record) bool {
			if filter == nil || filter(rec) {
				window = append(window, pagelist.Entry[Record, int64]{Item: rec, Cursor: row})
			}
			return true
		})
		if err != nil {
			return pagelist.Result[Record, int64]{}, err
		}

		need := limit - len(matched)
		if len(window) > need {
			window = window[len(window)-need:]
			pos = window[0].Cursor
		} else {
			pos = start
		}
		matched = append(window, matched...)
	}

	return pagelist.Result[Record, int64]{
		Entries: matched,
		IsFirst: pos == 0,
		IsLast:  gap == s.numRows,
		Cursor:  pos,
	}, nil
}

// scan decodes rows [from, to) in order and calls fn for each until fn
// returns false.
func (s *Source) scan(ctx context.Context, from, to int64, fn func(row int64, rec Record) bool) error {
	if from >= to {
		return nil
	}

	reader := parquet.NewReader(s.file)
	defer func() { _ = reader.Close() }()
	if err := reader.SeekToRow(from); err != nil {
		return fmt.Errorf("%w: seek to row %d: %w", ErrInvalidFormat, from, err)
	}

	rows := make([]parquet.Row, min(to-from, readBatch))
	row := from
	for row < to {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := reader.ReadRows(rows[:min(int64(len(rows)), to-row)])
		for i := range n {
			if !fn(row, s.rowToRecord(rows[i])) {
				return nil
			}
			row++
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%w: read rows: %w", ErrInvalidFormat, err)
		}
		if n == 0 {
			return nil
		}
	}
	return nil
}

// rowToRecord decodes the schema's columns of a row. Columns of the file
// that are not in the schema are skipped.
func (s *Source) rowToRecord(row parquet.Row) Record {
	rec := make(Record, len(s.columns))
	for _, val := range row {
		field, ok := s.columns[val.Column()]
		if !ok {
			continue
		}
		rec[field.Name] = fromValue(val, field)
	}
	return rec
}

// compareValues orders two decoded column values of the same type.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch x := a.(type) {
	case int32:
		return cmp.Compare(x, b.(int32))
	case int64:
		return cmp.Compare(x, b.(int64))
	case float32:
		return cmp.Compare(x, b.(float32))
	case float64:
		return cmp.Compare(x, b.(float64))
	case string:
		return cmp.Compare(x, b.(string))
	case []byte:
		return bytes.Compare(x, b.([]byte))
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case time.Time:
		return x.Compare(b.(time.Time))
	}
	panic(fmt.Sprintf("columnar: cannot compare %T", a))
}

var _ pagelist.Source[Record, int64, RecordFilter, string] = (*Source)(nil)
