package columnar_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justapithecus/pagelist/pagelist"
	"github.com/justapithecus/pagelist/pagelist/columnar"
)

type rowQuery = pagelist.Query[int64, columnar.RecordFilter, string]

var eventSchema = columnar.Schema{Fields: []columnar.Field{
	{Name: "id", Type: columnar.Int64},
	{Name: "name", Type: columnar.String},
	{Name: "score", Type: columnar.Float64, Nullable: true},
	{Name: "at", Type: columnar.Timestamp},
}}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// events returns n records sorted by id. Every third score is null.
func events(n int) []columnar.Record {
	records := make([]columnar.Record, n)
	for i := range n {
		rec := columnar.Record{
			"id":   int64(i + 1),
			"name": fmt.Sprintf("event-%03d", i+1),
			"at":   epoch.Add(time.Duration(i) * time.Minute),
		}
		if i%3 != 0 {
			rec["score"] = float64(i) / 2
		}
		records[i] = rec
	}
	return records
}

func writeFixture(t *testing.T, records []columnar.Record, opts ...columnar.WriteOption) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, columnar.WriteFile(&buf, eventSchema, records, opts...))
	return bytes.NewReader(buf.Bytes())
}

func openList(t *testing.T, records []columnar.Record, opts ...columnar.WriteOption) *pagelist.List[columnar.Record, int64, columnar.RecordFilter, string] {
	t.Helper()
	r := writeFixture(t, records, opts...)
	l, err := columnar.OpenList(r, r.Size(), eventSchema, "id")
	require.NoError(t, err)
	return l
}

func ids(entries []pagelist.Entry[columnar.Record, int64]) []int64 {
	out := make([]int64, len(entries))
	for i, e := range entries {
		out[i] = e.Item["id"].(int64)
	}
	return out
}

func idRange(from, to int64) []int64 {
	var out []int64
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

// walk pages through l until the boundary and returns the ids in ascending
// order.
func walk(t *testing.T, l *pagelist.List[columnar.Record, int64, columnar.RecordFilter, string], dir pagelist.Direction, q rowQuery) []int64 {
	t.Helper()
	var got []int64
	for range 1000 {
		res, err := l.NextOrPrev(t.Context(), dir, q)
		require.NoError(t, err)
		if dir == pagelist.Next {
			got = append(got, ids(res.Entries)...)
			if res.IsLast {
				return got
			}
		} else {
			got = append(ids(res.Entries), got...)
			if res.IsFirst {
				return got
			}
		}
		q.Cursor = res.Cursor
	}
	t.Fatal("traversal did not reach the boundary")
	return nil
}

func TestSource_RoundTripsValues(t *testing.T) {
	l := openList(t, events(4))

	res, err := l.Next(t.Context(), pagelist.NextOptions[int64, columnar.RecordFilter, string]{Limit: 4})
	require.NoError(t, err)
	require.Len(t, res.Entries, 4)

	first := res.Entries[0].Item
	assert.Equal(t, int64(1), first["id"])
	assert.Equal(t, "event-001", first["name"])
	assert.Nil(t, first["score"])
	assert.Equal(t, epoch, first["at"])
	assert.Equal(t, 0.5, res.Entries[1].Item["score"])

	assert.True(t, res.IsFirst)
	assert.True(t, res.IsLast)
	assert.Equal(t, int64(4), res.Cursor)
}

func TestSource_Pages(t *testing.T) {
	records := events(50)
	for _, groupSize := range []int{0, 7} {
		l := openList(t, records, columnar.WithRowGroupSize(groupSize))
		for _, limit := range []int{1, 3, 10, 64} {
			for _, precision := range []pagelist.Precision{pagelist.Exact, pagelist.AtLeast, pagelist.AtMost, pagelist.Approximate} {
				t.Run(fmt.Sprintf("groups %d limit %d %s", groupSize, limit, precision), func(t *testing.T) {
					q := rowQuery{Cursor: l.FirstCursor(), OrderBy: "id", Limit: limit, Precision: precision}
					assert.Equal(t, idRange(1, 50), walk(t, l, pagelist.Next, q))

					q.Cursor = l.LastCursor()
					assert.Equal(t, idRange(1, 50), walk(t, l, pagelist.Prev, q))
				})
			}
		}
	}
}

func TestSource_EntryCursorsResume(t *testing.T) {
	ctx := t.Context()
	l := openList(t, events(20), columnar.WithRowGroupSize(6))

	res, err := l.Next(ctx, pagelist.NextOptions[int64, columnar.RecordFilter, string]{After: 5, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, idRange(6, 10), ids(res.Entries))

	back, err := l.Prev(ctx, pagelist.PrevOptions[int64, columnar.RecordFilter, string]{Before: res.Entries[2].Cursor, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, []int64{6, 7, 8}, ids(back.Entries))
	assert.False(t, back.IsFirst)
	assert.Equal(t, int64(5), back.Cursor)
}

func TestSource_Filter(t *testing.T) {
	l := openList(t, events(600))
	scored := columnar.RecordFilter(func(r columnar.Record) bool { return r["score"] != nil })

	var want []int64
	for i := int64(1); i <= 600; i++ {
		if (i-1)%3 != 0 {
			want = append(want, i)
		}
	}

	q := rowQuery{Filter: scored, Limit: 25}
	assert.Equal(t, want, walk(t, l, pagelist.Next, q))

	q.Cursor = l.LastCursor()
	assert.Equal(t, want, walk(t, l, pagelist.Prev, q))
}

func TestSource_FilterMatchesNothing(t *testing.T) {
	l := openList(t, events(300))
	none := columnar.RecordFilter(func(columnar.Record) bool { return false })

	res, err := l.Next(t.Context(), pagelist.NextOptions[int64, columnar.RecordFilter, string]{Filter: none, Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
	assert.True(t, res.IsLast)

	res, err = l.Prev(t.Context(), pagelist.PrevOptions[int64, columnar.RecordFilter, string]{Before: l.LastCursor(), Filter: none, Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
	assert.True(t, res.IsFirst)
}

func TestSource_UnsupportedOrder(t *testing.T) {
	l := openList(t, events(3))

	_, err := l.Next(t.Context(), pagelist.NextOptions[int64, columnar.RecordFilter, string]{OrderBy: "name", Limit: 1})
	assert.ErrorIs(t, err, pagelist.ErrUnsupportedOrder)
}

func TestSource_NegativeCursor(t *testing.T) {
	l := openList(t, events(3))

	_, err := l.Next(t.Context(), pagelist.NextOptions[int64, columnar.RecordFilter, string]{After: -1, Limit: 1})
	assert.ErrorIs(t, err, pagelist.ErrInvalidCursor)
}

func TestSource_UnsortedFile(t *testing.T) {
	records := events(5)
	records[1], records[3] = records[3], records[1]
	l := openList(t, records)

	_, err := l.Next(t.Context(), pagelist.NextOptions[int64, columnar.RecordFilter, string]{Limit: 5})
	assert.ErrorIs(t, err, pagelist.ErrUnsorted)
}

func TestSource_EmptyFile(t *testing.T) {
	l := openList(t, nil)
	assert.Equal(t, int64(0), l.LastCursor())

	res, err := l.Next(t.Context(), pagelist.NextOptions[int64, columnar.RecordFilter, string]{Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
	assert.True(t, res.IsFirst)
	assert.True(t, res.IsLast)
}

func TestSource_CanceledContext(t *testing.T) {
	l := openList(t, events(10))
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := l.Next(ctx, pagelist.NextOptions[int64, columnar.RecordFilter, string]{Limit: 5})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSource_MergesFiles(t *testing.T) {
	var odd, even []columnar.Record
	for _, rec := range events(20) {
		if rec["id"].(int64)%2 == 0 {
			even = append(even, rec)
		} else {
			odd = append(odd, rec)
		}
	}
	merged := pagelist.Merge(openList(t, odd), openList(t, even, columnar.WithRowGroupSize(3)))

	var got []int64
	for e, err := range merged.All(t.Context(), pagelist.Next, pagelist.Query[pagelist.MergeCursor[int64], columnar.RecordFilter, string]{
		Cursor: merged.FirstCursor(),
		Limit:  3,
	}) {
		require.NoError(t, err)
		got = append(got, e.Item["id"].(int64))
	}
	assert.Equal(t, idRange(1, 20), got)
}

// -----------------------------------------------------------------------------
// Open and WriteFile errors
// -----------------------------------------------------------------------------

func TestOpen_Errors(t *testing.T) {
	fixture := writeFixture(t, events(3))

	tests := []struct {
		name    string
		data    *bytes.Reader
		schema  columnar.Schema
		sortCol string
		want    error
	}{
		{"garbage", bytes.NewReader([]byte("not a parquet file at all")), eventSchema, "id", columnar.ErrInvalidFormat},
		{"empty", bytes.NewReader(nil), eventSchema, "id", columnar.ErrInvalidFormat},
		{"unknown sort column", fixture, eventSchema, "nope", columnar.ErrSchemaViolation},
		{"missing column", fixture, columnar.Schema{Fields: []columnar.Field{{Name: "id", Type: columnar.Int64}, {Name: "other", Type: columnar.Bool}}}, "id", columnar.ErrSchemaViolation},
		{"invalid schema", fixture, columnar.Schema{}, "id", columnar.ErrSchemaViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := columnar.Open(tt.data, tt.data.Size(), tt.schema, tt.sortCol)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOpen_SchemaSubset(t *testing.T) {
	r := writeFixture(t, events(3))
	subset := columnar.Schema{Fields: []columnar.Field{{Name: "id", Type: columnar.Int64}}}
	l, err := columnar.OpenList(r, r.Size(), subset, "id")
	require.NoError(t, err)

	res, err := l.Next(t.Context(), pagelist.NextOptions[int64, columnar.RecordFilter, string]{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, columnar.Record{"id": int64(1)}, res.Entries[0].Item)
}

func TestWriteFile_SchemaViolations(t *testing.T) {
	valid := func() columnar.Record {
		return columnar.Record{"id": int64(1), "name": "a", "at": epoch}
	}

	tests := []struct {
		name   string
		schema columnar.Schema
		record columnar.Record
	}{
		{"missing required", eventSchema, columnar.Record{"id": int64(1), "at": epoch}},
		{"wrong type", eventSchema, columnar.Record{"id": "one", "name": "a", "at": epoch}},
		{"unknown field", eventSchema, func() columnar.Record { r := valid(); r["extra"] = 1; return r }()},
		{"bad timestamp", eventSchema, columnar.Record{"id": int64(1), "name": "a", "at": "yesterday"}},
		{"int32 overflow", columnar.Schema{Fields: []columnar.Field{{Name: "n", Type: columnar.Int32}}}, columnar.Record{"n": int64(1) << 40}},
		{"duplicate field", columnar.Schema{Fields: []columnar.Field{{Name: "n", Type: columnar.Int32}, {Name: "n", Type: columnar.Int64}}}, columnar.Record{"n": 1}},
		{"invalid type", columnar.Schema{Fields: []columnar.Field{{Name: "n", Type: columnar.Type(42)}}}, columnar.Record{"n": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := columnar.WriteFile(&buf, tt.schema, []columnar.Record{tt.record})
			assert.ErrorIs(t, err, columnar.ErrSchemaViolation)
		})
	}
}

func TestWriteFile_Compression(t *testing.T) {
	for _, c := range []columnar.Compression{columnar.CompressionNone, columnar.CompressionSnappy, columnar.CompressionGzip, columnar.CompressionZstd} {
		l := openList(t, events(30), columnar.WithCompression(c))
		assert.Equal(t, idRange(1, 30), walk(t, l, pagelist.Next, rowQuery{Limit: 8}))
	}
}

func TestType_String(t *testing.T) {
	assert.Equal(t, "timestamp", columnar.Timestamp.String())
	assert.Equal(t, "Type(42)", columnar.Type(42).String())
}

func TestParseSchema(t *testing.T) {
	schema, err := columnar.ParseSchema("id:int64, name:string,score:float64?,at:timestamp")
	require.NoError(t, err)
	assert.Equal(t, eventSchema, schema)

	for _, bad := range []string{"", "id", "id:int128", "id:int64,id:string"} {
		_, err := columnar.ParseSchema(bad)
		assert.ErrorIs(t, err, columnar.ErrSchemaViolation, bad)
	}
}
