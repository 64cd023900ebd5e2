// Package s3 provides a pagelist source over the object keys of an
// S3-compatible bucket.
//
// # Ordering
//
// S3 lists keys in ascending UTF-8 byte order and can only list forward.
// The source therefore supports a single order, ByKey. Next is one
// ListObjectsV2 call starting after the cursor key. Prev scans forward from
// the start of the prefix and keeps the last Limit keys before the cursor,
// so its cost grows with the cursor's distance from the start.
//
// # Consistency
//
// Each fetch sees the bucket as of its own list calls. Keys written or
// deleted between two fetches of a traversal may be seen or missed, as with
// any pagelist source.
package s3

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	internals3 "github.com/justapithecus/pagelist/internal/s3"
	"github.com/justapithecus/pagelist/pagelist"
)

// maxKeysPerList is the S3 cap on keys per ListObjectsV2 response.
const maxKeysPerList = 1000

// ErrBucketNotFound indicates that the configured bucket does not exist.
var ErrBucketNotFound = errors.New("s3: bucket not found")

// API is the subset of the S3 client used by Source.
type API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Object is one listed object. Key is relative to the configured prefix.
type Object struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// Cursor is a position between two keys. A zero Cursor is before every key;
// End is after every key. Otherwise the cursor lies at Key, which it
// excludes in both directions.
type Cursor struct {
	Key string `json:"key,omitempty"`
	End bool   `json:"end,omitempty"`
}

// Filter narrows a listing to keys that start with Prefix, relative to the
// configured prefix.
type Filter struct {
	Prefix string `json:"prefix,omitempty"`
}

// OrderBy selects the listing order.
type OrderBy int

// ByKey orders objects by key, the only order S3 lists in.
const ByKey OrderBy = 0

func (o OrderBy) String() string {
	if o == ByKey {
		return "key"
	}
	return fmt.Sprintf("OrderBy(%d)", int(o))
}

// Config holds configuration for the source.
type Config struct {
	// Bucket is the S3 bucket name. Required.
	Bucket string

	// Prefix is an optional key prefix for all listings. A trailing slash
	// is added if missing.
	Prefix string

	// ScanPageSize is the MaxKeys of the forward scans behind Prev.
	// Default: 1000.
	ScanPageSize int
}

// Source implements pagelist.Source over the keys of one bucket.
type Source struct {
	client   API
	bucket   string
	prefix   string
	scanSize int
}

// New creates a source with the given client and configuration.
//
// The client must be pre-configured with credentials, region and endpoint.
func New(client API, cfg Config) (*Source, error) {
	if client == nil {
		return nil, errors.New("s3: client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}

	prefix := cfg.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	scanSize := cfg.ScanPageSize
	if scanSize <= 0 || scanSize > maxKeysPerList {
		scanSize = maxKeysPerList
	}

	return &Source{
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   prefix,
		scanSize: scanSize,
	}, nil
}

// NewList creates a source and wraps it in a pagelist.List.
func NewList(client API, cfg Config, opts ...pagelist.Option) (*pagelist.List[Object, Cursor, Filter, OrderBy], error) {
	src, err := New(client, cfg)
	if err != nil {
		return nil, err
	}
	return pagelist.New[Object, Cursor, Filter, OrderBy](src, opts...), nil
}

func (s *Source) FirstCursor() Cursor { return Cursor{} }

func (s *Source) LastCursor() Cursor { return Cursor{End: true} }

func (s *Source) Compare(_ OrderBy, a, b Object) int {
	return strings.Compare(a.Key, b.Key)
}

func (s *Source) Fetch(ctx context.Context, dir pagelist.Direction, q pagelist.Query[Cursor, Filter, OrderBy]) (pagelist.Result[Object, Cursor], error) {
	if q.OrderBy != ByKey {
		return pagelist.Result[Object, Cursor]{}, fmt.Errorf("s3: %w: %s", pagelist.ErrUnsupportedOrder, q.OrderBy)
	}
	if dir == pagelist.Next {
		return s.next(ctx, q)
	}
	return s.prev(ctx, q)
}

// next lists up to q.Limit keys after the cursor in one call.
func (s *Source) next(ctx context.Context, q pagelist.Query[Cursor, Filter, OrderBy]) (pagelist.Result[Object, Cursor], error) {
	res := pagelist.Result[Object, Cursor]{
		Entries: []pagelist.Entry[Object, Cursor]{},
		// A cursor sorting before the filter prefix skips no filtered key.
		IsFirst: q.Cursor == Cursor{} || (!q.Cursor.End && q.Cursor.Key < q.Filter.Prefix),
	}
	if q.Cursor.End {
		res.IsLast = true
		res.Cursor = q.Cursor
		return res, nil
	}

	in := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.prefix + q.Filter.Prefix),
		MaxKeys: aws.Int32(int32(min(max(q.Limit, 1), maxKeysPerList))),
	}
	if q.Cursor.Key != "" {
		in.StartAfter = aws.String(s.prefix + q.Cursor.Key)
	}
	out, err := s.client.ListObjectsV2(ctx, in)
	if err != nil {
		return pagelist.Result[Object, Cursor]{}, s.listError(err)
	}

	for _, obj := range out.Contents {
		o := s.object(obj)
		res.Entries = append(res.Entries, pagelist.Entry[Object, Cursor]{Item: o, Cursor: Cursor{Key: o.Key}})
	}
	res.IsLast = !aws.ToBool(out.IsTruncated)

	switch {
	case len(res.Entries) > 0:
		res.Cursor = res.Entries[len(res.Entries)-1].Cursor
	case res.IsLast:
		res.Cursor = s.LastCursor()
	default:
		res.Cursor = q.Cursor
	}
	return res, nil
}

// prev scans forward from the start of the prefix and keeps the last
// q.Limit keys before the cursor.
func (s *Source) prev(ctx context.Context, q pagelist.Query[Cursor, Filter, OrderBy]) (pagelist.Result[Object, Cursor], error) {
	limit := max(q.Limit, 1)
	window := make([]Object, 0, limit)
	dropped := false
	reachedCursor := false

	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.prefix + q.Filter.Prefix),
		MaxKeys: aws.Int32(int32(s.scanSize)),
	})
scan:
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return pagelist.Result[Object, Cursor]{}, s.listError(err)
		}
		for _, obj := range out.Contents {
			o := s.object(obj)
			if !q.Cursor.End && o.Key >= q.Cursor.Key {
				reachedCursor = true
				break scan
			}
			if len(window) == limit {
				window = append(window[:0], window[1:]...)
				dropped = true
			}
			window = append(window, o)
		}
	}

	res := pagelist.Result[Object, Cursor]{
		Entries: make([]pagelist.Entry[Object, Cursor], len(window)),
		IsFirst: !dropped,
		IsLast:  !reachedCursor,
		Cursor:  s.FirstCursor(),
	}
	for i, o := range window {
		res.Entries[i] = pagelist.Entry[Object, Cursor]{Item: o, Cursor: Cursor{Key: o.Key}}
	}
	if len(res.Entries) > 0 {
		res.Cursor = res.Entries[0].Cursor
	}
	return res, nil
}

func (s *Source) object(obj types.Object) Object {
	return Object{
		Key:          strings.TrimPrefix(aws.ToString(obj.Key), s.prefix),
		Size:         aws.ToInt64(obj.Size),
		LastModified: aws.ToTime(obj.LastModified),
	}
}

func (s *Source) listError(err error) error {
	if internals3.IsNotFound(err) {
		return fmt.Errorf("%w: %s", ErrBucketNotFound, s.bucket)
	}
	return fmt.Errorf("s3: list objects: %w", err)
}

var _ pagelist.Source[Object, Cursor, Filter, OrderBy] = (*Source)(nil)
