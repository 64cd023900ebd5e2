package columnar

import (
	"context"

	internals3 "github.com/justapithecus/pagelist/internal/s3"
)

// OpenObject opens a source over a Parquet object stored in S3. Rows are
// read with ranged GetObject calls made with ctx, so ctx must outlive the
// source.
func OpenObject(ctx context.Context, client internals3.API, bucket, key string, schema Schema, sortColumn string) (*Source, error) {
	r, err := internals3.OpenReaderAt(ctx, client, bucket, key)
	if err != nil {
		return nil, err
	}
	return Open(r, r.Size(), schema, sortColumn)
}
