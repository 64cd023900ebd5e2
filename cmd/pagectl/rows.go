package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/justapithecus/pagelist/pagelist"
	"github.com/justapithecus/pagelist/pagelist/columnar"
)

func (a *app) rowsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rows",
		Short: "Print one page of rows of a sorted Parquet object",
		Long: `Print one page of rows of a Parquet object whose rows are sorted by
--sort-column. Rows are printed as JSON objects, one per line.

The schema lists the columns to decode as name:type pairs, for example
"id:int64,name:string,score:float64?". A trailing "?" marks a nullable
column.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runRows(cmd.Context())
		},
	}
	f := cmd.Flags()
	f.String("bucket", "", "bucket holding the object (required)")
	f.String("key", "", "object key (required)")
	f.String("schema", "", "columns to decode (required)")
	f.String("sort-column", "", "column the rows are sorted by (required)")
	f.StringSlice("where", nil, "only rows where column=value, compared as text (repeatable)")
	addPageFlags(cmd)
	return cmd
}

func (a *app) runRows(ctx context.Context) error {
	bucket, key := a.v.GetString("bucket"), a.v.GetString("key")
	sortColumn := a.v.GetString("sort-column")
	if bucket == "" || key == "" || sortColumn == "" {
		return errors.New("--bucket, --key and --sort-column are required")
	}
	schema, err := columnar.ParseSchema(a.v.GetString("schema"))
	if err != nil {
		return err
	}
	filter, err := whereFilter(a.v.GetStringSlice("where"), schema)
	if err != nil {
		return err
	}

	client, err := a.client(ctx)
	if err != nil {
		return err
	}
	src, err := columnar.OpenObject(ctx, client, bucket, key, schema, sortColumn)
	if err != nil {
		return err
	}
	a.logger.Debug("opened parquet object",
		zap.String("key", key),
		zap.Int64("rows", src.NumRows()),
	)
	l := pagelist.New[columnar.Record, int64, columnar.RecordFilter, string](src, a.listOptions()...)

	args, err := parsePageArgs(a.v, l.FirstCursor(), l.LastCursor())
	if err != nil {
		return err
	}
	res, err := l.NextOrPrev(ctx, args.dir, pagelist.Query[int64, columnar.RecordFilter, string]{
		Cursor:    args.cursor,
		Filter:    filter,
		OrderBy:   sortColumn,
		Limit:     args.limit,
		Precision: args.precision,
	})
	if err != nil {
		return err
	}

	return printPage(a, args.dir, res, func(r columnar.Record) (string, error) {
		return json.MarshalToString(r)
	})
}

// whereFilter builds a filter requiring every column=value condition. Values
// are compared with the text form of the decoded column value.
func whereFilter(conditions []string, schema columnar.Schema) (columnar.RecordFilter, error) {
	if len(conditions) == 0 {
		return nil, nil
	}
	want := make(map[string]string, len(conditions))
	for _, c := range conditions {
		column, value, ok := strings.Cut(c, "=")
		if !ok {
			return nil, fmt.Errorf("--where %q is not column=value", c)
		}
		if _, ok := schema.Field(column); !ok {
			return nil, fmt.Errorf("--where column %q is not in the schema", column)
		}
		want[column] = value
	}
	return func(r columnar.Record) bool {
		for column, value := range want {
			if r[column] == nil || fmt.Sprint(r[column]) != value {
				return false
			}
		}
		return true
	}, nil
}
