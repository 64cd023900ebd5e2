package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/justapithecus/pagelist/pagelist"
	pls3 "github.com/justapithecus/pagelist/pagelist/s3"
)

func (a *app) listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print one page of object keys",
		Long: `Print one page of object keys under a bucket prefix, followed by a token
that continues the listing with --after (forward) or --before (backward).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runList(cmd.Context())
		},
	}
	f := cmd.Flags()
	f.String("bucket", "", "bucket to list (required)")
	f.String("prefix", "", "key prefix; printed keys are relative to it")
	f.String("filter", "", "only keys starting with this, relative to --prefix")
	f.Int("scan-page-size", 0, "MaxKeys of the forward scans behind backward pages (default 1000)")
	addPageFlags(cmd)
	return cmd
}

func (a *app) runList(ctx context.Context) error {
	bucket := a.v.GetString("bucket")
	if bucket == "" {
		return errors.New("--bucket is required")
	}

	client, err := a.client(ctx)
	if err != nil {
		return err
	}
	l, err := pls3.NewList(client, pls3.Config{
		Bucket:       bucket,
		Prefix:       a.v.GetString("prefix"),
		ScanPageSize: a.v.GetInt("scan-page-size"),
	}, a.listOptions()...)
	if err != nil {
		return err
	}

	args, err := parsePageArgs(a.v, l.FirstCursor(), l.LastCursor())
	if err != nil {
		return err
	}
	res, err := l.NextOrPrev(ctx, args.dir, pagelist.Query[pls3.Cursor, pls3.Filter, pls3.OrderBy]{
		Cursor:    args.cursor,
		Filter:    pls3.Filter{Prefix: a.v.GetString("filter")},
		OrderBy:   pls3.ByKey,
		Limit:     args.limit,
		Precision: args.precision,
	})
	if err != nil {
		return err
	}

	return printPage(a, args.dir, res, func(o pls3.Object) (string, error) {
		return fmt.Sprintf("%s\t%d\t%s", o.Key, o.Size, o.LastModified.UTC().Format(time.RFC3339)), nil
	})
}
