package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	internals3 "github.com/justapithecus/pagelist/internal/s3"
	"github.com/justapithecus/pagelist/pagelist"
)

// envPrefix prefixes the environment variables bound to flags, as in
// PAGECTL_BUCKET or PAGECTL_PATH_STYLE.
const envPrefix = "PAGECTL"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type app struct {
	v   *viper.Viper
	out io.Writer

	// logger is built from --log-level unless set before Execute.
	logger *zap.Logger

	newClient func(ctx context.Context, cfg internals3.ClientConfig) (internals3.API, error)
}

func newApp(out io.Writer) *app {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	return &app{
		v:   v,
		out: out,
		newClient: func(ctx context.Context, cfg internals3.ClientConfig) (internals3.API, error) {
			return internals3.NewClient(ctx, cfg)
		},
	}
}

func (a *app) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "pagectl",
		Short:        "Page through S3 listings and sorted Parquet objects",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	pf := cmd.PersistentFlags()
	pf.String("config", "", "config file (yaml, json or toml) with flag values")
	pf.String("region", "us-east-1", "AWS region")
	pf.String("endpoint", "", "custom S3 endpoint URL (MinIO, LocalStack, R2)")
	pf.Bool("path-style", false, "use path-style addressing")
	pf.Int("max-attempts", 0, "maximum S3 request attempts (0 keeps the SDK default)")
	pf.String("access-key-id", "", "static access key id (default credential chain when empty)")
	pf.String("secret-access-key", "", "static secret access key")
	pf.String("log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringP("output", "o", "text", "output format (text, json)")

	cmd.AddCommand(a.listCmd(), a.rowsCmd())
	return cmd
}

// init binds the flags of the executing command, reads the optional config
// file and builds the logger.
func (a *app) init(cmd *cobra.Command) error {
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if path := a.v.GetString("config"); path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}

	switch a.v.GetString("output") {
	case "text", "json":
	default:
		return fmt.Errorf("unknown output format %q", a.v.GetString("output"))
	}

	if a.logger != nil {
		return nil
	}
	level, err := zapcore.ParseLevel(a.v.GetString("log-level"))
	if err != nil {
		return err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = "console"
	cfg.OutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	a.logger, err = cfg.Build()
	return err
}

func (a *app) client(ctx context.Context) (internals3.API, error) {
	return a.newClient(ctx, internals3.ClientConfig{
		Region:       a.v.GetString("region"),
		Endpoint:     a.v.GetString("endpoint"),
		UsePathStyle: a.v.GetBool("path-style"),
		MaxAttempts:  a.v.GetInt("max-attempts"),
		Credentials:  internals3.StaticCredentials(a.v.GetString("access-key-id"), a.v.GetString("secret-access-key")),
	})
}

func (a *app) listOptions() []pagelist.Option {
	return []pagelist.Option{pagelist.WithLogger(a.logger)}
}

// -----------------------------------------------------------------------------
// Paging flags
// -----------------------------------------------------------------------------

func addPageFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("limit", 100, "page size")
	f.String("precision", pagelist.Exact.String(), "limit precision (exact, at-least, at-most, approximate)")
	f.String("after", "", "token to continue forward from")
	f.String("before", "", "token to continue backward from")
	f.Bool("reverse", false, "page backward from the end when no token is given")
	cmd.MarkFlagsMutuallyExclusive("after", "before")
}

// pageArgs are the paging flags of one invocation.
type pageArgs[C any] struct {
	dir       pagelist.Direction
	cursor    C
	limit     int
	precision pagelist.Precision
}

// parsePageArgs decodes the paging flags. Without a token the page starts at
// first, or at last with --reverse.
func parsePageArgs[C any](v *viper.Viper, first, last C) (pageArgs[C], error) {
	args := pageArgs[C]{dir: pagelist.Next, cursor: first, limit: v.GetInt("limit")}
	if args.limit <= 0 {
		return args, fmt.Errorf("--limit must be positive, got %d", args.limit)
	}

	var err error
	if args.precision, err = pagelist.ParsePrecision(v.GetString("precision")); err != nil {
		return args, err
	}

	after, before := v.GetString("after"), v.GetString("before")
	switch {
	case after != "" && before != "":
		return args, errors.New("--after and --before are mutually exclusive")
	case after != "":
		args.cursor, err = pagelist.DecodeCursor[C](after)
	case before != "":
		args.dir = pagelist.Prev
		args.cursor, err = pagelist.DecodeCursor[C](before)
	case v.GetBool("reverse"):
		args.dir = pagelist.Prev
		args.cursor = last
	}
	return args, err
}

// -----------------------------------------------------------------------------
// Output
// -----------------------------------------------------------------------------

type pageOutput struct {
	Items     any    `json:"items"`
	Direction string `json:"direction"`
	IsFirst   bool   `json:"is_first"`
	IsLast    bool   `json:"is_last"`
	Token     string `json:"token"`
}

// printPage writes the page in the configured format. Text output prints
// each item with line and then a trailer with the boundaries and token.
func printPage[I, C any](a *app, dir pagelist.Direction, res pagelist.Result[I, C], line func(I) (string, error)) error {
	token, err := pagelist.EncodeCursor(res.Cursor)
	if err != nil {
		return err
	}

	if a.v.GetString("output") == "json" {
		return json.NewEncoder(a.out).Encode(pageOutput{
			Items:     res.Items(),
			Direction: dir.String(),
			IsFirst:   res.IsFirst,
			IsLast:    res.IsLast,
			Token:     token,
		})
	}

	for _, item := range res.Items() {
		s, err := line(item)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(a.out, s); err != nil {
			return err
		}
	}
	flag := "after"
	if dir == pagelist.Prev {
		flag = "before"
	}
	_, err = fmt.Fprintf(a.out, "# first=%t last=%t --%s %s\n", res.IsFirst, res.IsLast, flag, token)
	return err
}
