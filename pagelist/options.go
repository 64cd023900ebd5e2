package pagelist

import "go.uber.org/zap"

// Option configures a List.
type Option func(*config)

type config struct {
	logger *zap.Logger
}

func newConfig(opts []Option) *config {
	cfg := &config{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	return cfg
}

// WithLogger sets the logger used for fetch iterations (debug level) and
// assertion failures (error level). Default: zap.NewNop().
//
// Lists built by combinators inherit the logger of their upstream list.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}
