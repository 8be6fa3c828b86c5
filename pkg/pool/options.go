package pool

import "go.uber.org/zap"

type options struct {
	name          string
	initialChunks int
	maxChunks     int
	logger        *zap.Logger
}

func defaultOptions() options {
	return options{
		name:   "pool",
		logger: zap.NewNop(),
	}
}

// Option configures a Pool at construction.
type Option func(*options)

// WithName labels the pool in logs, errors and metrics.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithInitialChunks allocates n chunks up front instead of on first use.
func WithInitialChunks(n int) Option {
	return func(o *options) {
		o.initialChunks = n
	}
}

// WithMaxChunks bounds growth to n chunks; Allocate reports out_of_memory
// once the limit is reached. Zero means unbounded.
func WithMaxChunks(n int) Option {
	return func(o *options) {
		o.maxChunks = n
	}
}

// WithLogger sets the logger used for growth, clear and failed releases.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
