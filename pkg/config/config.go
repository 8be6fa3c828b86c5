package config

import (
	"github.com/ajitpratap0/chunkpool/pkg/errors"
)

// DefaultChunkSize is the number of slots per chunk used when none is configured.
const DefaultChunkSize = 64

// Config is the top-level configuration document.
type Config struct {
	// Pool geometry
	Pool PoolConfig `yaml:"pool" json:"pool"`

	// Bench workload driven by the CLI
	Bench BenchConfig `yaml:"bench" json:"bench"`

	// Logging output
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Tracing export
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
}

// PoolConfig describes how a pool grows.
// Smaller chunk sizes grow more often but waste less memory per growth step;
// larger ones amortize growth at the expense of over-allocation.
type PoolConfig struct {
	// Name labels the pool in logs and metrics
	Name string `yaml:"name" json:"name"`
	// ChunkSize is the fixed number of slots per chunk
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`
	// InitialChunks are allocated eagerly at construction (0 = lazy)
	InitialChunks int `yaml:"initial_chunks" json:"initial_chunks"`
	// MaxChunks bounds growth (0 = unbounded)
	MaxChunks int `yaml:"max_chunks" json:"max_chunks"`
}

// BenchConfig describes the allocate/release churn workload.
type BenchConfig struct {
	// Objects allocated per round
	Objects int `yaml:"objects" json:"objects"`
	// Rounds of allocate, traverse and release
	Rounds int `yaml:"rounds" json:"rounds"`
	// ReleaseRatio is the fraction of live objects released each round (0.0-1.0)
	ReleaseRatio float64 `yaml:"release_ratio" json:"release_ratio"`
	// TagEvery tags every n-th allocation (0 = never)
	TagEvery int `yaml:"tag_every" json:"tag_every"`
	// Seed for the release selection
	Seed int64 `yaml:"seed" json:"seed"`
	// Workers run independent pools concurrently, one goroutine each
	Workers int `yaml:"workers" json:"workers"`
}

// LoggingConfig mirrors logger.Config in YAML form.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level"`
	Encoding    string `yaml:"encoding" json:"encoding"`
	Development bool   `yaml:"development" json:"development"`
}

// TracingConfig controls span export for bench runs.
type TracingConfig struct {
	// Enabled turns on the stdout span exporter
	Enabled bool `yaml:"enabled" json:"enabled"`
	// ServiceName reported as a resource attribute
	ServiceName string `yaml:"service_name" json:"service_name"`
	// SampleRate controls trace sampling (0.0-1.0)
	SampleRate float64 `yaml:"sample_rate" json:"sample_rate"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Pool: PoolConfig{
			Name:      "default",
			ChunkSize: DefaultChunkSize,
		},
		Bench: BenchConfig{
			Objects:      10000,
			Rounds:       5,
			ReleaseRatio: 0.3,
			TagEvery:     100,
			Seed:         1,
			Workers:      1,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "console",
		},
		Tracing: TracingConfig{
			ServiceName: "chunkpool",
			SampleRate:  1.0,
		},
	}
}

// Validate checks the pool geometry.
func (c *PoolConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return errors.New(errors.ErrorTypeInvalidParam, "chunk_size must be positive").
			WithDetail("chunk_size", c.ChunkSize)
	}
	if c.InitialChunks < 0 {
		return errors.New(errors.ErrorTypeInvalidParam, "initial_chunks must not be negative").
			WithDetail("initial_chunks", c.InitialChunks)
	}
	if c.MaxChunks < 0 {
		return errors.New(errors.ErrorTypeInvalidParam, "max_chunks must not be negative").
			WithDetail("max_chunks", c.MaxChunks)
	}
	if c.MaxChunks > 0 && c.InitialChunks > c.MaxChunks {
		return errors.New(errors.ErrorTypeInvalidParam, "initial_chunks exceeds max_chunks").
			WithDetail("initial_chunks", c.InitialChunks).
			WithDetail("max_chunks", c.MaxChunks)
	}
	return nil
}

// Validate checks the bench workload.
func (c *BenchConfig) Validate() error {
	if c.Objects <= 0 {
		return errors.New(errors.ErrorTypeConfig, "bench.objects must be positive").
			WithDetail("objects", c.Objects)
	}
	if c.Rounds <= 0 {
		return errors.New(errors.ErrorTypeConfig, "bench.rounds must be positive").
			WithDetail("rounds", c.Rounds)
	}
	if c.ReleaseRatio < 0 || c.ReleaseRatio > 1 {
		return errors.New(errors.ErrorTypeConfig, "bench.release_ratio must be within [0, 1]").
			WithDetail("release_ratio", c.ReleaseRatio)
	}
	if c.Workers <= 0 {
		return errors.New(errors.ErrorTypeConfig, "bench.workers must be positive").
			WithDetail("workers", c.Workers)
	}
	if c.TagEvery < 0 {
		return errors.New(errors.ErrorTypeConfig, "bench.tag_every must not be negative").
			WithDetail("tag_every", c.TagEvery)
	}
	return nil
}

// Validate checks every section of the configuration.
func (c *Config) Validate() error {
	if err := c.Pool.Validate(); err != nil {
		return err
	}
	if err := c.Bench.Validate(); err != nil {
		return err
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return errors.New(errors.ErrorTypeConfig, "tracing.sample_rate must be within [0, 1]").
			WithDetail("sample_rate", c.Tracing.SampleRate)
	}
	return nil
}
