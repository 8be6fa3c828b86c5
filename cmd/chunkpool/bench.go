package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/chunkpool/internal/bench"
	"github.com/ajitpratap0/chunkpool/pkg/config"
	"github.com/ajitpratap0/chunkpool/pkg/logger"
	"github.com/ajitpratap0/chunkpool/pkg/observability"
)

type benchFlags struct {
	json       bool
	jsonLines  bool
	metrics    bool
	cpuProfile string
	memProfile string
}

func newBenchCmd(v *viper.Viper) *cobra.Command {
	var flags benchFlags

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run an allocate/traverse/release workload",
		Long: `Run rounds of allocation, tag lookup, cursor-driven release and ForEach
verification against one pool per worker, then clear every pool.

Example:
  chunkpool bench --chunk-size 128 --objects 50000 --rounds 10 --release-ratio 0.4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return runBench(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, flags)
		},
	}

	f := cmd.Flags()
	f.Int("chunk-size", config.DefaultChunkSize, "Slots per chunk")
	f.Int("max-chunks", 0, "Maximum chunks per pool (0 = unbounded)")
	f.Int("objects", 10000, "Objects allocated per round")
	f.Int("rounds", 5, "Number of rounds")
	f.Float64("release-ratio", 0.3, "Fraction of live objects released each round")
	f.Int("tag-every", 100, "Tag every n-th allocation (0 = never)")
	f.Int64("seed", 1, "Seed for release selection")
	f.Int("workers", 1, "Independent pools run concurrently")
	f.Bool("trace", false, "Export phase spans to stderr")
	for flag, key := range map[string]string{
		"chunk-size":    "pool.chunk_size",
		"max-chunks":    "pool.max_chunks",
		"objects":       "bench.objects",
		"rounds":        "bench.rounds",
		"release-ratio": "bench.release_ratio",
		"tag-every":     "bench.tag_every",
		"seed":          "bench.seed",
		"workers":       "bench.workers",
		"trace":         "tracing.enabled",
	} {
		_ = v.BindPFlag(key, f.Lookup(flag))
	}

	f.BoolVar(&flags.json, "json", false, "Print the report as JSON")
	f.BoolVar(&flags.jsonLines, "jsonl", false, "Print one JSON line per round")
	f.BoolVar(&flags.metrics, "metrics", true, "Print gathered Prometheus metrics after a text report")
	f.StringVar(&flags.cpuProfile, "cpuprofile", "", "Write CPU profile to file")
	f.StringVar(&flags.memProfile, "memprofile", "", "Write heap profile to file after the run")

	return cmd
}

func runBench(ctx context.Context, out, errOut io.Writer, cfg *config.Config, flags benchFlags) error {
	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Encoding:    cfg.Logging.Encoding,
		Development: cfg.Logging.Development,
	}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.With(zap.String("component", "chunkpool-cli"))

	if cfg.Tracing.Enabled {
		shutdown, err := observability.InitTracing(observability.TracingConfig{
			ServiceName:    cfg.Tracing.ServiceName,
			ServiceVersion: version,
			SamplingRate:   cfg.Tracing.SampleRate,
			Writer:         errOut,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warn("tracer shutdown failed", zap.Error(err))
			}
		}()
	}

	if flags.cpuProfile != "" {
		f, err := os.Create(flags.cpuProfile)
		if err != nil {
			return fmt.Errorf("failed to create CPU profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	runner, err := bench.NewRunner(cfg, log)
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	if err := runner.Register(reg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	rep, runErr := runner.Run(ctx)

	if flags.memProfile != "" {
		if err := writeHeapProfile(flags.memProfile); err != nil {
			log.Warn("heap profile failed", zap.Error(err))
		}
	}

	switch {
	case flags.json:
		if err := rep.WriteJSON(out); err != nil {
			return err
		}
		return runErr
	case flags.jsonLines:
		if err := rep.WriteJSONLines(out); err != nil {
			return err
		}
		return runErr
	}

	if err := rep.WriteText(out); err != nil {
		return err
	}
	if flags.metrics {
		if err := writeMetrics(out, reg); err != nil {
			return err
		}
	}
	return runErr
}

func writeMetrics(out io.Writer, g prometheus.Gatherer) error {
	mfs, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	if _, err := fmt.Fprintln(out); err != nil {
		return err
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
			return err
		}
	}
	return nil
}

func writeHeapProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	runtime.GC()
	return pprof.WriteHeapProfile(f)
}
