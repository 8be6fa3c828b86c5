package bench

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/chunkpool/pkg/config"
	"github.com/ajitpratap0/chunkpool/pkg/errors"
	"github.com/ajitpratap0/chunkpool/pkg/logger"
	"github.com/ajitpratap0/chunkpool/pkg/metrics"
	"github.com/ajitpratap0/chunkpool/pkg/pool"
)

// Runner executes the bench workload on one pool per configured worker.
// Workers never share a pool.
type Runner struct {
	cfg     *config.Config
	runID   string
	base    *zap.Logger
	logger  *zap.Logger
	phases  *prometheus.HistogramVec
	workers []*worker
	monitor *ResourceMonitor
}

// NewRunner validates cfg and builds the worker pools. A nil logger
// disables logging.
func NewRunner(cfg *config.Config, log *zap.Logger) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeInvalidParam, "config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	r := &Runner{
		cfg:    cfg,
		runID:  uuid.NewString(),
		base:   log,
		phases: metrics.NewPhaseHistogram(),
	}
	ctx := r.context(context.Background())
	r.logger = logger.WithContext(ctx)

	for i := 0; i < cfg.Bench.Workers; i++ {
		name := cfg.Pool.Name
		if cfg.Bench.Workers > 1 {
			name = fmt.Sprintf("%s-%d", cfg.Pool.Name, i)
		}
		w, err := newWorker(ctx, i, cfg, name, r.phases)
		if err != nil {
			return nil, err
		}
		r.workers = append(r.workers, w)
	}

	monitor, err := NewResourceMonitor()
	if err != nil {
		r.logger.Warn("resource sampling disabled", zap.Error(err))
	} else {
		r.monitor = monitor
	}
	return r, nil
}

// context attaches the runner's logger and run ID to ctx for
// logger.WithContext.
func (r *Runner) context(ctx context.Context) context.Context {
	ctx = logger.NewContext(ctx, r.base)
	return context.WithValue(ctx, logger.RunIDKey, r.runID)
}

// RunID identifies this run in logs and reports.
func (r *Runner) RunID() string {
	return r.runID
}

// Pools returns the worker pools. They must not be used while Run is in
// progress.
func (r *Runner) Pools() []*pool.Pool[Object] {
	out := make([]*pool.Pool[Object], len(r.workers))
	for i, w := range r.workers {
		out[i] = w.pool
	}
	return out
}

// Register adds a PoolCollector per pool and the phase histogram to reg.
// Gather only after Run has returned.
func (r *Runner) Register(reg prometheus.Registerer) error {
	for _, w := range r.workers {
		if err := reg.Register(metrics.NewPoolCollector(w.pool.Name(), w.pool)); err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "failed to register pool collector").
				WithDetail("pool", w.pool.Name())
		}
	}
	if err := reg.Register(r.phases); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to register phase histogram")
	}
	return nil
}

// Run executes every worker concurrently and returns the report. The report
// is returned even on error and holds whatever completed. A failed
// invariant check is reported as an internal error.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	ctx = r.context(ctx)
	log := logger.WithContext(ctx)

	rep := &Report{
		RunID:     r.runID,
		StartedAt: time.Now(),
		Pool:      r.cfg.Pool,
		Bench:     r.cfg.Bench,
		Workers:   make([]*WorkerReport, len(r.workers)),
	}
	rep.Before = r.sample()

	log.Info("bench started",
		zap.Int("workers", len(r.workers)),
		zap.Int("chunk_size", r.cfg.Pool.ChunkSize),
		zap.Int("objects", r.cfg.Bench.Objects),
		zap.Int("rounds", r.cfg.Bench.Rounds),
		zap.Float64("release_ratio", r.cfg.Bench.ReleaseRatio))

	g, gctx := errgroup.WithContext(ctx)
	for i, w := range r.workers {
		g.Go(func() error {
			wr, err := w.run(gctx)
			rep.Workers[i] = wr
			return err
		})
	}
	err := g.Wait()

	rep.Duration = time.Since(rep.StartedAt)
	rep.After = r.sample()

	if err != nil {
		log.Error("bench failed", zap.Error(err), zap.Duration("duration", rep.Duration))
		return rep, err
	}
	if failed := rep.Failed(); len(failed) > 0 {
		return rep, errors.New(errors.ErrorTypeInternal, "invariant check failed").
			WithDetail("check", failed[0].Name).
			WithDetail("failed_checks", len(failed))
	}

	log.Info("bench completed",
		zap.Duration("duration", rep.Duration),
		zap.Uint64("operations", rep.Operations()))
	return rep, nil
}

func (r *Runner) sample() *ResourceUsage {
	if r.monitor == nil {
		return nil
	}
	usage, err := r.monitor.Usage()
	if err != nil {
		r.logger.Debug("resource sample failed", zap.Error(err))
		return nil
	}
	return usage
}
