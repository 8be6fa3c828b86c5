package bench

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ajitpratap0/chunkpool/pkg/config"
	"github.com/ajitpratap0/chunkpool/pkg/errors"
	"github.com/ajitpratap0/chunkpool/pkg/logger"
	"github.com/ajitpratap0/chunkpool/pkg/metrics"
	"github.com/ajitpratap0/chunkpool/pkg/observability"
	"github.com/ajitpratap0/chunkpool/pkg/pool"
)

// Phase names, also used as the "phase" metric label.
const (
	PhaseAllocate = "allocate"
	PhaseLookup   = "lookup"
	PhaseRelease  = "release"
	PhaseVerify   = "verify"
	PhaseClear    = "clear"
)

// worker owns one pool for the whole run. Nothing else touches the pool
// until run returns.
type worker struct {
	id     int
	cfg    config.BenchConfig
	pool   *pool.Pool[Object]
	rng    *rand.Rand
	tracer *observability.PoolTracer
	phases *prometheus.HistogramVec
	logger *zap.Logger

	nextID uint64
	resets uint64
	checks map[string]*Check
}

// newWorker builds the worker's pool. ctx carries the run's logger; the
// pool adds its own name to what it logs.
func newWorker(ctx context.Context, id int, cfg *config.Config, name string, phases *prometheus.HistogramVec) (*worker, error) {
	pcfg := cfg.Pool
	pcfg.Name = name

	p, err := pool.NewFromConfig[Object](pcfg,
		pool.WithLogger(logger.WithContext(ctx).With(zap.Int("worker", id))))
	if err != nil {
		return nil, err
	}

	w := &worker{
		id:     id,
		cfg:    cfg.Bench,
		pool:   p,
		rng:    rand.New(rand.NewPCG(uint64(cfg.Bench.Seed), uint64(id))),
		tracer: observability.NewPoolTracer(name),
		phases: phases,
		logger: zap.NewNop(),
		checks: make(map[string]*Check),
	}
	p.SetReset(func(o *Object) {
		w.resets++
		o.Refs = 0
	})
	return w, nil
}

// check records one evaluation of a named invariant. Only the first
// failure's detail is kept.
func (w *worker) check(name string, ok bool, format string, args ...interface{}) {
	c, found := w.checks[name]
	if !found {
		c = &Check{Name: name}
		w.checks[name] = c
	}
	c.Runs++
	if ok {
		return
	}
	c.Failures++
	if c.Detail == "" {
		c.Detail = fmt.Sprintf(format, args...)
		w.logger.Warn("invariant check failed",
			zap.String("check", name),
			zap.String("detail", c.Detail))
	}
}

func (w *worker) checkBalance(phase string) {
	used, free, capacity := w.pool.UsedCount(), w.pool.FreeCount(), w.pool.Capacity()
	w.check("balance/"+phase, used+free == capacity,
		"used %d + free %d != capacity %d", used, free, capacity)
}

func (w *worker) phase(ctx context.Context, name string, n int, fn func() error) (time.Duration, error) {
	timer := metrics.NewTimer(name)
	err := w.tracer.TracePhase(ctx, name, n, func(context.Context) error {
		return fn()
	})
	elapsed := timer.Stop()
	w.phases.WithLabelValues(w.pool.Name(), timer.Name()).Observe(elapsed.Seconds())
	return elapsed, err
}

func (w *worker) run(ctx context.Context) (*WorkerReport, error) {
	ctx = context.WithValue(ctx, logger.PoolKey, w.pool.Name())
	w.logger = logger.WithContext(ctx).With(zap.Int("worker", w.id))

	rep := &WorkerReport{Pool: w.pool.Name()}

	for round := 0; round < w.cfg.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rr, err := w.round(ctx, round)
		rep.Rounds = append(rep.Rounds, rr)
		if err != nil {
			return rep, err
		}
		if rr.Capacity > rep.PeakCapacity {
			rep.PeakCapacity = rr.Capacity
		}
		w.logger.Debug("round complete",
			zap.Int("round", round),
			zap.Int("live", rr.Live),
			zap.Int("capacity", rr.Capacity),
			zap.Int("released", rr.Released))
	}

	rep.Stats = w.pool.Stats()

	live := w.pool.UsedCount()
	d, err := w.phase(ctx, PhaseClear, live, func() error {
		w.pool.Clear()
		return nil
	})
	rep.ClearDuration = d
	if err != nil {
		return rep, err
	}
	w.check("clear/empty", w.pool.UsedCount() == 0 && w.pool.Capacity() == 0,
		"used %d capacity %d after clear", w.pool.UsedCount(), w.pool.Capacity())
	w.check("clear/reset-hooks", w.resets == rep.Stats.Releases+uint64(live),
		"reset hook ran %d times, want %d", w.resets, rep.Stats.Releases+uint64(live))

	rep.Final = w.pool.Stats()
	rep.Resets = w.resets
	rep.Checks = sortedChecks(w.checks)
	return rep, nil
}

func (w *worker) round(ctx context.Context, round int) (RoundReport, error) {
	rr := RoundReport{Round: round, Durations: map[string]time.Duration{}}
	tagged := make(map[string]*Object)

	d, err := w.phase(ctx, PhaseAllocate, w.cfg.Objects, func() error {
		for i := 0; i < w.cfg.Objects; i++ {
			tag := ""
			if w.cfg.TagEvery > 0 && i%w.cfg.TagEvery == 0 {
				tag = fmt.Sprintf("w%d-r%d-obj%d", w.id, round, i)
			}
			obj, err := w.pool.Allocate(tag)
			if err != nil {
				return err
			}
			w.nextID++
			obj.fill(w.nextID)
			if tag != "" {
				tagged[tag] = obj
			}
			rr.Allocated++
		}
		return nil
	})
	rr.Durations[PhaseAllocate] = d
	if err != nil {
		w.logger.Error("allocation failed",
			zap.Int("round", round),
			zap.Int("allocated", rr.Allocated),
			zap.Error(err))
		return rr, err
	}
	w.checkBalance(PhaseAllocate)

	d, err = w.phase(ctx, PhaseLookup, len(tagged), func() error {
		for tag, want := range tagged {
			got, ok := w.pool.FindByTag(tag, true)
			w.check("lookup/exact", ok && got == want, "tag %q resolved to %p, want %p", tag, got, want)

			upper := strings.ToUpper(tag)
			got, ok = w.pool.FindByTag(upper, false)
			w.check("lookup/fold", ok && got == want, "tag %q (folded) resolved to %p, want %p", upper, got, want)
			_, ok = w.pool.FindByTag(upper, true)
			w.check("lookup/case", !ok, "case-sensitive lookup of %q matched", upper)
		}
		return nil
	})
	rr.Durations[PhaseLookup] = d
	if err != nil {
		return rr, err
	}

	d, err = w.phase(ctx, PhaseRelease, w.pool.UsedCount(), func() error {
		if err := w.verifyDoubleFree(); err != nil {
			return err
		}
		var c pool.Cursor
		for _, ok := w.pool.GetNextUsedObject(&c); ok; _, ok = w.pool.GetNextUsedObject(&c) {
			if w.rng.Float64() >= w.cfg.ReleaseRatio {
				continue
			}
			idx, _ := c.Index()
			if err := w.pool.ReleaseAt(idx); err != nil {
				return err
			}
			rr.Released++
		}
		return nil
	})
	rr.Durations[PhaseRelease] = d
	if err != nil {
		return rr, err
	}
	w.checkBalance(PhaseRelease)

	d, err = w.phase(ctx, PhaseVerify, w.pool.UsedCount(), func() error {
		visited := 0
		err := w.pool.ForEach(func(o *Object) error {
			if o.Refs != 1 {
				return errors.Newf(errors.ErrorTypeInternal, "live object %d has refs %d", o.ID, o.Refs)
			}
			visited++
			return nil
		})
		if err != nil {
			return err
		}
		w.check("verify/visit-count", visited == w.pool.UsedCount(),
			"visited %d objects, used count %d", visited, w.pool.UsedCount())
		return nil
	})
	rr.Durations[PhaseVerify] = d
	if err != nil {
		return rr, err
	}

	rr.Live = w.pool.UsedCount()
	rr.Capacity = w.pool.Capacity()
	rr.Chunks = w.pool.ChunkCount()
	return rr, nil
}

// verifyDoubleFree releases a fresh object twice through two pointer
// copies. The second release must fail without changing any count.
func (w *worker) verifyDoubleFree() error {
	fresh, err := w.pool.Allocate("")
	if err != nil {
		return err
	}
	fresh.Refs = 1
	alias := fresh
	if err := w.pool.Release(&fresh); err != nil {
		return err
	}
	used, free := w.pool.UsedCount(), w.pool.FreeCount()
	err = w.pool.Release(&alias)
	w.check("release/double-free", errors.IsDoubleFree(err), "second release returned %v", err)
	w.check("release/no-op", used == w.pool.UsedCount() && free == w.pool.FreeCount(),
		"failed release changed counts")
	return w.verifyStaleHandle()
}

// verifyStaleHandle frees a fresh object by index, then releases it again
// through its handle. The handle must be reported stale and leave counts
// alone.
func (w *worker) verifyStaleHandle() error {
	h, obj, err := w.pool.AllocateHandle("")
	if err != nil {
		return err
	}
	obj.Refs = 1
	idx, err := w.pool.IndexOf(h)
	if err != nil {
		return err
	}
	if err := w.pool.ReleaseAt(idx); err != nil {
		return err
	}
	used, free := w.pool.UsedCount(), w.pool.FreeCount()
	err = w.pool.ReleaseHandle(h)
	w.check("release/stale-handle", errors.IsDoubleFree(err), "release of stale handle %s returned %v", h, err)
	w.check("release/no-op", used == w.pool.UsedCount() && free == w.pool.FreeCount(),
		"failed release changed counts")
	return nil
}
