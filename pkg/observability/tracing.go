// Package observability provides OpenTelemetry tracing for chunkpool workloads
package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ajitpratap0/chunkpool/pkg/errors"
)

const instrumentationName = "github.com/ajitpratap0/chunkpool"

var (
	mu     sync.RWMutex
	tracer trace.Tracer = noop.NewTracerProvider().Tracer(instrumentationName)
)

// TracingConfig contains tracing configuration
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	SamplingRate   float64
	// Writer receives exported spans; nil means stdout
	Writer       io.Writer
	PrettyPrint  bool
	BatchTimeout time.Duration
}

// ShutdownFunc flushes pending spans and stops the provider
type ShutdownFunc func(context.Context) error

// InitTracing installs a stdout-exporting tracer provider as the global
// provider and returns its shutdown function.
func InitTracing(cfg TracingConfig) (ShutdownFunc, error) {
	if cfg.SamplingRate < 0 || cfg.SamplingRate > 1 {
		return nil, errors.New(errors.ErrorTypeConfig, "sampling rate must be within [0, 1]").
			WithDetail("sampling_rate", cfg.SamplingRate)
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "chunkpool"
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create resource")
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	exporterOpts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
	if cfg.PrettyPrint {
		exporterOpts = append(exporterOpts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(exporterOpts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create stdout exporter")
	}

	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 5 * time.Second
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SamplingRate)),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(batchTimeout)),
	)
	otel.SetTracerProvider(tp)

	mu.Lock()
	tracer = tp.Tracer(instrumentationName)
	mu.Unlock()

	shutdown := func(ctx context.Context) error {
		mu.Lock()
		tracer = noop.NewTracerProvider().Tracer(instrumentationName)
		mu.Unlock()
		if err := tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown tracer: %w", err)
		}
		return nil
	}
	return shutdown, nil
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate <= 0:
		return sdktrace.NeverSample()
	case rate >= 1:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Tracer returns the active tracer. Before InitTracing, and after shutdown,
// it is a no-op tracer.
func Tracer() trace.Tracer {
	mu.RLock()
	defer mu.RUnlock()
	return tracer
}

// PoolTracer starts spans carrying the name of the pool being exercised
type PoolTracer struct {
	poolName string
}

// NewPoolTracer creates a tracer for spans about poolName
func NewPoolTracer(poolName string) *PoolTracer {
	return &PoolTracer{poolName: poolName}
}

// StartSpan starts a span named "pool.<operation>"
func (pt *PoolTracer) StartSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("pool.name", pt.poolName),
		attribute.String("pool.operation", operation),
	)
	return Tracer().Start(ctx, "pool."+operation, trace.WithAttributes(attrs...))
}

// TracePhase runs fn inside a span and records its outcome. objects is the
// number of pool operations the phase performs.
func (pt *PoolTracer) TracePhase(ctx context.Context, phase string, objects int, fn func(context.Context) error) error {
	ctx, span := pt.StartSpan(ctx, phase, attribute.Int("phase.objects", objects))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	span.SetAttributes(attribute.Int64("phase.duration_ns", elapsed.Nanoseconds()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}
