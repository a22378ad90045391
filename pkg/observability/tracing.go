// Package observability provides distributed tracing for tileserv. It wires
// an OpenTelemetry tracer provider around the serving facade so the
// expensive path — slab-index resolution on a cache miss — carries spans
// without touching the pooling hot path.
package observability

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/tileforge/tileserv/pkg/config"
	"github.com/tileforge/tileserv/pkg/errors"
)

var (
	tracer   atomic.Value // trace.Tracer
	provider *sdktrace.TracerProvider
	initOnce sync.Once
)

// Init initialises the global tracer provider from the observability
// configuration. Safe to call more than once; only the first call takes
// effect.
func Init(cfg config.ObservabilityConfig) error {
	var err error
	initOnce.Do(func() {
		err = initTracing(cfg)
	})
	return err
}

// initTracing builds the provider, exporter and sampler
func initTracing(cfg config.ObservabilityConfig) error {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to create trace resource")
	}

	var exporter sdktrace.SpanExporter
	switch cfg.TraceExporter {
	case "stdout", "":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "failed to create stdout exporter")
		}
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown trace exporter %q", cfg.TraceExporter)
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SamplingRate <= 0:
		sampler = sdktrace.NeverSample()
	case cfg.SamplingRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SamplingRate)
	}

	provider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(provider)
	tracer.Store(provider.Tracer(cfg.ServiceName))

	return nil
}

// StartSpan starts a span under the global tracer. When tracing was never
// initialised the returned span is a no-op.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	t, _ := tracer.Load().(trace.Tracer)
	if t == nil {
		t = otel.Tracer("tileserv")
	}
	ctx, span := t.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

// EndSpan finishes a span, recording err when non-nil.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Shutdown flushes and stops the tracer provider.
func Shutdown(ctx context.Context) error {
	if provider == nil {
		return nil
	}
	return provider.Shutdown(ctx)
}
