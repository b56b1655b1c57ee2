// Package telemetry provides OpenTelemetry distributed tracing for the
// clustream engine. It instruments the ingest and reduce operations
// with spans, supports W3C Trace Context propagation, and exports to
// OTLP or stdout.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/clustream-io/clustream"

// Config holds tracing configuration.
type Config struct {
	// Enabled turns tracing on/off.
	Enabled bool

	// Exporter selects the trace exporter: "otlp", "stdout", or "none".
	Exporter string

	// Endpoint is the OTLP collector address (e.g., "localhost:4317").
	Endpoint string

	// SampleRate controls the sampling ratio (0.0 to 1.0).
	SampleRate float64

	// ServiceName overrides the default service name.
	ServiceName string

	// Insecure disables TLS for the OTLP exporter.
	Insecure bool
}

// DefaultConfig returns tracing defaults (disabled).
func DefaultConfig() Config {
	return Config{
		Enabled:     false,
		Exporter:    "otlp",
		Endpoint:    "localhost:4317",
		SampleRate:  1.0,
		ServiceName: "clustream",
		Insecure:    true,
	}
}

// Provider wraps the OTEL TracerProvider and exposes engine-specific
// span helpers.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// Init sets up the global TracerProvider based on the config.
// Returns a Provider that must be shut down with Shutdown().
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{
			tracer: trace.NewNoopTracerProvider().Tracer(tracerName),
		}, nil
	}

	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.Exporter {
	case "otlp":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
	case "none", "":
		return &Provider{
			tracer: trace.NewNoopTracerProvider().Tracer(tracerName),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported exporter: %q (supported: otlp, stdout, none)", cfg.Exporter)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion("0.1.0"),
		),
		resource.WithProcessRuntimeDescription(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRate < 1.0 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{
		tp:     tp,
		tracer: tp.Tracer(tracerName),
	}, nil
}

// Shutdown flushes pending spans and shuts down the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// Tracer returns the engine tracer for creating spans.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// --- Span helpers for engine operations ---

// StartRequest creates a root span for an incoming HTTP request.
func (p *Provider) StartRequest(ctx context.Context, endpoint string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "clustream.request",
		trace.WithAttributes(attribute.String("clustream.endpoint", endpoint)),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartIngest creates a span covering one offline_cluster call.
func (p *Provider) StartIngest(ctx context.Context, dim int) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "clustream.ingest",
		trace.WithAttributes(attribute.Int("clustream.ingest.dim", dim)),
	)
}

// StartReduce creates a span covering a Reducer.Reduce call.
func (p *Provider) StartReduce(ctx context.Context, k, poolSize int) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "clustream.reduce",
		trace.WithAttributes(
			attribute.Int("clustream.reduce.k", k),
			attribute.Int("clustream.reduce.pool_size", poolSize),
		),
	)
}

// StartSelectNode creates a span for one selectNode descent.
func (p *Provider) StartSelectNode(ctx context.Context) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "clustream.coreset.select_node")
}

// StartChooseCentre creates a span for one chooseCentre call.
func (p *Provider) StartChooseCentre(ctx context.Context, leafSize int) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "clustream.coreset.choose_centre",
		trace.WithAttributes(attribute.Int("clustream.coreset.leaf_size", leafSize)),
	)
}

// StartSinkReport creates a span for reporting centres to a Sink.
func (p *Provider) StartSinkReport(ctx context.Context, backend string, centreCount int) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "clustream.sink.report",
		trace.WithAttributes(
			attribute.String("clustream.sink.backend", backend),
			attribute.Int("clustream.sink.centre_count", centreCount),
		),
	)
}

// RecordResult adds reduce-result attributes to a span.
func RecordResult(span trace.Span, poolSize, k int, latency time.Duration) {
	span.SetAttributes(
		attribute.Int("clustream.result.pool_size", poolSize),
		attribute.Int("clustream.result.k", k),
		attribute.Int64("clustream.result.latency_ms", latency.Milliseconds()),
	)
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetAttributes(attribute.Bool("error", true))
}
