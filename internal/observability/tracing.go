package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "tutorx-api"

// Tracer starts every span the API records. It is a no-op until StartTracing
// installs a real provider.
var Tracer trace.Tracer = otel.Tracer(serviceName)

// TraceSettings selects where spans go. An empty OTLPEndpoint prints them to stdout.
type TraceSettings struct {
	Enabled      bool
	Version      string
	Environment  string
	OTLPEndpoint string
	// SampleRatio below 1 samples root spans; children follow their parent.
	SampleRatio float64
}

// StartTracing installs the global tracer provider and W3C propagators.
// The returned func flushes buffered spans.
func StartTracing(ctx context.Context, s TraceSettings) (func(context.Context) error, error) {
	if !s.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exp, err := spanExporter(ctx, s.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("trace exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(s.Version),
		semconv.DeploymentEnvironment(s.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(s.SampleRatio)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	Tracer = tp.Tracer(serviceName)
	return tp.Shutdown, nil
}

func spanExporter(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
	if endpoint == "" {
		return stdouttrace.New()
	}
	return otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
}

func samplerFor(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// StartSpan opens an internal span named after a service operation.
func StartSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer.Start(ctx, op, trace.WithSpanKind(trace.SpanKindInternal), trace.WithAttributes(attrs...))
}

// EndSpan marks the span failed when err is non-nil, then ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
