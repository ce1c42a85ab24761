// Package tracing configures the OpenTelemetry tracer provider and offers a
// span helper shared by the HTTP layer and the scheduler.
package tracing

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc/credentials"
)

const instrumentation = "routerd"

// Exporter names accepted by Init.
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPGRPC = "otlpgrpc"
	ExporterOTLPHTTP = "otlphttp"
)

// Options selects the exporter and sampler.
type Options struct {
	Exporter string
	// Endpoint defaults to localhost:4317 (grpc) or http://localhost:4318 (http).
	Endpoint    string
	Insecure    bool
	Headers     map[string]string
	SampleRatio float64
	Environment string
}

// Init installs the global tracer provider and propagator. The returned
// shutdown flushes pending spans. With the none exporter a no-op provider is
// installed and shutdown does nothing.
func Init(ctx context.Context, service string, opts Options) (func(context.Context) error, error) {
	name := strings.ToLower(strings.TrimSpace(opts.Exporter))
	if name == "" || name == ExporterNone {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}
	exp, err := buildExporter(ctx, name, opts)
	if err != nil {
		return nil, err
	}
	attrs := []attribute.KeyValue{semconv.ServiceNameKey.String(service)}
	if opts.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironmentKey.String(opts.Environment))
	}
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sampler(opts.SampleRatio)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

// StartSpan starts a span on the global provider.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentation).Start(ctx, name, trace.WithAttributes(attrs...))
}

func buildExporter(ctx context.Context, name string, opts Options) (sdktrace.SpanExporter, error) {
	switch name {
	case ExporterStdout:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case ExporterOTLPGRPC:
		endpoint := opts.Endpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		o := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if len(opts.Headers) > 0 {
			o = append(o, otlptracegrpc.WithHeaders(opts.Headers))
		}
		if opts.Insecure {
			o = append(o, otlptracegrpc.WithInsecure())
		} else {
			o = append(o, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(&tls.Config{})))
		}
		return otlptracegrpc.New(ctx, o...)
	case ExporterOTLPHTTP:
		endpoint := opts.Endpoint
		if endpoint == "" {
			endpoint = "http://localhost:4318"
		}
		o := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(endpoint)}
		if len(opts.Headers) > 0 {
			o = append(o, otlptracehttp.WithHeaders(opts.Headers))
		}
		if opts.Insecure {
			o = append(o, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, o...)
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", name)
	}
}

// sampler honors the parent decision; ratio outside (0,1) samples everything.
func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// ValidExporter reports whether name is accepted by Init.
func ValidExporter(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ExporterNone, ExporterStdout, ExporterOTLPGRPC, ExporterOTLPHTTP:
		return true
	}
	return false
}
