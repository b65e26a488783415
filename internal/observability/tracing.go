package observability

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
)

// TracingOptions selects the span exporter.
type TracingOptions struct {
	ServiceName  string
	Exporter     string // none, stdout or otlp
	OTLPEndpoint string
}

// SetupTracing installs a global tracer provider and returns its shutdown
// func. With the "none" exporter the global no-op provider is left in place.
func SetupTracing(ctx context.Context, opts TracingOptions, logger *slog.Logger) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	exporterName := strings.ToLower(strings.TrimSpace(opts.Exporter))
	if exporterName == "" || exporterName == "none" {
		return noop, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(opts.ServiceName)))
	if err != nil {
		return nil, err
	}

	var exporter sdktrace.SpanExporter
	switch exporterName {
	case "otlp":
		var eopts []otlptracegrpc.Option
		if endpoint := strings.TrimSpace(opts.OTLPEndpoint); endpoint != "" {
			eopts = append(eopts, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, eopts...)
	default:
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	logger.Info("tracing initialized", slog.String("exporter", exporterName))
	return tp.Shutdown, nil
}
