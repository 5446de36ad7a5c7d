package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/sartorproj/stockcast/config"
)

// InstrumentationName names the tracer used across the application.
const InstrumentationName = "github.com/sartorproj/stockcast"

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// SetupTracing installs the global tracer provider described by cfg and
// returns the application tracer. The stdout exporter writes spans to out,
// or to stderr when out is nil. With tracing disabled, or exporter "none", a
// no-op tracer is returned and nothing global changes.
func SetupTracing(cfg config.TelemetryConfig, out io.Writer, logger *slog.Logger) (trace.Tracer, ShutdownFunc, error) {
	if out == nil {
		out = os.Stderr
	}
	noopShutdown := func(context.Context) error { return nil }
	if !cfg.Tracing || cfg.TraceExporter == "none" {
		return noop.NewTracerProvider().Tracer(InstrumentationName), noopShutdown, nil
	}

	var exporter sdktrace.SpanExporter
	switch cfg.TraceExporter {
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithWriter(out))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		exporter = exp
	default:
		return nil, nil, fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	if logger != nil {
		logger.Info("tracing initialized", "exporter", cfg.TraceExporter, "service", cfg.ServiceName)
	}
	return tp.Tracer(InstrumentationName), tp.Shutdown, nil
}
