// Package observability sets up OpenTelemetry tracing.
//
// Spans are exported over OTLP/HTTP to a local collector (default
// localhost:4318). The collector handles authentication and forwarding, so
// the application never carries vendor credentials. Tracing is opt-in via
// telemetry.enabled; when the collector cannot be reached at setup time the
// app degrades to a no-op shutdown instead of failing, because the TUI must
// work on machines without a collector.
//
// Config file (~/.maquette/config.yaml):
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4318"
//	  environment: "dev"
//	  service_name: "maquette"
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/maquette-dev/maquette/internal/config"
	"github.com/maquette-dev/maquette/internal/log"
)

// tracerName scopes spans created through Tracer.
const tracerName = "github.com/maquette-dev/maquette"

// noopShutdown is returned whenever tracing is disabled or unavailable.
func noopShutdown(context.Context) error { return nil }

// Setup installs the global tracer provider per cfg and returns a shutdown
// function that flushes pending spans. With telemetry disabled the returned
// shutdown is a no-op and no global state is touched.
func Setup(ctx context.Context, cfg config.TelemetryConfig, logger log.Logger) (func(context.Context) error, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	if !cfg.Enabled {
		return noopShutdown, nil
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "localhost:4318"
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	}
	if cfg.APIKey != "" {
		opts = append(opts, otlptracehttp.WithHeaders(map[string]string{
			"api-key": cfg.APIKey,
		}))
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		logger.Warn("creating trace exporter failed, tracing disabled", "error", err)
		return noopShutdown, nil
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "maquette"
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("deployment.environment", cfg.Environment),
	))
	if err != nil {
		return noopShutdown, fmt.Errorf("building trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	logger.Debug("tracing enabled",
		"endpoint", endpoint,
		"service", serviceName,
		"environment", cfg.Environment)

	return provider.Shutdown, nil
}

// Tracer returns the application tracer from the installed provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
