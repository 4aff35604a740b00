// Package tracing bootstraps OpenTelemetry tracing via OTLP/HTTP. The
// reference module declares the full otel/otlptrace/otlptracehttp/sdk
// stack plus otelgin but never wires a TracerProvider anywhere; this
// package is that wiring.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config controls whether and where traces are exported.
type Config struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string
}

// ShutdownFunc flushes and stops the TracerProvider. A no-op ShutdownFunc is
// returned when tracing is disabled so callers can defer it
// unconditionally.
type ShutdownFunc func(ctx context.Context) error

// Setup installs a TracerProvider exporting spans over OTLP/HTTP and
// registers it as the global provider. When cfg.Enabled is false it
// installs nothing and returns a no-op shutdown function, so the Wallet
// Engine and Atomic Transfer Service's explicit spans are free no-ops.
func Setup(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceNameKey.String(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}

// Tracer returns a tracer scoped to name, e.g. "walletengine" or
// "pixtransfer". Safe to call even when tracing was never Setup: the
// global no-op provider is used and spans are dropped.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
