// Package tracing wraps the OpenTelemetry SDK into the single tracer
// this node needs: spans around an assignment round and a broadcast
// fan-out, exported over OTLP/HTTP when a collector endpoint is
// configured, and a no-op tracer otherwise so the Coordinator and
// Network packages can call Start unconditionally.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/fjellheim/elevator-fleet"

// Provider owns the process-wide TracerProvider, if one was built. A
// Provider with a nil sdk field still returns a usable Tracer: the
// global otel API defaults to a no-op implementation until something
// calls otel.SetTracerProvider.
type Provider struct {
	sdk *sdktrace.TracerProvider
}

// NewProvider builds a batching OTLP/HTTP exporter pointed at endpoint
// and registers it as the global TracerProvider. An empty endpoint
// disables export entirely: NewProvider returns a Provider whose
// Shutdown is a no-op and whose Tracer calls resolve to the global
// no-op tracer.
func NewProvider(ctx context.Context, endpoint, serviceName, nodeID string) (*Provider, error) {
	if endpoint == "" {
		return &Provider{}, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("building otlp trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.instance.id", nodeID),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("building trace resource: %w", err)
	}

	sdk := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(sdk)

	return &Provider{sdk: sdk}, nil
}

// Tracer returns a tracer from the global TracerProvider. The Coordinator
// and Network hold their own package-level otel.Tracer, which resolves
// through the same global provider. Callers never need to check whether
// export is enabled.
func (p *Provider) Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// Shutdown flushes any buffered spans and releases the exporter
// connection. Safe to call on a Provider built with an empty endpoint.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.sdk == nil {
		return nil
	}
	return p.sdk.Shutdown(ctx)
}
