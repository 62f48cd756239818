// Package tracing initializes OpenTelemetry tracing for the catalog
// server: a Config/Provider pair building a resource and sampler and
// exporting spans via go.opentelemetry.io/otel/exporters/jaeger.
package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// Config configures the tracer provider.
type Config struct {
	ServiceName string
	Version     string
	Environment string

	// Enabled toggles tracing entirely; when false, Init returns a nil
	// Provider and every span becomes a no-op.
	Enabled bool

	// JaegerEndpoint is the Jaeger collector's HTTP Thrift endpoint, e.g.
	// http://localhost:14268/api/traces.
	JaegerEndpoint string

	// SamplingRatio is in [0,1]; 1.0 traces everything.
	SamplingRatio float64
}

// Provider wraps the SDK TracerProvider so callers have one thing to
// Shutdown on exit.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// Init builds and installs the global tracer provider. A disabled config
// (or a construction failure) returns a nil *Provider; Shutdown on a nil
// Provider is a no-op, so callers can defer it unconditionally.
func Init(cfg Config) *Provider {
	if !cfg.Enabled {
		return nil
	}
	provider, err := NewProvider(cfg)
	if err != nil {
		return nil
	}
	return provider
}

// NewProvider builds a tracer provider exporting to Jaeger.
func NewProvider(cfg Config) (*Provider, error) {
	ctx := context.Background()

	endpoint := cfg.JaegerEndpoint
	if endpoint == "" {
		endpoint = "http://localhost:14268/api/traces"
	}
	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(endpoint)))
	if err != nil {
		return nil, fmt.Errorf("tracing: create jaeger exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.Version),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
		resource.WithProcess(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing: build resource: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SamplingRatio >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.SamplingRatio <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SamplingRatio)
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
	return &Provider{tp: tp}, nil
}

// Shutdown flushes pending spans and stops the provider. Safe to call on a
// nil Provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.tp.Shutdown(shutdownCtx)
}
