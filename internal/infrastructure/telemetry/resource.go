// Package telemetry wires OpenTelemetry traces, metrics and logs, Pyroscope
// profiling and GORM instrumentation for the shopkit backend. Every provider
// degrades to a no-op when its signal is disabled so callers never branch.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// shutdownTimeout bounds a provider flush on shutdown
const shutdownTimeout = 10 * time.Second

// newResource describes the running service to every exporter
func newResource(serviceName, serviceVersion string) (*resource.Resource, error) {
	if serviceVersion == "" {
		serviceVersion = "dev"
	}
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}
	return res, nil
}

// shutdown gives a provider at most shutdownTimeout to drain
func shutdown(ctx context.Context, signal string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		return fmt.Errorf("%s provider shutdown: %w", signal, err)
	}
	return nil
}
