package main

import (
	"context"
	"fmt"
	"time"

	"github.com/shopkit/backend/internal/infrastructure/config"
	"github.com/shopkit/backend/internal/infrastructure/persistence"
	"github.com/shopkit/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

// telemetryStack owns the OpenTelemetry providers and the profiler
type telemetryStack struct {
	tracer    *telemetry.TracerProvider
	meters    *telemetry.MeterProvider
	logs      *telemetry.LoggerProvider
	profiler  *telemetry.Profiler
	dbMetrics *telemetry.QueryMetrics
}

func setupTelemetry(ctx context.Context, cfg *config.Config, log *zap.Logger) (*telemetryStack, error) {
	t := cfg.Telemetry
	stack := &telemetryStack{}

	tracer, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           t.Enabled,
		CollectorEndpoint: t.CollectorEndpoint,
		SamplingRatio:     t.SamplingRatio,
		ServiceName:       t.ServiceName,
		ServiceVersion:    version,
		Insecure:          t.Insecure,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("initialize tracing: %w", err)
	}
	stack.tracer = tracer

	meters, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           t.MetricsEnabled,
		CollectorEndpoint: t.CollectorEndpoint,
		ExportInterval:    t.MetricsInterval,
		ServiceName:       t.ServiceName,
		ServiceVersion:    version,
		Insecure:          t.Insecure,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("initialize metrics: %w", err)
	}
	stack.meters = meters

	if t.LogsEnabled {
		logs, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
			Enabled:           true,
			CollectorEndpoint: t.CollectorEndpoint,
			ServiceName:       t.ServiceName,
			ServiceVersion:    version,
			Insecure:          t.Insecure,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("initialize log export: %w", err)
		}
		stack.logs = logs
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         t.ProfilingEnabled,
		ServerAddress:   t.ProfilingEndpoint,
		ApplicationName: t.ServiceName,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("initialize profiler: %w", err)
	}
	stack.profiler = profiler
	tracer.EnableSpanProfiles(profiler)

	return stack, nil
}

// meter returns a named meter, or a no-op meter when metrics are disabled
func (s *telemetryStack) meter(name string) metric.Meter {
	if !s.meters.IsEnabled() {
		return noop.NewMeterProvider().Meter(name)
	}
	return s.meters.Meter(name)
}

// instrumentDB installs the query tracer and query metrics plugins on db
func (s *telemetryStack) instrumentDB(ctx context.Context, cfg *config.Config, db *persistence.Database, log *zap.Logger) error {
	t := cfg.Telemetry
	system := "postgresql"
	if cfg.Database.Driver == config.DriverSQLite {
		system = "sqlite"
	}
	tracer := telemetry.NewQueryTracer(telemetry.QueryTracingConfig{
		Enabled:       t.Enabled && t.DBTraceEnabled,
		FullSQL:       t.DBLogFullSQL,
		SlowThreshold: t.DBSlowQueryThresh,
		System:        system,
	}, log)
	if err := db.DB.Use(tracer); err != nil {
		return fmt.Errorf("register query tracer: %w", err)
	}

	metrics, err := telemetry.NewQueryMetrics(s.meters, telemetry.QueryMetricsConfig{SlowThreshold: t.DBSlowQueryThresh}, log)
	if err != nil {
		return fmt.Errorf("create query metrics: %w", err)
	}
	if metrics == nil {
		return nil
	}
	if err := db.DB.Use(metrics); err != nil {
		return fmt.Errorf("register query metrics: %w", err)
	}
	metrics.SamplePool(ctx)
	s.dbMetrics = metrics
	return nil
}

// shutdown flushes and stops every provider, bounded by ten seconds
func (s *telemetryStack) shutdown(log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.dbMetrics != nil {
		s.dbMetrics.Stop()
	}
	if s.profiler != nil {
		if err := s.profiler.Stop(); err != nil {
			log.Warn("Error stopping profiler", zap.Error(err))
		}
	}
	if s.logs != nil {
		if err := s.logs.Shutdown(ctx); err != nil {
			log.Warn("Error shutting down log exporter", zap.Error(err))
		}
	}
	if s.meters != nil {
		if err := s.meters.Shutdown(ctx); err != nil {
			log.Warn("Error shutting down meter provider", zap.Error(err))
		}
	}
	if s.tracer != nil {
		if err := s.tracer.Shutdown(ctx); err != nil {
			log.Warn("Error shutting down tracer provider", zap.Error(err))
		}
	}
}
