// Package observability wires the logger, tracer provider and metrics into
// the fx graph.
package observability

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/stationops/pims/internal/config"
	"github.com/stationops/pims/internal/observability/logger"
	"github.com/stationops/pims/internal/observability/metrics"
	"github.com/stationops/pims/internal/observability/tracing"
)

// Module provides the ambient observability stack.
var Module = fx.Module("observability",
	fx.Provide(func(cfg config.Config) (*zap.Logger, error) {
		return logger.New(logger.Config{
			Level:       cfg.LogLevel,
			Environment: cfg.Environment,
		})
	}),
	fx.Provide(tracing.NewProvider),
	fx.Provide(metrics.EngineWithConfig),
	fx.Provide(metrics.HTTPWithConfig),
	// Tracing has no downstream consumers; force construction so the
	// provider registers itself globally.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
