package kpi

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/stationops/pims/internal/cache"
	"github.com/stationops/pims/internal/kpi/aggregate"
	"github.com/stationops/pims/internal/kpi/depend"
	"github.com/stationops/pims/internal/kpi/registry"
	"github.com/stationops/pims/internal/kpi/service"
	"github.com/stationops/pims/internal/observability/metrics"
	"github.com/stationops/pims/internal/plant"
)

var Module = fx.Module("kpi.service",
	fx.Provide(registry.Default),
	fx.Provide(depend.Default),
	fx.Provide(cache.NewDayCache),
	fx.Provide(func(reg *registry.Registry, log *zap.Logger, m *metrics.EngineMetrics) *aggregate.Aggregator {
		return aggregate.New(reg, log, func(_ plant.Scope, _ string, reason string) {
			m.IncConfigGap(reason)
		})
	}),
	fx.Provide(service.NewService),
)
