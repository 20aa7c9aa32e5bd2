package outage

import (
	"go.uber.org/fx"

	"github.com/stationops/pims/internal/outage/service"
)

var Module = fx.Module("outage.service",
	fx.Provide(service.NewService),
)
