package totalizer

import (
	"go.uber.org/fx"

	"github.com/stationops/pims/internal/totalizer/domain"
	"github.com/stationops/pims/internal/totalizer/service"
)

var Module = fx.Module("totalizer.service",
	fx.Provide(domain.DefaultMaster),
	fx.Provide(service.NewService),
)
