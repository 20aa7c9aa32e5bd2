package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/stationops/pims/internal/clock"
	"github.com/stationops/pims/internal/config"
	"github.com/stationops/pims/internal/events"
	"github.com/stationops/pims/internal/kpi"
	"github.com/stationops/pims/internal/observability"
	"github.com/stationops/pims/internal/outage"
	"github.com/stationops/pims/internal/outage/notifier"
	"github.com/stationops/pims/internal/seed"
	"github.com/stationops/pims/internal/server"
	"github.com/stationops/pims/internal/totalizer"
	totalizerdomain "github.com/stationops/pims/internal/totalizer/domain"
	"github.com/stationops/pims/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		fx.Provide(events.NewOutbox),

		totalizer.Module,
		kpi.Module,
		outage.Module,
		notifier.Module,

		fx.Provide(server.NewEngine),
		fx.Provide(server.NewServer),
		// Appended after the db module's migration hook, so the schema
		// exists by the time the master is seeded.
		fx.Invoke(func(lc fx.Lifecycle, db *gorm.DB, master *totalizerdomain.Master) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					return seed.EnsureTotalizerMaster(db, master)
				},
			})
		}),
		fx.Invoke(func(s *server.Server) {
			s.RegisterAPIRoutes()
		}),
		fx.Invoke(server.RunHTTP),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
