package notifier

import (
	"context"

	"go.uber.org/fx"

	"github.com/stationops/pims/internal/config"
)

var Module = fx.Module("outage.notifier",
	fx.Provide(func(cfg config.Config) Config {
		return Config{
			PollInterval:  cfg.NotifierPollInterval,
			OpenWarnAfter: cfg.NotifierOpenWarnAfter,
		}
	}),
	fx.Provide(NewWorker),
	fx.Invoke(runWorker),
)

func runWorker(lc fx.Lifecycle, worker *Worker) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go worker.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
