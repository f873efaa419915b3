package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/cobranca/internal/boleto"
	"github.com/smallbiznis/cobranca/internal/clock"
	"github.com/smallbiznis/cobranca/internal/config"
	"github.com/smallbiznis/cobranca/internal/erp"
	"github.com/smallbiznis/cobranca/internal/ledger"
	"github.com/smallbiznis/cobranca/internal/logger"
	"github.com/smallbiznis/cobranca/internal/runner"
	"github.com/smallbiznis/cobranca/internal/whatsapp"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		clock.Module,
		fx.Provide(RegisterSnowflake),

		ledger.Module,
		erp.Module,
		whatsapp.Module,
		boleto.Module,
		runner.Module,

		fx.Invoke(StartRunner),
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

// StartRunner runs one batch and exits when no interval is configured,
// otherwise keeps running on the interval until shutdown.
func StartRunner(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg config.Config, log *zap.Logger, r *runner.Runner) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go func() {
				if cfg.Runner.RunInterval > 0 {
					r.RunForever(ctx)
					return
				}
				if _, err := r.RunOnce(ctx); err != nil {
					log.Error("batch run failed", zap.Error(err))
				}
				_ = shutdowner.Shutdown()
			}()

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
			return nil
		},
	})
}
