package ledger

import (
	"context"
	"fmt"

	"github.com/smallbiznis/cobranca/internal/clock"
	"github.com/smallbiznis/cobranca/internal/config"
	"github.com/smallbiznis/cobranca/internal/ledger/domain"
	"github.com/smallbiznis/cobranca/internal/ledger/filestore"
	"github.com/smallbiznis/cobranca/internal/ledger/gormstore"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewStore opens the send ledger selected by configuration. The store is
// opened once per process and closed on shutdown.
func NewStore(lc fx.Lifecycle, cfg config.Config, clk clock.Clock, log *zap.Logger) (domain.Store, error) {
	var (
		store domain.Store
		err   error
	)
	switch cfg.Ledger.Driver {
	case config.LedgerDriverSQLite:
		store, err = gormstore.Open(cfg.Ledger.Path, clk)
	case config.LedgerDriverFile:
		store, err = filestore.Open(cfg.Ledger.Path, clk)
	default:
		return nil, fmt.Errorf("ledger: unknown driver %q", cfg.Ledger.Driver)
	}
	if err != nil {
		return nil, err
	}

	log.Named("ledger").Info("send ledger opened",
		zap.String("driver", cfg.Ledger.Driver),
		zap.String("path", cfg.Ledger.Path),
	)

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return store.Close()
		},
	})
	return store, nil
}

var Module = fx.Module("ledger",
	fx.Provide(NewStore),
)
