package whatsapp

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/cobranca/internal/config"
)

// NewDispatcher picks the provider adapter once, at construction. Dry
// runs always get the logging adapter regardless of provider.
func NewDispatcher(cfg config.Config, log *zap.Logger) Dispatcher {
	if cfg.Runner.DryRun {
		return NewNoop(log)
	}
	switch cfg.WhatsApp.Provider {
	case config.WhatsAppProviderEvolution:
		return NewEvolution(cfg.WhatsApp, log)
	default:
		return NewNoop(log)
	}
}

var Module = fx.Module("whatsapp",
	fx.Provide(NewDispatcher),
)
