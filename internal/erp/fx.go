package erp

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	erpdomain "github.com/smallbiznis/cobranca/internal/erp/domain"
)

var Module = fx.Module("erp",
	fx.Provide(NewClient),
	fx.Provide(func(client *Client, log *zap.Logger) erpdomain.Repository {
		return NewRepository(client, log)
	}),
)
