package boleto

import "go.uber.org/fx"

var Module = fx.Module("boleto",
	fx.Provide(NewRenderer),
	fx.Provide(DefaultIssuer),
)
