package refresh

import (
	"go.uber.org/fx"
)

var Module = fx.Module("refresh.orchestrator",
	fx.Provide(NewGormExecutor),
	fx.Provide(New),
)
