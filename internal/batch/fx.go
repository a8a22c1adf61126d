package batch

import (
	"go.uber.org/fx"
)

var Module = fx.Module("batch.controller",
	fx.Provide(New),
	fx.Provide(NewFileRecordSource),
)
