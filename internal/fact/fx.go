package fact

import (
	"github.com/winbalf/retail-data-pipeline/internal/fact/service"
	"go.uber.org/fx"
)

var Module = fx.Module("fact.loader",
	fx.Provide(service.New),
)
