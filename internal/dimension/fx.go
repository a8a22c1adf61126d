package dimension

import (
	"github.com/winbalf/retail-data-pipeline/internal/cache"
	"github.com/winbalf/retail-data-pipeline/internal/dimension/service"
	"go.uber.org/fx"
)

var Module = fx.Module("dimension.resolver",
	fx.Provide(cache.NewDimensionKeyCache),
	fx.Provide(service.New),
)
