package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/winbalf/retail-data-pipeline/internal/batch"
	"github.com/winbalf/retail-data-pipeline/internal/clock"
	"github.com/winbalf/retail-data-pipeline/internal/config"
	"github.com/winbalf/retail-data-pipeline/internal/dimension"
	"github.com/winbalf/retail-data-pipeline/internal/fact"
	"github.com/winbalf/retail-data-pipeline/internal/migration"
	"github.com/winbalf/retail-data-pipeline/internal/normalizer"
	"github.com/winbalf/retail-data-pipeline/internal/observability"
	"github.com/winbalf/retail-data-pipeline/internal/refresh"
	"github.com/winbalf/retail-data-pipeline/internal/scheduler"
	"github.com/winbalf/retail-data-pipeline/pkg/db"
	"github.com/winbalf/retail-data-pipeline/pkg/log"
	"github.com/winbalf/retail-data-pipeline/pkg/telemetry"
	"go.uber.org/fx"
)

// scheduler runs the pipeline as a long-lived daemon, polling for
// unprocessed periods and refreshing views after each load.
func main() {
	app := fx.New(
		config.Module,
		log.Module,
		observability.Module,
		telemetry.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,

		normalizer.Module,
		dimension.Module,
		fact.Module,
		batch.Module,
		refresh.Module,
		scheduler.Module,

		fx.Invoke(scheduler.Start),
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
