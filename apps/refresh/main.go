package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/winbalf/retail-data-pipeline/internal/clock"
	"github.com/winbalf/retail-data-pipeline/internal/config"
	"github.com/winbalf/retail-data-pipeline/internal/migration"
	"github.com/winbalf/retail-data-pipeline/internal/observability"
	"github.com/winbalf/retail-data-pipeline/internal/refresh"
	refreshdomain "github.com/winbalf/retail-data-pipeline/internal/refresh/domain"
	"github.com/winbalf/retail-data-pipeline/pkg/db"
	"github.com/winbalf/retail-data-pipeline/pkg/log"
	"github.com/winbalf/retail-data-pipeline/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// refresh rebuilds every registered aggregate view. Typically run
// after a backfill, or on a cron independent of the load schedule.
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

		refresh.Module,

		fx.Invoke(RunRefresh),
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

func RunRefresh(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	logger *zap.Logger,
	orchestrator *refresh.Orchestrator,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				report := orchestrator.RefreshAll(context.Background())

				for name, outcome := range report.Outcomes {
					if outcome.State == refreshdomain.StateFailed {
						logger.Warn("view refresh failed",
							zap.String("view", name),
							zap.String("error", outcome.Error),
						)
					}
				}
				logger.Info("aggregate refresh finished",
					zap.Int("succeeded", report.Succeeded),
					zap.Int("failed", report.Failed),
				)

				code := 0
				if report.Failed > 0 {
					code = 1
				}
				_ = shutdowner.Shutdown(fx.ExitCode(code))
			}()
			return nil
		},
	})
}
