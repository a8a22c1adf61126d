package main

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/winbalf/retail-data-pipeline/internal/batch"
	batchdomain "github.com/winbalf/retail-data-pipeline/internal/batch/domain"
	"github.com/winbalf/retail-data-pipeline/internal/clock"
	"github.com/winbalf/retail-data-pipeline/internal/config"
	"github.com/winbalf/retail-data-pipeline/internal/dimension"
	"github.com/winbalf/retail-data-pipeline/internal/fact"
	"github.com/winbalf/retail-data-pipeline/internal/migration"
	"github.com/winbalf/retail-data-pipeline/internal/normalizer"
	"github.com/winbalf/retail-data-pipeline/internal/observability"
	"github.com/winbalf/retail-data-pipeline/internal/refresh"
	"github.com/winbalf/retail-data-pipeline/pkg/db"
	"github.com/winbalf/retail-data-pipeline/pkg/log"
	"github.com/winbalf/retail-data-pipeline/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// pipeline runs one full cycle: transform and load every source for
// the selected business date, then refresh the aggregate views.
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

		fx.Invoke(RunPipeline),
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

func RunPipeline(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	logger *zap.Logger,
	cfg config.Config,
	clk clock.Clock,
	controller batchdomain.Controller,
	orchestrator *refresh.Orchestrator,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				runCtx := context.Background()
				period := resolvePeriod(cfg, clk)

				report, err := controller.ProcessPeriod(runCtx, period)
				if err != nil {
					logger.Error("transformation run failed",
						zap.Time("period", period),
						zap.Error(err),
					)
					_ = shutdowner.Shutdown(fx.ExitCode(1))
					return
				}
				logger.Info("transformation run finished",
					zap.Time("period", period),
					zap.String("status", string(report.Status)),
					zap.Int("facts_inserted", report.FactsInserted),
					zap.Int("duplicates_skipped", report.FactsDuplicateSkipped),
				)

				refreshReport := orchestrator.RefreshAll(runCtx)
				logger.Info("aggregate refresh finished",
					zap.Int("succeeded", refreshReport.Succeeded),
					zap.Int("failed", refreshReport.Failed),
				)

				code := 0
				if report.Status == batchdomain.StatusFailed || refreshReport.Failed > 0 {
					code = 1
				}
				_ = shutdowner.Shutdown(fx.ExitCode(code))
			}()
			return nil
		},
	})
}

func resolvePeriod(cfg config.Config, clk clock.Clock) time.Time {
	if cfg.PipelineDate != "" {
		if parsed, err := time.Parse("2006-01-02", cfg.PipelineDate); err == nil {
			return parsed
		}
	}
	return clk.Now().UTC().AddDate(0, 0, -1).Truncate(24 * time.Hour)
}
