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
	"github.com/winbalf/retail-data-pipeline/pkg/db"
	"github.com/winbalf/retail-data-pipeline/pkg/log"
	"github.com/winbalf/retail-data-pipeline/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// transform runs the transformation and load for one business date
// without touching the aggregate views. Useful for backfills where a
// range of dates is replayed before a single refresh at the end.
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

		fx.Invoke(RunTransform),
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

func RunTransform(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	logger *zap.Logger,
	cfg config.Config,
	clk clock.Clock,
	controller batchdomain.Controller,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				period := resolvePeriod(cfg, clk)

				report, err := controller.ProcessPeriod(context.Background(), period)
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
					zap.Int("records_seen", report.RecordsSeen),
					zap.Int("records_malformed", report.RecordsMalformed),
					zap.Int("dimensions_created", report.DimensionsCreated),
					zap.Int("facts_inserted", report.FactsInserted),
					zap.Int("duplicates_skipped", report.FactsDuplicateSkipped),
				)

				code := 0
				if report.Status == batchdomain.StatusFailed {
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
