package migration

import (
	"github.com/winbalf/retail-data-pipeline/internal/config"
	"github.com/winbalf/retail-data-pipeline/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, pipeline config.Pipeline) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// Non-postgres deployments have no materialized views; the
			// star schema alone is enough to run transformations.
			if err := seed.AutoMigrateSchema(conn); err != nil {
				return err
			}
		}
		return seed.EnsureSources(conn, pipeline)
	}),
)
