package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	batchdomain "github.com/winbalf/retail-data-pipeline/internal/batch/domain"
	"github.com/winbalf/retail-data-pipeline/internal/config"
	dimensiondomain "github.com/winbalf/retail-data-pipeline/internal/dimension/domain"
	factdomain "github.com/winbalf/retail-data-pipeline/internal/fact/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnsureSources seeds one dim_source row per configured source so the
// warehouse is queryable by source before the first load runs. Rows
// that already exist are left untouched.
func EnsureSources(db *gorm.DB, pipeline config.Pipeline) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, src := range pipeline.Sources {
			row := dimensiondomain.SourceDim{
				ID:        node.Generate(),
				Code:      src.Code,
				Name:      src.Name,
				CreatedAt: time.Now().UTC(),
			}
			err := tx.WithContext(ctx).
				Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "source_code"}},
					DoNothing: true,
				}).
				Create(&row).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// AutoMigrateSchema creates the star schema from the gorm models for
// deployments without a SQL migration path such as sqlite.
func AutoMigrateSchema(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	return db.AutoMigrate(
		&dimensiondomain.DateDim{},
		&dimensiondomain.ProductDim{},
		&dimensiondomain.CustomerDim{},
		&dimensiondomain.StoreDim{},
		&dimensiondomain.SourceDim{},
		&factdomain.SalesFact{},
		&batchdomain.PipelineRun{},
	)
}
