package service

import (
	"context"
	"fmt"
	"math"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/winbalf/retail-data-pipeline/internal/clock"
	factdomain "github.com/winbalf/retail-data-pipeline/internal/fact/domain"
	pkgdb "github.com/winbalf/retail-data-pipeline/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// measureTolerance absorbs float rounding in quantity x unit_price.
const measureTolerance = 0.01

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func New(p Params) factdomain.Loader {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("fact.loader"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

// LoadBatch inserts one row per fact inside a single transaction,
// skipping rows whose natural key already exists. Either every
// non-duplicate row becomes visible, or none do.
func (s *Service) LoadBatch(ctx context.Context, runID uuid.UUID, facts []factdomain.ResolvedFact) (factdomain.LoadReport, error) {
	report := factdomain.LoadReport{}
	if len(facts) == 0 {
		return report, nil
	}

	loadedAt := s.clock.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, fact := range facts {
			if mismatch, ok := checkMeasures(fact); ok {
				report.MeasureMismatches = append(report.MeasureMismatches, mismatch)
				s.log.Warn("measure mismatch",
					zap.String("transaction_id", fact.TransactionID),
					zap.String("product_ref", fact.ProductRef),
					zap.Float64("expected", mismatch.Expected),
					zap.Float64("actual", mismatch.Actual),
				)
			}

			row := factdomain.SalesFact{
				ID:            s.genID.Generate(),
				DateID:        fact.Keys.DateID,
				ProductID:     fact.Keys.ProductID,
				CustomerID:    fact.Keys.CustomerID,
				StoreID:       fact.Keys.StoreID,
				SourceID:      fact.Keys.SourceID,
				TransactionID: fact.TransactionID,
				Quantity:      fact.Quantity,
				UnitPrice:     fact.UnitPrice,
				TotalAmount:   fact.TotalAmount,
				LoadRunID:     runID.String(),
				LoadedAt:      loadedAt,
			}
			result := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{
					{Name: "transaction_id"},
					{Name: "product_id"},
					{Name: "source_id"},
				},
				DoNothing: true,
			}).Create(&row)
			if result.Error != nil {
				if pkgdb.IsDuplicateKeyErr(result.Error) {
					report.DuplicatesSkipped++
					continue
				}
				return result.Error
			}
			if result.RowsAffected > 0 {
				report.Inserted++
			} else {
				report.DuplicatesSkipped++
			}
		}
		return nil
	})
	if err != nil {
		return factdomain.LoadReport{}, fmt.Errorf("%w: %v", factdomain.ErrFactLoadTransaction, err)
	}
	return report, nil
}

func checkMeasures(fact factdomain.ResolvedFact) (factdomain.MeasureMismatch, bool) {
	expected := float64(fact.Quantity) * fact.UnitPrice
	if math.Abs(expected-fact.TotalAmount) <= measureTolerance {
		return factdomain.MeasureMismatch{}, false
	}
	return factdomain.MeasureMismatch{
		TransactionID: fact.TransactionID,
		ProductRef:    fact.ProductRef,
		Expected:      expected,
		Actual:        fact.TotalAmount,
	}, true
}
