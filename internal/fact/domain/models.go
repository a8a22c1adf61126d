package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	dimensiondomain "github.com/winbalf/retail-data-pipeline/internal/dimension/domain"
)

// SalesFact is one sold line item. Rows are created once and never
// updated or deleted by this subsystem.
type SalesFact struct {
	ID            snowflake.ID  `gorm:"column:sale_id;primaryKey"`
	DateID        snowflake.ID  `gorm:"column:date_id;not null;index"`
	ProductID     snowflake.ID  `gorm:"column:product_id;not null;uniqueIndex:ux_fact_sales_natural_key,priority:2"`
	CustomerID    *snowflake.ID `gorm:"column:customer_id"`
	StoreID       *snowflake.ID `gorm:"column:store_id"`
	SourceID      snowflake.ID  `gorm:"column:source_id;not null;uniqueIndex:ux_fact_sales_natural_key,priority:3"`
	TransactionID string        `gorm:"column:transaction_id;not null;uniqueIndex:ux_fact_sales_natural_key,priority:1"`
	Quantity      int64         `gorm:"not null"`
	UnitPrice     float64       `gorm:"type:numeric(12,2);not null"`
	TotalAmount   float64       `gorm:"type:numeric(12,2);not null"`
	LoadRunID     string        `gorm:"column:load_run_id"`
	LoadedAt      time.Time     `gorm:"column:loaded_at;not null"`
}

func (SalesFact) TableName() string { return "fact_sales" }

// ResolvedFact is a canonical record with every dimension resolved,
// ready for loading.
type ResolvedFact struct {
	Keys          dimensiondomain.ResolvedKeys
	TransactionID string
	ProductRef    string
	Quantity      int64
	UnitPrice     float64
	TotalAmount   float64
}

// MeasureMismatch flags a row whose total does not equal
// quantity x unit price. Flagged rows are still inserted; the
// downstream quality gate decides whether to hard-fail.
type MeasureMismatch struct {
	TransactionID string
	ProductRef    string
	Expected      float64
	Actual        float64
}

// LoadReport summarizes one batch load.
type LoadReport struct {
	Inserted          int
	DuplicatesSkipped int
	MeasureMismatches []MeasureMismatch
}

// Loader applies a batch of resolved facts as a single atomic unit.
// Rows whose natural key already exists are skipped and counted.
type Loader interface {
	LoadBatch(ctx context.Context, runID uuid.UUID, facts []ResolvedFact) (LoadReport, error)
}

// ErrFactLoadTransaction signals a storage failure mid-commit. The
// whole batch rolled back; retrying the period is safe because loads
// are idempotent.
var ErrFactLoadTransaction = errors.New("fact_load_transaction_failed")
