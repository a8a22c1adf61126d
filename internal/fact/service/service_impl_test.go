package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/winbalf/retail-data-pipeline/internal/clock"
	dimensiondomain "github.com/winbalf/retail-data-pipeline/internal/dimension/domain"
	factdomain "github.com/winbalf/retail-data-pipeline/internal/fact/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupLoader(t *testing.T) (factdomain.Loader, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)

	assert.NoError(t, db.AutoMigrate(&factdomain.SalesFact{}))

	node, err := snowflake.NewNode(1)
	assert.NoError(t, err)

	loader := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, 3, 16, 6, 0, 0, 0, time.UTC)),
	})
	return loader, db
}

func testKeys(node *snowflake.Node) dimensiondomain.ResolvedKeys {
	customerID := node.Generate()
	storeID := node.Generate()
	return dimensiondomain.ResolvedKeys{
		DateID:     node.Generate(),
		ProductID:  node.Generate(),
		SourceID:   node.Generate(),
		CustomerID: &customerID,
		StoreID:    &storeID,
	}
}

func TestLoadBatchInsertsFacts(t *testing.T) {
	loader, db := setupLoader(t)
	node, _ := snowflake.NewNode(3)
	keys := testKeys(node)
	runID := uuid.New()

	facts := []factdomain.ResolvedFact{
		{Keys: keys, TransactionID: "ORD-1", ProductRef: "SKU-1", Quantity: 2, UnitPrice: 24.99, TotalAmount: 49.98},
		{Keys: keys, TransactionID: "ORD-2", ProductRef: "SKU-1", Quantity: 1, UnitPrice: 24.99, TotalAmount: 24.99},
	}

	report, err := loader.LoadBatch(context.Background(), runID, facts)
	assert.NoError(t, err)
	assert.Equal(t, 2, report.Inserted)
	assert.Zero(t, report.DuplicatesSkipped)
	assert.Empty(t, report.MeasureMismatches)

	var rows []factdomain.SalesFact
	assert.NoError(t, db.Find(&rows).Error)
	assert.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, runID.String(), row.LoadRunID)
		assert.False(t, row.LoadedAt.IsZero())
	}
}

func TestLoadBatchIdempotentReplay(t *testing.T) {
	loader, db := setupLoader(t)
	node, _ := snowflake.NewNode(3)
	keys := testKeys(node)

	facts := []factdomain.ResolvedFact{
		{Keys: keys, TransactionID: "ORD-1", ProductRef: "SKU-1", Quantity: 2, UnitPrice: 24.99, TotalAmount: 49.98},
		{Keys: keys, TransactionID: "ORD-2", ProductRef: "SKU-1", Quantity: 1, UnitPrice: 24.99, TotalAmount: 24.99},
	}

	first, err := loader.LoadBatch(context.Background(), uuid.New(), facts)
	assert.NoError(t, err)
	assert.Equal(t, 2, first.Inserted)

	// Replaying the same batch inserts nothing and reports every row
	// as a skipped duplicate.
	second, err := loader.LoadBatch(context.Background(), uuid.New(), facts)
	assert.NoError(t, err)
	assert.Zero(t, second.Inserted)
	assert.Equal(t, 2, second.DuplicatesSkipped)

	var count int64
	assert.NoError(t, db.Model(&factdomain.SalesFact{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestLoadBatchPartialDuplicates(t *testing.T) {
	loader, db := setupLoader(t)
	node, _ := snowflake.NewNode(3)
	keys := testKeys(node)

	_, err := loader.LoadBatch(context.Background(), uuid.New(), []factdomain.ResolvedFact{
		{Keys: keys, TransactionID: "ORD-1", ProductRef: "SKU-1", Quantity: 2, UnitPrice: 24.99, TotalAmount: 49.98},
	})
	assert.NoError(t, err)

	report, err := loader.LoadBatch(context.Background(), uuid.New(), []factdomain.ResolvedFact{
		{Keys: keys, TransactionID: "ORD-1", ProductRef: "SKU-1", Quantity: 2, UnitPrice: 24.99, TotalAmount: 49.98},
		{Keys: keys, TransactionID: "ORD-3", ProductRef: "SKU-1", Quantity: 3, UnitPrice: 5.00, TotalAmount: 15.00},
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.DuplicatesSkipped)

	var count int64
	assert.NoError(t, db.Model(&factdomain.SalesFact{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestLoadBatchDifferentProductSameTransaction(t *testing.T) {
	loader, db := setupLoader(t)
	node, _ := snowflake.NewNode(3)
	keys := testKeys(node)
	otherProduct := keys
	otherProduct.ProductID = node.Generate()

	// One transaction with two line items is two distinct facts.
	report, err := loader.LoadBatch(context.Background(), uuid.New(), []factdomain.ResolvedFact{
		{Keys: keys, TransactionID: "ORD-1", ProductRef: "SKU-1", Quantity: 1, UnitPrice: 10, TotalAmount: 10},
		{Keys: otherProduct, TransactionID: "ORD-1", ProductRef: "SKU-2", Quantity: 1, UnitPrice: 20, TotalAmount: 20},
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, report.Inserted)

	var count int64
	assert.NoError(t, db.Model(&factdomain.SalesFact{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestLoadBatchMeasureMismatch(t *testing.T) {
	loader, db := setupLoader(t)
	node, _ := snowflake.NewNode(3)
	keys := testKeys(node)

	report, err := loader.LoadBatch(context.Background(), uuid.New(), []factdomain.ResolvedFact{
		{Keys: keys, TransactionID: "ORD-1", ProductRef: "SKU-1", Quantity: 2, UnitPrice: 10.00, TotalAmount: 25.00},
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)
	assert.Len(t, report.MeasureMismatches, 1)

	mismatch := report.MeasureMismatches[0]
	assert.Equal(t, "ORD-1", mismatch.TransactionID)
	assert.Equal(t, 20.00, mismatch.Expected)
	assert.Equal(t, 25.00, mismatch.Actual)

	// Flagged rows are still inserted.
	var count int64
	assert.NoError(t, db.Model(&factdomain.SalesFact{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestLoadBatchToleratesRounding(t *testing.T) {
	loader, _ := setupLoader(t)
	node, _ := snowflake.NewNode(3)
	keys := testKeys(node)

	report, err := loader.LoadBatch(context.Background(), uuid.New(), []factdomain.ResolvedFact{
		{Keys: keys, TransactionID: "ORD-1", ProductRef: "SKU-1", Quantity: 3, UnitPrice: 3.33, TotalAmount: 9.99},
	})
	assert.NoError(t, err)
	assert.Empty(t, report.MeasureMismatches)
}

func TestLoadBatchEmpty(t *testing.T) {
	loader, _ := setupLoader(t)

	report, err := loader.LoadBatch(context.Background(), uuid.New(), nil)
	assert.NoError(t, err)
	assert.Zero(t, report.Inserted)
	assert.Zero(t, report.DuplicatesSkipped)
}

func TestLoadBatchRollsBackOnInsertFailure(t *testing.T) {
	loader, db := setupLoader(t)
	node, _ := snowflake.NewNode(3)
	keys := testKeys(node)

	// Reject the second row below the gorm layer. The failure is not
	// a duplicate, so the whole batch must roll back.
	err := db.Exec(`CREATE TRIGGER reject_oversized_quantity
		BEFORE INSERT ON fact_sales
		WHEN NEW.quantity > 100
		BEGIN SELECT RAISE(ABORT, 'quantity out of range'); END`).Error
	assert.NoError(t, err)

	facts := []factdomain.ResolvedFact{
		{Keys: keys, TransactionID: "ORD-1", ProductRef: "SKU-1", Quantity: 2, UnitPrice: 24.99, TotalAmount: 49.98},
		{Keys: keys, TransactionID: "ORD-2", ProductRef: "SKU-1", Quantity: 500, UnitPrice: 24.99, TotalAmount: 12495},
	}

	report, err := loader.LoadBatch(context.Background(), uuid.New(), facts)
	assert.ErrorIs(t, err, factdomain.ErrFactLoadTransaction)
	assert.Zero(t, report.Inserted)

	// The first row was inserted inside the transaction; the rollback
	// must take it with the failed one.
	var count int64
	assert.NoError(t, db.Model(&factdomain.SalesFact{}).Count(&count).Error)
	assert.Zero(t, count)
}
