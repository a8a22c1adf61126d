package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	batchdomain "github.com/winbalf/retail-data-pipeline/internal/batch/domain"
	"github.com/winbalf/retail-data-pipeline/internal/config"
)

func writePartition(t *testing.T, root, source string, period time.Time, payload string) {
	t.Helper()
	dir := filepath.Join(root, source, "year=2026", "month=03", "day=15")
	assert.NoError(t, os.MkdirAll(dir, 0o755))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "sales_data.json"), []byte(payload), 0o644))
}

func TestFileRecordSourceReadsPartition(t *testing.T) {
	root := t.TempDir()
	period := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	writePartition(t, root, "retailer_1", period, `[
		{"order_id": "ORD-1", "sku": "SKU-1", "quantity": 2},
		{"order_id": "ORD-2", "sku": "SKU-2", "quantity": 1}
	]`)

	source := NewFileRecordSource(config.Config{RawDataDir: root})
	records, err := source.Fetch(context.Background(), "retailer_1", period)
	assert.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, "ORD-1", records[0]["order_id"])
}

func TestFileRecordSourceMissingPartitionIsEmpty(t *testing.T) {
	source := NewFileRecordSource(config.Config{RawDataDir: t.TempDir()})

	records, err := source.Fetch(context.Background(), "retailer_1", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestFileRecordSourceBadPayload(t *testing.T) {
	root := t.TempDir()
	period := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	writePartition(t, root, "retailer_1", period, `{"not": "an array"}`)

	source := NewFileRecordSource(config.Config{RawDataDir: root})
	_, err := source.Fetch(context.Background(), "retailer_1", period)
	assert.ErrorIs(t, err, batchdomain.ErrSourceUnavailable)
}
