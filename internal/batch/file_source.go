package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	batchdomain "github.com/winbalf/retail-data-pipeline/internal/batch/domain"
	"github.com/winbalf/retail-data-pipeline/internal/config"
	normalizerdomain "github.com/winbalf/retail-data-pipeline/internal/normalizer/domain"
)

// FileRecordSource reads raw partitions from the local filesystem
// using the same key layout the object store uses:
// <root>/<source>/year=YYYY/month=MM/day=DD/sales_data.json.
// It stands in for the object-store fetch collaborator in local runs
// and tests.
type FileRecordSource struct {
	root string
}

func NewFileRecordSource(cfg config.Config) batchdomain.RecordSource {
	return &FileRecordSource{root: cfg.RawDataDir}
}

func (s *FileRecordSource) Fetch(_ context.Context, sourceCode string, period time.Time) ([]normalizerdomain.RawRecord, error) {
	path := filepath.Join(
		s.root,
		sourceCode,
		fmt.Sprintf("year=%04d", period.Year()),
		fmt.Sprintf("month=%02d", int(period.Month())),
		fmt.Sprintf("day=%02d", period.Day()),
		"sales_data.json",
	)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No partition for this (source, date) is an empty day,
			// not a failure.
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s: %v", batchdomain.ErrSourceUnavailable, sourceCode, err)
	}

	var records []normalizerdomain.RawRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", batchdomain.ErrSourceUnavailable, sourceCode, err)
	}
	return records, nil
}
