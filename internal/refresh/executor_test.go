package refresh

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	refreshdomain "github.com/winbalf/retail-data-pipeline/internal/refresh/domain"
)

func TestValidateViewName(t *testing.T) {
	valid := []string{"mv_daily_sales_summary", "MV_UPPER", "_private", "v2"}
	for _, name := range valid {
		assert.NoError(t, validateViewName(name), name)
	}

	invalid := []string{"", "2fast", "name; DROP TABLE fact_sales", "a-b", "a b", `a"b`}
	for _, name := range invalid {
		assert.ErrorIs(t, validateViewName(name), refreshdomain.ErrInvalidViewName, name)
	}
}

func TestRefreshRejectsBadViewNameBeforeSQL(t *testing.T) {
	executor := &GormExecutor{}

	err := executor.RefreshConcurrent(context.Background(), "bad name")
	assert.ErrorIs(t, err, refreshdomain.ErrInvalidViewName)

	err = executor.RefreshExclusive(context.Background(), "bad name")
	assert.ErrorIs(t, err, refreshdomain.ErrInvalidViewName)

	_, err = executor.RowCount(context.Background(), "bad name")
	assert.ErrorIs(t, err, refreshdomain.ErrInvalidViewName)
}

func TestIsConcurrentUnsupported(t *testing.T) {
	assert.True(t, isConcurrentUnsupported(&pgconn.PgError{Code: pgFeatureNotSupported}))
	assert.True(t, isConcurrentUnsupported(&pgconn.PgError{Code: pgObjectNotInUse}))
	assert.False(t, isConcurrentUnsupported(&pgconn.PgError{Code: "42P01"}))
	assert.False(t, isConcurrentUnsupported(assert.AnError))
}
