package refresh

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgconn"
	refreshdomain "github.com/winbalf/retail-data-pipeline/internal/refresh/domain"
	"gorm.io/gorm"
)

// Postgres rejects REFRESH ... CONCURRENTLY with these codes when the
// view lacks a unique index or has never been populated.
const (
	pgFeatureNotSupported = "0A000"
	pgObjectNotInUse      = "55000"
)

var viewNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// GormExecutor issues materialized view refreshes over the warehouse
// connection.
type GormExecutor struct {
	db *gorm.DB
}

func NewGormExecutor(db *gorm.DB) refreshdomain.Executor {
	return &GormExecutor{db: db}
}

func (e *GormExecutor) ListViews(ctx context.Context) ([]string, error) {
	var views []string
	err := e.db.WithContext(ctx).
		Raw(`SELECT matviewname FROM pg_matviews WHERE schemaname = current_schema() ORDER BY matviewname`).
		Scan(&views).Error
	if err != nil {
		return nil, err
	}
	return views, nil
}

func (e *GormExecutor) RefreshConcurrent(ctx context.Context, view string) error {
	if err := validateViewName(view); err != nil {
		return err
	}
	err := e.db.WithContext(ctx).Exec(fmt.Sprintf(`REFRESH MATERIALIZED VIEW CONCURRENTLY %s`, view)).Error
	if err != nil && isConcurrentUnsupported(err) {
		return fmt.Errorf("%w: %s: %v", refreshdomain.ErrConcurrentUnsupported, view, err)
	}
	return err
}

func (e *GormExecutor) RefreshExclusive(ctx context.Context, view string) error {
	if err := validateViewName(view); err != nil {
		return err
	}
	return e.db.WithContext(ctx).Exec(fmt.Sprintf(`REFRESH MATERIALIZED VIEW %s`, view)).Error
}

func (e *GormExecutor) RowCount(ctx context.Context, view string) (int64, error) {
	if err := validateViewName(view); err != nil {
		return 0, err
	}
	var count int64
	err := e.db.WithContext(ctx).Raw(fmt.Sprintf(`SELECT COUNT(*) FROM %s`, view)).Scan(&count).Error
	return count, err
}

// View names are interpolated into DDL, so they must be plain
// identifiers.
func validateViewName(view string) error {
	if !viewNamePattern.MatchString(view) {
		return fmt.Errorf("%w: %q", refreshdomain.ErrInvalidViewName, view)
	}
	return nil
}

func isConcurrentUnsupported(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgFeatureNotSupported || pgErr.Code == pgObjectNotInUse
	}
	return false
}
