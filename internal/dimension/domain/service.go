package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	normalizerdomain "github.com/winbalf/retail-data-pipeline/internal/normalizer/domain"
)

// Resolver maps natural keys to stable surrogate keys, creating
// dimension rows lazily and overwriting mutable attributes on every
// encounter (SCD1).
type Resolver interface {
	// ResolveRecord resolves every dimension a canonical record
	// references. The int is the number of dimension rows created.
	ResolveRecord(ctx context.Context, record normalizerdomain.CanonicalRecord) (ResolvedKeys, int, error)

	ResolveDate(ctx context.Context, at time.Time) (snowflake.ID, bool, error)
	ResolveProduct(ctx context.Context, sku, name, category string) (snowflake.ID, bool, error)
	ResolveCustomer(ctx context.Context, externalID string) (*snowflake.ID, bool, error)
	ResolveStore(ctx context.Context, externalID string) (*snowflake.ID, bool, error)
	ResolveSource(ctx context.Context, code, name string) (snowflake.ID, bool, error)
}

var (
	// ErrDimensionConflict signals the bounded insert-or-fetch retry
	// was exhausted: the storage layer's atomic upsert assumption is
	// violated and the batch must abort.
	ErrDimensionConflict = errors.New("dimension_conflict")

	ErrInvalidNaturalKey = errors.New("invalid_natural_key")
)
