package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/winbalf/retail-data-pipeline/internal/cache"
	"github.com/winbalf/retail-data-pipeline/internal/clock"
	dimensiondomain "github.com/winbalf/retail-data-pipeline/internal/dimension/domain"
	normalizerdomain "github.com/winbalf/retail-data-pipeline/internal/normalizer/domain"
	obsmetrics "github.com/winbalf/retail-data-pipeline/internal/observability/metrics"
	pkgdb "github.com/winbalf/retail-data-pipeline/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// conflictRetries bounds the insert-or-fetch loop. The atomic upsert
// makes more than one round trip a storage anomaly, not a normal race.
const conflictRetries = 3

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Cache   cache.DimensionKeyCache
	Clock   clock.Clock
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	cache   cache.DimensionKeyCache
	clock   clock.Clock
	metrics *obsmetrics.Metrics
}

func New(p Params) dimensiondomain.Resolver {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("dimension.resolver"),
		genID:   p.GenID,
		cache:   p.Cache,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

func (s *Service) ResolveRecord(ctx context.Context, record normalizerdomain.CanonicalRecord) (dimensiondomain.ResolvedKeys, int, error) {
	var keys dimensiondomain.ResolvedKeys
	created := 0

	dateID, isNew, err := s.ResolveDate(ctx, record.OccurredAt)
	if err != nil {
		return keys, created, err
	}
	keys.DateID = dateID
	created += countNew(isNew)

	productID, isNew, err := s.ResolveProduct(ctx, record.ProductRef, record.ProductName, record.Category)
	if err != nil {
		return keys, created, err
	}
	keys.ProductID = productID
	created += countNew(isNew)

	sourceID, isNew, err := s.ResolveSource(ctx, record.SourceCode, "")
	if err != nil {
		return keys, created, err
	}
	keys.SourceID = sourceID
	created += countNew(isNew)

	customerID, isNew, err := s.ResolveCustomer(ctx, record.CustomerRef)
	if err != nil {
		return keys, created, err
	}
	keys.CustomerID = customerID
	created += countNew(isNew)

	storeID, isNew, err := s.ResolveStore(ctx, record.StoreRef)
	if err != nil {
		return keys, created, err
	}
	keys.StoreID = storeID
	created += countNew(isNew)

	return keys, created, nil
}

// ResolveDate derives every attribute from the calendar date. Input
// records never supply date attributes.
func (s *Service) ResolveDate(ctx context.Context, at time.Time) (snowflake.ID, bool, error) {
	if at.IsZero() {
		return 0, false, fmt.Errorf("%w: zero date", dimensiondomain.ErrInvalidNaturalKey)
	}
	day := at.UTC().Truncate(24 * time.Hour)
	naturalKey := day.Format("2006-01-02")

	if hit, ok := s.cache.Get(string(dimensiondomain.KindDate), naturalKey); ok {
		return hit.ID, false, nil
	}

	row := deriveDate(s.genID.Generate(), day)
	id, isNew, err := s.resolveOrCreate(ctx, resolveSpec{
		kind:       dimensiondomain.KindDate,
		naturalKey: naturalKey,
		insert:     &row,
		keyColumn:  "date",
		keyValue:   row.Date,
		insertedID: row.ID,
		fetchID: func(tx *gorm.DB) (snowflake.ID, error) {
			var existing dimensiondomain.DateDim
			if err := tx.Where("date = ?", row.Date).First(&existing).Error; err != nil {
				return 0, err
			}
			return existing.ID, nil
		},
	})
	if err != nil {
		return 0, false, err
	}
	s.cache.Set(string(dimensiondomain.KindDate), naturalKey, cache.DimensionKey{ID: id})
	return id, isNew, nil
}

func (s *Service) ResolveProduct(ctx context.Context, sku, name, category string) (snowflake.ID, bool, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return 0, false, fmt.Errorf("%w: empty product sku", dimensiondomain.ErrInvalidNaturalKey)
	}
	fingerprint := name + "\x1f" + category

	if hit, ok := s.cache.Get(string(dimensiondomain.KindProduct), sku); ok {
		if hit.Fingerprint == fingerprint {
			return hit.ID, false, nil
		}
		if err := s.overwriteProduct(ctx, hit.ID, name, category); err != nil {
			return 0, false, err
		}
		s.cache.Set(string(dimensiondomain.KindProduct), sku, cache.DimensionKey{ID: hit.ID, Fingerprint: fingerprint})
		return hit.ID, false, nil
	}

	now := s.clock.Now()
	row := dimensiondomain.ProductDim{
		ID:        s.genID.Generate(),
		SKU:       sku,
		Name:      name,
		Category:  category,
		CreatedAt: now,
		UpdatedAt: now,
	}
	id, isNew, err := s.resolveOrCreate(ctx, resolveSpec{
		kind:       dimensiondomain.KindProduct,
		naturalKey: sku,
		insert:     &row,
		keyColumn:  "product_sku",
		keyValue:   sku,
		insertedID: row.ID,
		fetchID: func(tx *gorm.DB) (snowflake.ID, error) {
			var existing dimensiondomain.ProductDim
			if err := tx.Where("product_sku = ?", sku).First(&existing).Error; err != nil {
				return 0, err
			}
			// Last write wins on mutable attributes.
			if existing.Name != name || existing.Category != category {
				if err := s.overwriteProduct(ctx, existing.ID, name, category); err != nil {
					return 0, err
				}
			}
			return existing.ID, nil
		},
	})
	if err != nil {
		return 0, false, err
	}
	s.cache.Set(string(dimensiondomain.KindProduct), sku, cache.DimensionKey{ID: id, Fingerprint: fingerprint})
	return id, isNew, nil
}

func (s *Service) ResolveCustomer(ctx context.Context, externalID string) (*snowflake.ID, bool, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		// Optional dimension: no reference is a valid resolved state.
		return nil, false, nil
	}

	if hit, ok := s.cache.Get(string(dimensiondomain.KindCustomer), externalID); ok {
		id := hit.ID
		return &id, false, nil
	}

	row := dimensiondomain.CustomerDim{
		ID:         s.genID.Generate(),
		ExternalID: externalID,
		CreatedAt:  s.clock.Now(),
	}
	id, isNew, err := s.resolveOrCreate(ctx, resolveSpec{
		kind:       dimensiondomain.KindCustomer,
		naturalKey: externalID,
		insert:     &row,
		keyColumn:  "customer_external_id",
		keyValue:   externalID,
		insertedID: row.ID,
		fetchID: func(tx *gorm.DB) (snowflake.ID, error) {
			var existing dimensiondomain.CustomerDim
			if err := tx.Where("customer_external_id = ?", externalID).First(&existing).Error; err != nil {
				return 0, err
			}
			return existing.ID, nil
		},
	})
	if err != nil {
		return nil, false, err
	}
	s.cache.Set(string(dimensiondomain.KindCustomer), externalID, cache.DimensionKey{ID: id})
	return &id, isNew, nil
}

func (s *Service) ResolveStore(ctx context.Context, externalID string) (*snowflake.ID, bool, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, false, nil
	}

	if hit, ok := s.cache.Get(string(dimensiondomain.KindStore), externalID); ok {
		id := hit.ID
		return &id, false, nil
	}

	row := dimensiondomain.StoreDim{
		ID:         s.genID.Generate(),
		ExternalID: externalID,
		CreatedAt:  s.clock.Now(),
	}
	id, isNew, err := s.resolveOrCreate(ctx, resolveSpec{
		kind:       dimensiondomain.KindStore,
		naturalKey: externalID,
		insert:     &row,
		keyColumn:  "store_external_id",
		keyValue:   externalID,
		insertedID: row.ID,
		fetchID: func(tx *gorm.DB) (snowflake.ID, error) {
			var existing dimensiondomain.StoreDim
			if err := tx.Where("store_external_id = ?", externalID).First(&existing).Error; err != nil {
				return 0, err
			}
			return existing.ID, nil
		},
	})
	if err != nil {
		return nil, false, err
	}
	s.cache.Set(string(dimensiondomain.KindStore), externalID, cache.DimensionKey{ID: id})
	return &id, isNew, nil
}

func (s *Service) ResolveSource(ctx context.Context, code, name string) (snowflake.ID, bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, false, fmt.Errorf("%w: empty source code", dimensiondomain.ErrInvalidNaturalKey)
	}

	if hit, ok := s.cache.Get(string(dimensiondomain.KindSource), code); ok {
		return hit.ID, false, nil
	}

	row := dimensiondomain.SourceDim{
		ID:        s.genID.Generate(),
		Code:      code,
		Name:      name,
		CreatedAt: s.clock.Now(),
	}
	id, isNew, err := s.resolveOrCreate(ctx, resolveSpec{
		kind:       dimensiondomain.KindSource,
		naturalKey: code,
		insert:     &row,
		keyColumn:  "source_code",
		keyValue:   code,
		insertedID: row.ID,
		fetchID: func(tx *gorm.DB) (snowflake.ID, error) {
			var existing dimensiondomain.SourceDim
			if err := tx.Where("source_code = ?", code).First(&existing).Error; err != nil {
				return 0, err
			}
			return existing.ID, nil
		},
	})
	if err != nil {
		return 0, false, err
	}
	s.cache.Set(string(dimensiondomain.KindSource), code, cache.DimensionKey{ID: id})
	return id, isNew, nil
}

type resolveSpec struct {
	kind       dimensiondomain.Kind
	naturalKey string
	insert     any
	keyColumn  string
	keyValue   any
	insertedID snowflake.ID
	fetchID    func(tx *gorm.DB) (snowflake.ID, error)
}

// resolveOrCreate is the single atomic insert-or-return-existing
// primitive: insert with ON CONFLICT DO NOTHING, and when the row
// already existed, fetch it by natural key. A natural key that can
// neither be inserted nor fetched within the retry limit violates the
// storage layer's atomicity contract.
func (s *Service) resolveOrCreate(ctx context.Context, spec resolveSpec) (snowflake.ID, bool, error) {
	tx := s.db.WithContext(ctx)
	for attempt := 0; attempt < conflictRetries; attempt++ {
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: spec.keyColumn}},
			DoNothing: true,
		}).Create(spec.insert)
		if result.Error != nil {
			// A duplicate-key error despite DO NOTHING means the
			// conflict target did not match the violated index; the
			// row exists, so fall through to the fetch.
			if !pkgdb.IsDuplicateKeyErr(result.Error) {
				return 0, false, result.Error
			}
		}
		if result.RowsAffected > 0 {
			if s.metrics != nil {
				s.metrics.RecordDimensionCreated(ctx, string(spec.kind))
			}
			return spec.insertedID, true, nil
		}

		id, err := spec.fetchID(tx)
		if err == nil {
			return id, false, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, err
		}
		// Insert reported a conflict but the row is gone: retry.
		s.log.Warn("dimension resolve raced, retrying",
			zap.String("kind", string(spec.kind)),
			zap.String("natural_key", spec.naturalKey),
			zap.Int("attempt", attempt+1),
		)
	}
	return 0, false, fmt.Errorf("%w: %s %q", dimensiondomain.ErrDimensionConflict, spec.kind, spec.naturalKey)
}

func (s *Service) overwriteProduct(ctx context.Context, id snowflake.ID, name, category string) error {
	return s.db.WithContext(ctx).
		Model(&dimensiondomain.ProductDim{}).
		Where("product_id = ?", id).
		Updates(map[string]any{
			"product_name": name,
			"category":     category,
			"updated_at":   s.clock.Now(),
		}).Error
}

func deriveDate(id snowflake.ID, day time.Time) dimensiondomain.DateDim {
	_, isoWeek := day.ISOWeek()
	// Monday = 1 ... Sunday = 7.
	dayOfWeek := int(day.Weekday()+6)%7 + 1
	return dimensiondomain.DateDim{
		ID:        id,
		Date:      datatypes.Date(day),
		Year:      day.Year(),
		Quarter:   (int(day.Month())-1)/3 + 1,
		Month:     int(day.Month()),
		Week:      isoWeek,
		Day:       day.Day(),
		DayOfWeek: dayOfWeek,
		DayName:   day.Weekday().String(),
		IsWeekend: dayOfWeek >= 6,
	}
}

func countNew(isNew bool) int {
	if isNew {
		return 1
	}
	return 0
}
