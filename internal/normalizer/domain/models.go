package domain

import (
	"context"
	"errors"
	"time"
)

// RawRecord is one record exactly as a retailer API returned it.
type RawRecord map[string]any

// CanonicalRecord is the common shape every source record is
// normalized into. It is immutable once produced.
type CanonicalRecord struct {
	SourceCode    string
	TransactionID string
	OccurredAt    time.Time
	CustomerRef   string
	StoreRef      string
	ProductRef    string
	ProductName   string
	Category      string
	Quantity      int64
	UnitPrice     float64
	TotalAmount   float64
	Raw           RawRecord
}

// Normalizer maps one retailer's record shape to the canonical model.
// Implementations are pure: no side effects, deterministic output.
type Normalizer interface {
	SourceCode() string
	Normalize(ctx context.Context, raw RawRecord) (CanonicalRecord, error)
}

var (
	ErrMalformedRecord = errors.New("malformed_record")
	ErrUnknownSource   = errors.New("unknown_source")
)
