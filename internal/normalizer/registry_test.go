package normalizer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/winbalf/retail-data-pipeline/internal/normalizer/domain"
)

func TestRegistryDispatch(t *testing.T) {
	registry := NewRegistry()

	for _, code := range []string{"retailer_1", "retailer_2", "retailer_3"} {
		norm, err := registry.ForSource(code)
		assert.NoError(t, err)
		assert.Equal(t, code, norm.SourceCode())
	}

	_, err := registry.ForSource("retailer_99")
	assert.ErrorIs(t, err, domain.ErrUnknownSource)
}

func TestNormalizeVariants(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry()

	tests := []struct {
		name   string
		source string
		raw    domain.RawRecord
	}{
		{
			name:   "order centric",
			source: "retailer_1",
			raw: domain.RawRecord{
				"order_id":     "ORD-1001",
				"sku":          "SKU-1",
				"product_name": "Wireless Mouse",
				"category":     "Electronics",
				"quantity":     float64(2),
				"price":        24.99,
				"total":        49.98,
				"order_date":   "2026-03-15",
				"customer_id":  "CUST-7",
				"store_id":     "STORE-2",
			},
		},
		{
			name:   "pos transaction",
			source: "retailer_2",
			raw: domain.RawRecord{
				"transaction_number": "TXN-2002",
				"item_code":          "SKU-1",
				"item_name":          "Wireless Mouse",
				"department":         "Electronics",
				"qty":                "2",
				"unit_cost":          "24.99",
				"amount":             "49.98",
				"date":               "2026-03-15 10:30:00",
				"member_id":          "M-11",
				"location_id":        "L-4",
			},
		},
		{
			name:   "analytics export",
			source: "retailer_3",
			raw: domain.RawRecord{
				"sale_id":        "SALE-3003",
				"product_code":   "SKU-1",
				"name":           "Wireless Mouse",
				"type":           "Electronics",
				"count":          2,
				"price_per_unit": 24.99,
				"revenue":        49.98,
				"timestamp":      "2026-03-15T10:30:00Z",
				"buyer_id":       "B-9",
				"outlet_id":      "O-1",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			norm, err := registry.ForSource(tc.source)
			assert.NoError(t, err)

			record, err := norm.Normalize(ctx, tc.raw)
			assert.NoError(t, err)

			assert.Equal(t, tc.source, record.SourceCode)
			assert.Equal(t, "SKU-1", record.ProductRef)
			assert.Equal(t, "Wireless Mouse", record.ProductName)
			assert.Equal(t, "Electronics", record.Category)
			assert.Equal(t, int64(2), record.Quantity)
			assert.Equal(t, 24.99, record.UnitPrice)
			assert.Equal(t, 49.98, record.TotalAmount)
			assert.Equal(t, time.March, record.OccurredAt.Month())
			assert.Equal(t, 15, record.OccurredAt.Day())
			assert.NotEmpty(t, record.TransactionID)
			assert.NotEmpty(t, record.CustomerRef)
			assert.NotEmpty(t, record.StoreRef)
		})
	}
}

func TestNormalizeMalformed(t *testing.T) {
	ctx := context.Background()
	norm := NewRetailer1()

	valid := func() domain.RawRecord {
		return domain.RawRecord{
			"order_id":     "ORD-1",
			"sku":          "SKU-1",
			"product_name": "Mouse",
			"quantity":     float64(1),
			"price":        9.99,
			"total":        9.99,
			"order_date":   "2026-03-15",
		}
	}

	tests := []struct {
		name   string
		mutate func(domain.RawRecord)
	}{
		{"missing transaction id", func(r domain.RawRecord) { delete(r, "order_id") }},
		{"missing sku", func(r domain.RawRecord) { delete(r, "sku") }},
		{"blank sku", func(r domain.RawRecord) { r["sku"] = "  " }},
		{"unparseable quantity", func(r domain.RawRecord) { r["quantity"] = "two" }},
		{"fractional quantity", func(r domain.RawRecord) { r["quantity"] = 1.5 }},
		{"zero quantity", func(r domain.RawRecord) { r["quantity"] = float64(0) }},
		{"negative quantity", func(r domain.RawRecord) { r["quantity"] = float64(-2) }},
		{"negative price", func(r domain.RawRecord) { r["price"] = -1.0 }},
		{"negative total", func(r domain.RawRecord) { r["total"] = -5.0 }},
		{"unparseable date", func(r domain.RawRecord) { r["order_date"] = "15/03/2026" }},
		{"null price", func(r domain.RawRecord) { r["price"] = nil }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw := valid()
			tc.mutate(raw)

			_, err := norm.Normalize(ctx, raw)
			assert.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrMalformedRecord), "want ErrMalformedRecord, got %v", err)
		})
	}
}

func TestNormalizeOptionalFieldsAbsent(t *testing.T) {
	ctx := context.Background()
	norm := NewRetailer1()

	record, err := norm.Normalize(ctx, domain.RawRecord{
		"order_id":     "ORD-2",
		"sku":          "SKU-2",
		"product_name": "Keyboard",
		"quantity":     float64(1),
		"price":        59.00,
		"total":        59.00,
		"order_date":   "2026-03-16",
	})
	assert.NoError(t, err)
	assert.Empty(t, record.CustomerRef)
	assert.Empty(t, record.StoreRef)
	assert.Empty(t, record.Category)
}

func TestNormalizeNumericCoercion(t *testing.T) {
	ctx := context.Background()
	norm := NewRetailer2()

	record, err := norm.Normalize(ctx, domain.RawRecord{
		"transaction_number": "TXN-5",
		"item_code":          "SKU-5",
		"item_name":          "Charger",
		"qty":                float64(3),
		"unit_cost":          10,
		"amount":             " 30.00 ",
		"date":               "2026-03-16T08:00:00Z",
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(3), record.Quantity)
	assert.Equal(t, 10.0, record.UnitPrice)
	assert.Equal(t, 30.0, record.TotalAmount)
}
