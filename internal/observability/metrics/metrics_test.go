package metrics

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("source", "retailer_1"),
		attribute.String("transaction_id", "ORD-1"),
		attribute.String("customer_id", "CUST-7"),
	)
	if len(attrs) != 1 {
		t.Fatalf("expected 1 attribute, got %d", len(attrs))
	}
	if attrs[0].Key != "source" {
		t.Fatalf("expected source to be retained, got %s", attrs[0].Key)
	}
}

func TestFilterAttributesDropsEmptyValues(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("source", ""),
		attribute.String("view", "mv_daily_sales_summary"),
	)
	if len(attrs) != 1 {
		t.Fatalf("expected 1 attribute, got %d", len(attrs))
	}
	if attrs[0].Key != "view" {
		t.Fatalf("expected view to be retained, got %s", attrs[0].Key)
	}
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	ctx := context.Background()
	var m *Metrics

	m.RecordNormalized(ctx, "retailer_1", 10)
	m.RecordMalformed(ctx, "retailer_1", 1)
	m.RecordDimensionCreated(ctx, "product")
	m.RecordFactsLoaded(ctx, "retailer_1", 5, 2)
	m.RecordViewRefresh(ctx, "mv_daily_sales_summary", "concurrent", "SUCCESS", time.Second)
}

func TestNewRegistersInstruments(t *testing.T) {
	m, err := New(Config{}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}

	ctx := context.Background()
	m.RecordNormalized(ctx, "retailer_1", 3)
	m.RecordFactsLoaded(ctx, "retailer_1", 3, 0)
	m.RecordViewRefresh(ctx, "mv_daily_sales_summary", "exclusive", "FAILED", 250*time.Millisecond)
}
