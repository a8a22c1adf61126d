package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	recordsNormalized metric.Int64Counter
	recordsMalformed  metric.Int64Counter
	dimensionsCreated metric.Int64Counter
	factsInserted     metric.Int64Counter
	factsDuplicate    metric.Int64Counter
	viewRefresh       metric.Int64Counter
	refreshDuration   metric.Float64Histogram
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the pipeline metric instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "retail-pipeline"
	}
	meter := provider.Meter(name)

	recordsNormalized, err := meter.Int64Counter("retail_records_normalized_total")
	if err != nil {
		return nil, err
	}
	recordsMalformed, err := meter.Int64Counter("retail_records_malformed_total")
	if err != nil {
		return nil, err
	}
	dimensionsCreated, err := meter.Int64Counter("retail_dimensions_created_total")
	if err != nil {
		return nil, err
	}
	factsInserted, err := meter.Int64Counter("retail_facts_inserted_total")
	if err != nil {
		return nil, err
	}
	factsDuplicate, err := meter.Int64Counter("retail_facts_duplicate_total")
	if err != nil {
		return nil, err
	}
	viewRefresh, err := meter.Int64Counter("retail_view_refresh_total")
	if err != nil {
		return nil, err
	}
	refreshDuration, err := meter.Float64Histogram("retail_view_refresh_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		recordsNormalized: recordsNormalized,
		recordsMalformed:  recordsMalformed,
		dimensionsCreated: dimensionsCreated,
		factsInserted:     factsInserted,
		factsDuplicate:    factsDuplicate,
		viewRefresh:       viewRefresh,
		refreshDuration:   refreshDuration,
	}, nil
}

// RecordNormalized counts records successfully normalized for a source.
func (m *Metrics) RecordNormalized(ctx context.Context, sourceCode string, count int64) {
	if m == nil || count == 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("source", strings.TrimSpace(sourceCode)))
	m.recordsNormalized.Add(ctx, count, metric.WithAttributes(attrs...))
}

// RecordMalformed counts records skipped as malformed for a source.
func (m *Metrics) RecordMalformed(ctx context.Context, sourceCode string, count int64) {
	if m == nil || count == 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("source", strings.TrimSpace(sourceCode)))
	m.recordsMalformed.Add(ctx, count, metric.WithAttributes(attrs...))
}

// RecordDimensionCreated counts new dimension rows per dimension kind.
func (m *Metrics) RecordDimensionCreated(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("dimension", strings.TrimSpace(kind)))
	m.dimensionsCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordFactsLoaded counts inserted and duplicate-skipped fact rows.
func (m *Metrics) RecordFactsLoaded(ctx context.Context, sourceCode string, inserted, duplicates int64) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("source", strings.TrimSpace(sourceCode)))
	if inserted > 0 {
		m.factsInserted.Add(ctx, inserted, metric.WithAttributes(attrs...))
	}
	if duplicates > 0 {
		m.factsDuplicate.Add(ctx, duplicates, metric.WithAttributes(attrs...))
	}
}

// RecordViewRefresh counts one refresh attempt outcome and its duration.
func (m *Metrics) RecordViewRefresh(ctx context.Context, view, mode, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("view", strings.TrimSpace(view)),
		attribute.String("mode", strings.TrimSpace(mode)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.viewRefresh.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.refreshDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"source":    {},
	"dimension": {},
	"view":      {},
	"mode":      {},
	"status":    {},
}

// FilterAttributes drops labels outside the allowlist to keep
// cardinality bounded.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		if attr.Value.AsString() == "" {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
