package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	batchdomain "github.com/winbalf/retail-data-pipeline/internal/batch/domain"
	"github.com/winbalf/retail-data-pipeline/internal/clock"
	"github.com/winbalf/retail-data-pipeline/internal/config"
	dimensiondomain "github.com/winbalf/retail-data-pipeline/internal/dimension/domain"
	factdomain "github.com/winbalf/retail-data-pipeline/internal/fact/domain"
	"github.com/winbalf/retail-data-pipeline/internal/normalizer"
	normalizerdomain "github.com/winbalf/retail-data-pipeline/internal/normalizer/domain"
	obsmetrics "github.com/winbalf/retail-data-pipeline/internal/observability/metrics"
	"github.com/winbalf/retail-data-pipeline/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Registry *normalizer.Registry
	Resolver dimensiondomain.Resolver
	Loader   factdomain.Loader
	Source   batchdomain.RecordSource
	Pipeline config.Pipeline
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	registry *normalizer.Registry
	resolver dimensiondomain.Resolver
	loader   factdomain.Loader
	source   batchdomain.RecordSource
	sources  []config.SourceConfig
	runs     repository.Repository[batchdomain.PipelineRun]
	metrics  *obsmetrics.Metrics
}

func New(p Params) batchdomain.Controller {
	return &Service{
		log:      p.Log.Named("batch.controller"),
		genID:    p.GenID,
		clock:    p.Clock,
		registry: p.Registry,
		resolver: p.Resolver,
		loader:   p.Loader,
		source:   p.Source,
		sources:  p.Pipeline.Sources,
		runs:     repository.ProvideStore[batchdomain.PipelineRun](p.DB),
		metrics:  p.Metrics,
	}
}

// ProcessPeriod transforms every source's records for one calendar
// date. A failing source never blocks its siblings; the run ends
// FAILED only when every source failed.
func (s *Service) ProcessPeriod(ctx context.Context, period time.Time) (batchdomain.RunReport, error) {
	period = period.UTC().Truncate(24 * time.Hour)
	runUID := uuid.New()
	startedAt := s.clock.Now()

	run := batchdomain.PipelineRun{
		ID:        s.genID.Generate(),
		RunUID:    runUID.String(),
		Period:    datatypes.Date(period),
		Status:    batchdomain.StatusPending,
		StartedAt: startedAt,
	}
	if err := s.runs.Create(ctx, &run); err != nil {
		return batchdomain.RunReport{}, fmt.Errorf("create run log: %w", err)
	}

	report := batchdomain.RunReport{
		RunID:     runUID,
		Period:    period,
		StartedAt: startedAt,
	}

	s.log.Info("processing period",
		zap.String("run_id", runUID.String()),
		zap.String("period", period.Format("2006-01-02")),
		zap.Int("sources", len(s.sources)),
	)

	failed := 0
	for _, src := range s.sources {
		outcome, err := s.processSource(ctx, run.ID, runUID, src, period)
		report.Sources = append(report.Sources, outcome)
		report.RecordsSeen += outcome.RecordsSeen
		report.RecordsMalformed += outcome.RecordsMalformed
		report.DimensionsCreated += outcome.DimensionsCreated
		report.FactsInserted += outcome.FactsInserted
		report.FactsDuplicateSkipped += outcome.FactsDuplicateSkipped
		if outcome.Status == batchdomain.SourceStatusFailed {
			failed++
		}
		if err != nil {
			// Dimension conflicts mean the storage layer broke its
			// atomicity contract: abort the whole run.
			report.Status = batchdomain.StatusFailed
			report.FinishedAt = s.clock.Now()
			s.finishRun(ctx, run.ID, report)
			return report, err
		}
	}

	switch {
	case len(s.sources) > 0 && failed == len(s.sources):
		report.Status = batchdomain.StatusFailed
	case failed > 0:
		report.Status = batchdomain.StatusPartialSuccess
	default:
		report.Status = batchdomain.StatusDone
	}
	report.FinishedAt = s.clock.Now()
	s.finishRun(ctx, run.ID, report)

	s.log.Info("period processed",
		zap.String("run_id", runUID.String()),
		zap.String("status", string(report.Status)),
		zap.Int("records_seen", report.RecordsSeen),
		zap.Int("records_malformed", report.RecordsMalformed),
		zap.Int("dimensions_created", report.DimensionsCreated),
		zap.Int("facts_inserted", report.FactsInserted),
		zap.Int("facts_duplicate_skipped", report.FactsDuplicateSkipped),
	)
	return report, nil
}

func (s *Service) processSource(ctx context.Context, runID snowflake.ID, runUID uuid.UUID, src config.SourceConfig, period time.Time) (batchdomain.SourceOutcome, error) {
	outcome := batchdomain.SourceOutcome{Source: src.Code, Status: batchdomain.SourceStatusLoaded}
	log := s.log.With(zap.String("source", src.Code), zap.String("run_id", runUID.String()))

	s.setRunStatus(ctx, runID, batchdomain.StatusNormalizing)

	raw, err := s.source.Fetch(ctx, src.Code, period)
	if err != nil {
		log.Warn("source fetch failed", zap.Error(err))
		outcome.Status = batchdomain.SourceStatusFailed
		outcome.Error = err.Error()
		return outcome, nil
	}
	outcome.RecordsSeen = len(raw)
	if len(raw) == 0 {
		outcome.Status = batchdomain.SourceStatusEmpty
		return outcome, nil
	}

	norm, err := s.registry.ForSource(src.Code)
	if err != nil {
		log.Warn("no normalizer registered", zap.Error(err))
		outcome.Status = batchdomain.SourceStatusFailed
		outcome.Error = err.Error()
		return outcome, nil
	}

	records := make([]normalizerdomain.CanonicalRecord, 0, len(raw))
	for _, rawRecord := range raw {
		record, err := norm.Normalize(ctx, rawRecord)
		if err != nil {
			// Malformed records are skipped and counted, never abort
			// the batch.
			outcome.RecordsMalformed++
			log.Debug("record skipped", zap.Error(err))
			continue
		}
		records = append(records, record)
	}
	if s.metrics != nil {
		s.metrics.RecordNormalized(ctx, src.Code, int64(len(records)))
		s.metrics.RecordMalformed(ctx, src.Code, int64(outcome.RecordsMalformed))
	}

	s.setRunStatus(ctx, runID, batchdomain.StatusResolving)

	facts := make([]factdomain.ResolvedFact, 0, len(records))
	for _, record := range records {
		keys, created, err := s.resolver.ResolveRecord(ctx, record)
		if err != nil {
			if errors.Is(err, dimensiondomain.ErrDimensionConflict) {
				outcome.Status = batchdomain.SourceStatusFailed
				outcome.Error = err.Error()
				return outcome, err
			}
			log.Warn("dimension resolution failed", zap.Error(err))
			outcome.Status = batchdomain.SourceStatusFailed
			outcome.Error = err.Error()
			return outcome, nil
		}
		outcome.DimensionsCreated += created
		facts = append(facts, factdomain.ResolvedFact{
			Keys:          keys,
			TransactionID: record.TransactionID,
			ProductRef:    record.ProductRef,
			Quantity:      record.Quantity,
			UnitPrice:     record.UnitPrice,
			TotalAmount:   record.TotalAmount,
		})
	}

	s.setRunStatus(ctx, runID, batchdomain.StatusLoading)

	loadReport, err := s.loader.LoadBatch(ctx, runUID, facts)
	if err != nil {
		// The source's batch rolled back whole; siblings continue and
		// the period stays safe to retry.
		log.Error("fact load failed", zap.Error(err))
		outcome.Status = batchdomain.SourceStatusFailed
		outcome.Error = err.Error()
		return outcome, nil
	}
	outcome.FactsInserted = loadReport.Inserted
	outcome.FactsDuplicateSkipped = loadReport.DuplicatesSkipped
	outcome.MeasureMismatches = len(loadReport.MeasureMismatches)
	if s.metrics != nil {
		s.metrics.RecordFactsLoaded(ctx, src.Code, int64(loadReport.Inserted), int64(loadReport.DuplicatesSkipped))
	}

	log.Info("source processed",
		zap.Int("records_seen", outcome.RecordsSeen),
		zap.Int("records_malformed", outcome.RecordsMalformed),
		zap.Int("facts_inserted", outcome.FactsInserted),
		zap.Int("facts_duplicate_skipped", outcome.FactsDuplicateSkipped),
		zap.Int("measure_mismatches", outcome.MeasureMismatches),
	)
	return outcome, nil
}

func (s *Service) setRunStatus(ctx context.Context, runID snowflake.ID, status batchdomain.Status) {
	if err := s.runs.Update(ctx, runID, map[string]any{"status": status}); err != nil {
		s.log.Warn("run status update failed", zap.Error(err))
	}
}

func (s *Service) finishRun(ctx context.Context, runID snowflake.ID, report batchdomain.RunReport) {
	sources := make(datatypes.JSONMap, len(report.Sources))
	for _, outcome := range report.Sources {
		sources[outcome.Source] = map[string]any{
			"status":                  string(outcome.Status),
			"records_seen":            outcome.RecordsSeen,
			"records_malformed":       outcome.RecordsMalformed,
			"dimensions_created":      outcome.DimensionsCreated,
			"facts_inserted":          outcome.FactsInserted,
			"facts_duplicate_skipped": outcome.FactsDuplicateSkipped,
			"measure_mismatches":      outcome.MeasureMismatches,
			"error":                   outcome.Error,
		}
	}
	finishedAt := report.FinishedAt
	err := s.runs.Update(ctx, runID, map[string]any{
		"status":                  report.Status,
		"records_seen":            report.RecordsSeen,
		"records_malformed":       report.RecordsMalformed,
		"dimensions_created":      report.DimensionsCreated,
		"facts_inserted":          report.FactsInserted,
		"facts_duplicate_skipped": report.FactsDuplicateSkipped,
		"sources":                 sources,
		"finished_at":             finishedAt,
	})
	if err != nil {
		s.log.Warn("run log update failed", zap.Error(err))
	}
}
