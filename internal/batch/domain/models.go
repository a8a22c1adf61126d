package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	normalizerdomain "github.com/winbalf/retail-data-pipeline/internal/normalizer/domain"
	"gorm.io/datatypes"
)

// Status is the per-period state of a transformation run.
type Status string

const (
	StatusPending        Status = "PENDING"
	StatusNormalizing    Status = "NORMALIZING"
	StatusResolving      Status = "RESOLVING"
	StatusLoading        Status = "LOADING"
	StatusDone           Status = "DONE"
	StatusPartialSuccess Status = "PARTIAL_SUCCESS"
	StatusFailed         Status = "FAILED"
)

// SourceStatus is the outcome for one source within a run.
type SourceStatus string

const (
	SourceStatusLoaded SourceStatus = "loaded"
	SourceStatusEmpty  SourceStatus = "empty"
	SourceStatusFailed SourceStatus = "failed"
)

// RecordSource hands the controller the already-fetched raw records
// for one (source, period) partition. The production implementation
// wraps the object-store fetch collaborator and lives outside this
// core; ErrSourceUnavailable marks a partition that cannot be read.
type RecordSource interface {
	Fetch(ctx context.Context, sourceCode string, period time.Time) ([]normalizerdomain.RawRecord, error)
}

var ErrSourceUnavailable = errors.New("source_unavailable")

// SourceOutcome reports one source's share of a run.
type SourceOutcome struct {
	Source                string       `json:"source"`
	Status                SourceStatus `json:"status"`
	RecordsSeen           int          `json:"records_seen"`
	RecordsMalformed      int          `json:"records_malformed"`
	DimensionsCreated     int          `json:"dimensions_created"`
	FactsInserted         int          `json:"facts_inserted"`
	FactsDuplicateSkipped int          `json:"facts_duplicate_skipped"`
	MeasureMismatches     int          `json:"measure_mismatches"`
	Error                 string       `json:"error,omitempty"`
}

// RunReport is the structured summary handed back to the scheduler.
type RunReport struct {
	RunID                 uuid.UUID
	Period                time.Time
	Status                Status
	RecordsSeen           int
	RecordsMalformed      int
	DimensionsCreated     int
	FactsInserted         int
	FactsDuplicateSkipped int
	Sources               []SourceOutcome
	StartedAt             time.Time
	FinishedAt            time.Time
}

// PipelineRun is the persisted run log row.
type PipelineRun struct {
	ID                    snowflake.ID      `gorm:"column:id;primaryKey"`
	RunUID                string            `gorm:"column:run_uid;not null;index"`
	Period                datatypes.Date    `gorm:"column:period;not null;index"`
	Status                Status            `gorm:"column:status;not null"`
	RecordsSeen           int               `gorm:"not null;default:0"`
	RecordsMalformed      int               `gorm:"not null;default:0"`
	DimensionsCreated     int               `gorm:"not null;default:0"`
	FactsInserted         int               `gorm:"not null;default:0"`
	FactsDuplicateSkipped int               `gorm:"not null;default:0"`
	Sources               datatypes.JSONMap `gorm:"type:jsonb"`
	StartedAt             time.Time         `gorm:"not null"`
	FinishedAt            *time.Time
}

func (PipelineRun) TableName() string { return "pipeline_runs" }

// Controller runs the transformation for one processing period.
type Controller interface {
	ProcessPeriod(ctx context.Context, period time.Time) (RunReport, error)
}
