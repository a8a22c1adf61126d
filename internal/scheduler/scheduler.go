package scheduler

import (
	"context"
	"errors"
	"time"

	batchdomain "github.com/winbalf/retail-data-pipeline/internal/batch/domain"
	"github.com/winbalf/retail-data-pipeline/internal/clock"
	"github.com/winbalf/retail-data-pipeline/internal/refresh"
	"github.com/winbalf/retail-data-pipeline/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler missing required dependency")

// Config controls how often the scheduler polls for unprocessed
// periods.
type Config struct {
	RunInterval time.Duration
	// Lag is how far behind wall clock the processed period sits.
	// One day means "process yesterday", matching the upstream
	// retailers' overnight exports.
	Lag time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Hour,
		Lag:         24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.Lag <= 0 {
		c.Lag = defaults.Lag
	}
	return c
}

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	Controller   batchdomain.Controller
	Orchestrator *refresh.Orchestrator
	Config       Config `optional:"true"`
}

// Scheduler drives the pipeline on a fixed cadence: each tick it
// processes the lagged period unless a completed run for it already
// exists, then refreshes the aggregate views.
type Scheduler struct {
	log          *zap.Logger
	cfg          Config
	clock        clock.Clock
	controller   batchdomain.Controller
	orchestrator *refresh.Orchestrator
	runs         repository.Repository[batchdomain.PipelineRun]
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.Controller == nil || p.Orchestrator == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:          p.Log.Named("scheduler"),
		cfg:          p.Config.withDefaults(),
		clock:        p.Clock,
		controller:   p.Controller,
		orchestrator: p.Orchestrator,
		runs:         repository.ProvideStore[batchdomain.PipelineRun](p.DB),
	}, nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	// Checking ctx here as well keeps a tick that races cancellation
	// from starting one more run.
	for ctx.Err() == nil {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduled run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce processes the current lagged period if no completed run has
// covered it yet. PARTIAL_SUCCESS and FAILED runs are retried on the
// next tick; loads are idempotent, so replays are safe.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	period := s.clock.Now().UTC().Add(-s.cfg.Lag).Truncate(24 * time.Hour)

	done, err := s.periodDone(ctx, period)
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	report, err := s.controller.ProcessPeriod(ctx, period)
	if err != nil {
		return err
	}
	s.log.Info("scheduled run finished",
		zap.String("period", period.Format("2006-01-02")),
		zap.String("status", string(report.Status)),
	)

	refreshReport := s.orchestrator.RefreshAll(ctx)
	if refreshReport.Failed > 0 {
		s.log.Warn("some views failed to refresh",
			zap.Int("failed", refreshReport.Failed),
		)
	}
	return nil
}

func (s *Scheduler) periodDone(ctx context.Context, period time.Time) (bool, error) {
	existing, err := s.runs.Find(ctx, &batchdomain.PipelineRun{
		Period: datatypes.Date(period),
		Status: batchdomain.StatusDone,
	})
	if err != nil {
		return false, err
	}
	return len(existing) > 0, nil
}
