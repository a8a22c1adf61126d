package refresh

import (
	"context"
	"time"

	"github.com/winbalf/retail-data-pipeline/internal/clock"
	"github.com/winbalf/retail-data-pipeline/internal/config"
	obsmetrics "github.com/winbalf/retail-data-pipeline/internal/observability/metrics"
	refreshdomain "github.com/winbalf/retail-data-pipeline/internal/refresh/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Executor refreshdomain.Executor
	Pipeline config.Pipeline
	Clock    clock.Clock
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

// Orchestrator refreshes every registered aggregate view, one at a
// time. It holds no lock across refresh calls; one view's failure
// never aborts its siblings.
type Orchestrator struct {
	log      *zap.Logger
	executor refreshdomain.Executor
	views    []string
	clock    clock.Clock
	metrics  *obsmetrics.Metrics
}

func New(p Params) *Orchestrator {
	return &Orchestrator{
		log:      p.Log.Named("refresh.orchestrator"),
		executor: p.Executor,
		views:    p.Pipeline.ViewNames(),
		clock:    p.Clock,
		metrics:  p.Metrics,
	}
}

// RefreshAll runs the two-attempt machine for every registered view
// and reports per-view outcomes. It never collapses the result into a
// single boolean.
func (o *Orchestrator) RefreshAll(ctx context.Context) refreshdomain.Report {
	views := o.views
	if len(views) == 0 {
		listed, err := o.executor.ListViews(ctx)
		if err != nil {
			o.log.Error("listing views failed", zap.Error(err))
			return refreshdomain.Report{Outcomes: map[string]refreshdomain.Outcome{}}
		}
		views = listed
	}

	report := refreshdomain.Report{Outcomes: make(map[string]refreshdomain.Outcome, len(views))}
	for _, view := range views {
		outcome := o.refreshView(ctx, view)
		report.Outcomes[view] = outcome
		if outcome.State == refreshdomain.StateSuccess {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}

	o.log.Info("refresh complete",
		zap.Int("total", len(views)),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
	)
	return report
}

func (o *Orchestrator) refreshView(ctx context.Context, view string) refreshdomain.Outcome {
	log := o.log.With(zap.String("view", view))
	started := o.clock.Now()

	// First attempt: non-blocking, readers stay live.
	err := o.executor.RefreshConcurrent(ctx, view)
	if err == nil {
		elapsed := o.clock.Now().Sub(started)
		o.recordOutcome(ctx, view, refreshdomain.ModeConcurrent, refreshdomain.StateSuccess, elapsed)
		log.Info("view refreshed", zap.String("mode", string(refreshdomain.ModeConcurrent)), zap.Duration("elapsed", elapsed))
		return refreshdomain.Outcome{
			View:    view,
			State:   refreshdomain.StateSuccess,
			Mode:    refreshdomain.ModeConcurrent,
			Elapsed: elapsed,
		}
	}

	// Any concurrent-mode rejection is recoverable; fall back to the
	// blocking refresh.
	log.Warn("concurrent refresh failed, falling back to exclusive", zap.Error(err))

	err = o.executor.RefreshExclusive(ctx, view)
	elapsed := o.clock.Now().Sub(started)
	if err != nil {
		o.recordOutcome(ctx, view, refreshdomain.ModeExclusive, refreshdomain.StateFailed, elapsed)
		log.Error("exclusive refresh failed", zap.Error(err))
		return refreshdomain.Outcome{
			View:    view,
			State:   refreshdomain.StateFailed,
			Mode:    refreshdomain.ModeExclusive,
			Error:   err.Error(),
			Elapsed: elapsed,
		}
	}

	o.recordOutcome(ctx, view, refreshdomain.ModeExclusive, refreshdomain.StateSuccess, elapsed)
	log.Info("view refreshed", zap.String("mode", string(refreshdomain.ModeExclusive)), zap.Duration("elapsed", elapsed))
	return refreshdomain.Outcome{
		View:    view,
		State:   refreshdomain.StateSuccess,
		Mode:    refreshdomain.ModeExclusive,
		Elapsed: elapsed,
	}
}

// ViewInfo probes a view's current contents.
func (o *Orchestrator) ViewInfo(ctx context.Context, view string) refreshdomain.ViewInfo {
	count, err := o.executor.RowCount(ctx, view)
	if err != nil {
		return refreshdomain.ViewInfo{View: view, Exists: false, Error: err.Error()}
	}
	return refreshdomain.ViewInfo{View: view, RowCount: count, Exists: true}
}

// AllViewInfo probes every registered view.
func (o *Orchestrator) AllViewInfo(ctx context.Context) []refreshdomain.ViewInfo {
	infos := make([]refreshdomain.ViewInfo, 0, len(o.views))
	for _, view := range o.views {
		infos = append(infos, o.ViewInfo(ctx, view))
	}
	return infos
}

func (o *Orchestrator) recordOutcome(ctx context.Context, view string, mode refreshdomain.Mode, state refreshdomain.State, elapsed time.Duration) {
	if o.metrics == nil {
		return
	}
	o.metrics.RecordViewRefresh(ctx, view, string(mode), string(state), elapsed)
}
