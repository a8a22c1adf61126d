package domain

import (
	"context"
	"errors"
	"time"
)

// Mode is the refresh path that produced an outcome.
type Mode string

const (
	ModeConcurrent Mode = "concurrent"
	ModeExclusive  Mode = "exclusive"
)

// State is one view's position in the two-attempt refresh machine.
type State string

const (
	StateIdle                 State = "IDLE"
	StateRefreshingConcurrent State = "REFRESHING_CONCURRENT"
	StateRefreshingExclusive  State = "REFRESHING_EXCLUSIVE"
	StateSuccess              State = "SUCCESS"
	StateFailed               State = "FAILED"
)

// Outcome is the final result for one view.
type Outcome struct {
	View    string
	State   State
	Mode    Mode
	Error   string
	Elapsed time.Duration
}

// Report maps every attempted view to its outcome so callers can tell
// "3 of 6 refreshed" apart from total failure.
type Report struct {
	Outcomes  map[string]Outcome
	Succeeded int
	Failed    int
}

// ViewInfo describes one materialized view's current contents.
type ViewInfo struct {
	View     string
	RowCount int64
	Exists   bool
	Error    string
}

// Executor issues refresh statements against the warehouse.
type Executor interface {
	ListViews(ctx context.Context) ([]string, error)
	RefreshConcurrent(ctx context.Context, view string) error
	RefreshExclusive(ctx context.Context, view string) error
	RowCount(ctx context.Context, view string) (int64, error)
}

var (
	// ErrConcurrentUnsupported marks a non-blocking refresh the engine
	// rejected (for example a view without a unique index). It is
	// recoverable: the orchestrator falls back to an exclusive refresh.
	ErrConcurrentUnsupported = errors.New("concurrent_refresh_unsupported")

	ErrInvalidViewName = errors.New("invalid_view_name")
)
