package repository

import (
	"context"
	"time"

	"PaperTune/internal/domain/models"
)

// SnapshotStream is a live feed of indicator snapshots per ticker.
type SnapshotStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.IndicatorSnapshot, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// SignalStore persists the append-only trim signal history.
type SignalStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Store(ctx context.Context, s *models.TrimSignal) error
	Query(ctx context.Context, ticker string, from, to time.Time, limit int) ([]*models.TrimSignal, error)
	Health(ctx context.Context) error
	Close() error
}

// AdjustmentStore persists strategy adjustments and their review
// lifecycle. Transition must be an atomic compare-and-set on status:
// it fails with models.ErrConflict when the record's current status is
// not `from`, and models.ErrNotFound when the id does not exist.
type AdjustmentStore interface {
	Init(ctx context.Context) error
	Insert(ctx context.Context, a *models.Adjustment) error
	Get(ctx context.Context, id int64) (*models.Adjustment, error)
	ListByStatus(ctx context.Context, status models.AdjustmentStatus) ([]*models.Adjustment, error)
	// ListApplied returns applied adjustments for a strategy in
	// chronological review order, oldest first.
	ListApplied(ctx context.Context, strategy string) ([]*models.Adjustment, error)
	Transition(ctx context.Context, id int64, from, to models.AdjustmentStatus, reviewer string, at time.Time) error
	Close() error
}

// PerformanceProvider returns the trailing outcome aggregate for a
// strategy. A nil aggregate with nil error means no signals in the
// window; that is an expected steady-state, not an error.
type PerformanceProvider interface {
	TrailingWindow(ctx context.Context, strategy string, days int) (*models.StrategyPerformance, error)
}

// SnapshotProvider returns the latest indicator snapshot per
// (ticker, timeframe), or nil when none has been seen.
type SnapshotProvider interface {
	Latest(ctx context.Context, ticker string, tf Timeframe) (*models.IndicatorSnapshot, error)
}

// PositionProvider returns the open position for a ticker, or nil
// when the ticker has no open position.
type PositionProvider interface {
	Open(ctx context.Context, ticker string) (*models.Position, error)
}

// Notifier delivers plain-text summaries to the external alerting
// transport.
type Notifier interface {
	Notify(ctx context.Context, subject, text string) error
	Close() error
}

// StrategyRebuilder is invoked after adjustments are applied so live
// strategy instances pick up the new effective parameters.
type StrategyRebuilder interface {
	Rebuild(ctx context.Context, strategy string) error
}

// Metrics abstracts operational counters and gauges.
type Metrics interface {
	RecordSignalScored(ticker, recommendation string)
	RecordProposal(strategy, trigger string)
	RecordTransition(action, outcome string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
