package usecase

import (
	"context"
	"errors"
	"time"

	"PaperTune/internal/domain/models"
	domrepo "PaperTune/internal/domain/repository"
	"PaperTune/internal/service/ratelimit"
	"PaperTune/internal/services/scoring"
	"PaperTune/pkg/cache"
	xlogger "PaperTune/pkg/logger"
	"PaperTune/pkg/queue"
)

// EvaluatorConfig tunes alert throttling and last-signal retention.
type EvaluatorConfig struct {
	LastRecTTL  time.Duration
	AlertBurst  float64
	AlertPerSec float64
}

// TrimEvaluator runs the scorer for a ticker on each new indicator
// snapshot: it reads the open position and latest snapshots, persists
// the resulting signal, and enqueues an alert when the recommendation
// escalated past the last recorded one.
type TrimEvaluator struct {
	snapshots domrepo.SnapshotProvider
	positions domrepo.PositionProvider
	signals   domrepo.SignalStore
	lastRec   cache.Service
	alerts    queue.QueueService
	limiter   *ratelimit.Limiter
	metrics   domrepo.Metrics
	logger    *xlogger.Logger
	cfg       EvaluatorConfig
}

func NewTrimEvaluator(
	snapshots domrepo.SnapshotProvider,
	positions domrepo.PositionProvider,
	signals domrepo.SignalStore,
	lastRec cache.Service,
	alerts queue.QueueService,
	metrics domrepo.Metrics,
	logger *xlogger.Logger,
	cfg EvaluatorConfig,
) *TrimEvaluator {
	if cfg.LastRecTTL <= 0 {
		cfg.LastRecTTL = 24 * time.Hour
	}
	if cfg.AlertBurst <= 0 {
		cfg.AlertBurst = 3
	}
	if cfg.AlertPerSec <= 0 {
		cfg.AlertPerSec = 1.0 / 300 // one refill per 5 minutes
	}
	return &TrimEvaluator{
		snapshots: snapshots,
		positions: positions,
		signals:   signals,
		lastRec:   lastRec,
		alerts:    alerts,
		limiter:   ratelimit.New(),
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

// Evaluate scores one ticker. Absence of a position or of price data
// is an expected steady-state reported in the evaluation status, not
// an error.
func (e *TrimEvaluator) Evaluate(ctx context.Context, ticker string) (*models.Evaluation, error) {
	start := time.Now()

	pos, err := e.positions.Open(ctx, ticker)
	if err != nil {
		e.metrics.RecordError("position_lookup")
		return nil, err
	}
	if pos == nil {
		return &models.Evaluation{Ticker: ticker, Status: models.EvalNoPosition}, nil
	}

	h1, err := e.snapshots.Latest(ctx, ticker, domrepo.TF1h)
	if err != nil {
		e.metrics.RecordError("snapshot_lookup")
		return nil, err
	}
	if !h1.HasPrice() {
		return &models.Evaluation{Ticker: ticker, Status: models.EvalInsufficientData}, nil
	}
	// 4H is optional: its line scores neutral when missing.
	h4, err := e.snapshots.Latest(ctx, ticker, domrepo.TF4h)
	if err != nil {
		e.metrics.RecordError("snapshot_lookup")
		h4 = nil
	}

	sig := scoring.Evaluate(pos, h1, h4, time.Now())
	if err := e.signals.Store(ctx, sig); err != nil {
		e.metrics.RecordError("signal_store")
		return nil, err
	}
	e.metrics.RecordSignalScored(ticker, string(sig.Recommendation))
	e.metrics.RecordLatency("evaluate", time.Since(start).Seconds())

	e.maybeAlert(ctx, sig)

	return &models.Evaluation{Ticker: ticker, Status: models.EvalScored, Signal: sig}, nil
}

// maybeAlert enqueues a trim alert when the fresh recommendation is
// more aggressive than the last recorded one for the ticker.
func (e *TrimEvaluator) maybeAlert(ctx context.Context, sig *models.TrimSignal) {
	if e.lastRec == nil {
		return
	}
	key := "lastrec:" + sig.Ticker

	last := string(models.RecHold)
	if err := e.lastRec.Get(ctx, key, &last); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		e.metrics.RecordError("lastrec_cache")
	}
	escalated := sig.Recommendation.Rank() > models.Recommendation(last).Rank()

	if err := e.lastRec.Set(ctx, key, string(sig.Recommendation), e.cfg.LastRecTTL); err != nil {
		e.metrics.RecordError("lastrec_cache")
	}
	if !escalated || e.alerts == nil {
		return
	}
	if !e.limiter.Allow("alert:"+sig.Ticker, e.cfg.AlertBurst, e.cfg.AlertPerSec) {
		e.metrics.RecordError("alert_throttled")
		return
	}

	alert := TrimAlert{
		Ticker:         sig.Ticker,
		Direction:      string(sig.Direction),
		Score:          sig.Score,
		Recommendation: string(sig.Recommendation),
		TrimPercent:    sig.TrimPercent,
		Reason:         sig.Reason,
	}
	if err := e.alerts.PublishMessage(ctx, AlertJobType, alert); err != nil {
		e.metrics.RecordError("alert_enqueue")
		e.logger.Warn("alert enqueue failed", xlogger.String("ticker", sig.Ticker), xlogger.Error(err))
		return
	}
	e.logger.Info("trim alert enqueued",
		xlogger.String("ticker", sig.Ticker),
		xlogger.String("recommendation", string(sig.Recommendation)),
		xlogger.Int("score", sig.Score),
	)
}
