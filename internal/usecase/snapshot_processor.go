package usecase

import (
	"context"
	"fmt"
	"time"

	"PaperTune/internal/domain/models"
	domrepo "PaperTune/internal/domain/repository"
	"PaperTune/internal/repository"
)

// SnapshotProcessor handles one incoming indicator snapshot: it
// supersedes the cached snapshot for its (ticker, timeframe) key and
// runs the trim evaluator for the ticker.
type SnapshotProcessor struct {
	cache     *repository.SnapshotCache
	evaluator *TrimEvaluator
	metrics   domrepo.Metrics
}

func NewSnapshotProcessor(cache *repository.SnapshotCache, evaluator *TrimEvaluator, metrics domrepo.Metrics) *SnapshotProcessor {
	return &SnapshotProcessor{cache: cache, evaluator: evaluator, metrics: metrics}
}

// Process ingests a single snapshot. Evaluation outcomes that carry
// no signal (no position, missing price) are normal and not errors.
func (p *SnapshotProcessor) Process(ctx context.Context, s *models.IndicatorSnapshot) error {
	if s == nil || s.Ticker == "" {
		return fmt.Errorf("snapshot missing ticker")
	}

	start := time.Now()
	if err := p.cache.Put(ctx, s); err != nil {
		p.metrics.RecordError("snapshot_cache")
		return fmt.Errorf("cache snapshot: %w", err)
	}
	p.metrics.RecordLatency("snapshot_ingest", time.Since(start).Seconds())

	if _, err := p.evaluator.Evaluate(ctx, s.Ticker); err != nil {
		return fmt.Errorf("evaluate %s: %w", s.Ticker, err)
	}
	return nil
}
