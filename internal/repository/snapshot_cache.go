package repository

import (
	"context"
	"errors"
	"time"

	"PaperTune/internal/domain/models"
	domrepo "PaperTune/internal/domain/repository"
	"PaperTune/pkg/cache"
)

// SnapshotCache keeps the latest indicator snapshot per
// (ticker, timeframe). Each snapshot supersedes the previous one for
// its key; the TTL bounds staleness when the feed goes quiet.
type SnapshotCache struct {
	cache cache.Service
	ttl   time.Duration
}

func NewSnapshotCache(c cache.Service, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &SnapshotCache{cache: c, ttl: ttl}
}

func snapshotKey(ticker string, tf domrepo.Timeframe) string {
	return cache.Key("snap", ticker, tf)
}

// Put stores a new snapshot, replacing the previous one for its key.
func (c *SnapshotCache) Put(ctx context.Context, s *models.IndicatorSnapshot) error {
	tf := domrepo.NormalizeTimeframe(s.Timeframe)
	return c.cache.Set(ctx, snapshotKey(s.Ticker, tf), s, c.ttl)
}

// Latest returns the most recent snapshot for the key, or nil when
// none has been seen (or it expired).
func (c *SnapshotCache) Latest(ctx context.Context, ticker string, tf domrepo.Timeframe) (*models.IndicatorSnapshot, error) {
	var s models.IndicatorSnapshot
	err := c.cache.Get(ctx, snapshotKey(ticker, tf), &s)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// LatestAll fetches the latest snapshot for every supported timeframe
// of a ticker in one round trip. Timeframes with no cached snapshot
// are absent from the result.
func (c *SnapshotCache) LatestAll(ctx context.Context, ticker string) (map[domrepo.Timeframe]*models.IndicatorSnapshot, error) {
	tfs := []domrepo.Timeframe{domrepo.TF1h, domrepo.TF4h}
	keys := make([]string, len(tfs))
	for i, tf := range tfs {
		keys[i] = snapshotKey(ticker, tf)
	}

	typed, err := cache.MGetTyped[models.IndicatorSnapshot](ctx, c.cache, keys...)
	if err != nil {
		return nil, err
	}

	out := make(map[domrepo.Timeframe]*models.IndicatorSnapshot, len(typed))
	for i, tf := range tfs {
		if s, ok := typed[keys[i]]; ok {
			cp := s
			out[tf] = &cp
		}
	}
	return out, nil
}

var _ domrepo.SnapshotProvider = (*SnapshotCache)(nil)
