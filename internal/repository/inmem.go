package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"PaperTune/internal/domain/models"
	domrepo "PaperTune/internal/domain/repository"
)

// In-memory implementations backing tests and local runs without
// external infrastructure. The adjustment store honors the same
// compare-and-set transition semantics as the Postgres store.

type MemoryAdjustmentStore struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*models.Adjustment
}

func NewMemoryAdjustmentStore() *MemoryAdjustmentStore {
	return &MemoryAdjustmentStore{nextID: 1, byID: make(map[int64]*models.Adjustment)}
}

func (s *MemoryAdjustmentStore) Init(ctx context.Context) error { return nil }

func (s *MemoryAdjustmentStore) Insert(ctx context.Context, a *models.Adjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	cp.ID = s.nextID
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.nextID++
	s.byID[cp.ID] = &cp
	a.ID = cp.ID
	a.CreatedAt = cp.CreatedAt
	return nil
}

func (s *MemoryAdjustmentStore) Get(ctx context.Context, id int64) (*models.Adjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryAdjustmentStore) ListByStatus(ctx context.Context, status models.AdjustmentStatus) ([]*models.Adjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Adjustment
	for _, a := range s.byID {
		if a.Status == status {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryAdjustmentStore) ListApplied(ctx context.Context, strategy string) ([]*models.Adjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Adjustment
	for _, a := range s.byID {
		if a.Status == models.StatusApplied && a.StrategyName == strategy {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].ReviewedAt, out[j].ReviewedAt
		if ti != nil && tj != nil && !ti.Equal(*tj) {
			return ti.Before(*tj)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryAdjustmentStore) Transition(ctx context.Context, id int64, from, to models.AdjustmentStatus, reviewer string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return models.ErrNotFound
	}
	if a.Status != from || !models.ValidTransition(from, to) {
		return models.ErrConflict
	}
	a.Status = to
	if reviewer != "" {
		a.ReviewedBy = reviewer
	}
	t := at
	a.ReviewedAt = &t
	return nil
}

func (s *MemoryAdjustmentStore) Close() error { return nil }

var _ domrepo.AdjustmentStore = (*MemoryAdjustmentStore)(nil)

// MemorySignalStore keeps an append-only trim signal history.
type MemorySignalStore struct {
	mu      sync.Mutex
	signals []*models.TrimSignal
}

func NewMemorySignalStore() *MemorySignalStore { return &MemorySignalStore{} }

func (s *MemorySignalStore) Init(ctx context.Context) error { return nil }

func (s *MemorySignalStore) Store(ctx context.Context, sig *models.TrimSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sig
	s.signals = append(s.signals, &cp)
	return nil
}

func (s *MemorySignalStore) Query(ctx context.Context, ticker string, from, to time.Time, limit int) ([]*models.TrimSignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.TrimSignal
	for i := len(s.signals) - 1; i >= 0 && len(out) < limit; i-- {
		sig := s.signals[i]
		if sig.Ticker != ticker {
			continue
		}
		if !from.IsZero() && sig.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && sig.Timestamp.After(to) {
			continue
		}
		cp := *sig
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemorySignalStore) Health(ctx context.Context) error { return nil }
func (s *MemorySignalStore) Close() error                     { return nil }

var _ domrepo.SignalStore = (*MemorySignalStore)(nil)

// MemoryPositionBook serves open positions from memory.
type MemoryPositionBook struct {
	mu        sync.RWMutex
	positions map[string]*models.Position
}

func NewMemoryPositionBook() *MemoryPositionBook {
	return &MemoryPositionBook{positions: make(map[string]*models.Position)}
}

func (b *MemoryPositionBook) Set(p *models.Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := *p
	b.positions[p.Ticker] = &cp
}

func (b *MemoryPositionBook) Remove(ticker string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.positions, ticker)
}

func (b *MemoryPositionBook) Open(ctx context.Context, ticker string) (*models.Position, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.positions[ticker]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

var _ domrepo.PositionProvider = (*MemoryPositionBook)(nil)

// MemoryPerformanceProvider serves canned aggregates keyed by strategy.
type MemoryPerformanceProvider struct {
	mu   sync.RWMutex
	data map[string]*models.StrategyPerformance
}

func NewMemoryPerformanceProvider() *MemoryPerformanceProvider {
	return &MemoryPerformanceProvider{data: make(map[string]*models.StrategyPerformance)}
}

func (p *MemoryPerformanceProvider) Set(strategy string, perf *models.StrategyPerformance) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data[strategy] = perf
}

func (p *MemoryPerformanceProvider) TrailingWindow(ctx context.Context, strategy string, days int) (*models.StrategyPerformance, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	perf, ok := p.data[strategy]
	if !ok {
		return nil, nil
	}
	cp := *perf
	return &cp, nil
}

var _ domrepo.PerformanceProvider = (*MemoryPerformanceProvider)(nil)
