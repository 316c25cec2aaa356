package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PaperTune/internal/domain/models"
	domrepo "PaperTune/internal/domain/repository"
)

// Proc is what the pipeline forwards accepted snapshots to.
type Proc interface {
	Process(ctx context.Context, s *models.IndicatorSnapshot) error
}

// SnapshotPipeline sits between the snapshot ingest and the evaluator.
// It validates, throttles per ticker, and buffers when the evaluator's
// downstream stores are unavailable.
type SnapshotPipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan *models.IndicatorSnapshot
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-ticker last accepted time
}

type PipelineOption func(*SnapshotPipeline)

// WithMaxRPS sets the max snapshots per second per ticker.
func WithMaxRPS(n int) PipelineOption {
	return func(p *SnapshotPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets how many snapshots can wait out a downstream outage.
func WithBufferSize(n int) PipelineOption {
	return func(p *SnapshotPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewSnapshotPipeline creates a new pipeline.
func NewSnapshotPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *SnapshotPipeline {
	p := &SnapshotPipeline{
		proc:     proc,
		metrics:  metrics,
		maxRPS:   5,   // snapshots arrive per closed candle, bursts only on backfill
		bufSize:  500, // default buffer
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.IndicatorSnapshot, p.bufSize)
	return p
}

// Start launches background flushing of buffered snapshots.
func (p *SnapshotPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case s := <-p.bufCh:
				if s == nil {
					continue
				}
				if err := p.proc.Process(ctx, s); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("ingest_flush")
					time.Sleep(backoff)
					// put it back if there is room, otherwise give up on it
					select {
					case p.bufCh <- s:
					default:
						p.metrics.RecordError("ingest_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop halts the background flusher. Buffered snapshots are abandoned.
func (p *SnapshotPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards a snapshot downstream,
// buffering on errors.
func (p *SnapshotPipeline) Process(ctx context.Context, s *models.IndicatorSnapshot) error {
	start := time.Now()
	if err := validateSnapshot(s); err != nil {
		p.metrics.RecordError("ingest_validate")
		return err
	}
	if !p.allow(s.Ticker, start) {
		// over the per-ticker rate, count it and move on
		p.metrics.RecordError("ingest_throttle")
		return nil
	}

	if err := p.proc.Process(ctx, s); err != nil {
		p.metrics.RecordError("ingest_process")
		// buffer non-blocking
		select {
		case p.bufCh <- s:
		default:
			p.metrics.RecordError("ingest_buffer_full")
		}
		return fmt.Errorf("forward snapshot: %w", err)
	}
	p.metrics.RecordLatency("ingest_process", time.Since(start).Seconds())
	return nil
}

func validateSnapshot(s *models.IndicatorSnapshot) error {
	if s == nil {
		return fmt.Errorf("snapshot nil")
	}
	if s.Ticker == "" {
		return fmt.Errorf("ticker empty")
	}
	if s.Price < 0 || s.Volume < 0 {
		return fmt.Errorf("price or volume below zero")
	}
	return nil
}

func (p *SnapshotPipeline) allow(ticker string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[ticker]
	if last.IsZero() {
		p.lastSeen[ticker] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[ticker] = now
	return true
}
