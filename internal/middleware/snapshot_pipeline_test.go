package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"PaperTune/internal/domain/models"
)

type countingProc struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *countingProc) Process(_ context.Context, _ *models.IndicatorSnapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.err
}

func (p *countingProc) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type countingMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{errors: make(map[string]int)}
}

func (m *countingMetrics) RecordSignalScored(string, string) {}
func (m *countingMetrics) RecordProposal(string, string)     {}
func (m *countingMetrics) RecordTransition(string, string)   {}
func (m *countingMetrics) RecordLatency(string, float64)     {}

func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *countingMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func snap(ticker string) *models.IndicatorSnapshot {
	return &models.IndicatorSnapshot{Ticker: ticker, Timeframe: "1h", Price: 100}
}

func TestPipelineForwardsValidSnapshot(t *testing.T) {
	proc := &countingProc{}
	p := NewSnapshotPipeline(proc, newCountingMetrics())

	if err := p.Process(context.Background(), snap("BTCUSDT")); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if proc.count() != 1 {
		t.Fatalf("calls = %d, want 1", proc.count())
	}
}

func TestPipelineRejectsInvalid(t *testing.T) {
	proc := &countingProc{}
	m := newCountingMetrics()
	p := NewSnapshotPipeline(proc, m)

	cases := []*models.IndicatorSnapshot{
		nil,
		{Timeframe: "1h", Price: 100},
		{Ticker: "BTCUSDT", Price: -1},
	}
	for _, s := range cases {
		if err := p.Process(context.Background(), s); err == nil {
			t.Errorf("expected validation error for %+v", s)
		}
	}
	if proc.count() != 0 {
		t.Errorf("downstream called %d times for invalid input", proc.count())
	}
	if m.errorCount("ingest_validate") != len(cases) {
		t.Errorf("validate errors = %d, want %d", m.errorCount("ingest_validate"), len(cases))
	}
}

func TestPipelineThrottlesPerTicker(t *testing.T) {
	proc := &countingProc{}
	m := newCountingMetrics()
	p := NewSnapshotPipeline(proc, m, WithMaxRPS(1))

	// two back-to-back snapshots for the same ticker: second is dropped
	if err := p.Process(context.Background(), snap("BTCUSDT")); err != nil {
		t.Fatal(err)
	}
	if err := p.Process(context.Background(), snap("BTCUSDT")); err != nil {
		t.Fatal(err)
	}
	if proc.count() != 1 {
		t.Errorf("calls = %d, want 1", proc.count())
	}
	if m.errorCount("ingest_throttle") != 1 {
		t.Errorf("throttle count = %d, want 1", m.errorCount("ingest_throttle"))
	}

	// an unrelated ticker is not throttled
	if err := p.Process(context.Background(), snap("ETHUSDT")); err != nil {
		t.Fatal(err)
	}
	if proc.count() != 2 {
		t.Errorf("calls = %d, want 2", proc.count())
	}
}

func TestPipelineBuffersOnDownstreamErrorAndFlushes(t *testing.T) {
	proc := &countingProc{err: errors.New("store down")}
	m := newCountingMetrics()
	p := NewSnapshotPipeline(proc, m, WithBufferSize(4))

	if err := p.Process(context.Background(), snap("BTCUSDT")); err == nil {
		t.Fatal("expected downstream error")
	}
	if m.errorCount("ingest_process") != 1 {
		t.Fatalf("process errors = %d, want 1", m.errorCount("ingest_process"))
	}

	// downstream recovers; Start drains the buffered snapshot
	proc.mu.Lock()
	proc.err = nil
	proc.mu.Unlock()

	p.Start(context.Background())
	defer p.Stop()

	deadline := time.After(2 * time.Second)
	for proc.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("buffered snapshot never flushed, calls = %d", proc.count())
		case <-time.After(10 * time.Millisecond):
		}
	}
}
