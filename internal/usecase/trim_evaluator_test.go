package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"PaperTune/internal/domain/models"
	domrepo "PaperTune/internal/domain/repository"
	"PaperTune/internal/repository"
	pkgcache "PaperTune/pkg/cache"
)

type stubSnapshots struct {
	m map[string]*models.IndicatorSnapshot
}

func (s *stubSnapshots) Latest(_ context.Context, ticker string, tf domrepo.Timeframe) (*models.IndicatorSnapshot, error) {
	return s.m[ticker+"/"+string(tf)], nil
}

func (s *stubSnapshots) set(ticker string, tf domrepo.Timeframe, snap *models.IndicatorSnapshot) {
	s.m[ticker+"/"+string(tf)] = snap
}

type memQueue struct {
	mu   sync.Mutex
	msgs []interface{}
}

func (q *memQueue) PublishMessage(_ context.Context, _ string, payload interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, payload)
	return nil
}

func (q *memQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}

func newTestEvaluator(t *testing.T) (*TrimEvaluator, *stubSnapshots, *repository.MemoryPositionBook, *repository.MemorySignalStore, *memQueue) {
	t.Helper()
	snaps := &stubSnapshots{m: make(map[string]*models.IndicatorSnapshot)}
	positions := repository.NewMemoryPositionBook()
	signals := repository.NewMemorySignalStore()
	alerts := &memQueue{}
	ev := NewTrimEvaluator(snaps, positions, signals, pkgcache.NewMemoryCache(), alerts,
		nopMetrics{}, testLogger(t), EvaluatorConfig{AlertBurst: 10, AlertPerSec: 10})
	return ev, snaps, positions, signals, alerts
}

// bearish 1H snapshot: every line adverse for a LONG.
func bearishH1(ticker string) *models.IndicatorSnapshot {
	return &models.IndicatorSnapshot{
		Ticker: ticker, Timeframe: "1h",
		Price: 90, EMA9: 100, EMA20: 105,
		RSI: 35, RSITrend: models.TrendFalling,
		MACDLine: -1, MACDSignal: -0.5, MACDHist: -0.5,
		MACDMomentum: models.MomentumStrengthening,
		VolumeRatio:  1.8,
	}
}

func bearishH4(ticker string) *models.IndicatorSnapshot {
	return &models.IndicatorSnapshot{
		Ticker: ticker, Timeframe: "4h",
		Price: 90, EMA9: 95, EMA20: 100,
	}
}

func TestEvaluateNoPosition(t *testing.T) {
	ev, snaps, _, signals, _ := newTestEvaluator(t)
	snaps.set("BTCUSDT", domrepo.TF1h, bearishH1("BTCUSDT"))

	got, err := ev.Evaluate(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got.Status != models.EvalNoPosition || got.Signal != nil {
		t.Fatalf("got %+v", got)
	}
	rows, _ := signals.Query(context.Background(), "BTCUSDT", time.Time{}, time.Time{}, 10)
	if len(rows) != 0 {
		t.Fatalf("stored %d signals, want 0", len(rows))
	}
}

func TestEvaluateInsufficientData(t *testing.T) {
	ev, _, positions, _, _ := newTestEvaluator(t)
	positions.Set(&models.Position{Ticker: "BTCUSDT", Direction: models.Long, EntryPrice: 100, CurrentPrice: 90})

	got, err := ev.Evaluate(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got.Status != models.EvalInsufficientData {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestEvaluateScoresAndStores(t *testing.T) {
	ev, snaps, positions, signals, _ := newTestEvaluator(t)
	positions.Set(&models.Position{
		Ticker: "BTCUSDT", Direction: models.Long, Size: 1000,
		EntryPrice: 100, CurrentPrice: 90,
	})
	snaps.set("BTCUSDT", domrepo.TF1h, bearishH1("BTCUSDT"))
	snaps.set("BTCUSDT", domrepo.TF4h, bearishH4("BTCUSDT"))

	got, err := ev.Evaluate(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got.Status != models.EvalScored || got.Signal == nil {
		t.Fatalf("got %+v", got)
	}
	if got.Signal.Score != -15 {
		t.Fatalf("score = %d, want -15", got.Signal.Score)
	}
	if got.Signal.Recommendation != models.RecExit75 {
		t.Fatalf("rec = %s", got.Signal.Recommendation)
	}
	if got.Signal.PnLPercent != -10 {
		t.Fatalf("pnl = %v, want -10", got.Signal.PnLPercent)
	}

	rows, _ := signals.Query(context.Background(), "BTCUSDT", time.Time{}, time.Time{}, 10)
	if len(rows) != 1 {
		t.Fatalf("stored %d signals, want 1", len(rows))
	}
}

func TestEvaluateMissing4HStillScores(t *testing.T) {
	ev, snaps, positions, _, _ := newTestEvaluator(t)
	positions.Set(&models.Position{Ticker: "ETHUSDT", Direction: models.Long, EntryPrice: 100, CurrentPrice: 90})
	snaps.set("ETHUSDT", domrepo.TF1h, bearishH1("ETHUSDT"))

	got, err := ev.Evaluate(context.Background(), "ETHUSDT")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	// all 1H lines adverse, 4H neutral
	if got.Signal.Score != -13 {
		t.Fatalf("score = %d, want -13", got.Signal.Score)
	}
}

func TestAlertOnlyOnEscalation(t *testing.T) {
	ev, snaps, positions, _, alerts := newTestEvaluator(t)
	positions.Set(&models.Position{Ticker: "BTCUSDT", Direction: models.Long, EntryPrice: 100, CurrentPrice: 90})
	snaps.set("BTCUSDT", domrepo.TF1h, bearishH1("BTCUSDT"))

	// first evaluation escalates past the implicit HOLD baseline
	if _, err := ev.Evaluate(context.Background(), "BTCUSDT"); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if alerts.count() != 1 {
		t.Fatalf("alerts = %d, want 1", alerts.count())
	}

	// same recommendation again: no escalation, no new alert
	if _, err := ev.Evaluate(context.Background(), "BTCUSDT"); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if alerts.count() != 1 {
		t.Fatalf("alerts = %d, want still 1", alerts.count())
	}
}

func TestAlertCarriesSignalFields(t *testing.T) {
	ev, snaps, positions, _, alerts := newTestEvaluator(t)
	positions.Set(&models.Position{Ticker: "SOLUSDT", Direction: models.Short, EntryPrice: 100, CurrentPrice: 90})
	// bearish market is favorable for a SHORT; craft a bullish reversal
	snaps.set("SOLUSDT", domrepo.TF1h, &models.IndicatorSnapshot{
		Ticker: "SOLUSDT", Timeframe: "1h",
		Price: 110, EMA9: 100, EMA20: 95,
		RSI: 65, RSITrend: models.TrendRising,
		MACDLine: 1, MACDSignal: 0.5, MACDHist: 0.5,
		MACDMomentum: models.MomentumStrengthening,
		VolumeRatio:  1.8,
	})

	if _, err := ev.Evaluate(context.Background(), "SOLUSDT"); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if alerts.count() != 1 {
		t.Fatalf("alerts = %d, want 1", alerts.count())
	}
	alerts.mu.Lock()
	defer alerts.mu.Unlock()
	a, ok := alerts.msgs[0].(TrimAlert)
	if !ok {
		t.Fatalf("payload type %T", alerts.msgs[0])
	}
	if a.Ticker != "SOLUSDT" || a.Direction != string(models.Short) {
		t.Fatalf("alert = %+v", a)
	}
	if a.Recommendation != string(models.RecExit75) {
		t.Fatalf("rec = %s", a.Recommendation)
	}
}
