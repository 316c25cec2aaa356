package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"PaperTune/internal/domain/models"
	"PaperTune/internal/repository"
	"PaperTune/internal/services/tuning"
	xlogger "PaperTune/pkg/logger"
)

func testLogger(t *testing.T) *xlogger.Logger {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

type nopMetrics struct{}

func (nopMetrics) RecordSignalScored(string, string) {}
func (nopMetrics) RecordProposal(string, string)     {}
func (nopMetrics) RecordTransition(string, string)   {}
func (nopMetrics) RecordError(string)                {}
func (nopMetrics) RecordLatency(string, float64)     {}

type memNotifier struct {
	mu       sync.Mutex
	subjects []string
}

func (n *memNotifier) Notify(_ context.Context, subject, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subjects = append(n.subjects, subject)
	return nil
}
func (n *memNotifier) Close() error { return nil }

type memRebuilder struct {
	mu         sync.Mutex
	strategies []string
}

func (r *memRebuilder) Rebuild(_ context.Context, strategy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies = append(r.strategies, strategy)
	return nil
}

func fundingArbSpec() models.StrategySpec {
	return models.StrategySpec{
		Name: "funding_arbitrage",
		Params: []models.ParamSpec{
			{Name: "min_funding_rate", Family: models.FamilyEntryFilter, Min: 0.00002, Max: 0.0005, Default: 0.0001},
			{Name: "min_volume_usd", Family: models.FamilyVolumeFloor, Min: 1e6, Max: 1e8, Default: 1e7},
			{Name: "expiry_hours", Family: models.FamilyExpiryHours, Min: 4, Max: 72, Default: 24},
		},
	}
}

func newTestTuner(t *testing.T, cfg TunerConfig) (*Tuner, *repository.MemoryAdjustmentStore, *repository.MemoryPerformanceProvider, *memRebuilder) {
	t.Helper()
	store := repository.NewMemoryAdjustmentStore()
	perf := repository.NewMemoryPerformanceProvider()
	rebuilder := &memRebuilder{}
	if cfg.Rules == (tuning.Config{}) {
		cfg.Rules = tuning.DefaultConfig()
	}
	tn := NewTuner(store, perf, &memNotifier{}, rebuilder, nopMetrics{}, []models.StrategySpec{fundingArbSpec()}, cfg, testLogger(t))
	return tn, store, perf, rebuilder
}

func TestEvaluateAllProposesPendingOnLowWinRate(t *testing.T) {
	tn, store, perf, _ := newTestTuner(t, TunerConfig{WindowDays: 7})
	perf.Set("funding_arbitrage", &models.StrategyPerformance{
		StrategyName: "funding_arbitrage",
		WinRate:      0.25,
		AvgPnL:       0.002,
		SignalCount:  12,
	})

	sum, err := tn.EvaluateAll(context.Background())
	if err != nil {
		t.Fatalf("EvaluateAll: %v", err)
	}
	if sum.Proposed != 1 {
		t.Fatalf("proposed = %d, want 1", sum.Proposed)
	}

	pending, err := store.ListByStatus(context.Background(), models.StatusPending)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	a := pending[0]
	if a.ParameterName != "min_funding_rate" {
		t.Fatalf("param = %s", a.ParameterName)
	}
	if a.Trigger != models.TriggerWinRateLow {
		t.Fatalf("trigger = %s", a.Trigger)
	}
	if a.OldValue != 0.0001 {
		t.Fatalf("old = %v", a.OldValue)
	}
	// 25% step up from the default
	if diff := a.NewValue - 0.000125; diff > 1e-12 || diff < -1e-12 {
		t.Fatalf("new = %v, want 0.000125", a.NewValue)
	}
	if a.WinRate7d != 0.25 || a.TotalSignals7d != 12 {
		t.Fatalf("context fields not carried: %+v", a)
	}
}

func TestEvaluateAllSkipsStrategyWithoutSignals(t *testing.T) {
	tn, store, _, _ := newTestTuner(t, TunerConfig{})

	sum, err := tn.EvaluateAll(context.Background())
	if err != nil {
		t.Fatalf("EvaluateAll: %v", err)
	}
	if sum.Proposed != 0 {
		t.Fatalf("proposed = %d, want 0", sum.Proposed)
	}
	pending, _ := store.ListByStatus(context.Background(), models.StatusPending)
	if len(pending) != 0 {
		t.Fatalf("pending = %d, want 0", len(pending))
	}
}

func insertPending(t *testing.T, store *repository.MemoryAdjustmentStore) *models.Adjustment {
	t.Helper()
	a := &models.Adjustment{
		StrategyName:  "funding_arbitrage",
		ParameterName: "min_funding_rate",
		OldValue:      0.0001,
		NewValue:      0.000125,
		Trigger:       models.TriggerWinRateLow,
		Status:        models.StatusPending,
	}
	if err := store.Insert(context.Background(), a); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	return a
}

func TestApproveTwiceConflicts(t *testing.T) {
	tn, store, _, _ := newTestTuner(t, TunerConfig{})
	a := insertPending(t, store)

	got, err := tn.Approve(context.Background(), a.ID, "alice")
	if err != nil {
		t.Fatalf("first approve: %v", err)
	}
	if got.Status != models.StatusApproved || got.ReviewedBy != "alice" {
		t.Fatalf("unexpected record: %+v", got)
	}

	if _, err := tn.Approve(context.Background(), a.ID, "bob"); !errors.Is(err, models.ErrConflict) {
		t.Fatalf("second approve err = %v, want ErrConflict", err)
	}
}

func TestApproveUnknownIDNotFound(t *testing.T) {
	tn, _, _, _ := newTestTuner(t, TunerConfig{})
	if _, err := tn.Approve(context.Background(), 999, "alice"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRevertPendingAndApproved(t *testing.T) {
	tn, store, _, _ := newTestTuner(t, TunerConfig{})

	p := insertPending(t, store)
	got, err := tn.Revert(context.Background(), p.ID, "alice")
	if err != nil {
		t.Fatalf("revert pending: %v", err)
	}
	if got.Status != models.StatusReverted {
		t.Fatalf("status = %s", got.Status)
	}

	ap := insertPending(t, store)
	if _, err := tn.Approve(context.Background(), ap.ID, "alice"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	got, err = tn.Revert(context.Background(), ap.ID, "bob")
	if err != nil {
		t.Fatalf("revert approved: %v", err)
	}
	if got.Status != models.StatusReverted {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestRevertAppliedConflicts(t *testing.T) {
	tn, store, _, _ := newTestTuner(t, TunerConfig{})
	a := insertPending(t, store)

	if _, err := tn.Approve(context.Background(), a.ID, "alice"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := tn.ApplyApproved(context.Background()); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := tn.Revert(context.Background(), a.ID, "bob"); !errors.Is(err, models.ErrConflict) {
		t.Fatalf("revert applied err = %v, want ErrConflict", err)
	}
}

func TestApplyApprovedIsIdempotentAndRebuilds(t *testing.T) {
	tn, store, _, rebuilder := newTestTuner(t, TunerConfig{})
	a := insertPending(t, store)
	if _, err := tn.Approve(context.Background(), a.ID, "alice"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	applied, err := tn.ApplyApproved(context.Background())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(applied) != 1 || applied[0].Status != models.StatusApplied {
		t.Fatalf("applied = %+v", applied)
	}
	if len(rebuilder.strategies) != 1 || rebuilder.strategies[0] != "funding_arbitrage" {
		t.Fatalf("rebuilds = %v", rebuilder.strategies)
	}

	// nothing newly approved: second pass applies nothing
	applied, err = tn.ApplyApproved(context.Background())
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if len(applied) != 0 {
		t.Fatalf("second apply = %d, want 0", len(applied))
	}
}

func TestEffectiveParamsFoldsOnlyApplied(t *testing.T) {
	tn, store, _, _ := newTestTuner(t, TunerConfig{})
	ctx := context.Background()

	// applied: changes min_funding_rate
	ap := insertPending(t, store)
	if _, err := tn.Approve(ctx, ap.ID, "alice"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := tn.ApplyApproved(ctx); err != nil {
		t.Fatalf("apply: %v", err)
	}

	// pending and reverted must not contribute
	pend := &models.Adjustment{
		StrategyName: "funding_arbitrage", ParameterName: "min_volume_usd",
		OldValue: 1e7, NewValue: 1.1e7, Status: models.StatusPending,
	}
	if err := store.Insert(ctx, pend); err != nil {
		t.Fatalf("insert: %v", err)
	}
	rev := insertPending(t, store)
	if _, err := tn.Revert(ctx, rev.ID, "bob"); err != nil {
		t.Fatalf("revert: %v", err)
	}

	params, err := tn.EffectiveParams(ctx, "funding_arbitrage")
	if err != nil {
		t.Fatalf("EffectiveParams: %v", err)
	}
	if params["min_funding_rate"] != 0.000125 {
		t.Fatalf("min_funding_rate = %v, want 0.000125", params["min_funding_rate"])
	}
	if params["min_volume_usd"] != 1e7 {
		t.Fatalf("min_volume_usd = %v, want default 1e7", params["min_volume_usd"])
	}
	if params["expiry_hours"] != 24 {
		t.Fatalf("expiry_hours = %v, want default 24", params["expiry_hours"])
	}
}

func TestEffectiveParamsUnknownStrategy(t *testing.T) {
	tn, _, _, _ := newTestTuner(t, TunerConfig{})
	if _, err := tn.EffectiveParams(context.Background(), "nope"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAutoApplyWalksFullLifecycle(t *testing.T) {
	tn, store, perf, rebuilder := newTestTuner(t, TunerConfig{AutoApply: true})
	perf.Set("funding_arbitrage", &models.StrategyPerformance{
		StrategyName: "funding_arbitrage",
		WinRate:      0.25,
		SignalCount:  10,
	})

	sum, err := tn.EvaluateAll(context.Background())
	if err != nil {
		t.Fatalf("EvaluateAll: %v", err)
	}
	if sum.Proposed != 1 || sum.Applied != 1 {
		t.Fatalf("sum = %+v", sum)
	}

	applied, _ := store.ListByStatus(context.Background(), models.StatusApplied)
	if len(applied) != 1 {
		t.Fatalf("applied = %d", len(applied))
	}
	if applied[0].ReviewedBy != AutoApplyReviewer {
		t.Fatalf("reviewer = %s", applied[0].ReviewedBy)
	}
	if len(rebuilder.strategies) != 1 {
		t.Fatalf("rebuilds = %v", rebuilder.strategies)
	}

	// effective params now reflect the applied step
	params, err := tn.EffectiveParams(context.Background(), "funding_arbitrage")
	if err != nil {
		t.Fatalf("EffectiveParams: %v", err)
	}
	if diff := params["min_funding_rate"] - 0.000125; diff > 1e-12 || diff < -1e-12 {
		t.Fatalf("min_funding_rate = %v, want 0.000125", params["min_funding_rate"])
	}
}
