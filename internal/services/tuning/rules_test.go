package tuning

import (
	"math"
	"testing"

	"PaperTune/internal/domain/models"
)

func fundingArb() models.StrategySpec {
	return models.StrategySpec{
		Name: "funding_arbitrage",
		Params: []models.ParamSpec{
			{Name: "min_funding_rate", Family: models.FamilyEntryFilter, Min: 0.00002, Max: 0.0005, Default: 0.0001},
			{Name: "min_volume_usd", Family: models.FamilyVolumeFloor, Min: 100000, Max: 5000000, Default: 500000},
			{Name: "expiry_hours", Family: models.FamilyExpiryHours, Min: 2, Max: 48, Default: 8},
		},
	}
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9*math.Max(1, math.Abs(a))
}

func TestLowWinRateTightensEntryFilter(t *testing.T) {
	spec := fundingArb()
	perf := &models.StrategyPerformance{StrategyName: spec.Name, WinRate: 0.25, AvgPnL: 0.002, SignalCount: 12}
	props := Propose(spec, perf, spec.Defaults(), DefaultConfig())
	if len(props) != 1 {
		t.Fatalf("expected 1 proposal, got %d", len(props))
	}
	a := props[0]
	if a.Trigger != models.TriggerWinRateLow || a.ParameterName != "min_funding_rate" {
		t.Fatalf("unexpected proposal: %+v", a)
	}
	if a.NewValue <= a.OldValue {
		t.Fatalf("expected increase, got %v -> %v", a.OldValue, a.NewValue)
	}
	// 25% cap: 0.0001 * 1.25 = 0.000125
	if !approxEqual(a.NewValue, 0.000125) {
		t.Fatalf("expected 25%% step to 0.000125, got %v", a.NewValue)
	}
	if a.Status != models.StatusPending {
		t.Fatalf("proposal must be pending, got %s", a.Status)
	}
	if a.WinRate7d != 0.25 || a.TotalSignals7d != 12 {
		t.Fatalf("performance context not carried: %+v", a)
	}
}

func TestHighWinRateLoosensByFivePercent(t *testing.T) {
	spec := fundingArb()
	perf := &models.StrategyPerformance{WinRate: 0.80, AvgPnL: 0.004, SignalCount: 20}
	props := Propose(spec, perf, spec.Defaults(), DefaultConfig())
	if len(props) != 1 {
		t.Fatalf("expected 1 proposal, got %d", len(props))
	}
	a := props[0]
	if a.Trigger != models.TriggerWinRateHigh {
		t.Fatalf("unexpected trigger %s", a.Trigger)
	}
	if !approxEqual(a.NewValue, 0.0001*0.95) {
		t.Fatalf("expected 5%% decrease, got %v", a.NewValue)
	}
}

func TestRulePriorityFirstMatchWinsPerParameter(t *testing.T) {
	spec := fundingArb()
	// Both rule 1 (win rate low) and rule 5 (low count, decent win
	// rate) cannot match together, but rule 1 and rule 3 can: entry
	// filter and volume floor are distinct families and both fire.
	perf := &models.StrategyPerformance{WinRate: 0.20, AvgPnL: -0.02, SignalCount: 10}
	props := Propose(spec, perf, spec.Defaults(), DefaultConfig())
	if len(props) != 2 {
		t.Fatalf("expected 2 proposals, got %d", len(props))
	}
	byParam := map[string]*models.Adjustment{}
	for _, p := range props {
		if byParam[p.ParameterName] != nil {
			t.Fatalf("parameter %s adjusted twice in one pass", p.ParameterName)
		}
		byParam[p.ParameterName] = p
	}
	if byParam["min_funding_rate"].Trigger != models.TriggerWinRateLow {
		t.Fatalf("entry filter should be claimed by rule 1")
	}
	if byParam["min_volume_usd"].Trigger != models.TriggerPnLLow {
		t.Fatalf("volume floor should be claimed by rule 3")
	}
}

func TestExpiryRuleExtendsExpiryHours(t *testing.T) {
	spec := fundingArb()
	perf := &models.StrategyPerformance{WinRate: 0.55, AvgPnL: 0.001, SignalCount: 9, ExpiryRate: 0.60}
	props := Propose(spec, perf, spec.Defaults(), DefaultConfig())
	if len(props) != 1 {
		t.Fatalf("expected 1 proposal, got %d", len(props))
	}
	a := props[0]
	if a.Trigger != models.TriggerExpiryHigh || a.ParameterName != "expiry_hours" {
		t.Fatalf("unexpected proposal %+v", a)
	}
	if !approxEqual(a.NewValue, 10) { // 8 * 1.25
		t.Fatalf("expected expiry 10h, got %v", a.NewValue)
	}
}

func TestLowSignalCountLoosensWhenWinRateDecent(t *testing.T) {
	spec := fundingArb()
	perf := &models.StrategyPerformance{WinRate: 0.60, AvgPnL: 0.002, SignalCount: 2}
	props := Propose(spec, perf, spec.Defaults(), DefaultConfig())
	if len(props) != 1 {
		t.Fatalf("expected 1 proposal, got %d", len(props))
	}
	a := props[0]
	if a.Trigger != models.TriggerLowSignalCount {
		t.Fatalf("unexpected trigger %s", a.Trigger)
	}
	if !approxEqual(a.NewValue, 0.0001*0.90) {
		t.Fatalf("expected 10%% decrease, got %v", a.NewValue)
	}

	// Same count with a poor win rate must not fire rule 5 (rule 1
	// claims the parameter first).
	perf = &models.StrategyPerformance{WinRate: 0.20, AvgPnL: 0.002, SignalCount: 2}
	props = Propose(spec, perf, spec.Defaults(), DefaultConfig())
	if len(props) != 1 || props[0].Trigger != models.TriggerWinRateLow {
		t.Fatalf("rule 1 should claim the entry filter: %+v", props)
	}
}

func TestProposalClampedToBoundAndDroppedAtBound(t *testing.T) {
	spec := models.StrategySpec{
		Name: "funding_arbitrage",
		Params: []models.ParamSpec{
			{Name: "min_funding_rate", Family: models.FamilyEntryFilter, Min: 0.00002, Max: 0.00012, Default: 0.0001},
		},
	}
	perf := &models.StrategyPerformance{WinRate: 0.10, SignalCount: 8}

	// 0.0001 * 1.25 = 0.000125 exceeds max; clamp to 0.00012.
	props := Propose(spec, perf, spec.Defaults(), DefaultConfig())
	if len(props) != 1 || !approxEqual(props[0].NewValue, 0.00012) {
		t.Fatalf("expected clamp to 0.00012, got %+v", props)
	}

	// Already pinned at the bound: proposal dropped entirely.
	props = Propose(spec, perf, map[string]float64{"min_funding_rate": 0.00012}, DefaultConfig())
	if len(props) != 0 {
		t.Fatalf("expected no proposal at bound, got %+v", props)
	}
}

func TestNoPerformanceMeansNoProposals(t *testing.T) {
	if props := Propose(fundingArb(), nil, nil, DefaultConfig()); props != nil {
		t.Fatalf("expected nil, got %+v", props)
	}
}

func TestStepNeverExceedsQuarterOfOldValue(t *testing.T) {
	spec := fundingArb()
	perfs := []*models.StrategyPerformance{
		{WinRate: 0.05, AvgPnL: -0.10, SignalCount: 1, ExpiryRate: 0.9},
		{WinRate: 0.95, AvgPnL: 0.05, SignalCount: 40, ExpiryRate: 0.8},
		{WinRate: 0.55, AvgPnL: -0.05, SignalCount: 3, ExpiryRate: 0.2},
	}
	for _, perf := range perfs {
		for _, a := range Propose(spec, perf, spec.Defaults(), DefaultConfig()) {
			rel := math.Abs(a.NewValue-a.OldValue) / math.Abs(a.OldValue)
			if rel > MaxRelativeStep+1e-9 {
				t.Fatalf("step %.4f exceeds cap for %s", rel, a.ParameterName)
			}
			spec0, _ := spec.Param(a.ParameterName)
			if a.NewValue < spec0.Min || a.NewValue > spec0.Max {
				t.Fatalf("new value %v outside bounds for %s", a.NewValue, a.ParameterName)
			}
		}
	}
}
