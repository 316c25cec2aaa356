package tuning

import (
	"fmt"

	"PaperTune/internal/domain/models"
)

// Thresholds for the rule set. WinRate/ExpiryRate are fractions,
// PnL values are fractional returns.
type Config struct {
	WinRateLow     float64 // rule 1: below this, tighten entry filters
	WinRateHigh    float64 // rule 2: above this, loosen entry filters
	AvgPnLFloor    float64 // rule 3: below this, raise volume floors
	ExpiryRateHigh float64 // rule 4: above this, extend expiry hours
	MinSignalCount int     // rule 5: fewer signals than this is "low"
	DecentWinRate  float64 // rule 5: win rate considered healthy
}

// DefaultConfig matches the documented tuning rubric.
func DefaultConfig() Config {
	return Config{
		WinRateLow:     0.30,
		WinRateHigh:    0.70,
		AvgPnLFloor:    -0.01,
		ExpiryRateHigh: 0.50,
		MinSignalCount: 5,
		DecentWinRate:  0.50,
	}
}

type rule struct {
	trigger models.MetricTrigger
	family  models.ParamFamily
	up      bool
	step    float64
	matches func(p *models.StrategyPerformance, cfg Config) bool
	metric  func(p *models.StrategyPerformance) float64
	reason  func(p *models.StrategyPerformance) string
}

// Fixed priority order: the first matching rule claims its parameter
// family for the pass; later rules never touch a claimed parameter.
var rules = []rule{
	{
		trigger: models.TriggerWinRateLow,
		family:  models.FamilyEntryFilter,
		up:      true,
		step:    MaxRelativeStep,
		matches: func(p *models.StrategyPerformance, cfg Config) bool { return p.WinRate < cfg.WinRateLow },
		metric:  func(p *models.StrategyPerformance) float64 { return p.WinRate },
		reason: func(p *models.StrategyPerformance) string {
			return fmt.Sprintf("win rate %.1f%% below floor, tightening entry filter", p.WinRate*100)
		},
	},
	{
		trigger: models.TriggerWinRateHigh,
		family:  models.FamilyEntryFilter,
		up:      false,
		step:    0.05,
		matches: func(p *models.StrategyPerformance, cfg Config) bool { return p.WinRate > cfg.WinRateHigh },
		metric:  func(p *models.StrategyPerformance) float64 { return p.WinRate },
		reason: func(p *models.StrategyPerformance) string {
			return fmt.Sprintf("win rate %.1f%% comfortably high, loosening entry filter", p.WinRate*100)
		},
	},
	{
		trigger: models.TriggerPnLLow,
		family:  models.FamilyVolumeFloor,
		up:      true,
		step:    0.10,
		matches: func(p *models.StrategyPerformance, cfg Config) bool { return p.AvgPnL < cfg.AvgPnLFloor },
		metric:  func(p *models.StrategyPerformance) float64 { return p.AvgPnL },
		reason: func(p *models.StrategyPerformance) string {
			return fmt.Sprintf("avg pnl %.2f%% negative, raising liquidity floor", p.AvgPnL*100)
		},
	},
	{
		trigger: models.TriggerExpiryHigh,
		family:  models.FamilyExpiryHours,
		up:      true,
		step:    MaxRelativeStep,
		matches: func(p *models.StrategyPerformance, cfg Config) bool { return p.ExpiryRate > cfg.ExpiryRateHigh },
		metric:  func(p *models.StrategyPerformance) float64 { return p.ExpiryRate },
		reason: func(p *models.StrategyPerformance) string {
			return fmt.Sprintf("%.0f%% of signals expiring before target or stop, extending expiry", p.ExpiryRate*100)
		},
	},
	{
		trigger: models.TriggerLowSignalCount,
		family:  models.FamilyEntryFilter,
		up:      false,
		step:    0.10,
		matches: func(p *models.StrategyPerformance, cfg Config) bool {
			return p.SignalCount < cfg.MinSignalCount && p.WinRate >= cfg.DecentWinRate
		},
		metric: func(p *models.StrategyPerformance) float64 { return float64(p.SignalCount) },
		reason: func(p *models.StrategyPerformance) string {
			return fmt.Sprintf("only %d signals with a healthy win rate, loosening filters", p.SignalCount)
		},
	},
}

// Propose runs the rule set over one strategy's performance aggregate
// and returns bounded PENDING adjustment proposals. effective maps
// parameter name to its current effective value (defaults folded with
// applied history). Out-of-bound or zero-effect proposals are dropped
// silently.
func Propose(spec models.StrategySpec, perf *models.StrategyPerformance, effective map[string]float64, cfg Config) []*models.Adjustment {
	if perf == nil {
		return nil
	}

	var out []*models.Adjustment
	claimed := make(map[string]bool)

	for _, r := range rules {
		if !r.matches(perf, cfg) {
			continue
		}
		for _, p := range spec.ByFamily(r.family) {
			if claimed[p.Name] {
				continue
			}
			// First matching rule wins the parameter for this pass,
			// even when its proposal is dropped below.
			claimed[p.Name] = true

			oldV, ok := effective[p.Name]
			if !ok {
				oldV = p.Default
			}
			newV := Step(oldV, r.step, r.up)
			newV = ClampToRange(newV, p.Min, p.Max)
			newV = ClampStep(oldV, newV)
			if !Effective(oldV, newV) {
				continue // already pinned at a bound
			}

			out = append(out, &models.Adjustment{
				StrategyName:   spec.Name,
				ParameterName:  p.Name,
				OldValue:       oldV,
				NewValue:       newV,
				Reason:         r.reason(perf),
				Trigger:        r.trigger,
				MetricValue:    r.metric(perf),
				WinRate7d:      perf.WinRate,
				TotalPnL7d:     perf.TotalPnL,
				AvgPnL7d:       perf.AvgPnL,
				TotalSignals7d: perf.SignalCount,
				Status:         models.StatusPending,
			})
		}
	}
	return out
}
