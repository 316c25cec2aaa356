package models

// StrategyPerformance is a trailing-window outcome aggregate for one
// strategy. Rates are fractions in [0,1]; PnL values are fractional
// returns (0.01 = +1%).
type StrategyPerformance struct {
	StrategyName string  `json:"strategy_name"`
	WinRate      float64 `json:"win_rate"`
	TotalPnL     float64 `json:"total_pnl"`
	AvgPnL       float64 `json:"avg_pnl"`
	SignalCount  int     `json:"signal_count"`
	ExpiryRate   float64 `json:"expiry_rate"`
}
