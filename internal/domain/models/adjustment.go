package models

import "time"

// AdjustmentStatus is the review lifecycle state of a proposed
// parameter change.
type AdjustmentStatus string

const (
	StatusPending  AdjustmentStatus = "pending"
	StatusApproved AdjustmentStatus = "approved"
	StatusReverted AdjustmentStatus = "reverted"
	StatusApplied  AdjustmentStatus = "applied"
)

// Terminal reports whether no further transition is allowed.
func (s AdjustmentStatus) Terminal() bool {
	return s == StatusApplied || s == StatusReverted
}

// ValidTransition enumerates the adjustment state machine:
// pending -> approved -> applied, and pending/approved -> reverted.
// No transition may skip a state.
func ValidTransition(from, to AdjustmentStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusApproved || to == StatusReverted
	case StatusApproved:
		return to == StatusApplied || to == StatusReverted
	default:
		return false
	}
}

// MetricTrigger names the tuning rule that produced an adjustment.
type MetricTrigger string

const (
	TriggerWinRateLow     MetricTrigger = "win_rate_low"
	TriggerWinRateHigh    MetricTrigger = "win_rate_high"
	TriggerPnLLow         MetricTrigger = "pnl_low"
	TriggerExpiryHigh     MetricTrigger = "expiry_high"
	TriggerLowSignalCount MetricTrigger = "low_signal_count"
)

// Adjustment is one proposed change to one parameter of one strategy.
// Created by the tuner's evaluation pass; mutated only by explicit
// approve/revert/apply transitions; never deleted (audit trail).
type Adjustment struct {
	ID            int64         `json:"id"`
	StrategyName  string        `json:"strategy_name"`
	ParameterName string        `json:"parameter_name"`
	OldValue      float64       `json:"old_value"`
	NewValue      float64       `json:"new_value"`
	Reason        string        `json:"reason"`
	Trigger       MetricTrigger `json:"metric_trigger"`
	MetricValue   float64       `json:"metric_value"`

	// 7-day performance context at evaluation time.
	WinRate7d      float64 `json:"win_rate_7d"`
	TotalPnL7d     float64 `json:"total_pnl_7d"`
	AvgPnL7d       float64 `json:"avg_pnl_7d"`
	TotalSignals7d int     `json:"total_signals_7d"`

	Status     AdjustmentStatus `json:"status"`
	ReviewedBy string           `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time       `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}
