package models

import "time"

// Recommendation is the discrete trim action derived from a score.
type Recommendation string

const (
	RecHold   Recommendation = "HOLD"
	RecTrim25 Recommendation = "TRIM_25"
	RecTrim50 Recommendation = "TRIM_50"
	RecExit75 Recommendation = "EXIT_75"
)

// Rank orders recommendations by aggressiveness, HOLD lowest.
// Used to decide whether a fresh signal escalated past the last one.
func (r Recommendation) Rank() int {
	switch r {
	case RecTrim25:
		return 1
	case RecTrim50:
		return 2
	case RecExit75:
		return 3
	default:
		return 0
	}
}

// TrimPercent maps a recommendation to the share of the position to cut.
func (r Recommendation) TrimPercent() float64 {
	switch r {
	case RecTrim25:
		return 25
	case RecTrim50:
		return 50
	case RecExit75:
		return 75
	default:
		return 0
	}
}

// KeyLevels captures the indicator values the score was computed from,
// persisted alongside the signal for later review.
type KeyLevels struct {
	EMA9        float64 `json:"ema9"`
	EMA20       float64 `json:"ema20"`
	RSI         float64 `json:"rsi"`
	MACDHist    float64 `json:"macd_hist"`
	VolumeRatio float64 `json:"volume_ratio"`
}

// TrimSignal is the scorer's output for one evaluation of one open
// position. Created fresh on each evaluation, never mutated;
// history is append-only.
type TrimSignal struct {
	Ticker         string         `json:"ticker"`
	Direction      Direction      `json:"direction"`
	Score          int            `json:"score"`
	Recommendation Recommendation `json:"recommendation"`
	TrimPercent    float64        `json:"trim_percent"`
	Reason         string         `json:"reason"`
	PositionSize   float64        `json:"position_size"`
	EntryPrice     float64        `json:"entry_price"`
	CurrentPrice   float64        `json:"current_price"`
	PnLPercent     float64        `json:"pnl_percent"`
	Levels         KeyLevels      `json:"levels"`
	Timestamp      time.Time      `json:"timestamp"`
}

// EvalStatus distinguishes a scored evaluation from the two expected
// no-result outcomes. Neither no-result case is an error.
type EvalStatus string

const (
	EvalScored           EvalStatus = "scored"
	EvalNoPosition       EvalStatus = "no_position"
	EvalInsufficientData EvalStatus = "insufficient_data"
)

// Evaluation is the full result of one scorer invocation for a ticker.
type Evaluation struct {
	Ticker string      `json:"ticker"`
	Status EvalStatus  `json:"status"`
	Signal *TrimSignal `json:"signal,omitempty"`
}
