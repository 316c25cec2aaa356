package models

import "time"

// Trend describes the short-term direction of an indicator series.
type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendFlat    Trend = "flat"
)

// Momentum describes whether MACD momentum is building or fading
// relative to the current histogram direction.
type Momentum string

const (
	MomentumStrengthening Momentum = "strengthening"
	MomentumWeakening     Momentum = "weakening"
	MomentumFlat          Momentum = "flat"
)

// IndicatorSnapshot is one ticker, one timeframe, one point in time.
// Immutable once produced; superseded by the next snapshot for the
// same (ticker, timeframe) key. Zero-valued indicator fields mean the
// upstream pipeline had not computed them yet; the scorer treats those
// lines as neutral.
type IndicatorSnapshot struct {
	Ticker    string    `json:"ticker"`
	Timeframe string    `json:"timeframe"`
	Timestamp time.Time `json:"timestamp"`

	Price float64 `json:"price"`

	EMA9  float64 `json:"ema9"`
	EMA20 float64 `json:"ema20"`
	EMA50 float64 `json:"ema50"`

	RSI      float64 `json:"rsi"`
	RSITrend Trend   `json:"rsi_trend"`

	MACDLine     float64  `json:"macd_line"`
	MACDSignal   float64  `json:"macd_signal"`
	MACDHist     float64  `json:"macd_hist"`
	MACDMomentum Momentum `json:"macd_momentum"`

	Volume      float64 `json:"volume"`
	VolumeAvg   float64 `json:"volume_avg"`
	VolumeRatio float64 `json:"volume_ratio"`
	VolumeTrend Trend   `json:"volume_trend"`

	BollUpper  float64 `json:"boll_upper"`
	BollMiddle float64 `json:"boll_middle"`
	BollLower  float64 `json:"boll_lower"`
	// 0 = lower band, 1 = upper band
	BollPosition float64 `json:"boll_position"`
}

// HasPrice reports whether the snapshot carries a usable reference price.
func (s *IndicatorSnapshot) HasPrice() bool {
	return s != nil && s.Price > 0
}
