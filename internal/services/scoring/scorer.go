// Package scoring computes trim recommendations for open positions
// from streamed technical indicator snapshots. The scorer is a pure
// function of its inputs; persistence and alerting belong to the
// caller.
package scoring

import (
	"fmt"
	"strings"
	"time"

	"PaperTune/internal/domain/models"
)

// Score bounds implied by the weight table: all lines favorable sums
// to +12, all lines adverse sums to -15.
const (
	ScoreMax = 12
	ScoreMin = -15
)

// RSI classification thresholds (1H).
const (
	rsiBearishMax = 40.0
	rsiBullishMin = 60.0
)

// Volume-on-bounce thresholds: a counter-move on >=1.5x average
// volume has conviction behind it; volume at or below average does
// not.
const (
	volumeConvictionRatio = 1.5
	volumeQuietRatio      = 1.0
)

// stance of one signal line relative to the position:
// +1 favorable to holding, -1 favorable to trimming, 0 neutral.
type stance int

const (
	holdStance stance = 1
	neutral    stance = 0
	trimStance stance = -1
)

type signalLine struct {
	name       string
	holdWeight int
	trimWeight int // negative
	classify   func(pos *models.Position, h1, h4 *models.IndicatorSnapshot) stance
}

// The weight table. Order matters only for reason reporting.
var lines = []signalLine{
	{"price vs EMA9", 2, -2, classifyPriceEMA9},
	{"price vs EMA20", 2, -3, classifyPriceEMA20},
	{"RSI", 2, -2, classifyRSI},
	{"RSI trend", 1, -1, classifyRSITrend},
	{"MACD histogram", 2, -2, classifyMACDHist},
	{"MACD momentum", 1, -1, classifyMACDMomentum},
	{"volume on bounce", 1, -2, classifyVolume},
	{"4H trend", 1, -2, classify4HTrend},
}

// LineScore is one signal line's contribution to the total.
type LineScore struct {
	Name   string
	Points int
}

// Score sums the 8 weighted line contributions for a position against
// its 1H snapshot and optional 4H snapshot. Missing inputs contribute
// a neutral 0 to their line.
func Score(pos *models.Position, h1, h4 *models.IndicatorSnapshot) (int, []LineScore) {
	total := 0
	parts := make([]LineScore, 0, len(lines))
	for _, l := range lines {
		pts := 0
		switch l.classify(pos, h1, h4) {
		case holdStance:
			pts = l.holdWeight
		case trimStance:
			pts = l.trimWeight
		}
		total += pts
		parts = append(parts, LineScore{Name: l.name, Points: pts})
	}
	return total, parts
}

// Recommend maps a score to a recommendation. The thresholds are
// closed, non-overlapping and partition every integer in
// [ScoreMin, ScoreMax].
func Recommend(score int) (models.Recommendation, string) {
	switch {
	case score <= -8:
		return models.RecExit75, "technicals strongly against position"
	case score <= -5:
		return models.RecTrim50, "technicals deteriorating"
	case score <= 0:
		return models.RecTrim25, "early caution"
	case score <= 5:
		return models.RecHold, "hold, minor caution"
	default:
		return models.RecHold, "hold, technicals fully aligned"
	}
}

// Evaluate builds a complete trim signal for an open position. The
// 1H snapshot must carry a price; the caller guards that.
func Evaluate(pos *models.Position, h1, h4 *models.IndicatorSnapshot, now time.Time) *models.TrimSignal {
	score, parts := Score(pos, h1, h4)
	rec, summary := Recommend(score)

	return &models.TrimSignal{
		Ticker:         pos.Ticker,
		Direction:      pos.Direction,
		Score:          score,
		Recommendation: rec,
		TrimPercent:    rec.TrimPercent(),
		Reason:         buildReason(score, summary, parts),
		PositionSize:   pos.Size,
		EntryPrice:     pos.EntryPrice,
		CurrentPrice:   pos.CurrentPrice,
		PnLPercent:     pos.PnLPercent(),
		Levels: models.KeyLevels{
			EMA9:        h1.EMA9,
			EMA20:       h1.EMA20,
			RSI:         h1.RSI,
			MACDHist:    h1.MACDHist,
			VolumeRatio: h1.VolumeRatio,
		},
		Timestamp: now,
	}
}

func buildReason(score int, summary string, parts []LineScore) string {
	var adverse []string
	for _, p := range parts {
		if p.Points < 0 {
			adverse = append(adverse, fmt.Sprintf("%s %d", p.Name, p.Points))
		}
	}
	if len(adverse) == 0 {
		return fmt.Sprintf("score %d: %s", score, summary)
	}
	return fmt.Sprintf("score %d: %s (%s)", score, summary, strings.Join(adverse, ", "))
}

// --- line classifiers ---

// biasToStance converts a market-direction bias (+1 bullish,
// -1 bearish) into a position-relative stance: bullish is favorable
// for LONG and adverse for SHORT.
func biasToStance(bias int, dir models.Direction) stance {
	return stance(bias * dir.Sign())
}

func priceVsEMA(pos *models.Position, price, ema float64) stance {
	if ema <= 0 || price <= 0 {
		return neutral
	}
	switch {
	case price > ema:
		return biasToStance(1, pos.Direction)
	case price < ema:
		return biasToStance(-1, pos.Direction)
	default:
		return neutral
	}
}

func classifyPriceEMA9(pos *models.Position, h1, _ *models.IndicatorSnapshot) stance {
	return priceVsEMA(pos, h1.Price, h1.EMA9)
}

func classifyPriceEMA20(pos *models.Position, h1, _ *models.IndicatorSnapshot) stance {
	return priceVsEMA(pos, h1.Price, h1.EMA20)
}

func classifyRSI(pos *models.Position, h1, _ *models.IndicatorSnapshot) stance {
	if h1.RSI <= 0 {
		return neutral
	}
	switch {
	case h1.RSI >= rsiBullishMin:
		return biasToStance(1, pos.Direction)
	case h1.RSI <= rsiBearishMax:
		return biasToStance(-1, pos.Direction)
	default:
		return neutral
	}
}

func classifyRSITrend(pos *models.Position, h1, _ *models.IndicatorSnapshot) stance {
	switch h1.RSITrend {
	case models.TrendRising:
		return biasToStance(1, pos.Direction)
	case models.TrendFalling:
		return biasToStance(-1, pos.Direction)
	default:
		return neutral
	}
}

func macdPresent(s *models.IndicatorSnapshot) bool {
	return s.MACDLine != 0 || s.MACDSignal != 0 || s.MACDHist != 0
}

func classifyMACDHist(pos *models.Position, h1, _ *models.IndicatorSnapshot) stance {
	if !macdPresent(h1) {
		return neutral
	}
	switch {
	case h1.MACDHist > 0:
		return biasToStance(1, pos.Direction)
	case h1.MACDHist < 0:
		return biasToStance(-1, pos.Direction)
	default:
		return neutral
	}
}

// MACD momentum is read relative to the histogram sign: strengthening
// with a positive histogram is bullish momentum, strengthening with a
// negative histogram is bearish momentum, and weakening flips either.
func classifyMACDMomentum(pos *models.Position, h1, _ *models.IndicatorSnapshot) stance {
	if !macdPresent(h1) || h1.MACDHist == 0 {
		return neutral
	}
	histBias := 1
	if h1.MACDHist < 0 {
		histBias = -1
	}
	switch h1.MACDMomentum {
	case models.MomentumStrengthening:
		return biasToStance(histBias, pos.Direction)
	case models.MomentumWeakening:
		return biasToStance(-histBias, pos.Direction)
	default:
		return neutral
	}
}

// Volume on bounce: a counter-move against the position on elevated
// volume argues for trimming; a counter-move (or drift) on quiet
// volume lacks conviction and argues for holding.
func classifyVolume(pos *models.Position, h1, _ *models.IndicatorSnapshot) stance {
	if h1.VolumeRatio <= 0 {
		return neutral
	}
	adverseMove := priceVsEMA(pos, h1.Price, h1.EMA9) == trimStance
	switch {
	case adverseMove && h1.VolumeRatio >= volumeConvictionRatio:
		return trimStance
	case h1.VolumeRatio <= volumeQuietRatio:
		return holdStance
	default:
		return neutral
	}
}

// 4H trend from higher-timeframe EMA alignment. A missing 4H snapshot
// is neutral by contract.
func classify4HTrend(pos *models.Position, _, h4 *models.IndicatorSnapshot) stance {
	if h4 == nil || h4.Price <= 0 || h4.EMA9 <= 0 || h4.EMA20 <= 0 {
		return neutral
	}
	switch {
	case h4.Price > h4.EMA20 && h4.EMA9 > h4.EMA20:
		return biasToStance(1, pos.Direction)
	case h4.Price < h4.EMA20 && h4.EMA9 < h4.EMA20:
		return biasToStance(-1, pos.Direction)
	default:
		return neutral
	}
}
