package scoring

import (
	"testing"
	"time"

	"PaperTune/internal/domain/models"
)

func shortPos() *models.Position {
	return &models.Position{
		Ticker:       "ETH",
		Direction:    models.Short,
		Size:         1.5,
		EntryPrice:   2600,
		CurrentPrice: 2500,
	}
}

func longPos() *models.Position {
	return &models.Position{
		Ticker:       "ETH",
		Direction:    models.Long,
		Size:         1.5,
		EntryPrice:   2400,
		CurrentPrice: 2500,
	}
}

// Fully aligned short: every line favors holding the position.
func alignedBearish1h() *models.IndicatorSnapshot {
	return &models.IndicatorSnapshot{
		Ticker:       "ETH",
		Timeframe:    "1h",
		Price:        2500,
		EMA9:         2520,
		EMA20:        2550,
		RSI:          40,
		RSITrend:     models.TrendFalling,
		MACDLine:     -4,
		MACDSignal:   -2,
		MACDHist:     -2,
		MACDMomentum: models.MomentumStrengthening,
		Volume:       800,
		VolumeAvg:    1000,
		VolumeRatio:  0.8,
	}
}

func bearish4h() *models.IndicatorSnapshot {
	return &models.IndicatorSnapshot{
		Ticker:    "ETH",
		Timeframe: "4h",
		Price:     2500,
		EMA9:      2540,
		EMA20:     2580,
	}
}

func TestShortFullyAlignedScoresTwelve(t *testing.T) {
	score, _ := Score(shortPos(), alignedBearish1h(), bearish4h())
	if score != 12 {
		t.Fatalf("expected score 12, got %d", score)
	}
	rec, _ := Recommend(score)
	if rec != models.RecHold {
		t.Fatalf("expected HOLD, got %s", rec)
	}
}

func TestLongFullyAdverseScoresMinimum(t *testing.T) {
	h1 := alignedBearish1h()
	h1.VolumeRatio = 2.0 // heavy volume behind the move against the long
	score, _ := Score(longPos(), h1, bearish4h())
	if score != ScoreMin {
		t.Fatalf("expected score %d, got %d", ScoreMin, score)
	}
	rec, _ := Recommend(score)
	if rec != models.RecExit75 {
		t.Fatalf("expected EXIT_75, got %s", rec)
	}
}

func TestRecommendPartitionsRange(t *testing.T) {
	cases := []struct {
		score int
		want  models.Recommendation
	}{
		{ScoreMin, models.RecExit75},
		{-9, models.RecExit75},
		{-8, models.RecExit75},
		{-7, models.RecTrim50},
		{-5, models.RecTrim50},
		{-4, models.RecTrim25},
		{0, models.RecTrim25},
		{1, models.RecHold},
		{5, models.RecHold},
		{6, models.RecHold},
		{ScoreMax, models.RecHold},
	}
	for _, c := range cases {
		if got, _ := Recommend(c.score); got != c.want {
			t.Fatalf("score %d: expected %s, got %s", c.score, c.want, got)
		}
	}

	// Aggressiveness never increases as the score rises.
	prev, _ := Recommend(ScoreMin)
	for s := ScoreMin + 1; s <= ScoreMax; s++ {
		cur, _ := Recommend(s)
		if cur.Rank() > prev.Rank() {
			t.Fatalf("rank increased from score %d to %d", s-1, s)
		}
		prev = cur
	}
}

func TestMissingIndicatorsAreNeutral(t *testing.T) {
	h1 := &models.IndicatorSnapshot{Ticker: "ETH", Timeframe: "1h", Price: 2500}
	score, parts := Score(shortPos(), h1, nil)
	if score != 0 {
		t.Fatalf("expected neutral score 0, got %d", score)
	}
	for _, p := range parts {
		if p.Points != 0 {
			t.Fatalf("line %s contributed %d with no indicator data", p.Name, p.Points)
		}
	}
}

func TestMissing4HContributesZero(t *testing.T) {
	h1 := alignedBearish1h()
	with, _ := Score(shortPos(), h1, bearish4h())
	without, _ := Score(shortPos(), h1, nil)
	if with-without != 1 {
		t.Fatalf("expected 4H line to add exactly its hold weight, got %d vs %d", with, without)
	}
}

func TestDirectionFlipsClassification(t *testing.T) {
	h1 := alignedBearish1h()
	h1.VolumeRatio = 2.0
	sScore, _ := Score(shortPos(), h1, bearish4h())
	lScore, _ := Score(longPos(), h1, bearish4h())
	if sScore <= 0 || lScore >= 0 {
		t.Fatalf("expected opposite signs, short=%d long=%d", sScore, lScore)
	}
	lRec, _ := Recommend(lScore)
	if lRec == models.RecHold {
		t.Fatalf("bearish setup should not be a hold for a long")
	}
}

func TestScoreStaysWithinBounds(t *testing.T) {
	rsis := []float64{0, 25, 50, 75}
	trends := []models.Trend{models.TrendRising, models.TrendFalling, models.TrendFlat}
	hists := []float64{-3, 0, 3}
	moms := []models.Momentum{models.MomentumStrengthening, models.MomentumWeakening, models.MomentumFlat}
	ratios := []float64{0, 0.7, 1.2, 2.0}
	for _, dir := range []models.Direction{models.Long, models.Short} {
		pos := shortPos()
		pos.Direction = dir
		for _, rsi := range rsis {
			for _, tr := range trends {
				for _, h := range hists {
					for _, m := range moms {
						for _, r := range ratios {
							h1 := alignedBearish1h()
							h1.RSI = rsi
							h1.RSITrend = tr
							h1.MACDHist = h
							h1.MACDMomentum = m
							h1.VolumeRatio = r
							score, _ := Score(pos, h1, bearish4h())
							if score < ScoreMin || score > ScoreMax {
								t.Fatalf("score %d out of [%d, %d]", score, ScoreMin, ScoreMax)
							}
						}
					}
				}
			}
		}
	}
}

func TestEvaluateCarriesPositionAndLevels(t *testing.T) {
	now := time.Now()
	sig := Evaluate(shortPos(), alignedBearish1h(), bearish4h(), now)
	if sig.Ticker != "ETH" || sig.Direction != models.Short {
		t.Fatalf("unexpected signal identity: %+v", sig)
	}
	if sig.Score != 12 || sig.Recommendation != models.RecHold || sig.TrimPercent != 0 {
		t.Fatalf("unexpected scoring outcome: %+v", sig)
	}
	if sig.Levels.EMA9 != 2520 || sig.Levels.RSI != 40 {
		t.Fatalf("key levels not carried: %+v", sig.Levels)
	}
	if sig.PnLPercent <= 0 {
		t.Fatalf("short below entry should be in profit, got %v", sig.PnLPercent)
	}
	if !sig.Timestamp.Equal(now) {
		t.Fatalf("timestamp not set")
	}
}
