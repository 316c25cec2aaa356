// Package tuning proposes bounded strategy parameter adjustments from
// trailing performance aggregates. Proposals are pure values; the
// caller persists them and runs the review lifecycle.
package tuning

import "math"

// MaxRelativeStep caps any single adjustment at 25% of the current
// value, regardless of what a rule asked for.
const MaxRelativeStep = 0.25

// stepEpsilon absorbs float noise when deciding whether a clamped
// proposal still moves the value.
const stepEpsilon = 1e-12

// ClampToRange bounds v to [min, max].
func ClampToRange(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// ClampStep bounds newV so that |newV-oldV|/|oldV| <= MaxRelativeStep,
// preserving the proposed direction.
func ClampStep(oldV, newV float64) float64 {
	if oldV == 0 {
		return newV
	}
	rel := (newV - oldV) / math.Abs(oldV)
	if rel > MaxRelativeStep {
		return oldV + MaxRelativeStep*math.Abs(oldV)
	}
	if rel < -MaxRelativeStep {
		return oldV - MaxRelativeStep*math.Abs(oldV)
	}
	return newV
}

// Step moves v by a relative fraction in the given direction.
func Step(v, fraction float64, up bool) float64 {
	if up {
		return v * (1 + fraction)
	}
	return v * (1 - fraction)
}

// Effective reports whether a clamped proposal still changes the value.
func Effective(oldV, newV float64) bool {
	return math.Abs(newV-oldV) > stepEpsilon*math.Max(1, math.Abs(oldV))
}
