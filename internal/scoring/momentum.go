// Package scoring holds the pure derivation algorithms: review momentum,
// keyword opportunity, and listing similarity. Nothing here performs I/O;
// every scorer is a function of its declared inputs.
package scoring

import "math"

// Trend is the five-way review-acquisition classification.
type Trend string

const (
	TrendFlat         Trend = "flat"
	TrendSpike        Trend = "spike"
	TrendAccelerating Trend = "accelerating"
	TrendSlowing      Trend = "slowing"
	TrendStable       Trend = "stable"
)

// MomentumResult carries the intermediate accelerations alongside the
// classification so they can be persisted for inspection.
type MomentumResult struct {
	V7, V30, V90 int
	Expected7    float64 // 7-day count implied by the 30-day rate
	Expected30   float64 // 30-day count implied by the 90-day rate
	AccMicro     float64 // v7 - expected7
	AccMacro     float64 // v30 - expected30
	Trend        Trend
}

// Momentum classifies review-acquisition trend from trailing-window counts:
// reviews gained in the last 7, 30, and 90 days.
func Momentum(v7, v30, v90 int) MomentumResult {
	expected7 := float64(v30) / (30.0 / 7.0)
	accMicro := round2(float64(v7) - expected7)

	expected30 := float64(v90) / 3.0
	accMacro := round2(float64(v30) - expected30)

	r := MomentumResult{
		V7: v7, V30: v30, V90: v90,
		Expected7:  expected7,
		Expected30: expected30,
		AccMicro:   accMicro,
		AccMacro:   accMacro,
	}

	switch {
	case v30 == 0 && v7 == 0:
		r.Trend = TrendFlat
	case expected7 > 0 && accMicro > expected7:
		r.Trend = TrendSpike
	case accMicro > 0 && accMacro > 0:
		r.Trend = TrendAccelerating
	case accMicro < 0 || accMacro < 0:
		r.Trend = TrendSlowing
	default:
		r.Trend = TrendStable
	}
	return r
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
