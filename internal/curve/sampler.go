package curve

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// SampleDailyTarget draws one day's total around base:
// base + Normal(0, delta*base*0.3), clamped into [0.5*base, 1.5*base] and
// truncated. A nil src falls back to the global generator.
func SampleDailyTarget(base int, delta float64, src rand.Source) int {
	if base <= 0 {
		return 0
	}
	b := float64(base)
	dist := distuv.Normal{Mu: 0, Sigma: math.Abs(delta * b * 0.3), Src: src}

	v := b + dist.Rand()
	v = math.Max(v, 0.5*b)
	v = math.Min(v, 1.5*b)
	return int(v)
}

// targetBounds returns the inclusive range SampleDailyTarget can produce.
func targetBounds(base int) (lo, hi int) {
	if base <= 0 {
		return 0, 0
	}
	return int(0.5 * float64(base)), int(1.5 * float64(base))
}
