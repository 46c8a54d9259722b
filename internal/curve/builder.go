package curve

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

// Build expands table into a per-minute curve reaching target by the last
// anchor.
//
// Every minute of each anchor segment gets the linearly interpolated value
// plus a Uniform(-delta, 0) share of it as jitter, floored at 0. A running
// max then makes the curve non-decreasing. Minutes before the first anchor
// are 0; the last anchor minute and everything after it are target.
//
// The jitter is one-sided, so delta only ever holds the curve back from the
// ideal trajectory. delta = 0 gives the pure interpolation.
func Build(target int, delta float64, table ScheduleTable, src rand.Source) (*Curve, error) {
	if target < 0 {
		return nil, fmt.Errorf("curve: negative target %d", target)
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}

	c := &Curve{target: target, loc: time.Local}
	t := float64(target)
	jitter := distuv.Uniform{Min: -math.Abs(delta), Max: 0, Src: src}

	for i := 0; i+1 < len(table.anchors); i++ {
		a, b := table.anchors[i], table.anchors[i+1]
		for m := a.Minute; m <= b.Minute; m++ {
			theoretical := t * interpolate(a, b, m)
			v := theoretical + jitter.Rand()*theoretical
			c.slots[m] = math.Min(math.Max(v, 0), t)
		}
	}

	first, last := table.First().Minute, table.Last().Minute
	for m := 0; m < first; m++ {
		c.slots[m] = 0
	}
	for m := last; m < MinutesPerDay; m++ {
		c.slots[m] = t
	}

	running := 0.0
	for m := range c.slots {
		running = math.Max(running, c.slots[m])
		c.slots[m] = running
	}

	c.built = true
	return c, nil
}

func interpolate(a, b Anchor, m int) float64 {
	if a.Minute == b.Minute {
		return a.Fraction
	}
	return a.Fraction + (b.Fraction-a.Fraction)*float64(m-a.Minute)/float64(b.Minute-a.Minute)
}
