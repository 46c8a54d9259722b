package curve

import (
	"errors"
	"math"
	"time"
)

// ErrIncompleteCurve means a curve was queried that the builder never filled.
// It indicates a defect, not a recoverable condition.
var ErrIncompleteCurve = errors.New("curve: incomplete curve")

// Curve is one day's step curve: one slot per minute, non-decreasing.
type Curve struct {
	slots  [MinutesPerDay]float64
	target int
	loc    *time.Location
	built  bool
}

// In returns a copy of the curve whose queries read wall-clock time in loc.
func (c *Curve) In(loc *time.Location) *Curve {
	cp := *c
	if loc != nil {
		cp.loc = loc
	}
	return &cp
}

func (c *Curve) Target() int { return c.target }

// MinuteOfDay returns hour*60+minute of t as observed in t's own location.
func MinuteOfDay(t time.Time) int { return t.Hour()*60 + t.Minute() }

// ValueAt returns the floored curve value for the minute containing instant.
func (c *Curve) ValueAt(instant time.Time) (int, error) {
	if c == nil || !c.built {
		return 0, ErrIncompleteCurve
	}
	if c.loc != nil {
		instant = instant.In(c.loc)
	}
	return c.At(MinuteOfDay(instant))
}

// At returns the floored value stored for minute m.
func (c *Curve) At(m int) (int, error) {
	if c == nil || !c.built || m < 0 || m >= MinutesPerDay {
		return 0, ErrIncompleteCurve
	}
	return int(math.Floor(c.slots[m])), nil
}

// Values returns a copy of the raw per-minute values.
func (c *Curve) Values() []float64 {
	if c == nil {
		return nil
	}
	return append([]float64(nil), c.slots[:]...)
}

// PlanPoint is the curve value at one anchor time.
type PlanPoint struct {
	Anchor Anchor
	Value  int
}

// Plan reads the curve at every anchor of t.
func (c *Curve) Plan(t ScheduleTable) ([]PlanPoint, error) {
	out := make([]PlanPoint, 0, t.Len())
	for _, a := range t.Anchors() {
		v, err := c.At(a.Minute)
		if err != nil {
			return nil, err
		}
		out = append(out, PlanPoint{Anchor: a, Value: v})
	}
	return out, nil
}
