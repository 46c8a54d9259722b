package curve

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay is the number of slots in a daily curve.
const MinutesPerDay = 24 * 60

var ErrInvalidSchedule = errors.New("invalid schedule")

// Anchor is a control point of the daily activity shape: by Minute (minute of
// day) the counter should have reached Fraction of the daily target.
type Anchor struct {
	Minute   int
	Fraction float64
}

func (a Anchor) String() string {
	return fmt.Sprintf("%s=%.2f", a.Clock(), a.Fraction)
}

// Clock formats the anchor minute as HH:MM.
func (a Anchor) Clock() string { return fmt.Sprintf("%02d:%02d", a.Minute/60, a.Minute%60) }

// ScheduleTable is an immutable, validated list of anchors sorted by minute.
type ScheduleTable struct {
	anchors []Anchor
}

// DefaultSchedule returns the canonical 11-anchor day shape (07:30 -> 23:30).
func DefaultSchedule() ScheduleTable {
	return ScheduleTable{anchors: []Anchor{
		{Minute: 7*60 + 30, Fraction: 0.0},
		{Minute: 8*60 + 30, Fraction: 0.2},
		{Minute: 11*60 + 50, Fraction: 0.3},
		{Minute: 13 * 60, Fraction: 0.4},
		{Minute: 14 * 60, Fraction: 0.45},
		{Minute: 14*60 + 40, Fraction: 0.55},
		{Minute: 17*60 + 30, Fraction: 0.7},
		{Minute: 19 * 60, Fraction: 0.8},
		{Minute: 21*60 + 30, Fraction: 0.85},
		{Minute: 22*60 + 30, Fraction: 0.95},
		{Minute: 23*60 + 30, Fraction: 1.0},
	}}
}

// NewScheduleTable copies anchors into a table and validates it.
func NewScheduleTable(anchors []Anchor) (ScheduleTable, error) {
	t := ScheduleTable{anchors: append([]Anchor(nil), anchors...)}
	if err := t.Validate(); err != nil {
		return ScheduleTable{}, err
	}
	return t, nil
}

// Validate reports the first structural problem with the table.
func (t ScheduleTable) Validate() error {
	if len(t.anchors) < 2 {
		return fmt.Errorf("%w: need at least 2 anchors, got %d", ErrInvalidSchedule, len(t.anchors))
	}
	for i, a := range t.anchors {
		if a.Minute < 0 || a.Minute >= MinutesPerDay {
			return fmt.Errorf("%w: anchor %d minute %d out of range", ErrInvalidSchedule, i, a.Minute)
		}
		if a.Fraction < 0 || a.Fraction > 1 {
			return fmt.Errorf("%w: anchor %d fraction %v out of [0,1]", ErrInvalidSchedule, i, a.Fraction)
		}
		if i == 0 {
			continue
		}
		prev := t.anchors[i-1]
		if a.Minute <= prev.Minute {
			return fmt.Errorf("%w: anchor %d (%s) not after %s", ErrInvalidSchedule, i, a, prev)
		}
		if a.Fraction < prev.Fraction {
			return fmt.Errorf("%w: anchor %d (%s) decreases from %s", ErrInvalidSchedule, i, a, prev)
		}
	}
	if f := t.anchors[0].Fraction; f != 0 {
		return fmt.Errorf("%w: first fraction must be 0, got %v", ErrInvalidSchedule, f)
	}
	if f := t.anchors[len(t.anchors)-1].Fraction; f != 1 {
		return fmt.Errorf("%w: last fraction must be 1, got %v", ErrInvalidSchedule, f)
	}
	return nil
}

func (t ScheduleTable) Len() int { return len(t.anchors) }

// Anchors returns a copy of the anchor list.
func (t ScheduleTable) Anchors() []Anchor { return append([]Anchor(nil), t.anchors...) }

func (t ScheduleTable) First() Anchor { return t.anchors[0] }
func (t ScheduleTable) Last() Anchor  { return t.anchors[len(t.anchors)-1] }

// ParseClock parses "HH:MM" into a minute of day.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("%w: time %q must be HH:MM", ErrInvalidSchedule, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: bad hour in %q", ErrInvalidSchedule, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: bad minute in %q", ErrInvalidSchedule, s)
	}
	return h*60 + m, nil
}
