package scheduler

import (
	"fmt"
	"time"
)

// State is the loop lifecycle: Idle -> Running -> Stopped.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// civilDate is a calendar day in the scheduler's location.
type civilDate struct {
	year  int
	month time.Month
	day   int
}

func dateOf(t time.Time) civilDate {
	y, m, d := t.Date()
	return civilDate{year: y, month: m, day: d}
}

// after reports whether d is a later calendar day than o. A clock that steps
// backwards never triggers a rollover.
func (d civilDate) after(o civilDate) bool {
	if d.year != o.year {
		return d.year > o.year
	}
	if d.month != o.month {
		return d.month > o.month
	}
	return d.day > o.day
}

func (d civilDate) IsZero() bool { return d.year == 0 && d.month == 0 && d.day == 0 }

func (d civilDate) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.year, int(d.month), d.day)
}
