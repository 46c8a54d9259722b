package scheduler

import "time"

// Snapshot is a read-only view of the loop, published after every tick.
type Snapshot struct {
	State      string        `json:"state"`
	Date       string        `json:"date,omitempty"`
	Target     int           `json:"target"`
	Interval   time.Duration `json:"interval_ns"`
	CurveValue int           `json:"curve_value"`
	LastPushed *int          `json:"last_pushed,omitempty"`
	NextTick   time.Time     `json:"next_tick,omitempty"`
	LastTick   time.Time     `json:"last_tick,omitempty"`
	LastResult string        `json:"last_result,omitempty"`
	LastError  string        `json:"last_error,omitempty"`

	Ticks     uint64 `json:"ticks"`
	Pushes    uint64 `json:"pushes"`
	Failures  uint64 `json:"failures"`
	Skips     uint64 `json:"skips"`
	Rollovers uint64 `json:"rollovers"`
	Resyncs   uint64 `json:"resyncs"`
}

// Snapshot returns the latest published view. Safe from any goroutine.
func (s *Scheduler) Snapshot() Snapshot {
	if p := s.snap.Load(); p != nil {
		return *p
	}
	return Snapshot{State: s.State().String()}
}

func (s *Scheduler) publish() {
	snap := &Snapshot{
		State:      s.State().String(),
		Date:       s.date.String(),
		Target:     s.target,
		Interval:   s.cfg.Interval,
		CurveValue: s.stats.lastValue,
		NextTick:   s.nextTick,
		LastTick:   s.stats.lastTick,
		LastResult: string(s.stats.lastResult),
		LastError:  s.stats.lastError,
		Ticks:      s.stats.ticks,
		Pushes:     s.stats.pushes,
		Failures:   s.stats.failures,
		Skips:      s.stats.skips,
		Rollovers:  s.stats.rollovers,
		Resyncs:    s.stats.resyncs,
	}
	if s.hasLast {
		v := s.last
		snap.LastPushed = &v
	}
	s.snap.Store(snap)
}
