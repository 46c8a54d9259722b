package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"stepsync/internal/actuator"
	"stepsync/internal/curve"
	"stepsync/internal/metrics"
	"stepsync/internal/storage"
	logx "stepsync/pkg/logx"
)

var ErrNotIdle = errors.New("scheduler: already started")

// HistoryTimeout bounds one history append. It outlives ctx so the record of
// the last attempt lands during shutdown.
const HistoryTimeout = 2 * time.Second

// Pusher is the actuator seen from the loop: it only branches on ok.
type Pusher interface {
	Push(ctx context.Context, creds actuator.Credentials, step int) (bool, actuator.Response)
}

// Config is fixed for the life of a Scheduler.
type Config struct {
	BaseTarget  int
	Delta       float64
	Interval    time.Duration
	Schedule    curve.ScheduleTable
	Location    *time.Location
	Credentials actuator.Credentials
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.Schedule.Len() == 0 {
		c.Schedule = curve.DefaultSchedule()
	}
	return c
}

// Scheduler pushes the current curve value every Interval, rebuilding the
// curve when the calendar date moves forward.
//
// All fields below the option block are owned by the Run goroutine. Other
// goroutines only see the published Snapshot.
type Scheduler struct {
	cfg  Config
	push Pusher

	log     logx.Logger
	clock   clockwork.Clock
	src     rand.Source
	rec     metrics.Recorder
	history storage.Store
	onTick  func(Snapshot)

	state atomic.Int32
	snap  atomic.Pointer[Snapshot]

	curve    *curve.Curve
	target   int
	date     civilDate
	last     int
	hasLast  bool
	capped   bool
	nextTick time.Time
	stats    tickStats
}

type tickStats struct {
	ticks, pushes, failures, skips, rollovers, resyncs uint64

	lastTick   time.Time
	lastValue  int
	lastResult metrics.PushResult
	lastError  string
}

type Option func(*Scheduler)

func WithLogger(l logx.Logger) Option { return func(s *Scheduler) { s.log = l } }

func WithClock(c clockwork.Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithRand sets the source for target sampling and curve jitter.
func WithRand(src rand.Source) Option {
	return func(s *Scheduler) {
		if src != nil {
			s.src = src
		}
	}
}

func WithRecorder(r metrics.Recorder) Option {
	return func(s *Scheduler) {
		if r != nil {
			s.rec = r
		}
	}
}

// WithHistory appends one record per actuator attempt to st.
func WithHistory(st storage.Store) Option { return func(s *Scheduler) { s.history = st } }

// WithTickHook registers fn to run on the loop goroutine after every tick,
// once the next tick is scheduled.
func WithTickHook(fn func(Snapshot)) Option { return func(s *Scheduler) { s.onTick = fn } }

func New(cfg Config, push Pusher, opts ...Option) (*Scheduler, error) {
	if push == nil {
		return nil, errors.New("scheduler: pusher is required")
	}
	cfg = cfg.withDefaults()
	if err := cfg.Schedule.Validate(); err != nil {
		return nil, err
	}
	if cfg.BaseTarget < 0 {
		return nil, fmt.Errorf("scheduler: negative base target %d", cfg.BaseTarget)
	}

	s := &Scheduler{
		cfg:   cfg,
		push:  push,
		log:   logx.Nop(),
		clock: clockwork.NewRealClock(),
		src:   rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()),
		rec:   metrics.NoopRecorder{},
	}
	for _, o := range opts {
		o(s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	s.log = s.log.With(logx.String("comp", "scheduler"))
	s.publish()
	return s, nil
}

func (s *Scheduler) State() State { return State(s.state.Load()) }

// Run drives the loop until ctx is canceled (returns nil) or the curve
// reports an invariant violation (returns the error). A Scheduler runs once.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrNotIdle
	}
	defer func() {
		s.state.Store(int32(StateStopped))
		s.publish()
	}()

	s.nextTick = s.clock.Now().Truncate(time.Second)
	s.log.Info("scheduler started",
		logx.Int("base_target", s.cfg.BaseTarget),
		logx.Float64("delta", s.cfg.Delta),
		logx.Duration("interval", s.cfg.Interval),
		logx.String("tz", s.cfg.Location.String()),
	)

	for {
		if ctx.Err() != nil {
			s.log.Info("scheduler stopped")
			return nil
		}

		started := s.clock.Now()
		if err := s.tick(ctx); err != nil {
			s.log.Error("scheduler halted", logx.Err(err))
			return err
		}
		s.advance()
		s.rec.ObserveTick(s.clock.Since(started))
		s.publish()
		if s.onTick != nil {
			s.onTick(s.Snapshot())
		}

		if !s.wait(ctx) {
			s.log.Info("scheduler stopped")
			return nil
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) error {
	now := s.clock.Now().In(s.cfg.Location)
	today := dateOf(now)

	if s.curve == nil || today.after(s.date) {
		if err := s.rollover(today); err != nil {
			return err
		}
	}

	value, err := s.curve.ValueAt(now)
	if err != nil {
		return fmt.Errorf("query curve at %s: %w", now.Format(time.RFC3339), err)
	}
	s.rec.SetCurveValue(value)
	s.stats.ticks++
	s.stats.lastTick = now
	s.stats.lastValue = value

	// The endpoint rejects anything above MaxStep; a target drawn above it
	// tops out at the ceiling for the rest of the day.
	if value > actuator.MaxStep {
		if !s.capped {
			s.capped = true
			s.log.Warn("curve exceeds endpoint limit, capping steps",
				logx.Int("value", value),
				logx.Int("max", actuator.MaxStep),
				logx.Int("target", s.target),
			)
		}
		value = actuator.MaxStep
	}

	if s.hasLast && s.last == value {
		s.stats.skips++
		s.stats.lastResult = metrics.PushSkipped
		s.rec.IncPush(metrics.PushSkipped)
		s.log.Debug("step unchanged, skipping update", logx.Int("step", value))
		return nil
	}

	s.pushValue(ctx, now, value)
	return nil
}

func (s *Scheduler) rollover(today civilDate) error {
	first := s.curve == nil
	target := curve.SampleDailyTarget(s.cfg.BaseTarget, s.cfg.Delta, s.src)
	c, err := curve.Build(target, s.cfg.Delta, s.cfg.Schedule, s.src)
	if err != nil {
		return fmt.Errorf("build curve for %s: %w", today, err)
	}

	s.curve = c.In(s.cfg.Location)
	s.target = target
	s.date = today
	s.hasLast = false
	s.last = 0
	s.capped = false

	s.rec.SetDailyTarget(target)
	fields := append([]logx.Field{logx.String("date", today.String()), logx.Int("target", target)}, s.planFields()...)
	if first {
		s.log.Info("daily plan ready", fields...)
	} else {
		s.stats.rollovers++
		s.rec.IncRollover()
		s.log.Info("new day, plan regenerated", fields...)
	}
	return nil
}

// planFields renders the curve value at each anchor as "HH:MM"=value.
func (s *Scheduler) planFields() []logx.Field {
	plan, err := s.curve.Plan(s.cfg.Schedule)
	if err != nil {
		return nil
	}
	out := make([]logx.Field, 0, len(plan))
	for _, p := range plan {
		out = append(out, logx.Int(p.Anchor.Clock(), p.Value))
	}
	return out
}

func (s *Scheduler) pushValue(ctx context.Context, now time.Time, value int) {
	started := s.clock.Now()
	ok, resp := s.push.Push(ctx, s.cfg.Credentials, value)
	took := s.clock.Since(started)
	s.rec.ObservePushDuration(took, ok)

	rec := storage.PushRecord{
		ID:     uuid.NewString(),
		At:     now,
		Date:   s.date.String(),
		Step:   value,
		OK:     ok,
		Status: resp.Status,
		Code:   resp.Code,
		Info:   resp.String(),
		TookMS: took.Milliseconds(),
	}

	if ok {
		s.last, s.hasLast = value, true
		s.stats.pushes++
		s.stats.lastResult = metrics.PushOK
		s.stats.lastError = ""
		s.rec.IncPush(metrics.PushOK)
		s.rec.SetLastPushed(value)
		s.log.Info("step updated", logx.Int("step", value), logx.String("resp", rec.Info))
	} else {
		err := resp.Err()
		rec.Error = err.Error()
		s.stats.failures++
		s.stats.lastResult = metrics.PushFailed
		s.stats.lastError = rec.Error
		s.rec.IncPush(metrics.PushFailed)
		s.log.Warn("step update failed, will retry next tick", logx.Int("step", value), logx.Err(err))
	}

	if s.history != nil {
		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), HistoryTimeout)
		if err := s.history.AppendPush(hctx, rec); err != nil {
			s.log.Warn("push history append failed", logx.Err(err))
		}
		cancel()
	}
}

// advance schedules the next tick. When the schedule fell behind (suspend,
// slow push) it restarts from the current minute instead of catching up.
func (s *Scheduler) advance() {
	s.nextTick = s.nextTick.Add(s.cfg.Interval)
	now := s.clock.Now()
	if s.nextTick.Before(now) {
		missed := s.nextTick
		s.nextTick = now.Truncate(time.Minute).Add(s.cfg.Interval)
		s.stats.resyncs++
		s.rec.IncResync()
		s.log.Warn("tick fell behind, resynchronized",
			logx.Time("missed", missed),
			logx.Time("next", s.nextTick),
		)
	}
}

func (s *Scheduler) wait(ctx context.Context) bool {
	d := s.nextTick.Sub(s.clock.Now())
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := s.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.Chan():
		return true
	}
}
