package metrics

import "time"

// PushResult enumerates outcomes of one scheduler tick.
type PushResult string

const (
	PushOK      PushResult = "ok"
	PushFailed  PushResult = "failed"
	PushSkipped PushResult = "skipped"
)

// Recorder defines observability hooks for the scheduler loop. Implementations
// may forward to Prometheus; NoopRecorder is the default when metrics are off.
type Recorder interface {
	IncPush(result PushResult)
	ObservePushDuration(d time.Duration, ok bool)
	ObserveTick(d time.Duration)
	SetDailyTarget(n int)
	SetCurveValue(n int)
	SetLastPushed(n int)
	IncRollover()
	IncResync()
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) IncPush(PushResult)                      {}
func (NoopRecorder) ObservePushDuration(time.Duration, bool) {}
func (NoopRecorder) ObserveTick(time.Duration)               {}
func (NoopRecorder) SetDailyTarget(int)                      {}
func (NoopRecorder) SetCurveValue(int)                       {}
func (NoopRecorder) SetLastPushed(int)                       {}
func (NoopRecorder) IncRollover()                            {}
func (NoopRecorder) IncResync()                              {}
