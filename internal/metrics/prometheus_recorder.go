package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stepsync"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg          *prom.Registry
	pushes       *prom.CounterVec
	pushDuration *prom.HistogramVec
	tickDuration prom.Histogram
	dailyTarget  prom.Gauge
	curveValue   prom.Gauge
	lastPushed   prom.Gauge
	rollovers    prom.Counter
	resyncs      prom.Counter
}

// NewPrometheusRecorder constructs and registers the scheduler metrics on reg.
// A nil reg gets a fresh private registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{reg: reg}
	pr.pushes = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "pushes_total",
		Help:      "Scheduler ticks by push result",
	}, []string{"result"})
	pr.pushDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "push_duration_seconds",
		Help:      "Latency of step update requests",
		Buckets:   prom.DefBuckets,
	}, []string{"result"})
	pr.tickDuration = prom.NewHistogram(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "tick_duration_seconds",
		Help:      "Duration of one scheduler tick",
		Buckets:   prom.DefBuckets,
	})
	pr.dailyTarget = prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "daily_target_steps",
		Help:      "Sampled step target for the current day",
	})
	pr.curveValue = prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "curve_value_steps",
		Help:      "Curve value at the last tick",
	})
	pr.lastPushed = prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "last_pushed_steps",
		Help:      "Last step value accepted by the remote endpoint",
	})
	pr.rollovers = prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "day_rollovers_total",
		Help:      "Detected date changes",
	})
	pr.resyncs = prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "tick_resyncs_total",
		Help:      "Times the next tick fell behind and was resynchronized",
	})
	reg.MustRegister(pr.pushes, pr.pushDuration, pr.tickDuration, pr.dailyTarget, pr.curveValue, pr.lastPushed, pr.rollovers, pr.resyncs)
	return pr
}

// Registry returns the registry the recorder registered on.
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.reg }

// HTTPHandler serves the recorder's registry.
func (p *PrometheusRecorder) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (p *PrometheusRecorder) IncPush(result PushResult) {
	if p == nil || p.pushes == nil {
		return
	}
	p.pushes.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) ObservePushDuration(d time.Duration, ok bool) {
	if p == nil || p.pushDuration == nil {
		return
	}
	res := PushFailed
	if ok {
		res = PushOK
	}
	p.pushDuration.WithLabelValues(string(res)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveTick(d time.Duration) {
	if p == nil || p.tickDuration == nil {
		return
	}
	p.tickDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetDailyTarget(n int) {
	if p == nil || p.dailyTarget == nil {
		return
	}
	p.dailyTarget.Set(float64(n))
}

func (p *PrometheusRecorder) SetCurveValue(n int) {
	if p == nil || p.curveValue == nil {
		return
	}
	p.curveValue.Set(float64(n))
}

func (p *PrometheusRecorder) SetLastPushed(n int) {
	if p == nil || p.lastPushed == nil {
		return
	}
	p.lastPushed.Set(float64(n))
}

func (p *PrometheusRecorder) IncRollover() {
	if p == nil || p.rollovers == nil {
		return
	}
	p.rollovers.Inc()
}

func (p *PrometheusRecorder) IncResync() {
	if p == nil || p.resyncs == nil {
		return
	}
	p.resyncs.Inc()
}
