package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

var _ Recorder = NoopRecorder{}
var _ Recorder = (*PrometheusRecorder)(nil)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncPush(PushOK)
	pr.IncPush(PushSkipped)
	pr.IncPush(PushSkipped)
	pr.ObservePushDuration(120*time.Millisecond, true)
	pr.ObserveTick(200 * time.Millisecond)
	pr.SetDailyTarget(7345)
	pr.SetCurveValue(1200)
	pr.SetLastPushed(1200)
	pr.IncRollover()
	pr.IncResync()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	byName := map[string]*dto.MetricFamily{}
	for _, mf := range mfs {
		byName[mf.GetName()] = mf
	}

	if g := byName["stepsync_daily_target_steps"]; g == nil || g.GetMetric()[0].GetGauge().GetValue() != 7345 {
		t.Fatalf("daily target gauge missing or wrong: %v", g)
	}
	pushes := byName["stepsync_pushes_total"]
	if pushes == nil {
		t.Fatal("pushes counter missing")
	}
	for _, m := range pushes.GetMetric() {
		if m.GetLabel()[0].GetValue() == "skipped" && m.GetCounter().GetValue() != 2 {
			t.Fatalf("skipped = %v, want 2", m.GetCounter().GetValue())
		}
	}
}

func TestPrometheusRecorderHTTPHandler(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.IncRollover()

	rec := httptest.NewRecorder()
	pr.HTTPHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "stepsync_day_rollovers_total 1") {
		t.Fatalf("rollover counter not exposed:\n%s", rec.Body.String())
	}
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.IncPush(PushFailed)
	pr.SetCurveValue(1)
	pr.IncResync()
}
