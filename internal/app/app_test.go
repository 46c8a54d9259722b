package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"stepsync/internal/config"
	"stepsync/internal/render"
	"stepsync/internal/scheduler"
	"stepsync/internal/storage"
)

type endpoint struct {
	srv   *httptest.Server
	steps chan string
}

func newEndpoint(t *testing.T, status int) *endpoint {
	t.Helper()
	e := &endpoint{steps: make(chan string, 16)}
	e.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		select {
		case e.steps <- r.PostForm.Get("step"):
		default:
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"code":200,"message":"ok"}`))
	}))
	t.Cleanup(e.srv.Close)
	return e
}

// setup writes a config file into a temp dir and points the environment at
// the fake endpoint.
func setup(t *testing.T, apiURL, body string) Options {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("email", "walker@example.com")
	t.Setenv("password", "hunter2")
	t.Setenv("api_url", apiURL)
	t.Setenv("total_step", "")
	t.Setenv("delta", "")

	body = strings.ReplaceAll(body, "$DIR", dir)
	p := filepath.Join(dir, "stepsync.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return Options{ConfigPath: p, EnvFile: filepath.Join(dir, "missing.env")}
}

const baseConfig = `
target: {base: 7000, delta: 0}
schedule: {interval: 1h, timezone: UTC}
logging: {level: warn, console: false}
storage: {driver: file, path: $DIR/history}
`

func TestMapStorageConfig(t *testing.T) {
	_, ok, err := mapStorageConfig(config.Default())
	require.NoError(t, err)
	assert.False(t, ok)

	cfg := config.Default()
	cfg.Storage = &config.StorageConfig{Driver: "sqlite"}
	_, _, err = mapStorageConfig(cfg)
	require.Error(t, err, "sqlite needs a path")

	cfg.Storage = &config.StorageConfig{Driver: "SQLite", Path: "x.db"}
	sc, ok, err := mapStorageConfig(cfg)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sqlite", sc.Driver)
	assert.Equal(t, time.Second, sc.BusyTimeout)
}

func TestMapOpsConfigDefaults(t *testing.T) {
	oc, err := mapOpsConfig(config.Default())
	require.NoError(t, err)
	assert.False(t, oc.Enabled)
	assert.Equal(t, "127.0.0.1:9464", oc.Addr)
	assert.Equal(t, 10*time.Second, oc.ReadTimeout)
}

func TestMapLogConfigVerbose(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, "info", mapLogConfig(cfg, false).Level)
	assert.Equal(t, "debug", mapLogConfig(cfg, true).Level)
}

func TestDryRunPrintsPlanWithoutNetwork(t *testing.T) {
	e := newEndpoint(t, http.StatusOK)
	opts := setup(t, e.srv.URL, baseConfig)

	var out bytes.Buffer
	require.NoError(t, DryRun(opts, &out, render.FormatText, ""))
	s := out.String()
	assert.Contains(t, s, "target    7000")
	assert.Contains(t, s, "23:30  1.00      7000")
	assert.Contains(t, s, "daily target: 7000 steps")
	assert.Empty(t, e.steps, "dry-run must not push")
}

func TestDryRunWritesHTMLFile(t *testing.T) {
	opts := setup(t, "http://127.0.0.1:1", baseConfig)
	out := filepath.Join(t.TempDir(), "plan.html")

	var buf bytes.Buffer
	require.NoError(t, DryRun(opts, &buf, render.FormatHTML, out))
	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(b), "<html")
	assert.Contains(t, buf.String(), "chart written to "+out)
}

func TestSetOnceAndHistory(t *testing.T) {
	e := newEndpoint(t, http.StatusOK)
	opts := setup(t, e.srv.URL, baseConfig)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, SetOnce(ctx, opts, 1234, &out))
	assert.Equal(t, "1234", <-e.steps)
	assert.Contains(t, out.String(), `"message":"ok"`)

	out.Reset()
	require.NoError(t, History(ctx, opts, 10, &out))
	assert.Contains(t, out.String(), "1234")
	assert.Contains(t, out.String(), "ok")
}

func TestSetOnceRejectsOutOfRange(t *testing.T) {
	e := newEndpoint(t, http.StatusOK)
	opts := setup(t, e.srv.URL, baseConfig)
	require.Error(t, SetOnce(context.Background(), opts, 98801, &bytes.Buffer{}))
	assert.Empty(t, e.steps)
}

func TestSetOnceReportsFailure(t *testing.T) {
	e := newEndpoint(t, http.StatusBadGateway)
	opts := setup(t, e.srv.URL, baseConfig)
	require.Error(t, SetOnce(context.Background(), opts, 10, &bytes.Buffer{}))
}

func TestHistoryDisabled(t *testing.T) {
	opts := setup(t, "http://127.0.0.1:1", `logging: {console: false}`)
	require.ErrorIs(t, History(context.Background(), opts, 5, &bytes.Buffer{}), ErrHistoryDisabled)
}

func TestLoginThenLogout(t *testing.T) {
	keyring.MockInit()
	opts := setup(t, "http://127.0.0.1:1", baseConfig+"credentials: {keyring: true, keyring_service: stepsync-app-test}\n")

	service, err := Login(opts, "walker@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "stepsync-app-test", service)
	pw, err := keyring.Get(service, "walker@example.com")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pw)

	_, err = Logout(opts, "walker@example.com")
	require.NoError(t, err)
	_, err = keyring.Get(service, "walker@example.com")
	require.ErrorIs(t, err, keyring.ErrNotFound)

	_, err = Logout(opts, "walker@example.com")
	require.NoError(t, err, "second logout is a no-op")
}

func TestNewRequiresCredentials(t *testing.T) {
	opts := setup(t, "http://127.0.0.1:1", baseConfig)
	t.Setenv("email", "")
	_, err := New(opts)
	var ce *config.ConfigError
	require.ErrorAs(t, err, &ce)
}

func TestRunPushesUntilCanceled(t *testing.T) {
	e := newEndpoint(t, http.StatusOK)
	opts := setup(t, e.srv.URL, baseConfig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- Run(ctx, opts) }()

	select {
	case <-e.steps:
	case <-time.After(5 * time.Second):
		t.Fatal("no push observed")
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	var out bytes.Buffer
	require.NoError(t, History(context.Background(), opts, 5, &out))
	assert.NotContains(t, out.String(), "no pushes recorded")
}

func TestStopLeavesStorageOpenWhileTasksRun(t *testing.T) {
	require.Greater(t, supervisorStopTimeout, scheduler.HistoryTimeout)

	opts := setup(t, "http://127.0.0.1:1", baseConfig)
	a, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))

	release := make(chan struct{})
	a.sup.Go0("stuck", func(context.Context) { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = a.Stop(ctx, StopAppStop)

	require.NoError(t, a.store.AppendPush(context.Background(), storage.PushRecord{At: time.Now(), Step: 1}),
		"store must stay open while a task is still running")
	close(release)
	require.NoError(t, a.store.Close())
}

func TestLivenessTracksLastTick(t *testing.T) {
	opts := setup(t, "http://127.0.0.1:1", baseConfig)
	a, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = a.store.Close()
		_ = a.logs.Close()
	})

	a.started = time.Now()
	require.NoError(t, a.liveness(), "no tick yet, but just started")

	// interval is 1h in baseConfig
	a.started = time.Now().Add(-2 * time.Hour)
	require.ErrorContains(t, a.liveness(), "scheduler stalled")
}
