package opsserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	logx "stepsync/pkg/logx"
)

func get(t *testing.T, url, token string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func startService(t *testing.T, cfg Config, h Handlers) *Service {
	t.Helper()
	s := New(cfg, h, logx.Nop())
	ready := s.Ready()
	s.Apply(context.Background(), cfg)
	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("ops server did not start")
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s
}

func TestRoutesAndAuth(t *testing.T) {
	h := Handlers{
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("stepsync_up 1\n")) }),
		Status:  func() any { return map[string]any{"state": "running"} },
	}
	s := startService(t, Config{Enabled: true, Addr: "127.0.0.1:0", Token: "s3cret"}, h)
	base := "http://" + s.Addr()

	code, body := get(t, base+"/healthz", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body)

	code, _ = get(t, base+"/status", "")
	require.Equal(t, http.StatusUnauthorized, code)

	code, body = get(t, base+"/status", "s3cret")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `"state": "running"`)

	code, body = get(t, base+"/metrics?token=s3cret", "")
	require.Equal(t, http.StatusOK, code)
	require.True(t, strings.HasPrefix(body, "stepsync_up"))

	code, _ = get(t, base+"/debug/pprof/", "s3cret")
	require.Equal(t, http.StatusNotFound, code, "pprof is off by default")

	http.DefaultClient.CloseIdleConnections()
}

func TestHealthReportsFailure(t *testing.T) {
	s := startService(t, Config{Enabled: true, Addr: "127.0.0.1:0"}, Handlers{
		Health: func() error { return errors.New("scheduler halted") },
	})
	code, body := get(t, "http://"+s.Addr()+"/healthz", "")
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Contains(t, body, "scheduler halted")
	http.DefaultClient.CloseIdleConnections()
}

func TestApplyStopsWhenDisabled(t *testing.T) {
	cfg := Config{Enabled: true, Addr: "127.0.0.1:0"}
	s := startService(t, cfg, Handlers{})
	require.NotEmpty(t, s.Addr())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Apply(ctx, Config{})
	require.Empty(t, s.Addr())
}

func TestIsLoopbackAddr(t *testing.T) {
	require.True(t, isLoopbackAddr("127.0.0.1:9464"))
	require.True(t, isLoopbackAddr("localhost:9464"))
	require.True(t, isLoopbackAddr("[::1]:9464"))
	require.False(t, isLoopbackAddr(":9464"))
	require.False(t, isLoopbackAddr("0.0.0.0:9464"))
	require.False(t, isLoopbackAddr("nonsense"))
}
