package systemd

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	logx "stepsync/pkg/logx"
)

func TestNotifierOutsideSystemd(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	t.Setenv("WATCHDOG_USEC", "")

	n := NewNotifier(logx.Nop())
	require.False(t, n.Ready())
	require.False(t, n.Stopping())
	require.Zero(t, n.WatchdogInterval())
	require.NoError(t, n.Watchdog(context.Background(), nil))
}

func TestNotifierSendsToSocket(t *testing.T) {
	// unix socket paths are length-limited; t.TempDir() can be too deep.
	dir, err := os.MkdirTemp("", "sd")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	sock := filepath.Join(dir, "notify")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: sock, Net: "unixgram"})
	require.NoError(t, err)
	defer conn.Close()

	t.Setenv("NOTIFY_SOCKET", sock)
	t.Setenv("WATCHDOG_USEC", strconv.Itoa(int(40*time.Millisecond/time.Microsecond)))
	t.Setenv("WATCHDOG_PID", strconv.Itoa(os.Getpid()))

	n := NewNotifier(logx.Nop())
	require.True(t, n.Ready())
	require.Equal(t, "READY=1", readDatagram(t, conn))
	require.Equal(t, 20*time.Millisecond, n.WatchdogInterval())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Watchdog(ctx, nil) }()
	require.Equal(t, "WATCHDOG=1", readDatagram(t, conn))
	cancel()
	require.NoError(t, <-done)
}

func TestWatchdogWithheldWhileUnhealthy(t *testing.T) {
	dir, err := os.MkdirTemp("", "sd")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	sock := filepath.Join(dir, "notify")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: sock, Net: "unixgram"})
	require.NoError(t, err)
	defer conn.Close()

	t.Setenv("NOTIFY_SOCKET", sock)
	t.Setenv("WATCHDOG_USEC", strconv.Itoa(int(40*time.Millisecond/time.Microsecond)))
	t.Setenv("WATCHDOG_PID", strconv.Itoa(os.Getpid()))

	var healthy atomic.Bool
	var checks atomic.Int32
	alive := func() error {
		checks.Add(1)
		if healthy.Load() {
			return nil
		}
		return errors.New("stalled")
	}

	n := NewNotifier(logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Watchdog(ctx, alive) }()

	// Several intervals pass with no datagram.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, err = conn.Read(make([]byte, 64))
	require.Error(t, err)
	require.Greater(t, checks.Load(), int32(1))

	healthy.Store(true)
	require.Equal(t, "WATCHDOG=1", readDatagram(t, conn))
	cancel()
	require.NoError(t, <-done)
}

func readDatagram(t *testing.T, conn *net.UnixConn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	return string(buf[:n])
}
