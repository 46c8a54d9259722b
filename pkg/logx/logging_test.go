package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestZeroLoggerIsNoop(t *testing.T) {
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero logger should report IsZero")
	}
	// Must not panic.
	l.Info("hello", String("k", "v"))
}

func TestWriterLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "debug").With(String("comp", "test"))
	l.Warn("tick failed", Int("step", 42), Err(errors.New("boom")))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("decode log line: %v (%q)", err, buf.String())
	}
	if m["comp"] != "test" || m["step"] != float64(42) || m["err"] != "boom" {
		t.Fatalf("unexpected fields: %v", m)
	}
	if m["level"] != "warn" || m["message"] != "tick failed" {
		t.Fatalf("unexpected level/message: %v", m)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "warn")
	l.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info line should be filtered at warn level: %q", buf.String())
	}
	if !l.Enabled(LevelError) || l.Enabled(LevelDebug) {
		t.Fatal("Enabled disagrees with configured level")
	}
}

func TestFormatTelegramJSON(t *testing.T) {
	line := `{"level":"warn","time":"x","message":"push failed","step":1200,"caller":"a.go:1"}`
	got := formatTelegramJSON([]byte(line))
	want := "[WARN] push failed\n- caller=a.go:1\n- step=1200"
	if got != want {
		t.Fatalf("formatTelegramJSON = %q, want %q", got, want)
	}
	if got := formatTelegramJSON([]byte("not json\n")); got != "not json" {
		t.Fatalf("raw passthrough = %q", got)
	}
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []string
	done chan struct{}
}

func (r *recordingSender) SendText(_ context.Context, chatID int64, _ int, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, text)
	if len(r.msgs) == 1 {
		close(r.done)
	}
	return nil
}

func TestServiceTelegramSinkRespectsMinLevel(t *testing.T) {
	snd := &recordingSender{done: make(chan struct{})}
	svc, log := New(Config{
		Level: "debug",
		Telegram: TelegramConfig{
			Enabled:    true,
			ChatID:     100,
			MinLevel:   "warn",
			RatePerSec: 10,
		},
	}, snd)
	t.Cleanup(func() { _ = svc.Close() })

	log.Info("not forwarded")
	log.Error("forwarded", Int("step", 7))

	select {
	case <-snd.done:
	case <-time.After(2 * time.Second):
		t.Fatal("telegram sink did not deliver")
	}

	snd.mu.Lock()
	defer snd.mu.Unlock()
	if len(snd.msgs) != 1 || !strings.HasPrefix(snd.msgs[0], "[ERROR] forwarded") {
		t.Fatalf("unexpected telegram messages: %q", snd.msgs)
	}
}
