package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestSplitText(t *testing.T) {
	if got := splitText("short", 10); len(got) != 1 || got[0] != "short" {
		t.Fatalf("short text split: %q", got)
	}

	s := strings.Repeat("a", 8) + "\n" + strings.Repeat("b", 8)
	got := splitText(s, 10)
	if len(got) != 2 || got[0] != strings.Repeat("a", 8)+"\n" || got[1] != strings.Repeat("b", 8) {
		t.Fatalf("newline split: %q", got)
	}

	long := strings.Repeat("x", 25)
	got = splitText(long, 10)
	if len(got) != 3 || strings.Join(got, "") != long {
		t.Fatalf("hard split: %q", got)
	}
}

func TestSendTextPostsToBotAPI(t *testing.T) {
	var (
		mu   sync.Mutex
		reqs []map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var m map[string]any
		_ = json.Unmarshal(body, &m)
		mu.Lock()
		reqs = append(reqs, m)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"group"}}}`))
	}))
	defer srv.Close()

	s, err := New(Config{Token: "123:abc", URL: srv.URL, Offline: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.SendText(context.Background(), 42, 7, "[WARN] push failed"); err != nil {
		t.Fatalf("SendText: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	if reqs[0]["text"] != "[WARN] push failed" || reqs[0]["chat_id"] != "42" {
		t.Fatalf("unexpected payload: %v", reqs[0])
	}
}

func TestNewRequiresToken(t *testing.T) {
	if _, err := New(Config{Token: " "}); err == nil {
		t.Fatal("expected error for empty token")
	}
}
