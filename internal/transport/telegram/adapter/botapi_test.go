package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"cinebot/internal/ephemeral"
	kit "cinebot/internal/transport"
	logx "cinebot/pkg/logx"
)

// botAPI is a minimal Bot API server: getMe, sendMessage and deleteMessage.
type botAPI struct {
	mu      sync.Mutex
	sends   int
	failAt  int // 1-based sendMessage call that answers 429; 0 never
	sent    []int
	deleted []int
}

func (b *botAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var params map[string]any
	_ = json.NewDecoder(r.Body).Decode(&params)
	w.Header().Set("Content-Type", "application/json")

	b.mu.Lock()
	defer b.mu.Unlock()
	switch path.Base(r.URL.Path) {
	case "getMe":
		fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"cine","username":"cinebot"}}`)
	case "sendMessage":
		b.sends++
		if b.sends == b.failAt {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 1","parameters":{"retry_after":1}}`)
			return
		}
		id := 100 + b.sends
		b.sent = append(b.sent, id)
		fmt.Fprintf(w, `{"ok":true,"result":{"message_id":%d,"date":0,"chat":{"id":5,"type":"private"},"text":"x"}}`, id)
	case "deleteMessage":
		id, _ := strconv.Atoi(fmt.Sprint(params["message_id"]))
		b.deleted = append(b.deleted, id)
		fmt.Fprint(w, `{"ok":true,"result":true}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"ok":false,"error_code":404,"description":"Not Found"}`)
	}
}

func (b *botAPI) snapshot() (sent, deleted []int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int(nil), b.sent...), append([]int(nil), b.deleted...)
}

func newTestAdapter(t *testing.T, api *botAPI) *Adapter {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	a, err := New(Config{Token: "42:test", APIURL: srv.URL}, logx.Nop())
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	return a
}

func longText() string {
	return strings.Repeat("word ", 1800)
}

func waitDeleted(t *testing.T, api *botAPI, n int) []int {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		_, deleted := api.snapshot()
		if len(deleted) >= n || time.Now().After(deadline) {
			return deleted
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSendTextSplitRegistersEveryChunk(t *testing.T) {
	api := &botAPI{}
	a := newTestAdapter(t, api)
	eph := ephemeral.New(a, logx.Nop())
	t.Cleanup(func() { _ = eph.Stop(context.Background()) })

	var reported []kit.MessageRef
	opt := &kit.SendOptions{OnSent: func(ref kit.MessageRef) {
		reported = append(reported, ref)
		eph.Register(ref, 10*time.Millisecond)
	}}
	first, err := a.SendText(context.Background(), kit.ChatTarget{ChatID: 5}, longText(), opt)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	sent, _ := api.snapshot()
	if len(sent) != 3 {
		t.Fatalf("sent %d messages, want 3", len(sent))
	}
	if len(reported) != len(sent) {
		t.Fatalf("reported %d refs for %d messages", len(reported), len(sent))
	}
	if first != reported[0] || first.MessageID != sent[0] {
		t.Fatalf("first = %+v, reported %+v", first, reported)
	}

	deleted := waitDeleted(t, api, len(sent))
	if len(deleted) != len(sent) {
		t.Fatalf("deleted %v of sent %v", deleted, sent)
	}
}

func TestSendTextPartialFailureReportsDeliveredChunks(t *testing.T) {
	api := &botAPI{failAt: 2}
	a := newTestAdapter(t, api)

	var reported []kit.MessageRef
	opt := &kit.SendOptions{OnSent: func(ref kit.MessageRef) { reported = append(reported, ref) }}
	first, err := a.SendText(context.Background(), kit.ChatTarget{ChatID: 5}, longText(), opt)
	if err == nil {
		t.Fatalf("expected an error from the rate-limited chunk")
	}
	if !strings.Contains(err.Error(), "chunk 2/3") {
		t.Fatalf("err = %v", err)
	}

	sent, _ := api.snapshot()
	if len(sent) != 1 || len(reported) != 1 {
		t.Fatalf("sent %v, reported %+v", sent, reported)
	}
	want := kit.MessageRef{ChatID: 5, MessageID: sent[0]}
	if reported[0] != want || first != want {
		t.Fatalf("reported %+v first %+v, want %+v", reported[0], first, want)
	}
}

func TestSendTextShortReportsOnce(t *testing.T) {
	api := &botAPI{}
	a := newTestAdapter(t, api)

	calls := 0
	ref, err := a.SendText(context.Background(), kit.ChatTarget{ChatID: 5}, "hi", &kit.SendOptions{
		OnSent: func(kit.MessageRef) { calls++ },
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if calls != 1 || ref.MessageID != 101 {
		t.Fatalf("calls = %d, ref = %+v", calls, ref)
	}
}
