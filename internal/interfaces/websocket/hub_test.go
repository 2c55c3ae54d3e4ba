package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eben2468/srcwebsite-sub012/internal/domain/entity"
	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/eventbus"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h, cancel
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func messageEvent(sessionID, messageID uint, text string) eventbus.Event {
	return eventbus.NewEvent(eventbus.EventMessageSent, eventbus.MessageSentPayload{
		Message: entity.ChatMessage{ID: messageID, SessionID: sessionID, SenderID: 3, Text: text, Type: entity.MessageText},
	})
}

type countingMetrics struct {
	conns   atomic.Int64
	dropped atomic.Int64
}

func (m *countingMetrics) AddWSConnections(d int64) { m.conns.Add(d) }
func (m *countingMetrics) IncWSDropped()            { m.dropped.Add(1) }

// === Frames ===

func TestFrameFromEvent(t *testing.T) {
	f, ok, err := FrameFromEvent(messageEvent(4, 9, "hello"))
	if err != nil || !ok {
		t.Fatalf("FrameFromEvent: ok=%v err=%v", ok, err)
	}
	if f.Type != FrameMessage || f.SessionID != 4 {
		t.Errorf("frame: got %s/%d", f.Type, f.SessionID)
	}
	var msg entity.ChatMessage
	if err := json.Unmarshal(f.Payload, &msg); err != nil || msg.ID != 9 || msg.Text != "hello" {
		t.Errorf("payload: got %+v err=%v", msg, err)
	}

	status := eventbus.NewEvent(eventbus.EventAgentStatusChanged, eventbus.AgentStatusPayload{})
	if _, ok, _ := FrameFromEvent(status); ok {
		t.Error("agent status should not be pushed")
	}
	read := eventbus.NewEvent(eventbus.EventMessagesRead, eventbus.MessagesReadPayload{SessionID: 2, ReaderID: 1, Count: 3})
	if f, ok, _ := FrameFromEvent(read); !ok || f.Type != FrameMessagesRead || f.SessionID != 2 {
		t.Errorf("messages_read: got %+v ok=%v", f, ok)
	}
}

// === Fan-out ===

func TestHub_DropsFullClient(t *testing.T) {
	h, _ := startHub(t)
	m := &countingMetrics{}
	h.SetMetrics(m)

	slow := &Client{UserID: 1, SessionID: 5, send: make(chan []byte, 1)}
	other := &Client{UserID: 2, SessionID: 6, send: make(chan []byte, 4)}
	h.register <- slow
	h.register <- other
	waitFor(t, "registration", func() bool { return h.ClientCount() == 2 })

	h.Deliver(5, []byte(`{"n":1}`))
	h.Deliver(5, []byte(`{"n":2}`))
	waitFor(t, "drop", func() bool { return h.SessionClientCount(5) == 0 })

	if got := m.dropped.Load(); got != 1 {
		t.Errorf("dropped: got %d, want 1", got)
	}
	if got := m.conns.Load(); got != 1 {
		t.Errorf("connections: got %d, want 1", got)
	}
	// 已缓冲的帧仍可读出, 之后通道关闭
	if data := <-slow.send; string(data) != `{"n":1}` {
		t.Errorf("buffered: got %s", data)
	}
	if _, open := <-slow.send; open {
		t.Error("send channel should be closed")
	}
	if len(other.send) != 0 {
		t.Errorf("other session: got %d frames, want 0", len(other.send))
	}
}

type fakeRelay struct {
	mu   sync.Mutex
	sent [][]byte
	err  error
}

func (r *fakeRelay) Publish(_ context.Context, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, payload)
	return r.err
}

func (r *fakeRelay) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func TestHub_RelayAndFallback(t *testing.T) {
	h, _ := startHub(t)
	c := &Client{UserID: 1, SessionID: 7, send: make(chan []byte, 4)}
	h.register <- c
	waitFor(t, "registration", func() bool { return h.ClientCount() == 1 })

	relay := &fakeRelay{}
	h.SetRelay(relay)
	h.HandleEvent(context.Background(), messageEvent(7, 1, "via relay"))
	if relay.count() != 1 {
		t.Fatalf("relay publishes: got %d, want 1", relay.count())
	}
	if len(c.send) != 0 {
		t.Errorf("relay path should not deliver locally, got %d", len(c.send))
	}

	// 订阅端回流
	h.DeliverRaw(relay.sent[0])
	waitFor(t, "relayed frame", func() bool { return len(c.send) == 1 })
	<-c.send

	relay.err = errors.New("redis down")
	h.HandleEvent(context.Background(), messageEvent(7, 2, "fallback"))
	waitFor(t, "local fallback", func() bool { return len(c.send) == 1 })
	var f Frame
	if err := json.Unmarshal(<-c.send, &f); err != nil || f.Type != FrameMessage {
		t.Errorf("fallback frame: got %+v err=%v", f, err)
	}
}

func TestHub_DeliverAfterStop(t *testing.T) {
	h, cancel := startHub(t)
	cancel()
	<-h.done
	done := make(chan struct{})
	go func() {
		h.Deliver(1, []byte("{}"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Deliver blocked after hub stopped")
	}
}

// === Upgrade ===

func TestUpgrader_PushAndPing(t *testing.T) {
	h, _ := startHub(t)
	bus := eventbus.NewInMemoryBus(zap.NewNop(), 16)
	defer bus.Close()
	unsubscribe := h.Attach(bus)
	defer unsubscribe()

	up := NewUpgrader(h, []string{"http://portal.example"}, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := up.Serve(w, r, 1, 11); err != nil {
			t.Logf("serve: %v", err)
		}
	}))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	header := http.Header{"Origin": []string{"http://evil.example"}}
	if _, _, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		t.Error("foreign origin should be rejected")
	}

	header.Set("Origin", "http://portal.example")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitFor(t, "registration", func() bool { return h.SessionClientCount(11) == 1 })

	bus.Publish(context.Background(), messageEvent(12, 1, "other session"))
	bus.Publish(context.Background(), messageEvent(11, 2, "hello"))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f Frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read: %v", err)
	}
	if f.Type != FrameMessage || f.SessionID != 11 {
		t.Errorf("frame: got %s/%d, want message/11", f.Type, f.SessionID)
	}

	if err := conn.WriteJSON(Frame{Type: FramePing}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if f.Type != FramePong {
		t.Errorf("reply: got %s, want pong", f.Type)
	}

	conn.Close()
	waitFor(t, "unregister", func() bool { return h.SessionClientCount(11) == 0 })
}
