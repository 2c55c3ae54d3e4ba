package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/eben2468/srcwebsite-sub012/internal/domain/entity"
	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/eventbus"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type fakeSender struct {
	mu      sync.Mutex
	sent    []tgbotapi.MessageConfig
	failFor string // parse mode that fails
	notify  chan struct{}
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg := c.(tgbotapi.MessageConfig)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	if f.notify != nil {
		f.notify <- struct{}{}
	}
	if f.failFor != "" && msg.ParseMode == f.failFor {
		return tgbotapi.Message{}, errors.New("Bad Request: can't parse entities")
	}
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func queued(assigned bool) eventbus.Event {
	return eventbus.NewEvent(eventbus.EventSessionStarted, eventbus.SessionStartedPayload{
		Session: entity.ChatSession{
			ID:         12,
			Subject:    "Fees <urgent> & refunds",
			Priority:   entity.PriorityHigh,
			Department: "finance",
		},
		Assigned: assigned,
	})
}

func TestQueueAlert_OnlyQueuedSessions(t *testing.T) {
	s := &fakeSender{}
	a := NewQueueAlert(s, -100, zap.NewNop())

	a.Handle(context.Background(), queued(true))
	if len(s.sent) != 0 {
		t.Fatalf("assigned session: got %d alerts, want 0", len(s.sent))
	}

	a.Handle(context.Background(), queued(false))
	if len(s.sent) != 1 {
		t.Fatalf("queued session: got %d alerts, want 1", len(s.sent))
	}
	msg := s.sent[0]
	if msg.ChatID != -100 || msg.ParseMode != tgbotapi.ModeHTML {
		t.Errorf("message: got chat=%d mode=%q", msg.ChatID, msg.ParseMode)
	}
	if !strings.Contains(msg.Text, "Fees &lt;urgent&gt; &amp; refunds") || !strings.Contains(msg.Text, "#12") {
		t.Errorf("text: got %q", msg.Text)
	}
}

func TestQueueAlert_FallsBackToPlainText(t *testing.T) {
	s := &fakeSender{failFor: tgbotapi.ModeHTML}
	a := NewQueueAlert(s, 1, zap.NewNop())
	a.Handle(context.Background(), queued(false))

	if len(s.sent) != 2 {
		t.Fatalf("sends: got %d, want 2", len(s.sent))
	}
	plain := s.sent[1]
	if plain.ParseMode != "" || strings.Contains(plain.Text, "<b>") || !strings.Contains(plain.Text, "Fees <urgent> & refunds") {
		t.Errorf("plain retry: got mode=%q text=%q", plain.ParseMode, plain.Text)
	}
}

func TestQueueAlert_Attach(t *testing.T) {
	s := &fakeSender{notify: make(chan struct{}, 1)}
	bus := eventbus.NewInMemoryBus(zap.NewNop(), 4)
	defer bus.Close()
	unsubscribe := NewQueueAlert(s, 1, zap.NewNop()).Attach(bus)
	defer unsubscribe()

	bus.Publish(context.Background(), queued(false))
	select {
	case <-s.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("alert not sent")
	}
}
