// Package telegram posts helpdesk alerts to a staff Telegram chat.
package telegram

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/eventbus"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sender is the part of *tgbotapi.BotAPI the alerter needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// NewBot 连接 Bot API
func NewBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return bot, nil
}

// QueueAlert notifies staff when a new session could not be assigned and
// is waiting in the queue.
type QueueAlert struct {
	sender Sender
	chatID int64
	logger *zap.Logger
}

// NewQueueAlert 创建排队提醒
func NewQueueAlert(sender Sender, chatID int64, logger *zap.Logger) *QueueAlert {
	return &QueueAlert{
		sender: sender,
		chatID: chatID,
		logger: logger.With(zap.String("component", "telegram-alert")),
	}
}

// Attach subscribes to session starts.
func (a *QueueAlert) Attach(bus eventbus.Bus) func() {
	return bus.Subscribe(eventbus.EventSessionStarted, a.Handle)
}

// Handle sends the alert for queued sessions; assigned ones are ignored.
func (a *QueueAlert) Handle(ctx context.Context, ev eventbus.Event) {
	p, ok := ev.Payload().(eventbus.SessionStartedPayload)
	if !ok || p.Assigned {
		return
	}
	if err := a.send(FormatQueued(p, ev.Timestamp())); err != nil {
		a.logger.Warn("Failed to send queue alert",
			zap.Uint("session_id", p.Session.ID),
			zap.Error(err),
		)
	}
}

func (a *QueueAlert) send(text string) error {
	msg := tgbotapi.NewMessage(a.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	_, err := a.sender.Send(msg)
	// HTML 解析失败时退回纯文本
	if err != nil && strings.Contains(err.Error(), "can't parse entities") {
		msg.ParseMode = ""
		msg.Text = stripTags(text)
		_, err = a.sender.Send(msg)
	}
	return err
}

// FormatQueued renders the alert body in Telegram HTML.
func FormatQueued(p eventbus.SessionStartedPayload, at time.Time) string {
	s := p.Session
	var b strings.Builder
	fmt.Fprintf(&b, "<b>New chat waiting</b> #%d\n", s.ID)
	fmt.Fprintf(&b, "<b>Subject:</b> %s\n", html.EscapeString(s.Subject))
	fmt.Fprintf(&b, "<b>Priority:</b> %s\n", html.EscapeString(string(s.Priority)))
	fmt.Fprintf(&b, "<b>Department:</b> %s\n", html.EscapeString(s.Department))
	fmt.Fprintf(&b, "<i>%s</i>", at.UTC().Format("2006-01-02 15:04 MST"))
	return b.String()
}

func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>' && inTag:
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return html.UnescapeString(b.String())
}
