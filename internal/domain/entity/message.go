package entity

import (
	"strings"
	"time"
	"unicode/utf8"
)

// SystemSenderID marks messages generated by the service itself.
const SystemSenderID uint = 0

// MaxMessageLength caps message text in runes.
const MaxMessageLength = 5000

// MessageType 消息类型
type MessageType string

const (
	MessageText   MessageType = "text"
	MessageSystem MessageType = "system"
	MessageFile   MessageType = "file"
	MessageImage  MessageType = "image"
)

// ParseMessageType accepts the message types a user may send. Empty means
// text; system messages are reserved for the service.
func ParseMessageType(s string) (MessageType, error) {
	switch t := MessageType(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return MessageText, nil
	case MessageText, MessageFile, MessageImage:
		return t, nil
	}
	return "", ErrInvalidMessageType
}

// ChatMessage 会话消息
type ChatMessage struct {
	ID        uint        `json:"id"`
	SessionID uint        `json:"session_id"`
	SenderID  uint        `json:"sender_id"`
	Text      string      `json:"message"`
	Type      MessageType `json:"message_type"`
	IsRead    bool        `json:"is_read"`
	SentAt    time.Time   `json:"sent_at"`
}

// NewUserMessage 创建用户消息
func NewUserMessage(sessionID, senderID uint, text string, msgType MessageType, now time.Time) (*ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}
	if msgType == MessageSystem || senderID == SystemSenderID {
		return nil, ErrInvalidMessageType
	}
	return &ChatMessage{
		SessionID: sessionID,
		SenderID:  senderID,
		Text:      text,
		Type:      msgType,
		SentAt:    now,
	}, nil
}

// NewSystemMessage 创建系统消息; stored as already read.
func NewSystemMessage(sessionID uint, text string, now time.Time) *ChatMessage {
	return &ChatMessage{
		SessionID: sessionID,
		SenderID:  SystemSenderID,
		Text:      text,
		Type:      MessageSystem,
		IsRead:    true,
		SentAt:    now,
	}
}

// IsSystem reports whether the message was generated by the service.
func (m *ChatMessage) IsSystem() bool {
	return m.SenderID == SystemSenderID
}
