package websocket

import (
	"encoding/json"
	"time"

	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/eventbus"
)

// FrameType 推送帧类型
type FrameType string

const (
	FrameMessage         FrameType = "message"
	FrameSessionAssigned FrameType = "session_assigned"
	FrameSessionEnded    FrameType = "session_ended"
	FrameMessagesRead    FrameType = "messages_read"
	FramePing            FrameType = "ping"
	FramePong            FrameType = "pong"
	FrameError           FrameType = "error"
)

// Frame is the JSON unit pushed to subscribers of one session.
type Frame struct {
	Type      FrameType       `json:"type"`
	SessionID uint            `json:"session_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// NewFrame builds a frame with payload encoded as JSON.
func NewFrame(t FrameType, sessionID uint, payload any, at time.Time) (*Frame, error) {
	f := &Frame{Type: t, SessionID: sessionID, Timestamp: at.Unix()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		f.Payload = raw
	}
	return f, nil
}

// frameTypes maps chat events to the frames clients see. Events not listed
// are not pushed.
var frameTypes = map[string]FrameType{
	eventbus.EventMessageSent:     FrameMessage,
	eventbus.EventSessionAssigned: FrameSessionAssigned,
	eventbus.EventSessionEnded:    FrameSessionEnded,
	eventbus.EventMessagesRead:    FrameMessagesRead,
}

// FrameFromEvent converts a session-scoped chat event to a frame. ok is
// false for events that are not pushed.
func FrameFromEvent(ev eventbus.Event) (*Frame, bool, error) {
	t, ok := frameTypes[ev.Type()]
	if !ok {
		return nil, false, nil
	}
	sessionID := eventbus.SessionIDOf(ev)
	if sessionID == 0 {
		return nil, false, nil
	}

	var payload any
	switch p := ev.Payload().(type) {
	case eventbus.MessageSentPayload:
		payload = p.Message
	default:
		payload = p
	}
	f, err := NewFrame(t, sessionID, payload, ev.Timestamp())
	if err != nil {
		return nil, false, err
	}
	return f, true, nil
}
