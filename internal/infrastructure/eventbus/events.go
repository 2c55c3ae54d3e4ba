package eventbus

import "github.com/eben2468/srcwebsite-sub012/internal/domain/entity"

// 聊天领域事件类型
const (
	EventSessionStarted     = "chat.session_started"
	EventSessionAssigned    = "chat.session_assigned"
	EventMessageSent        = "chat.message_sent"
	EventMessagesRead       = "chat.messages_read"
	EventSessionEnded       = "chat.session_ended"
	EventAgentStatusChanged = "agent.status_changed"
)

// SessionScoped is implemented by payloads that belong to one chat session.
type SessionScoped interface {
	SessionRef() uint
}

// SessionStartedPayload 新会话 (Assigned 为 false 表示进入排队)
type SessionStartedPayload struct {
	Session  entity.ChatSession `json:"session"`
	Assigned bool               `json:"assigned"`
}

func (p SessionStartedPayload) SessionRef() uint { return p.Session.ID }

// SessionAssignedPayload 会话分配/转接
type SessionAssignedPayload struct {
	Session         entity.ChatSession `json:"session"`
	AgentID         uint               `json:"agent_id"`
	AgentName       string             `json:"agent_name"`
	PreviousAgentID uint               `json:"previous_agent_id,omitempty"`
	Auto            bool               `json:"auto"`
}

func (p SessionAssignedPayload) SessionRef() uint { return p.Session.ID }

// MessageSentPayload 新消息
type MessageSentPayload struct {
	Message entity.ChatMessage `json:"message"`
}

func (p MessageSentPayload) SessionRef() uint { return p.Message.SessionID }

// MessagesReadPayload 已读回执
type MessagesReadPayload struct {
	SessionID uint  `json:"session_id"`
	ReaderID  uint  `json:"reader_id"`
	Count     int64 `json:"count"`
}

func (p MessagesReadPayload) SessionRef() uint { return p.SessionID }

// SessionEndedPayload 会话结束
type SessionEndedPayload struct {
	Session entity.ChatSession `json:"session"`
	EndedBy uint               `json:"ended_by"`
}

func (p SessionEndedPayload) SessionRef() uint { return p.Session.ID }

// AgentStatusPayload 客服状态变化
type AgentStatusPayload struct {
	Status entity.AgentStatus `json:"status"`
}

// SessionIDOf returns the session an event belongs to, or 0.
func SessionIDOf(event Event) uint {
	if s, ok := event.Payload().(SessionScoped); ok {
		return s.SessionRef()
	}
	return 0
}
