package entity

import (
	"strings"
	"time"
)

// Presence 客服在线状态
type Presence string

const (
	PresenceOnline  Presence = "online"
	PresenceBusy    Presence = "busy"
	PresenceAway    Presence = "away"
	PresenceOffline Presence = "offline"
)

// ParsePresence parses one of the four presence values.
func ParsePresence(s string) (Presence, error) {
	switch p := Presence(strings.ToLower(strings.TrimSpace(s))); p {
	case PresenceOnline, PresenceBusy, PresenceAway, PresenceOffline:
		return p, nil
	}
	return "", ErrInvalidAgentStatus
}

const (
	DefaultMaxConcurrentChats = 5
	MaxConcurrentChatsLimit   = 50
)

// AgentStatus 客服状态（与员工用户一一对应）
type AgentStatus struct {
	AgentID            uint      `json:"agent_id"`
	Status             Presence  `json:"status"`
	MaxConcurrentChats int       `json:"max_concurrent_chats"`
	CurrentChatCount   int       `json:"current_chat_count"`
	AutoAssign         bool      `json:"auto_assign"`
	LastSeen           time.Time `json:"last_seen"`
}

// HasCapacity reports whether the agent can take one more chat.
func (a *AgentStatus) HasCapacity() bool {
	return a.CurrentChatCount < a.MaxConcurrentChats
}

// ValidateMaxChats checks the concurrency limit an agent may publish.
// Zero selects the default.
func ValidateMaxChats(n int) (int, error) {
	if n == 0 {
		return DefaultMaxConcurrentChats, nil
	}
	if n < 1 || n > MaxConcurrentChatsLimit {
		return 0, ErrInvalidMaxChats
	}
	return n, nil
}
