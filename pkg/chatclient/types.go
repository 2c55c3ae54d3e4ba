package chatclient

import "time"

// Session mirrors a chat session row.
type Session struct {
	ID              uint       `json:"id"`
	RequesterID     uint       `json:"requester_id"`
	AssignedAgentID *uint      `json:"assigned_agent_id"`
	Token           string     `json:"token"`
	Subject         string     `json:"subject"`
	Department      string     `json:"department"`
	Priority        string     `json:"priority"`
	Status          string     `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at"`
	LastActivity    time.Time  `json:"last_activity"`
	Rating          *int       `json:"rating"`
	Feedback        *string    `json:"feedback"`
	Tags            []string   `json:"tags,omitempty"`
}

// Open reports whether the session still accepts messages.
func (s *Session) Open() bool {
	return s.Status == "waiting" || s.Status == "active"
}

// SessionSummary is a dashboard row.
type SessionSummary struct {
	Session
	UnreadCount int64 `json:"unread_count"`
}

// Message 会话消息
type Message struct {
	ID        uint      `json:"id"`
	SessionID uint      `json:"session_id"`
	SenderID  uint      `json:"sender_id"`
	Text      string    `json:"message"`
	Type      string    `json:"message_type"`
	IsRead    bool      `json:"is_read"`
	SentAt    time.Time `json:"sent_at"`
}

// File is an uploaded attachment.
type File struct {
	ID           uint      `json:"id"`
	SessionID    uint      `json:"session_id"`
	MessageID    uint      `json:"message_id"`
	UploaderID   uint      `json:"uploader_id"`
	OriginalName string    `json:"original_name"`
	StoredPath   string    `json:"stored_path"`
	MimeType     string    `json:"mime_type"`
	SizeBytes    int64     `json:"size_bytes"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// AgentStatus 客服状态
type AgentStatus struct {
	AgentID            uint      `json:"agent_id"`
	Status             string    `json:"status"`
	MaxConcurrentChats int       `json:"max_concurrent_chats"`
	CurrentChatCount   int       `json:"current_chat_count"`
	AutoAssign         bool      `json:"auto_assign"`
	LastSeen           time.Time `json:"last_seen"`
}

// Agent is a presence listing entry.
type Agent struct {
	AgentStatus
	Name            string `json:"name"`
	EffectiveStatus string `json:"effective_status"`
}

// QuickResponse 快捷回复
type QuickResponse struct {
	ID        uint   `json:"id"`
	Category  string `json:"category"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	SortOrder int    `json:"sort_order"`
	HTML      string `json:"html,omitempty"`
}

// StartResult is returned by StartSession.
type StartResult struct {
	SessionID uint     `json:"session_id"`
	Token     string   `json:"token"`
	Reused    bool     `json:"reused"`
	Session   *Session `json:"session"`
}
