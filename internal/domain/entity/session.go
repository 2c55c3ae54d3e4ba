package entity

import (
	"strings"
	"time"
	"unicode/utf8"
)

// SessionStatus 会话状态
type SessionStatus string

const (
	SessionWaiting SessionStatus = "waiting"
	SessionActive  SessionStatus = "active"
	SessionEnded   SessionStatus = "ended"
)

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionWaiting, SessionActive, SessionEnded:
		return true
	}
	return false
}

// Open reports whether the session still accepts messages.
func (s SessionStatus) Open() bool {
	return s == SessionWaiting || s == SessionActive
}

// Priority 会话优先级
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority accepts the four priority names; empty means medium.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PriorityMedium, nil
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p, nil
	}
	return "", ErrInvalidPriority
}

const (
	DefaultDepartment = "general"
	MaxSubjectLength  = 255
)

// ChatSession 聊天会话聚合根
//
// Status moves waiting -> active -> ended or waiting -> ended. A waiting
// session never has an assignee and an active one always does.
type ChatSession struct {
	ID              uint          `json:"id"`
	RequesterID     uint          `json:"requester_id"`
	AssignedAgentID *uint         `json:"assigned_agent_id"`
	Token           string        `json:"token"`
	Subject         string        `json:"subject"`
	Department      string        `json:"department"`
	Priority        Priority      `json:"priority"`
	Status          SessionStatus `json:"status"`
	StartedAt       time.Time     `json:"started_at"`
	EndedAt         *time.Time    `json:"ended_at"`
	LastActivity    time.Time     `json:"last_activity"`
	Rating          *int          `json:"rating"`
	Feedback        *string       `json:"feedback"`
	Tags            []string      `json:"tags,omitempty"`
}

// NewChatSession 创建等待中的会话（工厂方法）
func NewChatSession(requesterID uint, token, subject, priority, department string, now time.Time) (*ChatSession, error) {
	if requesterID == 0 {
		return nil, ErrInvalidRequester
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, ErrEmptySubject
	}
	if utf8.RuneCountInString(subject) > MaxSubjectLength {
		return nil, ErrSubjectTooLong
	}
	p, err := ParsePriority(priority)
	if err != nil {
		return nil, err
	}
	department = strings.TrimSpace(department)
	if department == "" {
		department = DefaultDepartment
	}

	return &ChatSession{
		RequesterID:  requesterID,
		Token:        token,
		Subject:      subject,
		Department:   department,
		Priority:     p,
		Status:       SessionWaiting,
		StartedAt:    now,
		LastActivity: now,
	}, nil
}

// IsAssigned reports whether an agent currently holds the session.
func (s *ChatSession) IsAssigned() bool {
	return s.AssignedAgentID != nil
}

// AssignedTo reports whether agentID is the current assignee.
func (s *ChatSession) AssignedTo(agentID uint) bool {
	return s.AssignedAgentID != nil && *s.AssignedAgentID == agentID
}

// Assign binds the session to agentID and returns the previous assignee
// (0 if none). Reassigning an active session keeps it active.
func (s *ChatSession) Assign(agentID uint, now time.Time) (uint, error) {
	if agentID == 0 {
		return 0, ErrInvalidAgent
	}
	if s.Status == SessionEnded {
		return 0, ErrSessionEnded
	}
	var previous uint
	if s.AssignedAgentID != nil {
		previous = *s.AssignedAgentID
	}
	id := agentID
	s.AssignedAgentID = &id
	s.Status = SessionActive
	s.LastActivity = now
	return previous, nil
}

// End closes the session. rating may be nil; feedback is trimmed and
// dropped when empty.
func (s *ChatSession) End(rating *int, feedback string, now time.Time) error {
	if s.Status == SessionEnded {
		return ErrSessionEnded
	}
	if rating != nil && (*rating < 1 || *rating > 5) {
		return ErrInvalidRating
	}
	s.Status = SessionEnded
	ended := now
	s.EndedAt = &ended
	s.LastActivity = now
	if rating != nil {
		r := *rating
		s.Rating = &r
	}
	if fb := strings.TrimSpace(feedback); fb != "" {
		s.Feedback = &fb
	}
	return nil
}

// Touch records activity on the session.
func (s *ChatSession) Touch(now time.Time) {
	s.LastActivity = now
}

// CheckInvariant verifies the status/assignee relation.
func (s *ChatSession) CheckInvariant() error {
	switch s.Status {
	case SessionWaiting:
		if s.AssignedAgentID != nil {
			return ErrInvalidTransition
		}
	case SessionActive:
		if s.AssignedAgentID == nil {
			return ErrInvalidTransition
		}
	case SessionEnded:
	default:
		return ErrInvalidSessionStatus
	}
	return nil
}
