package entity

import "time"

// ParticipantRole 参与者角色
type ParticipantRole string

const (
	RoleCustomer   ParticipantRole = "customer"
	RoleAgent      ParticipantRole = "agent"
	RoleSupervisor ParticipantRole = "supervisor"
)

// ChatParticipant records a user attached to a session, independent of the
// session's assignee field.
type ChatParticipant struct {
	ID        uint            `json:"id"`
	SessionID uint            `json:"session_id"`
	UserID    uint            `json:"user_id"`
	Role      ParticipantRole `json:"role"`
	IsActive  bool            `json:"is_active"`
	JoinedAt  time.Time       `json:"joined_at"`
	LeftAt    *time.Time      `json:"left_at"`
}

// NewParticipant 创建活跃参与者
func NewParticipant(sessionID, userID uint, role ParticipantRole, now time.Time) *ChatParticipant {
	return &ChatParticipant{
		SessionID: sessionID,
		UserID:    userID,
		Role:      role,
		IsActive:  true,
		JoinedAt:  now,
	}
}
