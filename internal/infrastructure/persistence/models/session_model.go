package models

import "time"

// ChatSessionModel 会话表
type ChatSessionModel struct {
	ID              uint       `gorm:"primaryKey"`
	RequesterID     uint       `gorm:"index:idx_session_requester_status,priority:1;not null"`
	AssignedAgentID *uint      `gorm:"index"`
	Token           string     `gorm:"uniqueIndex;size:36;not null"`
	Subject         string     `gorm:"size:255;not null"`
	Department      string     `gorm:"size:64;not null;default:general"`
	Priority        string     `gorm:"size:16;not null;default:medium"`
	Status          string     `gorm:"index:idx_session_requester_status,priority:2;size:16;not null;default:waiting"`
	StartedAt       time.Time  `gorm:"index;not null"`
	EndedAt         *time.Time
	LastActivity    time.Time `gorm:"not null"`
	Rating          *int
	Feedback        *string `gorm:"type:text"`

	Requester     UserModel  `gorm:"foreignKey:RequesterID;constraint:OnDelete:CASCADE"`
	AssignedAgent *UserModel `gorm:"foreignKey:AssignedAgentID;constraint:OnDelete:SET NULL"`
}

// TableName 指定表名
func (ChatSessionModel) TableName() string {
	return "chat_sessions"
}

// ChatMessageModel 消息表
type ChatMessageModel struct {
	ID          uint      `gorm:"primaryKey"`
	SessionID   uint      `gorm:"index:idx_message_session_id,priority:1;not null"`
	SenderID    uint      `gorm:"index;not null"` // 0 = system
	Message     string    `gorm:"type:text;not null"`
	MessageType string    `gorm:"size:16;not null;default:text"`
	IsRead      bool      `gorm:"index;not null;default:false"`
	SentAt      time.Time `gorm:"index:idx_message_session_id,priority:2;not null"`

	Session ChatSessionModel `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

// TableName 指定表名
func (ChatMessageModel) TableName() string {
	return "chat_messages"
}

// ChatParticipantModel 参与者表
type ChatParticipantModel struct {
	ID        uint      `gorm:"primaryKey"`
	SessionID uint      `gorm:"uniqueIndex:idx_participant_session_user,priority:1;not null"`
	UserID    uint      `gorm:"uniqueIndex:idx_participant_session_user,priority:2;index;not null"`
	Role      string    `gorm:"size:16;not null"`
	IsActive  bool      `gorm:"not null;default:true"`
	JoinedAt  time.Time `gorm:"not null"`
	LeftAt    *time.Time

	Session ChatSessionModel `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
	User    UserModel        `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// TableName 指定表名
func (ChatParticipantModel) TableName() string {
	return "chat_participants"
}
