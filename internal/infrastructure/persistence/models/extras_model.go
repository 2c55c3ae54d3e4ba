package models

import "time"

// QuickResponseModel 快捷回复表
type QuickResponseModel struct {
	ID        uint   `gorm:"primaryKey"`
	Category  string `gorm:"index;size:64;not null"`
	Title     string `gorm:"size:128;not null"`
	Body      string `gorm:"type:text;not null"`
	SortOrder int    `gorm:"not null;default:0"`
	IsActive  bool   `gorm:"not null"`
}

// TableName 指定表名
func (QuickResponseModel) TableName() string {
	return "chat_quick_responses"
}

// ChatFileModel 附件表
type ChatFileModel struct {
	ID           uint      `gorm:"primaryKey"`
	SessionID    uint      `gorm:"index;not null"`
	MessageID    uint      `gorm:"index;not null"`
	UploaderID   uint      `gorm:"not null"`
	OriginalName string    `gorm:"size:255;not null"`
	StoredPath   string    `gorm:"size:512;not null"`
	MimeType     string    `gorm:"size:128;not null"`
	SizeBytes    int64     `gorm:"not null"`
	UploadedAt   time.Time `gorm:"not null"`

	Session ChatSessionModel `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
	Message ChatMessageModel `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`
}

// TableName 指定表名
func (ChatFileModel) TableName() string {
	return "chat_files"
}

// SessionTagModel 会话标签表
type SessionTagModel struct {
	SessionID uint      `gorm:"primaryKey;autoIncrement:false"`
	Tag       string    `gorm:"primaryKey;size:32"`
	AddedBy   uint      `gorm:"not null"`
	AddedAt   time.Time `gorm:"not null"`

	Session ChatSessionModel `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

// TableName 指定表名
func (SessionTagModel) TableName() string {
	return "chat_session_tags"
}

// All lists every table in migration order.
func All() []interface{} {
	return []interface{}{
		&UserModel{},
		&ChatSessionModel{},
		&ChatMessageModel{},
		&ChatParticipantModel{},
		&AgentStatusModel{},
		&QuickResponseModel{},
		&ChatFileModel{},
		&SessionTagModel{},
	}
}
