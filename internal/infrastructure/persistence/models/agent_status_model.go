package models

import "time"

// AgentStatusModel 客服状态表, 与员工用户一一对应
type AgentStatusModel struct {
	AgentID            uint      `gorm:"primaryKey;autoIncrement:false"`
	Status             string    `gorm:"size:16;not null;default:offline"`
	MaxConcurrentChats int       `gorm:"not null;default:5"`
	CurrentChatCount   int       `gorm:"not null;default:0"`
	AutoAssign         bool      `gorm:"not null"`
	LastSeen           time.Time `gorm:"index;not null"`

	Agent UserModel `gorm:"foreignKey:AgentID;constraint:OnDelete:CASCADE"`
}

// TableName 指定表名
func (AgentStatusModel) TableName() string {
	return "chat_agent_status"
}
