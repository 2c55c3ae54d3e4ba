package models

import "time"

// UserModel 用户表 (与 SRC 网站共用)
type UserModel struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"size:128;not null"`
	Email        string `gorm:"uniqueIndex;size:191;not null"`
	Role         string `gorm:"size:16;not null;default:student"`
	PasswordHash string `gorm:"size:255"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName 指定表名
func (UserModel) TableName() string {
	return "users"
}
