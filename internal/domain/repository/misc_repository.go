package repository

import (
	"context"

	"github.com/eben2468/srcwebsite-sub012/internal/domain/entity"
)

// QuickResponseRepository 快捷回复仓储接口
type QuickResponseRepository interface {
	// ListActive 列出启用的快捷回复, category 为空时返回全部
	ListActive(ctx context.Context, category string) ([]*entity.QuickResponse, error)

	// ReplaceAll 用目录文件内容替换整张表
	ReplaceAll(ctx context.Context, responses []*entity.QuickResponse) error
}

// FileRepository 会话附件仓储接口
type FileRepository interface {
	Create(ctx context.Context, file *entity.ChatFile) error
	ListBySession(ctx context.Context, sessionID uint) ([]*entity.ChatFile, error)
}

// TagRepository 会话标签仓储接口
type TagRepository interface {
	// Add 添加标签, 已存在时忽略
	Add(ctx context.Context, tag *entity.SessionTag) error
	ListBySession(ctx context.Context, sessionID uint) ([]string, error)
}

// UserRepository 用户只读仓储接口
type UserRepository interface {
	FindByID(ctx context.Context, id uint) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	Create(ctx context.Context, user *entity.User) error
}
