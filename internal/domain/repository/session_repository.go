package repository

import (
	"context"
	"time"

	"github.com/eben2468/srcwebsite-sub012/internal/domain/entity"
)

// SessionFilter 会话查询条件
type SessionFilter struct {
	Status          entity.SessionStatus // empty = any
	AssignedAgentID uint                 // 0 = any
	Limit           int
}

// SessionRepository 会话仓储接口
type SessionRepository interface {
	// Create 插入新会话并回填 ID
	Create(ctx context.Context, session *entity.ChatSession) error

	// Update 保存会话的可变字段
	Update(ctx context.Context, session *entity.ChatSession) error

	// FindByID 根据ID查找会话
	FindByID(ctx context.Context, id uint) (*entity.ChatSession, error)

	// FindOpenByRequester 查找请求者未结束的会话 (waiting/active)
	FindOpenByRequester(ctx context.Context, requesterID uint) (*entity.ChatSession, error)

	// List 按条件列出会话, waiting 按开始时间升序, 其余按最后活动降序
	List(ctx context.Context, filter SessionFilter) ([]*entity.ChatSession, error)

	// TouchActivity 更新最后活动时间
	TouchActivity(ctx context.Context, id uint, at time.Time) error
}
