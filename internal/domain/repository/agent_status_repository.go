package repository

import (
	"context"
	"time"

	"github.com/eben2468/srcwebsite-sub012/internal/domain/entity"
)

// AgentStatusRepository 客服状态仓储接口
type AgentStatusRepository interface {
	// Find 查找客服状态
	Find(ctx context.Context, agentID uint) (*entity.AgentStatus, error)

	// Upsert 写入状态/并发上限/自动分配, 不修改 current_chat_count
	Upsert(ctx context.Context, status *entity.AgentStatus) error

	// TouchLastSeen 刷新 last_seen
	TouchLastSeen(ctx context.Context, agentID uint, at time.Time) error

	// ListAssignable 返回 online + auto_assign + 未满载 的客服,
	// 按 current_chat_count 升序, last_seen 降序, agent_id 升序
	ListAssignable(ctx context.Context) ([]*entity.AgentStatus, error)

	// List 返回所有客服状态
	List(ctx context.Context) ([]*entity.AgentStatus, error)

	// ReserveSlot 原子地 current_chat_count+1 (仅当未满载), 返回是否成功
	ReserveSlot(ctx context.Context, agentID uint) (bool, error)

	// ReleaseSlot 原子地 current_chat_count-1, 不低于 0
	ReleaseSlot(ctx context.Context, agentID uint) error
}
