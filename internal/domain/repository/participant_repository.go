package repository

import (
	"context"
	"time"

	"github.com/eben2468/srcwebsite-sub012/internal/domain/entity"
)

// ParticipantRepository 参与者仓储接口
type ParticipantRepository interface {
	// Find 查找用户在会话中的参与记录 (含已离开)
	Find(ctx context.Context, sessionID, userID uint) (*entity.ChatParticipant, error)

	// Upsert 新增或重新激活参与记录
	Upsert(ctx context.Context, participant *entity.ChatParticipant) error

	// Deactivate 将单个参与者标记为离开
	Deactivate(ctx context.Context, sessionID, userID uint, at time.Time) error

	// DeactivateAll 将会话的所有参与者标记为离开
	DeactivateAll(ctx context.Context, sessionID uint, at time.Time) error

	// ListBySession 列出会话参与者
	ListBySession(ctx context.Context, sessionID uint) ([]*entity.ChatParticipant, error)

	// OpenSessionIDs 返回用户作为活跃参与者或发起人的未结束会话
	OpenSessionIDs(ctx context.Context, userID uint) ([]uint, error)
}
