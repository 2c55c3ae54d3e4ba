package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/eben2468/srcwebsite-sub012/internal/domain/entity"
	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/persistence/models"
	domainErrors "github.com/eben2468/srcwebsite-sub012/pkg/errors"
)

// GormAgentStatusRepository GORM 实现的客服状态仓储
type GormAgentStatusRepository struct {
	db *gorm.DB
}

// Find 查找客服状态
func (r *GormAgentStatusRepository) Find(ctx context.Context, agentID uint) (*entity.AgentStatus, error) {
	var model models.AgentStatusModel
	if err := r.db.WithContext(ctx).First(&model, "agent_id = ?", agentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("agent status not found")
		}
		return nil, internalErr("failed to find agent status", err)
	}
	return toAgentEntity(&model), nil
}

// Upsert 写入客服状态; current_chat_count 只在插入时置 0
func (r *GormAgentStatusRepository) Upsert(ctx context.Context, a *entity.AgentStatus) error {
	model := &models.AgentStatusModel{
		AgentID:            a.AgentID,
		Status:             string(a.Status),
		MaxConcurrentChats: a.MaxConcurrentChats,
		CurrentChatCount:   0,
		AutoAssign:         a.AutoAssign,
		LastSeen:           a.LastSeen,
	}
	err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "agent_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "max_concurrent_chats", "auto_assign", "last_seen"}),
		}).
		Create(model).Error
	if err != nil {
		return internalErr("failed to upsert agent status", err)
	}
	return nil
}

// TouchLastSeen 刷新 last_seen
func (r *GormAgentStatusRepository) TouchLastSeen(ctx context.Context, agentID uint, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.AgentStatusModel{}).
		Where("agent_id = ?", agentID).
		UpdateColumn("last_seen", at)
	if result.Error != nil {
		return internalErr("failed to touch agent status", result.Error)
	}
	if result.RowsAffected == 0 {
		// mysql reports zero rows when the value is unchanged
		if _, err := r.Find(ctx, agentID); err != nil {
			return err
		}
	}
	return nil
}

// ListAssignable 可自动分配的客服, 负载最低优先
func (r *GormAgentStatusRepository) ListAssignable(ctx context.Context) ([]*entity.AgentStatus, error) {
	var list []models.AgentStatusModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND auto_assign = ?", string(entity.PresenceOnline), true).
		Where("current_chat_count < max_concurrent_chats").
		Order("current_chat_count asc").
		Order("last_seen desc").
		Order("agent_id asc").
		Find(&list).Error
	if err != nil {
		return nil, internalErr("failed to list assignable agents", err)
	}
	return toAgentEntities(list), nil
}

// List 所有客服状态
func (r *GormAgentStatusRepository) List(ctx context.Context) ([]*entity.AgentStatus, error) {
	var list []models.AgentStatusModel
	if err := r.db.WithContext(ctx).Order("agent_id asc").Find(&list).Error; err != nil {
		return nil, internalErr("failed to list agent status", err)
	}
	return toAgentEntities(list), nil
}

// ReserveSlot 条件自增: 仅当 current_chat_count < max_concurrent_chats
func (r *GormAgentStatusRepository) ReserveSlot(ctx context.Context, agentID uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.AgentStatusModel{}).
		Where("agent_id = ? AND current_chat_count < max_concurrent_chats", agentID).
		UpdateColumn("current_chat_count", gorm.Expr("current_chat_count + 1"))
	if result.Error != nil {
		return false, internalErr("failed to reserve agent slot", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// ReleaseSlot 自减, 不低于 0
func (r *GormAgentStatusRepository) ReleaseSlot(ctx context.Context, agentID uint) error {
	err := r.db.WithContext(ctx).
		Model(&models.AgentStatusModel{}).
		Where("agent_id = ?", agentID).
		UpdateColumn("current_chat_count",
			gorm.Expr("CASE WHEN current_chat_count > 0 THEN current_chat_count - 1 ELSE 0 END")).Error
	if err != nil {
		return internalErr("failed to release agent slot", err)
	}
	return nil
}

func toAgentEntities(list []models.AgentStatusModel) []*entity.AgentStatus {
	out := make([]*entity.AgentStatus, 0, len(list))
	for i := range list {
		out = append(out, toAgentEntity(&list[i]))
	}
	return out
}

func toAgentEntity(m *models.AgentStatusModel) *entity.AgentStatus {
	return &entity.AgentStatus{
		AgentID:            m.AgentID,
		Status:             entity.Presence(m.Status),
		MaxConcurrentChats: m.MaxConcurrentChats,
		CurrentChatCount:   m.CurrentChatCount,
		AutoAssign:         m.AutoAssign,
		LastSeen:           m.LastSeen,
	}
}
