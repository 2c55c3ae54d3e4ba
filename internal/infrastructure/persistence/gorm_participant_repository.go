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

// GormParticipantRepository GORM 实现的参与者仓储
type GormParticipantRepository struct {
	db *gorm.DB
}

// Find 查找参与记录
func (r *GormParticipantRepository) Find(ctx context.Context, sessionID, userID uint) (*entity.ChatParticipant, error) {
	var model models.ChatParticipantModel
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("participant not found")
		}
		return nil, internalErr("failed to find participant", err)
	}
	return toParticipantEntity(&model), nil
}

// Upsert 新增参与者; 已存在时重新激活并更新角色
func (r *GormParticipantRepository) Upsert(ctx context.Context, p *entity.ChatParticipant) error {
	model := &models.ChatParticipantModel{
		SessionID: p.SessionID,
		UserID:    p.UserID,
		Role:      string(p.Role),
		IsActive:  true,
		JoinedAt:  p.JoinedAt,
	}
	err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "session_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"role":      string(p.Role),
				"is_active": true,
				"left_at":   nil,
			}),
		}).
		Create(model).Error
	if err != nil {
		return internalErr("failed to upsert participant", err)
	}
	p.IsActive = true
	p.LeftAt = nil
	if model.ID != 0 {
		p.ID = model.ID
	}
	return nil
}

// Deactivate 标记单个参与者离开
func (r *GormParticipantRepository) Deactivate(ctx context.Context, sessionID, userID uint, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.ChatParticipantModel{}).
		Where("session_id = ? AND user_id = ? AND is_active = ?", sessionID, userID, true).
		Updates(map[string]interface{}{"is_active": false, "left_at": at}).Error
	if err != nil {
		return internalErr("failed to deactivate participant", err)
	}
	return nil
}

// DeactivateAll 标记会话所有参与者离开
func (r *GormParticipantRepository) DeactivateAll(ctx context.Context, sessionID uint, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.ChatParticipantModel{}).
		Where("session_id = ? AND is_active = ?", sessionID, true).
		Updates(map[string]interface{}{"is_active": false, "left_at": at}).Error
	if err != nil {
		return internalErr("failed to deactivate participants", err)
	}
	return nil
}

// ListBySession 列出会话参与者
func (r *GormParticipantRepository) ListBySession(ctx context.Context, sessionID uint) ([]*entity.ChatParticipant, error) {
	var list []models.ChatParticipantModel
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("joined_at asc").
		Order("id asc").
		Find(&list).Error
	if err != nil {
		return nil, internalErr("failed to list participants", err)
	}
	out := make([]*entity.ChatParticipant, 0, len(list))
	for i := range list {
		out = append(out, toParticipantEntity(&list[i]))
	}
	return out, nil
}

// OpenSessionIDs 返回用户参与的未结束会话
func (r *GormParticipantRepository) OpenSessionIDs(ctx context.Context, userID uint) ([]uint, error) {
	joined := r.db.Model(&models.ChatParticipantModel{}).
		Select("session_id").
		Where("user_id = ? AND is_active = ?", userID, true)

	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.ChatSessionModel{}).
		Where("status IN ?", openStatuses).
		Where(r.db.Where("requester_id = ?", userID).Or("id IN (?)", joined)).
		Order("id asc").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, internalErr("failed to list open sessions", err)
	}
	return ids, nil
}

func toParticipantEntity(m *models.ChatParticipantModel) *entity.ChatParticipant {
	return &entity.ChatParticipant{
		ID:        m.ID,
		SessionID: m.SessionID,
		UserID:    m.UserID,
		Role:      entity.ParticipantRole(m.Role),
		IsActive:  m.IsActive,
		JoinedAt:  m.JoinedAt,
		LeftAt:    m.LeftAt,
	}
}
