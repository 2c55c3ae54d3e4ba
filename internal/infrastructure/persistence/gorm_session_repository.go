package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/eben2468/srcwebsite-sub012/internal/domain/entity"
	"github.com/eben2468/srcwebsite-sub012/internal/domain/repository"
	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/persistence/models"
	domainErrors "github.com/eben2468/srcwebsite-sub012/pkg/errors"
)

var openStatuses = []string{string(entity.SessionWaiting), string(entity.SessionActive)}

// GormSessionRepository GORM 实现的会话仓储
type GormSessionRepository struct {
	db *gorm.DB
}

// Create 插入新会话
func (r *GormSessionRepository) Create(ctx context.Context, session *entity.ChatSession) error {
	model := toSessionModel(session)
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(model).Error; err != nil {
		return internalErr("failed to create session", err)
	}
	session.ID = model.ID
	return nil
}

// Update 保存会话可变字段
func (r *GormSessionRepository) Update(ctx context.Context, session *entity.ChatSession) error {
	result := r.db.WithContext(ctx).
		Model(&models.ChatSessionModel{}).
		Where("id = ?", session.ID).
		Updates(map[string]interface{}{
			"assigned_agent_id": session.AssignedAgentID,
			"status":            string(session.Status),
			"ended_at":          session.EndedAt,
			"last_activity":     session.LastActivity,
			"rating":            session.Rating,
			"feedback":          session.Feedback,
		})
	if result.Error != nil {
		return internalErr("failed to update session", result.Error)
	}
	return nil
}

// FindByID 根据ID查找会话
func (r *GormSessionRepository) FindByID(ctx context.Context, id uint) (*entity.ChatSession, error) {
	var model models.ChatSessionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("session not found")
		}
		return nil, internalErr("failed to find session", err)
	}
	return toSessionEntity(&model), nil
}

// FindOpenByRequester 查找请求者未结束的会话
func (r *GormSessionRepository) FindOpenByRequester(ctx context.Context, requesterID uint) (*entity.ChatSession, error) {
	var model models.ChatSessionModel
	err := r.db.WithContext(ctx).
		Where("requester_id = ? AND status IN ?", requesterID, openStatuses).
		Order("id desc").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("no open session")
		}
		return nil, internalErr("failed to find open session", err)
	}
	return toSessionEntity(&model), nil
}

// List 按条件列出会话
func (r *GormSessionRepository) List(ctx context.Context, filter repository.SessionFilter) ([]*entity.ChatSession, error) {
	q := r.db.WithContext(ctx).Model(&models.ChatSessionModel{})
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.AssignedAgentID != 0 {
		q = q.Where("assigned_agent_id = ?", filter.AssignedAgentID)
	}
	if filter.Status == entity.SessionWaiting {
		q = q.Order("started_at asc").Order("id asc")
	} else {
		q = q.Order("last_activity desc").Order("id desc")
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var list []models.ChatSessionModel
	if err := q.Find(&list).Error; err != nil {
		return nil, internalErr("failed to list sessions", err)
	}
	sessions := make([]*entity.ChatSession, 0, len(list))
	for i := range list {
		sessions = append(sessions, toSessionEntity(&list[i]))
	}
	return sessions, nil
}

// TouchActivity 更新最后活动时间
func (r *GormSessionRepository) TouchActivity(ctx context.Context, id uint, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.ChatSessionModel{}).
		Where("id = ?", id).
		UpdateColumn("last_activity", at).Error
	if err != nil {
		return internalErr("failed to touch session", err)
	}
	return nil
}

func toSessionModel(s *entity.ChatSession) *models.ChatSessionModel {
	return &models.ChatSessionModel{
		ID:              s.ID,
		RequesterID:     s.RequesterID,
		AssignedAgentID: s.AssignedAgentID,
		Token:           s.Token,
		Subject:         s.Subject,
		Department:      s.Department,
		Priority:        string(s.Priority),
		Status:          string(s.Status),
		StartedAt:       s.StartedAt,
		EndedAt:         s.EndedAt,
		LastActivity:    s.LastActivity,
		Rating:          s.Rating,
		Feedback:        s.Feedback,
	}
}

func toSessionEntity(m *models.ChatSessionModel) *entity.ChatSession {
	return &entity.ChatSession{
		ID:              m.ID,
		RequesterID:     m.RequesterID,
		AssignedAgentID: m.AssignedAgentID,
		Token:           m.Token,
		Subject:         m.Subject,
		Department:      m.Department,
		Priority:        entity.Priority(m.Priority),
		Status:          entity.SessionStatus(m.Status),
		StartedAt:       m.StartedAt,
		EndedAt:         m.EndedAt,
		LastActivity:    m.LastActivity,
		Rating:          m.Rating,
		Feedback:        m.Feedback,
	}
}
