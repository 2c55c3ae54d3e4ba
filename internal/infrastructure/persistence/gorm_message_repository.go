package persistence

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/eben2468/srcwebsite-sub012/internal/domain/entity"
	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/persistence/models"
)

// GormMessageRepository GORM 实现的消息仓储
type GormMessageRepository struct {
	db *gorm.DB
}

// Append 追加消息
func (r *GormMessageRepository) Append(ctx context.Context, message *entity.ChatMessage) error {
	model := &models.ChatMessageModel{
		SessionID:   message.SessionID,
		SenderID:    message.SenderID,
		Message:     message.Text,
		MessageType: string(message.Type),
		IsRead:      message.IsRead,
		SentAt:      message.SentAt,
	}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(model).Error; err != nil {
		return internalErr("failed to append message", err)
	}
	message.ID = model.ID
	return nil
}

// ListAfter 返回 id > afterID 的消息
func (r *GormMessageRepository) ListAfter(ctx context.Context, sessionID, afterID uint, limit int) ([]*entity.ChatMessage, error) {
	var list []models.ChatMessageModel
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND id > ?", sessionID, afterID).
		Order("sent_at asc").
		Order("id asc").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, internalErr("failed to list messages", err)
	}

	messages := make([]*entity.ChatMessage, 0, len(list))
	for i := range list {
		messages = append(messages, toMessageEntity(&list[i]))
	}
	return messages, nil
}

// MarkReadExcept 标记他人消息为已读
func (r *GormMessageRepository) MarkReadExcept(ctx context.Context, sessionID, readerID uint) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ChatMessageModel{}).
		Where("session_id = ? AND sender_id <> ? AND is_read = ?", sessionID, readerID, false).
		UpdateColumn("is_read", true)
	if result.Error != nil {
		return 0, internalErr("failed to mark messages read", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *GormMessageRepository) unreadScope(sessionIDs []uint, readerID uint) *gorm.DB {
	return r.db.Model(&models.ChatMessageModel{}).
		Where("session_id IN ?", sessionIDs).
		Where("sender_id <> ? AND sender_id <> ?", readerID, entity.SystemSenderID).
		Where("is_read = ?", false)
}

// CountUnread 统计未读消息
func (r *GormMessageRepository) CountUnread(ctx context.Context, sessionIDs []uint, readerID uint) (int64, error) {
	if len(sessionIDs) == 0 {
		return 0, nil
	}
	var count int64
	if err := r.unreadScope(sessionIDs, readerID).WithContext(ctx).Count(&count).Error; err != nil {
		return 0, internalErr("failed to count unread messages", err)
	}
	return count, nil
}

// UnreadBySession 按会话统计未读消息
func (r *GormMessageRepository) UnreadBySession(ctx context.Context, sessionIDs []uint, readerID uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(sessionIDs))
	if len(sessionIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		SessionID uint
		Unread    int64
	}
	err := r.unreadScope(sessionIDs, readerID).WithContext(ctx).
		Select("session_id, COUNT(*) AS unread").
		Group("session_id").
		Scan(&rows).Error
	if err != nil {
		return nil, internalErr("failed to count unread messages", err)
	}
	for _, row := range rows {
		counts[row.SessionID] = row.Unread
	}
	return counts, nil
}

func toMessageEntity(m *models.ChatMessageModel) *entity.ChatMessage {
	return &entity.ChatMessage{
		ID:        m.ID,
		SessionID: m.SessionID,
		SenderID:  m.SenderID,
		Text:      m.Message,
		Type:      entity.MessageType(m.MessageType),
		IsRead:    m.IsRead,
		SentAt:    m.SentAt,
	}
}
