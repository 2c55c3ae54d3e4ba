package persistence

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/eben2468/srcwebsite-sub012/internal/domain/entity"
	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/persistence/models"
	domainErrors "github.com/eben2468/srcwebsite-sub012/pkg/errors"
)

// GormQuickResponseRepository 快捷回复仓储
type GormQuickResponseRepository struct {
	db *gorm.DB
}

// ListActive 列出启用的快捷回复
func (r *GormQuickResponseRepository) ListActive(ctx context.Context, category string) ([]*entity.QuickResponse, error) {
	q := r.db.WithContext(ctx).Where("is_active = ?", true)
	if category != "" {
		q = q.Where("category = ?", category)
	}
	var list []models.QuickResponseModel
	if err := q.Order("category asc").Order("sort_order asc").Order("id asc").Find(&list).Error; err != nil {
		return nil, internalErr("failed to list quick responses", err)
	}
	out := make([]*entity.QuickResponse, 0, len(list))
	for _, m := range list {
		out = append(out, &entity.QuickResponse{
			ID:        m.ID,
			Category:  m.Category,
			Title:     m.Title,
			Body:      m.Body,
			SortOrder: m.SortOrder,
			IsActive:  m.IsActive,
		})
	}
	return out, nil
}

// ReplaceAll 清空后写入目录内容; 调用方负责事务
func (r *GormQuickResponseRepository) ReplaceAll(ctx context.Context, responses []*entity.QuickResponse) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("1 = 1").Delete(&models.QuickResponseModel{}).Error; err != nil {
		return internalErr("failed to clear quick responses", err)
	}
	if len(responses) == 0 {
		return nil
	}
	rows := make([]models.QuickResponseModel, 0, len(responses))
	for _, q := range responses {
		rows = append(rows, models.QuickResponseModel{
			Category:  q.Category,
			Title:     q.Title,
			Body:      q.Body,
			SortOrder: q.SortOrder,
			IsActive:  q.IsActive,
		})
	}
	if err := db.Create(&rows).Error; err != nil {
		return internalErr("failed to insert quick responses", err)
	}
	for i := range rows {
		responses[i].ID = rows[i].ID
	}
	return nil
}

// GormFileRepository 附件仓储
type GormFileRepository struct {
	db *gorm.DB
}

// Create 保存附件记录
func (r *GormFileRepository) Create(ctx context.Context, f *entity.ChatFile) error {
	model := &models.ChatFileModel{
		SessionID:    f.SessionID,
		MessageID:    f.MessageID,
		UploaderID:   f.UploaderID,
		OriginalName: f.OriginalName,
		StoredPath:   f.StoredPath,
		MimeType:     f.MimeType,
		SizeBytes:    f.SizeBytes,
		UploadedAt:   f.UploadedAt,
	}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(model).Error; err != nil {
		return internalErr("failed to save file", err)
	}
	f.ID = model.ID
	return nil
}

// ListBySession 列出会话附件
func (r *GormFileRepository) ListBySession(ctx context.Context, sessionID uint) ([]*entity.ChatFile, error) {
	var list []models.ChatFileModel
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("id asc").Find(&list).Error; err != nil {
		return nil, internalErr("failed to list files", err)
	}
	out := make([]*entity.ChatFile, 0, len(list))
	for _, m := range list {
		out = append(out, &entity.ChatFile{
			ID:           m.ID,
			SessionID:    m.SessionID,
			MessageID:    m.MessageID,
			UploaderID:   m.UploaderID,
			OriginalName: m.OriginalName,
			StoredPath:   m.StoredPath,
			MimeType:     m.MimeType,
			SizeBytes:    m.SizeBytes,
			UploadedAt:   m.UploadedAt,
		})
	}
	return out, nil
}

// GormTagRepository 会话标签仓储
type GormTagRepository struct {
	db *gorm.DB
}

// Add 添加标签, 重复时忽略
func (r *GormTagRepository) Add(ctx context.Context, t *entity.SessionTag) error {
	model := &models.SessionTagModel{
		SessionID: t.SessionID,
		Tag:       t.Tag,
		AddedBy:   t.AddedBy,
		AddedAt:   t.AddedAt,
	}
	err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(model).Error
	if err != nil {
		return internalErr("failed to add tag", err)
	}
	return nil
}

// ListBySession 列出会话标签
func (r *GormTagRepository) ListBySession(ctx context.Context, sessionID uint) ([]string, error) {
	var tags []string
	err := r.db.WithContext(ctx).
		Model(&models.SessionTagModel{}).
		Where("session_id = ?", sessionID).
		Order("tag asc").
		Pluck("tag", &tags).Error
	if err != nil {
		return nil, internalErr("failed to list tags", err)
	}
	return tags, nil
}

// GormUserRepository 用户仓储
type GormUserRepository struct {
	db *gorm.DB
}

// FindByID 根据ID查找用户
func (r *GormUserRepository) FindByID(ctx context.Context, id uint) (*entity.User, error) {
	var model models.UserModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, userLookupErr(err)
	}
	return toUserEntity(&model), nil
}

// FindByEmail 根据邮箱查找用户
func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	var model models.UserModel
	email = strings.ToLower(strings.TrimSpace(email))
	if err := r.db.WithContext(ctx).First(&model, "email = ?", email).Error; err != nil {
		return nil, userLookupErr(err)
	}
	return toUserEntity(&model), nil
}

// Create 创建用户
func (r *GormUserRepository) Create(ctx context.Context, u *entity.User) error {
	model := &models.UserModel{
		Name:         u.Name,
		Email:        strings.ToLower(strings.TrimSpace(u.Email)),
		Role:         u.Role,
		PasswordHash: u.PasswordHash,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domainErrors.NewAlreadyExistsError("email already registered")
		}
		return internalErr("failed to create user", err)
	}
	u.ID = model.ID
	u.Email = model.Email
	u.CreatedAt = model.CreatedAt
	return nil
}

func userLookupErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domainErrors.NewNotFoundError("user not found")
	}
	return internalErr("failed to find user", err)
}

func toUserEntity(m *models.UserModel) *entity.User {
	return &entity.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		Role:         m.Role,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
	}
}
