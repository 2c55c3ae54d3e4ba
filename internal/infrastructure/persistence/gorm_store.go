package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/eben2468/srcwebsite-sub012/internal/domain/repository"
	domainErrors "github.com/eben2468/srcwebsite-sub012/pkg/errors"
)

// GormStore GORM 实现的仓储集合
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 创建 GORM 仓储集合
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Sessions() repository.SessionRepository {
	return &GormSessionRepository{db: s.db}
}

func (s *GormStore) Messages() repository.MessageRepository {
	return &GormMessageRepository{db: s.db}
}

func (s *GormStore) Participants() repository.ParticipantRepository {
	return &GormParticipantRepository{db: s.db}
}

func (s *GormStore) Agents() repository.AgentStatusRepository {
	return &GormAgentStatusRepository{db: s.db}
}

func (s *GormStore) QuickResponses() repository.QuickResponseRepository {
	return &GormQuickResponseRepository{db: s.db}
}

func (s *GormStore) Files() repository.FileRepository {
	return &GormFileRepository{db: s.db}
}

func (s *GormStore) Tags() repository.TagRepository {
	return &GormTagRepository{db: s.db}
}

func (s *GormStore) Users() repository.UserRepository {
	return &GormUserRepository{db: s.db}
}

// WithinTx 在单个数据库事务中执行 fn; fn 返回错误时回滚
func (s *GormStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// Ping 检查数据库连通性
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return domainErrors.NewInternalErrorWithCause("failed to get sql.DB", err)
	}
	return sqlDB.PingContext(ctx)
}

func internalErr(msg string, err error) error {
	return domainErrors.NewInternalErrorWithCause(msg, err)
}
