package repository

import (
	"context"

	"github.com/eben2468/srcwebsite-sub012/internal/domain/entity"
)

// MessageRepository 消息仓储接口（只追加）
type MessageRepository interface {
	// Append 追加消息并回填 ID
	Append(ctx context.Context, message *entity.ChatMessage) error

	// ListAfter 返回 id > afterID 的消息, 按发送时间升序
	ListAfter(ctx context.Context, sessionID, afterID uint, limit int) ([]*entity.ChatMessage, error)

	// MarkReadExcept 将会话中非 readerID 发送的消息标记为已读, 返回更新条数
	MarkReadExcept(ctx context.Context, sessionID, readerID uint) (int64, error)

	// CountUnread 统计会话中 readerID 未读的非系统消息
	CountUnread(ctx context.Context, sessionIDs []uint, readerID uint) (int64, error)

	// UnreadBySession 与 CountUnread 相同的口径, 按会话分组
	UnreadBySession(ctx context.Context, sessionIDs []uint, readerID uint) (map[uint]int64, error)
}
