package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/eben2468/srcwebsite-sub012/internal/domain/entity"
	"github.com/eben2468/srcwebsite-sub012/internal/domain/repository"
	"github.com/eben2468/srcwebsite-sub012/internal/domain/valueobject"
	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/eventbus"
	domainErrors "github.com/eben2468/srcwebsite-sub012/pkg/errors"
	"go.uber.org/zap"
)

// SendMessage appends a user message. Staff without a participant row are
// attached silently before the message is written. Sends are not
// deduplicated.
func (s *ChatService) SendMessage(ctx context.Context, p valueobject.Principal, sessionID uint, text, msgType string) (*entity.ChatMessage, error) {
	if p.IsAnonymous() {
		return nil, domainErrors.NewUnauthorizedError("login required")
	}
	if sessionID == 0 {
		return nil, domainErrors.NewInvalidInputError("session_id is required")
	}
	mt, err := entity.ParseMessageType(msgType)
	if err != nil {
		return nil, domainErr(err)
	}
	if err := s.throttle(ctx, p); err != nil {
		return nil, err
	}

	var msg *entity.ChatMessage
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		sess, err := s.openForWrite(ctx, tx, sessionID, p)
		if err != nil {
			return err
		}
		now := s.now()
		msg, err = entity.NewUserMessage(sess.ID, p.ID(), text, mt, now)
		if err != nil {
			return domainErr(err)
		}
		if err := tx.Messages().Append(ctx, msg); err != nil {
			return err
		}
		return tx.Sessions().TouchActivity(ctx, sess.ID, now)
	})
	if err != nil {
		return nil, domainErr(err)
	}

	s.publish(ctx, eventbus.EventMessageSent, eventbus.MessageSentPayload{Message: *msg})
	return msg, nil
}

// openForWrite loads an open session the caller may post to, adding an
// elevated caller as a participant on first write.
func (s *ChatService) openForWrite(ctx context.Context, tx repository.Store, sessionID uint, p valueobject.Principal) (*entity.ChatSession, error) {
	sess, err := tx.Sessions().FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	level, err := checkAccess(ctx, tx, sess, p)
	if err != nil {
		return nil, err
	}
	if !sess.Status.Open() {
		return nil, domainErrors.NewInvalidInputErrorWithCause(entity.ErrSessionEnded)
	}
	if level == accessElevated {
		role := entity.RoleAgent
		if p.Can(valueobject.CapSuperviseAll) {
			role = entity.RoleSupervisor
		}
		if err := tx.Participants().Upsert(ctx, entity.NewParticipant(sess.ID, p.ID(), role, s.now())); err != nil {
			return nil, err
		}
		s.logger.Debug("Elevated user joined session",
			zap.Uint("session_id", sess.ID),
			zap.Uint("user_id", p.ID()),
			zap.String("role", string(role)),
		)
	}
	return sess, nil
}

// throttle applies the per-user send limit. Limiter failures let the send
// through.
func (s *ChatService) throttle(ctx context.Context, p valueobject.Principal) error {
	if s.limiter == nil {
		return nil
	}
	ok, err := s.limiter.Allow(ctx, fmt.Sprintf("send:%d", p.ID()))
	if err != nil {
		s.logger.Warn("Rate limiter unavailable", zap.Error(err))
		return nil
	}
	if !ok {
		if s.metrics != nil {
			s.metrics.IncRateLimited()
		}
		return domainErrors.NewRateLimitedError("too many messages, slow down")
	}
	return nil
}

// GetMessages returns messages after the afterID watermark, oldest first.
func (s *ChatService) GetMessages(ctx context.Context, p valueobject.Principal, sessionID, afterID uint) ([]*entity.ChatMessage, error) {
	if sessionID == 0 {
		return nil, domainErrors.NewInvalidInputError("session_id is required")
	}
	sess, err := s.store.Sessions().FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := checkAccess(ctx, s.store, sess, p); err != nil {
		return nil, err
	}
	return s.store.Messages().ListAfter(ctx, sess.ID, afterID, s.opts.MessagePageLimit)
}

// MarkRead flags every message in the session not written by the caller
// as read and returns how many changed.
func (s *ChatService) MarkRead(ctx context.Context, p valueobject.Principal, sessionID uint) (int64, error) {
	if sessionID == 0 {
		return 0, domainErrors.NewInvalidInputError("session_id is required")
	}
	sess, err := s.store.Sessions().FindByID(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if _, err := checkAccess(ctx, s.store, sess, p); err != nil {
		return 0, err
	}
	n, err := s.store.Messages().MarkReadExcept(ctx, sess.ID, p.ID())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.publish(ctx, eventbus.EventMessagesRead, eventbus.MessagesReadPayload{SessionID: sess.ID, ReaderID: p.ID(), Count: n})
	}
	return n, nil
}

// UnreadCount totals unread messages across the caller's open sessions,
// excluding their own and system messages.
func (s *ChatService) UnreadCount(ctx context.Context, p valueobject.Principal) (int64, error) {
	if p.IsAnonymous() {
		return 0, domainErrors.NewUnauthorizedError("login required")
	}
	ids, err := s.store.Participants().OpenSessionIDs(ctx, p.ID())
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return s.store.Messages().CountUnread(ctx, ids, p.ID())
}

// AddTag labels a session for reporting. Staff only.
func (s *ChatService) AddTag(ctx context.Context, p valueobject.Principal, sessionID uint, tag string) ([]string, error) {
	if err := requireStaff(p); err != nil {
		return nil, err
	}
	normalized, err := entity.NormalizeTag(tag)
	if err != nil {
		return nil, domainErr(err)
	}
	sess, err := s.store.Sessions().FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	err = s.store.Tags().Add(ctx, &entity.SessionTag{
		SessionID: sess.ID,
		Tag:       normalized,
		AddedBy:   p.ID(),
		AddedAt:   s.now(),
	})
	if err != nil {
		return nil, err
	}
	return s.store.Tags().ListBySession(ctx, sess.ID)
}

// Upload is a file received from the client.
type Upload struct {
	Name     string
	MimeType string
	Size     int64
	Body     io.Reader
}

// UploadFile stores an attachment and posts it as a file or image message.
func (s *ChatService) UploadFile(ctx context.Context, p valueobject.Principal, sessionID uint, up Upload) (*entity.ChatMessage, *entity.ChatFile, error) {
	if s.files == nil {
		return nil, nil, domainErrors.NewServiceUnavailableError("file uploads are disabled")
	}
	if p.IsAnonymous() {
		return nil, nil, domainErrors.NewUnauthorizedError("login required")
	}
	if sessionID == 0 {
		return nil, nil, domainErrors.NewInvalidInputError("session_id is required")
	}
	name := filepath.Base(strings.TrimSpace(up.Name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, nil, domainErrors.NewInvalidInputError("file name is required")
	}
	if up.Size <= 0 || up.Size > s.opts.MaxUploadBytes {
		return nil, nil, domainErrors.NewInvalidInputError(fmt.Sprintf("file must be between 1 byte and %d bytes", s.opts.MaxUploadBytes))
	}
	if !s.uploadAllowed(up.MimeType) {
		return nil, nil, domainErrors.NewInvalidInputError("file type not allowed")
	}
	if err := s.throttle(ctx, p); err != nil {
		return nil, nil, err
	}

	// 先做访问检查, 避免为无权用户落盘
	sess, err := s.store.Sessions().FindByID(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := checkAccess(ctx, s.store, sess, p); err != nil {
		return nil, nil, err
	}
	if !sess.Status.Open() {
		return nil, nil, domainErrors.NewInvalidInputErrorWithCause(entity.ErrSessionEnded)
	}

	stored, err := s.files.Save(ctx, sess.ID, name, up.Body)
	if err != nil {
		return nil, nil, domainErrors.NewInternalErrorWithCause("failed to store upload", err)
	}

	var (
		msg  *entity.ChatMessage
		file *entity.ChatFile
	)
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		sess, err := s.openForWrite(ctx, tx, sessionID, p)
		if err != nil {
			return err
		}
		now := s.now()
		msg, err = entity.NewUserMessage(sess.ID, p.ID(), name, entity.MessageTypeFor(up.MimeType), now)
		if err != nil {
			return domainErr(err)
		}
		if err := tx.Messages().Append(ctx, msg); err != nil {
			return err
		}
		file = &entity.ChatFile{
			SessionID:    sess.ID,
			MessageID:    msg.ID,
			UploaderID:   p.ID(),
			OriginalName: name,
			StoredPath:   stored,
			MimeType:     up.MimeType,
			SizeBytes:    up.Size,
			UploadedAt:   now,
		}
		if err := tx.Files().Create(ctx, file); err != nil {
			return err
		}
		return tx.Sessions().TouchActivity(ctx, sess.ID, now)
	})
	if err != nil {
		// 没有 chat_files 记录引用, 删除已落盘的文件
		if rerr := s.files.Remove(context.WithoutCancel(ctx), stored); rerr != nil {
			s.logger.Warn("Failed to remove orphaned upload",
				zap.String("path", stored),
				zap.Error(rerr),
			)
		}
		return nil, nil, domainErr(err)
	}

	s.logger.Info("File uploaded",
		zap.Uint("session_id", sessionID),
		zap.String("name", name),
		zap.Int64("size", up.Size),
	)
	s.publish(ctx, eventbus.EventMessageSent, eventbus.MessageSentPayload{Message: *msg})
	return msg, file, nil
}

func (s *ChatService) uploadAllowed(mimeType string) bool {
	if len(s.opts.AllowedUploads) == 0 {
		return true
	}
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	for _, allowed := range s.opts.AllowedUploads {
		allowed = strings.ToLower(allowed)
		if allowed == mimeType {
			return true
		}
		if strings.HasSuffix(allowed, "/*") && strings.HasPrefix(mimeType, strings.TrimSuffix(allowed, "*")) {
			return true
		}
	}
	return false
}
