package usecase

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/eben2468/srcwebsite-sub012/internal/domain/entity"
	"github.com/eben2468/srcwebsite-sub012/internal/domain/repository"
	"github.com/eben2468/srcwebsite-sub012/internal/domain/service"
	"github.com/eben2468/srcwebsite-sub012/internal/domain/valueobject"
	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/eventbus"
	domainErrors "github.com/eben2468/srcwebsite-sub012/pkg/errors"
	"go.uber.org/zap"
)

// RateLimiter throttles message sends per user.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// MarkdownRenderer turns quick-response bodies into HTML.
type MarkdownRenderer interface {
	RenderHTML(source string) (string, error)
}

// FileStorage persists uploaded attachments and returns the public path.
// Remove takes a path returned by Save.
type FileStorage interface {
	Save(ctx context.Context, sessionID uint, name string, r io.Reader) (string, error)
	Remove(ctx context.Context, storedPath string) error
}

// Metrics is the subset of the monitor the chat service reports to
// directly. Everything else is derived from published events.
type Metrics interface {
	IncSessionReused()
	IncSlotConflict()
	IncRateLimited()
}

// Options 聊天行为参数
type Options struct {
	WelcomeMessage   string
	EndedMessage     string
	MessagePageLimit int
	DashboardLimit   int
	MaxUploadBytes   int64
	AllowedUploads   []string
}

// DefaultOptions returns the built-in chat behavior.
func DefaultOptions() Options {
	return Options{
		WelcomeMessage:   "Welcome to SRC Support! An agent will be with you shortly.",
		EndedMessage:     "This chat session has ended. Thank you for contacting SRC Support.",
		MessagePageLimit: 200,
		DashboardLimit:   100,
		MaxUploadBytes:   5 << 20,
	}
}

// Option configures a ChatService.
type Option func(*ChatService)

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *ChatService) { s.now = now }
}

// WithRateLimiter enables per-user send throttling.
func WithRateLimiter(l RateLimiter) Option {
	return func(s *ChatService) { s.limiter = l }
}

// WithMetrics reports reuse/conflict/limit counters.
func WithMetrics(m Metrics) Option {
	return func(s *ChatService) { s.metrics = m }
}

// WithRenderer enables HTML rendering of quick responses.
func WithRenderer(r MarkdownRenderer) Option {
	return func(s *ChatService) { s.renderer = r }
}

// WithFileStorage enables uploads.
func WithFileStorage(fs FileStorage) Option {
	return func(s *ChatService) { s.files = fs }
}

// ChatService 在线客服用例集合
//
// Multi-statement operations run inside store.WithinTx; events are
// published only after the transaction commits.
type ChatService struct {
	store      repository.Store
	assignment *service.AssignmentPolicy
	presence   *service.PresencePolicy
	bus        eventbus.Publisher
	opts       Options
	logger     *zap.Logger

	limiter  RateLimiter
	metrics  Metrics
	renderer MarkdownRenderer
	files    FileStorage
	now      func() time.Time
}

// NewChatService 创建聊天服务
func NewChatService(
	store repository.Store,
	assignment *service.AssignmentPolicy,
	presence *service.PresencePolicy,
	bus eventbus.Publisher,
	opts Options,
	logger *zap.Logger,
	options ...Option,
) *ChatService {
	def := DefaultOptions()
	if opts.WelcomeMessage == "" {
		opts.WelcomeMessage = def.WelcomeMessage
	}
	if opts.EndedMessage == "" {
		opts.EndedMessage = def.EndedMessage
	}
	if opts.MessagePageLimit <= 0 {
		opts.MessagePageLimit = def.MessagePageLimit
	}
	if opts.DashboardLimit <= 0 {
		opts.DashboardLimit = def.DashboardLimit
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = def.MaxUploadBytes
	}

	s := &ChatService{
		store:      store,
		assignment: assignment,
		presence:   presence,
		bus:        bus,
		opts:       opts,
		logger:     logger.With(zap.String("component", "chat")),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, o := range options {
		o(s)
	}
	return s
}

func (s *ChatService) publish(ctx context.Context, eventType string, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, eventbus.NewEvent(eventType, payload))
}

// access 会话访问级别
type access int

const (
	accessNone access = iota
	accessOwner
	accessParticipant
	accessElevated
)

// checkAccess resolves how p may touch sess: owner, active participant or
// elevated staff. Anyone else gets FORBIDDEN.
func checkAccess(ctx context.Context, st repository.Store, sess *entity.ChatSession, p valueobject.Principal) (access, error) {
	if p.IsAnonymous() {
		return accessNone, domainErrors.NewUnauthorizedError("login required")
	}
	if sess.RequesterID == p.ID() {
		return accessOwner, nil
	}
	part, err := st.Participants().Find(ctx, sess.ID, p.ID())
	switch {
	case err == nil && part.IsActive:
		return accessParticipant, nil
	case err != nil && !domainErrors.IsNotFound(err):
		return accessNone, err
	}
	if p.IsElevated() {
		return accessElevated, nil
	}
	return accessNone, domainErrors.NewForbiddenError("access denied to this chat session")
}

// requireStaff rejects callers that cannot act as agents.
func requireStaff(p valueobject.Principal) error {
	if p.IsAnonymous() {
		return domainErrors.NewUnauthorizedError("login required")
	}
	if !p.Can(valueobject.CapHandleChats) {
		return domainErrors.NewForbiddenError("staff access required")
	}
	return nil
}

// domainErr maps entity validation errors to INVALID_INPUT and passes
// everything else through.
func domainErr(err error) error {
	if err == nil {
		return nil
	}
	var appErr *domainErrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return domainErrors.NewInvalidInputErrorWithCause(err)
		}
	}
	return domainErrors.NewInternalErrorWithCause("chat operation failed", err)
}

var validationErrors = []error{
	entity.ErrInvalidRequester,
	entity.ErrInvalidPriority,
	entity.ErrInvalidSessionStatus,
	entity.ErrEmptySubject,
	entity.ErrSubjectTooLong,
	entity.ErrSessionEnded,
	entity.ErrInvalidTransition,
	entity.ErrInvalidAgent,
	entity.ErrInvalidRating,
	entity.ErrEmptyMessage,
	entity.ErrMessageTooLong,
	entity.ErrInvalidMessageType,
	entity.ErrInvalidAgentStatus,
	entity.ErrInvalidMaxChats,
	entity.ErrInvalidTag,
}

// displayName looks up a user's name for system messages.
func displayName(ctx context.Context, st repository.Store, userID uint) string {
	u, err := st.Users().FindByID(ctx, userID)
	if err != nil || u.Name == "" {
		return "An agent"
	}
	return u.Name
}
