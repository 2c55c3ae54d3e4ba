package usecase

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/eben2468/srcwebsite-sub012/internal/domain/entity"
	"github.com/eben2468/srcwebsite-sub012/internal/domain/repository"
	"github.com/eben2468/srcwebsite-sub012/internal/domain/valueobject"
	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/auth"
	domainErrors "github.com/eben2468/srcwebsite-sub012/pkg/errors"
	"go.uber.org/zap"
)

// AccountService handles login and local account bootstrap. Full user
// management lives outside the chat service.
type AccountService struct {
	users  repository.UserRepository
	tokens *auth.TokenService
	logger *zap.Logger
}

// NewAccountService 创建账号服务
func NewAccountService(users repository.UserRepository, tokens *auth.TokenService, logger *zap.Logger) *AccountService {
	return &AccountService{
		users:  users,
		tokens: tokens,
		logger: logger.With(zap.String("component", "account")),
	}
}

// LoginResult 登录结果
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *entity.User `json:"user"`
}

// Login checks email/password and mints a session token.
func (s *AccountService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, domainErrors.NewInvalidInputError("email and password are required")
	}
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if domainErrors.IsNotFound(err) {
			return nil, domainErrors.NewUnauthorizedError("invalid email or password")
		}
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		s.logger.Info("Login rejected", zap.Uint("user_id", u.ID))
		return nil, domainErrors.NewUnauthorizedError("invalid email or password")
	}
	token, exp, err := s.tokens.Issue(u.ID, u.Name, u.Role)
	if err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to issue token", err)
	}
	return &LoginResult{Token: token, ExpiresAt: exp, User: u}, nil
}

// Authenticate resolves a bearer/cookie token to a principal.
func (s *AccountService) Authenticate(token string) (valueobject.Principal, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return valueobject.Principal{}, domainErrors.NewUnauthorizedError("invalid or expired session")
	}
	return claims.Principal(), nil
}

// CreateUser registers a local account with a bcrypt password hash.
func (s *AccountService) CreateUser(ctx context.Context, name, email, password, role string) (*entity.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domainErrors.NewInvalidInputError("name is required")
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return nil, domainErrors.NewInvalidInputError("invalid email address")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			return nil, domainErrors.NewInvalidInputErrorWithCause(err)
		}
		return nil, domainErrors.NewInternalErrorWithCause("failed to hash password", err)
	}
	u := &entity.User{
		Name:         name,
		Email:        addr.Address,
		Role:         string(valueobject.ParseRole(role)),
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("User created", zap.Uint("user_id", u.ID), zap.String("role", u.Role))
	return u, nil
}

// IssueToken mints a token for an existing user without a password check.
// Used by the CLI for local testing.
func (s *AccountService) IssueToken(ctx context.Context, userID uint) (string, time.Time, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", time.Time{}, err
	}
	return s.tokens.Issue(u.ID, u.Name, u.Role)
}
