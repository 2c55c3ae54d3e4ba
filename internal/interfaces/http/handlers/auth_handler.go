package handlers

import (
	"net/http"
	"time"

	"github.com/eben2468/srcwebsite-sub012/internal/application/usecase"
	domainErrors "github.com/eben2468/srcwebsite-sub012/pkg/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler 登录/登出
type AuthHandler struct {
	accounts     *usecase.AccountService
	cookieName   string
	secureCookie bool
	logger       *zap.Logger
}

// NewAuthHandler 创建登录处理器
func NewAuthHandler(accounts *usecase.AccountService, cookieName string, secureCookie bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		accounts:     accounts,
		cookieName:   cookieName,
		secureCookie: secureCookie,
		logger:       logger.With(zap.String("component", "auth-api")),
	}
}

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Login 校验密码并下发会话 cookie
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		Fail(c, h.logger, domainErrors.NewInvalidInputError("email and password are required"))
		return
	}
	res, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}

	maxAge := int(time.Until(res.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, res.Token, maxAge, "/", "", h.secureCookie, true)
	OK(c, gin.H{
		"token":      res.Token,
		"expires_at": res.ExpiresAt,
		"user":       res.User,
	})
}

// Logout 清除会话 cookie
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, "", -1, "/", "", h.secureCookie, true)
	OK(c, nil)
}

// Me returns the authenticated caller.
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	p := PrincipalFrom(c)
	if p.IsAnonymous() {
		Fail(c, h.logger, domainErrors.NewUnauthorizedError("login required"))
		return
	}
	OK(c, gin.H{"user": gin.H{"id": p.ID(), "name": p.Name(), "role": p.Role()}})
}
