package handlers

import (
	"github.com/eben2468/srcwebsite-sub012/internal/application/usecase"
	"github.com/eben2468/srcwebsite-sub012/internal/interfaces/websocket"
	domainErrors "github.com/eben2468/srcwebsite-sub012/pkg/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WSHandler upgrades subscribers of one chat session.
type WSHandler struct {
	chat     *usecase.ChatService
	upgrader *websocket.Upgrader
	logger   *zap.Logger
}

// NewWSHandler 创建推送处理器
func NewWSHandler(chat *usecase.ChatService, upgrader *websocket.Upgrader, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		chat:     chat,
		upgrader: upgrader,
		logger:   logger.With(zap.String("component", "ws-api")),
	}
}

// Subscribe checks session access like get_session, then upgrades.
// GET /api/v1/chat/ws?session_id=
func (h *WSHandler) Subscribe(c *gin.Context) {
	p := PrincipalFrom(c)
	if p.IsAnonymous() {
		Fail(c, h.logger, domainErrors.NewUnauthorizedError("login required"))
		return
	}
	id, err := params{"session_id": c.Query("session_id")}.id("session_id")
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	if _, err := h.chat.GetSession(c.Request.Context(), p, id); err != nil {
		Fail(c, h.logger, err)
		return
	}
	if err := h.upgrader.Serve(c.Writer, c.Request, p.ID(), id); err != nil {
		// Upgrade 失败时已写出响应
		h.logger.Debug("WebSocket upgrade failed", zap.Uint("session_id", id), zap.Error(err))
	}
}
