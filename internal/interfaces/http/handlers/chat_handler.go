package handlers

import (
	"bufio"
	"net/http"
	"strings"

	"github.com/eben2468/srcwebsite-sub012/internal/application/usecase"
	"github.com/eben2468/srcwebsite-sub012/internal/domain/valueobject"
	domainErrors "github.com/eben2468/srcwebsite-sub012/pkg/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type actionFunc func(c *gin.Context, p valueobject.Principal, in params) (gin.H, error)

type action struct {
	method string
	run    actionFunc
}

// ChatHandler serves /api/v1/chat?action=<name>.
type ChatHandler struct {
	chat    *usecase.ChatService
	actions map[string]action
	logger  *zap.Logger
}

// NewChatHandler 创建聊天动作处理器
func NewChatHandler(chat *usecase.ChatService, logger *zap.Logger) *ChatHandler {
	h := &ChatHandler{
		chat:   chat,
		logger: logger.With(zap.String("component", "chat-api")),
	}
	h.actions = map[string]action{
		"start_session":       {http.MethodPost, h.startSession},
		"get_session":         {http.MethodGet, h.getSession},
		"send_message":        {http.MethodPost, h.sendMessage},
		"get_messages":        {http.MethodGet, h.getMessages},
		"end_session":         {http.MethodPost, h.endSession},
		"get_agent_sessions":  {http.MethodGet, h.getAgentSessions},
		"assign_session":      {http.MethodPost, h.assignSession},
		"update_agent_status": {http.MethodPost, h.updateAgentStatus},
		"get_quick_responses": {http.MethodGet, h.getQuickResponses},
		"mark_messages_read":  {http.MethodPost, h.markMessagesRead},
		"agent_heartbeat":     {http.MethodPost, h.agentHeartbeat},
		"get_agents":          {http.MethodGet, h.getAgents},
		"get_unread_count":    {http.MethodGet, h.getUnreadCount},
		"add_session_tag":     {http.MethodPost, h.addSessionTag},
		"upload_file":         {http.MethodPost, h.uploadFile},
	}
	return h
}

// Dispatch 按 action 分发
// GET|POST /api/v1/chat?action=
func (h *ChatHandler) Dispatch(c *gin.Context) {
	name := c.Query("action")
	a, ok := h.actions[name]
	if !ok {
		Fail(c, h.logger, domainErrors.NewInvalidInputError("unknown action: "+name))
		return
	}
	if c.Request.Method != a.method {
		methodNotAllowed(c, a.method)
		return
	}
	p := PrincipalFrom(c)
	if p.IsAnonymous() {
		Fail(c, h.logger, domainErrors.NewUnauthorizedError("login required"))
		return
	}
	in, err := readParams(c)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	body, err := a.run(c, p, in)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	OK(c, body)
}

func (h *ChatHandler) startSession(c *gin.Context, p valueobject.Principal, in params) (gin.H, error) {
	res, err := h.chat.StartSession(c.Request.Context(), p, usecase.StartSessionInput{
		Subject:    in.str("subject"),
		Priority:   in.str("priority"),
		Department: in.str("department"),
	})
	if err != nil {
		return nil, err
	}
	return gin.H{
		"session_id": res.Session.ID,
		"token":      res.Session.Token,
		"reused":     res.Reused,
		"session":    res.Session,
	}, nil
}

func (h *ChatHandler) getSession(c *gin.Context, p valueobject.Principal, in params) (gin.H, error) {
	id, err := in.optID("session_id")
	if err != nil {
		return nil, err
	}
	sess, err := h.chat.GetSession(c.Request.Context(), p, id)
	if err != nil {
		return nil, err
	}
	return gin.H{"session": sess}, nil
}

func (h *ChatHandler) sendMessage(c *gin.Context, p valueobject.Principal, in params) (gin.H, error) {
	id, err := in.id("session_id")
	if err != nil {
		return nil, err
	}
	msg, err := h.chat.SendMessage(c.Request.Context(), p, id, in["message"], in.str("type"))
	if err != nil {
		return nil, err
	}
	return gin.H{"message_id": msg.ID, "message": msg}, nil
}

func (h *ChatHandler) getMessages(c *gin.Context, p valueobject.Principal, in params) (gin.H, error) {
	id, err := in.id("session_id")
	if err != nil {
		return nil, err
	}
	after, err := in.optID("last_message_id")
	if err != nil {
		return nil, err
	}
	msgs, err := h.chat.GetMessages(c.Request.Context(), p, id, after)
	if err != nil {
		return nil, err
	}
	return gin.H{"messages": msgs}, nil
}

func (h *ChatHandler) endSession(c *gin.Context, p valueobject.Principal, in params) (gin.H, error) {
	id, err := in.id("session_id")
	if err != nil {
		return nil, err
	}
	rating, err := in.optInt("rating")
	if err != nil {
		return nil, err
	}
	sess, err := h.chat.EndSession(c.Request.Context(), p, usecase.EndSessionInput{
		SessionID: id,
		Rating:    rating,
		Feedback:  in.str("feedback"),
	})
	if err != nil {
		return nil, err
	}
	return gin.H{"session": sess}, nil
}

func (h *ChatHandler) getAgentSessions(c *gin.Context, p valueobject.Principal, in params) (gin.H, error) {
	sessions, err := h.chat.ListAgentSessions(c.Request.Context(), p, in.str("status"))
	if err != nil {
		return nil, err
	}
	return gin.H{"sessions": sessions}, nil
}

func (h *ChatHandler) assignSession(c *gin.Context, p valueobject.Principal, in params) (gin.H, error) {
	id, err := in.id("session_id")
	if err != nil {
		return nil, err
	}
	agentID, err := in.optID("agent_id")
	if err != nil {
		return nil, err
	}
	sess, err := h.chat.AssignSession(c.Request.Context(), p, id, agentID)
	if err != nil {
		return nil, err
	}
	return gin.H{"session": sess}, nil
}

func (h *ChatHandler) updateAgentStatus(c *gin.Context, p valueobject.Principal, in params) (gin.H, error) {
	maxChats, err := in.optInt("max_chats")
	if err != nil {
		return nil, err
	}
	upd := usecase.UpdateStatusInput{Status: in.str("status"), AutoAssign: in.boolean("auto_assign")}
	if maxChats != nil {
		upd.MaxChats = *maxChats
	}
	st, err := h.chat.UpdateStatus(c.Request.Context(), p, upd)
	if err != nil {
		return nil, err
	}
	return gin.H{"status": st}, nil
}

func (h *ChatHandler) getQuickResponses(c *gin.Context, p valueobject.Principal, in params) (gin.H, error) {
	items, err := h.chat.GetQuickResponses(c.Request.Context(), p, in.str("category"))
	if err != nil {
		return nil, err
	}
	return gin.H{"responses": items}, nil
}

func (h *ChatHandler) markMessagesRead(c *gin.Context, p valueobject.Principal, in params) (gin.H, error) {
	id, err := in.id("session_id")
	if err != nil {
		return nil, err
	}
	n, err := h.chat.MarkRead(c.Request.Context(), p, id)
	if err != nil {
		return nil, err
	}
	return gin.H{"marked": n}, nil
}

func (h *ChatHandler) agentHeartbeat(c *gin.Context, p valueobject.Principal, _ params) (gin.H, error) {
	if err := h.chat.Heartbeat(c.Request.Context(), p); err != nil {
		return nil, err
	}
	return gin.H{}, nil
}

func (h *ChatHandler) getAgents(c *gin.Context, p valueobject.Principal, _ params) (gin.H, error) {
	agents, err := h.chat.ListAgents(c.Request.Context(), p)
	if err != nil {
		return nil, err
	}
	return gin.H{"agents": agents}, nil
}

func (h *ChatHandler) getUnreadCount(c *gin.Context, p valueobject.Principal, _ params) (gin.H, error) {
	n, err := h.chat.UnreadCount(c.Request.Context(), p)
	if err != nil {
		return nil, err
	}
	return gin.H{"unread_count": n}, nil
}

func (h *ChatHandler) addSessionTag(c *gin.Context, p valueobject.Principal, in params) (gin.H, error) {
	id, err := in.id("session_id")
	if err != nil {
		return nil, err
	}
	tags, err := h.chat.AddTag(c.Request.Context(), p, id, in.str("tag"))
	if err != nil {
		return nil, err
	}
	return gin.H{"tags": tags}, nil
}

func (h *ChatHandler) uploadFile(c *gin.Context, p valueobject.Principal, in params) (gin.H, error) {
	if !strings.HasPrefix(c.ContentType(), gin.MIMEMultipartPOSTForm) {
		return nil, domainErrors.NewInvalidInputError("upload_file expects multipart/form-data")
	}
	id, err := in.id("session_id")
	if err != nil {
		return nil, err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, domainErrors.NewInvalidInputError("file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to open upload", err)
	}
	defer f.Close()

	// 以内容嗅探为准, 不信任客户端声明的类型
	br := bufio.NewReaderSize(f, 512)
	head, _ := br.Peek(512)
	mimeType := http.DetectContentType(head)
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}

	msg, file, err := h.chat.UploadFile(c.Request.Context(), p, id, usecase.Upload{
		Name:     fh.Filename,
		MimeType: mimeType,
		Size:     fh.Size,
		Body:     br,
	})
	if err != nil {
		return nil, err
	}
	return gin.H{"message_id": msg.ID, "message": msg, "file": file}, nil
}
