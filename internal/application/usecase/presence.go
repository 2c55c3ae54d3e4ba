package usecase

import (
	"context"

	"github.com/eben2468/srcwebsite-sub012/internal/domain/entity"
	"github.com/eben2468/srcwebsite-sub012/internal/domain/valueobject"
	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/eventbus"
	"go.uber.org/zap"
)

// UpdateStatusInput update_agent_status 参数
type UpdateStatusInput struct {
	Status     string
	MaxChats   int
	AutoAssign bool
}

// UpdateStatus publishes the caller's presence. The current chat count is
// left alone; last_seen is always refreshed.
func (s *ChatService) UpdateStatus(ctx context.Context, p valueobject.Principal, in UpdateStatusInput) (*entity.AgentStatus, error) {
	if err := requireStaff(p); err != nil {
		return nil, err
	}
	status, err := entity.ParsePresence(in.Status)
	if err != nil {
		return nil, domainErr(err)
	}
	maxChats, err := entity.ValidateMaxChats(in.MaxChats)
	if err != nil {
		return nil, domainErr(err)
	}

	err = s.store.Agents().Upsert(ctx, &entity.AgentStatus{
		AgentID:            p.ID(),
		Status:             status,
		MaxConcurrentChats: maxChats,
		AutoAssign:         in.AutoAssign,
		LastSeen:           s.now(),
	})
	if err != nil {
		return nil, err
	}
	stored, err := s.store.Agents().Find(ctx, p.ID())
	if err != nil {
		return nil, err
	}

	s.logger.Info("Agent status updated",
		zap.Uint("agent_id", p.ID()),
		zap.String("status", string(stored.Status)),
		zap.Int("max_chats", stored.MaxConcurrentChats),
		zap.Bool("auto_assign", stored.AutoAssign),
	)
	s.publish(ctx, eventbus.EventAgentStatusChanged, eventbus.AgentStatusPayload{Status: *stored})
	return stored, nil
}

// Heartbeat refreshes last_seen. Agents that never published a status get
// NOT_FOUND.
func (s *ChatService) Heartbeat(ctx context.Context, p valueobject.Principal) error {
	if err := requireStaff(p); err != nil {
		return err
	}
	return s.store.Agents().TouchLastSeen(ctx, p.ID(), s.now())
}

// AgentView 客服在线视图
type AgentView struct {
	entity.AgentStatus
	Name            string          `json:"name"`
	EffectiveStatus entity.Presence `json:"effective_status"`
}

// ListAgents reports every agent with its effective presence: offline once
// the heartbeat is stale, the stored status otherwise.
func (s *ChatService) ListAgents(ctx context.Context, p valueobject.Principal) ([]AgentView, error) {
	if err := requireStaff(p); err != nil {
		return nil, err
	}
	agents, err := s.store.Agents().List(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]AgentView, len(agents))
	for i, a := range agents {
		out[i] = AgentView{
			AgentStatus:     *a,
			Name:            displayName(ctx, s.store, a.AgentID),
			EffectiveStatus: s.presence.Effective(a, now),
		}
	}
	return out, nil
}

// QuickResponseView is a canned reply with its rendered HTML.
type QuickResponseView struct {
	entity.QuickResponse
	HTML string `json:"html,omitempty"`
}

// GetQuickResponses lists active canned replies, optionally by category.
func (s *ChatService) GetQuickResponses(ctx context.Context, p valueobject.Principal, category string) ([]QuickResponseView, error) {
	if err := requireStaff(p); err != nil {
		return nil, err
	}
	items, err := s.store.QuickResponses().ListActive(ctx, category)
	if err != nil {
		return nil, err
	}
	out := make([]QuickResponseView, len(items))
	for i, qr := range items {
		out[i] = QuickResponseView{QuickResponse: *qr}
		if s.renderer == nil {
			continue
		}
		html, err := s.renderer.RenderHTML(qr.Body)
		if err != nil {
			s.logger.Warn("Failed to render quick response", zap.Uint("id", qr.ID), zap.Error(err))
			continue
		}
		out[i].HTML = html
	}
	return out, nil
}
