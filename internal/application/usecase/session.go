package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/eben2468/srcwebsite-sub012/internal/domain/entity"
	"github.com/eben2468/srcwebsite-sub012/internal/domain/repository"
	"github.com/eben2468/srcwebsite-sub012/internal/domain/valueobject"
	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/eventbus"
	domainErrors "github.com/eben2468/srcwebsite-sub012/pkg/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StartSessionInput start_session 参数
type StartSessionInput struct {
	Subject    string
	Priority   string
	Department string
}

// StartSessionResult carries the session and whether an existing open one
// was returned instead of creating a new row.
type StartSessionResult struct {
	Session *entity.ChatSession
	Reused  bool
}

// autoAssignment is what a successful auto/explicit assignment produced.
type autoAssignment struct {
	agentID   uint
	agentName string
	previous  uint
	message   *entity.ChatMessage
}

// StartSession opens a helpdesk session for p, or returns the one already
// waiting/active.
func (s *ChatService) StartSession(ctx context.Context, p valueobject.Principal, in StartSessionInput) (*StartSessionResult, error) {
	if p.IsAnonymous() {
		return nil, domainErrors.NewUnauthorizedError("login required")
	}
	if !p.Can(valueobject.CapStartChat) {
		return nil, domainErrors.NewForbiddenError("not allowed to start a chat")
	}

	existing, err := s.store.Sessions().FindOpenByRequester(ctx, p.ID())
	if err == nil {
		return s.reused(existing), nil
	}
	if !domainErrors.IsNotFound(err) {
		return nil, err
	}

	now := s.now()
	sess, err := entity.NewChatSession(p.ID(), uuid.NewString(), in.Subject, in.Priority, in.Department, now)
	if err != nil {
		return nil, domainErr(err)
	}

	var (
		welcome  *entity.ChatMessage
		assigned *autoAssignment
		reused   bool
	)
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		// 事务内复查, 缩小并发重复创建的窗口
		if open, err := tx.Sessions().FindOpenByRequester(ctx, p.ID()); err == nil {
			sess, reused = open, true
			return nil
		} else if !domainErrors.IsNotFound(err) {
			return err
		}

		if err := tx.Sessions().Create(ctx, sess); err != nil {
			return err
		}
		if err := tx.Participants().Upsert(ctx, entity.NewParticipant(sess.ID, p.ID(), entity.RoleCustomer, now)); err != nil {
			return err
		}
		welcome = entity.NewSystemMessage(sess.ID, s.opts.WelcomeMessage, now)
		if err := tx.Messages().Append(ctx, welcome); err != nil {
			return err
		}

		var err error
		assigned, err = s.autoAssign(ctx, tx, sess)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to start session", zap.Uint("requester_id", p.ID()), zap.Error(err))
		return nil, domainErr(err)
	}
	if reused {
		return s.reused(sess), nil
	}

	s.logger.Info("Chat session started",
		zap.Uint("session_id", sess.ID),
		zap.Uint("requester_id", p.ID()),
		zap.String("priority", string(sess.Priority)),
		zap.Bool("assigned", assigned != nil),
	)

	s.publish(ctx, eventbus.EventSessionStarted, eventbus.SessionStartedPayload{Session: *sess, Assigned: assigned != nil})
	s.publish(ctx, eventbus.EventMessageSent, eventbus.MessageSentPayload{Message: *welcome})
	if assigned != nil {
		s.publish(ctx, eventbus.EventSessionAssigned, eventbus.SessionAssignedPayload{
			Session:   *sess,
			AgentID:   assigned.agentID,
			AgentName: assigned.agentName,
			Auto:      true,
		})
		s.publish(ctx, eventbus.EventMessageSent, eventbus.MessageSentPayload{Message: *assigned.message})
	}
	return &StartSessionResult{Session: sess}, nil
}

func (s *ChatService) reused(sess *entity.ChatSession) *StartSessionResult {
	if s.metrics != nil {
		s.metrics.IncSessionReused()
	}
	return &StartSessionResult{Session: sess, Reused: true}
}

// autoAssign walks the ranked candidates and takes the first one whose slot
// reservation succeeds. A nil result leaves the session waiting.
func (s *ChatService) autoAssign(ctx context.Context, tx repository.Store, sess *entity.ChatSession) (*autoAssignment, error) {
	now := s.now()
	candidates, err := tx.Agents().ListAssignable(ctx)
	if err != nil {
		return nil, err
	}
	for _, agent := range s.assignment.Rank(candidates, now) {
		ok, err := tx.Agents().ReserveSlot(ctx, agent.AgentID)
		if err != nil {
			return nil, err
		}
		if !ok {
			// 其他请求抢先占满了该客服
			if s.metrics != nil {
				s.metrics.IncSlotConflict()
			}
			continue
		}
		return s.bindAgent(ctx, tx, sess, agent.AgentID)
	}
	return nil, nil
}

// bindAgent sets the assignee on sess after the slot has been reserved.
func (s *ChatService) bindAgent(ctx context.Context, tx repository.Store, sess *entity.ChatSession, agentID uint) (*autoAssignment, error) {
	now := s.now()
	previous, err := sess.Assign(agentID, now)
	if err != nil {
		return nil, err
	}
	if err := tx.Sessions().Update(ctx, sess); err != nil {
		return nil, err
	}
	if previous != 0 {
		if err := tx.Agents().ReleaseSlot(ctx, previous); err != nil {
			return nil, err
		}
		if err := tx.Participants().Deactivate(ctx, sess.ID, previous, now); err != nil {
			return nil, err
		}
	}
	if err := tx.Participants().Upsert(ctx, entity.NewParticipant(sess.ID, agentID, entity.RoleAgent, now)); err != nil {
		return nil, err
	}

	name := displayName(ctx, tx, agentID)
	text := fmt.Sprintf("%s has joined the chat.", name)
	if previous != 0 {
		text = fmt.Sprintf("This chat has been transferred to %s.", name)
	}
	msg := entity.NewSystemMessage(sess.ID, text, now)
	if err := tx.Messages().Append(ctx, msg); err != nil {
		return nil, err
	}
	return &autoAssignment{agentID: agentID, agentName: name, previous: previous, message: msg}, nil
}

// GetSession returns a session the caller may see. sessionID 0 means the
// caller's own open session; a nil session means there is none.
func (s *ChatService) GetSession(ctx context.Context, p valueobject.Principal, sessionID uint) (*entity.ChatSession, error) {
	if p.IsAnonymous() {
		return nil, domainErrors.NewUnauthorizedError("login required")
	}

	var sess *entity.ChatSession
	var err error
	if sessionID == 0 {
		sess, err = s.store.Sessions().FindOpenByRequester(ctx, p.ID())
		if domainErrors.IsNotFound(err) {
			return nil, nil
		}
	} else {
		sess, err = s.store.Sessions().FindByID(ctx, sessionID)
	}
	if err != nil {
		return nil, err
	}
	if _, err := checkAccess(ctx, s.store, sess, p); err != nil {
		return nil, err
	}

	tags, err := s.store.Tags().ListBySession(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	sess.Tags = tags
	return sess, nil
}

// EndSessionInput end_session 参数
type EndSessionInput struct {
	SessionID uint
	Rating    *int
	Feedback  string
}

// EndSession closes the session, frees the assignee's slot and detaches
// every participant.
func (s *ChatService) EndSession(ctx context.Context, p valueobject.Principal, in EndSessionInput) (*entity.ChatSession, error) {
	if in.SessionID == 0 {
		return nil, domainErrors.NewInvalidInputError("session_id is required")
	}

	var (
		sess   *entity.ChatSession
		closed *entity.ChatMessage
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		sess, err = tx.Sessions().FindByID(ctx, in.SessionID)
		if err != nil {
			return err
		}
		if _, err := checkAccess(ctx, tx, sess, p); err != nil {
			return err
		}

		now := s.now()
		if err := sess.End(in.Rating, in.Feedback, now); err != nil {
			return domainErr(err)
		}
		if err := tx.Sessions().Update(ctx, sess); err != nil {
			return err
		}
		if err := tx.Participants().DeactivateAll(ctx, sess.ID, now); err != nil {
			return err
		}
		if sess.AssignedAgentID != nil {
			if err := tx.Agents().ReleaseSlot(ctx, *sess.AssignedAgentID); err != nil {
				return err
			}
		}
		closed = entity.NewSystemMessage(sess.ID, s.opts.EndedMessage, now)
		return tx.Messages().Append(ctx, closed)
	})
	if err != nil {
		return nil, domainErr(err)
	}

	s.logger.Info("Chat session ended",
		zap.Uint("session_id", sess.ID),
		zap.Uint("ended_by", p.ID()),
	)
	s.publish(ctx, eventbus.EventMessageSent, eventbus.MessageSentPayload{Message: *closed})
	s.publish(ctx, eventbus.EventSessionEnded, eventbus.SessionEndedPayload{Session: *sess, EndedBy: p.ID()})
	return sess, nil
}

// SessionSummary is a dashboard row: the session plus the caller's unread
// count.
type SessionSummary struct {
	entity.ChatSession
	UnreadCount int64 `json:"unread_count"`
}

// ListAgentSessions lists sessions for the agent dashboard. waiting shows
// the whole queue, oldest first; other statuses show the caller's own
// sessions, or everyone's for supervisors.
func (s *ChatService) ListAgentSessions(ctx context.Context, p valueobject.Principal, status string) ([]SessionSummary, error) {
	if err := requireStaff(p); err != nil {
		return nil, err
	}

	filter := repository.SessionFilter{Limit: s.opts.DashboardLimit}
	switch st := entity.SessionStatus(strings.ToLower(strings.TrimSpace(status))); {
	case st == "":
		filter.Status = entity.SessionActive
	case st == "all":
	case st.Valid():
		filter.Status = st
	default:
		return nil, domainErrors.NewInvalidInputError("invalid status filter")
	}
	if filter.Status != entity.SessionWaiting && !p.Can(valueobject.CapSuperviseAll) {
		filter.AssignedAgentID = p.ID()
	}

	sessions, err := s.store.Sessions().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, len(sessions))
	for i, sess := range sessions {
		ids[i] = sess.ID
	}
	unread := map[uint]int64{}
	if len(ids) > 0 {
		if unread, err = s.store.Messages().UnreadBySession(ctx, ids, p.ID()); err != nil {
			return nil, err
		}
	}

	out := make([]SessionSummary, len(sessions))
	for i, sess := range sessions {
		out[i] = SessionSummary{ChatSession: *sess, UnreadCount: unread[sess.ID]}
	}
	return out, nil
}
