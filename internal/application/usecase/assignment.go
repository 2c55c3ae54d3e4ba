package usecase

import (
	"context"

	"github.com/eben2468/srcwebsite-sub012/internal/domain/entity"
	"github.com/eben2468/srcwebsite-sub012/internal/domain/repository"
	"github.com/eben2468/srcwebsite-sub012/internal/domain/valueobject"
	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/eventbus"
	domainErrors "github.com/eben2468/srcwebsite-sub012/pkg/errors"
	"go.uber.org/zap"
)

// AssignSession binds a session to agentID (the caller when 0). The
// target's slot is reserved with a conditional update, so a full agent
// fails with CAPACITY_EXCEEDED instead of overshooting.
func (s *ChatService) AssignSession(ctx context.Context, p valueobject.Principal, sessionID, agentID uint) (*entity.ChatSession, error) {
	if err := requireStaff(p); err != nil {
		return nil, err
	}
	if sessionID == 0 {
		return nil, domainErrors.NewInvalidInputError("session_id is required")
	}
	if agentID == 0 {
		agentID = p.ID()
	}
	if agentID != p.ID() && !p.Can(valueobject.CapAssignOthers) {
		return nil, domainErrors.NewForbiddenError("not allowed to assign other agents")
	}

	var (
		sess     *entity.ChatSession
		assigned *autoAssignment
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		sess, err = tx.Sessions().FindByID(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess.Status == entity.SessionEnded {
			return domainErrors.NewInvalidInputErrorWithCause(entity.ErrSessionEnded)
		}
		if _, err := tx.Agents().Find(ctx, agentID); err != nil {
			return err
		}
		if sess.AssignedTo(agentID) {
			return nil
		}

		ok, err := tx.Agents().ReserveSlot(ctx, agentID)
		if err != nil {
			return err
		}
		if !ok {
			return domainErrors.NewCapacityExceededError("agent has reached maximum concurrent chats")
		}
		assigned, err = s.bindAgent(ctx, tx, sess, agentID)
		return err
	})
	if err != nil {
		return nil, domainErr(err)
	}
	if assigned == nil {
		return sess, nil
	}

	s.logger.Info("Chat session assigned",
		zap.Uint("session_id", sess.ID),
		zap.Uint("agent_id", agentID),
		zap.Uint("previous_agent_id", assigned.previous),
		zap.Uint("assigned_by", p.ID()),
	)
	s.publish(ctx, eventbus.EventSessionAssigned, eventbus.SessionAssignedPayload{
		Session:         *sess,
		AgentID:         agentID,
		AgentName:       assigned.agentName,
		PreviousAgentID: assigned.previous,
	})
	s.publish(ctx, eventbus.EventMessageSent, eventbus.MessageSentPayload{Message: *assigned.message})
	return sess, nil
}
