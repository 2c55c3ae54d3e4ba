package service

import (
	"time"

	"github.com/eben2468/srcwebsite-sub012/internal/domain/entity"
)

// DefaultStaleAfter is how long an agent may go without a heartbeat before
// presence queries report them offline.
const DefaultStaleAfter = 5 * time.Minute

// PresencePolicy derives effective presence from stored status and
// last_seen. It never writes the stored status back.
type PresencePolicy struct {
	staleAfter time.Duration
}

// NewPresencePolicy 创建在线判定策略
func NewPresencePolicy(staleAfter time.Duration) *PresencePolicy {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &PresencePolicy{staleAfter: staleAfter}
}

// StaleAfter returns the configured staleness window.
func (p *PresencePolicy) StaleAfter() time.Duration {
	return p.staleAfter
}

// IsStale reports whether the agent's last heartbeat is older than the
// window.
func (p *PresencePolicy) IsStale(a *entity.AgentStatus, now time.Time) bool {
	return now.Sub(a.LastSeen) > p.staleAfter
}

// Effective returns offline for stale agents and the stored status
// otherwise.
func (p *PresencePolicy) Effective(a *entity.AgentStatus, now time.Time) entity.Presence {
	if p.IsStale(a, now) {
		return entity.PresenceOffline
	}
	return a.Status
}
