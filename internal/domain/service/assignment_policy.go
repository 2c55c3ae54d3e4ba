package service

import (
	"sort"
	"time"

	"github.com/eben2468/srcwebsite-sub012/internal/domain/entity"
)

// AssignmentPolicy decides which agents may take a waiting session and in
// what order they are tried.
type AssignmentPolicy struct {
	presence *PresencePolicy
	// requireFresh drops agents whose heartbeat is stale even when their
	// stored status says online.
	requireFresh bool
}

// NewAssignmentPolicy 创建分配策略
func NewAssignmentPolicy(presence *PresencePolicy, requireFresh bool) *AssignmentPolicy {
	return &AssignmentPolicy{
		presence:     presence,
		requireFresh: requireFresh,
	}
}

// Eligible reports whether a may be auto-assigned a new session.
func (p *AssignmentPolicy) Eligible(a *entity.AgentStatus, now time.Time) bool {
	if a.Status != entity.PresenceOnline || !a.AutoAssign || !a.HasCapacity() {
		return false
	}
	if p.requireFresh && p.presence.IsStale(a, now) {
		return false
	}
	return true
}

// Rank filters candidates down to eligible agents and orders them: least
// loaded first, then most recently seen, then lowest id.
func (p *AssignmentPolicy) Rank(candidates []*entity.AgentStatus, now time.Time) []*entity.AgentStatus {
	ranked := make([]*entity.AgentStatus, 0, len(candidates))
	for _, a := range candidates {
		if p.Eligible(a, now) {
			ranked = append(ranked, a)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.CurrentChatCount != b.CurrentChatCount {
			return a.CurrentChatCount < b.CurrentChatCount
		}
		if !a.LastSeen.Equal(b.LastSeen) {
			return a.LastSeen.After(b.LastSeen)
		}
		return a.AgentID < b.AgentID
	})
	return ranked
}
