package service

import (
	"testing"
	"time"

	"github.com/eben2468/srcwebsite-sub012/internal/domain/entity"
)

var policyNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func agent(id uint, status entity.Presence, count, max int, auto bool, seenAgo time.Duration) *entity.AgentStatus {
	return &entity.AgentStatus{
		AgentID:            id,
		Status:             status,
		CurrentChatCount:   count,
		MaxConcurrentChats: max,
		AutoAssign:         auto,
		LastSeen:           policyNow.Add(-seenAgo),
	}
}

// === Eligible ===

func TestAssignmentPolicy_Eligible(t *testing.T) {
	p := NewAssignmentPolicy(NewPresencePolicy(0), false)

	tests := []struct {
		name string
		a    *entity.AgentStatus
		want bool
	}{
		{"online with capacity", agent(1, entity.PresenceOnline, 0, 5, true, 0), true},
		{"at capacity", agent(2, entity.PresenceOnline, 5, 5, true, 0), false},
		{"over capacity", agent(3, entity.PresenceOnline, 6, 5, true, 0), false},
		{"auto assign off", agent(4, entity.PresenceOnline, 0, 5, false, 0), false},
		{"busy", agent(5, entity.PresenceBusy, 0, 5, true, 0), false},
		{"away", agent(6, entity.PresenceAway, 0, 5, true, 0), false},
		{"stale but stored online", agent(7, entity.PresenceOnline, 0, 5, true, time.Hour), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Eligible(tt.a, policyNow); got != tt.want {
				t.Errorf("Eligible: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAssignmentPolicy_RequireFreshDropsStaleAgents(t *testing.T) {
	p := NewAssignmentPolicy(NewPresencePolicy(5*time.Minute), true)

	if p.Eligible(agent(1, entity.PresenceOnline, 0, 5, true, 6*time.Minute), policyNow) {
		t.Error("stale agent should not be eligible when freshness is required")
	}
	if !p.Eligible(agent(2, entity.PresenceOnline, 0, 5, true, 4*time.Minute), policyNow) {
		t.Error("fresh agent should be eligible")
	}
}

// === Rank ===

func TestAssignmentPolicy_RankOrdersByLoadThenRecency(t *testing.T) {
	p := NewAssignmentPolicy(NewPresencePolicy(0), false)

	candidates := []*entity.AgentStatus{
		agent(10, entity.PresenceOnline, 2, 5, true, time.Second),
		agent(11, entity.PresenceOnline, 1, 5, true, time.Minute),
		agent(12, entity.PresenceOnline, 1, 5, true, time.Second),
		agent(13, entity.PresenceOnline, 5, 5, true, 0),
		agent(14, entity.PresenceOffline, 0, 5, true, 0),
	}

	ranked := p.Rank(candidates, policyNow)

	want := []uint{12, 11, 10}
	if len(ranked) != len(want) {
		t.Fatalf("ranked length: got %d, want %d", len(ranked), len(want))
	}
	for i, id := range want {
		if ranked[i].AgentID != id {
			t.Errorf("rank[%d]: got agent %d, want %d", i, ranked[i].AgentID, id)
		}
	}
}

func TestAssignmentPolicy_RankBreaksFullTiesByAgentID(t *testing.T) {
	p := NewAssignmentPolicy(NewPresencePolicy(0), false)

	candidates := []*entity.AgentStatus{
		agent(30, entity.PresenceOnline, 0, 5, true, time.Second),
		agent(20, entity.PresenceOnline, 0, 5, true, time.Second),
	}
	ranked := p.Rank(candidates, policyNow)
	if ranked[0].AgentID != 20 {
		t.Errorf("tie break: got agent %d first, want 20", ranked[0].AgentID)
	}
}

func TestAssignmentPolicy_RankNeverReturnsFullAgents(t *testing.T) {
	p := NewAssignmentPolicy(NewPresencePolicy(0), false)

	for max := 1; max <= 3; max++ {
		for count := 0; count <= max+1; count++ {
			ranked := p.Rank([]*entity.AgentStatus{agent(1, entity.PresenceOnline, count, max, true, 0)}, policyNow)
			full := count >= max
			if full && len(ranked) != 0 {
				t.Errorf("count=%d max=%d: full agent was ranked", count, max)
			}
			if !full && len(ranked) != 1 {
				t.Errorf("count=%d max=%d: agent with capacity was dropped", count, max)
			}
		}
	}
}
