package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/eben2468/srcwebsite-sub012/internal/application/usecase"
	"github.com/eben2468/srcwebsite-sub012/internal/domain/entity"
)

func TestAgentsTable(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	r := NewRenderer(100)
	r.now = func() time.Time { return now }

	out := r.AgentsTable([]usecase.AgentView{
		{
			AgentStatus:     entity.AgentStatus{AgentID: 4, Status: entity.PresenceOnline, MaxConcurrentChats: 5, CurrentChatCount: 2, AutoAssign: true, LastSeen: now.Add(-30 * time.Second)},
			Name:            "Kofi",
			EffectiveStatus: entity.PresenceOnline,
		},
		{
			AgentStatus:     entity.AgentStatus{AgentID: 7, Status: entity.PresenceOnline, MaxConcurrentChats: 3, CurrentChatCount: 3, LastSeen: now.Add(-10 * time.Minute)},
			Name:            "Esi",
			EffectiveStatus: entity.PresenceOffline,
		},
	})

	for _, want := range []string{"AGENT", "Kofi", "2/5", "30s ago", "Esi", "offline (online)", "3/3", "10m ago"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if got := r.AgentsTable(nil); !strings.Contains(got, "No agents") {
		t.Errorf("empty table: got %q", got)
	}
}

func TestQuickResponses(t *testing.T) {
	r := NewRenderer(80)
	out := r.QuickResponses([]usecase.QuickResponseView{
		{QuickResponse: entity.QuickResponse{Category: "greeting", Title: "Hello", Body: "Hi there"}},
		{QuickResponse: entity.QuickResponse{Category: "closing", Title: "Bye", Body: "Goodbye"}},
	})
	for _, want := range []string{"greeting", "Hello", "Hi there", "closing", "Goodbye"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAgo(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{-time.Second, "just now"},
		{45 * time.Second, "45s ago"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{72 * time.Hour, "3d ago"},
	}
	for _, tt := range tests {
		if got := Ago(tt.d); got != tt.want {
			t.Errorf("Ago(%v): got %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestRenderBanner(t *testing.T) {
	out := RenderBanner(BannerInfo{Address: "0.0.0.0:8080", Database: "sqlite", Redis: true}, 40)
	for _, want := range []string{"S R C", "0.0.0.0:8080", "sqlite", "enabled", "disabled"} {
		if !strings.Contains(out, want) {
			t.Errorf("banner missing %q", want)
		}
	}
}
