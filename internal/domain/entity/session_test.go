package entity

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// === NewChatSession ===

func TestNewChatSession_Defaults(t *testing.T) {
	s, err := NewChatSession(7, "tok", "  Help  ", "", "", t0)
	if err != nil {
		t.Fatalf("NewChatSession: %v", err)
	}
	if s.Subject != "Help" {
		t.Errorf("Subject: got %q, want %q", s.Subject, "Help")
	}
	if s.Priority != PriorityMedium {
		t.Errorf("Priority: got %q, want %q", s.Priority, PriorityMedium)
	}
	if s.Department != DefaultDepartment {
		t.Errorf("Department: got %q, want %q", s.Department, DefaultDepartment)
	}
	if s.Status != SessionWaiting || s.AssignedAgentID != nil {
		t.Errorf("new session should be waiting and unassigned, got %q / %v", s.Status, s.AssignedAgentID)
	}
	if err := s.CheckInvariant(); err != nil {
		t.Errorf("CheckInvariant: %v", err)
	}
}

func TestNewChatSession_Validation(t *testing.T) {
	tests := []struct {
		name      string
		requester uint
		subject   string
		priority  string
		want      error
	}{
		{"missing requester", 0, "Help", "", ErrInvalidRequester},
		{"empty subject", 1, "   ", "", ErrEmptySubject},
		{"long subject", 1, strings.Repeat("x", MaxSubjectLength+1), "", ErrSubjectTooLong},
		{"bad priority", 1, "Help", "critical", ErrInvalidPriority},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChatSession(tt.requester, "tok", tt.subject, tt.priority, "", t0)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

// === Transitions ===

func TestChatSession_AssignThenEnd(t *testing.T) {
	s, _ := NewChatSession(7, "tok", "Help", "high", "finance", t0)

	prev, err := s.Assign(3, t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if prev != 0 {
		t.Errorf("previous assignee: got %d, want 0", prev)
	}
	if s.Status != SessionActive || !s.AssignedTo(3) {
		t.Fatalf("after assign: status %q assignee %v", s.Status, s.AssignedAgentID)
	}

	prev, err = s.Assign(4, t0.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if prev != 3 {
		t.Errorf("previous assignee: got %d, want 3", prev)
	}
	if s.Status != SessionActive {
		t.Errorf("reassignment should keep session active, got %q", s.Status)
	}

	rating := 5
	if err := s.End(&rating, "  thanks ", t0.Add(3*time.Minute)); err != nil {
		t.Fatalf("End: %v", err)
	}
	if s.Status != SessionEnded || s.EndedAt == nil {
		t.Fatalf("after end: status %q ended_at %v", s.Status, s.EndedAt)
	}
	if s.Rating == nil || *s.Rating != 5 {
		t.Errorf("Rating: got %v", s.Rating)
	}
	if s.Feedback == nil || *s.Feedback != "thanks" {
		t.Errorf("Feedback: got %v", s.Feedback)
	}
	if err := s.CheckInvariant(); err != nil {
		t.Errorf("CheckInvariant: %v", err)
	}
}

func TestChatSession_CancelWhileWaiting(t *testing.T) {
	s, _ := NewChatSession(7, "tok", "Help", "", "", t0)
	if err := s.End(nil, "", t0); err != nil {
		t.Fatalf("End: %v", err)
	}
	if s.Status != SessionEnded || s.AssignedAgentID != nil {
		t.Errorf("cancelled session: status %q assignee %v", s.Status, s.AssignedAgentID)
	}
	if s.Feedback != nil {
		t.Error("empty feedback should not be stored")
	}
}

func TestChatSession_EndedIsTerminal(t *testing.T) {
	s, _ := NewChatSession(7, "tok", "Help", "", "", t0)
	_ = s.End(nil, "", t0)

	if _, err := s.Assign(3, t0); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("Assign after end: got %v, want ErrSessionEnded", err)
	}
	if err := s.End(nil, "", t0); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("End twice: got %v, want ErrSessionEnded", err)
	}
}

func TestChatSession_EndRejectsBadRating(t *testing.T) {
	for _, r := range []int{0, 6, -1} {
		s, _ := NewChatSession(7, "tok", "Help", "", "", t0)
		rating := r
		if err := s.End(&rating, "", t0); !errors.Is(err, ErrInvalidRating) {
			t.Errorf("rating %d: got %v, want ErrInvalidRating", r, err)
		}
		if s.Status == SessionEnded {
			t.Errorf("rating %d: session should stay open after rejected end", r)
		}
	}
}

func TestChatSession_CheckInvariant(t *testing.T) {
	agentID := uint(3)
	bad := []*ChatSession{
		{Status: SessionWaiting, AssignedAgentID: &agentID},
		{Status: SessionActive},
		{Status: "paused"},
	}
	for _, s := range bad {
		if err := s.CheckInvariant(); err == nil {
			t.Errorf("status %q assignee %v: expected invariant violation", s.Status, s.AssignedAgentID)
		}
	}
}
