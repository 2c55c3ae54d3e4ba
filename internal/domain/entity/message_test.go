package entity

import (
	"errors"
	"strings"
	"testing"
)

func TestParseMessageType(t *testing.T) {
	tests := []struct {
		in   string
		want MessageType
		err  error
	}{
		{"", MessageText, nil},
		{"TEXT", MessageText, nil},
		{"image", MessageImage, nil},
		{"file", MessageFile, nil},
		{"system", "", ErrInvalidMessageType},
		{"video", "", ErrInvalidMessageType},
	}
	for _, tt := range tests {
		got, err := ParseMessageType(tt.in)
		if got != tt.want || !errors.Is(err, tt.err) {
			t.Errorf("ParseMessageType(%q): got (%q, %v), want (%q, %v)", tt.in, got, err, tt.want, tt.err)
		}
	}
}

func TestNewUserMessage_Validation(t *testing.T) {
	if _, err := NewUserMessage(1, 2, "  ", MessageText, t0); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("empty: got %v", err)
	}
	if _, err := NewUserMessage(1, 2, strings.Repeat("a", MaxMessageLength+1), MessageText, t0); !errors.Is(err, ErrMessageTooLong) {
		t.Errorf("too long: got %v", err)
	}
	if _, err := NewUserMessage(1, SystemSenderID, "hi", MessageText, t0); !errors.Is(err, ErrInvalidMessageType) {
		t.Errorf("system sender: got %v", err)
	}
	m, err := NewUserMessage(1, 2, " hi ", MessageText, t0)
	if err != nil {
		t.Fatalf("NewUserMessage: %v", err)
	}
	if m.Text != "hi" || m.IsRead || m.IsSystem() {
		t.Errorf("unexpected message: %+v", m)
	}
}

func TestNewSystemMessage_IsRead(t *testing.T) {
	m := NewSystemMessage(1, "Welcome", t0)
	if !m.IsSystem() || !m.IsRead || m.Type != MessageSystem {
		t.Errorf("system message: %+v", m)
	}
}

func TestNormalizeTag(t *testing.T) {
	if got, err := NormalizeTag("  Finance_Aid "); err != nil || got != "finance_aid" {
		t.Errorf("NormalizeTag: got (%q, %v)", got, err)
	}
	for _, bad := range []string{"", "-lead", "has space", strings.Repeat("a", 40)} {
		if _, err := NormalizeTag(bad); !errors.Is(err, ErrInvalidTag) {
			t.Errorf("NormalizeTag(%q): got %v, want ErrInvalidTag", bad, err)
		}
	}
}

func TestMessageTypeFor(t *testing.T) {
	if MessageTypeFor("image/png") != MessageImage {
		t.Error("image/png should be an image message")
	}
	if MessageTypeFor("application/pdf") != MessageFile {
		t.Error("application/pdf should be a file message")
	}
}
