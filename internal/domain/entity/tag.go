package entity

import (
	"regexp"
	"strings"
	"time"
)

var tagPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,31}$`)

// SessionTag 会话标签
type SessionTag struct {
	SessionID uint      `json:"session_id"`
	Tag       string    `json:"tag"`
	AddedBy   uint      `json:"added_by"`
	AddedAt   time.Time `json:"added_at"`
}

// NormalizeTag lowercases and validates a tag.
func NormalizeTag(tag string) (string, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if !tagPattern.MatchString(tag) {
		return "", ErrInvalidTag
	}
	return tag, nil
}
