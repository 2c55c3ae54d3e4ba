package entity

import (
	"strings"
	"time"
)

// ChatFile is an upload attached to a file or image message.
type ChatFile struct {
	ID           uint      `json:"id"`
	SessionID    uint      `json:"session_id"`
	MessageID    uint      `json:"message_id"`
	UploaderID   uint      `json:"uploader_id"`
	OriginalName string    `json:"original_name"`
	StoredPath   string    `json:"stored_path"`
	MimeType     string    `json:"mime_type"`
	SizeBytes    int64     `json:"size_bytes"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// MessageTypeFor picks image for image/* MIME types, file otherwise.
func MessageTypeFor(mimeType string) MessageType {
	if strings.HasPrefix(mimeType, "image/") {
		return MessageImage
	}
	return MessageFile
}
