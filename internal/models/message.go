package models

import (
	"strings"
	"time"
)

// MessageKind classifies the payload of a message.
type MessageKind string

const (
	KindText  MessageKind = "TEXT"
	KindImage MessageKind = "IMAGE"
	KindFile  MessageKind = "FILE"
)

// KindForContentType returns IMAGE for image/* content types and FILE otherwise.
func KindForContentType(contentType string) MessageKind {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/") {
		return KindImage
	}
	return KindFile
}

// Message represents a chat message. Only IsRead ever changes, and only false to true.
// For attachment kinds Content holds the public URL of the stored object.
type Message struct {
	ID           string      `db:"id" json:"id"`
	ChatID       string      `db:"chat_id" json:"chat_id"`
	SenderID     string      `db:"sender_id" json:"sender_id"`
	Content      string      `db:"content" json:"content"`
	Kind         MessageKind `db:"kind" json:"type_message"`
	IsAttachment bool        `db:"is_attachment" json:"is_file"`
	IsRead       bool        `db:"is_read" json:"is_read"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
}

// ChatEvent is broadcast to websocket subscribers of a chat.
type ChatEvent struct {
	Type     string   `json:"type"`
	ChatID   string   `json:"chat_id"`
	Message  *Message `json:"message,omitempty"`
	ReaderID string   `json:"reader_id,omitempty"`
	Count    int      `json:"count,omitempty"`
}

const (
	EventMessage = "message"
	EventRead    = "read"
)
