package models

import (
	"fmt"
	"sort"
	"time"
)

// Chat is a two-party conversation container. Immutable once created.
type Chat struct {
	ID        string    `db:"id" json:"id"`
	PairKey   string    `db:"pair_key" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Membership links a user to a chat and carries that user's visibility horizon.
// Messages created at or before HorizonAt are hidden from the user.
type Membership struct {
	ChatID    string     `db:"chat_id" json:"chat_id"`
	UserID    string     `db:"user_id" json:"user_id"`
	HorizonAt *time.Time `db:"horizon_at" json:"horizon_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Visible reports whether a message created at ts is past the horizon.
func (m Membership) Visible(ts time.Time) bool {
	return m.HorizonAt == nil || ts.After(*m.HorizonAt)
}

// ChatSummary is one row of a user's chat list.
type ChatSummary struct {
	ChatID             string       `json:"chat_id"`
	PeerID             string       `json:"peer_id"`
	PeerUsername       string       `json:"username"`
	PeerAvatarURL      string       `json:"avatar"`
	LastMessageContent *string      `json:"last_message"`
	LastMessageKind    *MessageKind `json:"type_message"`
	LastSenderID       *string      `json:"last_sender"`
	LastMessageAt      *time.Time   `json:"last_message_at"`
	UnreadCount        int          `json:"unread_count"`
	CreatedAt          time.Time    `json:"created_at"`
}

// Peer describes the other participant of a chat.
type Peer struct {
	PeerID    string `json:"peer_id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar"`
}

// PairKey normalizes two user ids into an order-independent key. Each id is
// length-prefixed, so ids containing the separator cannot collide.
func PairKey(userA, userB string) string {
	ids := []string{userA, userB}
	sort.Strings(ids)
	return fmt.Sprintf("%d:%s|%d:%s", len(ids[0]), ids[0], len(ids[1]), ids[1])
}

// UserChat is a membership row joined with its chat's creation time.
type UserChat struct {
	ChatID        string     `db:"chat_id"`
	UserID        string     `db:"user_id"`
	HorizonAt     *time.Time `db:"horizon_at"`
	ChatCreatedAt time.Time  `db:"chat_created_at"`
}
