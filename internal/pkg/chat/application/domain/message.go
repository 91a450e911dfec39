package chat

import (
	"strings"
	"time"
)

// MaxMessageLength caps user message content in runes.
const MaxMessageLength = 2000

// Message is an immutable log entry in a room. A nil SenderID marks a
// system-generated message ("X left" / "X rejoined"). Ordering is by
// CreatedAt with ID as the tie-breaker.
type Message struct {
	ID        int64     `db:"id" json:"id"`
	RoomID    int64     `db:"room_id" json:"room_id"`
	SenderID  *int64    `db:"sender_id" json:"sender_id,omitempty"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// IsSystem reports whether the message was generated by the server.
func (m Message) IsSystem() bool {
	return m.SenderID == nil
}

// NewUserMessage validates and normalizes a user-authored message.
func NewUserMessage(roomID int64, senderID int64, content string) (Message, error) {
	if roomID <= 0 {
		return Message{}, ErrRoomNotFound
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return Message{}, ErrEmptyMessage
	}
	if len([]rune(content)) > MaxMessageLength {
		return Message{}, ErrMessageTooLong
	}
	return Message{
		RoomID:    roomID,
		SenderID:  &senderID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// NewSystemMessage builds a server-generated message with no sender.
func NewSystemMessage(roomID int64, content string) Message {
	return Message{
		RoomID:    roomID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}
