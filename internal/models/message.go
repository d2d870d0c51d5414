package models

import "time"

// MessageType enumerates supported message payloads.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeVoice MessageType = "voice"
)

// Valid reports whether the type is one of the supported payload kinds.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVoice:
		return true
	}
	return false
}

// PrivateMessage is a message between exactly two participants. Per-party
// deletion is carried as inline flags on the row; content is the only
// mutable payload field after creation.
type PrivateMessage struct {
	ID                   int         `db:"id" json:"id"`
	ChatID               int         `db:"chat_id" json:"chat_id"`
	SenderID             int         `db:"sender_id" json:"sender_id"`
	RecipientID          int         `db:"recipient_id" json:"recipient_id"`
	Content              *string     `db:"content" json:"content"`
	FileURL              *string     `db:"file_url" json:"file_url,omitempty"`
	MessageType          MessageType `db:"message_type" json:"message_type"`
	VoiceDurationSeconds *int        `db:"voice_duration_seconds" json:"voice_duration_seconds,omitempty"`
	ReplyToID            *int        `db:"reply_to_id" json:"reply_to_id,omitempty"`
	IsEmergency          bool        `db:"is_emergency" json:"is_emergency"`
	IsRead               bool        `db:"is_read" json:"is_read"`
	DeletedBySender      bool        `db:"deleted_by_sender" json:"deleted_by_sender"`
	DeletedByRecipient   bool        `db:"deleted_by_recipient" json:"deleted_by_recipient"`
	CreatedAt            time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time   `db:"updated_at" json:"updated_at"`
}

// IsParticipant reports whether the user is the sender or the recipient.
func (m PrivateMessage) IsParticipant(userID int) bool {
	return m.SenderID == userID || m.RecipientID == userID
}

// ChannelMessage is a broadcast message in a public channel. The global
// tombstone lives on the row; per-user hiding lives in the append-only
// channel_message_deletions table.
type ChannelMessage struct {
	ID                   int         `db:"id" json:"id"`
	ChannelID            int         `db:"channel_id" json:"channel_id"`
	SenderID             int         `db:"sender_id" json:"sender_id"`
	Content              *string     `db:"content" json:"content"`
	FileURL              *string     `db:"file_url" json:"file_url,omitempty"`
	MessageType          MessageType `db:"message_type" json:"message_type"`
	VoiceDurationSeconds *int        `db:"voice_duration_seconds" json:"voice_duration_seconds,omitempty"`
	ReplyToID            *int        `db:"reply_to_id" json:"reply_to_id,omitempty"`
	IsEmergency          bool        `db:"is_emergency" json:"is_emergency"`
	DeletedByAll         bool        `db:"deleted_by_all" json:"deleted_by_all"`
	CreatedAt            time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time   `db:"updated_at" json:"updated_at"`
}

// PersonalDeletion hides one channel message for one user. Records are
// append-only: once written they are never removed.
type PersonalDeletion struct {
	MessageID int       `db:"message_id" json:"message_id"`
	UserID    int       `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ChatEvent is broadcast through websockets and the in-process change feed.
type ChatEvent struct {
	Type      string          `json:"type"`
	Message   *PrivateMessage `json:"message,omitempty"`
	MessageID int             `json:"message_id,omitempty"`
	Chat      *Chat           `json:"chat,omitempty"`
}

// ChannelEvent is emitted for channel message activity.
type ChannelEvent struct {
	Type      string          `json:"type"`
	Message   *ChannelMessage `json:"message,omitempty"`
	MessageID int             `json:"message_id,omitempty"`
}
