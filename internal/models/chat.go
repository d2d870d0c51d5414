package models

import "time"

// Chat represents a private chat between exactly two users. Deletion flags
// are per-participant; is_active is an independent kill-switch that delete
// operations never touch. deleted_at is set only on delete-for-both and
// marks the chat as closed.
type Chat struct {
	ID                    int        `db:"id" json:"id"`
	Participant1ID        int        `db:"participant1_id" json:"participant1_id"`
	Participant2ID        int        `db:"participant2_id" json:"participant2_id"`
	InitiatedBy           int        `db:"initiated_by" json:"initiated_by"`
	IsActive              bool       `db:"is_active" json:"is_active"`
	DeletedByParticipant1 bool       `db:"deleted_by_participant1" json:"deleted_by_participant1"`
	DeletedByParticipant2 bool       `db:"deleted_by_participant2" json:"deleted_by_participant2"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
	LastMessageAt         *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
	DeletedAt             *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// HasParticipant reports whether the user is one of the two chat parties.
func (c Chat) HasParticipant(userID int) bool {
	return c.Participant1ID == userID || c.Participant2ID == userID
}

// OtherParticipant returns the counterpart of the given user.
func (c Chat) OtherParticipant(userID int) int {
	if c.Participant1ID == userID {
		return c.Participant2ID
	}
	return c.Participant1ID
}

// DeletedFor reports whether the given participant has hidden the chat.
func (c Chat) DeletedFor(userID int) bool {
	switch userID {
	case c.Participant1ID:
		return c.DeletedByParticipant1
	case c.Participant2ID:
		return c.DeletedByParticipant2
	}
	return false
}

// FullyActive reports whether neither side has the chat hidden.
func (c Chat) FullyActive() bool {
	return !c.DeletedByParticipant1 && !c.DeletedByParticipant2
}

// ChatSummary is the API-friendly view of a chat for one user.
type ChatSummary struct {
	Chat                 Chat   `json:"chat"`
	OtherParticipantID   int    `json:"other_participant_id"`
	OtherParticipantName string `json:"other_participant_name"`
	LastMessagePreview   string `json:"last_message_preview"`
	UnreadCount          int    `json:"unread_count"`
}
