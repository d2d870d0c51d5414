package chat

import (
	"time"

	"github.com/petvoice/chat-service/internal/models"
)

// Message is the chat-type-agnostic view of a message that the visibility
// engine, reply resolver and selection coordinator operate on. Deletion
// state is unexported so callers can only reach it through a Strategy.
type Message struct {
	ID                   int                `json:"id"`
	SenderID             int                `json:"sender_id"`
	RecipientID          int                `json:"recipient_id,omitempty"`
	ChannelID            int                `json:"channel_id,omitempty"`
	Content              *string            `json:"content"`
	FileURL              *string            `json:"file_url,omitempty"`
	Type                 models.MessageType `json:"message_type"`
	VoiceDurationSeconds *int               `json:"voice_duration_seconds,omitempty"`
	ReplyToID            *int               `json:"reply_to_id,omitempty"`
	IsEmergency          bool               `json:"is_emergency"`
	IsRead               bool               `json:"is_read"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`

	deletedBySender    bool
	deletedByRecipient bool
	deletedByAll       bool
}

// FromPrivate projects a private message row.
func FromPrivate(m models.PrivateMessage) Message {
	return Message{
		ID:                   m.ID,
		SenderID:             m.SenderID,
		RecipientID:          m.RecipientID,
		Content:              m.Content,
		FileURL:              m.FileURL,
		Type:                 m.MessageType,
		VoiceDurationSeconds: m.VoiceDurationSeconds,
		ReplyToID:            m.ReplyToID,
		IsEmergency:          m.IsEmergency,
		IsRead:               m.IsRead,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
		deletedBySender:      m.DeletedBySender,
		deletedByRecipient:   m.DeletedByRecipient,
	}
}

// FromChannel projects a channel message row.
func FromChannel(m models.ChannelMessage) Message {
	return Message{
		ID:                   m.ID,
		SenderID:             m.SenderID,
		ChannelID:            m.ChannelID,
		Content:              m.Content,
		FileURL:              m.FileURL,
		Type:                 m.MessageType,
		VoiceDurationSeconds: m.VoiceDurationSeconds,
		ReplyToID:            m.ReplyToID,
		IsEmergency:          m.IsEmergency,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
		deletedByAll:         m.DeletedByAll,
	}
}

// Strategy decides whether one message is visible to one viewer. The two
// storage models (inline flag pair vs tombstone plus personal-deletion set)
// each get an implementation so callers never branch on chat type.
type Strategy interface {
	Visible(msg Message, viewerID int) bool
}

// FlagPairStrategy evaluates private messages: the viewer sees the message
// unless their own side's flag is raised. Non-participants see nothing.
type FlagPairStrategy struct{}

func (FlagPairStrategy) Visible(msg Message, viewerID int) bool {
	switch viewerID {
	case msg.SenderID:
		return !msg.deletedBySender
	case msg.RecipientID:
		return !msg.deletedByRecipient
	}
	return false
}

type deletionKey struct {
	messageID int
	userID    int
}

// SetMembershipStrategy evaluates channel messages: hidden when the global
// tombstone is set or a personal-deletion record exists for the viewer.
// Membership is a set lookup so filtering stays O(n).
type SetMembershipStrategy struct {
	deleted map[deletionKey]struct{}
}

// NewSetMembershipStrategy indexes personal-deletion records.
func NewSetMembershipStrategy(deletions []models.PersonalDeletion) SetMembershipStrategy {
	deleted := make(map[deletionKey]struct{}, len(deletions))
	for _, d := range deletions {
		deleted[deletionKey{messageID: d.MessageID, userID: d.UserID}] = struct{}{}
	}
	return SetMembershipStrategy{deleted: deleted}
}

func (s SetMembershipStrategy) Visible(msg Message, viewerID int) bool {
	if msg.deletedByAll {
		return false
	}
	_, hidden := s.deleted[deletionKey{messageID: msg.ID, userID: viewerID}]
	return !hidden
}

// Engine filters raw message sets down to what a viewer may see.
type Engine struct {
	strategy Strategy
}

// NewEngine builds an engine over the given strategy.
func NewEngine(strategy Strategy) Engine {
	return Engine{strategy: strategy}
}

// Filter returns the subset of msgs visible to the viewer, preserving order.
func (e Engine) Filter(msgs []Message, viewerID int) []Message {
	visible := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if e.strategy.Visible(m, viewerID) {
			visible = append(visible, m)
		}
	}
	return visible
}
