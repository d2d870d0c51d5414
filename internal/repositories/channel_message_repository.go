package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/petvoice/chat-service/internal/models"
)

const channelMessageColumns = `id, channel_id, sender_id, content, file_url, message_type,
    voice_duration_seconds, reply_to_id, is_emergency, deleted_by_all, created_at, updated_at`

// ChannelMessageRepository defines interactions for broadcast channel messages.
type ChannelMessageRepository interface {
	Append(ctx context.Context, msg models.ChannelMessage) (models.ChannelMessage, error)
	ListForChannel(ctx context.Context, channelID int) ([]models.ChannelMessage, error)
	Get(ctx context.Context, messageID int) (models.ChannelMessage, error)
	ListPersonalDeletions(ctx context.Context, channelID int, userID int) ([]models.PersonalDeletion, error)
	SoftDeletePersonal(ctx context.Context, messageID int, userID int) error
	SoftDeleteGlobal(ctx context.Context, messageID int, actorID int) error
}

// ChannelMessageRepo is a sqlx-backed repository.
type ChannelMessageRepo struct {
	db *sqlx.DB
}

// NewChannelMessageRepo constructs ChannelMessageRepo.
func NewChannelMessageRepo(db *sqlx.DB) *ChannelMessageRepo {
	return &ChannelMessageRepo{db: db}
}

// Append stores a channel message after validating the reply target lives in
// the same channel.
func (r *ChannelMessageRepo) Append(ctx context.Context, msg models.ChannelMessage) (models.ChannelMessage, error) {
	if !msg.MessageType.Valid() {
		return models.ChannelMessage{}, fmt.Errorf("%w: unknown message type %q", ErrInvalidState, msg.MessageType)
	}
	if msg.ReplyToID != nil {
		target, err := r.Get(ctx, *msg.ReplyToID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return models.ChannelMessage{}, fmt.Errorf("%w: reply target does not exist", ErrInvalidState)
			}
			return models.ChannelMessage{}, err
		}
		if target.ChannelID != msg.ChannelID {
			return models.ChannelMessage{}, fmt.Errorf("%w: reply target in a different channel", ErrInvalidState)
		}
	}

	var stored models.ChannelMessage
	query := `INSERT INTO channel_messages (channel_id, sender_id, content, file_url, message_type,
            voice_duration_seconds, reply_to_id, is_emergency)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING ` + channelMessageColumns
	err := r.db.GetContext(ctx, &stored, query,
		msg.ChannelID, msg.SenderID, msg.Content, msg.FileURL, msg.MessageType,
		msg.VoiceDurationSeconds, msg.ReplyToID, msg.IsEmergency)
	if err != nil {
		return models.ChannelMessage{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return stored, nil
}

// ListForChannel returns all raw rows of a channel in append order.
func (r *ChannelMessageRepo) ListForChannel(ctx context.Context, channelID int) ([]models.ChannelMessage, error) {
	var msgs []models.ChannelMessage
	query := `SELECT ` + channelMessageColumns + ` FROM channel_messages
        WHERE channel_id=$1 ORDER BY created_at ASC, id ASC`
	if err := r.db.SelectContext(ctx, &msgs, query, channelID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return msgs, nil
}

// Get retrieves a single channel message.
func (r *ChannelMessageRepo) Get(ctx context.Context, messageID int) (models.ChannelMessage, error) {
	var msg models.ChannelMessage
	err := r.db.GetContext(ctx, &msg, `SELECT `+channelMessageColumns+` FROM channel_messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChannelMessage{}, ErrNotFound
	}
	if err != nil {
		return models.ChannelMessage{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return msg, nil
}

// ListPersonalDeletions returns the viewer's personal-deletion records for
// one channel.
func (r *ChannelMessageRepo) ListPersonalDeletions(ctx context.Context, channelID int, userID int) ([]models.PersonalDeletion, error) {
	var deletions []models.PersonalDeletion
	query := `SELECT d.message_id, d.user_id, d.created_at
        FROM channel_message_deletions d
        JOIN channel_messages m ON m.id = d.message_id
        WHERE m.channel_id=$1 AND d.user_id=$2`
	if err := r.db.SelectContext(ctx, &deletions, query, channelID, userID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return deletions, nil
}

// SoftDeletePersonal appends a personal-deletion record for the user. Any
// user may hide any message for themself. The record is append-only, so a
// repeat is a no-op, and a missing message is already satisfied.
func (r *ChannelMessageRepo) SoftDeletePersonal(ctx context.Context, messageID int, userID int) error {
	exists, err := r.channelMessageExists(ctx, messageID)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO channel_message_deletions (message_id, user_id)
        VALUES ($1, $2) ON CONFLICT (message_id, user_id) DO NOTHING`, messageID, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return nil
}

// SoftDeleteGlobal raises the global tombstone. Sender only, enforced by the
// conditional single-row write. A missing message is already satisfied.
func (r *ChannelMessageRepo) SoftDeleteGlobal(ctx context.Context, messageID int, actorID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE channel_messages SET deleted_by_all=TRUE, updated_at=NOW()
        WHERE id=$1 AND sender_id=$2`, messageID, actorID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if count == 0 {
		exists, err := r.channelMessageExists(ctx, messageID)
		if err != nil {
			return err
		}
		if exists {
			return ErrUnauthorized
		}
	}
	return nil
}

func (r *ChannelMessageRepo) channelMessageExists(ctx context.Context, messageID int) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM channel_messages WHERE id=$1)`, messageID); err != nil {
		return false, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return exists, nil
}
