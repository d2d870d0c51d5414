package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/petvoice/chat-service/internal/models"
)

const messageColumns = `id, chat_id, sender_id, recipient_id, content, file_url, message_type,
    voice_duration_seconds, reply_to_id, is_emergency, is_read,
    deleted_by_sender, deleted_by_recipient, created_at, updated_at`

// MessageRepository defines interactions for private chat messages.
type MessageRepository interface {
	Append(ctx context.Context, msg models.PrivateMessage) (models.PrivateMessage, error)
	ListForChat(ctx context.Context, chatID int) ([]models.PrivateMessage, error)
	Get(ctx context.Context, messageID int) (models.PrivateMessage, error)
	SoftDeletePersonal(ctx context.Context, messageID int, viewerID int) error
	SoftDeleteGlobal(ctx context.Context, messageID int, actorID int) error
	Edit(ctx context.Context, messageID int, actorID int, newContent string) (models.PrivateMessage, error)
	MarkReadBulk(ctx context.Context, chatID int, viewerID int) (int, error)
	CountUnread(ctx context.Context, chatID int, viewerID int) (int, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append stores a private message. A reply target must exist in the same
// chat; that is validated before anything is written.
func (r *MessageRepo) Append(ctx context.Context, msg models.PrivateMessage) (models.PrivateMessage, error) {
	if !msg.MessageType.Valid() {
		return models.PrivateMessage{}, fmt.Errorf("%w: unknown message type %q", ErrInvalidState, msg.MessageType)
	}
	if msg.ReplyToID != nil {
		target, err := r.Get(ctx, *msg.ReplyToID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return models.PrivateMessage{}, fmt.Errorf("%w: reply target does not exist", ErrInvalidState)
			}
			return models.PrivateMessage{}, err
		}
		if target.ChatID != msg.ChatID {
			return models.PrivateMessage{}, fmt.Errorf("%w: reply target in a different chat", ErrInvalidState)
		}
	}

	var stored models.PrivateMessage
	query := `INSERT INTO messages (chat_id, sender_id, recipient_id, content, file_url, message_type,
            voice_duration_seconds, reply_to_id, is_emergency)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING ` + messageColumns
	err := r.db.GetContext(ctx, &stored, query,
		msg.ChatID, msg.SenderID, msg.RecipientID, msg.Content, msg.FileURL, msg.MessageType,
		msg.VoiceDurationSeconds, msg.ReplyToID, msg.IsEmergency)
	if err != nil {
		return models.PrivateMessage{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return stored, nil
}

// ListForChat returns all raw rows of a chat in append order: created_at
// ascending with id as the deterministic tie-break. Visibility filtering is
// the engine's job, not the query's.
func (r *MessageRepo) ListForChat(ctx context.Context, chatID int) ([]models.PrivateMessage, error) {
	var msgs []models.PrivateMessage
	query := `SELECT ` + messageColumns + ` FROM messages WHERE chat_id=$1 ORDER BY created_at ASC, id ASC`
	if err := r.db.SelectContext(ctx, &msgs, query, chatID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return msgs, nil
}

// Get retrieves a single message.
func (r *MessageRepo) Get(ctx context.Context, messageID int) (models.PrivateMessage, error) {
	var msg models.PrivateMessage
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PrivateMessage{}, ErrNotFound
	}
	if err != nil {
		return models.PrivateMessage{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return msg, nil
}

// SoftDeletePersonal hides the message for the viewer only, choosing the
// sender or recipient flag by the viewer's role. A missing message is
// already satisfied. Flags are only ever raised, never cleared.
func (r *MessageRepo) SoftDeletePersonal(ctx context.Context, messageID int, viewerID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET
        deleted_by_sender = deleted_by_sender OR (sender_id=$2),
        deleted_by_recipient = deleted_by_recipient OR (recipient_id=$2),
        updated_at = NOW()
        WHERE id=$1 AND (sender_id=$2 OR recipient_id=$2)`, messageID, viewerID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if count == 0 {
		exists, err := r.messageExists(ctx, messageID)
		if err != nil {
			return err
		}
		if exists {
			return ErrUnauthorized
		}
	}
	return nil
}

// SoftDeleteGlobal raises both deletion flags, removing the message for both
// parties. Only the sender may do this; the guard is part of the conditional
// single-row write. A missing message is already satisfied.
func (r *MessageRepo) SoftDeleteGlobal(ctx context.Context, messageID int, actorID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET
        deleted_by_sender = TRUE, deleted_by_recipient = TRUE, updated_at = NOW()
        WHERE id=$1 AND sender_id=$2`, messageID, actorID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if count == 0 {
		exists, err := r.messageExists(ctx, messageID)
		if err != nil {
			return err
		}
		if exists {
			return ErrUnauthorized
		}
	}
	return nil
}

// Edit replaces the content of a text message. Only the sender may edit, and
// only content and updated_at change. Both checks run before the write.
func (r *MessageRepo) Edit(ctx context.Context, messageID int, actorID int, newContent string) (models.PrivateMessage, error) {
	msg, err := r.Get(ctx, messageID)
	if err != nil {
		return models.PrivateMessage{}, err
	}
	if msg.SenderID != actorID {
		return models.PrivateMessage{}, ErrUnauthorized
	}
	if msg.MessageType != models.MessageTypeText {
		return models.PrivateMessage{}, fmt.Errorf("%w: only text messages can be edited", ErrInvalidState)
	}

	var updated models.PrivateMessage
	query := `UPDATE messages SET content=$3, updated_at=NOW()
        WHERE id=$1 AND sender_id=$2 RETURNING ` + messageColumns
	err = r.db.GetContext(ctx, &updated, query, messageID, actorID, newContent)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PrivateMessage{}, ErrNotFound
	}
	if err != nil {
		return models.PrivateMessage{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return updated, nil
}

// MarkReadBulk marks every currently-unread message addressed to the viewer
// in the chat as read. Idempotent: running it with nothing unread is a no-op.
func (r *MessageRepo) MarkReadBulk(ctx context.Context, chatID int, viewerID int) (int, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_read=TRUE, updated_at=NOW()
        WHERE chat_id=$1 AND recipient_id=$2 AND is_read=FALSE`, chatID, viewerID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return int(count), nil
}

// CountUnread recomputes the unread count from the rows. Never derived from
// a cached counter.
func (r *MessageRepo) CountUnread(ctx context.Context, chatID int, viewerID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages
        WHERE chat_id=$1 AND recipient_id=$2 AND is_read=FALSE AND deleted_by_recipient=FALSE`, chatID, viewerID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return count, nil
}

func (r *MessageRepo) messageExists(ctx context.Context, messageID int) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM messages WHERE id=$1)`, messageID); err != nil {
		return false, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return exists, nil
}
