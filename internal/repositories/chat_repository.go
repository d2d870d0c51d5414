package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/petvoice/chat-service/internal/models"
)

const chatColumns = `id, participant1_id, participant2_id, initiated_by, is_active,
    deleted_by_participant1, deleted_by_participant2, created_at, updated_at, last_message_at, deleted_at`

// ChatRepository abstracts chat lifecycle persistence.
type ChatRepository interface {
	GetOrCreate(ctx context.Context, userID int, otherID int) (models.Chat, error)
	Get(ctx context.Context, chatID int) (models.Chat, error)
	ListForUser(ctx context.Context, userID int) ([]models.Chat, error)
	DeleteForOne(ctx context.Context, chatID int, actorID int) error
	DeleteForBoth(ctx context.Context, chatID int) error
	ReactivateIfNeeded(ctx context.Context, chatID int, at time.Time) (bool, error)
	TouchLastMessage(ctx context.Context, chatID int, at time.Time) error
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// GetOrCreate returns the chat between the two users, creating it lazily on
// first contact. Lookup checks both participant orderings. Resolving a closed
// chat through this path is a deliberate re-open: the closed state is cleared.
func (r *ChatRepo) GetOrCreate(ctx context.Context, userID int, otherID int) (models.Chat, error) {
	if userID == otherID {
		return models.Chat{}, fmt.Errorf("%w: cannot chat with self", ErrInvalidState)
	}

	var chat models.Chat
	query := `SELECT ` + chatColumns + ` FROM chats
        WHERE (participant1_id=$1 AND participant2_id=$2) OR (participant1_id=$2 AND participant2_id=$1)`
	err := r.db.GetContext(ctx, &chat, query, userID, otherID)
	if err == nil {
		if chat.DeletedAt != nil {
			return r.reopen(ctx, chat.ID)
		}
		return chat, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	insert := `INSERT INTO chats (participant1_id, participant2_id, initiated_by)
        VALUES ($1, $2, $1) RETURNING ` + chatColumns
	if err := r.db.GetContext(ctx, &chat, insert, userID, otherID); err != nil {
		return models.Chat{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return chat, nil
}

func (r *ChatRepo) reopen(ctx context.Context, chatID int) (models.Chat, error) {
	var chat models.Chat
	query := `UPDATE chats SET deleted_at=NULL, deleted_by_participant1=FALSE,
        deleted_by_participant2=FALSE, updated_at=NOW() WHERE id=$1 RETURNING ` + chatColumns
	if err := r.db.GetContext(ctx, &chat, query, chatID); err != nil {
		return models.Chat{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return chat, nil
}

// Get fetches a chat by id.
func (r *ChatRepo) Get(ctx context.Context, chatID int) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrNotFound
	}
	if err != nil {
		return models.Chat{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return chat, nil
}

// ListForUser returns the user's chats that the user has not hidden, most
// recent activity first.
func (r *ChatRepo) ListForUser(ctx context.Context, userID int) ([]models.Chat, error) {
	query := `SELECT ` + chatColumns + ` FROM chats
        WHERE (participant1_id=$1 AND deleted_by_participant1 = FALSE)
           OR (participant2_id=$1 AND deleted_by_participant2 = FALSE)
        ORDER BY last_message_at DESC NULLS LAST, created_at DESC`
	var chats []models.Chat
	if err := r.db.SelectContext(ctx, &chats, query, userID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return chats, nil
}

// DeleteForOne hides the chat for the acting participant only. deleted_at is
// untouched. A missing chat is already satisfied.
func (r *ChatRepo) DeleteForOne(ctx context.Context, chatID int, actorID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chats SET
        deleted_by_participant1 = deleted_by_participant1 OR (participant1_id=$2),
        deleted_by_participant2 = deleted_by_participant2 OR (participant2_id=$2),
        updated_at = NOW()
        WHERE id=$1 AND (participant1_id=$2 OR participant2_id=$2)`, chatID, actorID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if count == 0 {
		exists, err := r.exists(ctx, chatID)
		if err != nil {
			return err
		}
		if exists {
			return ErrUnauthorized
		}
	}
	return nil
}

// DeleteForBoth sets both deletion flags and stamps deleted_at, closing the
// chat for normal use.
func (r *ChatRepo) DeleteForBoth(ctx context.Context, chatID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE chats SET deleted_by_participant1=TRUE,
        deleted_by_participant2=TRUE, deleted_at=NOW(), updated_at=NOW() WHERE id=$1`, chatID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return nil
}

// ReactivateIfNeeded clears both deletion flags and stamps last_message_at
// when a new message arrives for a chat that at least one side had hidden.
// Closed chats (deleted_at set) are inert and never reactivated here.
// Returns true when a reactivation actually happened.
func (r *ChatRepo) ReactivateIfNeeded(ctx context.Context, chatID int, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE chats SET
        deleted_by_participant1=FALSE, deleted_by_participant2=FALSE,
        last_message_at=$2, updated_at=NOW()
        WHERE id=$1 AND deleted_at IS NULL
          AND (deleted_by_participant1 = TRUE OR deleted_by_participant2 = TRUE)`, chatID, at)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return count > 0, nil
}

// TouchLastMessage stamps the chat's last activity time.
func (r *ChatRepo) TouchLastMessage(ctx context.Context, chatID int, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE chats SET last_message_at=$2, updated_at=NOW() WHERE id=$1`, chatID, at)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return nil
}

func (r *ChatRepo) exists(ctx context.Context, chatID int) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chats WHERE id=$1)`, chatID); err != nil {
		return false, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return exists, nil
}
