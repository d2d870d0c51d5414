package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/petvoice/chat-service/internal/logger"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS chats (
            id SERIAL PRIMARY KEY,
            participant1_id INT NOT NULL,
            participant2_id INT NOT NULL,
            initiated_by INT NOT NULL,
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            deleted_by_participant1 BOOLEAN NOT NULL DEFAULT FALSE,
            deleted_by_participant2 BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            last_message_at TIMESTAMPTZ,
            deleted_at TIMESTAMPTZ,
            UNIQUE(participant1_id, participant2_id)
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id SERIAL PRIMARY KEY,
            chat_id INT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            sender_id INT NOT NULL,
            recipient_id INT NOT NULL,
            content TEXT,
            file_url TEXT,
            message_type TEXT NOT NULL DEFAULT 'text',
            voice_duration_seconds INT,
            reply_to_id INT REFERENCES messages(id),
            is_emergency BOOLEAN NOT NULL DEFAULT FALSE,
            is_read BOOLEAN NOT NULL DEFAULT FALSE,
            deleted_by_sender BOOLEAN NOT NULL DEFAULT FALSE,
            deleted_by_recipient BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat_created ON messages (chat_id, created_at, id);`,
		`CREATE TABLE IF NOT EXISTS channel_messages (
            id SERIAL PRIMARY KEY,
            channel_id INT NOT NULL,
            sender_id INT NOT NULL,
            content TEXT,
            file_url TEXT,
            message_type TEXT NOT NULL DEFAULT 'text',
            voice_duration_seconds INT,
            reply_to_id INT REFERENCES channel_messages(id),
            is_emergency BOOLEAN NOT NULL DEFAULT FALSE,
            deleted_by_all BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_channel_messages_channel_created ON channel_messages (channel_id, created_at, id);`,
		`CREATE TABLE IF NOT EXISTS channel_message_deletions (
            message_id INT NOT NULL REFERENCES channel_messages(id) ON DELETE CASCADE,
            user_id INT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY(message_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS profiles (
            id INT PRIMARY KEY,
            display_name TEXT NOT NULL DEFAULT ''
        );`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	logger.Info().Msg("database migrations applied")
	return nil
}
