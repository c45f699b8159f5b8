package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"saathi-backend/internal/chat"
	"saathi-backend/internal/models"
)

// ChatLogRepo stores session logs in PostgreSQL. Rows carry an expiry so a
// session ends the same way it does with the Redis backend.
type ChatLogRepo struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

var (
	_ chat.LogStore      = &ChatLogRepo{}
	_ chat.LanguageStore = &ChatLogRepo{}
)

func NewChatLogRepo(pool *pgxpool.Pool, ttl time.Duration) *ChatLogRepo {
	return &ChatLogRepo{pool: pool, ttl: ttl}
}

func (r *ChatLogRepo) Load(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, `
		UPDATE chat_logs
		SET expires_at = NOW() + make_interval(secs => $2)
		WHERE session_id = $1 AND expires_at > NOW()
		RETURNING messages
	`, sessionID, r.ttl.Seconds()).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load chat log")
	}
	return decodeLog(data)
}

func (r *ChatLogRepo) Save(ctx context.Context, sessionID string, messages []models.ChatMessage) error {
	data, err := encodeLog(messages)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO chat_logs (session_id, messages, message_count, updated_at, expires_at)
		VALUES ($1, $2, $3, NOW(), NOW() + make_interval(secs => $4))
		ON CONFLICT (session_id) DO UPDATE SET
			messages = EXCLUDED.messages,
			message_count = EXCLUDED.message_count,
			updated_at = EXCLUDED.updated_at,
			expires_at = EXCLUDED.expires_at
	`, sessionID, data, len(messages), r.ttl.Seconds())
	if err != nil {
		return errors.Wrap(err, "save chat log")
	}
	return nil
}

func (r *ChatLogRepo) Delete(ctx context.Context, sessionID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM chat_logs WHERE session_id = $1`, sessionID); err != nil {
		return errors.Wrap(err, "delete chat log")
	}
	return nil
}

// SaveLanguage records lang for a stored, unexpired log.
func (r *ChatLogRepo) SaveLanguage(ctx context.Context, sessionID, lang string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE chat_logs SET language = $2 WHERE session_id = $1 AND expires_at > NOW()`,
		sessionID, lang,
	)
	if err != nil {
		return errors.Wrap(err, "save chat log language")
	}
	return nil
}

func (r *ChatLogRepo) LoadLanguage(ctx context.Context, sessionID string) (string, error) {
	var lang string
	err := r.pool.QueryRow(ctx,
		`SELECT language FROM chat_logs WHERE session_id = $1 AND expires_at > NOW()`,
		sessionID,
	).Scan(&lang)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "load chat log language")
	}
	return lang, nil
}

// PurgeExpired removes logs whose session has ended.
func (r *ChatLogRepo) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM chat_logs WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, errors.Wrap(err, "purge expired chat logs")
	}
	return tag.RowsAffected(), nil
}
