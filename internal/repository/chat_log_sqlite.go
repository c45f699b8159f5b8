package repository

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"saathi-backend/internal/chat"
	"saathi-backend/internal/models"
)

// SQLiteLogStore is a single-file backend for local runs.
type SQLiteLogStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

var (
	_ chat.LogStore      = &SQLiteLogStore{}
	_ chat.LanguageStore = &SQLiteLogStore{}
)

func NewSQLiteLogStore(dsn string, ttl time.Duration) (*SQLiteLogStore, error) {
	if dsn == "" {
		return nil, errors.New("sqlite chat log store: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// sqlite3 serializes writers anyway; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	s := &SQLiteLogStore{db: db, ttl: ttl, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteLogStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS chat_logs (
			session_id    TEXT PRIMARY KEY,
			messages      TEXT NOT NULL,
			message_count INTEGER NOT NULL,
			updated_at_ms INTEGER NOT NULL,
			expires_at_ms INTEGER NOT NULL,
			language      TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS chat_logs_expires_idx ON chat_logs (expires_at_ms);
	`)
	if err != nil {
		return errors.Wrap(err, "sqlite chat log store: migrate")
	}

	// Files created before the language column existed.
	var n int
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info('chat_logs') WHERE name = 'language'`,
	).Scan(&n); err != nil {
		return errors.Wrap(err, "sqlite chat log store: inspect schema")
	}
	if n == 0 {
		if _, err := s.db.Exec(`ALTER TABLE chat_logs ADD COLUMN language TEXT NOT NULL DEFAULT ''`); err != nil {
			return errors.Wrap(err, "sqlite chat log store: add language column")
		}
	}
	return nil
}

func (s *SQLiteLogStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteLogStore) expiry(now time.Time) int64 {
	return now.Add(s.ttl).UnixMilli()
}

func (s *SQLiteLogStore) Load(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	now := s.now()
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT messages FROM chat_logs WHERE session_id = ? AND expires_at_ms > ?`,
		sessionID, now.UnixMilli(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "sqlite chat log store: load")
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE chat_logs SET expires_at_ms = ? WHERE session_id = ?`,
		s.expiry(now), sessionID,
	); err != nil {
		return nil, errors.Wrap(err, "sqlite chat log store: touch")
	}
	return decodeLog([]byte(data))
}

func (s *SQLiteLogStore) Save(ctx context.Context, sessionID string, messages []models.ChatMessage) error {
	data, err := encodeLog(messages)
	if err != nil {
		return err
	}
	now := s.now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chat_logs (session_id, messages, message_count, updated_at_ms, expires_at_ms)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			messages = excluded.messages,
			message_count = excluded.message_count,
			updated_at_ms = excluded.updated_at_ms,
			expires_at_ms = excluded.expires_at_ms
	`, sessionID, string(data), len(messages), now.UnixMilli(), s.expiry(now))
	return errors.Wrap(err, "sqlite chat log store: save")
}

func (s *SQLiteLogStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chat_logs WHERE session_id = ?`, sessionID)
	return errors.Wrap(err, "sqlite chat log store: delete")
}

// SaveLanguage records lang for a stored, unexpired log.
func (s *SQLiteLogStore) SaveLanguage(ctx context.Context, sessionID, lang string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE chat_logs SET language = ? WHERE session_id = ? AND expires_at_ms > ?`,
		lang, sessionID, s.now().UnixMilli(),
	)
	return errors.Wrap(err, "sqlite chat log store: save language")
}

func (s *SQLiteLogStore) LoadLanguage(ctx context.Context, sessionID string) (string, error) {
	var lang string
	err := s.db.QueryRowContext(ctx,
		`SELECT language FROM chat_logs WHERE session_id = ? AND expires_at_ms > ?`,
		sessionID, s.now().UnixMilli(),
	).Scan(&lang)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "sqlite chat log store: load language")
	}
	return lang, nil
}

func (s *SQLiteLogStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_logs WHERE expires_at_ms <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0, errors.Wrap(err, "sqlite chat log store: purge")
	}
	return res.RowsAffected()
}
