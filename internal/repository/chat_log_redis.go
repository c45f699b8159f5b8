package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"saathi-backend/internal/chat"
	"saathi-backend/internal/models"
)

// RedisLogStore keeps each session's log under a single key that expires
// after ttl without activity, standing in for the browser's session storage.
type RedisLogStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var (
	_ chat.LogStore      = &RedisLogStore{}
	_ chat.LanguageStore = &RedisLogStore{}
)

func NewRedisLogStore(client *redis.Client, ttl time.Duration) *RedisLogStore {
	return &RedisLogStore{client: client, prefix: DefaultKeyPrefix, ttl: ttl}
}

func (s *RedisLogStore) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

// languageKey sits next to the log key and shares its expiry.
func (s *RedisLogStore) languageKey(sessionID string) string {
	return s.key(sessionID) + ":language"
}

func (s *RedisLogStore) Load(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	key := s.key(sessionID)
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "redis get %s", key)
	}
	if s.ttl > 0 {
		// Reading counts as activity; keep the session alive.
		pipe := s.client.TxPipeline()
		pipe.Expire(ctx, key, s.ttl)
		pipe.Expire(ctx, s.languageKey(sessionID), s.ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, errors.Wrapf(err, "redis expire %s", key)
		}
	}
	return decodeLog(data)
}

func (s *RedisLogStore) Save(ctx context.Context, sessionID string, messages []models.ChatMessage) error {
	data, err := encodeLog(messages)
	if err != nil {
		return err
	}
	key := s.key(sessionID)
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return errors.Wrapf(err, "redis set %s", key)
	}
	return nil
}

func (s *RedisLogStore) Delete(ctx context.Context, sessionID string) error {
	key := s.key(sessionID)
	if err := s.client.Del(ctx, key, s.languageKey(sessionID)).Err(); err != nil {
		return errors.Wrapf(err, "redis del %s", key)
	}
	return nil
}

// SaveLanguage records lang for a stored log. It does nothing when no log is
// stored for the session.
func (s *RedisLogStore) SaveLanguage(ctx context.Context, sessionID, lang string) error {
	key := s.key(sessionID)
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return errors.Wrapf(err, "redis exists %s", key)
	}
	if n == 0 {
		return nil
	}
	langKey := s.languageKey(sessionID)
	if err := s.client.Set(ctx, langKey, lang, s.ttl).Err(); err != nil {
		return errors.Wrapf(err, "redis set %s", langKey)
	}
	return nil
}

func (s *RedisLogStore) LoadLanguage(ctx context.Context, sessionID string) (string, error) {
	langKey := s.languageKey(sessionID)
	lang, err := s.client.Get(ctx, langKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "redis get %s", langKey)
	}
	return lang, nil
}
