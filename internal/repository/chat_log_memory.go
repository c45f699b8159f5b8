package repository

import (
	"context"
	"sync"
	"time"

	"saathi-backend/internal/chat"
	"saathi-backend/internal/models"
)

type memoryEntry struct {
	data      []byte
	lang      string
	expiresAt time.Time
}

// MemoryLogStore keeps serialized logs in process memory. Logs are stored
// encoded so a restore goes through the same decoding as the other backends.
// Entries expire ttl after their last read or write; a ttl of zero keeps them
// until deleted.
type MemoryLogStore struct {
	ttl time.Duration
	now func() time.Time

	mu   sync.RWMutex
	logs map[string]*memoryEntry
}

var (
	_ chat.LogStore      = &MemoryLogStore{}
	_ chat.LanguageStore = &MemoryLogStore{}
)

func NewMemoryLogStore(ttl time.Duration) *MemoryLogStore {
	return &MemoryLogStore{ttl: ttl, now: time.Now, logs: make(map[string]*memoryEntry)}
}

func (s *MemoryLogStore) expired(e *memoryEntry, now time.Time) bool {
	return s.ttl > 0 && !now.Before(e.expiresAt)
}

// live returns the unexpired entry for sessionID and slides its expiry.
// Callers hold s.mu for writing.
func (s *MemoryLogStore) live(sessionID string) *memoryEntry {
	e, ok := s.logs[sessionID]
	if !ok {
		return nil
	}
	now := s.now()
	if s.expired(e, now) {
		delete(s.logs, sessionID)
		return nil
	}
	e.expiresAt = now.Add(s.ttl)
	return e
}

func (s *MemoryLogStore) Load(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	s.mu.Lock()
	var data []byte
	if e := s.live(sessionID); e != nil {
		data = e.data
	}
	s.mu.Unlock()
	if data == nil {
		return nil, nil
	}
	return decodeLog(data)
}

func (s *MemoryLogStore) Save(ctx context.Context, sessionID string, messages []models.ChatMessage) error {
	data, err := encodeLog(messages)
	if err != nil {
		return err
	}
	s.Put(sessionID, data)
	return nil
}

func (s *MemoryLogStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.logs, sessionID)
	s.mu.Unlock()
	return nil
}

// SaveLanguage records lang for a stored log. It does nothing when no log is
// stored for the session.
func (s *MemoryLogStore) SaveLanguage(ctx context.Context, sessionID, lang string) error {
	s.mu.Lock()
	if e := s.live(sessionID); e != nil {
		e.lang = lang
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryLogStore) LoadLanguage(ctx context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.live(sessionID); e != nil {
		return e.lang, nil
	}
	return "", nil
}

// PurgeExpired drops every entry whose session has ended.
func (s *MemoryLogStore) PurgeExpired(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, e := range s.logs {
		if s.expired(e, now) {
			delete(s.logs, id)
			n++
		}
	}
	return n, nil
}

// Put stores raw bytes for a session, bypassing encoding. An existing
// language is kept.
func (s *MemoryLogStore) Put(sessionID string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(sessionID)
	if e == nil {
		e = &memoryEntry{}
		s.logs[sessionID] = e
	}
	e.data = data
	e.expiresAt = s.now().Add(s.ttl)
}

func (s *MemoryLogStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs)
}
