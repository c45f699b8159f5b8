package chat_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saathi-backend/internal/chat"
	"saathi-backend/internal/models"
	"saathi-backend/internal/repository"
)

func welcomeFor(lang string) string {
	if lang == "hi" {
		return "नमस्ते!"
	}
	return "Hello!"
}

func TestRegistry_OpenCreatesAndReuses(t *testing.T) {
	f := newFixture(answerWith("ok"))
	r := chat.NewRegistry(f.opts, welcomeFor)
	ctx := context.Background()

	m, err := r.Open(ctx, "", "hi")
	require.NoError(t, err)
	require.NotEmpty(t, m.SessionID())
	assert.Equal(t, []string{"agent:नमस्ते!"}, texts(m.Messages()))

	again, err := r.Open(ctx, m.SessionID(), "")
	require.NoError(t, err)
	assert.Same(t, m, again)
	assert.Len(t, again.Messages(), 1)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_LookupRestoresEvictedSession(t *testing.T) {
	f := newFixture(answerWith("ok"))
	r := chat.NewRegistry(f.opts, welcomeFor)
	ctx := context.Background()

	m, err := r.Open(ctx, "s1", "en")
	require.NoError(t, err)
	m.Submit(ctx, "hi")
	f.scheduler.Flush()

	evicted := r.Sweep(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), time.Minute)
	assert.Equal(t, 1, evicted)
	_, err = r.Get("s1")
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)

	restored, err := r.Lookup(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"agent:Hello!", "user:hi", "agent:ok"}, texts(restored.Messages()))

	_, err = r.Lookup(ctx, "never-seen")
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestRegistry_SweepKeepsPendingAndRecent(t *testing.T) {
	f := newFixture(answerWith("ok"))
	r := chat.NewRegistry(f.opts, welcomeFor)
	ctx := context.Background()

	busy, err := r.Open(ctx, "busy", "en")
	require.NoError(t, err)
	busy.Submit(ctx, "waiting")
	require.True(t, busy.Pending())

	_, err = r.Open(ctx, "recent", "en")
	require.NoError(t, err)

	now := busy.IdleSince().Add(30 * time.Second)
	assert.Equal(t, 0, r.Sweep(now, time.Hour))
	assert.Equal(t, 1, r.Sweep(now.Add(2*time.Hour), time.Hour))
	assert.Equal(t, 1, r.Len())
	_, err = r.Get("busy")
	assert.NoError(t, err)
}

func TestRegistry_Reset(t *testing.T) {
	f := newFixture(answerWith("ok"))
	r := chat.NewRegistry(f.opts, welcomeFor)
	ctx := context.Background()

	_, err := r.Open(ctx, "s1", "en")
	require.NoError(t, err)
	require.NoError(t, r.Reset(ctx, "s1"))

	_, err = r.Get("s1")
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
	stored, err := f.store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, stored)

	// Resetting an id only present in the store still clears it.
	require.NoError(t, f.store.Save(ctx, "orphan", []models.ChatMessage{
		{ID: 1, Text: "Hello!", Sender: models.SenderAgent, Timestamp: time.Now().UTC()},
	}))
	require.NoError(t, r.Reset(ctx, "orphan"))
	stored, err = f.store.Load(ctx, "orphan")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

// blockingStore holds the first Load until release is closed.
type blockingStore struct {
	*repository.MemoryLogStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *blockingStore) Load(ctx context.Context, id string) ([]models.ChatMessage, error) {
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		<-s.release
	}
	return s.MemoryLogStore.Load(ctx, id)
}

func TestRegistry_SubmitDuringRestoreKeepsHistory(t *testing.T) {
	f := newFixture(answerWith("ok"))
	ctx := context.Background()
	ts := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, f.store.Save(ctx, "s1", []models.ChatMessage{
		{ID: 1, Text: "Hello!", Sender: models.SenderAgent, Timestamp: ts},
		{ID: 2, Text: "earlier", Sender: models.SenderUser, Timestamp: ts},
		{ID: 3, Text: "earlier answer", Sender: models.SenderAgent, Timestamp: ts},
	}))

	store := &blockingStore{MemoryLogStore: f.store, entered: make(chan struct{}), release: make(chan struct{})}
	f.opts.Store = store
	r := chat.NewRegistry(f.opts, welcomeFor)

	opened := make(chan error, 1)
	go func() {
		_, err := r.Open(ctx, "s1", "en")
		opened <- err
	}()
	<-store.entered

	submitted := make(chan bool, 1)
	go func() {
		m, err := r.Get("s1")
		if err != nil {
			submitted <- false
			return
		}
		submitted <- m.Submit(ctx, "new question")
	}()
	time.Sleep(20 * time.Millisecond)
	close(store.release)

	require.NoError(t, <-opened)
	require.True(t, <-submitted)

	m, err := r.Get("s1")
	require.NoError(t, err)
	want := []string{"agent:Hello!", "user:earlier", "agent:earlier answer", "user:new question"}
	assert.Equal(t, want, texts(m.Messages()))

	stored, err := f.store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, want, texts(stored))

	f.scheduler.Flush()
	stored, err = f.store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, append(want, "agent:ok"), texts(stored))
}

func TestRegistry_LookupKeepsLanguage(t *testing.T) {
	f := newFixture(answerWith("ok"))
	r := chat.NewRegistry(f.opts, welcomeFor)
	ctx := context.Background()

	m, err := r.Open(ctx, "s1", "hi")
	require.NoError(t, err)
	m.SetLanguage("ml")
	m.Persist(ctx)

	require.Equal(t, 1, r.Sweep(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), time.Minute))

	restored, err := r.Lookup(ctx, "s1")
	require.NoError(t, err)
	assert.NotSame(t, m, restored)
	assert.Equal(t, "ml", restored.Language())
	assert.Equal(t, []string{"agent:नमस्ते!"}, texts(restored.Messages()))
}
