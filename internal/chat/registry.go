package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Registry keeps one Manager per live session id. Managers are created on
// first use and restored from the store, so a session survives the process
// forgetting about it for as long as its persisted log does.
type Registry struct {
	opts    Options
	welcome func(lang string) string

	mu       sync.Mutex
	sessions map[string]*entry
}

// entry holds a manager that becomes visible to callers only once ready is
// closed and its persisted log has been restored.
type entry struct {
	m     *Manager
	ready chan struct{}
	err   error
}

func (e *entry) wait(ctx context.Context) error {
	select {
	case <-e.ready:
		return e.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *entry) initialized() bool {
	select {
	case <-e.ready:
		return e.err == nil
	default:
		return false
	}
}

// NewRegistry builds managers from opts; welcome supplies the greeting for a
// fresh session in the session's language.
func NewRegistry(opts Options, welcome func(lang string) string) *Registry {
	return &Registry{
		opts:     opts.withDefaults(),
		welcome:  welcome,
		sessions: make(map[string]*entry),
	}
}

// Open returns the manager for sessionID, creating and initializing it if
// needed. An empty id starts a new session under a generated id. Concurrent
// callers for the same id wait for the first one to finish initializing.
func (r *Registry) Open(ctx context.Context, sessionID, lang string) (*Manager, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	for {
		r.mu.Lock()
		e, ok := r.sessions[sessionID]
		if !ok {
			opts := r.opts
			if lang != "" {
				opts.Language = lang
			}
			e = &entry{m: NewManager(sessionID, opts), ready: make(chan struct{})}
			r.sessions[sessionID] = e
		}
		r.mu.Unlock()

		if !ok {
			return r.initialize(ctx, sessionID, e)
		}
		if err := e.wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			// The initializing caller failed and dropped the entry; try again.
			continue
		}
		e.m.SetLanguage(lang)
		return e.m, nil
	}
}

func (r *Registry) initialize(ctx context.Context, sessionID string, e *entry) (*Manager, error) {
	_, err := e.m.Initialize(ctx, r.welcome(e.m.Language()))
	e.err = err
	if err != nil {
		r.mu.Lock()
		if r.sessions[sessionID] == e {
			delete(r.sessions, sessionID)
		}
		r.mu.Unlock()
	}
	close(e.ready)
	if err != nil {
		return nil, err
	}
	return e.m, nil
}

// Get returns the manager for sessionID, waiting for it to finish
// initializing if another caller is still restoring it.
func (r *Registry) Get(sessionID string) (*Manager, error) {
	r.mu.Lock()
	e, ok := r.sessions[sessionID]
	r.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if err := e.wait(context.Background()); err != nil {
		return nil, ErrSessionNotFound
	}
	return e.m, nil
}

// Lookup returns the live manager for sessionID, restoring it from the store
// when the registry has already forgotten it. Sessions with nothing stored
// are reported as ErrSessionNotFound.
func (r *Registry) Lookup(ctx context.Context, sessionID string) (*Manager, error) {
	if m, err := r.Get(sessionID); err == nil {
		return m, nil
	}
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}

	lctx, cancel := context.WithTimeout(ctx, storeTimeout)
	stored, err := r.opts.Store.Load(lctx, sessionID)
	cancel()
	if err != nil && !errors.Is(err, ErrCorruptLog) {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, ErrSessionNotFound
	}
	return r.Open(ctx, sessionID, r.storedLanguage(ctx, sessionID))
}

// storedLanguage returns the language persisted for sessionID, or "" when the
// store does not keep one.
func (r *Registry) storedLanguage(ctx context.Context, sessionID string) string {
	ls, ok := r.opts.Store.(LanguageStore)
	if !ok {
		return ""
	}
	lctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	lang, err := ls.LoadLanguage(lctx, sessionID)
	if err != nil {
		log.Warn().Err(err).Str("component", "chat").Str("session_id", sessionID).Msg("failed to load session language")
		return ""
	}
	return lang
}

// Reset clears the session's log and persisted copy and forgets the manager.
// Unknown ids still have their persisted copy removed.
func (r *Registry) Reset(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	e, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	if ok && e.wait(ctx) == nil {
		return e.m.Reset(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	return r.opts.Store.Delete(ctx, sessionID)
}

// Sweep drops managers idle for longer than idle. Sessions waiting on the
// answer service are kept. It returns the number of managers dropped.
func (r *Registry) Sweep(now time.Time, idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, e := range r.sessions {
		if !e.initialized() || e.m.Pending() || now.Sub(e.m.IdleSince()) < idle {
			continue
		}
		delete(r.sessions, id)
		n++
	}
	if n > 0 {
		log.Debug().Str("component", "chat").Int("evicted", n).Int("live", len(r.sessions)).Msg("swept idle sessions")
	}
	return n
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
