package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"saathi-backend/internal/models"
)

const storeTimeout = 5 * time.Second

// Options configure a Manager. Store, Answerer and Phrases are required; the
// rest have defaults.
type Options struct {
	Language       string
	Store          LogStore
	Answerer       Answerer
	Phrases        Phrasebook
	Notifier       Notifier
	Scheduler      Scheduler
	Dispatcher     Dispatcher
	Delay          Delay
	RequestTimeout time.Duration
	Now            func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Language == "" {
		o.Language = "en"
	}
	if o.Notifier == nil {
		o.Notifier = nopNotifier{}
	}
	if o.Scheduler == nil {
		o.Scheduler = TimerScheduler()
	}
	if o.Dispatcher == nil {
		o.Dispatcher = GoDispatcher()
	}
	if o.Delay == (Delay{}) {
		o.Delay = DefaultDelay()
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 15 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Manager owns the message log of one chat session. It persists the log on
// every change, sends user questions to the answer service one at a time and
// appends the replies in send order.
type Manager struct {
	id   string
	opts Options
	log  zerolog.Logger

	initMu    sync.Mutex
	persistMu sync.Mutex

	mu           sync.Mutex
	lang         string
	messages     []models.ChatMessage
	lastID       int64
	pending      bool
	queue        []string
	inFlight     bool
	generation   uint64
	suggestions  []string
	lastActivity time.Time
}

func NewManager(sessionID string, opts Options) *Manager {
	opts = opts.withDefaults()
	return &Manager{
		id:           sessionID,
		opts:         opts,
		log:          log.With().Str("component", "chat").Str("session_id", sessionID).Logger(),
		lang:         opts.Language,
		lastActivity: opts.Now(),
	}
}

func (m *Manager) SessionID() string { return m.id }

// Initialize restores the persisted log for the session, or seeds it with a
// single welcome message when nothing is stored. It never replaces a
// non-empty log.
func (m *Manager) Initialize(ctx context.Context, welcome string) (models.SessionSnapshot, error) {
	m.initMu.Lock()
	defer m.initMu.Unlock()

	m.mu.Lock()
	loaded := len(m.messages) > 0
	m.mu.Unlock()
	if loaded {
		return m.Snapshot(), nil
	}

	stored, err := m.load(ctx)
	switch {
	case errors.Is(err, ErrCorruptLog):
		m.log.Warn().Err(err).Msg("discarding unreadable chat log")
		stored = nil
	case err != nil:
		return models.SessionSnapshot{}, errors.Wrap(err, "load chat log")
	}

	if len(stored) > 0 {
		m.mu.Lock()
		m.messages = stored
		for _, msg := range stored {
			if msg.ID > m.lastID {
				m.lastID = msg.ID
			}
		}
		m.lastActivity = m.opts.Now()
		m.mu.Unlock()
		m.log.Debug().Int("messages", len(stored)).Msg("restored chat log")
		return m.Snapshot(), nil
	}

	m.mu.Lock()
	msg, err := m.appendLocked(welcome, models.SenderAgent)
	m.mu.Unlock()
	if err != nil {
		return models.SessionSnapshot{}, errors.Wrap(err, "seed welcome message")
	}
	m.Persist(ctx)
	m.publishAppended(ctx, msg)
	return m.Snapshot(), nil
}

// Submit appends a user message and queues one request to the answer
// service. Blank text is ignored and reported as false. Failures never
// surface here; they end up as an agent message in the log.
func (m *Manager) Submit(ctx context.Context, text string) bool {
	question := strings.TrimSpace(text)
	if question == "" {
		return false
	}

	m.mu.Lock()
	msg, err := m.appendLocked(question, models.SenderUser)
	if err != nil {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, question)
	wasPending := m.pending
	m.pending = true
	next := m.nextRequestLocked()
	m.mu.Unlock()

	m.Persist(ctx)
	m.publishAppended(ctx, msg)
	if !wasPending {
		m.publishPending(ctx, true)
	}
	if next != nil {
		m.opts.Dispatcher.Dispatch(next)
	}
	return true
}

// nextRequestLocked pops the next queued question unless one is in flight.
func (m *Manager) nextRequestLocked() func() {
	if m.inFlight || len(m.queue) == 0 {
		return nil
	}
	question := m.queue[0]
	m.queue = m.queue[1:]
	m.inFlight = true
	gen, lang := m.generation, m.lang
	return func() { m.roundTrip(gen, question, lang) }
}

func (m *Manager) roundTrip(gen uint64, question, lang string) {
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.RequestTimeout)
	resp, err := m.opts.Answerer.Ask(ctx, models.AnswerRequest{
		Question:  question,
		Language:  lang,
		SessionID: m.id,
		Timestamp: m.opts.Now().UTC().Format(time.RFC3339Nano),
	})
	cancel()

	var (
		text        string
		suggestions []string
		delay       time.Duration
	)
	switch {
	case err != nil:
		m.log.Warn().Err(err).Str("language", lang).Msg("answer service failed")
		text = m.opts.Phrases.ErrorMessage(lang)
		delay = m.opts.Delay.Failure
	case resp == nil || strings.TrimSpace(resp.Answer) == "":
		text = m.opts.Phrases.DefaultResponse(lang)
		delay = m.opts.Delay.Success()
	default:
		text = resp.Answer
		suggestions = resp.Suggestions
		delay = m.opts.Delay.Success()
	}

	m.opts.Scheduler.AfterFunc(delay, func() { m.deliver(gen, text, suggestions) })
}

func (m *Manager) deliver(gen uint64, text string, suggestions []string) {
	m.mu.Lock()
	if gen != m.generation {
		// The session was reset while the request was outstanding.
		m.mu.Unlock()
		return
	}
	msg, err := m.appendLocked(text, models.SenderAgent)
	if err != nil {
		m.log.Error().Err(err).Msg("dropping invalid agent reply")
	}
	if len(suggestions) > 0 {
		m.suggestions = suggestions
	}
	m.inFlight = false
	next := m.nextRequestLocked()
	cleared := next == nil
	if cleared {
		m.pending = false
	}
	m.mu.Unlock()

	ctx := context.Background()
	m.Persist(ctx)
	if err == nil {
		m.publishAppended(ctx, msg)
	}
	if cleared {
		m.publishPending(ctx, false)
	}
	if next != nil {
		m.opts.Dispatcher.Dispatch(next)
	}
}

// Persist writes the current log, and the session language when the store
// keeps one. An empty log is never written. Store failures are logged; the in-memory log stays authoritative.
func (m *Manager) Persist(ctx context.Context) {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	msgs := m.Messages()
	if len(msgs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := m.opts.Store.Save(ctx, m.id, msgs); err != nil {
		m.log.Error().Err(err).Int("messages", len(msgs)).Msg("failed to persist chat log")
		return
	}
	if ls, ok := m.opts.Store.(LanguageStore); ok {
		if err := ls.SaveLanguage(ctx, m.id, m.Language()); err != nil {
			m.log.Error().Err(err).Msg("failed to persist session language")
		}
	}
}

// Reset clears the log, any queued questions and the persisted copy. Replies
// still in flight are dropped when they arrive.
func (m *Manager) Reset(ctx context.Context) error {
	m.mu.Lock()
	wasPending := m.pending
	m.messages = nil
	m.lastID = 0
	m.pending = false
	m.queue = nil
	m.inFlight = false
	m.suggestions = nil
	m.generation++
	m.lastActivity = m.opts.Now()
	m.mu.Unlock()

	m.persistMu.Lock()
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	err := m.opts.Store.Delete(sctx, m.id)
	cancel()
	m.persistMu.Unlock()

	m.opts.Notifier.Publish(ctx, m.id, models.WSMessage{
		Type:    models.EventSessionReset,
		Payload: models.SessionReset{SessionID: m.id},
	})
	if wasPending {
		m.publishPending(ctx, false)
	}
	if err != nil {
		return errors.Wrap(err, "delete persisted chat log")
	}
	return nil
}

// SetLanguage changes the language sent with later requests and used for
// fallback replies.
func (m *Manager) SetLanguage(lang string) {
	if lang == "" {
		return
	}
	m.mu.Lock()
	m.lang = lang
	m.mu.Unlock()
}

func (m *Manager) Language() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lang
}

func (m *Manager) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// Messages returns a copy of the log.
func (m *Manager) Messages() []models.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ChatMessage(nil), m.messages...)
}

func (m *Manager) Snapshot() models.SessionSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.SessionSnapshot{
		SessionID:   m.id,
		Language:    m.lang,
		Messages:    append([]models.ChatMessage{}, m.messages...),
		Pending:     m.pending,
		Suggestions: append([]string(nil), m.suggestions...),
	}
}

// IdleSince reports when the session last changed.
func (m *Manager) IdleSince() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActivity
}

func (m *Manager) appendLocked(text string, sender models.Sender) (models.ChatMessage, error) {
	now := m.opts.Now()
	id := now.UnixMilli()
	if id <= m.lastID {
		id = m.lastID + 1
	}
	msg, err := models.NewChatMessage(id, text, sender, now)
	if err != nil {
		return models.ChatMessage{}, err
	}
	m.lastID = id
	m.messages = append(m.messages, msg)
	m.lastActivity = now
	return msg, nil
}

func (m *Manager) load(ctx context.Context) ([]models.ChatMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	return m.opts.Store.Load(ctx, m.id)
}

func (m *Manager) publishAppended(ctx context.Context, msg models.ChatMessage) {
	m.opts.Notifier.Publish(ctx, m.id, models.WSMessage{
		Type:    models.EventMessageAppended,
		Payload: models.MessageAppended{SessionID: m.id, Message: msg},
	})
}

func (m *Manager) publishPending(ctx context.Context, pending bool) {
	m.opts.Notifier.Publish(ctx, m.id, models.WSMessage{
		Type:    models.EventPendingChanged,
		Payload: models.PendingChanged{SessionID: m.id, Pending: pending},
	})
}
