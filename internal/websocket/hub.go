package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"saathi-backend/internal/chat"
	"saathi-backend/internal/models"
)

const (
	channelPrefix = "chat_updates:"
	writeWait     = 5 * time.Second
)

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub fans session events out to the websocket connections watching that
// session. With a Redis client, events go through pub/sub so every replica
// sees them; without one they are delivered in-process.
type Hub struct {
	mu          sync.RWMutex
	connections map[string][]*client
	redisClient *redis.Client
	cancelFuncs map[string]context.CancelFunc
	upgrader    websocket.Upgrader
}

var _ chat.Notifier = &Hub{}

// NewHub builds a hub. redisClient may be nil. allowedOrigin restricts the
// upgrade to one origin; empty or "*" accepts any.
func NewHub(redisClient *redis.Client, allowedOrigin string) *Hub {
	return &Hub{
		connections: make(map[string][]*client),
		redisClient: redisClient,
		cancelFuncs: make(map[string]context.CancelFunc),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "" || allowedOrigin == "*" || origin == "" || origin == allowedOrigin
			},
		},
	}
}

// Serve upgrades the request and streams events for sessionID until the
// client goes away. The caller is responsible for checking the session exists.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("websocket upgrade failed")
		return
	}

	c := &client{conn: conn}
	h.registerConnection(sessionID, c)

	// Reads only detect the disconnect; clients never send anything we use.
	go func() {
		defer h.unregisterConnection(sessionID, c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Publish implements chat.Notifier.
func (h *Hub) Publish(ctx context.Context, sessionID string, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("event", msg.Type).Msg("failed to encode websocket event")
		return
	}

	if h.redisClient == nil {
		h.broadcast(sessionID, data)
		return
	}
	if err := h.redisClient.Publish(context.WithoutCancel(ctx), channelPrefix+sessionID, data).Err(); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Str("event", msg.Type).Msg("failed to publish websocket event")
	}
}

// Connections reports how many sockets are watching sessionID.
func (h *Hub) Connections(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[sessionID])
}

// Close drops every connection and subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, conns := range h.connections {
		for _, c := range conns {
			c.conn.Close()
		}
		delete(h.connections, id)
	}
	for id, cancel := range h.cancelFuncs {
		cancel()
		delete(h.cancelFuncs, id)
	}
}

func (h *Hub) registerConnection(sessionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[sessionID] = append(h.connections[sessionID], c)

	// First watcher of a session starts the pub/sub subscription.
	if h.redisClient != nil && len(h.connections[sessionID]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[sessionID] = cancel
		go h.subscribeToPubSub(ctx, sessionID)
	}

	log.Debug().Str("session_id", sessionID).Int("connections", len(h.connections[sessionID])).Msg("websocket connected")
}

func (h *Hub) unregisterConnection(sessionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.conn.Close()

	conns := h.connections[sessionID]
	for i, existing := range conns {
		if existing == c {
			h.connections[sessionID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	if len(h.connections[sessionID]) == 0 {
		delete(h.connections, sessionID)
		if cancel, ok := h.cancelFuncs[sessionID]; ok {
			cancel()
			delete(h.cancelFuncs, sessionID)
		}
	}

	log.Debug().Str("session_id", sessionID).Msg("websocket disconnected")
}

func (h *Hub) subscribeToPubSub(ctx context.Context, sessionID string) {
	pubsub := h.redisClient.Subscribe(ctx, channelPrefix+sessionID)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(sessionID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(sessionID string, data []byte) {
	h.mu.RLock()
	conns := append([]*client(nil), h.connections[sessionID]...)
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.write(data); err != nil {
			log.Debug().Err(err).Str("session_id", sessionID).Msg("websocket write failed")
		}
	}
}
