package wshub

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"picturebuzz/internal/events"
	"picturebuzz/internal/rooms"
)

// Client represents a single WebSocket connection in the hub.
type Client struct {
	ID      rooms.ConnID
	Conn    *websocket.Conn
	Send    chan []byte
	limiter *rate.Limiter
}

// NewClient wraps conn with a send buffer of size buf and an inbound
// limit of perSec messages with the given burst. perSec <= 0 disables
// the limit.
func NewClient(id rooms.ConnID, conn *websocket.Conn, buf int, perSec float64, burst int) *Client {
	limit := rate.Inf
	if perSec > 0 {
		limit = rate.Limit(perSec)
	}
	return &Client{
		ID:      id,
		Conn:    conn,
		Send:    make(chan []byte, buf),
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Allow reports whether the client may send another message now.
func (c *Client) Allow() bool {
	return c.limiter.Allow()
}

// WritePump reads from the Send channel and writes to the WebSocket connection.
func (c *Client) WritePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.Send:
			if !ok {
				return
			}
			if err := c.Conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}
}

// Hub tracks live connections and which room channels they listen on.
type Hub struct {
	mu      sync.RWMutex
	clients map[rooms.ConnID]*Client
	rooms   map[string]map[rooms.ConnID]bool
	dropped atomic.Uint64
	log     zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[rooms.ConnID]*Client),
		rooms:   make(map[string]map[rooms.ConnID]bool),
		log:     log.With().Str("component", "wshub").Logger(),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

// Unregister removes a client from the hub and every room, then closes
// its Send channel.
func (h *Hub) Unregister(id rooms.ConnID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	if !ok {
		return
	}
	for code, members := range h.rooms {
		delete(members, id)
		if len(members) == 0 {
			delete(h.rooms, code)
		}
	}
	delete(h.clients, id)
	close(c.Send)
}

// Join subscribes id to room broadcasts.
func (h *Hub) Join(room string, id rooms.ConnID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[id]; !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[rooms.ConnID]bool)
	}
	h.rooms[room][id] = true
}

func (h *Hub) Leave(room string, id rooms.ConnID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms[room], id)
	if len(h.rooms[room]) == 0 {
		delete(h.rooms, room)
	}
}

// CloseRoom forgets room without touching the connections themselves.
func (h *Hub) CloseRoom(room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms, room)
}

func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped counts messages skipped because a client's buffer was full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

func (h *Hub) encode(env events.Envelope) ([]byte, bool) {
	data, err := json.Marshal(env)
	if err != nil {
		h.log.Error().Err(err).Str("type", env.Type).Msg("marshal envelope")
		return nil, false
	}
	return data, true
}

// deliver must be called with h.mu held. Non-blocking: drops if channel full.
func (h *Hub) deliver(c *Client, data []byte) bool {
	select {
	case c.Send <- data:
		return true
	default:
		h.dropped.Add(1)
		h.log.Warn().Str("conn", string(c.ID)).Msg("send buffer full, dropping message")
		return false
	}
}

// SendTo delivers env to a single connection.
func (h *Hub) SendTo(id rooms.ConnID, env events.Envelope) bool {
	data, ok := h.encode(env)
	if !ok {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	if !ok {
		return false
	}
	return h.deliver(c, data)
}

// Broadcast delivers env to every connection in room.
func (h *Hub) Broadcast(room string, env events.Envelope) {
	h.BroadcastExcept(room, "", env)
}

// BroadcastExcept delivers env to every connection in room but skip.
func (h *Hub) BroadcastExcept(room string, skip rooms.ConnID, env events.Envelope) {
	data, ok := h.encode(env)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id := range h.rooms[room] {
		if id == skip {
			continue
		}
		if c, ok := h.clients[id]; ok {
			h.deliver(c, data)
		}
	}
}
