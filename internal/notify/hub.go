package notify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeTimeout = 5 * time.Second
	sendBuffer   = 16
)

// Hub broadcasts notification events to connected websocket clients, e.g. a
// counselor dashboard subscribed to the live risk feed. Slow clients are
// dropped rather than allowed to block the broadcast path.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*websocket.Conn]chan Event
	upgrader websocket.Upgrader
}

// NewHub creates an empty hub. Origin checking is left open; the deployment
// fronts this endpoint with its own access controls.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]chan Event),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Emit implements Sink by fanning the event out to every connected client.
func (h *Hub) Emit(_ context.Context, ev Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn, ch := range h.clients {
		select {
		case ch <- ev:
		default:
			log.Warn().Str("remote", conn.RemoteAddr().String()).Msg("notification client too slow, dropping event")
		}
	}
	return nil
}

// ServeHTTP upgrades the request and streams events until the client
// disconnects or the server shuts down.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	ch := make(chan Event, sendBuffer)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()

	log.Info().Str("remote", conn.RemoteAddr().String()).Msg("notification client connected")

	go h.readLoop(conn)
	h.writeLoop(r.Context(), conn, ch)
}

// readLoop drains client frames so pings and close messages are processed.
func (h *Hub) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.drop(conn)
			return
		}
	}
}

func (h *Hub) writeLoop(ctx context.Context, conn *websocket.Conn, ch chan Event) {
	defer h.drop(conn)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug().Err(err).Msg("notification client write failed")
				return
			}
		}
	}
}

// drop removes a client and closes its connection. Safe to call twice.
func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(ch)
	}
	h.mu.Unlock()
	conn.Close()
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		h.drop(conn)
	}
}
