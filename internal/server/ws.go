package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"paper_trade/internal/infra"
	"paper_trade/internal/service"

	"github.com/gorilla/websocket"
)

const (
	// sendBuffer is how many ticks a client may lag before it is dropped
	sendBuffer = 16
	// writeTimeout bounds a single frame write to a client
	writeTimeout = 5 * time.Second
)

// wsClient pairs a connection with its outbound tick queue. One writer
// goroutine per connection satisfies gorilla's single-writer rule.
type wsClient struct {
	conn *websocket.Conn
	send chan service.Observation
}

// Hub fans price observations out to connected websocket clients
type Hub struct {
	mu       sync.Mutex
	clients  map[*wsClient]struct{}
	upgrader websocket.Upgrader
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Chart clients connect from the same origin in practice;
			// the stream carries no sensitive state either way.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve upgrades the request and keeps the connection registered until
// the client goes away
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", slog.Any("error", err))
		return
	}

	c := &wsClient{
		conn: conn,
		send: make(chan service.Observation, sendBuffer),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	infra.GlobalMetrics.IncrementWSClients()

	go h.writeLoop(c)

	// Drain reads so close frames are processed; clients never send data
	go func() {
		defer h.drop(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast queues one observation for every connected client. It never
// blocks on a client: the tick stream feeds it synchronously from the
// price recorder, so a stalled connection must not hold up price updates.
// A client whose queue is full is dropped instead.
func (h *Hub) Broadcast(obs service.Observation) {
	h.mu.Lock()
	var slow []*wsClient
	for c := range h.clients {
		select {
		case c.send <- obs:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		h.drop(c)
	}
}

func (h *Hub) writeLoop(c *wsClient) {
	for obs := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(obs); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) drop(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		// Broadcast only sends to registered clients and both run
		// under h.mu, so closing here cannot race a send.
		close(c.send)
	}
	h.mu.Unlock()

	if ok {
		infra.GlobalMetrics.DecrementWSClients()
		_ = c.conn.Close()
	}
}

func (h *Hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
