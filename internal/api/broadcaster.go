package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 5 * time.Second

// Broadcaster pushes leaderboard updates to every connected websocket client.
// New clients receive the most recent message right away.
type Broadcaster struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	last    []byte
}

// client serializes writes to one connection.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		logger:   logger,
		clients:  make(map[*client]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Broadcast marshals v once and writes it to all clients. Writes happen
// outside the client set lock; clients that fail a write are dropped.
func (b *Broadcaster) Broadcast(v interface{}) {
	msg, err := json.Marshal(v)
	if err != nil {
		b.logger.Warn("marshal broadcast", zap.Error(err))
		return
	}

	b.mu.Lock()
	b.last = msg
	targets := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		targets = append(targets, c)
	}
	b.mu.Unlock()

	for _, c := range targets {
		if err := c.send(msg); err != nil {
			b.logger.Debug("websocket write failed", zap.String("remote", c.conn.RemoteAddr().String()), zap.Error(err))
			b.remove(c)
		}
	}
}

// Clients returns the number of connected clients.
func (b *Broadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close disconnects every client.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	targets := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		targets = append(targets, c)
		delete(b.clients, c)
	}
	b.mu.Unlock()

	for _, c := range targets {
		c.mu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
		c.mu.Unlock()
		c.conn.Close()
	}
}

// Handler upgrades the request and registers the client.
func (b *Broadcaster) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.logger.Debug("websocket upgrade failed", zap.Error(err))
			return
		}

		// c.mu is taken before registration so the replayed message is
		// written ahead of any later broadcast.
		c := &client{conn: conn}
		c.mu.Lock()
		b.mu.Lock()
		last := b.last
		b.clients[c] = struct{}{}
		b.mu.Unlock()

		var werr error
		if last != nil {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			werr = conn.WriteMessage(websocket.TextMessage, last)
		}
		c.mu.Unlock()
		if werr != nil {
			b.remove(c)
			return
		}

		// Reads only detect the peer going away.
		go func() {
			defer b.remove(c)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

func (b *Broadcaster) remove(c *client) {
	b.mu.Lock()
	delete(b.clients, c)
	b.mu.Unlock()
	c.conn.Close()
}
