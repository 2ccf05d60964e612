// Package ws pushes events to connected dashboards and apps.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/events"
	"service-dispatch/internal/logx"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 1024
	sendBuffer     = 64
)

// ActorFunc returns the authenticated actor of a request.
type ActorFunc func(*http.Request) (domain.Actor, bool)

type client struct {
	id    string
	actor domain.Actor
	conn  *websocket.Conn
	send  chan []byte
	once  sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub keeps the open connections. Admins and the system see every event,
// drivers and customers only the events that name them.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*client
	upgrader websocket.Upgrader
	actorOf  ActorFunc
	logger   logx.Logger
}

// NewHub creates a Hub. checkOrigin may be nil to accept any origin.
func NewHub(actorOf ActorFunc, checkOrigin func(*http.Request) bool, logger logx.Logger) *Hub {
	if logger == nil {
		logger = logx.Nop()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		clients: make(map[string]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		actorOf: actorOf,
		logger:  logger,
	}
}

// Visible reports whether actor may receive e.
func Visible(actor domain.Actor, e events.Event) bool {
	switch actor.Role {
	case domain.RoleAdmin, domain.RoleSystem:
		return true
	case domain.RoleDriver:
		return e.DriverID != "" && e.DriverID == actor.ID
	case domain.RoleCustomer:
		return e.CustomerID != "" && e.CustomerID == actor.ID
	}
	return false
}

// Handle fans one event out to every client allowed to see it. Clients
// whose buffer is full are disconnected rather than blocking the bus.
func (h *Hub) Handle(_ context.Context, e events.Event) error {
	msg, err := json.Marshal(e)
	if err != nil {
		return err
	}

	var slow []*client
	h.mu.RLock()
	for _, c := range h.clients {
		if !Visible(c.actor, e) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("ws client too slow, disconnecting",
			logx.String("client_id", c.id),
			logx.String("actor_id", c.actor.ID),
		)
		h.unregister(c)
	}
	return nil
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades an authenticated request to a websocket.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorOf(r)
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied
		h.logger.Debug("ws upgrade failed", logx.Err(err))
		return
	}

	c := &client{id: uuid.NewString(), actor: actor, conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	h.logger.Info("ws client connected",
		logx.String("client_id", c.id),
		logx.String("actor_id", actor.ID),
		logx.String("role", string(actor.Role)),
	)

	go h.writePump(c)
	go h.readPump(c)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
	}
	h.mu.Unlock()
	c.close()
}

// readPump only serves control frames; clients do not send commands here.
func (h *Hub) readPump(c *client) {
	defer h.unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		h.logger.Info("ws client disconnected", logx.String("client_id", c.id))
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.unregister(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(c)
				return
			}
		}
	}
}
