// Package realtime pushes purchase-request status changes to connected
// websocket clients.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"compras/internal/models"
	"compras/internal/policy"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// Subscriber identifies who is on the other end of a connection.
type Subscriber struct {
	UserID string
	Role   models.Role
	AreaID *string
}

// StatusEvent is the message sent to clients when a request changes status.
type StatusEvent struct {
	Type            string               `json:"type"`
	RequestID       string               `json:"request_id"`
	RequestNumber   string               `json:"request_number"`
	PreviousStatus  models.RequestStatus `json:"previous_status"`
	Status          models.RequestStatus `json:"status"`
	RequesterID     string               `json:"requester_id"`
	ExceedsBudget   bool                 `json:"exceeds_budget"`
	OccurredAt      time.Time            `json:"occurred_at"`
	requesterAreaID *string
}

// visibleTo mirrors the request list scoping.
func (e *StatusEvent) visibleTo(s Subscriber) bool {
	switch {
	case policy.Allowed(s.Role, policy.ViewAllRequests):
		return true
	case e.RequesterID == s.UserID:
		return true
	case policy.IsManager(s.Role):
		return s.AreaID != nil && e.requesterAreaID != nil && *s.AreaID == *e.requesterAreaID
	default:
		return false
	}
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	sub  Subscriber
	send chan []byte
}

// Hub keeps the set of connected clients and fans events out to them.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan *StatusEvent
	register   chan *client
	unregister chan *client
	done       chan struct{}
	upgrader   websocket.Upgrader
	log        *zap.SugaredLogger

	mu    sync.RWMutex
	count int
}

// NewHub creates a hub. allowedOrigins empty or containing "*" accepts any origin.
func NewHub(allowedOrigins []string, log *zap.SugaredLogger) *Hub {
	h := &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan *StatusEvent, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		log:        log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || len(set) == 0 || set[origin]
	}
}

// Run is the hub loop. It returns when ctx is cancelled, closing every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
			h.setCount(len(h.clients))
			h.log.Debugw("websocket client connected", "user_id", c.sub.UserID)
		case c := <-h.unregister:
			if h.clients[c] {
				h.drop(c)
				h.log.Debugw("websocket client disconnected", "user_id", c.sub.UserID)
			}
		case ev := <-h.broadcast:
			msg, err := json.Marshal(ev)
			if err != nil {
				h.log.Errorw("failed to encode status event", "request_id", ev.RequestID, "error", err)
				continue
			}
			for c := range h.clients {
				if !ev.visibleTo(c.sub) {
					continue
				}
				select {
				case c.send <- msg:
				default:
					// slow consumer
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	close(c.send)
	h.setCount(len(h.clients))
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// PublishStatusChange queues a status-change event. It never blocks the caller;
// events are dropped when the hub is stopped or saturated.
func (h *Hub) PublishStatusChange(req *models.PurchaseRequest, from models.RequestStatus) {
	ev := &StatusEvent{
		Type:           "request.status_changed",
		RequestID:      req.ID,
		RequestNumber:  req.RequestNumber,
		PreviousStatus: from,
		Status:         req.Status,
		RequesterID:    req.RequesterID,
		ExceedsBudget:  req.ExceedsBudget,
		OccurredAt:     time.Now().UTC(),
	}
	if req.Requester != nil {
		ev.requesterAreaID = req.Requester.AreaID
	}

	select {
	case <-h.done:
	case h.broadcast <- ev:
	default:
		h.log.Warnw("status event dropped, hub saturated", "request_id", req.ID)
	}
}

// Serve upgrades the request to a websocket and attaches it to the hub as sub.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, sub Subscriber) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{hub: h, conn: conn, sub: sub, send: make(chan []byte, sendBuffer)}

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return nil
	}

	go c.writePump()
	go c.readPump()
	return nil
}

// readPump discards client messages and detects disconnects.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warnw("websocket read error", "user_id", c.sub.UserID, "error", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
