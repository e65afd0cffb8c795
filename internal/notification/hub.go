package notification

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 4 * 1024
)

// EventBookingsChanged tells clients to refetch a furnace's bookings.
const EventBookingsChanged = "bookings_changed"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Event is pushed to websocket clients.
type Event struct {
	Type      string `json:"type"`
	FurnaceID string `json:"furnace_id"`
}

// client is one websocket connection. An empty furnace set follows every furnace.
type client struct {
	conn     *websocket.Conn
	send     chan []byte
	furnaces map[string]bool
}

func (c *client) follows(furnaceID string) bool {
	return len(c.furnaces) == 0 || c.furnaces[furnaceID]
}

// Hub fans schedule changes out to connected browsers.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]bool)}
}

// Serve upgrades the request and blocks until the client disconnects.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, furnaces []string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade failed: %w", err)
	}

	c := &client{
		conn:     conn,
		send:     make(chan []byte, 256),
		furnaces: make(map[string]bool, len(furnaces)),
	}
	for _, id := range furnaces {
		if id != "" {
			c.furnaces[id] = true
		}
	}

	h.register(c)
	go h.writePump(c)
	h.readPump(c)
	return nil
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

// Broadcast notifies every client following the furnace. Slow clients miss the event.
func (h *Hub) Broadcast(furnaceID string) {
	data, err := json.Marshal(Event{Type: EventBookingsChanged, FurnaceID: furnaceID})
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.follows(furnaceID) {
			continue
		}
		select {
		case c.send <- data:
		default:
		}
	}
}

// BookingsChanged lets the hub act as a scheduler listener.
func (h *Hub) BookingsChanged(furnaceID string) {
	h.Broadcast(furnaceID)
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket read error: %v", err)
			}
			return
		}

		var req struct {
			Type      string `json:"type"`
			FurnaceID string `json:"furnace_id"`
		}
		if err := json.Unmarshal(msg, &req); err != nil || req.FurnaceID == "" {
			continue
		}

		h.mu.Lock()
		switch req.Type {
		case "subscribe":
			c.furnaces[req.FurnaceID] = true
		case "unsubscribe":
			delete(c.furnaces, req.FurnaceID)
		}
		h.mu.Unlock()
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
