package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"opsboard/internal/auth"
	"opsboard/internal/core"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// BoardEvent is pushed to connected dashboards when a record moves.
type BoardEvent struct {
	Type     string         `json:"type"`
	TenantID int64          `json:"tenant_id"`
	Board    core.BoardKind `json:"board"`
	RecordID int64          `json:"record_id"`
	Status   core.Status    `json:"status"`
	Actor    string         `json:"actor"`
}

type wsClient struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	tenantID int64
}

type hubMessage struct {
	tenantID int64
	payload  []byte
}

// Hub maintains the set of connected dashboard clients and fans board
// events out to the clients of the event's tenant.
type Hub struct {
	clients    map[*wsClient]bool
	broadcast  chan hubMessage
	register   chan *wsClient
	unregister chan *wsClient
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan hubMessage, 16),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
	}
}

// Broadcast queues an event for the connected clients of its tenant.
func (h *Hub) Broadcast(ev BoardEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Error("Failed to marshal board event", "error", err)
		return
	}
	h.broadcast <- hubMessage{tenantID: ev.TenantID, payload: payload}
}

// Run is the hub's main loop; callers start it in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				if client.tenantID != message.tenantID {
					continue
				}
				select {
				case client.send <- message.payload:
				default:
					// Send buffer full, assume the client is gone.
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.WarnContext(r.Context(), "Websocket upgrade failed", "error", err)
		return
	}
	client := &wsClient{hub: s.hub, conn: conn, send: make(chan []byte, 16), tenantID: id.TenantID}
	s.hub.register <- client
	go client.writePump()
	go client.readPump()
}

// readPump drains client messages; the feed is one-way, so everything but
// pongs is discarded.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("Websocket read error", "error", err)
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
