package notify

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/lysyi3m/dot-reports/app/refresh"
)

const (
	EventWelcome        = "welcome"
	EventReportsUpdated = "reports.updated"

	writeTimeout = 2 * time.Second
)

type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub fans working-set updates out to connected WebSocket clients.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]struct{}),
	}
}

func (h *Hub) Add(ws *websocket.Conn) {
	h.mu.Lock()
	h.clients[ws] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) Remove(ws *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, ws)
	h.mu.Unlock()
	_ = ws.Close()
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast writes the event to every client and drops the ones that fail.
func (h *Hub) Broadcast(event Event) {
	b, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to encode event", "type", event.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for ws := range h.clients {
		_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
			slog.Debug("Dropping WebSocket client", "remote", ws.RemoteAddr().String(), "error", err)
			_ = ws.Close()
			delete(h.clients, ws)
		}
	}
}

// ReportsUpdated is registered as a coordinator listener.
func (h *Hub) ReportsUpdated(update refresh.Update) {
	h.Broadcast(Event{
		Type:      EventReportsUpdated,
		Timestamp: update.At,
		Data:      update,
	})
}

// ServeWS upgrades the request and keeps the connection until the client
// goes away. Incoming messages are ignored.
func (h *Hub) ServeWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	welcome, _ := json.Marshal(Event{Type: EventWelcome, Timestamp: time.Now()})
	if err := ws.WriteMessage(websocket.TextMessage, welcome); err != nil {
		_ = ws.Close()
		return
	}

	h.Add(ws)
	slog.Debug("WebSocket client connected", "clients", h.Count())

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	h.Remove(ws)
	slog.Debug("WebSocket client disconnected", "clients", h.Count())
}
