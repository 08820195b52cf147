package messaging

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/juggle/internal/log"
	"github.com/sudo-init-do/juggle/internal/session"
)

const writeWait = 10 * time.Second

// Event is pushed to every open connection of a user.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

const (
	EventMessageNew          = "message_new"
	EventConversationDeleted = "conversation_deleted"
)

type room struct {
	userID  string
	clients map[*websocket.Conn]bool
	// mu is held exclusively while writing; a websocket allows one writer.
	mu sync.Mutex
}

func (r *room) broadcast(payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.clients {
		_ = c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			delete(r.clients, c)
			_ = c.Close()
		}
	}
}

func (r *room) register(c *websocket.Conn) {
	r.mu.Lock()
	r.clients[c] = true
	r.mu.Unlock()
}

func (r *room) unregister(c *websocket.Conn) {
	r.mu.Lock()
	delete(r.clients, c)
	r.mu.Unlock()
}

// Hub fans inbox events out to the websocket connections of each user.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*room
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]*room)}
}

func (h *Hub) room(userID string) *room {
	h.mu.RLock()
	r, ok := h.rooms[userID]
	h.mu.RUnlock()
	if ok {
		return r
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[userID]; ok {
		return r
	}
	r = &room{userID: userID, clients: make(map[*websocket.Conn]bool)}
	h.rooms[userID] = r
	return r
}

// Publish sends evt to every connection userID has open. Users without
// connections are skipped.
func (h *Hub) Publish(userID string, evt Event) {
	h.mu.RLock()
	r, ok := h.rooms[userID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		log.Errorf("encode websocket event", err)
		return
	}
	r.broadcast(payload)
}

// Connections returns the number of open connections for userID.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	r, ok := h.rooms[userID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Stream - websocket for realtime inbox updates of the authenticated user
func (h *Hub) Stream(c echo.Context) error {
	sess, err := session.From(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	r := h.room(sess.UserID)
	r.register(ws)

	// Read loop (discard client messages; protocol is server push)
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			r.unregister(ws)
			_ = ws.Close()
			break
		}
	}
	return nil
}
