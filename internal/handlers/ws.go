package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mpetrenko/taskmanager/internal/models"
)

// WSHub fans task change events out to the owner's open WebSocket
// connections.
type WSHub struct {
	connections map[uuid.UUID]map[*websocket.Conn]bool
	mutex       sync.Mutex
}

func NewWSHub() *WSHub {
	return &WSHub{connections: make(map[uuid.UUID]map[*websocket.Conn]bool)}
}

// BroadcastTaskEvent sends a task event to every connection of the owner.
// Safe to call on a nil hub.
func (hub *WSHub) BroadcastTaskEvent(ownerID uuid.UUID, event string, task *models.Task) {
	if hub == nil {
		return
	}
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	conns, exists := hub.connections[ownerID]
	if !exists {
		return
	}

	message, err := json.Marshal(map[string]interface{}{
		"event":    event,
		"task_id":  task.ID,
		"title":    task.Title,
		"status":   task.Status,
		"priority": task.Priority,
	})
	if err != nil {
		log.Printf("Failed to marshal task event: %v", err)
		return
	}

	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("Failed to send WebSocket message: %v", err)
			delete(conns, conn)
			conn.Close()
		}
	}
}

func (hub *WSHub) register(ownerID uuid.UUID, conn *websocket.Conn) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	if hub.connections[ownerID] == nil {
		hub.connections[ownerID] = make(map[*websocket.Conn]bool)
	}
	hub.connections[ownerID][conn] = true
}

func (hub *WSHub) unregister(ownerID uuid.UUID, conn *websocket.Conn) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	delete(hub.connections[ownerID], conn)
}

// GET /ws - task event stream for the authenticated owner.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	clientIP := r.RemoteAddr
	if h.RateLimiter != nil && !h.RateLimiter.Allow(clientIP) {
		sendError(w, "Too many WebSocket connection attempts", http.StatusTooManyRequests)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // Adjust for production (e.g., check specific origins)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.WSHub.register(userID, conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.WSHub.unregister(userID, conn)
			conn.Close()
			return
		}
		// incoming messages are ignored; the stream is one-way
	}
}
