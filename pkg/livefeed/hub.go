// Package livefeed pushes sensor states to websocket subscribers and
// provides the reconnecting client side of that feed.
package livefeed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/NotCoffee418/usms_meter/pkg/entities"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const writeTimeout = 10 * time.Second

// Hub keeps the connected websocket clients and broadcasts to all of them.
type Hub struct {
	upgrader websocket.Upgrader
	snapshot func() []entities.SensorState

	mu      sync.RWMutex
	clients map[*websocket.Conn]bool

	// gorilla connections allow one concurrent writer
	writeMu sync.Mutex
}

// NewHub returns a hub that greets every new client with snapshot().
func NewHub(snapshot func() []entities.SensorState) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		snapshot: snapshot,
		clients:  make(map[*websocket.Conn]bool),
	}
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("WebSocket upgrade error: %v", err)
		return
	}
	h.addClient(conn)

	if h.snapshot != nil {
		if err := h.write(conn, h.snapshot()); err != nil {
			h.removeClient(conn)
			return
		}
	}

	// Reading keeps ping/pong and close handling alive
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.removeClient(conn)
			return
		}
	}
}

// Broadcast sends states to every client, dropping the ones that fail.
func (h *Hub) Broadcast(states []entities.SensorState) {
	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if err := h.write(client, states); err != nil {
			log.Debugf("Dropping websocket client: %v", err)
			h.removeClient(client)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		h.writeMu.Lock()
		client.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second),
		)
		h.writeMu.Unlock()
		h.removeClient(client)
	}
}

func (h *Hub) write(conn *websocket.Conn, states []entities.SensorState) error {
	payload, err := json.Marshal(states)
	if err != nil {
		return err
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (h *Hub) addClient(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
}

func (h *Hub) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	h.mu.Unlock()
	if ok {
		conn.Close()
	}
}
