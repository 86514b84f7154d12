package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Event types pushed to websocket clients.
const (
	EventEntities = "entities"
	EventRefresh  = "refresh"

	wsTypeEvent = "event"
	wsTypePing  = "ping"
	wsTypePong  = "pong"
	wsTypeError = "error"
)

const (
	wsSendBufferSize = 64
	wsMaxMessageSize = 4096
	wsPingInterval   = 30 * time.Second
	wsPongWait       = 10 * time.Second
)

// WSMessage is every frame exchanged on /api/v1/events.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// Hub fans events out to connected websocket clients.
type Hub struct {
	log     *logrus.Entry
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func NewHub(log *logrus.Entry) *Hub {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Hub{log: log, clients: make(map[*wsClient]struct{})}
}

// Run blocks until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Broadcast sends one event to every client. Slow clients drop the event.
func (h *Hub) Broadcast(eventType string, payload any) {
	data, err := encodeEvent(eventType, payload)
	if err != nil {
		h.log.WithError(err).Error("marshal websocket event")
		return
	}

	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.trySend(data)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(client *wsClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.log.WithField("clients", h.ClientCount()).Debug("websocket client connected")
}

// unregister closes the send channel only if the client was still present.
func (h *Hub) unregister(client *wsClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()
	if existed {
		close(client.send)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		_ = client.conn.Close()
		delete(h.clients, client)
	}
}

func encodeEvent(eventType string, payload any) ([]byte, error) {
	return json.Marshal(WSMessage{
		Type:      wsTypeEvent,
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
}

// handleEvents upgrades the connection and sends the current entity states
// before any broadcast.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &wsClient{hub: s.hub, conn: conn, send: make(chan []byte, wsSendBufferSize)}
	if data, err := encodeEvent(EventEntities, s.entities.States()); err == nil {
		client.send <- data
	}
	s.hub.register(client)

	go client.writePump()
	go client.readPump()
}

func (c *wsClient) trySend(data []byte) {
	defer func() {
		// send may already be closed by unregister.
		_ = recover()
	}()
	select {
	case c.send <- data:
	default:
		c.hub.log.Debug("websocket client too slow, event dropped")
	}
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(wsMaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.WithError(err).Warn("websocket read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongWait))
		c.handleMessage(message)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsPongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsPongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply(WSMessage{Type: wsTypeError, Payload: "invalid JSON message"})
		return
	}
	switch msg.Type {
	case wsTypePing:
		c.reply(WSMessage{Type: wsTypePong, ID: msg.ID})
	default:
		c.reply(WSMessage{Type: wsTypeError, ID: msg.ID, Payload: "unknown message type: " + msg.Type})
	}
}

func (c *wsClient) reply(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.trySend(data)
}
