package events

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// HubConfig contains configuration for the WebSocket hub
type HubConfig struct {
	BroadcastDetections  bool
	BroadcastProgress    bool
	BroadcastConnections bool
	AllowedOrigins       []string
}

// Hub maintains the set of active clients and broadcasts redaction and
// pipeline events to them. Events carry summaries only; transcript text and
// vault contents never pass through the hub.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	config     *HubConfig
	upgrader   websocket.Upgrader
	logger     *zap.Logger
	mu         sync.RWMutex
	stats      *HubStats
}

// HubStats tracks WebSocket hub statistics
type HubStats struct {
	TotalConnections  int64
	ActiveConnections int64
	TotalMessages     int64
	TotalBroadcasts   int64
	LastBroadcastTime time.Time
}

// Client represents a WebSocket client connection
type Client struct {
	ID           string
	Conn         *websocket.Conn
	Send         chan Event
	Subscription *SubscriptionRequest
	ConnectedAt  time.Time
	IP           string
}

// NewHub creates a new WebSocket hub
func NewHub(config *HubConfig, logger *zap.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		config:     config,
		logger:     logger,
		stats:      &HubStats{},
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.config.AllowedOrigins) == 0 {
		return false
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Run starts the hub and handles client registration/unregistration and broadcasting
func (h *Hub) Run() {
	h.logger.Info("Starting WebSocket hub", zap.String("component", "events"))

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case event := <-h.broadcast:
			h.broadcastEvent(event)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
	h.stats.TotalConnections++
	h.stats.ActiveConnections++

	h.logger.Info("Client connected",
		zap.String("component", "events"),
		zap.String("client_id", client.ID),
		zap.String("client_ip", client.IP),
		zap.Int64("active_connections", h.stats.ActiveConnections))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)
		h.stats.ActiveConnections--

		h.logger.Info("Client disconnected",
			zap.String("component", "events"),
			zap.String("client_id", client.ID),
			zap.Int64("active_connections", h.stats.ActiveConnections))
	}
}

func (h *Hub) broadcastEvent(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	h.stats.TotalBroadcasts++
	h.stats.LastBroadcastTime = time.Now()

	for client := range h.clients {
		if !h.shouldSendToClient(client, event) {
			continue
		}
		select {
		case client.Send <- event:
			h.stats.TotalMessages++
		default:
			// Client's send channel is full, close it
			h.logger.Warn("Client send channel full, closing connection",
				zap.String("component", "events"),
				zap.String("client_id", client.ID))
			delete(h.clients, client)
			close(client.Send)
			h.stats.ActiveConnections--
		}
	}
}

// shouldSendToClient checks the client's subscription filter
func (h *Hub) shouldSendToClient(client *Client, event Event) bool {
	if client.Subscription == nil {
		return true
	}
	for _, eventType := range client.Subscription.Events {
		if eventType == event.Type {
			return true
		}
	}
	return false
}

// BroadcastEvent sends an event to all connected clients (only if enabled in config)
func (h *Hub) BroadcastEvent(event Event) {
	if !h.shouldBroadcastEvent(event.Type) {
		return
	}

	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("Broadcast channel full, dropping event",
			zap.String("component", "events"),
			zap.String("event_type", string(event.Type)))
	}
}

func (h *Hub) shouldBroadcastEvent(eventType EventType) bool {
	if h.config == nil {
		return false
	}

	switch eventType {
	case EventTypeDetection:
		return h.config.BroadcastDetections
	case EventTypeProgress:
		return h.config.BroadcastProgress
	case EventTypeConnection:
		return h.config.BroadcastConnections
	default:
		return false
	}
}

// HandleWebSocket handles WebSocket connections
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection",
			zap.String("component", "events"),
			zap.Error(err))
		return
	}

	client := &Client{
		ID:          generateClientID(),
		Conn:        conn,
		Send:        make(chan Event, 256),
		ConnectedAt: time.Now(),
		IP:          clientIP(r),
	}

	h.register <- client

	go h.handleClientWrite(client)
	go h.handleClientRead(client)
}

// handleClientWrite handles writing messages to the client
func (h *Hub) handleClientWrite(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case event, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteJSON(event); err != nil {
				h.logger.Error("Failed to write WebSocket message",
					zap.String("component", "events"),
					zap.String("client_id", client.ID),
					zap.Error(err))
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleClientRead handles reading messages from the client
func (h *Hub) handleClientRead(client *Client) {
	defer func() {
		h.unregister <- client
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(maxMessageSize)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg ClientMessage
		if err := client.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket error",
					zap.String("component", "events"),
					zap.String("client_id", client.ID),
					zap.Error(err))
			}
			break
		}

		h.handleClientMessage(client, msg)
	}
}

// handleClientMessage handles messages received from clients
func (h *Hub) handleClientMessage(client *Client, msg ClientMessage) {
	switch msg.Type {
	case "subscribe":
		if data, ok := msg.Data.(map[string]interface{}); ok {
			jsonData, _ := json.Marshal(data)
			var subscription SubscriptionRequest
			if err := json.Unmarshal(jsonData, &subscription); err == nil {
				client.Subscription = &subscription
				h.logger.Info("Client subscription updated",
					zap.String("component", "events"),
					zap.String("client_id", client.ID))
			}
		}
	case "ping":
		pong := Event{
			Type:      "pong",
			Timestamp: time.Now(),
			Data:      map[string]string{"message": "pong"},
		}
		select {
		case client.Send <- pong:
		default:
		}
	}
}

// GetStats returns current hub statistics
func (h *Hub) GetStats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := *h.stats
	stats.ActiveConnections = int64(len(h.clients))
	return stats
}

func generateClientID() string {
	return fmt.Sprintf("client_%d", time.Now().UnixNano())
}

// clientIP extracts the client IP from the request
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
