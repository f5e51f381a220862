// internal/gateway/hub.go

package gateway

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/imadgeboyega/kiekky-client/internal/metrics"
)

// EventType names a push from the core to the UI
type EventType string

const (
	EventConversations EventType = "conversations"
	EventRelationship  EventType = "relationship"
	EventFavorites     EventType = "favorites"
	EventCallPhase     EventType = "call_phase"
)

// Event is the websocket frame pushed to every UI client
type Event struct {
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Hub maintains active websocket connections
type Hub struct {
	clients    map[*Client]bool
	clientsMux sync.RWMutex

	broadcast  chan Event
	register   chan *Client
	unregister chan *Client

	// Context for graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	defer close(h.done)
	defer h.cleanup()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case event := <-h.broadcast:
			h.broadcastEvent(event)

		case <-h.ctx.Done():
			return
		}
	}
}

// Register hands a connected client to the hub; false once the hub stopped
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Publish queues data for every client. Events are dropped when the queue
// is full or the hub has stopped.
func (h *Hub) Publish(eventType EventType, data interface{}) {
	event := Event{
		Type:      eventType,
		Data:      mustMarshalJSON(data),
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- event:
	case <-h.ctx.Done():
	default:
		log.Printf("Dropping %s event, broadcast queue full", eventType)
	}
}

func (h *Hub) registerClient(client *Client) {
	h.clientsMux.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.clientsMux.Unlock()

	metrics.IncGatewayConnections()
	log.Printf("UI client connected. Total clients: %d", total)
}

func (h *Hub) unregisterClient(client *Client) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	if _, exists := h.clients[client]; exists {
		delete(h.clients, client)
		client.close()
		metrics.DecGatewayConnections()
		log.Printf("UI client disconnected. Total clients: %d", len(h.clients))
	}
}

func (h *Hub) broadcastEvent(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshalling event: %v", err)
		return
	}

	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			// Slow consumer, drop it
			delete(h.clients, client)
			client.close()
			metrics.DecGatewayConnections()
		}
	}
}

func (h *Hub) cleanup() {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	for client := range h.clients {
		client.close()
		metrics.DecGatewayConnections()
	}
	h.clients = make(map[*Client]bool)
}

// Shutdown stops Run and closes every client
func (h *Hub) Shutdown() {
	h.cancel()
	<-h.done
}

func (h *Hub) ActiveConnections() int {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	return len(h.clients)
}

func mustMarshalJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("Error marshaling: %v", err)
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(data)
}
