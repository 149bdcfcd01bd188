package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// Event types pushed over a wizard's socket. The payload mirrors what the
// corresponding REST response carries, so a UI can stay in sync without
// polling.
const (
	EventStepChanged   = "step.changed"
	EventFieldStatus   = "field.status"
	EventFieldError    = "field.error"
	EventPaymentStatus = "payment.status"
	EventWizardReset   = "wizard.reset"
)

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewEvent marshals the payload into an Event. Marshal failures degrade to an
// empty payload; the event type alone is still worth delivering.
func NewEvent(eventType string, payload interface{}) Event {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte("{}")
	}
	return Event{Type: eventType, Payload: raw}
}

// wizardEvent is an internal struct for routing events to a wizard's room
type wizardEvent struct {
	WizardID uuid.UUID
	Event    Event
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by wizard ID
	rooms map[uuid.UUID]map[*Client]bool

	// Inbound messages from clients (register/unregister)
	register   chan *Client
	unregister chan *Client

	// Outbound messages to broadcast
	broadcast chan *wizardEvent

	// Mutex for thread-safe room access
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *wizardEvent, 256),
	}
}

// Run starts the hub's main loop
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.wizardID] == nil {
				h.rooms[client.wizardID] = make(map[*Client]bool)
			}
			h.rooms[client.wizardID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.wizardID]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					// Clean up empty rooms
					if len(clients) == 0 {
						delete(h.rooms, client.wizardID)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			clients := h.rooms[event.WizardID]

			// Marshal event to JSON once
			message, err := json.Marshal(event.Event)
			if err != nil {
				h.mu.Unlock()
				continue
			}

			// Send to all clients in this wizard's room
			for client := range clients {
				select {
				case client.send <- message:
				default:
					// Client's send buffer is full, close and unregister
					close(client.send)
					delete(h.rooms[event.WizardID], client)
					if len(h.rooms[event.WizardID]) == 0 {
						delete(h.rooms, event.WizardID)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToWizard sends an event to all clients following a wizard. A user
// usually has one tab open, but a second tab or device sees the same stream.
func (h *Hub) BroadcastToWizard(wizardID uuid.UUID, event Event) {
	h.broadcast <- &wizardEvent{
		WizardID: wizardID,
		Event:    event,
	}
}
