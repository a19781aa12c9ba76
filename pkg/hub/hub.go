package hub

import (
	"sync"

	"github.com/davronbek/voiceboard/internal/log"
)

// replayDepth is how many recent updates a newly connected client receives.
const replayDepth = 16

// Hub maintains the set of active feed clients and broadcasts updates to
// them. New clients get a replay of the most recent updates so the
// dashboard renders without waiting for the next change.
type Hub struct {
	// Name for logging
	name string

	// Registered clients
	clients map[*Client]bool

	// Inbound frames to broadcast
	broadcast chan []byte

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// recent is the replay ring, oldest first.
	recent [][]byte

	mu sync.RWMutex

	done chan struct{}
}

// New creates a new Hub.
func New(name string) *Hub {
	return &Hub{
		name:       name,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop. Call it in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			for _, frame := range h.recent {
				select {
				case client.send <- frame:
				default:
				}
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Debug("feed client connected", "hub", h.name, "clients", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Debug("feed client disconnected", "hub", h.name, "clients", count)

		case frame := <-h.broadcast:
			h.mu.Lock()
			h.recent = append(h.recent, frame)
			if len(h.recent) > replayDepth {
				h.recent = h.recent[len(h.recent)-replayDepth:]
			}
			for client := range h.clients {
				select {
				case client.send <- frame:
				default:
					// Client's buffer is full - they're too slow.
					close(client.send)
					delete(h.clients, client)
					log.Warn("dropped slow feed client", "hub", h.name)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast encodes and fans out one update to all connected clients.
func (h *Hub) Broadcast(u Update) error {
	frame, err := u.encode()
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- frame:
	default:
		log.Warn("broadcast channel full, dropping update", "hub", h.name, "kind", string(u.Kind))
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop shuts the hub down and disconnects all clients.
func (h *Hub) Stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}
