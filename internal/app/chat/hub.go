/*
Package chat contains the realtime messaging core.

This file defines the Hub, the fan-out substrate mapping room ids to the set
of connections joined to them. A user's private channel is a room named after
their own id; group rooms are keyed by conversation id.
*/
package chat

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"wirechat/internal/pkg/logx"
)

// Hub tracks all connected clients and their room memberships. All methods
// are safe for concurrent use.
type Hub struct {
	mu sync.RWMutex

	// rooms maps a room id to the set of clients joined to it.
	rooms map[string]map[*Client]struct{}

	// clients is the set of every connected client, used for global broadcasts.
	clients map[*Client]struct{}

	logger zerolog.Logger
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
		logger:  logx.Logger().With().Str("component", "Hub").Logger(),
	}
}

// Add registers a connected client for global broadcasts.
func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = struct{}{}
}

// Join adds the client to the named room, creating the room set on first use.
func (h *Hub) Join(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.rooms[roomID]
	if !ok {
		set = make(map[*Client]struct{})
		h.rooms[roomID] = set
	}
	set[c] = struct{}{}
}

// Leave removes the client from the named room, dropping the room set when it empties.
func (h *Hub) Leave(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveLocked(roomID, c)
}

func (h *Hub) leaveLocked(roomID string, c *Client) {
	set, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.rooms, roomID)
	}
}

// Remove unregisters the client entirely: from every room and from the
// global client set.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for roomID := range h.rooms {
		h.leaveLocked(roomID, c)
	}
	delete(h.clients, c)
}

// EmitToRoom sends the event to every client joined to the room.
func (h *Hub) EmitToRoom(roomID, event string, payload any) {
	h.emit(roomID, nil, event, payload)
}

// EmitToRoomExcept sends the event to every client joined to the room except one.
func (h *Hub) EmitToRoomExcept(roomID string, except *Client, event string, payload any) {
	h.emit(roomID, except, event, payload)
}

// EmitToUser sends the event to every connection on the user's private channel.
func (h *Hub) EmitToUser(userID, event string, payload any) {
	h.emit(userID, nil, event, payload)
}

// EmitToAll sends the event to every connected client.
func (h *Hub) EmitToAll(event string, payload any) {
	data, ok := h.marshal(event, payload)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		c.queue(data)
	}
}

func (h *Hub) emit(roomID string, except *Client, event string, payload any) {
	data, ok := h.marshal(event, payload)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[roomID] {
		if c == except {
			continue
		}
		c.queue(data)
	}
}

func (h *Hub) marshal(event string, payload any) ([]byte, bool) {
	data, err := json.Marshal(OutboundEnvelope{Event: event, Payload: payload})
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("Error marshaling event for fan-out.")
		return nil, false
	}
	return data, true
}
