// internal/handlers/room_hub.go
package handlers

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/lobbyhub/internal/models"
)

// RoomHub tracks the open room sockets of this process, keyed by room id,
// and wakes them when a room event is published. It holds no room state;
// sockets re-read the room from the store when woken.
type RoomHub struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]map[chan struct{}]struct{}
}

// NewRoomHub creates and returns an empty RoomHub.
func NewRoomHub() *RoomHub {
	return &RoomHub{
		rooms: make(map[uuid.UUID]map[chan struct{}]struct{}),
	}
}

// Subscribe registers a socket for roomID. The channel has room for one
// pending wake-up; further wake-ups coalesce.
func (h *RoomHub) Subscribe(roomID uuid.UUID) chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.rooms[roomID]
	if !ok {
		subs = make(map[chan struct{}]struct{})
		h.rooms[roomID] = subs
	}
	ch := make(chan struct{}, 1)
	subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes ch, dropping the room entry once it has no sockets left.
func (h *RoomHub) Unsubscribe(roomID uuid.UUID, ch chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(subs, ch)
	if len(subs) == 0 {
		delete(h.rooms, roomID)
	}
}

// Subscribers is the number of sockets watching roomID.
func (h *RoomHub) Subscribers(roomID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[roomID])
}

// Publish wakes every socket of the event's room. It never blocks and never
// fails, so it can sit in a cache.Fanout next to the Redis publisher.
func (h *RoomHub) Publish(_ context.Context, ev models.RoomEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.rooms[ev.RoomID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}
