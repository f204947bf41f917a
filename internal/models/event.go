package models

import (
	"time"

	"github.com/google/uuid"
)

// Room event types recorded in the journal.
const (
	EventRoomCreated  = "room_created"
	EventSeatJoined   = "seat_joined"
	EventSeatLeft     = "seat_left"
	EventSeatReady    = "seat_ready"
	EventSeatKicked   = "seat_kicked"
	EventHostClaimed  = "host_claimed"
	EventRoomStarting = "room_starting"
	EventSeatReleased = "seat_released"
)

// RoomEvent captures one change to a room, published by the coordinator and
// the reclaimer and persisted by the journal.
type RoomEvent struct {
	ID       uuid.UUID `json:"id"`
	RoomID   uuid.UUID `json:"room_id"`
	GameID   string    `json:"game_id,omitempty"`
	Type     string    `json:"type"`
	ActorID  string    `json:"actor_id,omitempty"`
	TargetID string    `json:"target_id,omitempty"` // owner affected, when not the actor
	SeatID   uuid.UUID `json:"seat_id,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}
