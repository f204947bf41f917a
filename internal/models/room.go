// internal/models/room.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Room modes.
const (
	ModeSolo = "solo"
	ModeDuo  = "duo"
	ModeAll  = "all"
)

// Room statuses. A room only ever moves from open to starting here.
const (
	RoomStatusOpen     = "open"
	RoomStatusStarting = "starting"
)

// Room represents a row in the rooms table. FilledCount and ReadyCount are
// denormalized from room_seats and may briefly lag behind them.
type Room struct {
	ID               uuid.UUID `json:"id"`
	GameID           string    `json:"game_id"`
	Code             string    `json:"code"`
	Mode             string    `json:"mode"`   // 'solo', 'duo' or 'all'
	Status           string    `json:"status"` // 'open', 'starting'
	OwnerID          string    `json:"owner_id"`
	SlotCount        int       `json:"slot_count"`
	FilledCount      int       `json:"filled_count"`
	ReadyCount       int       `json:"ready_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	HostLastActiveAt time.Time `json:"host_last_active_at"`
}

// HostInactiveSince reports whether the host has been silent since before cutoff.
func (r Room) HostInactiveSince(cutoff time.Time) bool {
	return r.HostLastActiveAt.Before(cutoff)
}

// RoomSeat is one occupiable position in a room. The occupant fields
// (owner, hero, joined at) are either all set or all nil.
type RoomSeat struct {
	ID              uuid.UUID  `json:"id"`
	RoomID          uuid.UUID  `json:"room_id"`
	SlotIndex       int        `json:"slot_index"`
	Role            string     `json:"role"`
	OccupantOwnerID *string    `json:"occupant_owner_id"`
	OccupantHeroID  *string    `json:"occupant_hero_id"`
	OccupantReady   bool       `json:"occupant_ready"`
	JoinedAt        *time.Time `json:"joined_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Occupied reports whether somebody sits in the seat.
func (s RoomSeat) Occupied() bool {
	return s.OccupantOwnerID != nil
}

// OccupiedBy reports whether ownerID sits in the seat.
func (s RoomSeat) OccupiedBy(ownerID string) bool {
	return s.OccupantOwnerID != nil && *s.OccupantOwnerID == ownerID
}

// Occupy fills every occupant field at once.
func (s *RoomSeat) Occupy(ownerID, heroID string, at time.Time) {
	owner, hero, joined := ownerID, heroID, at
	s.OccupantOwnerID = &owner
	s.OccupantHeroID = &hero
	s.JoinedAt = &joined
	s.OccupantReady = false
	s.UpdatedAt = at
}

// Vacate clears every occupant field at once.
func (s *RoomSeat) Vacate(at time.Time) {
	s.OccupantOwnerID = nil
	s.OccupantHeroID = nil
	s.JoinedAt = nil
	s.OccupantReady = false
	s.UpdatedAt = at
}

// OccupiedSeat is a RoomSeat joined with the game of its room, as the
// reclaimer reads it.
type OccupiedSeat struct {
	RoomSeat
	GameID string `json:"game_id"`
}

// RoomView bundles a room with its seats ordered by slot index.
type RoomView struct {
	Room  Room       `json:"room"`
	Seats []RoomSeat `json:"seats"`
}
