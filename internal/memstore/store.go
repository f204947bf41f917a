// internal/memstore/store.go
package memstore

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/lobbyhub/internal/database"
	"github.com/jason-s-yu/lobbyhub/internal/models"
)

// Store keeps rooms, seats, roster rows and journaled events in memory.
// Every method takes the one mutex, so each conditional write is atomic the
// same way a single guarded UPDATE is against Postgres.
type Store struct {
	mu           sync.Mutex
	rooms        map[uuid.UUID]*models.Room
	seats        map[uuid.UUID]*models.RoomSeat
	layouts      map[string][]models.SeatLayoutEntry
	participants map[models.OwnerKey]*models.Participant
	queue        map[models.OwnerKey]*models.QueueEntry
	events       []models.RoomEvent
	eventIDs     map[uuid.UUID]struct{}
}

// New initializes and returns an empty Store.
func New() *Store {
	return &Store{
		rooms:        make(map[uuid.UUID]*models.Room),
		seats:        make(map[uuid.UUID]*models.RoomSeat),
		layouts:      make(map[string][]models.SeatLayoutEntry),
		participants: make(map[models.OwnerKey]*models.Participant),
		queue:        make(map[models.OwnerKey]*models.QueueEntry),
		eventIDs:     make(map[uuid.UUID]struct{}),
	}
}

// SetLayout replaces the declared seat layout of a game.
func (s *Store) SetLayout(gameID string, layout []models.SeatLayoutEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layouts[gameID] = slices.Clone(layout)
}

// PutParticipant inserts or replaces a participant row.
func (s *Store) PutParticipant(p models.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants[models.OwnerKey{GameID: p.GameID, OwnerID: p.OwnerID}] = &p
}

// PutQueueEntry inserts or replaces a matchmaking queue row.
func (s *Store) PutQueueEntry(e models.QueueEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue[models.OwnerKey{GameID: e.GameID, OwnerID: e.OwnerID}] = &e
}

// Participant returns a copy of the participant row for key.
func (s *Store) Participant(key models.OwnerKey) (models.Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[key]
	if !ok {
		return models.Participant{}, false
	}
	return *p, true
}

// Events returns a copy of every journaled event in insertion order.
func (s *Store) Events() []models.RoomEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

// SetSeatUpdatedAt backdates a seat; used to age rows in tests and demos.
func (s *Store) SetSeatUpdatedAt(seatID uuid.UUID, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seat, ok := s.seats[seatID]; ok {
		seat.UpdatedAt = at
	}
}

func (s *Store) ListLayout(_ context.Context, gameID string) ([]models.SeatLayoutEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	layout := slices.Clone(s.layouts[gameID])
	slices.SortStableFunc(layout, func(a, b models.SeatLayoutEntry) int { return a.SlotIndex - b.SlotIndex })
	return layout, nil
}

func (s *Store) InsertRoom(_ context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rooms[room.ID]; exists {
		return database.ErrConflict
	}
	for _, r := range s.rooms {
		if r.Code == room.Code {
			return database.ErrConflict
		}
	}
	cp := *room
	s.rooms[room.ID] = &cp
	return nil
}

// DeleteRoom removes a room together with its seats.
func (s *Store) DeleteRoom(_ context.Context, roomID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
	for id, seat := range s.seats {
		if seat.RoomID == roomID {
			delete(s.seats, id)
		}
	}
	return nil
}

func (s *Store) GetRoom(_ context.Context, roomID uuid.UUID) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) GetRoomByCode(_ context.Context, code string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rooms {
		if r.Code == code {
			cp := *r
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *Store) UpdateRoomCounts(_ context.Context, roomID uuid.UUID, filled, ready int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[roomID]; ok {
		r.FilledCount, r.ReadyCount, r.UpdatedAt = filled, ready, at
	}
	return nil
}

func (s *Store) TouchHost(_ context.Context, roomID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[roomID]; ok {
		r.HostLastActiveAt, r.UpdatedAt = at, at
	}
	return nil
}

func (s *Store) ReassignHost(_ context.Context, roomID uuid.UUID, newOwner string, cutoff, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok || !r.HostLastActiveAt.Before(cutoff) {
		return false, nil
	}
	r.OwnerID, r.HostLastActiveAt, r.UpdatedAt = newOwner, at, at
	return true, nil
}

func (s *Store) MarkRoomStarting(_ context.Context, roomID uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok || r.Status != models.RoomStatusOpen {
		return false, nil
	}
	r.Status, r.HostLastActiveAt, r.UpdatedAt = models.RoomStatusStarting, at, at
	return true, nil
}

func (s *Store) InsertSeats(_ context.Context, seats []models.RoomSeat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seat := range seats {
		if _, exists := s.seats[seat.ID]; exists {
			return database.ErrConflict
		}
	}
	for _, seat := range seats {
		cp := seat
		cp.Vacate(seat.UpdatedAt)
		s.seats[seat.ID] = &cp
	}
	return nil
}

func (s *Store) ListSeats(_ context.Context, roomID uuid.UUID) ([]models.RoomSeat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.RoomSeat
	for _, seat := range s.seats {
		if seat.RoomID == roomID {
			out = append(out, copySeat(seat))
		}
	}
	slices.SortFunc(out, func(a, b models.RoomSeat) int { return a.SlotIndex - b.SlotIndex })
	return out, nil
}

func (s *Store) FindSeatByOccupant(_ context.Context, ownerID string) (*models.RoomSeat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seat := s.seatOf(ownerID); seat != nil {
		cp := copySeat(seat)
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) OccupySeat(_ context.Context, roomID, seatID uuid.UUID, ownerID, heroID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seat, ok := s.seats[seatID]
	if !ok || seat.RoomID != roomID || seat.Occupied() {
		return false, nil
	}
	if s.seatOf(ownerID) != nil {
		return false, database.ErrConflict
	}
	seat.Occupy(ownerID, heroID, at)
	return true, nil
}

func (s *Store) VacateSeat(_ context.Context, roomID, seatID uuid.UUID, ownerID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seat, ok := s.seats[seatID]
	if !ok || seat.RoomID != roomID || !seat.OccupiedBy(ownerID) {
		return false, nil
	}
	seat.Vacate(at)
	return true, nil
}

func (s *Store) SetSeatReady(_ context.Context, roomID, seatID uuid.UUID, ownerID string, ready bool, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seat, ok := s.seats[seatID]
	if !ok || seat.RoomID != roomID || !seat.OccupiedBy(ownerID) {
		return false, nil
	}
	seat.OccupantReady, seat.UpdatedAt = ready, at
	return true, nil
}

func (s *Store) ClearSeat(_ context.Context, roomID, seatID uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seat, ok := s.seats[seatID]
	if !ok || seat.RoomID != roomID || !seat.Occupied() {
		return false, nil
	}
	seat.Vacate(at)
	return true, nil
}

func (s *Store) ListOccupiedSeats(_ context.Context, gameID string) ([]models.OccupiedSeat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.OccupiedSeat
	for _, seat := range s.seats {
		if !seat.Occupied() {
			continue
		}
		room, ok := s.rooms[seat.RoomID]
		if !ok || (gameID != "" && room.GameID != gameID) {
			continue
		}
		out = append(out, models.OccupiedSeat{RoomSeat: copySeat(seat), GameID: room.GameID})
	}
	slices.SortFunc(out, func(a, b models.OccupiedSeat) int {
		if c := strings.Compare(a.RoomID.String(), b.RoomID.String()); c != 0 {
			return c
		}
		return a.SlotIndex - b.SlotIndex
	})
	return out, nil
}

func (s *Store) ReleaseSeats(_ context.Context, claims []models.OccupiedSeat, at time.Time) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var released []uuid.UUID
	for _, c := range claims {
		seat, ok := s.seats[c.ID]
		if !ok || c.OccupantOwnerID == nil || !seat.OccupiedBy(*c.OccupantOwnerID) {
			continue
		}
		seat.Vacate(at)
		released = append(released, c.ID)
	}
	return released, nil
}

func (s *Store) ListParticipants(_ context.Context, keys []models.OwnerKey) ([]models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Participant
	for _, k := range keys {
		if p, ok := s.participants[k]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *Store) ListQueueEntries(_ context.Context, keys []models.OwnerKey) ([]models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.QueueEntry
	for _, k := range keys {
		if e, ok := s.queue[k]; ok {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *Store) UpdateParticipantStatus(_ context.Context, keys []models.OwnerKey, status string, keep []string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, k := range keys {
		p, ok := s.participants[k]
		if !ok || slices.Contains(keep, strings.ToLower(p.Status)) {
			continue
		}
		p.Status, p.UpdatedAt = status, at
		n++
	}
	return n, nil
}

func (s *Store) InsertRoomEvents(_ context.Context, events []models.RoomEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range events {
		if _, dup := s.eventIDs[ev.ID]; dup {
			continue
		}
		s.eventIDs[ev.ID] = struct{}{}
		s.events = append(s.events, ev)
	}
	return nil
}

// seatOf returns the seat ownerID occupies in any room. Callers hold mu.
func (s *Store) seatOf(ownerID string) *models.RoomSeat {
	for _, seat := range s.seats {
		if seat.OccupiedBy(ownerID) {
			return seat
		}
	}
	return nil
}

func copySeat(seat *models.RoomSeat) models.RoomSeat {
	cp := *seat
	if seat.Occupied() {
		cp.Occupy(*seat.OccupantOwnerID, *seat.OccupantHeroID, *seat.JoinedAt)
		cp.OccupantReady = seat.OccupantReady
		cp.UpdatedAt = seat.UpdatedAt
	}
	return cp
}
