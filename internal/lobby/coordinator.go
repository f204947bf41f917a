package lobby

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/lobbyhub/internal/database"
	"github.com/jason-s-yu/lobbyhub/internal/metrics"
	"github.com/jason-s-yu/lobbyhub/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultHostInactivity is how long a host may stay silent before a seated
// participant can claim the room.
const DefaultHostInactivity = 3 * time.Minute

const codeAttempts = 5

// Store is the persistence the coordinator needs. Every mutating seat method
// is a conditional write that reports whether a row matched its guard.
type Store interface {
	ListLayout(ctx context.Context, gameID string) ([]models.SeatLayoutEntry, error)

	InsertRoom(ctx context.Context, room *models.Room) error
	DeleteRoom(ctx context.Context, roomID uuid.UUID) error
	GetRoom(ctx context.Context, roomID uuid.UUID) (*models.Room, error)
	GetRoomByCode(ctx context.Context, code string) (*models.Room, error)
	UpdateRoomCounts(ctx context.Context, roomID uuid.UUID, filled, ready int, at time.Time) error
	TouchHost(ctx context.Context, roomID uuid.UUID, at time.Time) error
	ReassignHost(ctx context.Context, roomID uuid.UUID, newOwner string, cutoff, at time.Time) (bool, error)
	MarkRoomStarting(ctx context.Context, roomID uuid.UUID, at time.Time) (bool, error)

	InsertSeats(ctx context.Context, seats []models.RoomSeat) error
	ListSeats(ctx context.Context, roomID uuid.UUID) ([]models.RoomSeat, error)
	FindSeatByOccupant(ctx context.Context, ownerID string) (*models.RoomSeat, error)
	OccupySeat(ctx context.Context, roomID, seatID uuid.UUID, ownerID, heroID string, at time.Time) (bool, error)
	VacateSeat(ctx context.Context, roomID, seatID uuid.UUID, ownerID string, at time.Time) (bool, error)
	SetSeatReady(ctx context.Context, roomID, seatID uuid.UUID, ownerID string, ready bool, at time.Time) (bool, error)
	ClearSeat(ctx context.Context, roomID, seatID uuid.UUID, at time.Time) (bool, error)
}

// Publisher receives an event for every successful room change.
type Publisher interface {
	Publish(ctx context.Context, ev models.RoomEvent) error
}

// Caller identifies who issues an operation. HeroID is the character the
// caller picked before joining and is only needed by JoinSlot.
type Caller struct {
	OwnerID string
	HeroID  string
}

// Config tunes a Coordinator. Zero values fall back to defaults.
type Config struct {
	HostInactivity time.Duration
	Publisher      Publisher
	Now            func() time.Time
	NewCode        func() (string, error)
}

// Coordinator runs the room lifecycle against a shared store. It keeps no
// room state between calls; the store's conditional writes are its only
// concurrency control.
type Coordinator struct {
	store          Store
	pub            Publisher
	log            logrus.FieldLogger
	now            func() time.Time
	newCode        func() (string, error)
	hostInactivity time.Duration
}

// NewCoordinator builds a Coordinator over store.
func NewCoordinator(store Store, log logrus.FieldLogger, cfg Config) *Coordinator {
	c := &Coordinator{
		store:          store,
		pub:            cfg.Publisher,
		log:            log,
		now:            cfg.Now,
		newCode:        cfg.NewCode,
		hostInactivity: cfg.HostInactivity,
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newCode == nil {
		c.newCode = GenerateCode
	}
	if c.hostInactivity <= 0 {
		c.hostInactivity = DefaultHostInactivity
	}
	return c
}

// CreateRoom opens a room for gameID with one empty seat per selected layout
// seat. Duo rooms keep only the seats of duoRole and need at least two; solo
// rooms keep the first matching seat.
func (c *Coordinator) CreateRoom(ctx context.Context, caller Caller, gameID, mode, duoRole string) (view *models.RoomView, err error) {
	defer c.observe("create_room", &err)
	if caller.OwnerID == "" {
		return nil, newError(CodeUnauthenticated)
	}
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = models.ModeAll
	}
	if mode != models.ModeSolo && mode != models.ModeDuo && mode != models.ModeAll {
		return nil, newError(CodeInvalidMode)
	}

	layout, err := c.store.ListLayout(ctx, gameID)
	if err != nil {
		return nil, c.internal("create_room", err)
	}
	selected := selectSeats(layout, mode, duoRole)
	if mode == models.ModeDuo && len(selected) < 2 {
		return nil, newError(CodeInsufficientRoleCapacity)
	}
	if len(selected) == 0 {
		if duoRole != "" {
			return nil, newError(CodeInsufficientRoleCapacity)
		}
		return nil, newError(CodeNoActiveSlots)
	}

	now := c.now()
	room := &models.Room{
		ID:               newID(),
		GameID:           gameID,
		Mode:             mode,
		Status:           models.RoomStatusOpen,
		OwnerID:          caller.OwnerID,
		SlotCount:        len(selected),
		CreatedAt:        now,
		UpdatedAt:        now,
		HostLastActiveAt: now,
	}
	if err := c.insertWithCode(ctx, room); err != nil {
		return nil, err
	}

	seats := make([]models.RoomSeat, len(selected))
	for i, entry := range selected {
		seats[i] = models.RoomSeat{
			ID:        newID(),
			RoomID:    room.ID,
			SlotIndex: i,
			Role:      entry.Role,
			UpdatedAt: now,
		}
	}
	if err := c.store.InsertSeats(ctx, seats); err != nil {
		// a room without seats can never start; drop it so its code is freed
		if delErr := c.store.DeleteRoom(ctx, room.ID); delErr != nil {
			c.log.WithError(delErr).WithField("room_id", room.ID).Error("failed to remove seatless room")
		}
		return nil, c.internal("create_room", err)
	}

	metrics.RoomsCreated.WithLabelValues(mode).Inc()
	c.log.WithFields(logrus.Fields{
		"room_id": room.ID,
		"game_id": gameID,
		"code":    room.Code,
		"mode":    mode,
		"seats":   len(seats),
	}).Info("room created")
	c.publish(ctx, room, models.EventRoomCreated, caller.OwnerID, "", uuid.Nil, mode)
	return c.recomputeStats(ctx, room), nil
}

// insertWithCode retries the room insert with fresh codes while the code
// collides with an existing room.
func (c *Coordinator) insertWithCode(ctx context.Context, room *models.Room) error {
	for attempt := 1; attempt <= codeAttempts; attempt++ {
		code, err := c.newCode()
		if err != nil {
			return c.internal("create_room", err)
		}
		room.Code = code
		err = c.store.InsertRoom(ctx, room)
		if err == nil {
			return nil
		}
		if !errors.Is(err, database.ErrConflict) {
			return c.internal("create_room", err)
		}
		metrics.JoinCodeCollisions.Inc()
		c.log.WithFields(logrus.Fields{"code": code, "attempt": attempt}).Debug("join code collision")
	}
	return newError(CodeCodeGenerationFailed)
}

// JoinSlot seats the caller with their selected hero. An owner holds at most
// one seat across every room.
func (c *Coordinator) JoinSlot(ctx context.Context, caller Caller, roomID, seatID uuid.UUID) (view *models.RoomView, err error) {
	defer c.observe("join_slot", &err)
	if caller.OwnerID == "" {
		return nil, newError(CodeUnauthenticated)
	}
	if caller.HeroID == "" {
		return nil, newError(CodeNoHeroSelected)
	}
	room, err := c.loadRoom(ctx, "join_slot", roomID)
	if err != nil {
		return nil, err
	}
	if room.Status != models.RoomStatusOpen {
		return nil, newError(CodeRoomNotOpen)
	}

	current, err := c.store.FindSeatByOccupant(ctx, caller.OwnerID)
	if err != nil {
		return nil, c.internal("join_slot", err)
	}
	if current != nil {
		if current.ID != seatID {
			return nil, newError(CodeAlreadyInRoom)
		}
		return c.recomputeStats(ctx, room), nil
	}

	now := c.now()
	ok, err := c.store.OccupySeat(ctx, roomID, seatID, caller.OwnerID, caller.HeroID, now)
	if errors.Is(err, database.ErrConflict) {
		return nil, newError(CodeAlreadyInRoom)
	}
	if err != nil {
		return nil, c.internal("join_slot", err)
	}
	if !ok {
		return nil, c.missedSeat(ctx, roomID, seatID, CodeSeatAlreadyTaken)
	}

	if room.OwnerID == caller.OwnerID {
		c.touchHost(ctx, room, now)
	}
	c.publish(ctx, room, models.EventSeatJoined, caller.OwnerID, "", seatID, "")
	return c.recomputeStats(ctx, room), nil
}

// LeaveSlot frees the caller's own seat. Seats are frozen once the room is
// starting.
func (c *Coordinator) LeaveSlot(ctx context.Context, caller Caller, roomID, seatID uuid.UUID) (view *models.RoomView, err error) {
	defer c.observe("leave_slot", &err)
	if caller.OwnerID == "" {
		return nil, newError(CodeUnauthenticated)
	}
	room, err := c.loadRoom(ctx, "leave_slot", roomID)
	if err != nil {
		return nil, err
	}
	if room.Status != models.RoomStatusOpen {
		return nil, newError(CodeRoomNotOpen)
	}
	ok, err := c.store.VacateSeat(ctx, roomID, seatID, caller.OwnerID, c.now())
	if err != nil {
		return nil, c.internal("leave_slot", err)
	}
	if !ok {
		return nil, c.missedSeat(ctx, roomID, seatID, CodeSeatNotOwned)
	}
	c.publish(ctx, room, models.EventSeatLeft, caller.OwnerID, "", seatID, "")
	return c.recomputeStats(ctx, room), nil
}

// ToggleReady sets the ready flag on the caller's own seat while the room is
// open.
func (c *Coordinator) ToggleReady(ctx context.Context, caller Caller, roomID, seatID uuid.UUID, ready bool) (view *models.RoomView, err error) {
	defer c.observe("toggle_ready", &err)
	if caller.OwnerID == "" {
		return nil, newError(CodeUnauthenticated)
	}
	room, err := c.loadRoom(ctx, "toggle_ready", roomID)
	if err != nil {
		return nil, err
	}
	if room.Status != models.RoomStatusOpen {
		return nil, newError(CodeRoomNotOpen)
	}
	ok, err := c.store.SetSeatReady(ctx, roomID, seatID, caller.OwnerID, ready, c.now())
	if err != nil {
		return nil, c.internal("toggle_ready", err)
	}
	if !ok {
		return nil, c.missedSeat(ctx, roomID, seatID, CodeSeatNotOwned)
	}
	reason := "unready"
	if ready {
		reason = "ready"
	}
	c.publish(ctx, room, models.EventSeatReady, caller.OwnerID, "", seatID, reason)
	return c.recomputeStats(ctx, room), nil
}

// KickSlot lets the host empty any seat of an open room.
func (c *Coordinator) KickSlot(ctx context.Context, caller Caller, roomID, seatID uuid.UUID) (view *models.RoomView, err error) {
	defer c.observe("kick_slot", &err)
	if caller.OwnerID == "" {
		return nil, newError(CodeUnauthenticated)
	}
	room, err := c.loadRoom(ctx, "kick_slot", roomID)
	if err != nil {
		return nil, err
	}
	if room.OwnerID != caller.OwnerID {
		return nil, newError(CodeNotHost)
	}
	if room.Status != models.RoomStatusOpen {
		return nil, newError(CodeRoomNotOpen)
	}
	seats, err := c.store.ListSeats(ctx, roomID)
	if err != nil {
		return nil, c.internal("kick_slot", err)
	}
	seat := findSeat(seats, seatID)
	if seat == nil {
		return nil, newError(CodeSeatNotFound)
	}

	now := c.now()
	cleared, err := c.store.ClearSeat(ctx, roomID, seatID, now)
	if err != nil {
		return nil, c.internal("kick_slot", err)
	}
	c.touchHost(ctx, room, now)
	if cleared {
		var target string
		if seat.OccupantOwnerID != nil {
			target = *seat.OccupantOwnerID
		}
		c.publish(ctx, room, models.EventSeatKicked, caller.OwnerID, target, seatID, "")
	}
	return c.recomputeStats(ctx, room), nil
}

// ClaimHost hands the room to a seated caller once the host has been
// inactive longer than the configured window.
func (c *Coordinator) ClaimHost(ctx context.Context, caller Caller, roomID uuid.UUID) (view *models.RoomView, err error) {
	defer c.observe("claim_host", &err)
	if caller.OwnerID == "" {
		return nil, newError(CodeUnauthenticated)
	}
	room, err := c.loadRoom(ctx, "claim_host", roomID)
	if err != nil {
		return nil, err
	}
	if room.OwnerID == caller.OwnerID {
		return c.recomputeStats(ctx, room), nil
	}
	seats, err := c.store.ListSeats(ctx, roomID)
	if err != nil {
		return nil, c.internal("claim_host", err)
	}
	if !seatedIn(seats, caller.OwnerID) {
		return nil, newError(CodeNotSeated)
	}

	now := c.now()
	cutoff := now.Add(-c.hostInactivity)
	if !room.HostInactiveSince(cutoff) {
		return nil, newError(CodeHostStillActive)
	}
	ok, err := c.store.ReassignHost(ctx, roomID, caller.OwnerID, cutoff, now)
	if err != nil {
		return nil, c.internal("claim_host", err)
	}
	if !ok {
		// the host came back between the read and the write
		return nil, newError(CodeHostStillActive)
	}

	previous := room.OwnerID
	room.OwnerID, room.HostLastActiveAt = caller.OwnerID, now
	c.log.WithFields(logrus.Fields{
		"room_id":  roomID,
		"previous": previous,
		"host":     caller.OwnerID,
	}).Info("host claimed")
	c.publish(ctx, room, models.EventHostClaimed, caller.OwnerID, previous, uuid.Nil, "")
	return c.recomputeStats(ctx, room), nil
}

// StartRoom moves a fully seated, fully ready room to starting.
func (c *Coordinator) StartRoom(ctx context.Context, caller Caller, roomID uuid.UUID) (view *models.RoomView, err error) {
	defer c.observe("start_room", &err)
	if caller.OwnerID == "" {
		return nil, newError(CodeUnauthenticated)
	}
	room, err := c.loadRoom(ctx, "start_room", roomID)
	if err != nil {
		return nil, err
	}
	if room.OwnerID != caller.OwnerID {
		return nil, newError(CodeNotHost)
	}
	if room.Status != models.RoomStatusOpen {
		return nil, newError(CodeRoomNotOpen)
	}
	seats, err := c.store.ListSeats(ctx, roomID)
	if err != nil {
		return nil, c.internal("start_room", err)
	}
	filled, ready := countSeats(seats)
	if len(seats) == 0 || filled < len(seats) {
		return nil, newError(CodeNotAllFilled)
	}
	if ready < len(seats) {
		return nil, newError(CodeNotAllReady)
	}

	now := c.now()
	ok, err := c.store.MarkRoomStarting(ctx, roomID, now)
	if err != nil {
		return nil, c.internal("start_room", err)
	}
	if !ok {
		return nil, newError(CodeRoomNotOpen)
	}
	room.Status, room.HostLastActiveAt = models.RoomStatusStarting, now
	c.log.WithField("room_id", roomID).Info("room starting")
	c.publish(ctx, room, models.EventRoomStarting, caller.OwnerID, "", uuid.Nil, "")
	return c.recomputeStats(ctx, room), nil
}

// JoinByCode looks a room up by its join code. The caller adopts the
// returned room's mode.
func (c *Coordinator) JoinByCode(ctx context.Context, code string) (room *models.Room, err error) {
	defer c.observe("join_by_code", &err)
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != CodeLength {
		return nil, newError(CodeRoomNotFound)
	}
	room, err = c.store.GetRoomByCode(ctx, code)
	if errors.Is(err, database.ErrNotFound) {
		return nil, newError(CodeRoomNotFound)
	}
	if err != nil {
		return nil, c.internal("join_by_code", err)
	}
	return room, nil
}

// GetRoom returns a room with its seats.
func (c *Coordinator) GetRoom(ctx context.Context, roomID uuid.UUID) (*models.RoomView, error) {
	room, err := c.loadRoom(ctx, "get_room", roomID)
	if err != nil {
		return nil, err
	}
	seats, err := c.store.ListSeats(ctx, roomID)
	if err != nil {
		return nil, c.internal("get_room", err)
	}
	return &models.RoomView{Room: *room, Seats: seats}, nil
}

// recomputeStats re-reads the seats of room and overwrites its cached
// counters. Failures are logged; the seat write before it already stands.
func (c *Coordinator) recomputeStats(ctx context.Context, room *models.Room) *models.RoomView {
	view := &models.RoomView{Room: *room}
	seats, err := c.store.ListSeats(ctx, room.ID)
	if err != nil {
		c.log.WithError(err).WithField("room_id", room.ID).Warn("stats recompute: list seats failed")
		return view
	}
	filled, ready := countSeats(seats)
	now := c.now()
	if err := c.store.UpdateRoomCounts(ctx, room.ID, filled, ready, now); err != nil {
		c.log.WithError(err).WithField("room_id", room.ID).Warn("stats recompute: update counts failed")
	} else {
		view.Room.UpdatedAt = now
	}
	view.Room.FilledCount, view.Room.ReadyCount = filled, ready
	view.Seats = seats
	return view
}

func (c *Coordinator) loadRoom(ctx context.Context, op string, roomID uuid.UUID) (*models.Room, error) {
	room, err := c.store.GetRoom(ctx, roomID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, newError(CodeRoomNotFound)
	}
	if err != nil {
		return nil, c.internal(op, err)
	}
	return room, nil
}

// missedSeat explains a conditional write that matched nothing: either the
// seat is not part of the room, or its guard failed with code.
func (c *Coordinator) missedSeat(ctx context.Context, roomID, seatID uuid.UUID, code string) error {
	seats, err := c.store.ListSeats(ctx, roomID)
	if err != nil {
		return c.internal("seat_lookup", err)
	}
	if findSeat(seats, seatID) == nil {
		return newError(CodeSeatNotFound)
	}
	return newError(code)
}

func (c *Coordinator) touchHost(ctx context.Context, room *models.Room, at time.Time) {
	if err := c.store.TouchHost(ctx, room.ID, at); err != nil {
		c.log.WithError(err).WithField("room_id", room.ID).Warn("failed to refresh host activity")
		return
	}
	room.HostLastActiveAt = at
}

func (c *Coordinator) publish(ctx context.Context, room *models.Room, typ, actor, target string, seatID uuid.UUID, reason string) {
	if c.pub == nil {
		return
	}
	ev := models.RoomEvent{
		ID:       newID(),
		RoomID:   room.ID,
		GameID:   room.GameID,
		Type:     typ,
		ActorID:  actor,
		TargetID: target,
		SeatID:   seatID,
		Reason:   reason,
		At:       c.now(),
	}
	if err := c.pub.Publish(ctx, ev); err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{"room_id": room.ID, "type": typ}).Warn("failed to publish room event")
	}
}

func (c *Coordinator) internal(op string, err error) *Error {
	c.log.WithError(err).WithField("op", op).Error("lobby operation failed")
	e := newError(CodeInternal)
	e.Err = err
	return e
}

func (c *Coordinator) observe(op string, err *error) {
	metrics.LobbyOperations.WithLabelValues(op, Code(*err)).Inc()
}

// selectSeats picks the active layout seats a new room gets, in seat order.
func selectSeats(layout []models.SeatLayoutEntry, mode, duoRole string) []models.SeatLayoutEntry {
	role := strings.ToLower(strings.TrimSpace(duoRole))
	var out []models.SeatLayoutEntry
	for _, entry := range layout {
		if !entry.Active {
			continue
		}
		if mode == models.ModeDuo || (mode == models.ModeSolo && role != "") {
			if strings.ToLower(strings.TrimSpace(entry.Role)) != role {
				continue
			}
		}
		out = append(out, entry)
	}
	if mode == models.ModeSolo && len(out) > 1 {
		out = out[:1]
	}
	return out
}

func countSeats(seats []models.RoomSeat) (filled, ready int) {
	for _, s := range seats {
		if s.Occupied() {
			filled++
			if s.OccupantReady {
				ready++
			}
		}
	}
	return filled, ready
}

func findSeat(seats []models.RoomSeat, seatID uuid.UUID) *models.RoomSeat {
	for i := range seats {
		if seats[i].ID == seatID {
			return &seats[i]
		}
	}
	return nil
}

func seatedIn(seats []models.RoomSeat, ownerID string) bool {
	for _, s := range seats {
		if s.OccupiedBy(ownerID) {
			return true
		}
	}
	return false
}

func newID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
