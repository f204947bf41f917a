package lobby

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/lobbyhub/internal/database"
	"github.com/jason-s-yu/lobbyhub/internal/memstore"
	"github.com/jason-s-yu/lobbyhub/internal/models"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.RoomEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev models.RoomEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func (p *recordingPublisher) Last() models.RoomEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

type fixture struct {
	coord *Coordinator
	store *memstore.Store
	clock *clock
	pub   *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	store.SetLayout("g1", []models.SeatLayoutEntry{
		{SlotIndex: 0, Role: "tank", Active: true},
		{SlotIndex: 1, Role: "tank", Active: true},
		{SlotIndex: 2, Role: "healer", Active: true},
		{SlotIndex: 3, Role: "dps", Active: false},
	})
	clk := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	pub := &recordingPublisher{}
	logger, _ := test.NewNullLogger()
	coord := NewCoordinator(store, logger, Config{Publisher: pub, Now: clk.Now})
	return &fixture{coord: coord, store: store, clock: clk, pub: pub}
}

func (f *fixture) createRoom(t *testing.T, host string) *models.RoomView {
	t.Helper()
	view, err := f.coord.CreateRoom(context.Background(), Caller{OwnerID: host}, "g1", models.ModeAll, "")
	require.NoError(t, err)
	return view
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var le *Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, code, le.Code)
	assert.NotEmpty(t, le.Message)
}

func assertOccupantConsistent(t *testing.T, seats []models.RoomSeat) {
	t.Helper()
	for _, s := range seats {
		set := s.OccupantOwnerID != nil
		assert.Equal(t, set, s.OccupantHeroID != nil, "seat %d hero", s.SlotIndex)
		assert.Equal(t, set, s.JoinedAt != nil, "seat %d joined_at", s.SlotIndex)
		if !set {
			assert.False(t, s.OccupantReady, "empty seat %d marked ready", s.SlotIndex)
		}
	}
}

func TestCreateRoom_AllMode(t *testing.T) {
	f := newFixture(t)
	view := f.createRoom(t, "host")

	assert.Equal(t, "host", view.Room.OwnerID)
	assert.Equal(t, models.RoomStatusOpen, view.Room.Status)
	assert.Equal(t, 3, view.Room.SlotCount)
	assert.Len(t, view.Room.Code, CodeLength)
	for _, r := range view.Room.Code {
		assert.True(t, strings.ContainsRune(CodeAlphabet, r), "unexpected code rune %q", r)
	}
	require.Len(t, view.Seats, 3)
	for i, s := range view.Seats {
		assert.Equal(t, i, s.SlotIndex)
		assert.False(t, s.Occupied())
	}
	assert.Equal(t, "healer", view.Seats[2].Role)
	assert.Equal(t, []string{models.EventRoomCreated}, f.pub.Types())
}

func TestCreateRoom_Modes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	host := Caller{OwnerID: "host"}

	view, err := f.coord.CreateRoom(ctx, host, "g1", "duo", "Tank")
	require.NoError(t, err)
	assert.Equal(t, models.ModeDuo, view.Room.Mode)
	assert.Len(t, view.Seats, 2)

	_, err = f.coord.CreateRoom(ctx, host, "g1", "duo", "healer")
	requireCode(t, err, CodeInsufficientRoleCapacity)

	_, err = f.coord.CreateRoom(ctx, host, "g1", "duo", "dps")
	requireCode(t, err, CodeInsufficientRoleCapacity)

	view, err = f.coord.CreateRoom(ctx, host, "g1", "solo", "")
	require.NoError(t, err)
	require.Len(t, view.Seats, 1)
	assert.Equal(t, "tank", view.Seats[0].Role)

	_, err = f.coord.CreateRoom(ctx, host, "g1", "squad", "")
	requireCode(t, err, CodeInvalidMode)

	_, err = f.coord.CreateRoom(ctx, host, "nope", "", "")
	requireCode(t, err, CodeNoActiveSlots)

	_, err = f.coord.CreateRoom(ctx, Caller{}, "g1", "", "")
	requireCode(t, err, CodeUnauthenticated)
}

func TestCreateRoom_RetriesCodeCollisions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	codes := []string{"AAAAAA", "AAAAAA", "AAAAAA", "BBBBBB"}
	var mu sync.Mutex
	f.coord.newCode = func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		code := codes[0]
		codes = codes[1:]
		return code, nil
	}

	first, err := f.coord.CreateRoom(ctx, Caller{OwnerID: "a"}, "g1", "", "")
	require.NoError(t, err)
	assert.Equal(t, "AAAAAA", first.Room.Code)

	second, err := f.coord.CreateRoom(ctx, Caller{OwnerID: "b"}, "g1", "", "")
	require.NoError(t, err)
	assert.Equal(t, "BBBBBB", second.Room.Code)
}

func TestCreateRoom_GivesUpAfterFiveCollisions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	calls := 0
	f.coord.newCode = func() (string, error) {
		calls++
		return "AAAAAA", nil
	}
	_, err := f.coord.CreateRoom(ctx, Caller{OwnerID: "a"}, "g1", "", "")
	require.NoError(t, err)

	calls = 0
	_, err = f.coord.CreateRoom(ctx, Caller{OwnerID: "b"}, "g1", "", "")
	requireCode(t, err, CodeCodeGenerationFailed)
	assert.Equal(t, 5, calls)
}

func TestCreateRoom_CodeGeneratorErrorIsFatal(t *testing.T) {
	f := newFixture(t)
	f.coord.newCode = func() (string, error) { return "", errors.New("entropy exhausted") }

	_, err := f.coord.CreateRoom(context.Background(), Caller{OwnerID: "a"}, "g1", "", "")
	requireCode(t, err, CodeInternal)
}

func TestJoinSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createRoom(t, "host")
	roomID, seat0, seat1 := view.Room.ID, view.Seats[0].ID, view.Seats[1].ID

	_, err := f.coord.JoinSlot(ctx, Caller{OwnerID: "alice"}, roomID, seat0)
	requireCode(t, err, CodeNoHeroSelected)

	view, err = f.coord.JoinSlot(ctx, Caller{OwnerID: "alice", HeroID: "h1"}, roomID, seat0)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Room.FilledCount)
	assert.True(t, view.Seats[0].OccupiedBy("alice"))
	assertOccupantConsistent(t, view.Seats)

	_, err = f.coord.JoinSlot(ctx, Caller{OwnerID: "bob", HeroID: "h2"}, roomID, seat0)
	requireCode(t, err, CodeSeatAlreadyTaken)

	_, err = f.coord.JoinSlot(ctx, Caller{OwnerID: "alice", HeroID: "h1"}, roomID, seat1)
	requireCode(t, err, CodeAlreadyInRoom)

	// rejoining the seat already held is a no-op
	view, err = f.coord.JoinSlot(ctx, Caller{OwnerID: "alice", HeroID: "h1"}, roomID, seat0)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Room.FilledCount)

	_, err = f.coord.JoinSlot(ctx, Caller{OwnerID: "bob", HeroID: "h2"}, roomID, uuid.New())
	requireCode(t, err, CodeSeatNotFound)

	_, err = f.coord.JoinSlot(ctx, Caller{OwnerID: "bob", HeroID: "h2"}, uuid.New(), seat1)
	requireCode(t, err, CodeRoomNotFound)
}

func TestJoinSlot_AlreadyInAnotherRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createRoom(t, "host-a")
	b := f.createRoom(t, "host-b")

	_, err := f.coord.JoinSlot(ctx, Caller{OwnerID: "alice", HeroID: "h1"}, a.Room.ID, a.Seats[0].ID)
	require.NoError(t, err)
	_, err = f.coord.JoinSlot(ctx, Caller{OwnerID: "alice", HeroID: "h1"}, b.Room.ID, b.Seats[0].ID)
	requireCode(t, err, CodeAlreadyInRoom)
}

func TestJoinSlot_RaceHasOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createRoom(t, "host")
	roomID, seatID := view.Room.ID, view.Seats[0].ID

	const n = 16
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			caller := Caller{OwnerID: fmt.Sprintf("owner-%d", i), HeroID: fmt.Sprintf("hero-%d", i)}
			_, results[i] = f.coord.JoinSlot(ctx, caller, roomID, seatID)
		}(i)
	}
	wg.Wait()

	winners := 0
	winner := ""
	for i, err := range results {
		if err == nil {
			winners++
			winner = fmt.Sprintf("owner-%d", i)
			continue
		}
		assert.Equal(t, CodeSeatAlreadyTaken, Code(err))
	}
	require.Equal(t, 1, winners)

	final, err := f.coord.GetRoom(ctx, roomID)
	require.NoError(t, err)
	assert.True(t, final.Seats[0].OccupiedBy(winner))
}

func TestJoinSlot_HostRefreshesActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createRoom(t, "host")

	f.clock.Advance(time.Minute)
	view, err := f.coord.JoinSlot(ctx, Caller{OwnerID: "host", HeroID: "h1"}, view.Room.ID, view.Seats[0].ID)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now(), view.Room.HostLastActiveAt)
}

func TestLeaveSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createRoom(t, "host")
	roomID, seatID := view.Room.ID, view.Seats[0].ID

	_, err := f.coord.JoinSlot(ctx, Caller{OwnerID: "alice", HeroID: "h1"}, roomID, seatID)
	require.NoError(t, err)
	_, err = f.coord.ToggleReady(ctx, Caller{OwnerID: "alice"}, roomID, seatID, true)
	require.NoError(t, err)

	_, err = f.coord.LeaveSlot(ctx, Caller{OwnerID: "bob"}, roomID, seatID)
	requireCode(t, err, CodeSeatNotOwned)

	view, err = f.coord.LeaveSlot(ctx, Caller{OwnerID: "alice"}, roomID, seatID)
	require.NoError(t, err)
	assert.Equal(t, 0, view.Room.FilledCount)
	assert.Equal(t, 0, view.Room.ReadyCount)
	assertOccupantConsistent(t, view.Seats)

	_, err = f.coord.LeaveSlot(ctx, Caller{OwnerID: "alice"}, roomID, seatID)
	requireCode(t, err, CodeSeatNotOwned)
}

func TestToggleReady_OnlyOwnSeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createRoom(t, "host")
	roomID, seatID := view.Room.ID, view.Seats[0].ID

	_, err := f.coord.ToggleReady(ctx, Caller{OwnerID: "alice"}, roomID, seatID, true)
	requireCode(t, err, CodeSeatNotOwned)

	_, err = f.coord.JoinSlot(ctx, Caller{OwnerID: "alice", HeroID: "h1"}, roomID, seatID)
	require.NoError(t, err)
	view, err = f.coord.ToggleReady(ctx, Caller{OwnerID: "alice"}, roomID, seatID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Room.ReadyCount)
	assert.Equal(t, "ready", f.pub.Last().Reason)

	view, err = f.coord.ToggleReady(ctx, Caller{OwnerID: "alice"}, roomID, seatID, false)
	require.NoError(t, err)
	assert.Equal(t, 0, view.Room.ReadyCount)
}

func TestKickSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createRoom(t, "host")
	roomID, seatID := view.Room.ID, view.Seats[1].ID

	_, err := f.coord.JoinSlot(ctx, Caller{OwnerID: "alice", HeroID: "h1"}, roomID, seatID)
	require.NoError(t, err)

	_, err = f.coord.KickSlot(ctx, Caller{OwnerID: "alice"}, roomID, seatID)
	requireCode(t, err, CodeNotHost)

	f.clock.Advance(2 * time.Minute)
	view, err = f.coord.KickSlot(ctx, Caller{OwnerID: "host"}, roomID, seatID)
	require.NoError(t, err)
	assert.False(t, view.Seats[1].Occupied())
	assert.Equal(t, f.clock.Now(), view.Room.HostLastActiveAt)
	assertOccupantConsistent(t, view.Seats)

	ev := f.pub.Last()
	assert.Equal(t, models.EventSeatKicked, ev.Type)
	assert.Equal(t, "host", ev.ActorID)
	assert.Equal(t, "alice", ev.TargetID)

	_, err = f.coord.KickSlot(ctx, Caller{OwnerID: "host"}, roomID, uuid.New())
	requireCode(t, err, CodeSeatNotFound)
}

func TestClaimHost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createRoom(t, "host")
	roomID := view.Room.ID

	_, err := f.coord.JoinSlot(ctx, Caller{OwnerID: "alice", HeroID: "h1"}, roomID, view.Seats[0].ID)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)
	_, err = f.coord.ClaimHost(ctx, Caller{OwnerID: "alice"}, roomID)
	requireCode(t, err, CodeHostStillActive)
	assert.Equal(t, "방장이 아직 활동 중입니다.", err.(*Error).Message)

	_, err = f.coord.ClaimHost(ctx, Caller{OwnerID: "bob"}, roomID)
	requireCode(t, err, CodeNotSeated)

	f.clock.Advance(2 * time.Minute)
	view, err = f.coord.ClaimHost(ctx, Caller{OwnerID: "alice"}, roomID)
	require.NoError(t, err)
	assert.Equal(t, "alice", view.Room.OwnerID)
	assert.Equal(t, f.clock.Now(), view.Room.HostLastActiveAt)

	ev := f.pub.Last()
	assert.Equal(t, models.EventHostClaimed, ev.Type)
	assert.Equal(t, "host", ev.TargetID)

	stored, err := f.coord.GetRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.Room.OwnerID)
}

// hostWakesStore simulates the host acting between the coordinator's
// inactivity check and its guarded write.
type hostWakesStore struct {
	*memstore.Store
	at time.Time
}

func (s hostWakesStore) ReassignHost(ctx context.Context, roomID uuid.UUID, newOwner string, cutoff, at time.Time) (bool, error) {
	_ = s.Store.TouchHost(ctx, roomID, s.at)
	return s.Store.ReassignHost(ctx, roomID, newOwner, cutoff, at)
}

func TestClaimHost_LosesRaceToReturningHost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createRoom(t, "host")
	roomID := view.Room.ID
	_, err := f.coord.JoinSlot(ctx, Caller{OwnerID: "alice", HeroID: "h1"}, roomID, view.Seats[0].ID)
	require.NoError(t, err)

	f.clock.Advance(5 * time.Minute)
	logger, _ := test.NewNullLogger()
	coord := NewCoordinator(hostWakesStore{Store: f.store, at: f.clock.Now()}, logger, Config{Now: f.clock.Now})

	_, err = coord.ClaimHost(ctx, Caller{OwnerID: "alice"}, roomID)
	requireCode(t, err, CodeHostStillActive)
}

func TestStartRoom_Gate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view, err := f.coord.CreateRoom(ctx, Caller{OwnerID: "host"}, "g1", models.ModeDuo, "tank")
	require.NoError(t, err)
	roomID := view.Room.ID
	s0, s1 := view.Seats[0].ID, view.Seats[1].ID

	_, err = f.coord.JoinSlot(ctx, Caller{OwnerID: "host", HeroID: "h1"}, roomID, s0)
	require.NoError(t, err)
	_, err = f.coord.ToggleReady(ctx, Caller{OwnerID: "host"}, roomID, s0, true)
	require.NoError(t, err)

	_, err = f.coord.StartRoom(ctx, Caller{OwnerID: "host"}, roomID)
	requireCode(t, err, CodeNotAllFilled)

	_, err = f.coord.JoinSlot(ctx, Caller{OwnerID: "alice", HeroID: "h2"}, roomID, s1)
	require.NoError(t, err)
	_, err = f.coord.StartRoom(ctx, Caller{OwnerID: "host"}, roomID)
	requireCode(t, err, CodeNotAllReady)

	_, err = f.coord.ToggleReady(ctx, Caller{OwnerID: "alice"}, roomID, s1, true)
	require.NoError(t, err)

	_, err = f.coord.StartRoom(ctx, Caller{OwnerID: "alice"}, roomID)
	requireCode(t, err, CodeNotHost)

	view, err = f.coord.StartRoom(ctx, Caller{OwnerID: "host"}, roomID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusStarting, view.Room.Status)
	assert.Equal(t, 2, view.Room.ReadyCount)

	_, err = f.coord.StartRoom(ctx, Caller{OwnerID: "host"}, roomID)
	requireCode(t, err, CodeRoomNotOpen)

	_, err = f.coord.LeaveSlot(ctx, Caller{OwnerID: "alice"}, roomID, s1)
	requireCode(t, err, CodeRoomNotOpen)
	_, err = f.coord.ToggleReady(ctx, Caller{OwnerID: "alice"}, roomID, s1, false)
	requireCode(t, err, CodeRoomNotOpen)
	_, err = f.coord.KickSlot(ctx, Caller{OwnerID: "host"}, roomID, s1)
	requireCode(t, err, CodeRoomNotOpen)
	_, err = f.coord.JoinSlot(ctx, Caller{OwnerID: "bob", HeroID: "h3"}, roomID, s1)
	requireCode(t, err, CodeRoomNotOpen)

	view, err = f.coord.GetRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Room.FilledCount)
	assert.Equal(t, 2, view.Room.ReadyCount)
}

// failingSeatsStore accepts the room row but refuses its seats.
type failingSeatsStore struct {
	*memstore.Store
	roomID uuid.UUID
}

func (s *failingSeatsStore) InsertSeats(_ context.Context, seats []models.RoomSeat) error {
	s.roomID = seats[0].RoomID
	return errors.New("connection reset")
}

func TestCreateRoom_SeatInsertFailureDropsRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	pub := &recordingPublisher{}
	store := &failingSeatsStore{Store: f.store}
	coord := NewCoordinator(store, logger, Config{Publisher: pub, Now: f.clock.Now})

	_, err := coord.CreateRoom(ctx, Caller{OwnerID: "host"}, "g1", models.ModeAll, "")
	requireCode(t, err, CodeInternal)
	assert.Empty(t, pub.Types())

	require.NotEqual(t, uuid.Nil, store.roomID)
	_, err = f.store.GetRoom(ctx, store.roomID)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestJoinByCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view, err := f.coord.CreateRoom(ctx, Caller{OwnerID: "host"}, "g1", models.ModeDuo, "tank")
	require.NoError(t, err)

	room, err := f.coord.JoinByCode(ctx, " "+strings.ToLower(view.Room.Code)+" ")
	require.NoError(t, err)
	assert.Equal(t, view.Room.ID, room.ID)
	assert.Equal(t, models.ModeDuo, room.Mode)

	_, err = f.coord.JoinByCode(ctx, "ZZZZZZ")
	requireCode(t, err, CodeRoomNotFound)
	_, err = f.coord.JoinByCode(ctx, "abc")
	requireCode(t, err, CodeRoomNotFound)
}

// countsFailStore fails every counter write.
type countsFailStore struct {
	*memstore.Store
}

func (countsFailStore) UpdateRoomCounts(context.Context, uuid.UUID, int, int, time.Time) error {
	return errors.New("connection reset")
}

func TestStatsFailureDoesNotFailMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createRoom(t, "host")

	logger, hook := test.NewNullLogger()
	coord := NewCoordinator(countsFailStore{f.store}, logger, Config{Now: f.clock.Now})

	view, err := coord.JoinSlot(ctx, Caller{OwnerID: "alice", HeroID: "h1"}, view.Room.ID, view.Seats[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Room.FilledCount)
	require.NotNil(t, hook.LastEntry())
	assert.Contains(t, hook.LastEntry().Message, "stats recompute")
}

// brokenStore fails every room read.
type brokenStore struct {
	*memstore.Store
}

var errBroken = errors.New("db down")

func (brokenStore) GetRoom(context.Context, uuid.UUID) (*models.Room, error) {
	return nil, errBroken
}

func TestInfrastructureErrorsAreGeneric(t *testing.T) {
	logger, hook := test.NewNullLogger()
	coord := NewCoordinator(brokenStore{memstore.New()}, logger, Config{})

	_, err := coord.LeaveSlot(context.Background(), Caller{OwnerID: "alice"}, uuid.New(), uuid.New())
	requireCode(t, err, CodeInternal)
	assert.ErrorIs(t, err, errBroken)
	assert.Equal(t, messages[CodeInternal], err.(*Error).Message)
	assert.NotEmpty(t, hook.AllEntries())
}

func TestGenerateCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, CodeLength)
		for _, r := range code {
			require.True(t, strings.ContainsRune(CodeAlphabet, r))
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 40)
}
