package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/jason-s-yu/lobbyhub/internal/auth"
	"github.com/jason-s-yu/lobbyhub/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) dial(t *testing.T, srv *httptest.Server, roomID uuid.UUID, owner string, protocols ...string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	header := http.Header{}
	if owner != "" {
		header.Set("Cookie", auth.CookieName+"="+f.token(t, owner))
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/rooms/" + roomID.String() + "/ws"
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: protocols, HTTPHeader: header})
	require.NoError(t, err)
	t.Cleanup(func() { c.CloseNow() })
	return c
}

func readRoom(t *testing.T, c *websocket.Conn) roomMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var msg roomMessage
	require.NoError(t, wsjson.Read(ctx, c, &msg))
	return msg
}

func closeCode(t *testing.T, c *websocket.Conn) websocket.StatusCode {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := c.Read(ctx)
	require.Error(t, err)
	return websocket.CloseStatus(err)
}

func TestRoomSocket_PushesOnChange(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()
	v := f.createRoom(t, "host")

	c := f.dial(t, srv, v.Room.ID, "alice", RoomSubprotocol)
	first := readRoom(t, c)
	assert.Equal(t, "room_state", first.Type)
	require.NotNil(t, first.Room)
	assert.Equal(t, 0, first.Room.Room.FilledCount)
	require.Eventually(t, func() bool { return f.hub.Subscribers(v.Room.ID) == 1 }, time.Second, 10*time.Millisecond)

	status, _ := f.do(t, http.MethodPost, seatPath(v, 0, "join"), "alice", map[string]string{"hero_id": "h"})
	require.Equal(t, http.StatusOK, status)

	next := readRoom(t, c)
	assert.Equal(t, 1, next.Room.Room.FilledCount)
	assert.True(t, next.Room.Seats[0].OccupiedBy("alice"))
}

func TestRoomSocket_ClosesWhenRoomStarts(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()
	v := f.createRoom(t, "host")
	f.do(t, http.MethodPost, seatPath(v, 0, "join"), "alice", map[string]string{"hero_id": "h1"})
	f.do(t, http.MethodPost, seatPath(v, 1, "join"), "bob", map[string]string{"hero_id": "h2"})
	f.do(t, http.MethodPost, seatPath(v, 0, "ready"), "alice", nil)
	f.do(t, http.MethodPost, seatPath(v, 1, "ready"), "bob", nil)

	c := f.dial(t, srv, v.Room.ID, "alice", RoomSubprotocol)
	readRoom(t, c)

	status, _ := f.do(t, http.MethodPost, "/rooms/"+v.Room.ID.String()+"/start", "host", nil)
	require.Equal(t, http.StatusOK, status)

	last := readRoom(t, c)
	assert.Equal(t, models.RoomStatusStarting, last.Room.Room.Status)
	assert.Equal(t, websocket.StatusCode(RoomStartedClosure), closeCode(t, c))
	require.Eventually(t, func() bool { return f.hub.Subscribers(v.Room.ID) == 0 }, time.Second, 10*time.Millisecond)
}

func TestRoomSocket_Rejections(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()
	v := f.createRoom(t, "host")

	c := f.dial(t, srv, v.Room.ID, "alice")
	assert.Equal(t, websocket.StatusCode(BadSubprotocolError), closeCode(t, c))

	c = f.dial(t, srv, v.Room.ID, "", RoomSubprotocol)
	assert.Equal(t, websocket.StatusCode(InvalidAuthTokenError), closeCode(t, c))

	c = f.dial(t, srv, uuid.New(), "alice", RoomSubprotocol)
	assert.Equal(t, websocket.StatusCode(InvalidRoomIDError), closeCode(t, c))
}
