// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/jason-s-yu/lobbyhub/internal/lobby"
	"github.com/jason-s-yu/lobbyhub/internal/metrics"
	"github.com/jason-s-yu/lobbyhub/internal/middleware"
	"github.com/jason-s-yu/lobbyhub/internal/models"
	"github.com/sirupsen/logrus"
)

// RoomSubprotocol must be offered by room socket clients.
const RoomSubprotocol = "room"

const writeTimeout = 5 * time.Second

// roomMessage is the only frame the server sends.
type roomMessage struct {
	Type string           `json:"type"`
	Room *models.RoomView `json:"room"`
}

// RoomSocketHandler streams the room view to a client. A new frame goes out
// whenever the room's updated_at moves, checked when the hub signals an event
// for the room and on every poll tick. The socket is push-only: any data
// frame from the client closes it.
func (a *API) RoomSocketHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID, err := uuid.Parse(r.PathValue("roomID"))
		if err != nil {
			http.Error(w, "invalid room id", http.StatusBadRequest)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{RoomSubprotocol},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			a.log.WithError(err).Warn("websocket accept error")
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != RoomSubprotocol {
			c.Close(BadSubprotocolError, "client must speak the room subprotocol")
			return
		}
		ownerID, err := a.sessions.OwnerFromRequest(r)
		if err != nil {
			c.Close(InvalidAuthTokenError, "authentication failed")
			return
		}

		middleware.LogWebSocketConnect(a.log, r.RemoteAddr, r.URL.Path)
		metrics.WebSocketConnections.Inc()
		defer metrics.WebSocketConnections.Dec()

		sub := a.hub.Subscribe(roomID)
		defer a.hub.Unsubscribe(roomID, sub)

		err = a.streamRoom(c.CloseRead(r.Context()), c, roomID, sub)
		middleware.LogWebSocketDisconnect(a.log, r.RemoteAddr, r.URL.Path, err)
		a.log.WithFields(logrus.Fields{"room_id": roomID, "owner_id": ownerID}).Debug("room socket closed")
	}
}

// streamRoom pushes room views until the client leaves, the room is gone or
// the room stops being open.
func (a *API) streamRoom(ctx context.Context, c *websocket.Conn, roomID uuid.UUID, wake <-chan struct{}) error {
	ticker := time.NewTicker(a.poll)
	defer ticker.Stop()

	var last time.Time
	push := func() (bool, error) {
		view, err := a.coord.GetRoom(ctx, roomID)
		if err != nil {
			if lobby.Code(err) == lobby.CodeRoomNotFound {
				c.Close(InvalidRoomIDError, "room does not exist")
				return true, nil
			}
			if ctx.Err() != nil {
				return true, ctx.Err()
			}
			// transient store failure; the next tick retries
			a.log.WithError(err).WithField("room_id", roomID).Warn("room socket refresh failed")
			return false, nil
		}
		if !last.IsZero() && view.Room.UpdatedAt.Equal(last) {
			return false, nil
		}
		last = view.Room.UpdatedAt

		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		if err := wsjson.Write(wctx, c, roomMessage{Type: "room_state", Room: view}); err != nil {
			return true, err
		}
		if view.Room.Status != models.RoomStatusOpen {
			c.Close(RoomStartedClosure, "room started")
			return true, nil
		}
		return false, nil
	}

	for {
		done, err := push()
		if done {
			return err
		}
		select {
		case <-ctx.Done():
			c.Close(websocket.StatusNormalClosure, "")
			return nil
		case <-wake:
		case <-ticker.C:
		}
	}
}
