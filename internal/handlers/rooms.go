// internal/handlers/rooms.go
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/lobbyhub/internal/lobby"
	"github.com/jason-s-yu/lobbyhub/internal/models"
)

type createRoomRequest struct {
	GameID  string `json:"game_id"`
	Mode    string `json:"mode"`
	DuoRole string `json:"duo_role"`
}

// CreateRoomHandler opens a room hosted by the caller.
func (a *API) CreateRoomHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := a.authenticate(w, r)
		if !ok {
			return
		}
		var req createRoomRequest
		if err := decodeBody(w, r, &req); err != nil || strings.TrimSpace(req.GameID) == "" {
			writeFailure(w, http.StatusBadRequest, codeBadRequest)
			return
		}
		view, err := a.coord.CreateRoom(r.Context(), lobby.Caller{OwnerID: ownerID}, req.GameID, req.Mode, req.DuoRole)
		if err != nil {
			writeLobbyError(w, err)
			return
		}
		writeOK(w, map[string]any{"room": view})
	}
}

// JoinByCodeHandler looks a room up by its join code. The client follows up
// with a seat join on the returned room.
func (a *API) JoinByCodeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := a.authenticate(w, r); !ok {
			return
		}
		var req struct {
			Code string `json:"code"`
		}
		if err := decodeBody(w, r, &req); err != nil {
			writeFailure(w, http.StatusBadRequest, codeBadRequest)
			return
		}
		room, err := a.coord.JoinByCode(r.Context(), req.Code)
		if err != nil {
			writeLobbyError(w, err)
			return
		}
		writeOK(w, map[string]any{"room": room, "mode": room.Mode})
	}
}

// GetRoomHandler returns a room with its seats.
func (a *API) GetRoomHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := a.authenticate(w, r); !ok {
			return
		}
		roomID, ok := pathRoomID(w, r)
		if !ok {
			return
		}
		view, err := a.coord.GetRoom(r.Context(), roomID)
		if err != nil {
			writeLobbyError(w, err)
			return
		}
		writeOK(w, map[string]any{"room": view})
	}
}

type seatActionRequest struct {
	HeroID string `json:"hero_id"`
	Ready  *bool  `json:"ready"`
}

// SeatActionHandler dispatches join, leave, ready and kick on one seat.
// ready defaults to true when the body omits it.
func (a *API) SeatActionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := a.authenticate(w, r)
		if !ok {
			return
		}
		roomID, ok := pathRoomID(w, r)
		if !ok {
			return
		}
		seatID, err := uuid.Parse(r.PathValue("seatID"))
		if err != nil {
			writeLobbyError(w, lobby.NewError(lobby.CodeSeatNotFound))
			return
		}
		var req seatActionRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeFailure(w, http.StatusBadRequest, codeBadRequest)
			return
		}

		caller := lobby.Caller{OwnerID: ownerID, HeroID: req.HeroID}
		var view *models.RoomView
		switch r.PathValue("action") {
		case "join":
			view, err = a.coord.JoinSlot(r.Context(), caller, roomID, seatID)
		case "leave":
			view, err = a.coord.LeaveSlot(r.Context(), caller, roomID, seatID)
		case "ready":
			ready := req.Ready == nil || *req.Ready
			view, err = a.coord.ToggleReady(r.Context(), caller, roomID, seatID, ready)
		case "kick":
			view, err = a.coord.KickSlot(r.Context(), caller, roomID, seatID)
		default:
			writeFailure(w, http.StatusNotFound, codeBadRequest)
			return
		}
		if err != nil {
			writeLobbyError(w, err)
			return
		}
		writeOK(w, map[string]any{"room": view})
	}
}

// ClaimHostHandler hands the room to the caller if its host went silent.
func (a *API) ClaimHostHandler() http.HandlerFunc {
	return a.roomAction(a.coord.ClaimHost)
}

// StartRoomHandler moves a full, ready room into the starting state.
func (a *API) StartRoomHandler() http.HandlerFunc {
	return a.roomAction(a.coord.StartRoom)
}

type roomOp func(ctx context.Context, caller lobby.Caller, roomID uuid.UUID) (*models.RoomView, error)

func (a *API) roomAction(op roomOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := a.authenticate(w, r)
		if !ok {
			return
		}
		roomID, ok := pathRoomID(w, r)
		if !ok {
			return
		}
		view, err := op(r.Context(), lobby.Caller{OwnerID: ownerID}, roomID)
		if err != nil {
			writeLobbyError(w, err)
			return
		}
		writeOK(w, map[string]any{"room": view})
	}
}

// pathRoomID parses {roomID}; a malformed id is reported as an unknown room.
func pathRoomID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("roomID"))
	if err != nil {
		writeLobbyError(w, lobby.NewError(lobby.CodeRoomNotFound))
		return uuid.Nil, false
	}
	return id, true
}
