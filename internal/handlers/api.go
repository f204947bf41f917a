// internal/handlers/api.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/jason-s-yu/lobbyhub/internal/auth"
	"github.com/jason-s-yu/lobbyhub/internal/lobby"
	"github.com/jason-s-yu/lobbyhub/internal/models"
	"github.com/jason-s-yu/lobbyhub/internal/reclaim"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Handler-local error codes, next to the lobby codes.
const (
	codeBadRequest  = "bad_request"
	codeInvalidPlan = "invalid_plan"
	codeNotAdmin    = "not_admin"
	codeUnavailable = "unavailable"
)

var localMessages = map[string]string{
	codeBadRequest:  "잘못된 요청입니다.",
	codeInvalidPlan: "배정 정보를 해석할 수 없습니다.",
	codeNotAdmin:    "관리자만 할 수 있습니다.",
	codeUnavailable: "서비스를 사용할 수 없습니다.",
}

// LayoutSource reads the static seat layout of a game.
type LayoutSource interface {
	ListLayout(ctx context.Context, gameID string) ([]models.SeatLayoutEntry, error)
}

// Deps wires the API to the services it fronts. Reclaimer, Layouts and
// Health may be nil; their routes then answer 503.
type Deps struct {
	Coordinator  *lobby.Coordinator
	Reclaimer    *reclaim.Reclaimer
	Layouts      LayoutSource
	Sessions     *auth.Sessions
	Hub          *RoomHub
	Admins       []string
	Health       func(ctx context.Context) error
	Logger       logrus.FieldLogger
	PollInterval time.Duration // room socket fallback poll; default 2s
}

// API serves the room lobby over HTTP and websockets.
type API struct {
	coord     *lobby.Coordinator
	reclaimer *reclaim.Reclaimer
	layouts   LayoutSource
	sessions  *auth.Sessions
	hub       *RoomHub
	admins    map[string]bool
	health    func(ctx context.Context) error
	log       logrus.FieldLogger
	poll      time.Duration
}

// NewAPI builds an API from deps.
func NewAPI(deps Deps) *API {
	a := &API{
		coord:     deps.Coordinator,
		reclaimer: deps.Reclaimer,
		layouts:   deps.Layouts,
		sessions:  deps.Sessions,
		hub:       deps.Hub,
		admins:    make(map[string]bool, len(deps.Admins)),
		health:    deps.Health,
		log:       deps.Logger,
		poll:      deps.PollInterval,
	}
	for _, id := range deps.Admins {
		if id != "" {
			a.admins[id] = true
		}
	}
	if a.hub == nil {
		a.hub = NewRoomHub()
	}
	if a.poll <= 0 {
		a.poll = 2 * time.Second
	}
	return a
}

// Routes registers every endpoint on a fresh mux.
func (a *API) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rooms", a.CreateRoomHandler())
	mux.HandleFunc("POST /rooms/join-code", a.JoinByCodeHandler())
	mux.HandleFunc("GET /rooms/{roomID}", a.GetRoomHandler())
	mux.HandleFunc("POST /rooms/{roomID}/seats/{seatID}/{action}", a.SeatActionHandler())
	mux.HandleFunc("POST /rooms/{roomID}/claim-host", a.ClaimHostHandler())
	mux.HandleFunc("POST /rooms/{roomID}/start", a.StartRoomHandler())
	mux.HandleFunc("GET /rooms/{roomID}/ws", a.RoomSocketHandler())
	mux.HandleFunc("POST /games/{gameID}/roster/resolve", a.ResolveRosterHandler())
	mux.HandleFunc("POST /admin/reclaim", a.ReclaimHandler())
	mux.HandleFunc("GET /healthz", a.HealthHandler())
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// HealthHandler pings the backing store.
func (a *API) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := a.health(ctx); err != nil {
				a.log.WithError(err).Warn("health check failed")
				writeFailure(w, http.StatusServiceUnavailable, codeUnavailable)
				return
			}
		}
		writeOK(w, map[string]any{"status": "up"})
	}
}

// authenticate resolves the caller's owner id, answering 401 itself when
// there is none.
func (a *API) authenticate(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID, err := a.sessions.OwnerFromRequest(r)
	if err != nil {
		if !errors.Is(err, auth.ErrNoToken) {
			a.log.WithError(err).Debug("rejected auth token")
		}
		writeFailure(w, http.StatusUnauthorized, lobby.CodeUnauthenticated)
		return "", false
	}
	return ownerID, true
}

// writeOK answers 200 with fields merged into the {ok: true} envelope.
func writeOK(w http.ResponseWriter, fields map[string]any) {
	body := map[string]any{"ok": true}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

func writeFailure(w http.ResponseWriter, status int, code string) {
	msg, ok := localMessages[code]
	if !ok {
		msg = code
	}
	writeJSON(w, status, map[string]any{"ok": false, "code": code, "error": msg})
}

// writeLobbyError maps a coordinator failure onto the envelope.
func writeLobbyError(w http.ResponseWriter, err error) {
	code := lobby.Code(err)
	msg := code
	var le *lobby.Error
	if errors.As(err, &le) && le.Message != "" {
		msg = le.Message
	}
	writeJSON(w, statusFor(code), map[string]any{"ok": false, "code": code, "error": msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps lobby error codes to HTTP statuses.
func statusFor(code string) int {
	switch code {
	case lobby.CodeUnauthenticated:
		return http.StatusUnauthorized
	case lobby.CodeNotHost, lobby.CodeNotSeated, lobby.CodeSeatNotOwned:
		return http.StatusForbidden
	case lobby.CodeRoomNotFound, lobby.CodeSeatNotFound:
		return http.StatusNotFound
	case lobby.CodeInvalidMode, lobby.CodeNoHeroSelected, lobby.CodeNoActiveSlots, lobby.CodeInsufficientRoleCapacity:
		return http.StatusBadRequest
	case lobby.CodeAlreadyInRoom, lobby.CodeSeatAlreadyTaken, lobby.CodeHostStillActive,
		lobby.CodeNotAllFilled, lobby.CodeNotAllReady, lobby.CodeRoomNotOpen:
		return http.StatusConflict
	case lobby.CodeCodeGenerationFailed:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
