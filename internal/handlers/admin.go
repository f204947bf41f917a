// internal/handlers/admin.go
package handlers

import (
	"net/http"
	"time"

	"github.com/jason-s-yu/lobbyhub/internal/lobby"
	"github.com/jason-s-yu/lobbyhub/internal/reclaim"
)

type reclaimRequest struct {
	GameID           string `json:"game_id"`
	OlderThanSeconds int    `json:"older_than_seconds"`
}

// ReclaimHandler runs one stale slot sweep on demand. Only owners listed
// as admins may call it.
func (a *API) ReclaimHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := a.authenticate(w, r)
		if !ok {
			return
		}
		if !a.admins[ownerID] {
			writeFailure(w, http.StatusForbidden, codeNotAdmin)
			return
		}
		if a.reclaimer == nil {
			writeFailure(w, http.StatusServiceUnavailable, codeUnavailable)
			return
		}
		var req reclaimRequest
		if err := decodeBody(w, r, &req); err != nil || req.OlderThanSeconds < 0 {
			writeFailure(w, http.StatusBadRequest, codeBadRequest)
			return
		}

		report, err := a.reclaimer.ReleaseStaleSlots(r.Context(), reclaim.Options{
			GameID:    req.GameID,
			OlderThan: time.Duration(req.OlderThanSeconds) * time.Second,
		})
		if err != nil {
			a.log.WithError(err).WithField("admin", ownerID).Error("manual reclaim failed")
			writeLobbyError(w, lobby.NewError(lobby.CodeInternal))
			return
		}
		if report.Reasons == nil {
			report.Reasons = []reclaim.Release{}
		}
		writeOK(w, map[string]any{"report": report})
	}
}
