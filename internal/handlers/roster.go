// internal/handlers/roster.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jason-s-yu/lobbyhub/internal/lobby"
	"github.com/jason-s-yu/lobbyhub/internal/metrics"
	"github.com/jason-s-yu/lobbyhub/internal/models"
	"github.com/jason-s-yu/lobbyhub/internal/slots"
	"github.com/sirupsen/logrus"
)

type resolveRequest struct {
	Pool []models.Participant `json:"pool"`
	Plan json.RawMessage      `json:"plan"`
}

// ResolveRosterHandler binds a posted participant pool and matchmaking plan
// to the stored seat layout of {gameID}. Any plan shape NormalizePlan
// accepts may be posted.
func (a *API) ResolveRosterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := a.authenticate(w, r); !ok {
			return
		}
		if a.layouts == nil {
			writeFailure(w, http.StatusServiceUnavailable, codeUnavailable)
			return
		}
		gameID := r.PathValue("gameID")

		var req resolveRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeFailure(w, http.StatusBadRequest, codeBadRequest)
			return
		}
		plan, err := slots.NormalizePlan(req.Plan)
		if err != nil {
			a.log.WithError(err).WithField("game_id", gameID).Debug("rejected assignment plan")
			writeFailure(w, http.StatusBadRequest, codeInvalidPlan)
			return
		}
		layout, err := a.layouts.ListLayout(r.Context(), gameID)
		if err != nil {
			a.log.WithError(err).WithField("game_id", gameID).Error("failed to load seat layout")
			writeLobbyError(w, lobby.NewError(lobby.CodeInternal))
			return
		}

		res := slots.Resolve(req.Pool, plan, layout)
		placeholders := 0
		for _, p := range res.Participants {
			if p.Placeholder {
				placeholders++
			}
		}
		metrics.ResolverPlaceholders.Add(float64(placeholders))
		if len(res.Warnings) > 0 {
			a.log.WithFields(logrus.Fields{
				"game_id":      gameID,
				"warnings":     len(res.Warnings),
				"placeholders": placeholders,
			}).Warn("roster resolved with slot mismatches")
		}

		warnings := res.Warnings
		if warnings == nil {
			warnings = []models.SlotWarning{}
		}
		writeOK(w, map[string]any{"participants": res.Participants, "warnings": warnings})
	}
}
