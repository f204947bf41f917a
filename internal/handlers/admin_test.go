package handlers

import (
	"net/http"
	"testing"

	"github.com/jason-s-yu/lobbyhub/internal/reclaim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReclaim_AdminOnly(t *testing.T) {
	f := newFixture(t)
	status, env := f.do(t, http.MethodPost, "/admin/reclaim", "alice", nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, codeNotAdmin, env.Code)

	status, env = f.do(t, http.MethodPost, "/admin/reclaim", "admin", map[string]int{"older_than_seconds": -1})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, codeBadRequest, env.Code)
}

func TestReclaim_ReleasesSeatsWithoutParticipant(t *testing.T) {
	f := newFixture(t)
	v := f.createRoom(t, "host")
	f.do(t, http.MethodPost, seatPath(v, 0, "join"), "alice", map[string]string{"hero_id": "h"})

	status, env := f.do(t, http.MethodPost, "/admin/reclaim", "admin", map[string]string{"game_id": "g1"})
	require.Equal(t, http.StatusOK, status, env.Error)
	require.NotNil(t, env.Report)
	assert.Equal(t, 1, env.Report.Processed)
	assert.Equal(t, 1, env.Report.Released)
	require.Len(t, env.Report.Reasons, 1)
	assert.Equal(t, reclaim.ReasonMissingParticipant, env.Report.Reasons[0].Reason)
	assert.Equal(t, v.Seats[0].ID, env.Report.Reasons[0].SeatID)

	_, env = f.do(t, http.MethodGet, "/rooms/"+v.Room.ID.String(), "host", nil)
	assert.Equal(t, 0, env.view(t).Room.FilledCount)

	status, env = f.do(t, http.MethodPost, "/admin/reclaim", "admin", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, env.Report.Released)
	assert.NotNil(t, env.Report.Reasons)
}
