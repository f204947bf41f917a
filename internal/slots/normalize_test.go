package slots

import (
	"testing"

	"github.com/jason-s-yu/lobbyhub/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePlanSpellings(t *testing.T) {
	camel := `[{"role":"tank","slots":2,"heroIds":["h1","h2"],"slotIndices":[0,1]}]`
	snake := `[{"role_name":"tank","slot_count":"2","hero_ids":["h1","h2"],"seat_indices":["0",1]}]`

	a, err := NormalizePlan([]byte(camel))
	require.NoError(t, err)
	b, err := NormalizePlan([]byte(snake))
	require.NoError(t, err)

	want := []models.Assignment{{
		Role:        "tank",
		SlotCount:   2,
		SlotIndices: []*int{intp(0), intp(1)},
		HeroIDs:     []string{"h1", "h2"},
	}}
	assert.Equal(t, want, a)
	assert.Equal(t, want, b)
}

func TestNormalizePlanIndexListKeepsPositions(t *testing.T) {
	raw := `[{"role":"tank","slotIndices":[null,1,"x",2.5,"3",4.0],"heroIds":["h1","h2"]}]`

	plan, err := NormalizePlan([]byte(raw))
	require.NoError(t, err)

	require.Len(t, plan, 1)
	assert.Equal(t, []*int{nil, intp(1), nil, nil, intp(3), intp(4)}, plan[0].SlotIndices)
	assert.Equal(t, 6, plan[0].Width())
}

func TestNormalizePlanRejectsFractionalCounts(t *testing.T) {
	for _, raw := range []string{
		`[{"role":"tank","slots":1.9}]`,
		`{"tank":1.5}`,
		`[{"role":"tank","slots":1e300}]`,
	} {
		_, err := NormalizePlan([]byte(raw))
		assert.Error(t, err, raw)
	}

	plan, err := NormalizePlan([]byte(`[{"role":"tank","slots":2.0,"members":[{"heroId":"h1","slotIndex":0.5}]}]`))
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, 2, plan[0].SlotCount)
	require.Len(t, plan[0].Members, 1)
	assert.Nil(t, plan[0].Members[0].SlotIndex)
}

func TestNormalizePlanKeyedByRole(t *testing.T) {
	raw := `{"tank":{"slots":1},"healer":2}`

	plan, err := NormalizePlan([]byte(raw))
	require.NoError(t, err)

	require.Len(t, plan, 2)
	assert.Equal(t, "healer", plan[0].Role)
	assert.Equal(t, 2, plan[0].SlotCount)
	assert.Equal(t, "tank", plan[1].Role)
	assert.Equal(t, 1, plan[1].SlotCount)
}

func TestNormalizePlanWrappedSingleGroupAndMembers(t *testing.T) {
	raw := `{"assignments":{"role":"dps","members":[
		{"hero":{"id":"h5"},"user_id":"u5","seat_index":4},
		{"characterId":7}
	]}}`

	plan, err := NormalizePlan([]byte(raw))
	require.NoError(t, err)

	require.Len(t, plan, 1)
	g := plan[0]
	assert.Equal(t, "dps", g.Role)
	require.Len(t, g.Members, 2)
	assert.Equal(t, "h5", g.Members[0].HeroID)
	assert.Equal(t, "u5", g.Members[0].OwnerID)
	require.NotNil(t, g.Members[0].SlotIndex)
	assert.Equal(t, 4, *g.Members[0].SlotIndex)
	assert.Equal(t, "7", g.Members[1].HeroID)
	assert.Equal(t, 2, g.Width())
}

func TestNormalizePlanSlotsAsBindings(t *testing.T) {
	raw := `[{"role":"tank","slots":[{"slotIndex":1,"heroId":"a"}],"members":[{"heroId":"z","ownerId":"o"}]}]`

	plan, err := NormalizePlan([]byte(raw))
	require.NoError(t, err)

	require.Len(t, plan, 1)
	require.Len(t, plan[0].Members, 1)
	m := plan[0].Members[0]
	assert.Equal(t, "a", m.HeroID, "binding wins over member")
	assert.Equal(t, "o", m.OwnerID)
	require.NotNil(t, m.SlotIndex)
	assert.Equal(t, 1, *m.SlotIndex)
}

func TestNormalizePlanEmptyAndInvalid(t *testing.T) {
	plan, err := NormalizePlan(nil)
	assert.NoError(t, err)
	assert.Nil(t, plan)

	plan, err = NormalizePlan([]byte("null"))
	assert.NoError(t, err)
	assert.Nil(t, plan)

	_, err = NormalizePlan([]byte(`"tank"`))
	assert.Error(t, err)

	_, err = NormalizePlan([]byte(`[{"role":"tank","members":"nope"}]`))
	assert.Error(t, err)
}

func TestNormalizedPlanFeedsResolver(t *testing.T) {
	plan, err := NormalizePlan([]byte(`{"role":"tank","slots":1,"hero_ids":["h9"]}`))
	require.NoError(t, err)

	res := Resolve(nil, plan, []models.SeatLayoutEntry{seat("tank", 0)})

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "h9", res.Warnings[0].HeroID)
}
