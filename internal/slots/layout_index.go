// internal/slots/layout_index.go
package slots

import (
	"sort"
	"strings"

	"github.com/jason-s-yu/lobbyhub/internal/models"
)

// LayoutIndex indexes the active seats of a game layout by role, by bound hero
// and by bound owner. It is built once per resolution and never mutated.
type LayoutIndex struct {
	seats   map[int]models.SeatLayoutEntry
	byRole  map[string][]int
	byHero  map[string]int
	byOwner map[string]int
}

// NewLayoutIndex indexes the active entries of layout. When two seats are
// bound to the same hero or owner the lower seat index wins.
func NewLayoutIndex(layout []models.SeatLayoutEntry) *LayoutIndex {
	active := make([]models.SeatLayoutEntry, 0, len(layout))
	for _, entry := range layout {
		if entry.Active && entry.SlotIndex >= 0 {
			active = append(active, entry)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].SlotIndex < active[j].SlotIndex
	})

	x := &LayoutIndex{
		seats:   make(map[int]models.SeatLayoutEntry, len(active)),
		byRole:  make(map[string][]int),
		byHero:  make(map[string]int),
		byOwner: make(map[string]int),
	}
	for _, entry := range active {
		if _, dup := x.seats[entry.SlotIndex]; dup {
			continue
		}
		x.seats[entry.SlotIndex] = entry
		role := roleKey(entry.Role)
		x.byRole[role] = append(x.byRole[role], entry.SlotIndex)
		if id := strings.TrimSpace(entry.HeroID); id != "" {
			if _, ok := x.byHero[id]; !ok {
				x.byHero[id] = entry.SlotIndex
			}
		}
		if id := strings.TrimSpace(entry.OwnerID); id != "" {
			if _, ok := x.byOwner[id]; !ok {
				x.byOwner[id] = entry.SlotIndex
			}
		}
	}
	return x
}

// Len is the number of active seats.
func (x *LayoutIndex) Len() int {
	return len(x.seats)
}

// Has reports whether slot is an active seat of the layout.
func (x *LayoutIndex) Has(slot int) bool {
	_, ok := x.seats[slot]
	return ok
}

// RoleSeats returns the seats of role ordered by seat index.
func (x *LayoutIndex) RoleSeats(role string) []int {
	return x.byRole[roleKey(role)]
}

// SeatForHero returns the seat bound to heroID.
func (x *LayoutIndex) SeatForHero(heroID string) (int, bool) {
	if heroID == "" {
		return 0, false
	}
	slot, ok := x.byHero[heroID]
	return slot, ok
}

// SeatForOwner returns the seat bound to ownerID.
func (x *LayoutIndex) SeatForOwner(ownerID string) (int, bool) {
	if ownerID == "" {
		return 0, false
	}
	slot, ok := x.byOwner[ownerID]
	return slot, ok
}

func roleKey(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
