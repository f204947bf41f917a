// internal/slots/resolver.go
package slots

import (
	"fmt"
	"strings"

	"github.com/jason-s-yu/lobbyhub/internal/models"
)

// Result is the outcome of a resolution: a complete roster, possibly padded
// with placeholders, and the diagnostics collected on the way.
type Result struct {
	Participants []models.ResolvedParticipant `json:"participants"`
	Warnings     []models.SlotWarning         `json:"warnings"`
}

// Resolve binds every pool participant, and every slot declared by plan, to at
// most one seat of layout. It never fails: slots no participant can fill get
// a placeholder and a slot_mismatch warning.
//
// Seats are claimed first-come in plan order, then in pool order. A claimed
// seat is never handed out again.
func Resolve(pool []models.Participant, plan []models.Assignment, layout []models.SeatLayoutEntry) Result {
	r := &resolution{
		index:   NewLayoutIndex(layout),
		pool:    pool,
		used:    make([]bool, len(pool)),
		claimed: make(map[int]bool),
	}
	for _, group := range plan {
		r.resolveGroup(group)
	}
	r.sweep()
	return Result{Participants: r.out, Warnings: r.warnings}
}

type resolution struct {
	index    *LayoutIndex
	pool     []models.Participant
	used     []bool
	claimed  map[int]bool
	out      []models.ResolvedParticipant
	warnings []models.SlotWarning
}

// slotRef is what the plan says about one slot position.
type slotRef struct {
	pos     int
	heroID  string
	ownerID string
	hint    *int
}

func (s slotRef) bound() bool {
	return s.heroID != "" || s.ownerID != ""
}

func slotAt(group models.Assignment, pos int) slotRef {
	ref := slotRef{pos: pos}
	var member models.AssignmentMember
	if pos < len(group.Members) {
		member = group.Members[pos]
	}

	if pos < len(group.SlotIndices) && group.SlotIndices[pos] != nil {
		v := *group.SlotIndices[pos]
		ref.hint = &v
	} else if member.SlotIndex != nil {
		v := *member.SlotIndex
		ref.hint = &v
	}
	if pos < len(group.HeroIDs) {
		ref.heroID = strings.TrimSpace(group.HeroIDs[pos])
	}
	if ref.heroID == "" {
		ref.heroID = strings.TrimSpace(member.HeroID)
	}
	if pos < len(group.OwnerIDs) {
		ref.ownerID = strings.TrimSpace(group.OwnerIDs[pos])
	}
	if ref.ownerID == "" {
		ref.ownerID = strings.TrimSpace(member.OwnerID)
	}
	return ref
}

func (r *resolution) resolveGroup(group models.Assignment) {
	role := strings.TrimSpace(group.Role)
	width := group.Width()
	for pos := 0; pos < width; pos++ {
		ref := slotAt(group, pos)
		target := r.targetSeat(role, ref)

		if i := r.pickParticipant(role, ref); i >= 0 {
			p := r.pool[i]
			r.used[i] = true
			if role != "" {
				p.Role = role
			}
			if target == nil {
				target = r.selfReported(p)
			}
			r.bind(p, target, false)
			continue
		}

		r.bind(placeholder(role, ref, len(r.out)), target, true)
		r.warnings = append(r.warnings, mismatch(role, ref, target))
	}
}

// targetSeat walks the seat priority for one slot position. It returns nil
// when every candidate is taken or unknown.
func (r *resolution) targetSeat(role string, ref slotRef) *int {
	if ref.hint != nil && r.index.Has(*ref.hint) && r.free(*ref.hint) {
		return seatPtr(*ref.hint)
	}
	if slot, ok := r.index.SeatForHero(ref.heroID); ok && r.free(slot) {
		return seatPtr(slot)
	}
	if slot, ok := r.index.SeatForOwner(ref.ownerID); ok && r.free(slot) {
		return seatPtr(slot)
	}
	seats := r.index.RoleSeats(role)
	if ref.pos < len(seats) && r.free(seats[ref.pos]) {
		return seatPtr(seats[ref.pos])
	}
	for _, slot := range seats {
		if r.free(slot) {
			return seatPtr(slot)
		}
	}
	// matchmaking hints outside the layout count slots from 1
	if ref.hint != nil && !r.index.Has(*ref.hint) {
		if slot := *ref.hint - 1; slot >= 0 && r.free(slot) {
			return seatPtr(slot)
		}
	}
	return nil
}

// pickParticipant returns the pool index best matching ref, or -1. Slots
// naming a hero or an owner accept only that hero or owner.
func (r *resolution) pickParticipant(role string, ref slotRef) int {
	if ref.heroID != "" {
		if i := r.find(func(p models.Participant) bool { return p.HeroID == ref.heroID }); i >= 0 {
			return i
		}
	}
	if ref.ownerID != "" {
		if i := r.find(func(p models.Participant) bool { return p.OwnerID == ref.ownerID }); i >= 0 {
			return i
		}
	}
	if ref.bound() {
		return -1
	}
	if key := roleKey(role); key != "" {
		if i := r.find(func(p models.Participant) bool { return roleKey(p.Role) == key }); i >= 0 {
			return i
		}
	}
	return r.find(func(models.Participant) bool { return true })
}

func (r *resolution) find(match func(models.Participant) bool) int {
	for i, p := range r.pool {
		if !r.used[i] && match(p) {
			return i
		}
	}
	return -1
}

// sweep seats the pool entries the plan did not consume.
func (r *resolution) sweep() {
	for i, p := range r.pool {
		if r.used[i] {
			continue
		}
		r.used[i] = true
		r.bind(p, r.sweepSeat(p), false)
	}
}

func (r *resolution) sweepSeat(p models.Participant) *int {
	if slot, ok := r.index.SeatForHero(strings.TrimSpace(p.HeroID)); ok && r.free(slot) {
		return seatPtr(slot)
	}
	if slot, ok := r.index.SeatForOwner(strings.TrimSpace(p.OwnerID)); ok && r.free(slot) {
		return seatPtr(slot)
	}
	for _, slot := range r.index.RoleSeats(p.Role) {
		if r.free(slot) {
			return seatPtr(slot)
		}
	}
	return r.selfReported(p)
}

func (r *resolution) selfReported(p models.Participant) *int {
	if p.SlotNo != nil && *p.SlotNo >= 0 && r.free(*p.SlotNo) {
		return seatPtr(*p.SlotNo)
	}
	return nil
}

func (r *resolution) free(slot int) bool {
	return !r.claimed[slot]
}

func (r *resolution) bind(p models.Participant, seat *int, isPlaceholder bool) {
	p.SlotNo = nil
	if seat != nil {
		r.claimed[*seat] = true
		p.SlotNo = seatPtr(*seat)
	}
	r.out = append(r.out, models.ResolvedParticipant{Participant: p, Placeholder: isPlaceholder})
}

func placeholder(role string, ref slotRef, ordinal int) models.Participant {
	return models.Participant{
		ID:      fmt.Sprintf("placeholder:%s:%d", roleKey(role), ordinal),
		HeroID:  ref.heroID,
		OwnerID: ref.ownerID,
		Role:    role,
		Status:  models.ParticipantStatusMissing,
		Hero:    &models.Hero{ID: ref.heroID},
	}
}

func mismatch(role string, ref slotRef, seat *int) models.SlotWarning {
	w := models.SlotWarning{
		Kind:    models.WarningSlotMismatch,
		Role:    role,
		HeroID:  ref.heroID,
		OwnerID: ref.ownerID,
	}
	if seat != nil {
		w.SlotNo = seatPtr(*seat)
		w.Message = fmt.Sprintf("no participant for role %q at seat %d", role, *seat)
	} else {
		w.Message = fmt.Sprintf("no participant and no seat for role %q position %d", role, ref.pos)
	}
	if ref.heroID != "" {
		w.Message += fmt.Sprintf(" (hero %s)", ref.heroID)
	}
	if ref.ownerID != "" {
		w.Message += fmt.Sprintf(" (owner %s)", ref.ownerID)
	}
	return w
}

func seatPtr(slot int) *int {
	return &slot
}
