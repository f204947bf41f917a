package models

// SeatLayoutEntry is one declared seat of a game's static layout.
// HeroID and OwnerID are optional bindings written by matchmaking.
type SeatLayoutEntry struct {
	SlotIndex int    `json:"slot_index"`
	Role      string `json:"role"`
	Active    bool   `json:"active"`
	HeroID    string `json:"hero_id,omitempty"`
	OwnerID   string `json:"owner_id,omitempty"`
}

// AssignmentMember is one member reported by matchmaking for a role group.
type AssignmentMember struct {
	HeroID    string `json:"hero_id,omitempty"`
	OwnerID   string `json:"owner_id,omitempty"`
	SlotIndex *int   `json:"slot_index,omitempty"`
}

// Assignment is the canonical form of one role group of a matchmaking plan.
// Every list is optional and may be shorter than SlotCount. The lists are
// positional: entry i of each describes slot position i, and a nil entry in
// SlotIndices means that position carries no seat hint.
type Assignment struct {
	Role        string             `json:"role"`
	SlotCount   int                `json:"slot_count"`
	SlotIndices []*int             `json:"slot_indices,omitempty"`
	HeroIDs     []string           `json:"hero_ids,omitempty"`
	OwnerIDs    []string           `json:"owner_ids,omitempty"`
	Members     []AssignmentMember `json:"members,omitempty"`
}

// Width is the number of slot positions the group spans.
func (a Assignment) Width() int {
	return max(a.SlotCount, len(a.SlotIndices), len(a.HeroIDs), len(a.OwnerIDs), len(a.Members))
}

// ResolvedParticipant is a participant bound to a concrete seat, the only
// roster shape downstream consumers read.
type ResolvedParticipant struct {
	Participant
	Placeholder bool `json:"placeholder"`
}

// Warning kinds emitted by the resolver.
const (
	WarningSlotMismatch = "slot_mismatch"
)

// SlotWarning is a non-fatal resolution diagnostic.
type SlotWarning struct {
	Kind    string `json:"kind"`
	Role    string `json:"role"`
	SlotNo  *int   `json:"slot_no,omitempty"`
	HeroID  string `json:"hero_id,omitempty"`
	OwnerID string `json:"owner_id,omitempty"`
	Message string `json:"message"`
}
