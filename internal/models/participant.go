package models

import "time"

// Queue entry statuses.
const (
	QueueStatusQueued    = "queued"
	QueueStatusMatched   = "matched"
	QueueStatusTimeout   = "timeout"
	QueueStatusExpired   = "expired"
	QueueStatusCancelled = "cancelled"
)

// ParticipantStatusMissing marks a placeholder synthesized by the resolver.
const ParticipantStatusMissing = "missing"

// Hero is the display shell of a character. Placeholders carry an empty one.
type Hero struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url,omitempty"`
}

// Participant is the persistent roster record of one owner in one game.
// Status is free text ('alive', 'ready', 'kicked', 'timeout', ...).
type Participant struct {
	ID        string    `json:"id"`
	GameID    string    `json:"game_id"`
	OwnerID   string    `json:"owner_id"`
	HeroID    string    `json:"hero_id"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	SlotNo    *int      `json:"slot_no,omitempty"` // self-reported seat, if any
	UpdatedAt time.Time `json:"updated_at"`
	Hero      *Hero     `json:"hero,omitempty"`
}

// QueueEntry is a matchmaking queue row.
type QueueEntry struct {
	ID        string    `json:"id"`
	GameID    string    `json:"game_id"`
	OwnerID   string    `json:"owner_id"`
	Status    string    `json:"status"`
	JoinedAt  time.Time `json:"joined_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LastSeen is updated_at, or joined_at when the row was never updated.
func (q QueueEntry) LastSeen() time.Time {
	if !q.UpdatedAt.IsZero() {
		return q.UpdatedAt
	}
	return q.JoinedAt
}

// OwnerKey addresses the participant and queue rows of one owner in one game.
type OwnerKey struct {
	GameID  string
	OwnerID string
}
