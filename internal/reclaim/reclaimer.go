package reclaim

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/lobbyhub/internal/metrics"
	"github.com/jason-s-yu/lobbyhub/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultOlderThan is the silence window after which an active seat is
// considered abandoned.
const DefaultOlderThan = 15 * time.Minute

// Release reasons.
const (
	ReasonMissingParticipant = "missing_participant"
	ReasonParticipantKicked  = "participant_kicked"
	ReasonTimeoutStatus      = "timeout_status"
	ReasonTimeoutStale       = "timeout_stale"
	reasonFinalPrefix        = "final_status_"
	reasonQueuePrefix        = "queue_"
)

// Participant statuses written back for released seats.
const (
	StatusTimeout = "timeout"
	StatusOut     = "out"
)

// finalStatuses never change again once a participant reaches them.
var finalStatuses = []string{
	"defeated", "lost", "dead", "eliminated", "retired", "out",
	"kicked", "removed", "banned", "timeout", "timed_out", "expired", "disconnected",
}

var timeoutStatuses = map[string]bool{"timeout": true, "timed_out": true, "expired": true}

// staleEligible are live statuses that still time out after long silence.
var staleEligible = map[string]bool{
	"ready": true, "waiting": true, "queued": true, "pending": true, "matching": true, "engaged": true,
}

var releasingQueueStatuses = map[string]bool{
	models.QueueStatusTimeout:   true,
	models.QueueStatusExpired:   true,
	models.QueueStatusCancelled: true,
}

// Store is the persistence a sweep needs.
type Store interface {
	ListOccupiedSeats(ctx context.Context, gameID string) ([]models.OccupiedSeat, error)
	ListParticipants(ctx context.Context, keys []models.OwnerKey) ([]models.Participant, error)
	ListQueueEntries(ctx context.Context, keys []models.OwnerKey) ([]models.QueueEntry, error)
	ReleaseSeats(ctx context.Context, claims []models.OccupiedSeat, at time.Time) ([]uuid.UUID, error)
	UpdateParticipantStatus(ctx context.Context, keys []models.OwnerKey, status string, keep []string, at time.Time) (int64, error)
	ListSeats(ctx context.Context, roomID uuid.UUID) ([]models.RoomSeat, error)
	UpdateRoomCounts(ctx context.Context, roomID uuid.UUID, filled, ready int, at time.Time) error
}

// Publisher receives one event per released seat.
type Publisher interface {
	Publish(ctx context.Context, ev models.RoomEvent) error
}

// Options scope one sweep.
type Options struct {
	GameID    string        // empty sweeps every game
	OlderThan time.Duration // zero means DefaultOlderThan
}

// Release is the audit record of one freed seat.
type Release struct {
	SeatID  uuid.UUID `json:"seat_id"`
	RoomID  uuid.UUID `json:"room_id"`
	GameID  string    `json:"game_id"`
	OwnerID string    `json:"owner_id"`
	Reason  string    `json:"reason"`
}

// Report summarizes a sweep.
type Report struct {
	Processed int       `json:"processed"`
	Released  int       `json:"released"`
	Reasons   []Release `json:"reasons"`
}

// Reclaimer frees seats whose occupants are gone, finished or silent.
type Reclaimer struct {
	store Store
	pub   Publisher
	log   logrus.FieldLogger
	now   func() time.Time
}

// New builds a Reclaimer. pub may be nil.
func New(store Store, pub Publisher, log logrus.FieldLogger) *Reclaimer {
	return &Reclaimer{store: store, pub: pub, log: log, now: time.Now}
}

// WithClock replaces the sweep clock.
func (r *Reclaimer) WithClock(now func() time.Time) *Reclaimer {
	r.now = now
	return r
}

// ReleaseStaleSlots runs one sweep. Only batch-level store failures return
// an error; a seat that cannot be judged is simply kept.
func (r *Reclaimer) ReleaseStaleSlots(ctx context.Context, opts Options) (report Report, err error) {
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.ReclaimSweeps.WithLabelValues(result).Inc()
		metrics.ReclaimDuration.Observe(time.Since(start).Seconds())
	}()

	if opts.OlderThan <= 0 {
		opts.OlderThan = DefaultOlderThan
	}
	now := r.now()
	cutoff := now.Add(-opts.OlderThan)

	seats, err := r.store.ListOccupiedSeats(ctx, opts.GameID)
	if err != nil {
		return Report{}, fmt.Errorf("load occupied seats: %w", err)
	}
	report.Processed = len(seats)
	if len(seats) == 0 {
		return report, nil
	}

	keys := ownerKeys(seats)
	var participants []models.Participant
	var queue []models.QueueEntry
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		participants, err = r.store.ListParticipants(gctx, keys)
		if err != nil {
			return fmt.Errorf("load participants: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		queue, err = r.store.ListQueueEntries(gctx, keys)
		if err != nil {
			return fmt.Errorf("load queue entries: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	// Nothing keeps (game, owner) unique in either table; the most recently
	// touched row speaks for the owner.
	byParticipant := make(map[models.OwnerKey]models.Participant, len(participants))
	for _, p := range participants {
		key := models.OwnerKey{GameID: p.GameID, OwnerID: p.OwnerID}
		if cur, ok := byParticipant[key]; !ok || !p.UpdatedAt.Before(cur.UpdatedAt) {
			byParticipant[key] = p
		}
	}
	byQueue := make(map[models.OwnerKey]models.QueueEntry, len(queue))
	for _, e := range queue {
		key := models.OwnerKey{GameID: e.GameID, OwnerID: e.OwnerID}
		if cur, ok := byQueue[key]; !ok || !e.LastSeen().Before(cur.LastSeen()) {
			byQueue[key] = e
		}
	}

	var claims []models.OccupiedSeat
	reasons := make(map[uuid.UUID]string)
	for _, seat := range seats {
		key := models.OwnerKey{GameID: seat.GameID, OwnerID: *seat.OccupantOwnerID}
		var p *models.Participant
		if v, ok := byParticipant[key]; ok {
			p = &v
		}
		var q *models.QueueEntry
		if v, ok := byQueue[key]; ok {
			q = &v
		}
		if reason, release := evaluateRelease(seat, p, q, cutoff); release {
			claims = append(claims, seat)
			reasons[seat.ID] = reason
		}
	}
	if len(claims) == 0 {
		return report, nil
	}

	released, err := r.store.ReleaseSeats(ctx, claims, now)
	if err != nil {
		return Report{}, fmt.Errorf("release seats: %w", err)
	}
	freed := make(map[uuid.UUID]bool, len(released))
	for _, id := range released {
		freed[id] = true
	}

	byStatus := make(map[string][]models.OwnerKey)
	rooms := make(map[uuid.UUID]string)
	for _, seat := range claims {
		if !freed[seat.ID] {
			continue
		}
		rel := Release{
			SeatID:  seat.ID,
			RoomID:  seat.RoomID,
			GameID:  seat.GameID,
			OwnerID: *seat.OccupantOwnerID,
			Reason:  reasons[seat.ID],
		}
		report.Reasons = append(report.Reasons, rel)
		rooms[seat.RoomID] = seat.GameID
		metrics.SeatsReleased.WithLabelValues(metricReason(rel.Reason)).Inc()
		if status := statusAfter(rel.Reason); status != "" {
			byStatus[status] = append(byStatus[status], models.OwnerKey{GameID: rel.GameID, OwnerID: rel.OwnerID})
		}
	}
	report.Released = len(report.Reasons)

	statuses := make([]string, 0, len(byStatus))
	for s := range byStatus {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		if _, err := r.store.UpdateParticipantStatus(ctx, byStatus[status], status, finalStatuses, now); err != nil {
			return report, fmt.Errorf("update participant status %s: %w", status, err)
		}
	}

	r.refreshRooms(ctx, rooms, now)
	r.publish(ctx, report.Reasons, now)

	r.log.WithFields(logrus.Fields{
		"game_id":   opts.GameID,
		"processed": report.Processed,
		"released":  report.Released,
	}).Info("stale slot sweep finished")
	return report, nil
}

// evaluateRelease decides whether seat should be freed and why.
func evaluateRelease(seat models.OccupiedSeat, p *models.Participant, q *models.QueueEntry, cutoff time.Time) (string, bool) {
	if p == nil {
		return ReasonMissingParticipant, true
	}
	status := strings.ToLower(strings.TrimSpace(p.Status))
	if isFinal(status) {
		switch {
		case status == "kicked":
			return ReasonParticipantKicked, true
		case timeoutStatuses[status]:
			return ReasonTimeoutStatus, true
		default:
			return reasonFinalPrefix + status, true
		}
	}
	if q != nil {
		qs := strings.ToLower(strings.TrimSpace(q.Status))
		if releasingQueueStatuses[qs] {
			return reasonQueuePrefix + qs, true
		}
	}
	if staleEligible[status] {
		var queueSeen time.Time
		if q != nil {
			queueSeen = q.LastSeen()
		}
		if stale(seat.UpdatedAt, cutoff) && stale(p.UpdatedAt, cutoff) && stale(queueSeen, cutoff) {
			return ReasonTimeoutStale, true
		}
	}
	return "", false
}

// stale treats a missing timestamp as stale.
func stale(t, cutoff time.Time) bool {
	return t.IsZero() || t.Before(cutoff)
}

func isFinal(status string) bool {
	for _, s := range finalStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func statusAfter(reason string) string {
	switch reason {
	case ReasonTimeoutStale, ReasonTimeoutStatus:
		return StatusTimeout
	case ReasonMissingParticipant:
		return StatusOut
	}
	return ""
}

// metricReason folds the open-ended final_status_* reasons into one label.
func metricReason(reason string) string {
	if strings.HasPrefix(reason, reasonFinalPrefix) {
		return reasonFinalPrefix + "other"
	}
	return reason
}

func ownerKeys(seats []models.OccupiedSeat) []models.OwnerKey {
	seen := make(map[models.OwnerKey]bool, len(seats))
	keys := make([]models.OwnerKey, 0, len(seats))
	for _, s := range seats {
		k := models.OwnerKey{GameID: s.GameID, OwnerID: *s.OccupantOwnerID}
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

// refreshRooms recomputes the cached counters of every room that lost a
// seat. Failures only leave counters stale until the next mutation.
func (r *Reclaimer) refreshRooms(ctx context.Context, rooms map[uuid.UUID]string, at time.Time) {
	for roomID := range rooms {
		seats, err := r.store.ListSeats(ctx, roomID)
		if err != nil {
			r.log.WithError(err).WithField("room_id", roomID).Warn("stats recompute: list seats failed")
			continue
		}
		var filled, ready int
		for _, s := range seats {
			if s.Occupied() {
				filled++
				if s.OccupantReady {
					ready++
				}
			}
		}
		if err := r.store.UpdateRoomCounts(ctx, roomID, filled, ready, at); err != nil {
			r.log.WithError(err).WithField("room_id", roomID).Warn("stats recompute: update counts failed")
		}
	}
}

func (r *Reclaimer) publish(ctx context.Context, releases []Release, at time.Time) {
	if r.pub == nil {
		return
	}
	for _, rel := range releases {
		ev := models.RoomEvent{
			ID:       uuid.New(),
			RoomID:   rel.RoomID,
			GameID:   rel.GameID,
			Type:     models.EventSeatReleased,
			TargetID: rel.OwnerID,
			SeatID:   rel.SeatID,
			Reason:   rel.Reason,
			At:       at,
		}
		if err := r.pub.Publish(ctx, ev); err != nil {
			r.log.WithError(err).WithField("seat_id", rel.SeatID).Warn("failed to publish release event")
		}
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
// Sweep failures are logged and retried on the next tick.
func (r *Reclaimer) Run(ctx context.Context, interval time.Duration, opts Options) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := r.ReleaseStaleSlots(ctx, opts); err != nil && ctx.Err() == nil {
			r.log.WithError(err).Error("stale slot sweep failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
