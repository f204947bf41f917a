package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jason-s-yu/lobbyhub/internal/models"
)

func splitKeys(keys []models.OwnerKey) (games, owners []string) {
	games = make([]string, len(keys))
	owners = make([]string, len(keys))
	for i, k := range keys {
		games[i] = k.GameID
		owners[i] = k.OwnerID
	}
	return games, owners
}

// ListParticipants returns the participant rows of the given (game, owner)
// pairs, oldest update first.
func (s *Store) ListParticipants(ctx context.Context, keys []models.OwnerKey) ([]models.Participant, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	table, err := s.table(ctx, TableParticipants)
	if err != nil {
		return nil, err
	}
	games, owners := splitKeys(keys)
	q := `SELECT id, game_id, owner_id, hero_id, role, status, slot_no, updated_at
		FROM ` + table + `
		WHERE (game_id, owner_id) IN (SELECT * FROM unnest($1::text[], $2::text[]))
		ORDER BY updated_at ASC NULLS FIRST, id`
	rows, err := s.db.Query(ctx, q, games, owners)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []models.Participant
	for rows.Next() {
		var p models.Participant
		var heroID, role *string
		var updatedAt *time.Time
		if err := rows.Scan(&p.ID, &p.GameID, &p.OwnerID, &heroID, &role, &p.Status, &p.SlotNo, &updatedAt); err != nil {
			return nil, err
		}
		p.HeroID = deref(heroID)
		p.Role = deref(role)
		p.UpdatedAt = deref(updatedAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListQueueEntries returns the matchmaking queue rows of the given pairs,
// least recently seen first.
func (s *Store) ListQueueEntries(ctx context.Context, keys []models.OwnerKey) ([]models.QueueEntry, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	table, err := s.table(ctx, TableQueue)
	if err != nil {
		return nil, err
	}
	games, owners := splitKeys(keys)
	q := `SELECT id, game_id, owner_id, status, joined_at, updated_at
		FROM ` + table + `
		WHERE (game_id, owner_id) IN (SELECT * FROM unnest($1::text[], $2::text[]))
		ORDER BY COALESCE(updated_at, joined_at) ASC NULLS FIRST, id`
	rows, err := s.db.Query(ctx, q, games, owners)
	if err != nil {
		return nil, fmt.Errorf("list queue entries: %w", err)
	}
	defer rows.Close()

	var out []models.QueueEntry
	for rows.Next() {
		var e models.QueueEntry
		var joinedAt, updatedAt *time.Time
		if err := rows.Scan(&e.ID, &e.GameID, &e.OwnerID, &e.Status, &joinedAt, &updatedAt); err != nil {
			return nil, err
		}
		e.JoinedAt = deref(joinedAt)
		e.UpdatedAt = deref(updatedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateParticipantStatus sets status on the participants of the given pairs,
// skipping rows whose current status (case-insensitive) is in keep.
func (s *Store) UpdateParticipantStatus(ctx context.Context, keys []models.OwnerKey, status string, keep []string, at time.Time) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	table, err := s.table(ctx, TableParticipants)
	if err != nil {
		return 0, err
	}
	games, owners := splitKeys(keys)
	if keep == nil {
		keep = []string{}
	}
	q := `UPDATE ` + table + ` SET status = $3, updated_at = $4
		WHERE (game_id, owner_id) IN (SELECT * FROM unnest($1::text[], $2::text[]))
		  AND lower(status) <> ALL($5::text[])`
	tag, err := s.db.Exec(ctx, q, games, owners, status, at, keep)
	if err != nil {
		return 0, fmt.Errorf("update participant status: %w", err)
	}
	return tag.RowsAffected(), nil
}
