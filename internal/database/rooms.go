package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/lobbyhub/internal/models"
)

const roomColumns = `id, game_id, code, mode, status, owner_id,
	slot_count, filled_count, ready_count,
	created_at, updated_at, host_last_active_at`

func scanRoom(row pgx.Row) (*models.Room, error) {
	var r models.Room
	err := row.Scan(
		&r.ID, &r.GameID, &r.Code, &r.Mode, &r.Status, &r.OwnerID,
		&r.SlotCount, &r.FilledCount, &r.ReadyCount,
		&r.CreatedAt, &r.UpdatedAt, &r.HostLastActiveAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// InsertRoom creates a new room row. A duplicate join code surfaces as
// ErrConflict so the caller can retry with another code.
func (s *Store) InsertRoom(ctx context.Context, room *models.Room) error {
	rooms, err := s.table(ctx, TableRooms)
	if err != nil {
		return err
	}
	q := `INSERT INTO ` + rooms + ` (` + roomColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err = s.db.Exec(ctx, q,
		room.ID, room.GameID, room.Code, room.Mode, room.Status, room.OwnerID,
		room.SlotCount, room.FilledCount, room.ReadyCount,
		room.CreatedAt, room.UpdatedAt, room.HostLastActiveAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert room: %w", ErrConflict)
		}
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

// DeleteRoom removes a room; its seats go with it.
func (s *Store) DeleteRoom(ctx context.Context, roomID uuid.UUID) error {
	rooms, err := s.table(ctx, TableRooms)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM `+rooms+` WHERE id = $1`, roomID); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return nil
}

// GetRoom fetches a room by ID.
func (s *Store) GetRoom(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	rooms, err := s.table(ctx, TableRooms)
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + roomColumns + ` FROM ` + rooms + ` WHERE id = $1`
	return scanRoom(s.db.QueryRow(ctx, q, roomID))
}

// GetRoomByCode fetches a room by its join code.
func (s *Store) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	rooms, err := s.table(ctx, TableRooms)
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + roomColumns + ` FROM ` + rooms + ` WHERE code = $1`
	return scanRoom(s.db.QueryRow(ctx, q, code))
}

// UpdateRoomCounts overwrites the cached filled/ready counters.
func (s *Store) UpdateRoomCounts(ctx context.Context, roomID uuid.UUID, filled, ready int, at time.Time) error {
	rooms, err := s.table(ctx, TableRooms)
	if err != nil {
		return err
	}
	q := `UPDATE ` + rooms + ` SET filled_count = $2, ready_count = $3, updated_at = $4 WHERE id = $1`
	if _, err := s.db.Exec(ctx, q, roomID, filled, ready, at); err != nil {
		return fmt.Errorf("update room counts: %w", err)
	}
	return nil
}

// TouchHost stamps host activity.
func (s *Store) TouchHost(ctx context.Context, roomID uuid.UUID, at time.Time) error {
	rooms, err := s.table(ctx, TableRooms)
	if err != nil {
		return err
	}
	q := `UPDATE ` + rooms + ` SET host_last_active_at = $2, updated_at = $2 WHERE id = $1`
	if _, err := s.db.Exec(ctx, q, roomID, at); err != nil {
		return fmt.Errorf("touch host: %w", err)
	}
	return nil
}

// ReassignHost hands the room to newOwner only while the current host has
// been inactive since before cutoff. It reports whether the write happened.
func (s *Store) ReassignHost(ctx context.Context, roomID uuid.UUID, newOwner string, cutoff, at time.Time) (bool, error) {
	rooms, err := s.table(ctx, TableRooms)
	if err != nil {
		return false, err
	}
	q := `UPDATE ` + rooms + `
		SET owner_id = $2, host_last_active_at = $4, updated_at = $4
		WHERE id = $1 AND host_last_active_at < $3`
	tag, err := s.db.Exec(ctx, q, roomID, newOwner, cutoff, at)
	if err != nil {
		return false, fmt.Errorf("reassign host: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkRoomStarting moves an open room to starting and stamps host activity.
func (s *Store) MarkRoomStarting(ctx context.Context, roomID uuid.UUID, at time.Time) (bool, error) {
	rooms, err := s.table(ctx, TableRooms)
	if err != nil {
		return false, err
	}
	q := `UPDATE ` + rooms + `
		SET status = $2, host_last_active_at = $4, updated_at = $4
		WHERE id = $1 AND status = $3`
	tag, err := s.db.Exec(ctx, q, roomID, models.RoomStatusStarting, models.RoomStatusOpen, at)
	if err != nil {
		return false, fmt.Errorf("mark room starting: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListLayout returns the declared seats of a game ordered by seat index.
func (s *Store) ListLayout(ctx context.Context, gameID string) ([]models.SeatLayoutEntry, error) {
	slots, err := s.table(ctx, TableGameSlots)
	if err != nil {
		return nil, err
	}
	q := `SELECT slot_index, role, active, hero_id, owner_id
		FROM ` + slots + ` WHERE game_id = $1 ORDER BY slot_index`
	rows, err := s.db.Query(ctx, q, gameID)
	if err != nil {
		return nil, fmt.Errorf("list layout: %w", err)
	}
	defer rows.Close()

	var layout []models.SeatLayoutEntry
	for rows.Next() {
		var e models.SeatLayoutEntry
		var heroID, ownerID *string
		if err := rows.Scan(&e.SlotIndex, &e.Role, &e.Active, &heroID, &ownerID); err != nil {
			return nil, err
		}
		e.HeroID = deref(heroID)
		e.OwnerID = deref(ownerID)
		layout = append(layout, e)
	}
	return layout, rows.Err()
}
