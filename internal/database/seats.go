package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/lobbyhub/internal/models"
)

const seatColumns = `id, room_id, slot_index, role,
	occupant_owner_id, occupant_hero_id, occupant_ready, joined_at, updated_at`

func scanSeat(row pgx.Row, extra ...any) (models.RoomSeat, error) {
	var s models.RoomSeat
	dest := []any{
		&s.ID, &s.RoomID, &s.SlotIndex, &s.Role,
		&s.OccupantOwnerID, &s.OccupantHeroID, &s.OccupantReady, &s.JoinedAt, &s.UpdatedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	return s, err
}

// InsertSeats bulk-inserts the seats of a new room in one statement.
func (s *Store) InsertSeats(ctx context.Context, seats []models.RoomSeat) error {
	if len(seats) == 0 {
		return nil
	}
	table, err := s.table(ctx, TableRoomSeats)
	if err != nil {
		return err
	}

	values := make([]string, 0, len(seats))
	args := make([]any, 0, len(seats)*5)
	for i, seat := range seats {
		n := i * 5
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, false, $%d)", n+1, n+2, n+3, n+4, n+5))
		args = append(args, seat.ID, seat.RoomID, seat.SlotIndex, seat.Role, seat.UpdatedAt)
	}
	q := `INSERT INTO ` + table + ` (id, room_id, slot_index, role, occupant_ready, updated_at)
		VALUES ` + strings.Join(values, ", ")
	if _, err := s.db.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("insert seats: %w", err)
	}
	return nil
}

// ListSeats returns the seats of a room ordered by slot index.
func (s *Store) ListSeats(ctx context.Context, roomID uuid.UUID) ([]models.RoomSeat, error) {
	table, err := s.table(ctx, TableRoomSeats)
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + seatColumns + ` FROM ` + table + ` WHERE room_id = $1 ORDER BY slot_index`
	rows, err := s.db.Query(ctx, q, roomID)
	if err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}
	defer rows.Close()

	var seats []models.RoomSeat
	for rows.Next() {
		seat, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		seats = append(seats, seat)
	}
	return seats, rows.Err()
}

// FindSeatByOccupant returns the seat ownerID sits in, in any room, or nil.
func (s *Store) FindSeatByOccupant(ctx context.Context, ownerID string) (*models.RoomSeat, error) {
	table, err := s.table(ctx, TableRoomSeats)
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + seatColumns + ` FROM ` + table + ` WHERE occupant_owner_id = $1 LIMIT 1`
	seat, err := scanSeat(s.db.QueryRow(ctx, q, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find seat by occupant: %w", err)
	}
	return &seat, nil
}

// OccupySeat seats ownerID only if the seat is still empty. The one-seat-per-
// owner index turns a concurrent second seat for the same owner into
// ErrConflict.
func (s *Store) OccupySeat(ctx context.Context, roomID, seatID uuid.UUID, ownerID, heroID string, at time.Time) (bool, error) {
	table, err := s.table(ctx, TableRoomSeats)
	if err != nil {
		return false, err
	}
	q := `UPDATE ` + table + `
		SET occupant_owner_id = $3, occupant_hero_id = $4, occupant_ready = false,
		    joined_at = $5, updated_at = $5
		WHERE id = $1 AND room_id = $2 AND occupant_owner_id IS NULL`
	tag, err := s.db.Exec(ctx, q, seatID, roomID, ownerID, heroID, at)
	if err != nil {
		if isUniqueViolation(err) {
			return false, fmt.Errorf("occupy seat: %w", ErrConflict)
		}
		return false, fmt.Errorf("occupy seat: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// VacateSeat clears the seat only if ownerID still sits in it.
func (s *Store) VacateSeat(ctx context.Context, roomID, seatID uuid.UUID, ownerID string, at time.Time) (bool, error) {
	table, err := s.table(ctx, TableRoomSeats)
	if err != nil {
		return false, err
	}
	q := `UPDATE ` + table + `
		SET occupant_owner_id = NULL, occupant_hero_id = NULL, occupant_ready = false,
		    joined_at = NULL, updated_at = $4
		WHERE id = $1 AND room_id = $2 AND occupant_owner_id = $3`
	tag, err := s.db.Exec(ctx, q, seatID, roomID, ownerID, at)
	if err != nil {
		return false, fmt.Errorf("vacate seat: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetSeatReady flips the ready flag of the seat ownerID sits in.
func (s *Store) SetSeatReady(ctx context.Context, roomID, seatID uuid.UUID, ownerID string, ready bool, at time.Time) (bool, error) {
	table, err := s.table(ctx, TableRoomSeats)
	if err != nil {
		return false, err
	}
	q := `UPDATE ` + table + `
		SET occupant_ready = $4, updated_at = $5
		WHERE id = $1 AND room_id = $2 AND occupant_owner_id = $3`
	tag, err := s.db.Exec(ctx, q, seatID, roomID, ownerID, ready, at)
	if err != nil {
		return false, fmt.Errorf("set seat ready: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ClearSeat empties a seat whoever sits in it. It reports whether the seat
// was occupied.
func (s *Store) ClearSeat(ctx context.Context, roomID, seatID uuid.UUID, at time.Time) (bool, error) {
	table, err := s.table(ctx, TableRoomSeats)
	if err != nil {
		return false, err
	}
	q := `UPDATE ` + table + `
		SET occupant_owner_id = NULL, occupant_hero_id = NULL, occupant_ready = false,
		    joined_at = NULL, updated_at = $3
		WHERE id = $1 AND room_id = $2 AND occupant_owner_id IS NOT NULL`
	tag, err := s.db.Exec(ctx, q, seatID, roomID, at)
	if err != nil {
		return false, fmt.Errorf("clear seat: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListOccupiedSeats returns every occupied seat with the game of its room,
// optionally restricted to one game.
func (s *Store) ListOccupiedSeats(ctx context.Context, gameID string) ([]models.OccupiedSeat, error) {
	seats, err := s.table(ctx, TableRoomSeats)
	if err != nil {
		return nil, err
	}
	rooms, err := s.table(ctx, TableRooms)
	if err != nil {
		return nil, err
	}
	q := `SELECT s.id, s.room_id, s.slot_index, s.role,
		       s.occupant_owner_id, s.occupant_hero_id, s.occupant_ready, s.joined_at, s.updated_at,
		       r.game_id
		FROM ` + seats + ` s
		JOIN ` + rooms + ` r ON r.id = s.room_id
		WHERE s.occupant_owner_id IS NOT NULL AND ($1 = '' OR r.game_id = $1)
		ORDER BY s.room_id, s.slot_index`
	rows, err := s.db.Query(ctx, q, gameID)
	if err != nil {
		return nil, fmt.Errorf("list occupied seats: %w", err)
	}
	defer rows.Close()

	var out []models.OccupiedSeat
	for rows.Next() {
		var game string
		seat, err := scanSeat(rows, &game)
		if err != nil {
			return nil, err
		}
		out = append(out, models.OccupiedSeat{RoomSeat: seat, GameID: game})
	}
	return out, rows.Err()
}

// ReleaseSeats clears, in one statement, every listed seat still held by the
// owner it was evaluated with, and returns the IDs actually released.
func (s *Store) ReleaseSeats(ctx context.Context, claims []models.OccupiedSeat, at time.Time) ([]uuid.UUID, error) {
	if len(claims) == 0 {
		return nil, nil
	}
	table, err := s.table(ctx, TableRoomSeats)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(claims))
	owners := make([]string, 0, len(claims))
	for _, c := range claims {
		if c.OccupantOwnerID == nil {
			continue
		}
		ids = append(ids, c.ID.String())
		owners = append(owners, *c.OccupantOwnerID)
	}
	q := `UPDATE ` + table + ` s
		SET occupant_owner_id = NULL, occupant_hero_id = NULL, occupant_ready = false,
		    joined_at = NULL, updated_at = $3
		FROM (SELECT unnest($1::uuid[]) AS id, unnest($2::text[]) AS owner_id) v
		WHERE s.id = v.id AND s.occupant_owner_id = v.owner_id
		RETURNING s.id`
	rows, err := s.db.Query(ctx, q, ids, owners, at)
	if err != nil {
		return nil, fmt.Errorf("release seats: %w", err)
	}
	defer rows.Close()

	var released []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		released = append(released, id)
	}
	return released, rows.Err()
}
