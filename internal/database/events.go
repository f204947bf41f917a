package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/lobbyhub/internal/models"
)

// InsertRoomEvents persists a batch of room events in a single transaction.
// Events already stored (same id) are skipped, so a redelivered batch is
// harmless.
func (s *Store) InsertRoomEvents(ctx context.Context, events []models.RoomEvent) error {
	if len(events) == 0 {
		return nil
	}
	table, err := s.table(ctx, TableRoomEvents)
	if err != nil {
		return err
	}
	q := `INSERT INTO ` + table + ` (id, room_id, game_id, type, actor_id, target_id, seat_id, reason, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`

	return pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, ev := range events {
			if _, err := tx.Exec(ctx, q,
				ev.ID, ev.RoomID, ev.GameID, ev.Type, ev.ActorID, ev.TargetID, ev.SeatID, ev.Reason, ev.At,
			); err != nil {
				return fmt.Errorf("insert room event %s: %w", ev.ID, err)
			}
		}
		return nil
	})
}
