package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Logical table names used by the store.
const (
	TableRooms        = "rooms"
	TableRoomSeats    = "room_seats"
	TableGameSlots    = "game_slots"
	TableParticipants = "participants"
	TableQueue        = "matchmaking_queue"
	TableRoomEvents   = "room_events"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// TableResolver maps logical table names to the physical table that actually
// exists. Each logical name has an ordered candidate list; the first
// candidate that can be selected from is cached for the life of the resolver.
// Resolvers are per store, never shared process-wide.
type TableResolver struct {
	db         execer
	candidates map[string][]string

	mu       sync.Mutex
	resolved map[string]string
}

// NewTableResolver builds a resolver where every logical name is its own
// first candidate, followed by the configured fallbacks.
func NewTableResolver(db execer, fallbacks map[string][]string) *TableResolver {
	candidates := make(map[string][]string)
	for _, logical := range []string{TableRooms, TableRoomSeats, TableGameSlots, TableParticipants, TableQueue, TableRoomEvents} {
		candidates[logical] = []string{logical}
	}
	for logical, names := range fallbacks {
		if _, ok := candidates[logical]; !ok {
			candidates[logical] = []string{logical}
		}
		candidates[logical] = append(candidates[logical], names...)
	}
	return &TableResolver{
		db:         db,
		candidates: candidates,
		resolved:   make(map[string]string),
	}
}

// Resolve returns the quoted physical table name for logical. A name with a
// single candidate is returned without probing.
func (r *TableResolver) Resolve(ctx context.Context, logical string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name, ok := r.resolved[logical]; ok {
		return name, nil
	}
	names, ok := r.candidates[logical]
	if !ok || len(names) == 0 {
		return "", fmt.Errorf("unknown table %q", logical)
	}
	if len(names) == 1 {
		quoted := pgx.Identifier{names[0]}.Sanitize()
		r.resolved[logical] = quoted
		return quoted, nil
	}

	for _, name := range names {
		quoted := pgx.Identifier{name}.Sanitize()
		_, err := r.db.Exec(ctx, "SELECT 1 FROM "+quoted+" LIMIT 0")
		if err == nil {
			r.resolved[logical] = quoted
			return quoted, nil
		}
		if !isUndefinedTable(err) {
			return "", fmt.Errorf("check table %s: %w", name, err)
		}
	}
	return "", fmt.Errorf("no table exists for %q (tried %v)", logical, names)
}
