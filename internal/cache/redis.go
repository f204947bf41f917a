// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jason-s-yu/lobbyhub/internal/metrics"
	"github.com/jason-s-yu/lobbyhub/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list room events are pushed onto.
const DefaultQueueName = "lobbyhub_room_events"

// Connect opens a Redis client and verifies it answers within five seconds.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Publisher pushes room events onto a Redis list for the journal to drain.
type Publisher struct {
	rdb   *redis.Client
	queue string
}

// NewPublisher returns a Publisher writing to queue (DefaultQueueName when
// empty).
func NewPublisher(rdb *redis.Client, queue string) *Publisher {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &Publisher{rdb: rdb, queue: queue}
}

// Publish serializes ev to JSON and pushes it to the queue. It only costs
// one round trip; nothing waits for the journal.
func (p *Publisher) Publish(ctx context.Context, ev models.RoomEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to marshal room event: %w", err)
	}
	if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", p.queue, err)
	}
	metrics.EventsPublished.WithLabelValues("ok").Inc()
	return nil
}

// Queue is the list name events go to.
func (p *Publisher) Queue() string { return p.queue }
