// Package journal drains room events from the Redis queue and persists them
// in batches.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jason-s-yu/lobbyhub/internal/metrics"
	"github.com/jason-s-yu/lobbyhub/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Sink persists a batch of events. Implementations must tolerate events
// they have already stored.
type Sink interface {
	InsertRoomEvents(ctx context.Context, events []models.RoomEvent) error
}

// Config tunes the consumer loop.
type Config struct {
	Queue         string
	BatchSize     int
	FlushInterval time.Duration
	PopTimeout    time.Duration // BLPop block time; bounds shutdown latency
	// MaxPending caps the events held in memory. Once reached the consumer
	// stops popping and leaves new events in Redis until a flush succeeds.
	MaxPending int
}

// Service pops events off the queue, accumulates them and flushes a batch
// when it is full or the flush interval elapses.
type Service struct {
	rdb  *redis.Client
	sink Sink
	log  logrus.FieldLogger
	cfg  Config

	batchMu  sync.Mutex
	batch    []models.RoomEvent
	inFlight int // events handed to the sink and not yet confirmed
}

// New constructs a Service. Zero config values take defaults.
func New(rdb *redis.Client, sink Sink, log logrus.FieldLogger, cfg Config) *Service {
	if cfg.Queue == "" {
		cfg.Queue = "lobbyhub_room_events"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = 3 * time.Second
	}
	if cfg.MaxPending < cfg.BatchSize {
		cfg.MaxPending = 10 * cfg.BatchSize
	}
	return &Service{
		rdb:   rdb,
		sink:  sink,
		log:   log,
		cfg:   cfg,
		batch: make([]models.RoomEvent, 0, cfg.BatchSize),
	}
}

// Run consumes until ctx is cancelled, then flushes what it holds.
func (s *Service) Run(ctx context.Context) {
	s.log.WithField("queue", s.cfg.Queue).Info("journal started")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.flushLoop(ctx)
	}()

	s.readLoop(ctx)
	wg.Wait()

	// ctx is already done; give the last flush its own deadline
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Flush(flushCtx)
	s.log.Info("journal shutting down")
}

func (s *Service) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Flush(ctx)
		}
	}
}

// readLoop uses BLPop with a timeout so that context cancellation is
// noticed.
func (s *Service) readLoop(ctx context.Context) {
	paused := false
	for {
		if ctx.Err() != nil {
			return
		}
		if s.Pending() >= s.cfg.MaxPending {
			if !paused {
				s.log.WithField("pending", s.Pending()).Warn("journal backlog full, pausing queue reads")
				paused = true
			}
			select {
			case <-ctx.Done():
			case <-time.After(s.cfg.FlushInterval):
			}
			continue
		}
		if paused {
			s.log.Info("journal backlog drained, resuming queue reads")
			paused = false
		}
		res, err := s.rdb.BLPop(ctx, s.cfg.PopTimeout, s.cfg.Queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			s.log.WithError(err).Error("BLPop failed")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		// res[0] is the queue name and res[1] the payload.
		if len(res) < 2 {
			continue
		}
		s.Accept(ctx, res[1])
	}
}

// Accept decodes one queue payload and adds it to the batch. Undecodable
// payloads are logged and dropped.
func (s *Service) Accept(ctx context.Context, payload string) {
	var ev models.RoomEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		s.log.WithError(err).Warn("invalid room event payload")
		return
	}
	s.batchMu.Lock()
	s.batch = append(s.batch, ev)
	full := len(s.batch) >= s.cfg.BatchSize
	s.batchMu.Unlock()

	if full {
		s.Flush(ctx)
	}
}

// Flush writes the pending batch to the sink. A failed batch is put back at
// the front so the next flush retries it.
func (s *Service) Flush(ctx context.Context) {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	pending := s.batch
	s.batch = make([]models.RoomEvent, 0, s.cfg.BatchSize)
	s.inFlight += len(pending)
	s.batchMu.Unlock()

	err := s.sink.InsertRoomEvents(ctx, pending)

	s.batchMu.Lock()
	s.inFlight -= len(pending)
	if err != nil {
		s.batch = append(pending, s.batch...)
	}
	s.batchMu.Unlock()

	if err != nil {
		s.log.WithError(err).WithField("events", len(pending)).Error("failed to flush room events")
		return
	}
	metrics.EventsJournaled.Add(float64(len(pending)))
	s.log.WithField("events", len(pending)).Debug("flushed room events")
}

// Pending is the number of accepted events not yet persisted, including a
// batch the sink is still writing.
func (s *Service) Pending() int {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return len(s.batch) + s.inFlight
}
