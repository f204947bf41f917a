package cache

import (
	"context"
	"errors"

	"github.com/jason-s-yu/lobbyhub/internal/models"
)

// EventPublisher is anything that accepts room events.
type EventPublisher interface {
	Publish(ctx context.Context, ev models.RoomEvent) error
}

// Fanout delivers each event to every publisher, nil entries skipped. All
// publishers are tried; their errors are joined.
type Fanout []EventPublisher

func (f Fanout) Publish(ctx context.Context, ev models.RoomEvent) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
