package events

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/lpinvest/internal/domain"
)

// Journal appends events durably and returns their index.
type Journal interface {
	Save(event domain.Event) (uint64, error)
}

// Publisher journals every event and then broadcasts it. An event that fails to reach the journal is
// not broadcast.
type Publisher struct {
	journal     Journal
	broadcaster *Broadcaster
	l           *zap.Logger
}

// NewPublisher returns a publisher. A nil journal publishes without persisting, indexing events in
// memory.
func NewPublisher(l *zap.Logger, journal Journal, broadcaster *Broadcaster) *Publisher {
	if l == nil {
		l = zap.NewNop()
	}
	if broadcaster == nil {
		broadcaster = NewBroadcaster(0)
	}
	if journal == nil {
		journal = &memoryJournal{}
	}
	return &Publisher{journal: journal, broadcaster: broadcaster, l: l}
}

// Emit persists event and fans it out to subscribers.
func (p *Publisher) Emit(ctx context.Context, event domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	idx, err := p.journal.Save(event)
	if err != nil {
		return errors.Wrapf(err, "journal %s event", event.Kind)
	}

	p.broadcaster.Publish(domain.EventRecord{Index: idx, Event: event})
	p.l.Debug("event published",
		zap.Uint64("index", idx),
		zap.String("kind", string(event.Kind)),
		zap.String("account", event.Account().Hex()))

	return nil
}

// Broadcaster returns the broadcaster subscribers attach to.
func (p *Publisher) Broadcaster() *Broadcaster {
	return p.broadcaster
}

type memoryJournal struct {
	index atomic.Uint64
}

func (j *memoryJournal) Save(domain.Event) (uint64, error) {
	return j.index.Add(1), nil
}
