package storage

import (
	"context"
	"time"

	"github.com/monyverse/cyberpunk/internal/events"
)

// Persister adapts an EventRepository to events.EventPersister.
// It runs on the event log's writer goroutine, so each write gets its own deadline.
type Persister struct {
	repo    EventRepository
	timeout time.Duration
}

func NewPersister(repo EventRepository, timeout time.Duration) *Persister {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Persister{repo: repo, timeout: timeout}
}

func (p *Persister) Append(e events.SimEvent) error {
	rec, err := RecordFrom(e)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	return p.repo.Append(ctx, rec)
}

// Fanout writes each event to every persister in order and returns the first error.
// All persisters are tried even after a failure.
type Fanout []events.EventPersister

func (f Fanout) Append(e events.SimEvent) error {
	var first error
	for _, p := range f {
		if err := p.Append(e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
