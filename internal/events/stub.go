package events

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/domain"
)

// AllowStubBrokerEnv must be set to "true" before a stub publisher can be
// constructed. The gate keeps a misconfigured deployment from silently
// dropping events when no broker address is supplied.
const AllowStubBrokerEnv = "GHILLIE_ALLOW_STUB_BROKER"

// ErrStubBrokerDisabled is returned by NewStubPublisher when the
// environment gate is not set
var ErrStubBrokerDisabled = errors.New("stub broker disabled: set GHILLIE_ALLOW_STUB_BROKER=true to run without a broker")

// StubPublisher logs events and drops them. Intended for local
// development and tests where no broker is available.
type StubPublisher struct {
	log zerolog.Logger

	mu        sync.Mutex
	published int
}

// NewStubPublisher creates a drop-everything publisher. It fails unless
// GHILLIE_ALLOW_STUB_BROKER=true.
func NewStubPublisher(log zerolog.Logger) (*StubPublisher, error) {
	if os.Getenv(AllowStubBrokerEnv) != "true" {
		return nil, ErrStubBrokerDisabled
	}
	return &StubPublisher{
		log: log.With().Str("component", "events").Logger(),
	}, nil
}

// Publish logs the event and discards it
func (p *StubPublisher) Publish(_ context.Context, data domain.EventData) error {
	p.mu.Lock()
	p.published++
	count := p.published
	p.mu.Unlock()

	p.log.Debug().
		Str("event_type", string(data.EventType())).
		Int("dropped_total", count).
		Msg("Event dropped by stub publisher")
	return nil
}

// Published reports how many events have been dropped so far
func (p *StubPublisher) Published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published
}

// Close is a no-op
func (p *StubPublisher) Close() error {
	return nil
}
