// Package events carries domain events to the message broker. Payloads are
// msgpack-encoded envelopes published on one Redis channel per event type,
// so consumers subscribe to exactly the events they care about.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/wildside/ghillie/internal/domain"
)

const channelPrefix = "ghillie.events."

// ChannelFor returns the broker channel an event type is published on
func ChannelFor(t domain.EventType) string {
	return channelPrefix + string(t)
}

// Envelope is the wire frame around every published event. Payload holds
// the msgpack-encoded event data so consumers can decode the frame first
// and the payload by type.
type Envelope struct {
	Type       string             `msgpack:"type"`
	OccurredAt time.Time          `msgpack:"occurred_at"`
	Payload    msgpack.RawMessage `msgpack:"payload"`
}

// RedisPublisher publishes events over Redis pub/sub. The connection is
// established lazily on first publish and reused afterwards. Safe for
// concurrent use.
type RedisPublisher struct {
	addr     string
	password string
	log      zerolog.Logger

	mu     sync.Mutex
	client *redis.Client
}

// NewRedisPublisher creates a publisher for the broker at addr. No
// connection is attempted until the first publish.
func NewRedisPublisher(addr, password string, log zerolog.Logger) *RedisPublisher {
	return &RedisPublisher{
		addr:     addr,
		password: password,
		log:      log.With().Str("component", "events").Logger(),
	}
}

func (p *RedisPublisher) connect(ctx context.Context) (*redis.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     p.addr,
		Password: p.password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", p.addr, err)
	}

	p.log.Info().Str("addr", p.addr).Msg("Connected to event broker")
	p.client = client
	return client, nil
}

// Ping verifies broker connectivity, connecting if needed
func (p *RedisPublisher) Ping(ctx context.Context) error {
	_, err := p.connect(ctx)
	return err
}

// Publish encodes the event into an envelope and publishes it on the
// channel for its type
func (p *RedisPublisher) Publish(ctx context.Context, data domain.EventData) error {
	client, err := p.connect(ctx)
	if err != nil {
		return err
	}

	payload, err := msgpack.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode event payload: %w", err)
	}
	body, err := msgpack.Marshal(Envelope{
		Type:       string(data.EventType()),
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		return fmt.Errorf("failed to encode event envelope: %w", err)
	}

	channel := ChannelFor(data.EventType())
	if err := client.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("failed to publish on %s: %w", channel, err)
	}

	p.log.Debug().
		Str("channel", channel).
		Int("bytes", len(body)).
		Msg("Event published")
	return nil
}

// Close releases the broker connection. Publishing after Close reconnects.
func (p *RedisPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}
