package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/wildside/ghillie/internal/domain"
)

func subscribe(t *testing.T, addr string, channels ...string) <-chan *redis.Message {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	pubsub := client.Subscribe(context.Background(), channels...)
	t.Cleanup(func() { _ = pubsub.Close() })

	// Wait for the subscription confirmation before the test publishes
	_, err := pubsub.Receive(context.Background())
	require.NoError(t, err)

	return pubsub.Channel()
}

func receiveMessage(t *testing.T, ch <-chan *redis.Message) *redis.Message {
	t.Helper()

	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published event")
		return nil
	}
}

func TestChannelFor(t *testing.T) {
	assert.Equal(t, "ghillie.events.catalogue.imported", ChannelFor(domain.CatalogueImported))
	assert.Equal(t, "ghillie.events.registry.synced", ChannelFor(domain.RegistrySynced))
	assert.Equal(t, "ghillie.events.report.generated", ChannelFor(domain.ReportGenerated))
	assert.Equal(t, "ghillie.events.report.review_created", ChannelFor(domain.ReportReviewCreated))
}

func TestRedisPublisherDeliversEnvelope(t *testing.T) {
	mr := miniredis.RunT(t)
	ch := subscribe(t, mr.Addr(), "ghillie.events.report.generated")

	pub := NewRedisPublisher(mr.Addr(), "", zerolog.Nop())
	t.Cleanup(func() { _ = pub.Close() })

	data := &domain.ReportGeneratedData{
		ReportID:     "report-1",
		RepositoryID: "repo-1",
		Owner:        "wildside",
		Name:         "booking-engine",
		WindowStart:  "2026-07-01T00:00:00Z",
		WindowEnd:    "2026-07-08T00:00:00Z",
		Status:       "on_track",
	}
	before := time.Now().UTC()
	require.NoError(t, pub.Publish(context.Background(), data))

	msg := receiveMessage(t, ch)
	assert.Equal(t, "ghillie.events.report.generated", msg.Channel)

	var env Envelope
	require.NoError(t, msgpack.Unmarshal([]byte(msg.Payload), &env))
	assert.Equal(t, "report.generated", env.Type)
	assert.False(t, env.OccurredAt.Before(before.Truncate(time.Second)))
	assert.False(t, env.OccurredAt.After(time.Now().UTC().Add(time.Second)))

	var payload domain.ReportGeneratedData
	require.NoError(t, msgpack.Unmarshal(env.Payload, &payload))
	assert.Equal(t, *data, payload)
}

func TestRedisPublisherRoutesEachEventType(t *testing.T) {
	mr := miniredis.RunT(t)
	ch := subscribe(t, mr.Addr(),
		"ghillie.events.catalogue.imported",
		"ghillie.events.registry.synced",
		"ghillie.events.report.generated",
		"ghillie.events.report.review_created",
	)

	pub := NewRedisPublisher(mr.Addr(), "", zerolog.Nop())
	t.Cleanup(func() { _ = pub.Close() })

	published := []domain.EventData{
		&domain.CatalogueImportedData{EstateKey: "wildside", CommitSHA: "abc123", Created: 4},
		&domain.RegistrySyncedData{EstateKey: "wildside", Created: 2, Deactivated: 1},
		&domain.ReportGeneratedData{ReportID: "report-1", Status: "on_track"},
		&domain.ReportReviewCreatedData{ReviewID: "review-1", AttemptCount: 2},
	}
	for _, data := range published {
		require.NoError(t, pub.Publish(context.Background(), data))
	}

	seen := make(map[string]string)
	for range published {
		msg := receiveMessage(t, ch)
		var env Envelope
		require.NoError(t, msgpack.Unmarshal([]byte(msg.Payload), &env))
		seen[msg.Channel] = env.Type
	}

	assert.Equal(t, map[string]string{
		"ghillie.events.catalogue.imported":    "catalogue.imported",
		"ghillie.events.registry.synced":       "registry.synced",
		"ghillie.events.report.generated":      "report.generated",
		"ghillie.events.report.review_created": "report.review_created",
	}, seen)
}

func TestRedisPublisherRequiresReachableBroker(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	pub := NewRedisPublisher(addr, "", zerolog.Nop())
	err := pub.Publish(context.Background(), &domain.RegistrySyncedData{EstateKey: "wildside"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func TestRedisPublisherAuthenticates(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("s3cret")

	wrong := NewRedisPublisher(mr.Addr(), "nope", zerolog.Nop())
	err := wrong.Publish(context.Background(), &domain.RegistrySyncedData{EstateKey: "wildside"})
	require.Error(t, err)

	ch := subscribeAuthed(t, mr.Addr(), "s3cret", "ghillie.events.registry.synced")

	right := NewRedisPublisher(mr.Addr(), "s3cret", zerolog.Nop())
	t.Cleanup(func() { _ = right.Close() })
	require.NoError(t, right.Publish(context.Background(), &domain.RegistrySyncedData{EstateKey: "wildside"}))
	receiveMessage(t, ch)
}

func subscribeAuthed(t *testing.T, addr, password string, channels ...string) <-chan *redis.Message {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	t.Cleanup(func() { _ = client.Close() })

	pubsub := client.Subscribe(context.Background(), channels...)
	t.Cleanup(func() { _ = pubsub.Close() })

	_, err := pubsub.Receive(context.Background())
	require.NoError(t, err)

	return pubsub.Channel()
}

func TestRedisPublisherCloseThenReconnect(t *testing.T) {
	mr := miniredis.RunT(t)

	pub := NewRedisPublisher(mr.Addr(), "", zerolog.Nop())
	require.NoError(t, pub.Ping(context.Background()))
	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close())

	ch := subscribe(t, mr.Addr(), "ghillie.events.registry.synced")
	require.NoError(t, pub.Publish(context.Background(), &domain.RegistrySyncedData{EstateKey: "wildside"}))
	receiveMessage(t, ch)
	require.NoError(t, pub.Close())
}

func TestNewStubPublisherRequiresGate(t *testing.T) {
	t.Setenv(AllowStubBrokerEnv, "")
	_, err := NewStubPublisher(zerolog.Nop())
	require.ErrorIs(t, err, ErrStubBrokerDisabled)

	t.Setenv(AllowStubBrokerEnv, "true")
	pub, err := NewStubPublisher(zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, pub.Publish(context.Background(), &domain.RegistrySyncedData{EstateKey: "wildside"}))
	require.NoError(t, pub.Publish(context.Background(), &domain.ReportGeneratedData{ReportID: "report-1"}))
	assert.Equal(t, 2, pub.Published())
	require.NoError(t, pub.Close())
}
