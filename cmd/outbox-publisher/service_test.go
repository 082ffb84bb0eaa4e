package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/harvestdesk/farmops-backend/pkg/config"
	"github.com/harvestdesk/farmops-backend/pkg/db/models"
	"github.com/harvestdesk/farmops-backend/pkg/enums"
	"github.com/harvestdesk/farmops-backend/pkg/logger"
	"github.com/harvestdesk/farmops-backend/pkg/metrics"
	"github.com/harvestdesk/farmops-backend/pkg/outbox"
	"github.com/harvestdesk/farmops-backend/pkg/outbox/registry"
)

const testTopic = "farmops-domain-events"

func TestDrainSettlesEachRowIndependently(t *testing.T) {
	rows := &fakeRows{events: []models.OutboxEvent{
		movedEvent(t, 0, nil),
		movedEvent(t, 0, nil),
	}}
	pub := &fakePublisher{results: []sendResult{
		fakeResult{err: errors.New("unavailable")},
		fakeResult{},
	}}
	relay := newTestRelay(t, rows, pub, realRegistry(t), 5)

	stats, err := relay.drainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, batchStats{published: 1, retried: 1}, stats)
	assert.Equal(t, []uuid.UUID{rows.events[0].ID}, rows.failed)
	assert.Equal(t, []uuid.UUID{rows.events[1].ID}, rows.published)
	assert.Empty(t, rows.terminal)
}

func TestMessageCarriesRoutingAndActorAttributes(t *testing.T) {
	actor := &outbox.ActorRef{Source: "api", RequestID: "req-42"}
	event := movedEvent(t, 0, actor)
	rows := &fakeRows{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []sendResult{fakeResult{}}}
	relay := newTestRelay(t, rows, pub, realRegistry(t), 5)

	var topics []string
	relay.publisher = func(topic string) topicPublisher {
		topics = append(topics, topic)
		return pub
	}

	_, err := relay.drainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{testTopic}, topics)
	require.Len(t, pub.sent, 1)

	msg := pub.sent[0]
	assert.Equal(t, event.Payload, string(msg.Data))
	assert.Equal(t, "inventory.moved", msg.Attributes["event_type"])
	assert.Equal(t, "inventory_row", msg.Attributes["aggregate_type"])
	assert.Equal(t, event.AggregateID, msg.Attributes["aggregate_id"])
	assert.Equal(t, event.ID.String(), msg.Attributes["event_id"])
	assert.Equal(t, "1", msg.Attributes["schema_version"])
	assert.Equal(t, "api", msg.Attributes["actor_source"])
	assert.Equal(t, "req-42", msg.Attributes["request_id"])
	assert.NotEmpty(t, msg.Attributes["occurred_at"])
}

func TestTerminalOutcomes(t *testing.T) {
	cases := []struct {
		name     string
		event    func(t *testing.T) models.OutboxEvent
		result   sendResult
		nilPub   bool
		attempts int
	}{
		{
			name: "unknown event type",
			event: func(t *testing.T) models.OutboxEvent {
				e := movedEvent(t, 0, nil)
				e.EventType = "inventory.teleported"
				return e
			},
			attempts: 5,
		},
		{
			name: "aggregate mismatch",
			event: func(t *testing.T) models.OutboxEvent {
				e := movedEvent(t, 0, nil)
				e.AggregateType = enums.AggregateCustomer
				return e
			},
			attempts: 5,
		},
		{
			name: "null payload",
			event: func(t *testing.T) models.OutboxEvent {
				e := movedEvent(t, 0, nil)
				e.Payload = `{"version":1,"eventId":"x","data":null}`
				return e
			},
			attempts: 5,
		},
		{
			name:     "last attempt fails",
			event:    func(t *testing.T) models.OutboxEvent { return movedEvent(t, 1, nil) },
			result:   fakeResult{err: errors.New("deadline exceeded")},
			attempts: 2,
		},
		{
			name:     "no publisher for topic",
			event:    func(t *testing.T) models.OutboxEvent { return movedEvent(t, 0, nil) },
			nilPub:   true,
			attempts: 5,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event := tc.event(t)
			rows := &fakeRows{events: []models.OutboxEvent{event}}
			pub := &fakePublisher{}
			if tc.result != nil {
				pub.results = []sendResult{tc.result}
			}
			relay := newTestRelay(t, rows, pub, realRegistry(t), tc.attempts)
			if tc.nilPub {
				relay.publisher = func(string) topicPublisher { return nil }
			}

			stats, err := relay.drainOnce(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, stats.terminal)
			assert.Equal(t, []uuid.UUID{event.ID}, rows.terminal)
			assert.Empty(t, rows.failed)
			assert.Empty(t, rows.published)
		})
	}
}

func TestMarkFailureAbortsBatch(t *testing.T) {
	rows := &fakeRows{
		events:     []models.OutboxEvent{movedEvent(t, 0, nil), movedEvent(t, 0, nil)},
		publishErr: errors.New("connection reset"),
	}
	pub := &fakePublisher{results: []sendResult{fakeResult{}, fakeResult{}}}
	relay := newTestRelay(t, rows, pub, realRegistry(t), 5)

	_, err := relay.drainOnce(context.Background())
	require.Error(t, err)
	assert.Len(t, pub.sent, 1)
}

func TestDrainCountsResults(t *testing.T) {
	rows := &fakeRows{events: []models.OutboxEvent{movedEvent(t, 0, nil), movedEvent(t, 0, nil)}}
	pub := &fakePublisher{results: []sendResult{fakeResult{}, fakeResult{err: errors.New("unavailable")}}}
	relay := newTestRelay(t, rows, pub, realRegistry(t), 5)
	reg := prometheus.NewRegistry()
	relay.metrics = metrics.NewOutboxMetrics(reg)

	_, err := relay.drainOnce(context.Background())
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "farmops_outbox_publish_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestEmptyBatchClaimsNothing(t *testing.T) {
	relay := newTestRelay(t, &fakeRows{}, &fakePublisher{}, realRegistry(t), 5)
	stats, err := relay.drainOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.claimed())
}

func TestRunStopsWhenPingFails(t *testing.T) {
	relay := newTestRelay(t, &fakeRows{}, &fakePublisher{}, realRegistry(t), 5)
	relay.db = &fakeDB{pingErr: errors.New("refused")}

	err := relay.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database ping failed")
}

func TestRunReturnsOnCancel(t *testing.T) {
	relay := newTestRelay(t, &fakeRows{}, &fakePublisher{}, realRegistry(t), 5)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := relay.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBackoffAndJitter(t *testing.T) {
	base := 500 * time.Millisecond
	assert.Equal(t, time.Second, nextBackoff(base, base, maxBackoff))
	assert.Equal(t, maxBackoff, nextBackoff(8*time.Second, base, maxBackoff))
	assert.Equal(t, time.Second, nextBackoff(0, base, maxBackoff))

	j := withJitter(base)
	assert.GreaterOrEqual(t, j, base)
	assert.Less(t, j, base+jitterWindow)
	assert.Zero(t, withJitter(0))
}

func TestNewRelayRequiresDependencies(t *testing.T) {
	_, err := NewRelay(RelayParams{})
	assert.Error(t, err)
}

func newTestRelay(t *testing.T, rows outboxRows, pub topicPublisher, reg eventResolver, maxAttempts int) *Relay {
	t.Helper()
	cfg := &config.Config{
		Outbox: config.OutboxConfig{BatchSize: 2, PollIntervalMS: 10, MaxAttempts: maxAttempts},
		PubSub: config.PubSubConfig{DomainTopic: testTopic},
	}
	relay, err := NewRelay(RelayParams{
		Config:    cfg,
		Logger:    logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:        &fakeDB{},
		PubSub:    &fakePubSubClient{},
		Rows:      rows,
		Registry:  reg,
		Publisher: func(string) topicPublisher { return pub },
	})
	require.NoError(t, err)
	return relay
}

func realRegistry(t *testing.T) *registry.EventRegistry {
	t.Helper()
	reg, err := registry.NewEventRegistry(config.PubSubConfig{DomainTopic: testTopic})
	require.NoError(t, err)
	return reg
}

func movedEvent(t *testing.T, attempts int, actor *outbox.ActorRef) models.OutboxEvent {
	t.Helper()
	id := uuid.New()
	rowID := uuid.New()
	data, err := json.Marshal(map[string]any{
		"sourceId":         rowID,
		"targetId":         uuid.New(),
		"targetLocationId": uuid.New(),
		"amount":           3,
	})
	require.NoError(t, err)
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    id.String(),
		OccurredAt: time.Now().UTC(),
		Actor:      actor,
		Data:       data,
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            id,
		EventType:     enums.EventInventoryMoved,
		AggregateType: enums.AggregateInventoryRow,
		AggregateID:   rowID.String(),
		Payload:       string(payload),
		CreatedAt:     time.Now().UTC(),
		AttemptCount:  attempts,
	}
}

type fakeRows struct {
	events     []models.OutboxEvent
	publishErr error
	published  []uuid.UUID
	failed     []uuid.UUID
	terminal   []uuid.UUID
}

func (f *fakeRows) FetchUnpublishedForPublish(_ *gorm.DB, _, _ int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRows) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRows) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRows) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct {
	pingErr error
}

func (f *fakeDB) Ping(context.Context) error { return f.pingErr }

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSubClient struct{}

func (f *fakePubSubClient) Ping(context.Context) error { return nil }

func (f *fakePubSubClient) Publisher(string) *gcppubsub.Publisher { return nil }

type fakePublisher struct {
	results []sendResult
	sent    []*gcppubsub.Message
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) sendResult {
	f.sent = append(f.sent, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakeResult struct {
	err error
}

func (f fakeResult) Get(context.Context) (string, error) {
	return "", f.err
}
