package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harvestdesk/farmops-backend/pkg/config"
	"github.com/harvestdesk/farmops-backend/pkg/db/models"
	"github.com/harvestdesk/farmops-backend/pkg/logger"
	"github.com/harvestdesk/farmops-backend/pkg/metrics"
	"github.com/harvestdesk/farmops-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	sendTimeout        = 15 * time.Second
	maxBackoff         = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeTerminal
)

type rowStore interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type topicSource interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRows interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// topicPublisher is the slice of *pubsub.Publisher the relay uses; tests
// substitute their own.
type topicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) sendResult
}

type sendResult interface {
	Get(context.Context) (string, error)
}

type RelayParams struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        rowStore
	PubSub    topicSource
	Rows      outboxRows
	Registry  eventResolver
	Metrics   *metrics.OutboxMetrics
	Publisher func(topic string) topicPublisher
}

// Relay moves committed outbox rows to Pub/Sub. Rows are claimed and marked
// in one transaction per batch; a crash before commit leaves them unpublished,
// so subscribers see each event at least once and dedupe on event_id.
type Relay struct {
	logg        *logger.Logger
	db          rowStore
	pubsub      topicSource
	rows        outboxRows
	registry    eventResolver
	metrics     *metrics.OutboxMetrics
	publisher   func(topic string) topicPublisher
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

type batchStats struct {
	published int
	retried   int
	terminal  int
}

func (b batchStats) claimed() int {
	return b.published + b.retried + b.terminal
}

func (b *batchStats) add(o outcome) {
	switch o {
	case outcomePublished:
		b.published++
	case outcomeRetry:
		b.retried++
	case outcomeTerminal:
		b.terminal++
	}
}

func NewRelay(p RelayParams) (*Relay, error) {
	switch {
	case p.Config == nil:
		return nil, errors.New("config is required")
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("row store is required")
	case p.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case p.Rows == nil:
		return nil, errors.New("outbox repository is required")
	case p.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	r := &Relay{
		logg:        p.Logger,
		db:          p.DB,
		pubsub:      p.PubSub,
		rows:        p.Rows,
		registry:    p.Registry,
		metrics:     p.Metrics,
		publisher:   p.Publisher,
		batchSize:   positiveOr(p.Config.Outbox.BatchSize, defaultBatchSize),
		maxAttempts: positiveOr(p.Config.Outbox.MaxAttempts, defaultMaxAttempts),
		poll:        time.Duration(positiveOr(p.Config.Outbox.PollIntervalMS, int(defaultPoll/time.Millisecond))) * time.Millisecond,
	}
	if r.publisher == nil {
		r.publisher = func(topic string) topicPublisher {
			if pub := p.PubSub.Publisher(topic); pub != nil {
				return gcpPublisher{pub}
			}
			return nil
		}
	}
	return r, nil
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// the next one; an empty batch waits one poll interval; a failed batch backs
// off exponentially up to maxBackoff.
func (r *Relay) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{"database": r.db.Ping, "pubsub": r.pubsub.Ping} {
		if err := ping(ctx); err != nil {
			r.logg.Error(ctx, name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}

	delay := r.poll
	for {
		if err := ctx.Err(); err != nil {
			r.logg.Info(ctx, "outbox relay stopping")
			return err
		}

		stats, err := r.drainOnce(ctx)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox batch failed", err)
			delay = nextBackoff(delay, r.poll, maxBackoff)
		case stats.claimed() > 0:
			delay = r.poll
			continue
		default:
			delay = r.poll
		}

		if err := sleep(ctx, withJitter(delay)); err != nil {
			return err
		}
	}
}

// drainOnce claims one batch and settles every row in it. Only store errors
// while marking rows abort the batch; publish failures are recorded per row.
func (r *Relay) drainOnce(ctx context.Context) (batchStats, error) {
	var stats batchStats
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.rows.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}
		for _, row := range rows {
			o, err := r.settle(ctx, tx, row)
			if err != nil {
				return err
			}
			stats.add(o)
		}
		return nil
	})
	if stats.claimed() > 0 {
		r.logg.Debug(r.logg.WithFields(ctx, map[string]any{
			"published": stats.published,
			"retried":   stats.retried,
			"terminal":  stats.terminal,
		}), "outbox batch settled")
	}
	return stats, err
}

func (r *Relay) settle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) (outcome, error) {
	ctx = r.logg.WithFields(ctx, map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID,
		"attempt_count":  row.AttemptCount,
	})

	resolved, err := r.registry.Resolve(row)
	if err == nil {
		ctx = r.logg.WithField(ctx, "topic", resolved.Descriptor.Topic)
		err = r.send(ctx, row, resolved)
	}

	var o outcome
	switch {
	case err == nil:
		if markErr := r.rows.MarkPublishedTx(tx, row.ID); markErr != nil {
			return o, fmt.Errorf("mark published %s: %w", row.ID, markErr)
		}
		o = outcomePublished
		r.logg.Info(ctx, "outbox event published")

	case registry.IsPermanent(err) || row.AttemptCount+1 >= r.maxAttempts:
		if !registry.IsPermanent(err) {
			err = fmt.Errorf("gave up after %d attempts: %w", row.AttemptCount+1, err)
		}
		// the row keeps its payload and last error for a manual replay
		if markErr := r.rows.MarkTerminalTx(tx, row.ID, err, r.maxAttempts); markErr != nil {
			return o, fmt.Errorf("mark terminal %s: %w", row.ID, markErr)
		}
		o = outcomeTerminal
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "outbox event will not be retried")

	default:
		if markErr := r.rows.MarkFailedTx(tx, row.ID, err); markErr != nil {
			return o, fmt.Errorf("mark failure %s: %w", row.ID, markErr)
		}
		o = outcomeRetry
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "outbox publish failed, will retry")
	}

	r.metrics.Result(string(row.EventType), outcomeLabel(o))
	return o, nil
}

func (r *Relay) send(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := r.publisher(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	result := pub.Publish(sendCtx, &gcppubsub.Message{
		Data:       []byte(row.Payload),
		Attributes: messageAttributes(row, resolved),
	})
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned no result for topic %s", topic))
	}
	_, err := result.Get(sendCtx)
	return err
}

// messageAttributes let subscribers route and dedupe without decoding the body.
func messageAttributes(row models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]string {
	env := resolved.Envelope
	attrs := map[string]string{
		"event_id":       env.EventID,
		"event_type":     string(row.EventType),
		"aggregate_type": string(row.AggregateType),
		"aggregate_id":   row.AggregateID,
		"schema_version": strconv.Itoa(env.Version),
		"created_at":     row.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if attrs["event_id"] == "" {
		attrs["event_id"] = row.ID.String()
	}
	if !env.OccurredAt.IsZero() {
		attrs["occurred_at"] = env.OccurredAt.UTC().Format(time.RFC3339Nano)
	}
	if env.Actor != nil {
		attrs["actor_source"] = env.Actor.Source
		if env.Actor.RequestID != "" {
			attrs["request_id"] = env.Actor.RequestID
		}
	}
	return attrs
}

func outcomeLabel(o outcome) string {
	switch o {
	case outcomePublished:
		return metrics.OutboxResultPublished
	case outcomeRetry:
		return metrics.OutboxResultRetry
	default:
		return metrics.OutboxResultTerminal
	}
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, limit time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	return min(current*2, limit)
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) sendResult {
	return p.Publisher.Publish(ctx, msg)
}
