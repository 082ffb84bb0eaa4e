package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/harvestdesk/farmops-backend/pkg/db/dbtest"
	"github.com/harvestdesk/farmops-backend/pkg/db/models"
	"github.com/harvestdesk/farmops-backend/pkg/enums"
)

func TestEmitStoresEnvelope(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)

	ctx := WithActor(context.Background(), ActorRef{Source: "api", RequestID: "req-1"})
	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   "LINE-7QK2-20260115",
			Actor:         ActorFromContext(ctx),
			Data:          map[string]any{"orderId": "LINE-7QK2-20260115"},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "LINE-7QK2-20260115", rows[0].AggregateID)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal([]byte(rows[0].Payload), &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, "req-1", envelope.Actor.RequestID)
	assert.JSONEq(t, `{"orderId":"LINE-7QK2-20260115"}`, string(envelope.Data))
}

func TestEmitValidation(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)

	assert.Error(t, svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventOrderCreated, AggregateID: "x"}))

	conn := dbtest.Open(t)
	assert.Error(t, svc.Emit(context.Background(), conn, DomainEvent{EventType: "bogus", AggregateID: "x"}))
	assert.Error(t, svc.Emit(context.Background(), conn, DomainEvent{EventType: enums.EventOrderCreated}))
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)

	_ = conn.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventInventoryMoved,
			AggregateType: enums.AggregateInventoryRow,
			AggregateID:   "row-1",
			Data:          struct{}{},
		}))
		return errors.New("abort")
	})

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
			return svc.Emit(ctx, tx, DomainEvent{
				EventType:     enums.EventCustomerSegmentChanged,
				AggregateType: enums.AggregateCustomer,
				AggregateID:   id,
				Data:          map[string]string{"id": id},
			})
		}))
	}

	batch, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	require.NoError(t, repo.MarkPublishedTx(conn, batch[0].ID))
	require.NoError(t, repo.MarkFailedTx(conn, batch[1].ID, errors.New("unavailable")))
	require.NoError(t, repo.MarkTerminalTx(conn, batch[2].ID, errors.New("bad payload"), 3))

	pending, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, batch[1].ID, pending[0].ID)
	assert.Equal(t, 1, pending[0].AttemptCount)
	require.NotNil(t, pending[0].LastError)
	assert.Equal(t, "unavailable", *pending[0].LastError)

	deleted, err := repo.DeletePublishedBefore(ctx, nil, time.Now().UTC().Add(time.Hour), 3)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted, "published and terminal rows are removed")

	var remaining int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&remaining).Error)
	assert.EqualValues(t, 1, remaining)
}

func TestEmitTakesActorFromContextAndStampsClock(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	fixed := time.Date(2026, 3, 14, 6, 30, 0, 0, time.FixedZone("CST", 8*3600))
	svc.now = func() time.Time { return fixed }

	ctx := WithActor(context.Background(), ActorRef{Source: "cron"})
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, DomainEvent{
			EventType:     enums.EventInventoryConsumed,
			AggregateType: enums.AggregateInventoryRow,
			AggregateID:   "row-9",
			Data:          map[string]int{"quantity": 2},
		})
	}))

	var row models.OutboxEvent
	require.NoError(t, conn.Take(&row).Error)
	assert.True(t, row.CreatedAt.Equal(fixed))

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal([]byte(row.Payload), &envelope))
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, "cron", envelope.Actor.Source)
	assert.True(t, envelope.OccurredAt.Equal(fixed))
	assert.Equal(t, time.UTC, envelope.OccurredAt.Location())
}

func TestActorFromContextWithoutActor(t *testing.T) {
	assert.Nil(t, ActorFromContext(context.Background()))
	assert.Nil(t, ActorFromContext(nil)) //nolint:staticcheck
}
