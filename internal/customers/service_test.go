package customers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/harvestdesk/farmops-backend/pkg/db"
	"github.com/harvestdesk/farmops-backend/pkg/db/dbtest"
	"github.com/harvestdesk/farmops-backend/pkg/db/models"
	"github.com/harvestdesk/farmops-backend/pkg/enums"
	pkgerrors "github.com/harvestdesk/farmops-backend/pkg/errors"
	"github.com/harvestdesk/farmops-backend/pkg/outbox"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(ServiceParams{
		Repository: NewRepository(conn, 0),
		Tx:         db.NewFromConn(conn, 0),
		Outbox:     outbox.NewService(outbox.NewRepository(conn), nil),
	})
	require.NoError(t, err)
	return svc, conn
}

func segmentEvents(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventCustomerSegmentChanged).
		Count(&count).Error)
	return count
}

func storedSegment(t *testing.T, conn *gorm.DB, id uuid.UUID) enums.Segment {
	t.Helper()
	var c models.Customer
	require.NoError(t, conn.Where("id = ?", id).Take(&c).Error)
	return c.Segment
}

func TestCalculateReadsOrderHistory(t *testing.T) {
	svc, conn := newTestService(t)
	now := time.Now().UTC()

	a := dbtest.SeedCustomer(t, conn, "A", nil)
	b := dbtest.SeedCustomer(t, conn, "B", nil)
	for i := 0; i < 10; i++ {
		dbtest.SeedOrder(t, conn, "b", 10000, now)
	}

	scores, err := svc.Calculate(context.Background())
	require.NoError(t, err)
	require.Len(t, scores, 2)

	got := byName(scores)
	assert.Equal(t, a.ID, got["A"].ID)
	assert.Equal(t, 9999, got["A"].RFM.RecencyDays)
	assert.Equal(t, b.ID, got["B"].ID)
	assert.Equal(t, 10, got["B"].RFM.Frequency)
	assert.Greater(t, got["B"].Score, got["A"].Score)
	assert.Equal(t, enums.SegmentVIP, got["B"].Segment)

	// preview writes nothing
	assert.Equal(t, enums.SegmentNew, storedSegment(t, conn, b.ID))
}

func TestTopCandidatesRanksAndLimits(t *testing.T) {
	svc, conn := newTestService(t)
	now := time.Now().UTC()
	for _, name := range []string{"Chen", "Lin", "Wu"} {
		dbtest.SeedCustomer(t, conn, name, nil)
	}
	dbtest.SeedOrder(t, conn, "Lin", 500, now)
	dbtest.SeedOrder(t, conn, "Lin", 500, now)
	dbtest.SeedOrder(t, conn, "Wu", 100, now.AddDate(0, 0, -40))

	top, err := svc.TopCandidates(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "Lin", top[0].Name)
	assert.Equal(t, "Wu", top[1].Name)

	all, err := svc.TopCandidates(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestApplyValidatesEverySegmentFirst(t *testing.T) {
	svc, conn := newTestService(t)
	a := dbtest.SeedCustomer(t, conn, "A", nil)

	_, err := svc.Apply(context.Background(), []SegmentUpdate{
		{ID: a.ID, Segment: "VIP"},
		{ID: uuid.New(), Segment: "Gold"},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, enums.SegmentNew, storedSegment(t, conn, a.ID))
	assert.Zero(t, segmentEvents(t, conn))
}

func TestApplyWritesIndependently(t *testing.T) {
	svc, conn := newTestService(t)
	a := dbtest.SeedCustomer(t, conn, "A", nil)
	b := dbtest.SeedCustomer(t, conn, "B", nil)
	missing := uuid.New()

	result, err := svc.Apply(context.Background(), []SegmentUpdate{
		{ID: a.ID, Segment: "vip"},
		{ID: missing, Segment: "Stable"},
		{ID: b.ID, Segment: "at risk"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Applied)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, missing, result.Failed[0].ID)
	require.Error(t, result.Err())
	assert.True(t, pkgerrors.IsCode(result.Err(), pkgerrors.CodeNotFound))

	assert.Equal(t, enums.SegmentVIP, storedSegment(t, conn, a.ID))
	assert.Equal(t, enums.SegmentAtRisk, storedSegment(t, conn, b.ID))
	assert.Equal(t, int64(2), segmentEvents(t, conn))
}

func TestApplyUnchangedSegmentEmitsNothing(t *testing.T) {
	svc, conn := newTestService(t)
	a := dbtest.SeedCustomer(t, conn, "A", nil)

	result, err := svc.Apply(context.Background(), []SegmentUpdate{{ID: a.ID, Segment: "New"}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)
	assert.NoError(t, result.Err())
	assert.Zero(t, segmentEvents(t, conn))
}

func TestCreateAndUpdateCustomer(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	phone := "0912-345-678"

	created, err := svc.Create(ctx, CreateInput{Name: "  Lin Farm Shop ", Phone: &phone, TotalSpent: decimal.NewFromInt(1200)})
	require.NoError(t, err)
	assert.Equal(t, "Lin Farm Shop", created.Name)
	assert.Equal(t, enums.SegmentNew, created.Segment)

	vip := enums.SegmentVIP
	notes := "prefers grade A"
	updated, err := svc.Update(ctx, created.ID, UpdateInput{Segment: &vip, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, enums.SegmentVIP, updated.Segment)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, notes, *updated.Notes)
	assert.Equal(t, int64(1), segmentEvents(t, conn))

	_, err = svc.Update(ctx, uuid.New(), UpdateInput{Notes: &notes})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	bad := enums.Segment("Gold")
	_, err = svc.Update(ctx, created.ID, UpdateInput{Segment: &bad})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Create(ctx, CreateInput{Name: " "})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestListFiltersAndPages(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	vip := enums.SegmentVIP
	for _, name := range []string{"Chen", "Lin", "Wu"} {
		_, err := svc.Create(ctx, CreateInput{Name: name})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, CreateInput{Name: "Lin Orchard", Segment: &vip})
	require.NoError(t, err)

	page, err := svc.List(ctx, ListParams{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 4)

	vips, err := svc.List(ctx, ListParams{Segment: &vip})
	require.NoError(t, err)
	require.Len(t, vips.Items, 1)
	assert.Equal(t, "Lin Orchard", vips.Items[0].Name)

	search, err := svc.List(ctx, ListParams{Search: "lin"})
	require.NoError(t, err)
	assert.Len(t, search.Items, 2)
}

func TestNewServiceRejectsInvertedThresholds(t *testing.T) {
	conn := dbtest.Open(t)
	_, err := NewService(ServiceParams{
		Repository: NewRepository(conn, 0),
		Tx:         db.NewFromConn(conn, 0),
		Thresholds: Thresholds{VIPScore: 0.3, StableScore: 0.5, AtRiskDays: 90},
	})
	assert.Error(t, err)
}

func TestUnconfiguredStore(t *testing.T) {
	svc, err := NewService(ServiceParams{Repository: NewRepository(nil, 0), Tx: db.Unconfigured()})
	require.NoError(t, err)

	_, err = svc.Calculate(context.Background())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotConfigured))
}
