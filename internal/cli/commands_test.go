package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/harvestdesk/farmops-backend/internal/app"
	"github.com/harvestdesk/farmops-backend/internal/customers"
	"github.com/harvestdesk/farmops-backend/internal/inventory"
	"github.com/harvestdesk/farmops-backend/pkg/config"
	"github.com/harvestdesk/farmops-backend/pkg/db"
	"github.com/harvestdesk/farmops-backend/pkg/db/dbtest"
	"github.com/harvestdesk/farmops-backend/pkg/db/models"
	"github.com/harvestdesk/farmops-backend/pkg/enums"
)

func newTestRoot(t *testing.T) (*cobra.Command, *gorm.DB, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	conn := dbtest.Open(t)
	services, err := app.Build(app.Params{DB: db.NewFromConn(conn, db.DefaultTimeout), Config: &config.Config{}})
	require.NoError(t, err)

	open := func(context.Context) (*app.Services, func() error, error) {
		return services, nil, nil
	}
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand(open, "Asia/Taipei")
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd, conn, out, errOut
}

func TestSegmentsPreviewJSON(t *testing.T) {
	cmd, conn, out, _ := newTestRoot(t)
	dbtest.SeedCustomer(t, conn, "Lin", nil)
	dbtest.SeedCustomer(t, conn, "Wu", nil)
	for i := 0; i < 10; i++ {
		dbtest.SeedOrder(t, conn, "Lin", 10000, time.Now().UTC())
	}

	cmd.SetArgs([]string{"segments", "preview", "--format", "json"})
	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string            `json:"status"`
		Data   []customers.Score `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 2)

	byName := map[string]customers.Score{}
	for _, s := range resp.Data {
		byName[s.Name] = s
	}
	assert.Equal(t, enums.SegmentVIP, byName["Lin"].Segment)
	assert.Equal(t, enums.SegmentNew, byName["Lin"].CurrentSegment)
}

func TestSegmentsPreviewTopText(t *testing.T) {
	cmd, conn, out, _ := newTestRoot(t)
	for _, name := range []string{"Chen", "Lin", "Wu"} {
		dbtest.SeedCustomer(t, conn, name, nil)
	}
	dbtest.SeedOrder(t, conn, "Lin", 500, time.Now().UTC())

	cmd.SetArgs([]string{"segments", "preview", "--top", "1"})
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "SEGMENT")
	assert.Contains(t, lines[1], "Lin")
}

func TestSegmentsApplyChanged(t *testing.T) {
	cmd, conn, out, _ := newTestRoot(t)
	lin := dbtest.SeedCustomer(t, conn, "Lin", nil)
	dbtest.SeedCustomer(t, conn, "Wu", nil)
	for i := 0; i < 10; i++ {
		dbtest.SeedOrder(t, conn, "Lin", 10000, time.Now().UTC())
	}

	cmd.SetArgs([]string{"segments", "apply", "--changed"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "applied")

	var stored models.Customer
	require.NoError(t, conn.Where("id = ?", lin.ID).Take(&stored).Error)
	assert.Equal(t, enums.SegmentVIP, stored.Segment)
}

func TestSegmentsApplyExplicitAssignments(t *testing.T) {
	cmd, conn, out, _ := newTestRoot(t)
	wu := dbtest.SeedCustomer(t, conn, "Wu", nil)

	cmd.SetArgs([]string{"segments", "apply", wu.ID.String() + "=At Risk", "--format", "json"})
	require.NoError(t, cmd.Execute())

	var resp struct {
		Data customers.ApplyResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.Applied)
	assert.Empty(t, resp.Data.Failed)

	var stored models.Customer
	require.NoError(t, conn.Where("id = ?", wu.ID).Take(&stored).Error)
	assert.Equal(t, enums.SegmentAtRisk, stored.Segment)
}

func TestSegmentsApplyRejectsUnknownSegment(t *testing.T) {
	cmd, conn, _, errOut := newTestRoot(t)
	wu := dbtest.SeedCustomer(t, conn, "Wu", nil)

	cmd.SetArgs([]string{"segments", "apply", wu.ID.String() + "=Gold"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, Reported(err))
	assert.Contains(t, errOut.String(), "VALIDATION_ERROR")
}

func TestSegmentsApplyArgumentErrors(t *testing.T) {
	cases := map[string][]string{
		"nothing":    {"segments", "apply"},
		"both":       {"segments", "apply", "--changed", "x=VIP"},
		"not a pair": {"segments", "apply", "VIP"},
		"bad id":     {"segments", "apply", "abc=VIP"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			cmd, _, _, _ := newTestRoot(t)
			cmd.SetArgs(args)
			err := cmd.Execute()
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestOrdersNewID(t *testing.T) {
	cmd, _, out, _ := newTestRoot(t)
	cmd.SetArgs([]string{"orders", "new-id", "--channel", "line", "-n", "3"})
	require.NoError(t, cmd.Execute())

	ids := strings.Fields(out.String())
	require.Len(t, ids, 3)
	pattern := regexp.MustCompile(`^LINE-[0-9A-Z]{4}-\d{8}$`)
	for _, id := range ids {
		assert.Regexp(t, pattern, id)
	}
}

func TestOrdersNewIDRejectsBadInput(t *testing.T) {
	cmd, _, _, _ := newTestRoot(t)
	cmd.SetArgs([]string{"orders", "new-id", "--channel", "fax"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	cmd, _, _, _ = newTestRoot(t)
	cmd.SetArgs([]string{"orders", "new-id", "-n", "0"})
	require.Error(t, cmd.Execute())
}

func TestInventoryMoveAndList(t *testing.T) {
	cmd, conn, out, _ := newTestRoot(t)
	cold := dbtest.SeedLocation(t, conn, "Cold room")
	shop := dbtest.SeedLocation(t, conn, "Shop")
	row := dbtest.SeedInventory(t, conn, "Tomato", enums.GradeA, cold.ID, 10)

	cmd.SetArgs([]string{"inventory", "move", row.ID.String(), shop.ID.String(), "4", "--format", "json"})
	require.NoError(t, cmd.Execute())

	var moved struct {
		Data inventory.MoveResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &moved))
	assert.Equal(t, 6, moved.Data.SourceRemaining)
	assert.Equal(t, 4, moved.Data.TargetQuantity)
	assert.Equal(t, 4, dbtest.QuantityAt(t, conn, "Tomato", enums.GradeA, shop.ID))

	out.Reset()
	cmd.SetArgs([]string{"inventory", "list", "--location", shop.ID.String(), "--format", "json"})
	require.NoError(t, cmd.Execute())

	var listed struct {
		Data []models.InventoryRow `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &listed))
	require.Len(t, listed.Data, 1)
	assert.Equal(t, shop.ID, listed.Data[0].LocationID)
}

func TestInventoryMoveInsufficientStock(t *testing.T) {
	cmd, conn, _, errOut := newTestRoot(t)
	cold := dbtest.SeedLocation(t, conn, "Cold room")
	shop := dbtest.SeedLocation(t, conn, "Shop")
	row := dbtest.SeedInventory(t, conn, "Tomato", enums.GradeA, cold.ID, 2)

	cmd.SetArgs([]string{"inventory", "move", row.ID.String(), shop.ID.String(), "5"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, errOut.String(), "INVALID_QUANTITY")
	assert.Equal(t, 2, dbtest.Quantity(t, conn, row.ID))
}

func TestInventoryMoveArgumentErrors(t *testing.T) {
	cmd, _, _, _ := newTestRoot(t)
	cmd.SetArgs([]string{"inventory", "move", "not-a-uuid", "also-not", "1"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func seedOutboxRow(t *testing.T, conn *gorm.DB, eventType enums.OutboxEventType, attempts int, published bool) models.OutboxEvent {
	t.Helper()
	lastErr := "unavailable"
	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: eventType.Aggregate(),
		AggregateID:   uuid.NewString(),
		Payload:       `{"version":1,"data":{}}`,
		AttemptCount:  attempts,
		LastError:     &lastErr,
	}
	if published {
		now := time.Now().UTC()
		row.PublishedAt = &now
	}
	require.NoError(t, conn.Create(&row).Error)
	return row
}

func TestOutboxStuckFiltersByType(t *testing.T) {
	cmd, conn, out, _ := newTestRoot(t)
	moved := seedOutboxRow(t, conn, enums.EventInventoryMoved, 4, false)
	seedOutboxRow(t, conn, enums.EventOrderCreated, 2, false)
	seedOutboxRow(t, conn, enums.EventInventoryMoved, 0, false)
	seedOutboxRow(t, conn, enums.EventInventoryMoved, 1, true)

	cmd.SetArgs([]string{"outbox", "stuck", "--type", "inventory.moved", "--format", "json"})
	require.NoError(t, cmd.Execute())

	var resp struct {
		Data []models.OutboxEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, moved.ID, resp.Data[0].ID)
	assert.Equal(t, 4, resp.Data[0].AttemptCount)
}

func TestOutboxStuckRejectsUnknownType(t *testing.T) {
	cmd, _, _, _ := newTestRoot(t)
	cmd.SetArgs([]string{"outbox", "stuck", "--type", "harvest.logged"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestOutboxRequeue(t *testing.T) {
	cmd, conn, out, _ := newTestRoot(t)
	parked := seedOutboxRow(t, conn, enums.EventCustomerSegmentChanged, 10, false)

	cmd.SetArgs([]string{"outbox", "requeue", parked.ID.String()})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "requeued")

	var row models.OutboxEvent
	require.NoError(t, conn.Where("id = ?", parked.ID).Take(&row).Error)
	assert.Zero(t, row.AttemptCount)
	assert.Nil(t, row.LastError)
}

func TestOutboxRequeueRefusesPublishedAndMissing(t *testing.T) {
	cmd, conn, _, errOut := newTestRoot(t)
	done := seedOutboxRow(t, conn, enums.EventOrderCreated, 1, true)

	cmd.SetArgs([]string{"outbox", "requeue", done.ID.String()})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, errOut.String(), "STATE_CONFLICT")

	cmd2, _, _, errOut2 := newTestRoot(t)
	cmd2.SetArgs([]string{"outbox", "requeue", uuid.NewString()})
	require.Error(t, cmd2.Execute())
	assert.Contains(t, errOut2.String(), "NOT_FOUND")
}
