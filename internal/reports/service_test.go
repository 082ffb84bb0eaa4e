package reports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/harvestdesk/farmops-backend/internal/customers"
	"github.com/harvestdesk/farmops-backend/internal/inventory"
	"github.com/harvestdesk/farmops-backend/pkg/db/models"
	"github.com/harvestdesk/farmops-backend/pkg/enums"
)

type stubInventory struct {
	rows []models.InventoryRow
	err  error
}

func (s stubInventory) List(context.Context, inventory.ListFilter) ([]models.InventoryRow, error) {
	return s.rows, s.err
}

type stubLocations []models.StorageLocation

func (s stubLocations) List(context.Context) ([]models.StorageLocation, error) { return s, nil }

type stubScores []customers.Score

func (s stubScores) Calculate(context.Context) ([]customers.Score, error) { return s, nil }

// reopen round-trips the workbook through its serialized form.
func reopen(t *testing.T, f *excelize.File) *excelize.File {
	t.Helper()
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())
	out, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = out.Close() })
	return out
}

func TestInventoryWorkbook(t *testing.T) {
	l1 := models.StorageLocation{ID: uuid.New(), Name: "Cold Room"}
	l2 := models.StorageLocation{ID: uuid.New(), Name: "Packing Shed"}
	harvested := time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC)
	rows := []models.InventoryRow{
		{ID: uuid.New(), ProductName: "Peach", Grade: enums.GradeA, LocationID: l1.ID, Quantity: 100, HarvestDate: &harvested},
		{ID: uuid.New(), ProductName: "Peach", Grade: enums.GradeA, LocationID: l2.ID, Quantity: 50},
		{ID: uuid.New(), ProductName: "Pear", Grade: enums.GradeB, LocationID: l2.ID, Quantity: 7},
	}
	svc, err := NewService(stubInventory{rows: rows}, stubLocations{l1, l2}, stubScores{})
	require.NoError(t, err)

	f, err := svc.Inventory(context.Background(), inventory.ListFilter{})
	require.NoError(t, err)
	book := reopen(t, f)

	assert.Equal(t, []string{SheetInventory, SheetTotals}, book.GetSheetList())

	sheet, err := book.GetRows(SheetInventory)
	require.NoError(t, err)
	require.Len(t, sheet, 4)
	assert.Equal(t, "Product", sheet[0][0])
	assert.Equal(t, []string{"Peach", "A", "Cold Room", "100", "2026-06-02"}, sheet[1][:5])
	assert.Equal(t, "Packing Shed", sheet[2][2])

	totals, err := book.GetRows(SheetTotals)
	require.NoError(t, err)
	require.Len(t, totals, 3)
	assert.Equal(t, []string{"Peach", "A", "150"}, totals[1])
	assert.Equal(t, []string{"Pear", "B", "7"}, totals[2])
}

func TestSegmentationWorkbookRanksByScore(t *testing.T) {
	scores := stubScores{
		{ID: uuid.New(), Name: "Chen", Score: 0.2, Segment: enums.SegmentRegular, CurrentSegment: enums.SegmentNew,
			RFM: customers.RFM{Frequency: 2, Monetary: decimal.NewFromInt(300), RecencyDays: 40}},
		{ID: uuid.New(), Name: "Lin", Score: 0.91234, Segment: enums.SegmentVIP, CurrentSegment: enums.SegmentStable,
			RFM: customers.RFM{Frequency: 9, Monetary: decimal.NewFromInt(9000), RecencyDays: 1}},
	}
	svc, err := NewService(stubInventory{}, stubLocations{}, scores)
	require.NoError(t, err)

	f, err := svc.Segmentation(context.Background())
	require.NoError(t, err)
	book := reopen(t, f)

	sheet, err := book.GetRows(SheetSegmentation)
	require.NoError(t, err)
	require.Len(t, sheet, 3)
	assert.Equal(t, []string{"Lin", "9", "9000", "1", "0.912", "VIP", "Stable"}, sheet[1])
	assert.Equal(t, "Chen", sheet[2][0])
}

func TestInventoryWorkbookPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	svc, err := NewService(stubInventory{err: boom}, stubLocations{}, stubScores{})
	require.NoError(t, err)

	_, err = svc.Inventory(context.Background(), inventory.ListFilter{})
	assert.ErrorIs(t, err, boom)
}

func TestNewServiceRequiresSources(t *testing.T) {
	_, err := NewService(nil, stubLocations{}, stubScores{})
	assert.Error(t, err)
}
