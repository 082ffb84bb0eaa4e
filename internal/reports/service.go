package reports

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/harvestdesk/farmops-backend/internal/customers"
	"github.com/harvestdesk/farmops-backend/internal/inventory"
	"github.com/harvestdesk/farmops-backend/pkg/db/models"
	"github.com/harvestdesk/farmops-backend/pkg/enums"
)

const (
	SheetInventory    = "Inventory"
	SheetTotals       = "Totals"
	SheetSegmentation = "Segmentation"

	dateLayout = "2006-01-02"
)

type InventorySource interface {
	List(ctx context.Context, filter inventory.ListFilter) ([]models.InventoryRow, error)
}

type LocationSource interface {
	List(ctx context.Context) ([]models.StorageLocation, error)
}

type ScoreSource interface {
	Calculate(ctx context.Context) ([]customers.Score, error)
}

// Service builds XLSX exports. Callers own the returned file and must Close it.
type Service interface {
	Inventory(ctx context.Context, filter inventory.ListFilter) (*excelize.File, error)
	Segmentation(ctx context.Context) (*excelize.File, error)
}

type service struct {
	inventory InventorySource
	locations LocationSource
	scores    ScoreSource
}

func NewService(inv InventorySource, locations LocationSource, scores ScoreSource) (Service, error) {
	if inv == nil || locations == nil || scores == nil {
		return nil, fmt.Errorf("reports need inventory, locations and scores")
	}
	return &service{inventory: inv, locations: locations, scores: scores}, nil
}

// Inventory exports one row per stock row plus per product and grade totals.
func (s *service) Inventory(ctx context.Context, filter inventory.ListFilter) (*excelize.File, error) {
	rows, err := s.inventory.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	locs, err := s.locations.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(locs))
	for _, l := range locs {
		names[l.ID] = l.Name
	}

	type totalKey struct {
		product string
		grade   enums.Grade
	}
	totals := map[totalKey]int{}
	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		location := names[r.LocationID]
		if location == "" {
			location = r.LocationID.String()
		}
		data = append(data, []any{
			r.ProductName,
			string(r.Grade),
			location,
			r.Quantity,
			formatDate(r.HarvestDate),
			deref(r.Notes),
			r.UpdatedAt.UTC().Format(time.RFC3339),
		})
		totals[totalKey{r.ProductName, r.Grade}] += r.Quantity
	}

	keys := make([]totalKey, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].product != keys[j].product {
			return keys[i].product < keys[j].product
		}
		return keys[i].grade < keys[j].grade
	})
	summary := make([][]any, 0, len(keys))
	for _, k := range keys {
		summary = append(summary, []any{k.product, string(k.grade), totals[k]})
	}

	f, err := newWorkbook(SheetInventory, SheetTotals)
	if err != nil {
		return nil, err
	}
	if err := writeSheet(f, SheetInventory,
		[]string{"Product", "Grade", "Location", "Quantity", "Harvest Date", "Notes", "Updated At"}, data); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := writeSheet(f, SheetTotals, []string{"Product", "Grade", "Quantity"}, summary); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

// Segmentation exports the current preview, highest score first.
func (s *service) Segmentation(ctx context.Context) (*excelize.File, error) {
	scores, err := s.scores.Calculate(ctx)
	if err != nil {
		return nil, err
	}
	ranked := customers.RankTop(scores, len(scores))

	data := make([][]any, 0, len(ranked))
	for _, sc := range ranked {
		data = append(data, []any{
			sc.Name,
			sc.RFM.Frequency,
			sc.RFM.Monetary.InexactFloat64(),
			sc.RFM.RecencyDays,
			math.Round(sc.Score*1000) / 1000,
			string(sc.Segment),
			string(sc.CurrentSegment),
		})
	}

	f, err := newWorkbook(SheetSegmentation)
	if err != nil {
		return nil, err
	}
	if err := writeSheet(f, SheetSegmentation,
		[]string{"Customer", "Orders", "Monetary", "Recency Days", "Score", "Proposed Segment", "Current Segment"}, data); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
