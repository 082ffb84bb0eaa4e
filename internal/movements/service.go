package movements

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harvestdesk/farmops-backend/pkg/db/models"
	"github.com/harvestdesk/farmops-backend/pkg/enums"
	pkgerrors "github.com/harvestdesk/farmops-backend/pkg/errors"
	"github.com/harvestdesk/farmops-backend/pkg/pagination"
)

// Service exposes the movement journal to readers and retention jobs. The
// ledger writes entries through the Repository inside its own transactions.
type Service interface {
	List(ctx context.Context, params ListParams) (pagination.Page[models.InventoryMovement], error)
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// ListParams is the public listing input.
type ListParams struct {
	InventoryRowID *uuid.UUID
	LocationID     *uuid.UUID
	Reference      string
	pagination.Params
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires a journal service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("movements repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (pagination.Page[models.InventoryMovement], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[models.InventoryMovement]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, ListFilter{
		InventoryRowID: params.InventoryRowID,
		LocationID:     params.LocationID,
		Reference:      params.Reference,
		Limit:          pagination.LimitWithBuffer(params.Limit),
		Cursor:         cursor,
	})
	if err != nil {
		return pagination.Page[models.InventoryMovement]{}, err
	}
	return pagination.Trim(rows, params.Limit, func(m models.InventoryMovement) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID.String()}
	}), nil
}

// Prune drops journal entries older than the retention window.
func (s *service) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "retention window must be positive")
	}
	return s.repo.DeleteBefore(ctx, s.now().UTC().Add(-olderThan))
}

// Entry builds a journal entry for a quantity change on row. before and after
// are the row quantities around the change; after is 0 when the row was deleted.
func Entry(row models.InventoryRow, kind enums.MovementKind, before, after int, reference string, at time.Time) *models.InventoryMovement {
	entry := &models.InventoryMovement{
		ID:             uuid.New(),
		InventoryRowID: row.ID,
		ProductName:    row.ProductName,
		Grade:          row.Grade,
		LocationID:     row.LocationID,
		Kind:           kind,
		Delta:          after - before,
		QuantityBefore: before,
		QuantityAfter:  after,
		CreatedAt:      at.UTC(),
	}
	if reference != "" {
		ref := reference
		entry.Reference = &ref
	}
	return entry
}
