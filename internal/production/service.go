package production

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harvestdesk/farmops-backend/pkg/db/models"
	"github.com/harvestdesk/farmops-backend/pkg/enums"
	pkgerrors "github.com/harvestdesk/farmops-backend/pkg/errors"
	"github.com/harvestdesk/farmops-backend/pkg/pagination"
)

// Service records plot and crop activities. Entries are append-only.
type Service interface {
	Log(ctx context.Context, input LogInput) (*models.ProductionLog, error)
	List(ctx context.Context, params ListParams) (pagination.Page[models.ProductionLog], error)
}

type LogInput struct {
	PlotID   string
	Crop     string
	Activity enums.ProductionActivity
	Quantity *int
	Grade    *enums.Grade
	// LoggedAt defaults to now.
	LoggedAt *time.Time
	Notes    *string
}

type ListParams struct {
	PlotID   string
	Crop     string
	Activity *enums.ProductionActivity
	Since    *time.Time
	pagination.Params
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("production repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) Log(ctx context.Context, input LogInput) (*models.ProductionLog, error) {
	plot := strings.TrimSpace(input.PlotID)
	crop := strings.TrimSpace(input.Crop)
	if plot == "" || crop == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plotId and crop are required")
	}
	if !input.Activity.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid activity %q", input.Activity))
	}
	if input.Quantity != nil && *input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must not be negative").
			WithDetails(map[string]any{"quantity": *input.Quantity})
	}
	if input.Grade != nil && !input.Grade.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid grade %q", *input.Grade))
	}
	if input.Activity == enums.ActivityHarvest && input.Quantity == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "harvest entries need a quantity")
	}

	now := s.now().UTC()
	loggedAt := now
	if input.LoggedAt != nil {
		loggedAt = input.LoggedAt.UTC()
	}
	entry := &models.ProductionLog{
		ID:        uuid.New(),
		PlotID:    plot,
		Crop:      crop,
		Activity:  input.Activity,
		Quantity:  input.Quantity,
		Grade:     input.Grade,
		LoggedAt:  loggedAt,
		Notes:     input.Notes,
		CreatedAt: now,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) List(ctx context.Context, params ListParams) (pagination.Page[models.ProductionLog], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[models.ProductionLog]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, ListFilter{
		PlotID:   strings.TrimSpace(params.PlotID),
		Crop:     strings.TrimSpace(params.Crop),
		Activity: params.Activity,
		Since:    params.Since,
		Limit:    pagination.LimitWithBuffer(params.Limit),
		Cursor:   cursor,
	})
	if err != nil {
		return pagination.Page[models.ProductionLog]{}, err
	}
	return pagination.Trim(rows, params.Limit, func(e models.ProductionLog) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.LoggedAt, ID: e.ID.String()}
	}), nil
}
