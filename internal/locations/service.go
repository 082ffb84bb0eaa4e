package locations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harvestdesk/farmops-backend/pkg/db"
	"github.com/harvestdesk/farmops-backend/pkg/db/models"
	"github.com/harvestdesk/farmops-backend/pkg/enums"
	pkgerrors "github.com/harvestdesk/farmops-backend/pkg/errors"
)

// Service manages storage locations, the reference data inventory rows point at.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.StorageLocation, error)
	Get(ctx context.Context, id uuid.UUID) (*models.StorageLocation, error)
	List(ctx context.Context) ([]models.StorageLocation, error)
}

type CreateInput struct {
	Name string
	Type enums.LocationType
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("locations repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.StorageLocation, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid location type %q", input.Type))
	}
	loc := &models.StorageLocation{
		ID:        uuid.New(),
		Name:      name,
		Type:      input.Type,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, loc); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("location %q already exists", name))
		}
		return nil, err
	}
	return loc, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.StorageLocation, error) {
	return s.repo.Get(ctx, id)
}

func (s *service) List(ctx context.Context) ([]models.StorageLocation, error) {
	return s.repo.List(ctx)
}
