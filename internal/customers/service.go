package customers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/harvestdesk/farmops-backend/pkg/db/models"
	"github.com/harvestdesk/farmops-backend/pkg/enums"
	pkgerrors "github.com/harvestdesk/farmops-backend/pkg/errors"
	"github.com/harvestdesk/farmops-backend/pkg/logger"
	"github.com/harvestdesk/farmops-backend/pkg/metrics"
	"github.com/harvestdesk/farmops-backend/pkg/outbox"
	"github.com/harvestdesk/farmops-backend/pkg/outbox/payloads"
	"github.com/harvestdesk/farmops-backend/pkg/pagination"
)

const (
	defaultTopLimit = 10
	maxTopLimit     = 100
)

// Service covers customer records and RFM segmentation.
type Service interface {
	Calculate(ctx context.Context) ([]Score, error)
	Apply(ctx context.Context, updates []SegmentUpdate) (*ApplyResult, error)
	TopCandidates(ctx context.Context, limit int) ([]Score, error)
	List(ctx context.Context, params ListParams) (pagination.Page[models.Customer], error)
	Get(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	Create(ctx context.Context, input CreateInput) (*models.Customer, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Customer, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Repository Repository
	Tx         txRunner
	Outbox     outbox.Emitter
	Thresholds Thresholds
	// TopLimit is the default size of the marketing candidate list.
	TopLimit int
	Metrics  *metrics.DomainMetrics
	Logger   *logger.Logger
}

type service struct {
	repo       Repository
	tx         txRunner
	outbox     outbox.Emitter
	thresholds Thresholds
	topLimit   int
	metrics    *metrics.DomainMetrics
	logg       *logger.Logger
	now        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("customers repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	th := params.Thresholds
	if th == (Thresholds{}) {
		th = DefaultThresholds()
	}
	if th.StableScore > th.VIPScore {
		return nil, fmt.Errorf("stable threshold %.2f above vip threshold %.2f", th.StableScore, th.VIPScore)
	}
	topLimit := params.TopLimit
	if topLimit <= 0 || topLimit > maxTopLimit {
		topLimit = defaultTopLimit
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:       params.Repository,
		tx:         params.Tx,
		outbox:     params.Outbox,
		thresholds: th,
		topLimit:   topLimit,
		metrics:    params.Metrics,
		logg:       logg,
		now:        time.Now,
	}, nil
}

// Calculate previews the segment of every customer without writing anything.
func (s *service) Calculate(ctx context.Context) ([]Score, error) {
	customers, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	orders, err := s.repo.OrderSummaries(ctx)
	if err != nil {
		return nil, err
	}
	return Compute(customers, orders, s.now(), s.thresholds), nil
}

func (s *service) TopCandidates(ctx context.Context, limit int) ([]Score, error) {
	if limit <= 0 {
		limit = s.topLimit
	}
	if limit > maxTopLimit {
		limit = maxTopLimit
	}
	scores, err := s.Calculate(ctx)
	if err != nil {
		return nil, err
	}
	return RankTop(scores, limit), nil
}

// Apply validates every segment first and writes nothing if one is invalid.
// After that each customer is written on its own; failures are collected and
// do not stop the rest.
func (s *service) Apply(ctx context.Context, updates []SegmentUpdate) (*ApplyResult, error) {
	parsed := make([]enums.Segment, len(updates))
	for i, u := range updates {
		if u.ID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("segmentUpdates[%d]: id is required", i))
		}
		segment, err := enums.ParseSegment(u.Segment)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("segmentUpdates[%d]: %v", i, err)).
				WithDetails(map[string]any{"index": i, "id": u.ID, "segment": u.Segment})
		}
		parsed[i] = segment
	}

	result := &ApplyResult{Failed: []ApplyFailure{}}
	for i, u := range updates {
		if err := s.setSegment(ctx, u.ID, parsed[i], SourceSegmentation); err != nil {
			result.Failed = append(result.Failed, ApplyFailure{ID: u.ID, Error: err.Error()})
			result.errs = multierr.Append(result.errs, fmt.Errorf("customer %s: %w", u.ID, err))
			continue
		}
		result.Applied++
		s.metrics.SegmentApplied(parsed[i].String())
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{"applied": result.Applied, "failed": len(result.Failed)})
	if result.errs != nil {
		s.logg.Error(logCtx, "segment apply finished with failures", result.errs)
	} else {
		s.logg.Info(logCtx, "segments applied")
	}
	return result, nil
}

// setSegment writes one segment and queues customer.segment_changed in the
// same transaction. An unchanged segment is still written but emits nothing.
func (s *service) setSegment(ctx context.Context, id uuid.UUID, segment enums.Segment, source string) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := repo.Update(ctx, id, map[string]any{"segment": segment, "updated_at": s.now().UTC()}); err != nil {
			return err
		}
		if current.Segment == segment {
			return nil
		}
		return s.emitSegmentChanged(ctx, tx, id, current.Segment, segment, source)
	})
}

func (s *service) emitSegmentChanged(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to enums.Segment, source string) error {
	if s.outbox == nil {
		return nil
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCustomerSegmentChanged,
		AggregateType: enums.AggregateCustomer,
		AggregateID:   id.String(),
		Actor:         outbox.ActorFromContext(ctx),
		OccurredAt:    s.now(),
		Data:          payloads.CustomerSegmentChangedEvent{CustomerID: id, From: from, To: to, Source: source},
	})
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	return s.repo.Get(ctx, id)
}

func (s *service) List(ctx context.Context, params ListParams) (pagination.Page[models.Customer], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[models.Customer]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, ListFilter{
		Segment: params.Segment,
		Search:  params.Search,
		Limit:   pagination.LimitWithBuffer(params.Limit),
		Cursor:  cursor,
	})
	if err != nil {
		return pagination.Page[models.Customer]{}, err
	}
	return pagination.Trim(rows, params.Limit, func(c models.Customer) pagination.Cursor {
		return pagination.Cursor{CreatedAt: c.CreatedAt, ID: c.ID.String()}
	}), nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Customer, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	segment := enums.SegmentNew
	if input.Segment != nil {
		if !input.Segment.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid segment %q", *input.Segment))
		}
		segment = *input.Segment
	}
	if input.TotalSpent.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "totalSpent must not be negative")
	}

	// Orders join customers by name, so a second customer with the same name
	// would share the first one's history.
	if n, err := s.repo.CountByName(ctx, name); err != nil {
		return nil, err
	} else if n > 0 {
		s.logg.Warn(s.logg.WithField(ctx, "customer_name", name), "customer name already in use, order history will be shared")
	}

	now := s.now().UTC()
	customer := &models.Customer{
		ID:            uuid.New(),
		Name:          name,
		Phone:         input.Phone,
		Segment:       segment,
		TotalSpent:    input.TotalSpent,
		LastOrderDate: input.LastOrderDate,
		Notes:         input.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

// Update writes the set fields. A segment set here is a manual override and
// emits customer.segment_changed when it differs from the stored one.
func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Customer, error) {
	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name must not be empty")
		}
		updates["name"] = name
	}
	if input.Phone != nil {
		updates["phone"] = *input.Phone
	}
	if input.Notes != nil {
		updates["notes"] = *input.Notes
	}
	if input.Segment != nil {
		if !input.Segment.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid segment %q", *input.Segment))
		}
		updates["segment"] = *input.Segment
	}
	if len(updates) == 0 {
		return s.repo.Get(ctx, id)
	}
	updates["updated_at"] = s.now().UTC()

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := repo.Update(ctx, id, updates); err != nil {
			return err
		}
		if input.Segment != nil && *input.Segment != current.Segment {
			return s.emitSegmentChanged(ctx, tx, id, current.Segment, *input.Segment, SourceManual)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}
