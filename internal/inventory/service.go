package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harvestdesk/farmops-backend/internal/movements"
	"github.com/harvestdesk/farmops-backend/pkg/db/models"
	"github.com/harvestdesk/farmops-backend/pkg/enums"
	pkgerrors "github.com/harvestdesk/farmops-backend/pkg/errors"
	"github.com/harvestdesk/farmops-backend/pkg/logger"
	"github.com/harvestdesk/farmops-backend/pkg/metrics"
	"github.com/harvestdesk/farmops-backend/pkg/outbox"
	"github.com/harvestdesk/farmops-backend/pkg/outbox/payloads"
)

// Service is the inventory ledger.
type Service interface {
	Upsert(ctx context.Context, input UpsertInput) (*models.InventoryRow, error)
	Move(ctx context.Context, input MoveInput) (*MoveResult, error)
	Consume(ctx context.Context, picks []Pick, reference string) (*ConsumeResult, error)
	ConsumeTx(ctx context.Context, tx *gorm.DB, picks []Pick, reference string) (*ConsumeResult, error)
	List(ctx context.Context, filter ListFilter) ([]models.InventoryRow, error)
	Get(ctx context.Context, id uuid.UUID) (*models.InventoryRow, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.InventoryRow, error)
}

type ServiceParams struct {
	Repository Repository
	Movements  movements.Repository
	Tx         txRunner
	Outbox     outbox.Emitter
	Metrics    *metrics.DomainMetrics
	Logger     *logger.Logger
	// ConditionalDebit turns every debit into a compare-and-swap on the
	// quantity that was read; a lost race fails with CONFLICT.
	ConditionalDebit bool
}

type service struct {
	repo        Repository
	journal     movements.Repository
	tx          txRunner
	outbox      outbox.Emitter
	metrics     *metrics.DomainMetrics
	logg        *logger.Logger
	conditional bool
	now         func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.Movements == nil {
		return nil, fmt.Errorf("movements repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:        params.Repository,
		journal:     params.Movements,
		tx:          params.Tx,
		outbox:      params.Outbox,
		metrics:     params.Metrics,
		logg:        logg,
		conditional: params.ConditionalDebit,
		now:         time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.InventoryRow, error) {
	return s.repo.Get(ctx, id)
}

func (s *service) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.InventoryRow, error) {
	return s.repo.FindByIDs(ctx, ids)
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]models.InventoryRow, error) {
	return s.repo.List(ctx, filter)
}

func (s *service) Upsert(ctx context.Context, input UpsertInput) (row *models.InventoryRow, err error) {
	defer func() { s.metrics.InventoryOp("upsert", err) }()

	name := strings.TrimSpace(input.ProductName)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "productName is required")
	}
	if !input.Grade.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid grade %q", input.Grade))
	}
	if input.LocationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "locationId is required")
	}
	if input.Quantity < 0 {
		return nil, invalidQuantity("quantity must not be negative", map[string]any{"quantity": input.Quantity})
	}

	key := Key{ProductName: name, Grade: input.Grade, LocationID: input.LocationID}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.requireLocation(ctx, repo, input.LocationID); err != nil {
			return err
		}
		existing, err := repo.FindByKey(ctx, key)
		if err != nil {
			return err
		}
		before := 0
		if existing != nil {
			before = existing.Quantity
		}

		if input.Quantity == 0 {
			if existing == nil {
				return nil
			}
			if err := repo.Delete(ctx, existing.ID, nil); err != nil {
				return err
			}
			return s.journal.WithTx(tx).Create(ctx, movements.Entry(*existing, enums.MovementUpsert, before, 0, "", s.now()))
		}

		now := s.now().UTC()
		stored, err := repo.Upsert(ctx, &models.InventoryRow{
			ID:          uuid.New(),
			ProductName: name,
			Grade:       input.Grade,
			LocationID:  input.LocationID,
			Quantity:    input.Quantity,
			HarvestDate: input.HarvestDate,
			Notes:       input.Notes,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return err
		}
		row = stored
		return s.journal.WithTx(tx).Create(ctx, movements.Entry(*stored, enums.MovementUpsert, before, stored.Quantity, "", now))
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Move credits the target location before debiting the source, all inside one
// transaction. Repeating a successful move moves the stock again.
func (s *service) Move(ctx context.Context, input MoveInput) (result *MoveResult, err error) {
	defer func() { s.metrics.InventoryOp("move", err) }()

	if input.Amount <= 0 {
		return nil, invalidQuantity("move amount must be positive", map[string]any{"amount": input.Amount})
	}
	if input.SourceID == uuid.Nil || input.TargetLocationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sourceId and targetLocationId are required")
	}

	reference := "move:" + uuid.NewString()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		source, err := repo.Get(ctx, input.SourceID)
		if err != nil {
			return err
		}
		if input.Amount > source.Quantity {
			return insufficient(source, input.Amount)
		}
		if source.LocationID == input.TargetLocationID {
			return pkgerrors.New(pkgerrors.CodeValidation, "target location must differ from the source location").
				WithDetails(map[string]any{"inventoryId": source.ID, "locationId": source.LocationID})
		}
		if err := s.requireLocation(ctx, repo, input.TargetLocationID); err != nil {
			return err
		}

		key := Key{ProductName: source.ProductName, Grade: source.Grade, LocationID: input.TargetLocationID}
		existingTarget, err := repo.FindByKey(ctx, key)
		if err != nil {
			return err
		}
		targetBefore := 0
		if existingTarget != nil {
			targetBefore = existingTarget.Quantity
		}

		now := s.now().UTC()
		target, err := repo.Credit(ctx, &models.InventoryRow{
			ID:          uuid.New(),
			ProductName: source.ProductName,
			Grade:       source.Grade,
			LocationID:  input.TargetLocationID,
			Quantity:    input.Amount,
			HarvestDate: source.HarvestDate,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return err
		}
		remaining, err := s.debit(ctx, repo, *source, input.Amount)
		if err != nil {
			return err
		}

		if err := s.journal.WithTx(tx).Create(ctx,
			movements.Entry(*target, enums.MovementMoveIn, targetBefore, target.Quantity, reference, now),
			movements.Entry(*source, enums.MovementMoveOut, source.Quantity, remaining, reference, now),
		); err != nil {
			return err
		}

		result = &MoveResult{
			SourceID:        source.ID,
			SourceRemaining: remaining,
			TargetID:        target.ID,
			TargetQuantity:  target.Quantity,
			Reference:       reference,
		}
		return s.emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInventoryMoved,
			AggregateType: enums.AggregateInventoryRow,
			AggregateID:   source.ID.String(),
			Data: payloads.InventoryMovedEvent{
				SourceID:         source.ID,
				TargetID:         target.ID,
				ProductName:      source.ProductName,
				Grade:            source.Grade,
				SourceLocationID: source.LocationID,
				TargetLocationID: input.TargetLocationID,
				Amount:           input.Amount,
				SourceRemaining:  remaining,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.UnitsMoved(input.Amount)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"source_id":          input.SourceID.String(),
		"target_location_id": input.TargetLocationID.String(),
		"amount":             input.Amount,
		"source_remaining":   result.SourceRemaining,
	})
	s.logg.Info(logCtx, "inventory moved")
	return result, nil
}

// Consume applies picks one after another without a wrapping transaction. A
// failure stops the batch; picks before it stay applied.
func (s *service) Consume(ctx context.Context, picks []Pick, reference string) (*ConsumeResult, error) {
	result, err := s.consume(ctx, s.repo, s.journal, picks, reference)
	s.metrics.InventoryOp("consume", err)
	// no transaction here, so an aborted batch still moved its prefix
	if result != nil {
		s.metrics.UnitsConsumed(result.Units)
	}
	if result != nil && result.Applied > 0 && s.outbox != nil {
		applied := appliedPicks(picks, result)
		emitErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.emit(ctx, tx, consumedEvent(applied, reference))
		})
		if emitErr != nil {
			s.logg.Error(s.logg.WithField(ctx, "reference", reference), "failed to queue inventory.consumed event", emitErr)
		}
	}
	if err != nil {
		return result, err
	}
	return result, nil
}

// ConsumeTx runs the same per-pick algorithm on the caller's transaction.
func (s *service) ConsumeTx(ctx context.Context, tx *gorm.DB, picks []Pick, reference string) (*ConsumeResult, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	result, err := s.consume(ctx, s.repo.WithTx(tx), s.journal.WithTx(tx), picks, reference)
	s.metrics.InventoryOp("consume", err)
	if err != nil {
		return result, err
	}
	if err := s.emit(ctx, tx, consumedEvent(appliedPicks(picks, result), reference)); err != nil {
		return result, err
	}
	s.metrics.UnitsConsumed(result.Units)
	return result, nil
}

func (s *service) consume(ctx context.Context, repo Repository, journal movements.Repository, picks []Pick, reference string) (*ConsumeResult, error) {
	positive := 0
	for _, pick := range picks {
		if pick.Quantity > 0 {
			positive++
		}
	}
	if positive == 0 {
		return nil, invalidQuantity("no pick with a positive quantity", map[string]any{"picks": len(picks)})
	}

	result := &ConsumeResult{Skipped: []int{}}
	for i, pick := range picks {
		if pick.Quantity <= 0 {
			result.Skipped = append(result.Skipped, i)
			continue
		}
		row, err := repo.Get(ctx, pick.InventoryID)
		if err != nil {
			return result, consumeFailed(err, i, pick, result.Applied)
		}
		if pick.Quantity > row.Quantity {
			return result, consumeFailed(insufficient(row, pick.Quantity), i, pick, result.Applied)
		}
		remaining, err := s.debit(ctx, repo, *row, pick.Quantity)
		if err != nil {
			return result, consumeFailed(err, i, pick, result.Applied)
		}
		result.Applied++
		result.Units += pick.Quantity
		if err := journal.Create(ctx, movements.Entry(*row, enums.MovementConsume, row.Quantity, remaining, reference, s.now())); err != nil {
			return result, consumeFailed(err, i, pick, result.Applied)
		}
	}
	return result, nil
}

// debit removes amount from row and deletes it when nothing is left.
func (s *service) debit(ctx context.Context, repo Repository, row models.InventoryRow, amount int) (int, error) {
	remaining := row.Quantity - amount
	var expected *int
	if s.conditional {
		read := row.Quantity
		expected = &read
	}
	if remaining == 0 {
		return 0, repo.Delete(ctx, row.ID, expected)
	}
	return remaining, repo.SetQuantity(ctx, row.ID, remaining, expected, s.now().UTC())
}

func (s *service) requireLocation(ctx context.Context, repo Repository, id uuid.UUID) error {
	ok, err := repo.LocationExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("storage location %s not found", id)).
			WithDetails(map[string]any{"locationId": id})
	}
	return nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.outbox == nil {
		return nil
	}
	event.Actor = outbox.ActorFromContext(ctx)
	event.OccurredAt = s.now()
	return s.outbox.Emit(ctx, tx, event)
}

func consumedEvent(picks []Pick, reference string) outbox.DomainEvent {
	lines := make([]payloads.PickLine, 0, len(picks))
	for _, pick := range picks {
		lines = append(lines, payloads.PickLine{InventoryID: pick.InventoryID, Quantity: pick.Quantity})
	}
	aggregate := reference
	if aggregate == "" && len(picks) > 0 {
		aggregate = picks[0].InventoryID.String()
	}
	return outbox.DomainEvent{
		EventType:     enums.EventInventoryConsumed,
		AggregateType: enums.AggregateInventoryRow,
		AggregateID:   aggregate,
		Data:          payloads.InventoryConsumedEvent{Reference: reference, Picks: lines},
	}
}

// appliedPicks returns the positive picks that were applied, in input order.
func appliedPicks(picks []Pick, result *ConsumeResult) []Pick {
	if result == nil {
		return nil
	}
	applied := make([]Pick, 0, result.Applied)
	for _, pick := range picks {
		if len(applied) == result.Applied {
			break
		}
		if pick.Quantity > 0 {
			applied = append(applied, pick)
		}
	}
	return applied
}

func invalidQuantity(message string, details any) error {
	return pkgerrors.New(pkgerrors.CodeInvalidQuantity, message).WithDetails(details)
}

func insufficient(row *models.InventoryRow, requested int) error {
	return invalidQuantity(
		fmt.Sprintf("inventory row %s holds %d, %d requested", row.ID, row.Quantity, requested),
		map[string]any{"inventoryId": row.ID, "available": row.Quantity, "requested": requested},
	)
}

// consumeFailed keeps the code of cause and reports how far the batch got.
func consumeFailed(cause error, index int, pick Pick, applied int) error {
	code := pkgerrors.CodeDependency
	var reason any
	if typed := pkgerrors.As(cause); typed != nil {
		code = typed.Code()
		reason = typed.Details()
	}
	return pkgerrors.Wrap(code, cause, fmt.Sprintf("consume stopped at pick %d after %d applied: %v", index, applied, cause)).
		WithDetails(ConsumeFailure{
			Applied:     applied,
			FailedIndex: index,
			InventoryID: pick.InventoryID,
			Reason:      reason,
		})
}
