package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harvestdesk/farmops-backend/internal/inventory"
	"github.com/harvestdesk/farmops-backend/pkg/config"
	"github.com/harvestdesk/farmops-backend/pkg/db"
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
	insertSavepoint        = "order_insert"
	fallbackReasonMismatch = "id_type_mismatch"
)

// Service defines the order fulfillment flow.
type Service interface {
	Create(ctx context.Context, input CreateInput) (string, error)
	Get(ctx context.Context, id string) (*models.Order, error)
	List(ctx context.Context, params ListParams) (pagination.Page[models.Order], error)
	UpdateStatus(ctx context.Context, id string, status string) (*models.Order, error)
	PickAndConfirm(ctx context.Context, id string, input PickInput) (*models.Order, error)
}

type ServiceParams struct {
	Repository Repository
	Inventory  InventoryLedger
	Tx         txRunner
	Outbox     outbox.Emitter
	IDs        *IDGenerator
	// IDMode is one of config.OrderIDModeCaller, OrderIDModeStore or
	// OrderIDModeFallback; empty means fallback.
	IDMode  string
	Metrics *metrics.DomainMetrics
	Logger  *logger.Logger
}

type service struct {
	repo      Repository
	inventory InventoryLedger
	tx        txRunner
	outbox    outbox.Emitter
	ids       *IDGenerator
	idMode    string
	metrics   *metrics.DomainMetrics
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	mode := strings.ToLower(strings.TrimSpace(params.IDMode))
	switch mode {
	case "":
		mode = config.OrderIDModeFallback
	case config.OrderIDModeCaller, config.OrderIDModeStore, config.OrderIDModeFallback:
	default:
		return nil, fmt.Errorf("unknown order id mode %q", params.IDMode)
	}
	ids := params.IDs
	if ids == nil {
		ids = NewIDGenerator("")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:      params.Repository,
		inventory: params.Inventory,
		tx:        params.Tx,
		outbox:    params.Outbox,
		ids:       ids,
		idMode:    mode,
		metrics:   params.Metrics,
		logg:      logg,
		now:       time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, id string) (*models.Order, error) {
	return s.repo.Get(ctx, id)
}

func (s *service) List(ctx context.Context, params ListParams) (pagination.Page[models.Order], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[models.Order]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, ListFilter{
		Status: params.Status,
		Limit:  pagination.LimitWithBuffer(params.Limit),
		Cursor: cursor,
	})
	if err != nil {
		return pagination.Page[models.Order]{}, err
	}
	return pagination.Trim(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	}), nil
}

// Create inserts the order row first and its items after it, in one transaction.
func (s *service) Create(ctx context.Context, input CreateInput) (orderID string, err error) {
	defer func() { s.metrics.OrderOp("create", err) }()

	if err := validateCreate(input); err != nil {
		return "", err
	}

	now := s.now().UTC()
	order := &models.Order{
		CustomerName: strings.TrimSpace(input.CustomerName),
		Channel:      input.Channel,
		Total:        input.Total,
		Status:       enums.OrderStatusPending,
		OrderDate:    s.ids.BusinessDate(),
		Notes:        input.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	source := IDSourceStore
	if s.idMode != config.OrderIDModeStore {
		order.ID, source = s.chooseID(input)
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		inserted, err := s.insert(ctx, repo, order, source)
		if err != nil {
			return err
		}
		source = inserted

		items := make([]models.OrderItem, 0, len(input.Items))
		for i, item := range input.Items {
			items = append(items, models.OrderItem{
				ID:           uuid.New(),
				OrderID:      order.ID,
				LineIndex:    i,
				ProductName:  strings.TrimSpace(item.ProductName),
				Grade:        item.Grade,
				Quantity:     item.Quantity,
				Price:        item.Price,
				OriginPlotID: item.OriginPlotID,
				CreatedAt:    now,
			})
		}
		if err := repo.InsertItems(ctx, items); err != nil {
			return err
		}

		return s.emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderCreatedEvent{
				OrderID:      order.ID,
				CustomerName: order.CustomerName,
				Channel:      order.Channel,
				Total:        order.Total,
				ItemCount:    len(items),
				IDSource:     source,
			},
		})
	})
	if err != nil {
		return "", err
	}

	s.metrics.OrderIDSource(source)
	logCtx := s.logg.WithOrderID(ctx, order.ID)
	logCtx = s.logg.WithFields(logCtx, map[string]any{"id_source": source, "items": len(input.Items)})
	s.logg.Info(logCtx, "order created")
	return order.ID, nil
}

func (s *service) chooseID(input CreateInput) (string, string) {
	if strings.TrimSpace(input.ID) != "" {
		return s.ids.Normalize(input.ID), IDSourceCaller
	}
	return s.ids.New(input.Channel), IDSourceGenerated
}

// insert writes the order row according to the configured id mode and returns
// where the stored key came from. In fallback mode a type mismatch on the
// caller key rolls back to a savepoint and retries with a store key.
func (s *service) insert(ctx context.Context, repo Repository, order *models.Order, source string) (string, error) {
	switch s.idMode {
	case config.OrderIDModeStore:
		if _, err := repo.InsertWithStoreID(ctx, order); err != nil {
			return "", err
		}
		return IDSourceStore, nil
	case config.OrderIDModeCaller:
		return source, s.insertCallerID(ctx, repo, order)
	}

	if err := repo.SavePoint(ctx, insertSavepoint); err != nil {
		return "", err
	}
	err := s.insertCallerID(ctx, repo, order)
	if err == nil {
		return source, nil
	}
	if !db.IsTypeMismatch(err) {
		return "", err
	}

	attempted := order.ID
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"attempted_id":    attempted,
		"fallback_reason": fallbackReasonMismatch,
	})
	s.logg.Warn(logCtx, "store rejected the order id type, retrying with a store-generated key")
	if err := repo.RollbackTo(ctx, insertSavepoint); err != nil {
		return "", err
	}
	order.ID = ""
	if _, err := repo.InsertWithStoreID(ctx, order); err != nil {
		return "", err
	}
	return IDSourceStore, nil
}

func (s *service) insertCallerID(ctx context.Context, repo Repository, order *models.Order) error {
	err := repo.Insert(ctx, order)
	if err != nil && db.IsUniqueViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, fmt.Sprintf("order %s already exists", order.ID)).
			WithDetails(map[string]any{"orderId": order.ID})
	}
	return err
}

// UpdateStatus is the pure status write. Confirmation needs picks and goes
// through PickAndConfirm instead.
func (s *service) UpdateStatus(ctx context.Context, id string, status string) (order *models.Order, err error) {
	defer func() { s.metrics.OrderOp("update_status", err) }()

	to, parseErr := enums.ParseOrderStatus(strings.TrimSpace(status))
	if parseErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, parseErr.Error())
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	from := current.Status
	if from == enums.OrderStatusPending && to == enums.OrderStatusConfirmed {
		return nil, stateConflict(id, from, to, "confirming an order requires picks")
	}
	if !CanTransition(from, to) {
		return nil, stateConflict(id, from, to, fmt.Sprintf("cannot move order from %s to %s", from, to))
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).UpdateStatus(ctx, id, from, to, s.now().UTC()); err != nil {
			return err
		}
		return s.emit(ctx, tx, statusChanged(id, from, to, nil))
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderID(ctx, id)
	logCtx = s.logg.WithFields(logCtx, map[string]any{"from": from.String(), "to": to.String()})
	s.logg.Info(logCtx, "order status updated")
	return s.repo.Get(ctx, id)
}

// PickAndConfirm validates every line against its selection before touching
// any inventory. Only a fully valid pick list is consumed, in the same
// transaction that confirms the order.
func (s *service) PickAndConfirm(ctx context.Context, id string, input PickInput) (order *models.Order, err error) {
	defer func() { s.metrics.OrderOp("pick_and_confirm", err) }()

	if input.NextStatus != nil && *input.NextStatus != enums.OrderStatusConfirmed {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("picking can only confirm an order, got nextStatus %s", *input.NextStatus)).
			WithDetails(map[string]any{"nextStatus": *input.NextStatus})
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != enums.OrderStatusPending {
		return nil, stateConflict(id, current.Status, enums.OrderStatusConfirmed, fmt.Sprintf("order %s is %s, only Pending orders can be picked", id, current.Status))
	}

	picks, err := s.validatePicks(ctx, current, input.Picks)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.inventory.ConsumeTx(ctx, tx, picks, id); err != nil {
			return err
		}
		if err := s.repo.WithTx(tx).UpdateStatus(ctx, id, enums.OrderStatusPending, enums.OrderStatusConfirmed, s.now().UTC()); err != nil {
			return err
		}
		return s.emit(ctx, tx, statusChanged(id, enums.OrderStatusPending, enums.OrderStatusConfirmed, picks))
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderID(ctx, id)
	logCtx = s.logg.WithField(logCtx, "lines", len(picks))
	s.logg.Info(logCtx, "order picked and confirmed")
	return s.repo.Get(ctx, id)
}

// validatePicks maps selections onto order lines and returns the picks in
// line order. Nothing is written.
func (s *service) validatePicks(ctx context.Context, order *models.Order, selections []PickSelection) ([]inventory.Pick, error) {
	lines := order.Items
	byLine := make(map[int]PickSelection, len(selections))
	for i, sel := range selections {
		idx := i
		if sel.OrderLineIndex != nil {
			idx = *sel.OrderLineIndex
		}
		if idx < 0 || idx >= len(lines) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("selection %d does not match any order line", i)).
				WithDetails(map[string]any{"selection": i, "orderLineIndex": idx, "lines": len(lines)})
		}
		if _, dup := byLine[idx]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("order line %d has more than one selection", idx)).
				WithDetails(map[string]any{"orderLineIndex": idx})
		}
		byLine[idx] = sel
	}

	ids := make([]uuid.UUID, 0, len(byLine))
	for _, sel := range byLine {
		ids = append(ids, sel.InventoryID)
	}
	rows, err := s.inventory.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	onHand := make(map[uuid.UUID]int, len(rows))
	for _, row := range rows {
		onHand[row.ID] = row.Quantity
	}

	picks := make([]inventory.Pick, 0, len(lines))
	demand := make(map[uuid.UUID]int, len(rows))
	for i, line := range lines {
		sel, ok := byLine[i]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("order line %d (%s %s) has no selection", i, line.ProductName, line.Grade)).
				WithDetails(map[string]any{"orderLineIndex": i})
		}
		available, ok := onHand[sel.InventoryID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("inventory row %s not found", sel.InventoryID)).
				WithDetails(map[string]any{"orderLineIndex": i, "inventoryId": sel.InventoryID})
		}
		if sel.Quantity != line.Quantity {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("order line %d requests %d, selection supplies %d", i, line.Quantity, sel.Quantity)).
				WithDetails(map[string]any{"orderLineIndex": i, "requested": line.Quantity, "selected": sel.Quantity})
		}
		demand[sel.InventoryID] += sel.Quantity
		if demand[sel.InventoryID] > available {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, fmt.Sprintf("inventory row %s holds %d, order needs %d", sel.InventoryID, available, demand[sel.InventoryID])).
				WithDetails(map[string]any{"orderLineIndex": i, "inventoryId": sel.InventoryID, "available": available, "requested": demand[sel.InventoryID]})
		}
		picks = append(picks, inventory.Pick{InventoryID: sel.InventoryID, Quantity: sel.Quantity})
	}
	return picks, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.outbox == nil {
		return nil
	}
	event.Actor = outbox.ActorFromContext(ctx)
	event.OccurredAt = s.now()
	return s.outbox.Emit(ctx, tx, event)
}

func statusChanged(id string, from, to enums.OrderStatus, picks []inventory.Pick) outbox.DomainEvent {
	var lines []payloads.PickLine
	for _, pick := range picks {
		lines = append(lines, payloads.PickLine{InventoryID: pick.InventoryID, Quantity: pick.Quantity})
	}
	return outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   id,
		Data:          payloads.OrderStatusChangedEvent{OrderID: id, From: from, To: to, Picks: lines},
	}
}

func stateConflict(id string, from, to enums.OrderStatus, message string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, message).
		WithDetails(map[string]any{"orderId": id, "from": from, "to": to})
}

func validateCreate(input CreateInput) error {
	if strings.TrimSpace(input.CustomerName) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customerName is required")
	}
	if input.Channel != nil && !input.Channel.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid channel %q", *input.Channel))
	}
	if input.Status != nil && *input.Status != enums.OrderStatusPending {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("new orders start Pending, got %s", *input.Status))
	}
	if input.Total.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "total must not be negative")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order needs at least one item")
	}
	for i, item := range input.Items {
		if strings.TrimSpace(item.ProductName) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d: productName is required", i))
		}
		if !item.Grade.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d: invalid grade %q", i, item.Grade))
		}
		if item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeInvalidQuantity, fmt.Sprintf("item %d: quantity must be positive", i)).
				WithDetails(map[string]any{"item": i, "quantity": item.Quantity})
		}
		if item.Price.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d: price must not be negative", i))
		}
	}
	return nil
}
