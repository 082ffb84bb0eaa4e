package orders

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/harvestdesk/farmops-backend/api/responses"
	"github.com/harvestdesk/farmops-backend/api/validators"
	internalorders "github.com/harvestdesk/farmops-backend/internal/orders"
	"github.com/harvestdesk/farmops-backend/pkg/enums"
	pkgerrors "github.com/harvestdesk/farmops-backend/pkg/errors"
	"github.com/harvestdesk/farmops-backend/pkg/logger"
	"github.com/harvestdesk/farmops-backend/pkg/pagination"
)

const (
	maxNameLength  = 120
	maxNotesLength = 1000
)

type itemRequest struct {
	ProductName  string          `json:"productName" validate:"required"`
	Grade        string          `json:"grade" validate:"required"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	OriginPlotID *string         `json:"originPlotId"`
}

type createRequest struct {
	ID           *string         `json:"id"`
	CustomerName string          `json:"customerName" validate:"required"`
	Channel      *string         `json:"channel"`
	Items        []itemRequest   `json:"items" validate:"required,min=1,dive"`
	Total        decimal.Decimal `json:"total"`
	Status       *string         `json:"status"`
	Notes        *string         `json:"notes"`
}

type createResponse struct {
	OK      bool   `json:"ok"`
	OrderID string `json:"orderId"`
}

type pickSelectionRequest struct {
	OrderLineIndex *int   `json:"orderLineIndex"`
	InventoryID    string `json:"inventoryId" validate:"required,uuid"`
	Quantity       int    `json:"quantity"`
}

type pickRequest struct {
	Picks      []pickSelectionRequest `json:"picks" validate:"required,min=1,dive"`
	NextStatus *string                `json:"nextStatus"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

// Create stores a Pending order with its line items and answers with the id
// that was actually persisted.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := req.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, createResponse{OK: true, OrderID: orderID})
	}
}

// Pick debits the selected rows and confirms the order in one transaction.
func Pick(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req pickRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internalorders.PickInput{Picks: make([]internalorders.PickSelection, len(req.Picks))}
		for i, p := range req.Picks {
			input.Picks[i] = internalorders.PickSelection{
				OrderLineIndex: p.OrderLineIndex,
				InventoryID:    uuid.MustParse(p.InventoryID),
				Quantity:       p.Quantity,
			}
		}
		if req.NextStatus != nil {
			status, err := parseStatus("nextStatus", *req.NextStatus)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.NextStatus = &status
		}

		order, err := svc.PickAndConfirm(r.Context(), orderID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// UpdateStatus moves an order along its lifecycle. Confirming goes through
// Pick so that stock is debited.
func UpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req statusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.UpdateStatus(r.Context(), orderID, req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func Get(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// List pages orders newest first, optionally by status.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := internalorders.ListParams{
			Params: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := parseStatus("status", raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			params.Status = &status
		}

		page, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func (req createRequest) toInput() (internalorders.CreateInput, error) {
	input := internalorders.CreateInput{
		CustomerName: validators.SanitizeString(req.CustomerName, maxNameLength),
		Items:        make([]internalorders.ItemInput, len(req.Items)),
		Total:        req.Total,
		Notes:        validators.SanitizeOptional(req.Notes, maxNotesLength),
	}
	if req.ID != nil {
		input.ID = strings.TrimSpace(*req.ID)
	}
	if req.Channel != nil {
		channel, err := enums.ParseChannel(*req.Channel)
		if err != nil {
			return input, fieldError("channel", err)
		}
		input.Channel = &channel
	}
	if req.Status != nil {
		status, err := parseStatus("status", *req.Status)
		if err != nil {
			return input, err
		}
		input.Status = &status
	}
	for i, item := range req.Items {
		grade, err := enums.ParseGrade(item.Grade)
		if err != nil {
			return input, fieldError(fmt.Sprintf("items[%d].grade", i), err)
		}
		input.Items[i] = internalorders.ItemInput{
			ProductName:  validators.SanitizeString(item.ProductName, maxNameLength),
			Grade:        grade,
			Quantity:     item.Quantity,
			Price:        item.Price,
			OriginPlotID: validators.SanitizeOptional(item.OriginPlotID, maxNameLength),
		}
	}
	return input, nil
}

func orderIDParam(r *http.Request) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	return id, nil
}

func parseStatus(field, raw string) (enums.OrderStatus, error) {
	status, err := enums.ParseOrderStatus(raw)
	if err != nil {
		return "", fieldError(field, err)
	}
	return status, nil
}

func fieldError(field string, err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("%s: %v", field, err)).WithDetails(map[string]any{"field": field})
}
