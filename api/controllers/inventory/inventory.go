package inventory

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harvestdesk/farmops-backend/api/responses"
	"github.com/harvestdesk/farmops-backend/api/validators"
	internalinventory "github.com/harvestdesk/farmops-backend/internal/inventory"
	"github.com/harvestdesk/farmops-backend/internal/movements"
	"github.com/harvestdesk/farmops-backend/internal/reports"
	"github.com/harvestdesk/farmops-backend/pkg/enums"
	pkgerrors "github.com/harvestdesk/farmops-backend/pkg/errors"
	"github.com/harvestdesk/farmops-backend/pkg/logger"
	"github.com/harvestdesk/farmops-backend/pkg/pagination"
)

const (
	maxNameLength  = 120
	maxNotesLength = 1000
	maxReference   = 120
)

type moveRequest struct {
	SourceID         string `json:"sourceId" validate:"required,uuid"`
	TargetLocationID string `json:"targetLocationId" validate:"required,uuid"`
	Amount           int    `json:"amount"`
}

type moveResponse struct {
	OK bool `json:"ok"`
	internalinventory.MoveResult
}

type pickRequest struct {
	InventoryID string `json:"inventoryId" validate:"required,uuid"`
	Quantity    int    `json:"quantity"`
}

type consumeRequest struct {
	Picks     []pickRequest `json:"picks" validate:"required,dive"`
	Reference *string       `json:"reference"`
}

type consumeResponse struct {
	OK      bool  `json:"ok"`
	Applied int   `json:"applied"`
	Units   int   `json:"units"`
	Skipped []int `json:"skipped"`
}

type upsertRequest struct {
	ProductName string  `json:"productName" validate:"required"`
	Grade       string  `json:"grade" validate:"required"`
	LocationID  string  `json:"locationId" validate:"required,uuid"`
	Quantity    int     `json:"quantity"`
	HarvestDate *string `json:"harvestDate"`
	Notes       *string `json:"notes"`
}

// Move shifts stock from one row to the matching row at another location.
// Replaying the same request moves the amount again.
func Move(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req moveRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Move(r.Context(), internalinventory.MoveInput{
			SourceID:         uuid.MustParse(req.SourceID),
			TargetLocationID: uuid.MustParse(req.TargetLocationID),
			Amount:           req.Amount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, moveResponse{OK: true, MoveResult: *result})
	}
}

// Consume debits picks in order. A failing pick stops the batch; the error
// details report how many picks were already applied.
func Consume(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req consumeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		picks := make([]internalinventory.Pick, len(req.Picks))
		for i, p := range req.Picks {
			picks[i] = internalinventory.Pick{InventoryID: uuid.MustParse(p.InventoryID), Quantity: p.Quantity}
		}
		reference := ""
		if req.Reference != nil {
			reference = validators.SanitizeString(*req.Reference, maxReference)
		}

		result, err := svc.Consume(r.Context(), picks, reference)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		skipped := result.Skipped
		if skipped == nil {
			skipped = []int{}
		}
		responses.WriteSuccess(w, consumeResponse{OK: true, Applied: result.Applied, Units: result.Units, Skipped: skipped})
	}
}

// Upsert sets the on-hand quantity of a product/grade/location. Zero removes
// the row and answers with null data.
func Upsert(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req upsertRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		grade, err := enums.ParseGrade(req.Grade)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error()))
			return
		}
		harvestDate, err := validators.ParseDate("harvestDate", req.HarvestDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Upsert(r.Context(), internalinventory.UpsertInput{
			ProductName: validators.SanitizeString(req.ProductName, maxNameLength),
			Grade:       grade,
			LocationID:  uuid.MustParse(req.LocationID),
			Quantity:    req.Quantity,
			HarvestDate: harvestDate,
			Notes:       validators.SanitizeOptional(req.Notes, maxNotesLength),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if row == nil {
			responses.WriteSuccess(w, nil)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, row)
	}
}

func List(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

func Get(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		row, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

// Movements pages the stock journal, newest first.
func Movements(svc movements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rowID, err := validators.ParseQueryUUID(r, "inventoryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		locationID, err := validators.ParseQueryUUID(r, "locationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), movements.ListParams{
			InventoryRowID: rowID,
			LocationID:     locationID,
			Reference:      strings.TrimSpace(r.URL.Query().Get("reference")),
			Params: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// Export downloads the filtered stock list as an XLSX workbook.
func Export(svc reports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		f, err := svc.Inventory(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filename := fmt.Sprintf("inventory-%s.xlsx", time.Now().UTC().Format("20060102"))
		responses.WriteXLSX(r.Context(), logg, w, f, filename)
	}
}

func parseFilter(r *http.Request) (internalinventory.ListFilter, error) {
	var filter internalinventory.ListFilter
	locationID, err := validators.ParseQueryUUID(r, "locationId")
	if err != nil {
		return filter, err
	}
	filter.LocationID = locationID
	filter.ProductName = validators.SanitizeString(r.URL.Query().Get("productName"), maxNameLength)
	if raw := strings.TrimSpace(r.URL.Query().Get("grade")); raw != "" {
		grade, err := enums.ParseGrade(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error()).WithDetails(map[string]any{"field": "grade"})
		}
		filter.Grade = &grade
	}
	return filter, nil
}
