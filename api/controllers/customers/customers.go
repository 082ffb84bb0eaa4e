package customers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/harvestdesk/farmops-backend/api/responses"
	"github.com/harvestdesk/farmops-backend/api/validators"
	internalcustomers "github.com/harvestdesk/farmops-backend/internal/customers"
	"github.com/harvestdesk/farmops-backend/pkg/enums"
	pkgerrors "github.com/harvestdesk/farmops-backend/pkg/errors"
	"github.com/harvestdesk/farmops-backend/pkg/logger"
	"github.com/harvestdesk/farmops-backend/pkg/pagination"
)

const (
	maxNameLength  = 120
	maxPhoneLength = 32
	maxNotesLength = 1000
)

type createRequest struct {
	Name          string          `json:"name" validate:"required"`
	Phone         *string         `json:"phone"`
	Segment       *string         `json:"segment"`
	TotalSpent    decimal.Decimal `json:"totalSpent"`
	LastOrderDate *string         `json:"lastOrderDate"`
	Notes         *string         `json:"notes"`
}

type updateRequest struct {
	Name    *string `json:"name"`
	Phone   *string `json:"phone"`
	Notes   *string `json:"notes"`
	Segment *string `json:"segment"`
}

func List(svc internalcustomers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := internalcustomers.ListParams{
			Search: validators.SanitizeString(r.URL.Query().Get("search"), maxNameLength),
			Params: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		}
		segment, err := parseSegment(strPtr(r.URL.Query().Get("segment")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.Segment = segment

		page, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func Get(svc internalcustomers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		customer, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, customer)
	}
}

func Create(svc internalcustomers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		segment, err := parseSegment(req.Segment)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lastOrder, err := validators.ParseDate("lastOrderDate", req.LastOrderDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		customer, err := svc.Create(r.Context(), internalcustomers.CreateInput{
			Name:          validators.SanitizeString(req.Name, maxNameLength),
			Phone:         validators.SanitizeOptional(req.Phone, maxPhoneLength),
			Segment:       segment,
			TotalSpent:    req.TotalSpent,
			LastOrderDate: lastOrder,
			Notes:         validators.SanitizeOptional(req.Notes, maxNotesLength),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, customer)
	}
}

// Update changes the provided fields. A segment here is a manual override.
func Update(svc internalcustomers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req updateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		segment, err := parseSegment(req.Segment)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		customer, err := svc.Update(r.Context(), id, internalcustomers.UpdateInput{
			Name:    req.Name,
			Phone:   req.Phone,
			Notes:   req.Notes,
			Segment: segment,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, customer)
	}
}

func parseSegment(raw *string) (*enums.Segment, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	segment, err := enums.ParseSegment(*raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error()).WithDetails(map[string]any{"field": "segment"})
	}
	return &segment, nil
}

func strPtr(v string) *string {
	return &v
}
