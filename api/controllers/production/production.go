package production

import (
	"net/http"
	"strings"

	"github.com/harvestdesk/farmops-backend/api/responses"
	"github.com/harvestdesk/farmops-backend/api/validators"
	internalproduction "github.com/harvestdesk/farmops-backend/internal/production"
	"github.com/harvestdesk/farmops-backend/pkg/enums"
	pkgerrors "github.com/harvestdesk/farmops-backend/pkg/errors"
	"github.com/harvestdesk/farmops-backend/pkg/logger"
	"github.com/harvestdesk/farmops-backend/pkg/pagination"
)

const (
	maxFieldLength = 120
	maxNotesLength = 1000
)

type logRequest struct {
	PlotID   string  `json:"plotId" validate:"required"`
	Crop     string  `json:"crop" validate:"required"`
	Activity string  `json:"activity" validate:"required"`
	Quantity *int    `json:"quantity"`
	Grade    *string `json:"grade"`
	LoggedAt *string `json:"loggedAt"`
	Notes    *string `json:"notes"`
}

// Create records one field activity. Harvest entries must carry a quantity.
func Create(svc internalproduction.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req logRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := req.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.Log(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

func List(svc internalproduction.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		since, err := validators.ParseQueryDate(r, "since")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := internalproduction.ListParams{
			PlotID: validators.SanitizeString(r.URL.Query().Get("plotId"), maxFieldLength),
			Crop:   validators.SanitizeString(r.URL.Query().Get("crop"), maxFieldLength),
			Since:  since,
			Params: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("activity")); raw != "" {
			activity, err := enums.ParseProductionActivity(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, validationError("activity", err))
				return
			}
			params.Activity = &activity
		}

		page, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func (req logRequest) toInput() (internalproduction.LogInput, error) {
	activity, err := enums.ParseProductionActivity(req.Activity)
	if err != nil {
		return internalproduction.LogInput{}, validationError("activity", err)
	}
	loggedAt, err := validators.ParseDate("loggedAt", req.LoggedAt)
	if err != nil {
		return internalproduction.LogInput{}, err
	}
	input := internalproduction.LogInput{
		PlotID:   validators.SanitizeString(req.PlotID, maxFieldLength),
		Crop:     validators.SanitizeString(req.Crop, maxFieldLength),
		Activity: activity,
		Quantity: req.Quantity,
		LoggedAt: loggedAt,
		Notes:    validators.SanitizeOptional(req.Notes, maxNotesLength),
	}
	if req.Grade != nil && strings.TrimSpace(*req.Grade) != "" {
		grade, err := enums.ParseGrade(*req.Grade)
		if err != nil {
			return input, validationError("grade", err)
		}
		input.Grade = &grade
	}
	return input, nil
}

func validationError(field string, err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error()).WithDetails(map[string]any{"field": field})
}
