package locations

import (
	"net/http"

	"github.com/harvestdesk/farmops-backend/api/responses"
	"github.com/harvestdesk/farmops-backend/api/validators"
	internallocations "github.com/harvestdesk/farmops-backend/internal/locations"
	"github.com/harvestdesk/farmops-backend/pkg/enums"
	pkgerrors "github.com/harvestdesk/farmops-backend/pkg/errors"
	"github.com/harvestdesk/farmops-backend/pkg/logger"
)

type createRequest struct {
	Name string `json:"name" validate:"required,max=120"`
	Type string `json:"type" validate:"required"`
}

func List(svc internallocations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		locations, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, locations)
	}
}

func Create(svc internallocations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		locationType, err := enums.ParseLocationType(req.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error()).WithDetails(map[string]any{"field": "type"}))
			return
		}

		location, err := svc.Create(r.Context(), internallocations.CreateInput{
			Name: validators.SanitizeString(req.Name, 0),
			Type: locationType,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, location)
	}
}
