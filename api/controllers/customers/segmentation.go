package customers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/harvestdesk/farmops-backend/api/responses"
	"github.com/harvestdesk/farmops-backend/api/validators"
	internalcustomers "github.com/harvestdesk/farmops-backend/internal/customers"
	"github.com/harvestdesk/farmops-backend/internal/reports"
	"github.com/harvestdesk/farmops-backend/pkg/logger"
)

const maxTopLimit = 100

type segmentUpdateRequest struct {
	ID      string `json:"id" validate:"required,uuid"`
	Segment string `json:"segment" validate:"required"`
}

type applyRequest struct {
	SegmentUpdates []segmentUpdateRequest `json:"segmentUpdates" validate:"required,dive"`
}

type applyResponse struct {
	OK      bool                             `json:"ok"`
	Applied int                              `json:"applied"`
	Failed  []internalcustomers.ApplyFailure `json:"failed"`
}

// Calculate previews segments for every customer without writing.
func Calculate(svc internalcustomers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scores, err := svc.Calculate(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if scores == nil {
			scores = []internalcustomers.Score{}
		}
		responses.WriteSuccess(w, map[string]any{"segmentation": scores})
	}
}

// Apply writes the chosen segments. One invalid segment rejects the whole
// request; per-customer write failures are listed and do not stop the rest.
func Apply(svc internalcustomers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req applyRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updates := make([]internalcustomers.SegmentUpdate, len(req.SegmentUpdates))
		for i, u := range req.SegmentUpdates {
			updates[i] = internalcustomers.SegmentUpdate{ID: uuid.MustParse(u.ID), Segment: u.Segment}
		}

		result, err := svc.Apply(r.Context(), updates)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, applyResponse{
			OK:      len(result.Failed) == 0,
			Applied: result.Applied,
			Failed:  result.Failed,
		})
	}
}

// Top lists the highest scoring customers for marketing follow-up.
func Top(svc internalcustomers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, maxTopLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		top, err := svc.TopCandidates(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, top)
	}
}

func Export(svc reports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := svc.Segmentation(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filename := fmt.Sprintf("segmentation-%s.xlsx", time.Now().UTC().Format("20060102"))
		responses.WriteXLSX(r.Context(), logg, w, f, filename)
	}
}
