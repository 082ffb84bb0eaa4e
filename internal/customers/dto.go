package customers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/harvestdesk/farmops-backend/pkg/enums"
	"github.com/harvestdesk/farmops-backend/pkg/pagination"
)

// SegmentUpdate assigns Segment to one customer. Segment is raw input and is
// validated before anything is written.
type SegmentUpdate struct {
	ID      uuid.UUID `json:"id"`
	Segment string    `json:"segment"`
}

type ApplyFailure struct {
	ID    uuid.UUID `json:"id"`
	Error string    `json:"error"`
}

type ApplyResult struct {
	Applied int            `json:"applied"`
	Failed  []ApplyFailure `json:"failed"`
	errs    error
}

// Err combines the per-customer failures, nil when every update was written.
func (r *ApplyResult) Err() error {
	if r == nil {
		return nil
	}
	return r.errs
}

type CreateInput struct {
	Name          string
	Phone         *string
	Segment       *enums.Segment
	TotalSpent    decimal.Decimal
	LastOrderDate *time.Time
	Notes         *string
}

// UpdateInput changes only the fields that are set. Segment is the manual override.
type UpdateInput struct {
	Name    *string
	Phone   *string
	Notes   *string
	Segment *enums.Segment
}

type ListParams struct {
	Segment *enums.Segment
	Search  string
	pagination.Params
}

// Segment change sources carried on customer.segment_changed.
const (
	SourceSegmentation = "segmentation"
	SourceManual       = "manual"
)
