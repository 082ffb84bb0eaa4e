package customers

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/harvestdesk/farmops-backend/pkg/db/models"
	"github.com/harvestdesk/farmops-backend/pkg/enums"
)

const (
	recencyWeight   = 0.4
	frequencyWeight = 0.3
	monetaryWeight  = 0.3

	// recencyDecayDays is the e-folding time of the recency score.
	recencyDecayDays = 30.0
	// unknownRecencyDays marks a customer without any order date.
	unknownRecencyDays = 9999
)

// Thresholds turn a score into a segment. Rules are evaluated in order:
// no history -> New, stale -> At Risk, single order -> New, then the score bands.
type Thresholds struct {
	VIPScore    float64
	StableScore float64
	AtRiskDays  int
}

func DefaultThresholds() Thresholds {
	return Thresholds{VIPScore: 0.7, StableScore: 0.45, AtRiskDays: 90}
}

// RFM holds the derived metrics of one customer. They are never stored.
type RFM struct {
	Frequency   int             `json:"frequency"`
	Monetary    decimal.Decimal `json:"monetary"`
	RecencyDays int             `json:"recencyDays"`
}

type Score struct {
	ID             uuid.UUID     `json:"id"`
	Name           string        `json:"name"`
	RFM            RFM           `json:"rfm"`
	Score          float64       `json:"score"`
	Segment        enums.Segment `json:"segment"`
	CurrentSegment enums.Segment `json:"currentSegment"`
}

// OrderSummary is the slice of an order the scorer reads.
type OrderSummary struct {
	CustomerName string
	Total        decimal.Decimal
	OrderDate    time.Time
}

type history struct {
	count  int
	spent  decimal.Decimal
	latest time.Time
}

// nameKey is the join key between customers and orders. Orders only carry a
// denormalized customer name, so two customers sharing a name share history.
func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Compute scores every customer against the given orders, sorted by name.
func Compute(customers []models.Customer, orders []OrderSummary, now time.Time, th Thresholds) []Score {
	histories := make(map[string]*history, len(customers))
	for _, o := range orders {
		key := nameKey(o.CustomerName)
		h, ok := histories[key]
		if !ok {
			h = &history{}
			histories[key] = h
		}
		h.count++
		h.spent = h.spent.Add(o.Total)
		if o.OrderDate.After(h.latest) {
			h.latest = o.OrderDate
		}
	}

	scores := make([]Score, 0, len(customers))
	matched := make([]bool, 0, len(customers))
	maxCount := 0
	maxMonetary := 0.0
	for _, c := range customers {
		rfm := RFM{Monetary: c.TotalSpent, RecencyDays: unknownRecencyDays}
		h := histories[nameKey(c.Name)]
		switch {
		case h != nil:
			rfm.Frequency = h.count
			rfm.Monetary = h.spent
			rfm.RecencyDays = recencyDays(now, h.latest)
		case c.LastOrderDate != nil:
			rfm.RecencyDays = recencyDays(now, *c.LastOrderDate)
		}
		if rfm.Frequency > maxCount {
			maxCount = rfm.Frequency
		}
		if m := rfm.Monetary.InexactFloat64(); m > maxMonetary {
			maxMonetary = m
		}
		scores = append(scores, Score{ID: c.ID, Name: c.Name, RFM: rfm, CurrentSegment: c.Segment})
		matched = append(matched, h != nil || c.LastOrderDate != nil)
	}

	for i := range scores {
		scores[i].Score = weightedScore(scores[i].RFM, maxCount, maxMonetary)
		scores[i].Segment = classify(scores[i], matched[i], th)
	}
	sort.SliceStable(scores, func(i, j int) bool {
		a, b := strings.ToLower(scores[i].Name), strings.ToLower(scores[j].Name)
		if a != b {
			return a < b
		}
		return scores[i].ID.String() < scores[j].ID.String()
	})
	return scores
}

func weightedScore(rfm RFM, maxCount int, maxMonetary float64) float64 {
	recency := math.Exp(-float64(rfm.RecencyDays) / recencyDecayDays)
	frequency := float64(rfm.Frequency) / math.Max(float64(maxCount), 1)
	monetary := rfm.Monetary.InexactFloat64() / math.Max(maxMonetary, 1)
	return recencyWeight*recency + frequencyWeight*frequency + monetaryWeight*monetary
}

func classify(s Score, hasHistory bool, th Thresholds) enums.Segment {
	switch {
	case !hasHistory:
		return enums.SegmentNew
	case s.RFM.RecencyDays > th.AtRiskDays:
		return enums.SegmentAtRisk
	case s.RFM.Frequency == 1:
		return enums.SegmentNew
	case s.Score >= th.VIPScore:
		return enums.SegmentVIP
	case s.Score >= th.StableScore:
		return enums.SegmentStable
	default:
		return enums.SegmentRegular
	}
}

// recencyDays counts whole days since last; future dates count as today.
func recencyDays(now, last time.Time) int {
	if last.IsZero() {
		return unknownRecencyDays
	}
	days := int(now.Sub(last).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// RankTop orders scores by descending score, ties by name, and keeps limit.
func RankTop(scores []Score, limit int) []Score {
	ranked := make([]Score, len(scores))
	copy(ranked, scores)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return strings.ToLower(ranked[i].Name) < strings.ToLower(ranked[j].Name)
	})
	if limit < len(ranked) {
		ranked = ranked[:limit]
	}
	return ranked
}
