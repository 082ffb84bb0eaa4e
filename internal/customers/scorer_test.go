package customers

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestdesk/farmops-backend/pkg/db/models"
	"github.com/harvestdesk/farmops-backend/pkg/enums"
)

var scoreNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func customer(name string) models.Customer {
	return models.Customer{ID: uuid.New(), Name: name, Segment: enums.SegmentNew}
}

func ordersFor(name string, n int, each int64, last time.Time) []OrderSummary {
	out := make([]OrderSummary, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, OrderSummary{
			CustomerName: name,
			Total:        decimal.NewFromInt(each),
			OrderDate:    last.AddDate(0, 0, -i),
		})
	}
	return out
}

func byName(scores []Score) map[string]Score {
	out := make(map[string]Score, len(scores))
	for _, s := range scores {
		out[s.Name] = s
	}
	return out
}

func TestComputeStaleVersusActiveCustomer(t *testing.T) {
	a := customer("A")
	b := customer("B")
	orders := ordersFor("B", 10, 10000, scoreNow)

	scores := byName(Compute([]models.Customer{a, b}, orders, scoreNow, DefaultThresholds()))

	assert.Equal(t, 9999, scores["A"].RFM.RecencyDays)
	assert.InDelta(t, 0, scores["A"].Score, 1e-9)
	assert.Equal(t, enums.SegmentNew, scores["A"].Segment)

	assert.Equal(t, 10, scores["B"].RFM.Frequency)
	assert.True(t, scores["B"].RFM.Monetary.Equal(decimal.NewFromInt(100000)))
	assert.Equal(t, 0, scores["B"].RFM.RecencyDays)
	assert.InDelta(t, 1.0, scores["B"].Score, 1e-9)
	assert.Equal(t, enums.SegmentVIP, scores["B"].Segment)
	assert.Greater(t, scores["B"].Score, scores["A"].Score)
}

func TestComputeJoinsOrdersByTrimmedCaseInsensitiveName(t *testing.T) {
	c := customer("Lin Farm Shop")
	orders := append(
		ordersFor("  lin farm shop ", 1, 100, scoreNow.AddDate(0, 0, -3)),
		ordersFor("LIN FARM SHOP", 1, 50, scoreNow.AddDate(0, 0, -10))...,
	)

	scores := Compute([]models.Customer{c}, orders, scoreNow, DefaultThresholds())
	require.Len(t, scores, 1)
	assert.Equal(t, 2, scores[0].RFM.Frequency)
	assert.True(t, scores[0].RFM.Monetary.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, 3, scores[0].RFM.RecencyDays)
}

func TestComputeFallsBackToStoredHistory(t *testing.T) {
	last := scoreNow.AddDate(0, 0, -5)
	c := customer("Chen")
	c.LastOrderDate = &last
	c.TotalSpent = decimal.NewFromInt(800)

	scores := Compute([]models.Customer{c}, nil, scoreNow, DefaultThresholds())
	require.Len(t, scores, 1)
	assert.Equal(t, 0, scores[0].RFM.Frequency)
	assert.Equal(t, 5, scores[0].RFM.RecencyDays)
	assert.True(t, scores[0].RFM.Monetary.Equal(decimal.NewFromInt(800)))
}

func TestScoreIsMonotonic(t *testing.T) {
	base := RFM{Frequency: 3, Monetary: decimal.NewFromInt(300), RecencyDays: 20}
	baseScore := weightedScore(base, 10, 1000)

	moreFrequent := base
	moreFrequent.Frequency = 4
	assert.Greater(t, weightedScore(moreFrequent, 10, 1000), baseScore)

	moreSpent := base
	moreSpent.Monetary = decimal.NewFromInt(301)
	assert.Greater(t, weightedScore(moreSpent, 10, 1000), baseScore)

	moreRecent := base
	moreRecent.RecencyDays = 19
	assert.Greater(t, weightedScore(moreRecent, 10, 1000), baseScore)
}

func TestClassifyRulesInOrder(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		name       string
		score      Score
		hasHistory bool
		want       enums.Segment
	}{
		{"no history", Score{Score: 0.9}, false, enums.SegmentNew},
		{"stale beats high score", Score{Score: 0.9, RFM: RFM{Frequency: 5, RecencyDays: 91}}, true, enums.SegmentAtRisk},
		{"single order", Score{Score: 0.9, RFM: RFM{Frequency: 1, RecencyDays: 2}}, true, enums.SegmentNew},
		{"vip", Score{Score: 0.7, RFM: RFM{Frequency: 4, RecencyDays: 2}}, true, enums.SegmentVIP},
		{"stable", Score{Score: 0.45, RFM: RFM{Frequency: 4, RecencyDays: 2}}, true, enums.SegmentStable},
		{"regular", Score{Score: 0.44, RFM: RFM{Frequency: 4, RecencyDays: 2}}, true, enums.SegmentRegular},
		{"stored date only", Score{Score: 0.2, RFM: RFM{RecencyDays: 30}}, true, enums.SegmentRegular},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.score, tt.hasHistory, th))
		})
	}
}

func TestComputeSortsByName(t *testing.T) {
	scores := Compute([]models.Customer{customer("wu"), customer("Chen"), customer("lin")}, nil, scoreNow, DefaultThresholds())
	require.Len(t, scores, 3)
	assert.Equal(t, []string{"Chen", "lin", "wu"}, []string{scores[0].Name, scores[1].Name, scores[2].Name})
}

func TestRankTop(t *testing.T) {
	scores := []Score{
		{Name: "b", Score: 0.5},
		{Name: "a", Score: 0.5},
		{Name: "c", Score: 0.9},
		{Name: "d", Score: 0.1},
	}
	top := RankTop(scores, 3)
	require.Len(t, top, 3)
	assert.Equal(t, "c", top[0].Name)
	assert.Equal(t, "a", top[1].Name)
	assert.Equal(t, "b", top[2].Name)
	assert.Equal(t, "b", scores[0].Name, "input left untouched")
}
