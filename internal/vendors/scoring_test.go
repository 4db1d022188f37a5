package vendors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func testNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestPerformanceScore(t *testing.T) {
	perfect := &Vendor{
		CompletionRate:      1.0,
		Rating:              5.0,
		CancellationRate:    0,
		ResponseTimeMinutes: 0,
	}
	assert.InDelta(t, 80.0, performanceScore(perfect), 1e-9) // 40 + 30 + 10

	poor := &Vendor{
		CompletionRate:      0.1,
		Rating:              1.0,
		CancellationRate:    0.9,
		ResponseTimeMinutes: 300,
	}
	// 4 + 6 - 18, slow response earns nothing; floored at 0 if negative.
	assert.GreaterOrEqual(t, performanceScore(poor), 0.0)
	assert.Less(t, performanceScore(poor), performanceScore(perfect))
}

func TestLocationScoreSteps(t *testing.T) {
	tests := []struct {
		distance float64
		want     float64
	}{
		{3, 100}, {5, 100}, {7, 80}, {12, 60}, {18, 40}, {22, 20}, {30, 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, locationScore(tt.distance), "distance %.0f", tt.distance)
	}
}

func TestAvailabilityScore(t *testing.T) {
	idle := &Vendor{Online: true, CurrentOrders: 0, LastSeen: testNow().Add(-10 * time.Minute)}
	assert.Equal(t, 100.0, availabilityScore(idle, testNow())) // 50 + 30 + 20

	busy := &Vendor{Online: false, CurrentOrders: 6, LastSeen: testNow().Add(-30 * time.Hour)}
	assert.Equal(t, 0.0, availabilityScore(busy, testNow()))

	moderate := &Vendor{Online: true, CurrentOrders: 2, LastSeen: testNow().Add(-8 * time.Hour)}
	assert.Equal(t, 80.0, availabilityScore(moderate, testNow())) // 50 + 20 + 10
}

func TestOpportunityScoreFavorsNewVendors(t *testing.T) {
	brandNew := &Vendor{TotalOrders: 0, RecentOrders: 0}
	veteran := &Vendor{TotalOrders: 200, RecentOrders: 12}

	assert.Equal(t, 90.0, opportunityScore(brandNew, false))
	assert.Equal(t, 0.0, opportunityScore(veteran, false))

	// Prefer-new multiplies but stays capped at 100.
	assert.Equal(t, 100.0, opportunityScore(brandNew, true))
}

func TestPriorityFitScore(t *testing.T) {
	idle := &Vendor{Online: true, CurrentOrders: 0, TotalOrders: 50}
	assert.Equal(t, 100.0, priorityFitScore(idle, PriorityUrgent))
	assert.Equal(t, 80.0, priorityFitScore(idle, PriorityHigh))
	assert.Equal(t, 50.0, priorityFitScore(idle, PriorityLow))

	rookie := &Vendor{Online: false, CurrentOrders: 1, TotalOrders: 3}
	assert.Equal(t, 80.0, priorityFitScore(rookie, PriorityLow))
	assert.Equal(t, 50.0, priorityFitScore(rookie, PriorityUrgent))
}

func TestUrgentWeightsShiftRanking(t *testing.T) {
	// Close newcomer vs a distant high performer who is online and idle.
	newcomer := &Vendor{
		ID: "new", Online: false, LastSeen: testNow(),
		CompletionRate: 0.5, Rating: 3,
		TotalOrders: 1, RecentOrders: 0,
		ResponseTimeMinutes: 90,
	}
	performer := &Vendor{
		ID: "pro", Online: true, LastSeen: testNow(),
		CompletionRate: 1.0, Rating: 5,
		TotalOrders: 300, RecentOrders: 20,
		ResponseTimeMinutes: 15,
	}

	normal := &Request{Priority: PriorityMedium}
	urgent := &Request{Priority: PriorityUrgent}

	newcomerNormal := scoreVendor(newcomer, 3, normal, testNow())
	performerNormal := scoreVendor(performer, 22, normal, testNow())
	newcomerUrgent := scoreVendor(newcomer, 3, urgent, testNow())
	performerUrgent := scoreVendor(performer, 22, urgent, testNow())

	normalGap := newcomerNormal.Total - performerNormal.Total
	urgentGap := newcomerUrgent.Total - performerUrgent.Total
	// Urgency moves weight toward performance and availability, away from
	// opportunity, so the newcomer's edge must shrink.
	assert.Less(t, urgentGap, normalGap)
}

func TestAxisScoresAlwaysNormalized(t *testing.T) {
	now := testNow()
	rapid.Check(t, func(t *rapid.T) {
		v := &Vendor{
			Rating:              rapid.Float64Range(0, 5).Draw(t, "rating"),
			CompletionRate:      rapid.Float64Range(0, 1).Draw(t, "completion"),
			CancellationRate:    rapid.Float64Range(0, 1).Draw(t, "cancellation"),
			ResponseTimeMinutes: rapid.Float64Range(0, 600).Draw(t, "response"),
			CurrentOrders:       rapid.IntRange(0, 20).Draw(t, "current"),
			TotalOrders:         rapid.IntRange(0, 500).Draw(t, "total"),
			RecentOrders:        rapid.IntRange(0, 50).Draw(t, "recent"),
			Online:              rapid.Bool().Draw(t, "online"),
			LastSeen:            now.Add(-time.Duration(rapid.IntRange(0, 72).Draw(t, "hoursAgo")) * time.Hour),
		}
		req := &Request{
			Priority:         rapid.SampledFrom([]string{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}).Draw(t, "priority"),
			PreferNewVendors: rapid.Bool().Draw(t, "preferNew"),
		}
		distance := rapid.Float64Range(0, 100).Draw(t, "distance")

		sv := scoreVendor(v, distance, req, now)
		for name, score := range map[string]float64{
			"performance":  sv.Scores.Performance,
			"location":     sv.Scores.Location,
			"availability": sv.Scores.Availability,
			"opportunity":  sv.Scores.Opportunity,
			"priority_fit": sv.Scores.PriorityFit,
			"total":        sv.Total,
		} {
			if score < 0 || score > 100 {
				t.Fatalf("%s score %v out of [0,100]", name, score)
			}
		}
	})
}
