package vendors

import "time"

// Axis weight vector applied when combining axis scores into a total.
type weights struct {
	performance  float64
	location     float64
	availability float64
	opportunity  float64
	priorityFit  float64
}

var defaultWeights = weights{
	performance:  0.3,
	location:     0.25,
	availability: 0.2,
	opportunity:  0.15,
	priorityFit:  0.1,
}

// Urgent work cares about who performs and who can move now; opportunity
// spreading waits for calmer requests.
var urgentWeights = weights{
	performance:  0.35,
	location:     0.2,
	availability: 0.35,
	opportunity:  0.05,
	priorityFit:  0.05,
}

// A rule asking to prefer available vendors shifts weight from performance
// and location onto the availability axis.
var preferAvailableWeights = weights{
	performance:  0.25,
	location:     0.2,
	availability: 0.35,
	opportunity:  0.1,
	priorityFit:  0.1,
}

func weightsFor(req *Request) weights {
	if req.Priority == PriorityUrgent {
		return urgentWeights
	}
	if req.PreferAvailable {
		return preferAvailableWeights
	}
	return defaultWeights
}

// performanceScore: 40 x completion rate + 30 x normalized rating
// - 20 x cancellation rate + up to 10 for fast historical response.
func performanceScore(v *Vendor) float64 {
	score := v.CompletionRate*40 + (v.Rating/5.0)*30 - v.CancellationRate*20
	if bonus := (120 - v.ResponseTimeMinutes) / 120; bonus > 0 {
		score += bonus * 10
	}
	return clampScore(score)
}

// locationScore is a step function of distance.
func locationScore(distanceKm float64) float64 {
	switch {
	case distanceKm <= 5:
		return 100
	case distanceKm <= 10:
		return 80
	case distanceKm <= 15:
		return 60
	case distanceKm <= 20:
		return 40
	case distanceKm <= 25:
		return 20
	default:
		return 10
	}
}

// availabilityScore: 50 for being online, up to 30 for a light pending load,
// up to 20 for recent activity.
func availabilityScore(v *Vendor, now time.Time) float64 {
	score := 0.0
	if v.Online {
		score += 50
	}
	switch {
	case v.CurrentOrders == 0:
		score += 30
	case v.CurrentOrders <= 2:
		score += 20
	case v.CurrentOrders <= 5:
		score += 10
	}
	switch since := now.Sub(v.LastSeen); {
	case since <= time.Hour:
		score += 20
	case since <= 6*time.Hour:
		score += 15
	case since <= 12*time.Hour:
		score += 10
	case since <= 24*time.Hour:
		score += 5
	}
	return clampScore(score)
}

// opportunityScore favors vendors with thin history so new entrants get work.
func opportunityScore(v *Vendor, preferNew bool) float64 {
	score := 0.0
	switch {
	case v.TotalOrders == 0:
		score += 60
	case v.TotalOrders < 5:
		score += 45
	case v.TotalOrders < 10:
		score += 30
	case v.TotalOrders < 25:
		score += 15
	}
	switch {
	case v.RecentOrders == 0:
		score += 30
	case v.RecentOrders <= 2:
		score += 20
	case v.RecentOrders <= 5:
		score += 10
	}
	if preferNew {
		score *= 1.5
	}
	return clampScore(score)
}

// priorityFitScore rewards the vendors best shaped for the request's tier.
func priorityFitScore(v *Vendor, priority string) float64 {
	score := 50.0
	switch priority {
	case PriorityUrgent:
		if v.Online && v.CurrentOrders == 0 {
			score += 50
		}
	case PriorityHigh:
		if v.CurrentOrders <= 2 {
			score += 30
		}
	case PriorityLow:
		if v.TotalOrders < 10 {
			score += 30
		}
	}
	return clampScore(score)
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

func scoreVendor(v *Vendor, distanceKm float64, req *Request, now time.Time) ScoredVendor {
	scores := AxisScores{
		Performance:  performanceScore(v),
		Location:     locationScore(distanceKm),
		Availability: availabilityScore(v, now),
		Opportunity:  opportunityScore(v, req.PreferNewVendors),
		PriorityFit:  priorityFitScore(v, req.Priority),
	}
	w := weightsFor(req)
	total := scores.Performance*w.performance +
		scores.Location*w.location +
		scores.Availability*w.availability +
		scores.Opportunity*w.opportunity +
		scores.PriorityFit*w.priorityFit

	return ScoredVendor{Vendor: *v, DistanceKm: distanceKm, Scores: scores, Total: total}
}
