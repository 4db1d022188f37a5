package vendors

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/fieldserve/dispatch-ai-platform/pkg/logging"
)

// Staleness cutoff: vendors unseen for longer are not dispatchable.
const lastSeenCutoff = 24 * time.Hour

// DefaultShuffleProbability is the chance the top-3 ranking is shuffled to
// give otherwise-lower-ranked vendors occasional preference. A fairness
// mechanism, not noise.
const DefaultShuffleProbability = 0.1

const fallbackCount = 2

// Directory lists candidate vendors for an account.
type Directory interface {
	ListCandidates(ctx context.Context, accountID, serviceType string) ([]Vendor, error)
}

// Selector ranks vendors for a service request.
type Selector struct {
	directory   Directory
	logger      *logging.Logger
	now         func() time.Time
	shuffleProb float64

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Selector.
type Option func(*Selector)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Selector) { s.now = now }
}

// WithShuffleProbability overrides the fairness-shuffle probability.
// Zero disables the shuffle entirely.
func WithShuffleProbability(p float64) Option {
	return func(s *Selector) { s.shuffleProb = p }
}

// WithSeed makes the fairness shuffle deterministic.
func WithSeed(seed int64) Option {
	return func(s *Selector) { s.rng = rand.New(rand.NewSource(seed)) }
}

// NewSelector creates a selection engine over the given directory.
func NewSelector(directory Directory, logger *logging.Logger, opts ...Option) *Selector {
	if directory == nil {
		panic("vendors: directory required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Selector{
		directory:   directory,
		logger:      logger.Component("vendors"),
		now:         time.Now,
		shuffleProb: DefaultShuffleProbability,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select runs the full pipeline: fetch, filter, geo-filter, score, rank,
// shuffle, split. An empty primary list means no vendors were available,
// which is a normal outcome.
func (s *Selector) Select(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, fmt.Errorf("vendors: nil request")
	}

	candidates, err := s.directory.ListCandidates(ctx, req.AccountID, req.ServiceType)
	if err != nil {
		return nil, fmt.Errorf("vendors: list candidates: %w", err)
	}

	now := s.now().UTC()
	result := &Result{Metadata: map[string]any{
		"total_vendors_considered": len(candidates),
		"selection_timestamp":      now.Format(time.RFC3339),
	}}

	filtered := s.filterAvailable(candidates, req, now)
	result.ReasoningSteps = append(result.ReasoningSteps, fmt.Sprintf(
		"Filtered %d of %d vendors on service type and availability",
		len(filtered), len(candidates)))

	scored := s.geoFilterAndScore(filtered, req, now)
	result.ReasoningSteps = append(result.ReasoningSteps, fmt.Sprintf(
		"Location analysis kept %d vendors within their service radius", len(scored)))
	result.Metadata["filtered_vendors"] = len(filtered)
	result.Metadata["scored_vendors"] = len(scored)
	result.TotalAvailable = len(scored)

	if len(scored) == 0 {
		result.Reasoning = "No suitable vendors found"
		s.logger.Info("vendor selection empty",
			"account_id", req.AccountID,
			"service_type", req.ServiceType,
			"considered", len(candidates),
		)
		return result, nil
	}

	sortScored(scored)
	if shuffled := s.maybeShuffleTop(scored); shuffled {
		result.ReasoningSteps = append(result.ReasoningSteps,
			"Applied fairness shuffle to the top-ranked vendors")
		result.Metadata["fairness_shuffle"] = true
	}

	n := primaryCount(req)
	if n > len(scored) {
		n = len(scored)
	}
	result.Primary = scored[:n]
	if rest := scored[n:]; len(rest) > 0 {
		k := fallbackCount
		if k > len(rest) {
			k = len(rest)
		}
		result.Fallback = rest[:k]
	}

	top := result.Primary[0]
	result.Confidence = top.Total / 100
	result.EstimatedResponseMinutes = int(top.Vendor.ResponseTimeMinutes)
	result.Reasoning = fmt.Sprintf(
		"Selected %s (score %.1f, %.1fkm away) with %d fallback vendor(s)",
		top.Vendor.Name, top.Total, top.DistanceKm, len(result.Fallback))
	result.ReasoningSteps = append(result.ReasoningSteps, result.Reasoning)

	s.logger.Info("vendor selection completed",
		"account_id", req.AccountID,
		"service_type", req.ServiceType,
		"primary", len(result.Primary),
		"fallback", len(result.Fallback),
		"top_vendor", top.Vendor.ID,
		"top_score", top.Total,
	)
	return result, nil
}

// filterAvailable applies the hard availability gate.
func (s *Selector) filterAvailable(candidates []Vendor, req *Request, now time.Time) []Vendor {
	var out []Vendor
	for i := range candidates {
		v := &candidates[i]
		if req.excluded(v.ID) {
			continue
		}
		if v.Status != StatusActive {
			continue
		}
		if !v.OffersService(req.ServiceType) {
			continue
		}
		if req.StrictServiceMatch && req.ServiceType != "" && len(v.Services) == 0 {
			continue
		}
		if v.MaxConcurrentOrders > 0 && v.CurrentOrders >= v.MaxConcurrentOrders {
			continue
		}
		if req.Priority == PriorityUrgent && !v.Online {
			continue
		}
		if !v.LastSeen.IsZero() && now.Sub(v.LastSeen) > lastSeenCutoff {
			continue
		}
		if req.MinRating > 0 && v.Rating < req.MinRating {
			continue
		}
		out = append(out, *v)
	}
	return out
}

func (s *Selector) geoFilterAndScore(candidates []Vendor, req *Request, now time.Time) []ScoredVendor {
	var out []ScoredVendor
	for i := range candidates {
		v := &candidates[i]
		distance := HaversineKm(req.Latitude, req.Longitude, v.Latitude, v.Longitude)
		if distance > v.EffectiveRadiusKm() {
			continue
		}
		if req.MaxRadiusKm > 0 && distance > req.MaxRadiusKm {
			continue
		}
		out = append(out, scoreVendor(v, distance, req, now))
	}
	return out
}

// sortScored orders descending by total, then by id for a stable ranking.
func sortScored(scored []ScoredVendor) {
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Total != scored[j].Total {
			return scored[i].Total > scored[j].Total
		}
		return scored[i].Vendor.ID < scored[j].Vendor.ID
	})
}

// maybeShuffleTop shuffles the top three entries with the configured
// probability and reports whether it did.
func (s *Selector) maybeShuffleTop(scored []ScoredVendor) bool {
	if s.shuffleProb <= 0 || len(scored) < 3 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rng.Float64() >= s.shuffleProb {
		return false
	}
	s.rng.Shuffle(3, func(i, j int) {
		scored[i], scored[j] = scored[j], scored[i]
	})
	return true
}

func primaryCount(req *Request) int {
	if req.MaxVendors > 0 {
		return req.MaxVendors
	}
	switch req.Priority {
	case PriorityUrgent:
		return 1
	case PriorityHigh:
		return 2
	default:
		return 3
	}
}
