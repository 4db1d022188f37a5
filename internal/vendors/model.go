package vendors

import "time"

// Status is the vendor account state. Blocked and inactive vendors never
// receive work.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusBlocked  Status = "blocked"
)

// Priority tiers used across selection and orders.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// DefaultRadiusKm applies when a vendor has not configured a service radius.
const DefaultRadiusKm = 25.0

// Vendor is a field vendor profile with the live metrics selection scores on.
type Vendor struct {
	ID        string   `json:"id"`
	AccountID string   `json:"account_id"`
	Name      string   `json:"name"`
	Email     string   `json:"email,omitempty"`
	Phone     string   `json:"phone,omitempty"`
	Services  []string `json:"services"`
	Status    Status   `json:"status"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	RadiusKm  float64 `json:"radius_km"`

	Rating              float64 `json:"rating"` // 0-5
	CompletionRate      float64 `json:"completion_rate"`
	CancellationRate    float64 `json:"cancellation_rate"`
	ResponseTimeMinutes float64 `json:"response_time_minutes"`

	CurrentOrders       int `json:"current_orders"`
	MaxConcurrentOrders int `json:"max_concurrent_orders"`
	TotalOrders         int `json:"total_orders"`
	RecentOrders        int `json:"recent_orders"` // trailing 30 days

	Online   bool      `json:"online"`
	LastSeen time.Time `json:"last_seen"`
}

// EffectiveRadiusKm returns the configured service radius or the default.
func (v *Vendor) EffectiveRadiusKm() float64 {
	if v.RadiusKm <= 0 {
		return DefaultRadiusKm
	}
	return v.RadiusKm
}

// OffersService reports whether the vendor covers the requested service type.
// Vendors with an empty service list are treated as generalists.
func (v *Vendor) OffersService(serviceType string) bool {
	if serviceType == "" || len(v.Services) == 0 {
		return true
	}
	for _, s := range v.Services {
		if s == serviceType {
			return true
		}
	}
	return false
}

// Request describes one selection run.
type Request struct {
	AccountID        string   `json:"account_id"`
	ServiceType      string   `json:"service_type"`
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
	Priority         string   `json:"priority"`
	EstimatedValue   float64  `json:"estimated_value"`
	MaxVendors       int      `json:"max_vendors,omitempty"` // overrides the priority default
	MinRating        float64  `json:"min_rating,omitempty"`  // from trigger criteria
	// MaxRadiusKm caps dispatch distance on top of each vendor's own service
	// radius. Zero means only the vendor radius applies.
	MaxRadiusKm        float64  `json:"max_radius_km,omitempty"`
	PreferAvailable    bool     `json:"prefer_available,omitempty"`     // weight availability heavier
	StrictServiceMatch bool     `json:"strict_service_match,omitempty"` // generalists are not eligible
	PreferNewVendors   bool     `json:"prefer_new_vendors,omitempty"`
	ExcludeVendorIDs   []string `json:"exclude_vendor_ids,omitempty"` // declined vendors on re-selection
}

func (r *Request) excluded(vendorID string) bool {
	for _, id := range r.ExcludeVendorIDs {
		if id == vendorID {
			return true
		}
	}
	return false
}

// AxisScores are the per-axis components, each normalized to 0-100.
type AxisScores struct {
	Performance  float64 `json:"performance"`
	Location     float64 `json:"location"`
	Availability float64 `json:"availability"`
	Opportunity  float64 `json:"opportunity"`
	PriorityFit  float64 `json:"priority_fit"`
}

// ScoredVendor pairs a surviving vendor with its distance and scores.
type ScoredVendor struct {
	Vendor     Vendor     `json:"vendor"`
	DistanceKm float64    `json:"distance_km"`
	Scores     AxisScores `json:"scores"`
	Total      float64    `json:"total"`
}

// Result is the outcome of one selection run. An empty primary list is a
// normal "no vendors available" outcome, not an error.
type Result struct {
	Primary  []ScoredVendor `json:"primary"`
	Fallback []ScoredVendor `json:"fallback"`

	// TotalAvailable counts the vendors that survived geo-filtering, before
	// the primary/fallback split.
	TotalAvailable int `json:"total_available"`

	Reasoning                string         `json:"reasoning"`
	ReasoningSteps           []string       `json:"reasoning_steps"`
	Confidence               float64        `json:"confidence"`
	EstimatedResponseMinutes int            `json:"estimated_response_minutes"`
	Metadata                 map[string]any `json:"metadata,omitempty"`
}

// PrimaryVendorIDs returns the ranked primary vendor ids.
func (r *Result) PrimaryVendorIDs() []string {
	ids := make([]string, 0, len(r.Primary))
	for _, sv := range r.Primary {
		ids = append(ids, sv.Vendor.ID)
	}
	return ids
}

// FallbackVendorIDs returns the fallback vendor ids in rank order.
func (r *Result) FallbackVendorIDs() []string {
	ids := make([]string, 0, len(r.Fallback))
	for _, sv := range r.Fallback {
		ids = append(ids, sv.Vendor.ID)
	}
	return ids
}
