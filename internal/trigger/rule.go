package trigger

import (
	"errors"
	"strings"
	"time"
)

// RuleType is the semantic category of a trigger rule. It drives the
// contextual-alignment component of the confidence score.
type RuleType string

const (
	RuleLocationVisit  RuleType = "location_visit"
	RuleServiceRequest RuleType = "service_request"
	RuleUrgentDispatch RuleType = "urgent_dispatch"
	RuleQuoteRequest   RuleType = "quote_request"
	RuleGeneric        RuleType = "generic"
)

// Condition names a piece of extracted business data a rule can require.
type Condition string

const (
	CondName        Condition = "name"
	CondLocation    Condition = "location"
	CondContact     Condition = "contact"
	CondServiceType Condition = "service_type"
	CondTimeline    Condition = "timeline"
	CondUrgency     Condition = "urgency"
)

// DefaultThreshold is the firing threshold used when a rule does not set one.
const DefaultThreshold = 0.7

// VendorCriteria carries the rule's preferences for the vendor selection run
// that follows an activation.
type VendorCriteria struct {
	RadiusKm        float64 `json:"radius_km"`
	MinRating       float64 `json:"min_rating"`
	MaxVendors      int     `json:"max_vendors"`
	PreferAvailable bool    `json:"prefer_available"`
	WorkTypeMatch   bool    `json:"work_type_match"`
}

// ActionFlags declare what should happen when the rule fires.
type ActionFlags struct {
	SendEmail     bool   `json:"send_email"`
	NotifyEmail   string `json:"notify_email,omitempty"` // falls back to the account's address
	NotifyVendors bool   `json:"notify_vendors"`
	CreateOrder   bool   `json:"create_order"`
	Priority      int    `json:"priority"` // 1 (lowest) to 5 (highest)
}

// Rule is a user-configured trigger pattern. Rules are external input: the
// evaluator never creates or mutates them.
type Rule struct {
	ID                 string         `json:"id"`
	AccountID          string         `json:"account_id"`
	Name               string         `json:"name"`
	Type               RuleType       `json:"type"`
	Keywords           []string       `json:"keywords"`
	AlternativePhrases []string       `json:"alternative_phrases"`
	NegativeKeywords   []string       `json:"negative_keywords"`
	RequiredConditions []Condition    `json:"required_conditions"`
	Threshold          float64        `json:"threshold"`
	Criteria           VendorCriteria `json:"criteria"`
	Actions            ActionFlags    `json:"actions"`
	Active             bool           `json:"active"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// EffectiveThreshold returns the firing threshold, defaulting when unset.
func (r *Rule) EffectiveThreshold() float64 {
	if r.Threshold <= 0 {
		return DefaultThreshold
	}
	return r.Threshold
}

// Validate checks the fields a rule must have before it can be evaluated.
func (r *Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("trigger: rule name is required")
	}
	if len(r.Keywords) == 0 {
		return errors.New("trigger: rule needs at least one keyword")
	}
	if r.Threshold < 0 || r.Threshold > 1 {
		return errors.New("trigger: threshold must be within [0,1]")
	}
	if r.Actions.Priority < 0 || r.Actions.Priority > 5 {
		return errors.New("trigger: priority must be within 1-5")
	}
	return nil
}

// PriorityLabel maps the numeric action priority onto the dispatch priority
// tiers used by vendor selection and orders.
func (r *Rule) PriorityLabel() string {
	switch {
	case r.Actions.Priority >= 5:
		return "urgent"
	case r.Actions.Priority == 4:
		return "high"
	case r.Actions.Priority <= 1 && r.Actions.Priority >= 0:
		return "low"
	default:
		return "medium"
	}
}

// Activation is the record of one rule firing for one conversation.
// Produced once, never mutated.
type Activation struct {
	RuleID         string    `json:"rule_id"`
	RuleName       string    `json:"rule_name"`
	AccountID      string    `json:"account_id"`
	ConversationID string    `json:"conversation_id"`
	Confidence     float64   `json:"confidence"`
	Reason         string    `json:"reason"`
	ConditionsMet  bool      `json:"conditions_met"`
	Timestamp      time.Time `json:"timestamp"`
}
