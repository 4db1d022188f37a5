package orders

import (
	"errors"
	"fmt"
	"time"
)

// Status is an order lifecycle state.
type Status string

const (
	StatusNew             Status = "new"
	StatusVendorSelection Status = "vendor_selection"
	StatusAssigned        Status = "assigned"
	StatusAccepted        Status = "accepted"
	StatusDeclined        Status = "declined"
	StatusOnWay           Status = "on_way"
	StatusProcessing      Status = "processing"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
)

// ErrOrderNotFound indicates no order exists for the id within the account.
var ErrOrderNotFound = errors.New("orders: order not found")

// ErrVersionConflict indicates a concurrent update won the optimistic check.
var ErrVersionConflict = errors.New("orders: version conflict")

// InvalidTransitionError reports an illegal state change. The order is left
// unchanged.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("orders: invalid transition %s -> %s", e.From, e.To)
}

// transitions is the legal state graph. Terminal states have no entry.
var transitions = map[Status][]Status{
	StatusNew:             {StatusVendorSelection, StatusCancelled},
	StatusVendorSelection: {StatusAssigned, StatusCancelled},
	StatusAssigned:        {StatusAccepted, StatusDeclined, StatusCancelled},
	StatusDeclined:        {StatusAssigned, StatusCancelled},
	StatusAccepted:        {StatusOnWay, StatusCancelled},
	StatusOnWay:           {StatusProcessing, StatusCancelled},
	StatusProcessing:      {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether from -> to is a legal state change.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a status ends the lifecycle.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Transition is one recorded state change.
type Transition struct {
	From Status    `json:"from"`
	To   Status    `json:"to"`
	At   time.Time `json:"at"`
	Note string    `json:"note,omitempty"`
}

// Order is a dispatch work order. Created on trigger activation, mutated only
// through legal transitions, never deleted.
type Order struct {
	ID             string `json:"id"`
	AccountID      string `json:"account_id"`
	ConversationID string `json:"conversation_id"`
	TriggerRuleID  string `json:"trigger_rule_id,omitempty"`

	CustomerName     string  `json:"customer_name"`
	CustomerContact  string  `json:"customer_contact"`
	CustomerLocation string  `json:"customer_location"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`

	ServiceType    string  `json:"service_type"`
	Description    string  `json:"description"`
	Priority       string  `json:"priority"`
	EstimatedValue float64 `json:"estimated_value"`
	DealingPrice   float64 `json:"dealing_price"`

	Status          Status   `json:"status"`
	VendorID        string   `json:"vendor_id,omitempty"`
	AssignedVendors []string `json:"assigned_vendors,omitempty"`
	FallbackVendors []string `json:"fallback_vendors,omitempty"`
	DeclinedVendors []string `json:"declined_vendors,omitempty"`

	BeforeArtifacts []string `json:"before_artifacts,omitempty"`
	AfterArtifacts  []string `json:"after_artifacts,omitempty"`

	InvoiceGenerated bool   `json:"invoice_generated"`
	InvoiceID        string `json:"invoice_id,omitempty"`
	CancelReason     string `json:"cancel_reason,omitempty"`

	History     []Transition `json:"history,omitempty"`
	Version     int          `json:"version"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	CancelledAt time.Time    `json:"cancelled_at,omitempty"`
}

// applyTransition validates and records a state change in place.
func (o *Order) applyTransition(to Status, at time.Time, note string) error {
	if !CanTransition(o.Status, to) {
		return &InvalidTransitionError{From: o.Status, To: to}
	}
	o.History = append(o.History, Transition{From: o.Status, To: to, At: at, Note: note})
	o.Status = to
	o.UpdatedAt = at
	if to == StatusCancelled {
		o.CancelledAt = at
		o.CancelReason = note
	}
	return nil
}
