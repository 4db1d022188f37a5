package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

type messageKind string

const (
	kindVendorAssignment messageKind = "vendor_assignment.v1"
	kindActivationNotice messageKind = "trigger_activation.v1"
)

// VendorAssignment is the order summary delivered to an assigned vendor.
type VendorAssignment struct {
	AccountID        string  `json:"account_id"`
	OrderID          string  `json:"order_id"`
	VendorID         string  `json:"vendor_id"`
	VendorName       string  `json:"vendor_name"`
	VendorEmail      string  `json:"vendor_email,omitempty"`
	CustomerName     string  `json:"customer_name"`
	CustomerContact  string  `json:"customer_contact,omitempty"`
	CustomerLocation string  `json:"customer_location"`
	ServiceType      string  `json:"service_type"`
	Description      string  `json:"description,omitempty"`
	Priority         string  `json:"priority"`
	EstimatedValue   float64 `json:"estimated_value,omitempty"`
}

// ActivationNotice tells the account operator a trigger rule fired.
type ActivationNotice struct {
	AccountID      string  `json:"account_id"`
	ConversationID string  `json:"conversation_id"`
	RuleID         string  `json:"rule_id"`
	RuleName       string  `json:"rule_name"`
	Confidence     float64 `json:"confidence"`
	Reason         string  `json:"reason"`
	NotifyEmail    string  `json:"notify_email"`
}

type queuePayload struct {
	ID         string            `json:"id"`
	Kind       messageKind       `json:"kind"`
	Vendor     *VendorAssignment `json:"vendor,omitempty"`
	Activation *ActivationNotice `json:"activation,omitempty"`
}

func encodePayload(payload queuePayload) (string, error) {
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("notify: failed to encode payload: %w", err)
	}
	return string(body), nil
}
