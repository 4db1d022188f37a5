package notify

import (
	"context"
	"fmt"

	"github.com/fieldserve/dispatch-ai-platform/internal/orders"
	"github.com/fieldserve/dispatch-ai-platform/internal/trigger"
	"github.com/fieldserve/dispatch-ai-platform/internal/vendors"
	"github.com/fieldserve/dispatch-ai-platform/pkg/logging"
)

// VendorDirectory resolves vendor contact details for outbound notifications.
type VendorDirectory interface {
	GetByID(ctx context.Context, accountID, id string) (*vendors.Vendor, error)
}

// Publisher enqueues notifications for the dispatch worker. Both paths are
// best-effort: a publish failure never blocks the state change that caused it.
type Publisher struct {
	queue        queueClient
	directory    VendorDirectory
	accountEmail string
	logger       *logging.Logger
}

// NewPublisher creates the publisher. accountEmail is the fallback recipient
// for activation notices when a rule does not name one.
func NewPublisher(queue queueClient, directory VendorDirectory, accountEmail string, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("notify: queue required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		queue:        queue,
		directory:    directory,
		accountEmail: accountEmail,
		logger:       logger.Component("notify"),
	}
}

// NotifyVendor publishes an assignment summary for the vendor. Vendor contact
// details are resolved at publish time so the worker payload is self-contained.
func (p *Publisher) NotifyVendor(ctx context.Context, vendorID string, order *orders.Order) error {
	if order == nil {
		return fmt.Errorf("notify: nil order")
	}

	assignment := VendorAssignment{
		AccountID:        order.AccountID,
		OrderID:          order.ID,
		VendorID:         vendorID,
		CustomerName:     order.CustomerName,
		CustomerContact:  order.CustomerContact,
		CustomerLocation: order.CustomerLocation,
		ServiceType:      order.ServiceType,
		Description:      order.Description,
		Priority:         order.Priority,
		EstimatedValue:   order.EstimatedValue,
	}
	if p.directory != nil {
		vendor, err := p.directory.GetByID(ctx, order.AccountID, vendorID)
		if err != nil {
			p.logger.Warn("vendor lookup failed, publishing without contact",
				"vendor_id", vendorID, "error", err)
		} else {
			assignment.VendorName = vendor.Name
			assignment.VendorEmail = vendor.Email
		}
	}

	body, err := encodePayload(queuePayload{Kind: kindVendorAssignment, Vendor: &assignment})
	if err != nil {
		return err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("notify: publish vendor assignment: %w", err)
	}

	p.logger.Info("vendor assignment published",
		"order_id", order.ID, "vendor_id", vendorID, "service_type", order.ServiceType)
	return nil
}

// PublishActivation enqueues an operator notice for a fired trigger rule.
// notifyEmail overrides the account default when the rule carries one.
func (p *Publisher) PublishActivation(ctx context.Context, activation *trigger.Activation, notifyEmail string) error {
	if activation == nil {
		return fmt.Errorf("notify: nil activation")
	}
	to := notifyEmail
	if to == "" {
		to = p.accountEmail
	}
	if to == "" {
		p.logger.Warn("no recipient for activation notice, skipping",
			"rule_id", activation.RuleID, "conversation_id", activation.ConversationID)
		return nil
	}

	notice := ActivationNotice{
		AccountID:      activation.AccountID,
		ConversationID: activation.ConversationID,
		RuleID:         activation.RuleID,
		RuleName:       activation.RuleName,
		Confidence:     activation.Confidence,
		Reason:         activation.Reason,
		NotifyEmail:    to,
	}
	body, err := encodePayload(queuePayload{Kind: kindActivationNotice, Activation: &notice})
	if err != nil {
		return err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("notify: publish activation notice: %w", err)
	}

	p.logger.Info("activation notice published",
		"rule_id", activation.RuleID, "conversation_id", activation.ConversationID, "to", to)
	return nil
}

var _ orders.Notifier = (*Publisher)(nil)
