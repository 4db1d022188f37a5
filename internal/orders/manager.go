package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldserve/dispatch-ai-platform/internal/vendors"
	"github.com/fieldserve/dispatch-ai-platform/pkg/logging"
)

// VendorResponse is a vendor's reply to an assignment.
type VendorResponse string

const (
	ResponseAccept  VendorResponse = "accept"
	ResponseDecline VendorResponse = "decline"
)

const noVendorsReason = "no vendors available"

// Webhooks for the same order can race; conflicting writers retry against the
// fresh row a bounded number of times.
const maxUpdateAttempts = 3

// Invoicer generates an invoice for a completed order. Called at most once
// per order.
type Invoicer interface {
	GenerateInvoice(ctx context.Context, order *Order) (string, error)
}

// Notifier tells a vendor about an assignment. Best-effort: failures are
// logged and never block the transition that triggered them.
type Notifier interface {
	NotifyVendor(ctx context.Context, vendorID string, order *Order) error
}

// VendorSelector re-runs vendor selection when the fallback list is exhausted.
type VendorSelector interface {
	Select(ctx context.Context, req *vendors.Request) (*vendors.Result, error)
}

// Manager drives the order lifecycle state machine.
type Manager struct {
	store    Store
	selector VendorSelector
	invoicer Invoicer
	notifier Notifier
	logger   *logging.Logger
	now      func() time.Time
	observer func(from, to Status)
}

// NewManager creates an order manager. Selector, invoicer, and notifier are
// optional collaborators; the store is required.
func NewManager(store Store, selector VendorSelector, invoicer Invoicer, notifier Notifier, logger *logging.Logger) *Manager {
	if store == nil {
		panic("orders: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		store:    store,
		selector: selector,
		invoicer: invoicer,
		notifier: notifier,
		logger:   logger.Component("orders"),
		now:      time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// WithTransitionObserver registers a callback invoked once per persisted
// status transition, in order.
func (m *Manager) WithTransitionObserver(fn func(from, to Status)) *Manager {
	m.observer = fn
	return m
}

// CreateFromSelection creates an order and walks it through vendor selection
// using an already-computed result. A result with no primary vendors cancels
// the order, which is a normal outcome.
func (m *Manager) CreateFromSelection(ctx context.Context, order *Order, result *vendors.Result) (*Order, error) {
	if order == nil {
		return nil, fmt.Errorf("orders: nil order")
	}
	now := m.now().UTC()
	order.Status = StatusNew
	order.CreatedAt = now
	order.UpdatedAt = now

	if err := order.applyTransition(StatusVendorSelection, now, "trigger activation"); err != nil {
		return nil, err
	}

	if result == nil || len(result.Primary) == 0 {
		if err := order.applyTransition(StatusCancelled, now, noVendorsReason); err != nil {
			return nil, err
		}
		created, err := m.store.Create(ctx, order)
		if err != nil {
			return nil, err
		}
		m.observeTransitions(created.History)
		m.logger.Info("order cancelled, no vendors",
			"order_id", created.ID, "account_id", created.AccountID)
		return created, nil
	}

	order.VendorID = result.Primary[0].Vendor.ID
	order.AssignedVendors = result.PrimaryVendorIDs()
	order.FallbackVendors = result.FallbackVendorIDs()
	if err := order.applyTransition(StatusAssigned, now, "primary vendor assigned"); err != nil {
		return nil, err
	}

	created, err := m.store.Create(ctx, order)
	if err != nil {
		return nil, err
	}
	m.observeTransitions(created.History)
	m.notifyAssigned(created)
	m.logger.Info("order assigned",
		"order_id", created.ID,
		"account_id", created.AccountID,
		"vendor_id", created.VendorID,
		"fallbacks", len(created.FallbackVendors),
	)
	return created, nil
}

// Get fetches an order scoped to the account.
func (m *Manager) Get(ctx context.Context, accountID, orderID string) (*Order, error) {
	return m.store.Get(ctx, accountID, orderID)
}

// HandleVendorResponse applies an accept or decline from the assigned vendor.
// On decline the next fallback is promoted; with the fallback list exhausted,
// selection is re-run excluding every vendor that already declined; if that
// still yields nothing the order is cancelled.
func (m *Manager) HandleVendorResponse(ctx context.Context, accountID, orderID, vendorID string, response VendorResponse) (*Order, error) {
	return m.withRetry(ctx, accountID, orderID, func(order *Order) error {
		if order.VendorID != vendorID {
			return fmt.Errorf("orders: vendor %s is not assigned to order %s", vendorID, order.ID)
		}
		switch response {
		case ResponseAccept:
			return m.applyAccept(order)
		case ResponseDecline:
			return m.applyDecline(ctx, order, vendorID)
		default:
			return fmt.Errorf("orders: unknown vendor response %q", response)
		}
	})
}

func (m *Manager) applyAccept(order *Order) error {
	return order.applyTransition(StatusAccepted, m.now().UTC(), "vendor accepted")
}

func (m *Manager) applyDecline(ctx context.Context, order *Order, vendorID string) error {
	now := m.now().UTC()
	if err := order.applyTransition(StatusDeclined, now, "vendor declined"); err != nil {
		return err
	}
	order.DeclinedVendors = append(order.DeclinedVendors, vendorID)

	// Promote the next fallback without a fresh selection run.
	if len(order.FallbackVendors) > 0 {
		next := order.FallbackVendors[0]
		order.FallbackVendors = order.FallbackVendors[1:]
		order.VendorID = next
		order.AssignedVendors = append(order.AssignedVendors, next)
		return order.applyTransition(StatusAssigned, now, "fallback vendor promoted")
	}

	// Fallbacks exhausted: widen the pool, excluding everyone who declined.
	if m.selector != nil {
		result, err := m.selector.Select(ctx, &vendors.Request{
			AccountID:        order.AccountID,
			ServiceType:      order.ServiceType,
			Latitude:         order.Latitude,
			Longitude:        order.Longitude,
			Priority:         order.Priority,
			EstimatedValue:   order.EstimatedValue,
			MaxVendors:       3,
			ExcludeVendorIDs: order.DeclinedVendors,
		})
		if err != nil {
			m.logger.Error("re-selection failed", "order_id", order.ID, "error", err.Error())
		} else if len(result.Primary) > 0 {
			order.VendorID = result.Primary[0].Vendor.ID
			order.AssignedVendors = append(order.AssignedVendors, result.PrimaryVendorIDs()...)
			order.FallbackVendors = result.FallbackVendorIDs()
			return order.applyTransition(StatusAssigned, now, "re-selected vendor assigned")
		}
	}

	return order.applyTransition(StatusCancelled, now, noVendorsReason)
}

// UpdateStatus applies a vendor-progress or administrative transition.
// Repeating the current status is a no-op, which makes duplicate "completed"
// webhooks harmless.
func (m *Manager) UpdateStatus(ctx context.Context, accountID, orderID string, to Status, note string) (*Order, error) {
	return m.withRetry(ctx, accountID, orderID, func(order *Order) error {
		if order.Status == to {
			// A repeated "completed" still gets an invoice attempt when an
			// earlier one failed.
			if to == StatusCompleted && !order.InvoiceGenerated && m.invoicer != nil {
				m.generateInvoiceOnce(ctx, order)
				order.UpdatedAt = m.now().UTC()
			}
			return nil
		}
		if err := order.applyTransition(to, m.now().UTC(), note); err != nil {
			return err
		}
		if to == StatusCompleted {
			m.generateInvoiceOnce(ctx, order)
		}
		return nil
	})
}

// Cancel terminates the order with a reason.
func (m *Manager) Cancel(ctx context.Context, accountID, orderID, reason string) (*Order, error) {
	return m.UpdateStatus(ctx, accountID, orderID, StatusCancelled, reason)
}

// AttachArtifacts records uploaded before/after artifact references.
func (m *Manager) AttachArtifacts(ctx context.Context, accountID, orderID, phase string, refs ...string) (*Order, error) {
	return m.withRetry(ctx, accountID, orderID, func(order *Order) error {
		switch phase {
		case "before":
			order.BeforeArtifacts = append(order.BeforeArtifacts, refs...)
		case "after":
			order.AfterArtifacts = append(order.AfterArtifacts, refs...)
		default:
			return fmt.Errorf("orders: unknown artifact phase %q", phase)
		}
		order.UpdatedAt = m.now().UTC()
		return nil
	})
}

// generateInvoiceOnce invokes the invoicing collaborator guarded by the
// invoice_generated flag. A failure leaves the flag false so a later
// completed update can retry.
func (m *Manager) generateInvoiceOnce(ctx context.Context, order *Order) {
	if order.InvoiceGenerated || m.invoicer == nil {
		return
	}
	invoiceID, err := m.invoicer.GenerateInvoice(ctx, order)
	if err != nil {
		m.logger.Warn("invoice generation failed",
			"order_id", order.ID, "error", err.Error())
		return
	}
	order.InvoiceGenerated = true
	order.InvoiceID = invoiceID
	m.logger.Info("invoice generated", "order_id", order.ID, "invoice_id", invoiceID)
}

// withRetry runs a read-modify-write cycle under the store's optimistic
// version check, retrying on conflict with a freshly read row.
func (m *Manager) withRetry(ctx context.Context, accountID, orderID string, mutate func(*Order) error) (*Order, error) {
	var lastErr error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		order, err := m.store.Get(ctx, accountID, orderID)
		if err != nil {
			return nil, err
		}
		prevVendor := order.VendorID
		prevTransitions := len(order.History)
		if err := mutate(order); err != nil {
			return nil, err
		}

		updated, err := m.store.Update(ctx, order)
		if err == ErrVersionConflict {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}
		m.observeTransitions(updated.History[prevTransitions:])
		// A promotion or re-selection put a new vendor on the order.
		if updated.Status == StatusAssigned && updated.VendorID != prevVendor {
			m.notifyAssigned(updated)
		}
		return updated, nil
	}
	return nil, fmt.Errorf("orders: update contention on %s: %w", orderID, lastErr)
}

func (m *Manager) observeTransitions(transitions []Transition) {
	if m.observer == nil {
		return
	}
	for _, tr := range transitions {
		m.observer(tr.From, tr.To)
	}
}

// notifyAssigned fires the vendor notification without blocking the caller.
func (m *Manager) notifyAssigned(order *Order) {
	if m.notifier == nil || order.VendorID == "" {
		return
	}
	snapshot := *order
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.notifier.NotifyVendor(ctx, snapshot.VendorID, &snapshot); err != nil {
			m.logger.Warn("vendor notification failed",
				"order_id", snapshot.ID,
				"vendor_id", snapshot.VendorID,
				"error", err.Error(),
			)
		}
	}()
}
