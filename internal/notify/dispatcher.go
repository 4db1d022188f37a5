package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fieldserve/dispatch-ai-platform/pkg/logging"
)

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
)

// Dispatcher consumes notification messages from the queue and delivers them
// by email. Delivery failures leave the message on the queue for redelivery.
type Dispatcher struct {
	queue  queueClient
	sender EmailSender
	logger *logging.Logger

	cfg dispatcherConfig
	wg  sync.WaitGroup
}

type dispatcherConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
}

// DispatcherOption customizes dispatcher behavior.
type DispatcherOption func(*dispatcherConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) DispatcherOption {
	return func(cfg *dispatcherConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the SQS long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) DispatcherOption {
	return func(cfg *dispatcherConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) DispatcherOption {
	return func(cfg *dispatcherConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// NewDispatcher creates the queue consumer.
func NewDispatcher(queue queueClient, sender EmailSender, logger *logging.Logger, opts ...DispatcherOption) *Dispatcher {
	if queue == nil {
		panic("notify: queue required")
	}
	if sender == nil {
		panic("notify: email sender required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := dispatcherConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Dispatcher{
		queue:  queue,
		sender: sender,
		logger: logger.Component("dispatcher"),
		cfg:    cfg,
	}
}

// Start launches the consumer goroutines. They exit when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.cfg.workers; i++ {
		d.wg.Add(1)
		go d.run(ctx, i+1)
	}
}

// Wait blocks until all consumer goroutines exit.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context, workerID int) {
	defer d.wg.Done()
	d.logger.Debug("dispatch worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			d.logger.Debug("dispatch worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := d.queue.Receive(ctx, d.cfg.receiveBatchSize, d.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			d.logger.Error("failed to receive notifications", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			d.handleMessage(ctx, msg)
		}
	}
}

func (d *Dispatcher) handleMessage(ctx context.Context, msg queueMessage) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		d.logger.Error("failed to decode notification", "error", err, "msg_id", msg.ID)
		d.deleteMessage(msg.ReceiptHandle)
		return
	}

	var (
		email EmailMessage
		ok    bool
	)
	switch payload.Kind {
	case kindVendorAssignment:
		email, ok = vendorAssignmentEmail(payload.Vendor)
	case kindActivationNotice:
		email, ok = activationNoticeEmail(payload.Activation)
	default:
		d.logger.Warn("unknown notification kind, dropping", "kind", payload.Kind, "msg_id", msg.ID)
		d.deleteMessage(msg.ReceiptHandle)
		return
	}
	if !ok {
		d.logger.Warn("notification has no deliverable recipient, dropping",
			"kind", payload.Kind, "msg_id", msg.ID)
		d.deleteMessage(msg.ReceiptHandle)
		return
	}

	if err := d.sender.Send(ctx, email); err != nil {
		d.logger.Error("notification delivery failed, leaving on queue",
			"error", err, "kind", payload.Kind, "to", email.To)
		return
	}

	d.deleteMessage(msg.ReceiptHandle)
}

func (d *Dispatcher) deleteMessage(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := d.queue.Delete(ctx, receiptHandle); err != nil {
		d.logger.Error("failed to delete notification", "error", err)
	}
}

func vendorAssignmentEmail(a *VendorAssignment) (EmailMessage, bool) {
	if a == nil || a.VendorEmail == "" {
		return EmailMessage{}, false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You have been assigned a new %s order.\n\n", a.ServiceType)
	fmt.Fprintf(&b, "Order: %s\n", a.OrderID)
	fmt.Fprintf(&b, "Priority: %s\n", a.Priority)
	fmt.Fprintf(&b, "Customer: %s\n", a.CustomerName)
	if a.CustomerContact != "" {
		fmt.Fprintf(&b, "Contact: %s\n", a.CustomerContact)
	}
	fmt.Fprintf(&b, "Location: %s\n", a.CustomerLocation)
	if a.Description != "" {
		fmt.Fprintf(&b, "\nDetails: %s\n", a.Description)
	}
	if a.EstimatedValue > 0 {
		fmt.Fprintf(&b, "Estimated value: $%.2f\n", a.EstimatedValue)
	}
	b.WriteString("\nPlease accept or decline as soon as possible.\n")

	return EmailMessage{
		To:       a.VendorEmail,
		ToName:   a.VendorName,
		Subject:  fmt.Sprintf("New %s order %s", a.ServiceType, a.OrderID),
		Body:     b.String(),
		Category: CategoryVendorAssignment,
		Ref:      a.OrderID,
	}, true
}

func activationNoticeEmail(n *ActivationNotice) (EmailMessage, bool) {
	if n == nil || n.NotifyEmail == "" {
		return EmailMessage{}, false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Trigger rule %q fired for conversation %s.\n\n", n.RuleName, n.ConversationID)
	fmt.Fprintf(&b, "Confidence: %.0f%%\n", n.Confidence*100)
	if n.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", n.Reason)
	}

	return EmailMessage{
		To:       n.NotifyEmail,
		Subject:  fmt.Sprintf("Trigger fired: %s", n.RuleName),
		Body:     b.String(),
		Category: CategoryTriggerActivation,
		Ref:      n.ConversationID,
	}, true
}
