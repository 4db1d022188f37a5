package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldserve/dispatch-ai-platform/internal/orders"
	"github.com/fieldserve/dispatch-ai-platform/internal/trigger"
	"github.com/fieldserve/dispatch-ai-platform/internal/vendors"
)

type captureQueue struct {
	mu     sync.Mutex
	bodies []string
	err    error
}

func (q *captureQueue) Send(_ context.Context, body string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.bodies = append(q.bodies, body)
	return nil
}

func (q *captureQueue) Receive(context.Context, int, int) ([]queueMessage, error) {
	return nil, nil
}

func (q *captureQueue) Delete(context.Context, string) error { return nil }

func (q *captureQueue) sent() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.bodies...)
}

type stubDirectory struct {
	vendor *vendors.Vendor
	err    error
}

func (d *stubDirectory) GetByID(context.Context, string, string) (*vendors.Vendor, error) {
	return d.vendor, d.err
}

func orderFixture() *orders.Order {
	return &orders.Order{
		ID:               "order-1",
		AccountID:        "acct-1",
		ConversationID:   "conv-1",
		CustomerName:     "Maria Lopez",
		CustomerContact:  "maria@example.com",
		CustomerLocation: "123 Main St",
		ServiceType:      "Cleaning",
		Description:      "office cleaning",
		Priority:         "medium",
		EstimatedValue:   250,
	}
}

func TestPublisherNotifyVendorResolvesContact(t *testing.T) {
	queue := &captureQueue{}
	dir := &stubDirectory{vendor: &vendors.Vendor{
		ID:    "v1",
		Name:  "Sparkle Cleaning",
		Email: "crew@sparkle.example",
	}}
	pub := NewPublisher(queue, dir, "ops@acct.example", nil)

	err := pub.NotifyVendor(context.Background(), "v1", orderFixture())
	require.NoError(t, err)

	bodies := queue.sent()
	require.Len(t, bodies, 1)

	var payload queuePayload
	require.NoError(t, json.Unmarshal([]byte(bodies[0]), &payload))
	assert.Equal(t, kindVendorAssignment, payload.Kind)
	assert.NotEmpty(t, payload.ID)
	require.NotNil(t, payload.Vendor)
	assert.Equal(t, "v1", payload.Vendor.VendorID)
	assert.Equal(t, "crew@sparkle.example", payload.Vendor.VendorEmail)
	assert.Equal(t, "Maria Lopez", payload.Vendor.CustomerName)
	assert.Equal(t, "Cleaning", payload.Vendor.ServiceType)
}

func TestPublisherNotifyVendorLookupFailureStillPublishes(t *testing.T) {
	queue := &captureQueue{}
	dir := &stubDirectory{err: errors.New("boom")}
	pub := NewPublisher(queue, dir, "", nil)

	err := pub.NotifyVendor(context.Background(), "v1", orderFixture())
	require.NoError(t, err)

	bodies := queue.sent()
	require.Len(t, bodies, 1)

	var payload queuePayload
	require.NoError(t, json.Unmarshal([]byte(bodies[0]), &payload))
	assert.Empty(t, payload.Vendor.VendorEmail)
}

func TestPublisherNotifyVendorQueueError(t *testing.T) {
	queue := &captureQueue{err: errors.New("queue down")}
	pub := NewPublisher(queue, nil, "", nil)

	err := pub.NotifyVendor(context.Background(), "v1", orderFixture())
	assert.Error(t, err)
}

func activationFixture() *trigger.Activation {
	return &trigger.Activation{
		RuleID:         "rule-1",
		RuleName:       "Office cleaning dispatch",
		AccountID:      "acct-1",
		ConversationID: "conv-1",
		Confidence:     0.8,
		Reason:         "matched: keywords 100%, conditions 100%, context aligned",
		ConditionsMet:  true,
		Timestamp:      time.Now().UTC(),
	}
}

func TestPublisherActivationUsesRuleRecipient(t *testing.T) {
	queue := &captureQueue{}
	pub := NewPublisher(queue, nil, "ops@acct.example", nil)

	err := pub.PublishActivation(context.Background(), activationFixture(), "rule@acct.example")
	require.NoError(t, err)

	var payload queuePayload
	require.NoError(t, json.Unmarshal([]byte(queue.sent()[0]), &payload))
	assert.Equal(t, kindActivationNotice, payload.Kind)
	require.NotNil(t, payload.Activation)
	assert.Equal(t, "rule@acct.example", payload.Activation.NotifyEmail)
	assert.Equal(t, 0.8, payload.Activation.Confidence)
}

func TestPublisherActivationFallsBackToAccountEmail(t *testing.T) {
	queue := &captureQueue{}
	pub := NewPublisher(queue, nil, "ops@acct.example", nil)

	err := pub.PublishActivation(context.Background(), activationFixture(), "")
	require.NoError(t, err)

	var payload queuePayload
	require.NoError(t, json.Unmarshal([]byte(queue.sent()[0]), &payload))
	assert.Equal(t, "ops@acct.example", payload.Activation.NotifyEmail)
}

func TestPublisherActivationNoRecipientSkips(t *testing.T) {
	queue := &captureQueue{}
	pub := NewPublisher(queue, nil, "", nil)

	err := pub.PublishActivation(context.Background(), activationFixture(), "")
	require.NoError(t, err)
	assert.Empty(t, queue.sent())
}
