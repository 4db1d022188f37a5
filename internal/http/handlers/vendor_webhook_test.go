package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldserve/dispatch-ai-platform/internal/orders"
	"github.com/fieldserve/dispatch-ai-platform/internal/tenancy"
)

const webhookSecret = "wh-secret-acct-1"

func signBody(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func newWebhookHandler(t *testing.T) (*VendorWebhookHandler, *orders.InMemoryStore) {
	t.Helper()
	store := orders.NewInMemoryStore()
	manager := orders.NewManager(store, nil, nil, nil, nil)
	h, err := NewVendorWebhookHandler(manager, `{"acct-1": "`+webhookSecret+`"}`, nil)
	require.NoError(t, err)
	return h, store
}

func seedAssignedOrder(t *testing.T, store *orders.InMemoryStore) *orders.Order {
	t.Helper()
	created, err := store.Create(context.Background(), &orders.Order{
		AccountID:       "acct-1",
		ConversationID:  "call-1",
		ServiceType:     "plumbing",
		Status:          orders.StatusAssigned,
		VendorID:        "vendor-1",
		AssignedVendors: []string{"vendor-1"},
	})
	require.NoError(t, err)
	return created
}

func webhookRequest(body string, sign bool) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/vendor-response", strings.NewReader(body))
	req = req.WithContext(tenancy.WithAccountID(req.Context(), "acct-1"))
	if sign {
		req.Header.Set(SignatureHeader, signBody(webhookSecret, body))
	}
	return req
}

func TestVendorWebhookAccept(t *testing.T) {
	h, store := newWebhookHandler(t)
	order := seedAssignedOrder(t, store)

	body := `{"order_id": "` + order.ID + `", "vendor_id": "vendor-1", "response": "accept"}`
	rec := httptest.NewRecorder()
	h.VendorResponse(rec, webhookRequest(body, true))

	require.Equal(t, http.StatusOK, rec.Code)
	updated, err := store.Get(context.Background(), "acct-1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusAccepted, updated.Status)
}

func TestVendorWebhookDeclineWithoutFallbackCancels(t *testing.T) {
	h, store := newWebhookHandler(t)
	order := seedAssignedOrder(t, store)

	body := `{"order_id": "` + order.ID + `", "vendor_id": "vendor-1", "response": "decline"}`
	rec := httptest.NewRecorder()
	h.VendorResponse(rec, webhookRequest(body, true))

	require.Equal(t, http.StatusOK, rec.Code)
	updated, err := store.Get(context.Background(), "acct-1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, updated.Status)
	assert.Contains(t, updated.DeclinedVendors, "vendor-1")
}

func TestVendorWebhookBadSignature(t *testing.T) {
	h, store := newWebhookHandler(t)
	order := seedAssignedOrder(t, store)

	body := `{"order_id": "` + order.ID + `", "vendor_id": "vendor-1", "response": "accept"}`
	req := webhookRequest(body, false)
	req.Header.Set(SignatureHeader, signBody("wrong-secret", body))

	rec := httptest.NewRecorder()
	h.VendorResponse(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	unchanged, err := store.Get(context.Background(), "acct-1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusAssigned, unchanged.Status)
}

func TestVendorWebhookMissingSignature(t *testing.T) {
	h, store := newWebhookHandler(t)
	order := seedAssignedOrder(t, store)

	body := `{"order_id": "` + order.ID + `", "vendor_id": "vendor-1", "response": "accept"}`
	rec := httptest.NewRecorder()
	h.VendorResponse(rec, webhookRequest(body, false))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVendorWebhookUppercaseSignatureAccepted(t *testing.T) {
	h, store := newWebhookHandler(t)
	order := seedAssignedOrder(t, store)

	body := `{"order_id": "` + order.ID + `", "vendor_id": "vendor-1", "response": "accept"}`
	req := webhookRequest(body, false)
	req.Header.Set(SignatureHeader, strings.ToUpper(signBody(webhookSecret, body)))

	rec := httptest.NewRecorder()
	h.VendorResponse(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVendorWebhookUnknownOrder(t *testing.T) {
	h, _ := newWebhookHandler(t)

	body := `{"order_id": "nope", "vendor_id": "vendor-1", "response": "accept"}`
	rec := httptest.NewRecorder()
	h.VendorResponse(rec, webhookRequest(body, true))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVendorWebhookInvalidResponseValue(t *testing.T) {
	h, store := newWebhookHandler(t)
	order := seedAssignedOrder(t, store)

	body := `{"order_id": "` + order.ID + `", "vendor_id": "vendor-1", "response": "maybe"}`
	rec := httptest.NewRecorder()
	h.VendorResponse(rec, webhookRequest(body, true))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVendorWebhookInvalidTransitionConflict(t *testing.T) {
	h, store := newWebhookHandler(t)
	created, err := store.Create(context.Background(), &orders.Order{
		AccountID: "acct-1",
		Status:    orders.StatusCompleted,
		VendorID:  "vendor-1",
	})
	require.NoError(t, err)

	body := `{"order_id": "` + created.ID + `", "vendor_id": "vendor-1", "response": "accept"}`
	rec := httptest.NewRecorder()
	h.VendorResponse(rec, webhookRequest(body, true))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestVendorWebhookRejectsBadSecretsJSON(t *testing.T) {
	manager := orders.NewManager(orders.NewInMemoryStore(), nil, nil, nil, nil)
	_, err := NewVendorWebhookHandler(manager, "not-json", nil)
	assert.Error(t, err)
}
