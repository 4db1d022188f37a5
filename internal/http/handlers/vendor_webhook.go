package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/fieldserve/dispatch-ai-platform/internal/orders"
	"github.com/fieldserve/dispatch-ai-platform/internal/tenancy"
	"github.com/fieldserve/dispatch-ai-platform/pkg/logging"
)

// SignatureHeader carries the hex-encoded HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Dispatch-Signature"

// VendorResponsePayload is a vendor's accept/decline reply to an assignment.
type VendorResponsePayload struct {
	OrderID  string `json:"order_id"`
	VendorID string `json:"vendor_id"`
	Response string `json:"response"` // accept or decline
}

// VendorWebhookHandler authenticates and applies vendor responses. Every
// account has its own shared secret; a request without a valid signature is
// rejected before the body is acted on.
type VendorWebhookHandler struct {
	manager *orders.Manager
	secrets map[string]string
	logger  *logging.Logger
}

// NewVendorWebhookHandler creates the handler. secretsJSON is a JSON object
// mapping account id to shared secret.
func NewVendorWebhookHandler(manager *orders.Manager, secretsJSON string, logger *logging.Logger) (*VendorWebhookHandler, error) {
	if manager == nil {
		return nil, errors.New("handlers: order manager required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	secrets := map[string]string{}
	if strings.TrimSpace(secretsJSON) != "" {
		if err := json.Unmarshal([]byte(secretsJSON), &secrets); err != nil {
			return nil, errors.New("handlers: webhook secrets must be a JSON object of account id to secret")
		}
	}
	return &VendorWebhookHandler{manager: manager, secrets: secrets, logger: logger}, nil
}

// VendorResponse handles POST /v1/webhooks/vendor-response.
func (h *VendorWebhookHandler) VendorResponse(w http.ResponseWriter, r *http.Request) {
	accountID, ok := tenancy.AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "missing account id")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxProcessBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if !h.verify(accountID, body, r.Header.Get(SignatureHeader)) {
		h.logger.Warn("vendor webhook signature rejected", "account_id", accountID)
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var payload VendorResponsePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if payload.OrderID == "" || payload.VendorID == "" {
		writeError(w, http.StatusBadRequest, "order_id and vendor_id required")
		return
	}

	var response orders.VendorResponse
	switch strings.ToLower(payload.Response) {
	case string(orders.ResponseAccept):
		response = orders.ResponseAccept
	case string(orders.ResponseDecline):
		response = orders.ResponseDecline
	default:
		writeError(w, http.StatusBadRequest, "response must be accept or decline")
		return
	}

	order, err := h.manager.HandleVendorResponse(r.Context(), accountID, payload.OrderID, payload.VendorID, response)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// verify checks the request signature against the account's shared secret
// using a constant-time comparison.
func (h *VendorWebhookHandler) verify(accountID string, body []byte, signature string) bool {
	secret, ok := h.secrets[accountID]
	if !ok || secret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

func writeOrderError(w http.ResponseWriter, err error) {
	var invalid *orders.InvalidTransitionError
	switch {
	case errors.Is(err, orders.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.As(err, &invalid):
		writeError(w, http.StatusConflict, invalid.Error())
	case errors.Is(err, orders.ErrVersionConflict):
		writeError(w, http.StatusConflict, "concurrent update, retry")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
