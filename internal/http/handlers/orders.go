package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fieldserve/dispatch-ai-platform/internal/orders"
	"github.com/fieldserve/dispatch-ai-platform/internal/tenancy"
	"github.com/fieldserve/dispatch-ai-platform/pkg/logging"
)

// OrdersHandler exposes order lookup, progress transitions, cancellation, and
// artifact uploads.
type OrdersHandler struct {
	manager   *orders.Manager
	artifacts *orders.ArtifactStore
	logger    *logging.Logger
}

// NewOrdersHandler creates the handler. The artifact store is optional.
func NewOrdersHandler(manager *orders.Manager, artifacts *orders.ArtifactStore, logger *logging.Logger) *OrdersHandler {
	if manager == nil {
		panic("handlers: order manager required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &OrdersHandler{manager: manager, artifacts: artifacts, logger: logger}
}

// Get handles GET /v1/orders/{orderID}.
func (h *OrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID, ok := tenancy.AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "missing account id")
		return
	}

	order, err := h.manager.Get(r.Context(), accountID, chi.URLParam(r, "orderID"))
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type statusUpdateRequest struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}

// UpdateStatus handles POST /v1/orders/{orderID}/status.
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	accountID, ok := tenancy.AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "missing account id")
		return
	}

	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status required")
		return
	}

	order, err := h.manager.UpdateStatus(r.Context(), accountID, chi.URLParam(r, "orderID"),
		orders.Status(req.Status), req.Note)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel handles POST /v1/orders/{orderID}/cancel. Mounted behind admin auth.
func (h *OrdersHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	accountID, ok := tenancy.AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "missing account id")
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Reason == "" {
		req.Reason = "cancelled by operator"
	}

	order, err := h.manager.Cancel(r.Context(), accountID, chi.URLParam(r, "orderID"), req.Reason)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type artifactRequest struct {
	Phase       string `json:"phase"` // before or after
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        string `json:"data"` // base64
}

// UploadArtifact handles POST /v1/orders/{orderID}/artifacts.
func (h *OrdersHandler) UploadArtifact(w http.ResponseWriter, r *http.Request) {
	accountID, ok := tenancy.AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "missing account id")
		return
	}
	if !h.artifacts.Enabled() {
		writeError(w, http.StatusNotImplemented, "artifact storage not configured")
		return
	}

	var req artifactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "data must be base64")
		return
	}

	orderID := chi.URLParam(r, "orderID")
	key, err := h.artifacts.Put(r.Context(), accountID, orderID, req.Phase, req.Filename, req.ContentType, data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.manager.AttachArtifacts(r.Context(), accountID, orderID, req.Phase, key)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}
