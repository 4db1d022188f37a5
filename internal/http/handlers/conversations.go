package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fieldserve/dispatch-ai-platform/internal/analysis"
	"github.com/fieldserve/dispatch-ai-platform/internal/tenancy"
	"github.com/fieldserve/dispatch-ai-platform/internal/trigger"
	"github.com/fieldserve/dispatch-ai-platform/pkg/logging"
)

// ConversationsHandler serves read access to processed conversation results.
type ConversationsHandler struct {
	summaries   analysis.SummaryStore
	activations trigger.ActivationRepository
	logger      *logging.Logger
}

func NewConversationsHandler(summaries analysis.SummaryStore, activations trigger.ActivationRepository, logger *logging.Logger) *ConversationsHandler {
	if summaries == nil || activations == nil {
		panic("handlers: summary store and activation repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ConversationsHandler{summaries: summaries, activations: activations, logger: logger}
}

// GetSummary handles GET /v1/conversations/{conversationID}/summary.
func (h *ConversationsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	accountID, ok := tenancy.AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "missing account id")
		return
	}

	summary, err := h.summaries.Get(r.Context(), accountID, chi.URLParam(r, "conversationID"))
	if err != nil {
		if errors.Is(err, analysis.ErrSummaryNotFound) {
			writeError(w, http.StatusNotFound, "summary not found")
			return
		}
		h.logger.Error("summary lookup failed", "account_id", accountID, "error", err)
		writeError(w, http.StatusInternalServerError, "summary lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ListActivations handles GET /v1/conversations/{conversationID}/activations.
func (h *ConversationsHandler) ListActivations(w http.ResponseWriter, r *http.Request) {
	accountID, ok := tenancy.AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "missing account id")
		return
	}

	activations, err := h.activations.ListByConversation(r.Context(), accountID, chi.URLParam(r, "conversationID"))
	if err != nil {
		h.logger.Error("activation lookup failed", "account_id", accountID, "error", err)
		writeError(w, http.StatusInternalServerError, "activation lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activations": activations})
}
