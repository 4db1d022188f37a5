package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fieldserve/dispatch-ai-platform/internal/tenancy"
	"github.com/fieldserve/dispatch-ai-platform/internal/trigger"
	"github.com/fieldserve/dispatch-ai-platform/pkg/logging"
)

// RulesHandler provides CRUD over trigger rules for a single account.
type RulesHandler struct {
	rules  trigger.RuleRepository
	logger *logging.Logger
}

func NewRulesHandler(rules trigger.RuleRepository, logger *logging.Logger) *RulesHandler {
	if rules == nil {
		panic("handlers: rule repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RulesHandler{rules: rules, logger: logger}
}

// Create handles POST /v1/trigger-rules.
func (h *RulesHandler) Create(w http.ResponseWriter, r *http.Request) {
	accountID, ok := tenancy.AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "missing account id")
		return
	}

	var rule trigger.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	rule.AccountID = accountID
	if err := rule.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.rules.Create(r.Context(), &rule)
	if err != nil {
		h.logger.Error("trigger rule create failed", "account_id", accountID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create rule")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Get handles GET /v1/trigger-rules/{ruleID}.
func (h *RulesHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID, ok := tenancy.AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "missing account id")
		return
	}

	rule, err := h.rules.GetByID(r.Context(), accountID, chi.URLParam(r, "ruleID"))
	if err != nil {
		writeRuleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// List handles GET /v1/trigger-rules. Only active rules are returned.
func (h *RulesHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID, ok := tenancy.AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "missing account id")
		return
	}

	rules, err := h.rules.ListActive(r.Context(), accountID)
	if err != nil {
		h.logger.Error("trigger rule list failed", "account_id", accountID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list rules")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

// Update handles PUT /v1/trigger-rules/{ruleID}.
func (h *RulesHandler) Update(w http.ResponseWriter, r *http.Request) {
	accountID, ok := tenancy.AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "missing account id")
		return
	}

	var rule trigger.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	rule.ID = chi.URLParam(r, "ruleID")
	rule.AccountID = accountID
	if err := rule.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.rules.Update(r.Context(), &rule); err != nil {
		writeRuleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &rule)
}

// Delete handles DELETE /v1/trigger-rules/{ruleID}.
func (h *RulesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	accountID, ok := tenancy.AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "missing account id")
		return
	}

	if err := h.rules.Delete(r.Context(), accountID, chi.URLParam(r, "ruleID")); err != nil {
		writeRuleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeRuleError(w http.ResponseWriter, err error) {
	if errors.Is(err, trigger.ErrRuleNotFound) {
		writeError(w, http.StatusNotFound, "rule not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "rule operation failed")
}
