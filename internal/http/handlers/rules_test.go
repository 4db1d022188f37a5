package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldserve/dispatch-ai-platform/internal/tenancy"
	"github.com/fieldserve/dispatch-ai-platform/internal/trigger"
)

const ruleBody = `{
	"name": "Leak dispatch",
	"type": "location_visit",
	"keywords": ["leak", "send someone"],
	"threshold": 0.75,
	"actions": {"send_email": true, "create_order": true, "priority": 4},
	"active": true
}`

func newRulesHandler() (*RulesHandler, *trigger.InMemoryRuleRepository) {
	repo := trigger.NewInMemoryRuleRepository()
	return NewRulesHandler(repo, nil), repo
}

func ruleRequest(method, body, ruleID string) *http.Request {
	req := httptest.NewRequest(method, "/v1/trigger-rules", strings.NewReader(body))
	req = req.WithContext(tenancy.WithAccountID(req.Context(), "acct-1"))

	rctx := chi.NewRouteContext()
	if ruleID != "" {
		rctx.URLParams.Add("ruleID", ruleID)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestRulesHandlerCreate(t *testing.T) {
	h, repo := newRulesHandler()

	rec := httptest.NewRecorder()
	h.Create(rec, ruleRequest(http.MethodPost, ruleBody, ""))

	require.Equal(t, http.StatusCreated, rec.Code)

	rules, err := repo.ListActive(context.Background(), "acct-1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "Leak dispatch", rules[0].Name)
	assert.Equal(t, "acct-1", rules[0].AccountID)
}

func TestRulesHandlerCreateIgnoresBodyAccountID(t *testing.T) {
	h, repo := newRulesHandler()
	body := `{"name": "Sneaky", "account_id": "acct-other", "keywords": ["x"], "active": true}`

	rec := httptest.NewRecorder()
	h.Create(rec, ruleRequest(http.MethodPost, body, ""))

	require.Equal(t, http.StatusCreated, rec.Code)
	rules, err := repo.ListActive(context.Background(), "acct-1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
}

func TestRulesHandlerCreateInvalid(t *testing.T) {
	h, _ := newRulesHandler()

	rec := httptest.NewRecorder()
	h.Create(rec, ruleRequest(http.MethodPost, `{"name": "No keywords"}`, ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRulesHandlerGet(t *testing.T) {
	h, repo := newRulesHandler()
	created, err := repo.Create(context.Background(), &trigger.Rule{
		AccountID: "acct-1", Name: "Leak", Keywords: []string{"leak"}, Active: true,
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.Get(rec, ruleRequest(http.MethodGet, "", created.ID))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), created.ID)
}

func TestRulesHandlerGetNotFound(t *testing.T) {
	h, _ := newRulesHandler()

	rec := httptest.NewRecorder()
	h.Get(rec, ruleRequest(http.MethodGet, "", "missing"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRulesHandlerList(t *testing.T) {
	h, repo := newRulesHandler()
	for _, name := range []string{"One", "Two"} {
		_, err := repo.Create(context.Background(), &trigger.Rule{
			AccountID: "acct-1", Name: name, Keywords: []string{"kw"}, Active: true,
		})
		require.NoError(t, err)
	}
	_, err := repo.Create(context.Background(), &trigger.Rule{
		AccountID: "acct-2", Name: "Other tenant", Keywords: []string{"kw"}, Active: true,
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.List(rec, ruleRequest(http.MethodGet, "", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "One")
	assert.Contains(t, rec.Body.String(), "Two")
	assert.NotContains(t, rec.Body.String(), "Other tenant")
}

func TestRulesHandlerUpdate(t *testing.T) {
	h, repo := newRulesHandler()
	created, err := repo.Create(context.Background(), &trigger.Rule{
		AccountID: "acct-1", Name: "Leak", Keywords: []string{"leak"}, Active: true,
	})
	require.NoError(t, err)

	body := `{"name": "Leak urgent", "keywords": ["leak", "flood"], "actions": {"priority": 5}, "active": true}`
	rec := httptest.NewRecorder()
	h.Update(rec, ruleRequest(http.MethodPut, body, created.ID))

	require.Equal(t, http.StatusOK, rec.Code)
	updated, err := repo.GetByID(context.Background(), "acct-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Leak urgent", updated.Name)
	assert.Equal(t, 5, updated.Actions.Priority)
}

func TestRulesHandlerUpdateNotFound(t *testing.T) {
	h, _ := newRulesHandler()

	rec := httptest.NewRecorder()
	h.Update(rec, ruleRequest(http.MethodPut, ruleBody, "missing"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRulesHandlerDelete(t *testing.T) {
	h, repo := newRulesHandler()
	created, err := repo.Create(context.Background(), &trigger.Rule{
		AccountID: "acct-1", Name: "Leak", Keywords: []string{"leak"}, Active: true,
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.Delete(rec, ruleRequest(http.MethodDelete, "", created.ID))
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, err = repo.GetByID(context.Background(), "acct-1", created.ID)
	assert.ErrorIs(t, err, trigger.ErrRuleNotFound)
}
