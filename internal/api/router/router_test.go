package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldserve/dispatch-ai-platform/internal/analysis"
	"github.com/fieldserve/dispatch-ai-platform/internal/http/handlers"
	httpmiddleware "github.com/fieldserve/dispatch-ai-platform/internal/http/middleware"
	"github.com/fieldserve/dispatch-ai-platform/internal/orders"
	"github.com/fieldserve/dispatch-ai-platform/internal/pipeline"
	"github.com/fieldserve/dispatch-ai-platform/internal/transcript"
	"github.com/fieldserve/dispatch-ai-platform/internal/trigger"
)

const adminSecret = "test-admin-secret"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	coordinator := pipeline.NewCoordinator(pipeline.Deps{
		Normalizer:  transcript.NewNormalizer(nil),
		Turns:       analysis.NewTurnAnalyzer(nil, nil),
		Summarizer:  analysis.NewSummarizer(nil),
		Evaluator:   trigger.NewEvaluator(nil, nil),
		Rules:       trigger.NewInMemoryRuleRepository(),
		Activations: trigger.NewInMemoryActivationRepository(),
	})
	manager := orders.NewManager(orders.NewInMemoryStore(), nil, nil, nil, nil)
	webhook, err := handlers.NewVendorWebhookHandler(manager, `{"acct-1": "secret"}`, nil)
	require.NoError(t, err)

	return New(&Config{
		Process:         handlers.NewProcessHandler(coordinator, nil),
		VendorWebhook:   webhook,
		Orders:          handlers.NewOrdersHandler(manager, nil, nil),
		Rules:           handlers.NewRulesHandler(trigger.NewInMemoryRuleRepository(), nil),
		Conversations:   handlers.NewConversationsHandler(analysis.NewInMemorySummaryStore(), trigger.NewInMemoryActivationRepository(), nil),
		AdminAuthSecret: adminSecret,
	})
}

func adminToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, httpmiddleware.OperatorClaims{
		Role: httpmiddleware.RoleOperator,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestRouterHealthz(t *testing.T) {
	r := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestRouterRequiresAccountHeader(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/conversations/process", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "X-Account-Id")
}

func TestRouterProcessWithAccountHeader(t *testing.T) {
	r := newTestRouter(t)

	body := `{"source": "retell", "payload": {"call_id": "call-7", "transcript_object": [{"role": "user", "content": "hello"}]}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/conversations/process", strings.NewReader(body))
	req.Header.Set(accountHeader, "acct-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)
}

func TestRouterOrderNotFound(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/orders/missing", nil)
	req.Header.Set(accountHeader, "acct-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterRulesRequireAdminToken(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/trigger-rules", nil)
	req.Header.Set(accountHeader, "acct-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterRulesWithAdminToken(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/trigger-rules", nil)
	req.Header.Set(accountHeader, "acct-1")
	req.Header.Set("Authorization", "Bearer "+adminToken(t, adminSecret))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rules")
}

func TestRouterRulesRejectWrongSecret(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/trigger-rules", nil)
	req.Header.Set(accountHeader, "acct-1")
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "other-secret"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterVendorWebhookRejectsUnsigned(t *testing.T) {
	r := newTestRouter(t)

	body := `{"order_id": "o-1", "vendor_id": "v-1", "response": "accept"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/vendor-response", strings.NewReader(body))
	req.Header.Set(accountHeader, "acct-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
