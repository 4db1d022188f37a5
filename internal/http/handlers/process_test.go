package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldserve/dispatch-ai-platform/internal/analysis"
	"github.com/fieldserve/dispatch-ai-platform/internal/pipeline"
	"github.com/fieldserve/dispatch-ai-platform/internal/tenancy"
	"github.com/fieldserve/dispatch-ai-platform/internal/transcript"
	"github.com/fieldserve/dispatch-ai-platform/internal/trigger"
)

const retellBody = `{
	"call_id": "call-900",
	"from_number": "+14155550100",
	"direction": "inbound",
	"call_status": "ended",
	"transcript_object": [
		{"role": "agent", "content": "Thanks for calling, how can I help?"},
		{"role": "user", "content": "My sink is leaking badly, can you help?"}
	]
}`

func newProcessHandler(t *testing.T) *ProcessHandler {
	t.Helper()
	coordinator := pipeline.NewCoordinator(pipeline.Deps{
		Normalizer:  transcript.NewNormalizer(nil),
		Turns:       analysis.NewTurnAnalyzer(nil, nil),
		Summarizer:  analysis.NewSummarizer(nil),
		Evaluator:   trigger.NewEvaluator(nil, nil),
		Rules:       trigger.NewInMemoryRuleRepository(),
		Activations: trigger.NewInMemoryActivationRepository(),
	})
	return NewProcessHandler(coordinator, nil)
}

func processRequest(body string, withAccount bool) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/conversations/process", strings.NewReader(body))
	if withAccount {
		req = req.WithContext(tenancy.WithAccountID(req.Context(), "acct-1"))
	}
	return req
}

func TestProcessHandlerSuccess(t *testing.T) {
	h := newProcessHandler(t)
	body := `{"source": "retell", "payload": ` + retellBody + `}`

	rec := httptest.NewRecorder()
	h.Process(rec, processRequest(body, true))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)
	assert.Contains(t, rec.Body.String(), `"call-900"`)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestProcessHandlerMissingAccount(t *testing.T) {
	h := newProcessHandler(t)
	body := `{"source": "retell", "payload": ` + retellBody + `}`

	rec := httptest.NewRecorder()
	h.Process(rec, processRequest(body, false))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessHandlerInvalidJSON(t *testing.T) {
	h := newProcessHandler(t)

	rec := httptest.NewRecorder()
	h.Process(rec, processRequest("{not json", true))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessHandlerMissingSource(t *testing.T) {
	h := newProcessHandler(t)

	rec := httptest.NewRecorder()
	h.Process(rec, processRequest(`{"payload": {}}`, true))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessHandlerUnsupportedSource(t *testing.T) {
	h := newProcessHandler(t)
	body := `{"source": "fax", "payload": ` + retellBody + `}`

	rec := httptest.NewRecorder()
	h.Process(rec, processRequest(body, true))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported_source")
}
