package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/fieldserve/dispatch-ai-platform/internal/pipeline"
	"github.com/fieldserve/dispatch-ai-platform/internal/tenancy"
	"github.com/fieldserve/dispatch-ai-platform/pkg/logging"
)

const maxProcessBody = 1 << 20 // 1 MiB

// ProcessRequest is the body of a conversation-processing call. Payload is the
// raw call record in the source's own schema.
type ProcessRequest struct {
	Source  string           `json:"source"`
	Payload json.RawMessage  `json:"payload"`
	Options pipeline.Options `json:"options"`
}

// ProcessHandler runs the conversation pipeline on demand.
type ProcessHandler struct {
	coordinator *pipeline.Coordinator
	logger      *logging.Logger
}

// NewProcessHandler creates the handler.
func NewProcessHandler(coordinator *pipeline.Coordinator, logger *logging.Logger) *ProcessHandler {
	if coordinator == nil {
		panic("handlers: coordinator required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ProcessHandler{coordinator: coordinator, logger: logger}
}

// Process handles POST /v1/conversations/process.
func (h *ProcessHandler) Process(w http.ResponseWriter, r *http.Request) {
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

	var req ProcessRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Source == "" || len(req.Payload) == 0 {
		writeError(w, http.StatusBadRequest, "source and payload required")
		return
	}

	result := h.coordinator.Process(r.Context(), req.Payload, req.Source, accountID, req.Options)

	status := http.StatusOK
	if !result.Success {
		switch result.Err.Kind {
		case pipeline.ErrValidation, pipeline.ErrUnsupportedSource:
			status = http.StatusBadRequest
		case pipeline.ErrTimeout:
			status = http.StatusGatewayTimeout
		default:
			status = http.StatusInternalServerError
		}
	}
	writeJSON(w, status, result)
}
