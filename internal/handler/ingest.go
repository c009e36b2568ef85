package handler

import (
	"net/http"

	"github.com/riskmesh/riskmesh/internal/analytics"
	"github.com/riskmesh/riskmesh/internal/auth"
	"github.com/riskmesh/riskmesh/internal/domain"
	"github.com/riskmesh/riskmesh/internal/guard"
	"github.com/riskmesh/riskmesh/internal/risk/engine"
)

// IngestHandler serves POST /v1/events, the ingest path every transaction
// travels through before a scoring response is returned.
type IngestHandler struct {
	engine      *engine.Engine
	rateLimiter *guard.RateLimiter
	performance *analytics.Performance
}

// NewIngestHandler creates an IngestHandler.
func NewIngestHandler(eng *engine.Engine, rl *guard.RateLimiter, perf *analytics.Performance) *IngestHandler {
	return &IngestHandler{engine: eng, rateLimiter: rl, performance: perf}
}

// Score handles POST /v1/events.
func (h *IngestHandler) Score(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	if gr := h.rateLimiter.Check(r.Context(), principal); !gr.Allowed {
		RespondError(w, domain.ErrRateLimited(gr.Reason))
		return
	}

	var event domain.TransactionEvent
	if err := DecodeJSON(r, &event); err != nil {
		RespondError(w, domain.ErrValidation("malformed request body"))
		return
	}

	resp, err := h.engine.Score(r.Context(), principal, event)
	if err != nil {
		RespondError(w, err)
		return
	}

	if h.performance != nil {
		h.performance.RecordEvent(analytics.EventSummary{
			Flagged:          resp.Flagged(),
			LatencyMS:        resp.TotalLatencyMS,
			PropagationDepth: resp.PropagationDepth,
		})
	}

	RespondJSON(w, http.StatusOK, resp)
}
