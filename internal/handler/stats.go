package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/riskmesh/riskmesh/internal/domain"
	"github.com/riskmesh/riskmesh/internal/graph"
	"github.com/riskmesh/riskmesh/internal/risk/engine"
)

// StatsHandler serves GET /v1/stats and the per-entity risk lookup.
type StatsHandler struct {
	graph  *graph.Store
	engine *engine.Engine
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(g *graph.Store, e *engine.Engine) *StatsHandler {
	return &StatsHandler{graph: g, engine: e}
}

// Get handles GET /v1/stats.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.graph.Snapshot())
}

// entityRiskResponse is the payload for GET /v1/stats/entity/{type}/{id}.
type entityRiskResponse struct {
	ID   string          `json:"id"`
	Type domain.NodeType `json:"type"`
	Risk float64         `json:"risk"`
}

// Entity handles GET /v1/stats/entity/{type}/{id}, RiskMesh's cache-backed
// fast path for a single entity's current risk.
func (h *StatsHandler) Entity(w http.ResponseWriter, r *http.Request) {
	typ := domain.NodeType(chi.URLParam(r, "type"))
	id := chi.URLParam(r, "id")

	if err := domain.ValidateNodeType(typ); err != nil {
		RespondError(w, domain.ErrValidation(err.Error()))
		return
	}

	risk, ok := h.engine.EntityRisk(r.Context(), id, typ)
	if !ok {
		RespondError(w, domain.ErrNotFound("entity", id))
		return
	}

	RespondJSON(w, http.StatusOK, entityRiskResponse{ID: id, Type: typ, Risk: risk})
}
