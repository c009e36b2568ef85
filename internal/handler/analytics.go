package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/riskmesh/riskmesh/internal/analytics"
	"github.com/riskmesh/riskmesh/internal/domain"
)

// AnalyticsHandler serves the /v1/analytics reporting routes.
type AnalyticsHandler struct {
	reader      *analytics.Reader
	performance *analytics.Performance
}

// NewAnalyticsHandler creates an AnalyticsHandler.
func NewAnalyticsHandler(reader *analytics.Reader, perf *analytics.Performance) *AnalyticsHandler {
	return &AnalyticsHandler{reader: reader, performance: perf}
}

// Distribution handles GET /v1/analytics/distribution.
func (h *AnalyticsHandler) Distribution(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.reader.Distribution(r.Context())
	if err != nil {
		RespondError(w, domain.ErrInternal("query risk distribution", err))
		return
	}
	RespondJSON(w, http.StatusOK, buckets)
}

// TopRisky handles GET /v1/analytics/top-risky.
func (h *AnalyticsHandler) TopRisky(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	users, err := h.reader.TopRisky(r.Context(), limit)
	if err != nil {
		RespondError(w, domain.ErrInternal("query top risky users", err))
		return
	}
	RespondJSON(w, http.StatusOK, users)
}

// UserProfile handles GET /v1/analytics/users/{id}.
func (h *AnalyticsHandler) UserProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	profile, err := h.reader.UserProfile(r.Context(), userID)
	if err != nil {
		RespondError(w, domain.ErrInternal("query user profile", err))
		return
	}
	RespondJSON(w, http.StatusOK, profile)
}

// Performance handles GET /v1/analytics/performance.
func (h *AnalyticsHandler) Performance(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.performance.Snapshot())
}
