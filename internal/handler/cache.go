package handler

import (
	"net/http"

	"github.com/riskmesh/riskmesh/internal/cache"
)

// CacheHandler serves GET /v1/cache/stats.
type CacheHandler struct {
	cache cache.Cache
}

// NewCacheHandler creates a CacheHandler.
func NewCacheHandler(c cache.Cache) *CacheHandler {
	return &CacheHandler{cache: c}
}

// Stats handles GET /v1/cache/stats.
func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.cache.Stats())
}
