package handler

import "net/http"

// HealthHandler reports liveness only. It never checks Postgres, Redis, or
// any other dependency — a degraded dependency must not take the process
// out of a load balancer's rotation while the ingest path is still able to
// serve from cache and degrade sink writes to the dead-letter path.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
