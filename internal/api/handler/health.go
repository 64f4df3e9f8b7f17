package handler

import (
	"net/http"

	"github.com/tris077/Atomera/internal/api/response"
	"github.com/tris077/Atomera/internal/cache"
	"github.com/tris077/Atomera/internal/store"
)

// NewHealthHandler returns the handler for GET /api/v1/health. Degraded
// dependencies are reported but do not fail the endpoint; orchestrators
// decide what to do with the component states.
func NewHealthHandler(st store.Store, c cache.Cache, backendName, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbStatus := "ok"
		if err := st.Ping(r.Context()); err != nil {
			dbStatus = "unreachable"
		}
		cacheStatus := "ok"
		if c == nil {
			cacheStatus = "disabled"
		} else if err := c.Ping(r.Context()); err != nil {
			cacheStatus = "unreachable"
		}

		status := "ok"
		if dbStatus != "ok" {
			status = "degraded"
		}

		response.JSON(w, map[string]any{
			"status":   status,
			"version":  version,
			"backend":  backendName,
			"database": dbStatus,
			"cache":    cacheStatus,
		})
	}
}
