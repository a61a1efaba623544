package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/khawaidev/fapi/internal/common"
)

type APIHandler struct {
	logger arbor.ILogger
}

func NewAPIHandler(logger arbor.ILogger) *APIHandler {
	return &APIHandler{
		logger: logger,
	}
}

// VersionHandler returns version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version":    common.GetVersion(),
		"build":      common.GetBuild(),
		"git_commit": common.GetGitCommit(),
	})
}

// HealthHandler returns health check status
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// IndexHandler describes the service and its endpoints
func (h *APIHandler) IndexHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"service": "fapi",
		"version": common.GetVersion(),
		"endpoints": map[string]string{
			"POST /api/ask":   "Ask a question, answered as a Server-Sent Events stream",
			"GET /api/ask":    "EventSource form of /api/ask with ?question=",
			"GET /ws/ask":     "WebSocket form of /api/ask; send {\"question\": ...} first",
			"GET /api/status": "Warm browser state",
			"GET /api/health": "Liveness",
			"GET /metrics":    "Prometheus metrics",
		},
	})
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
