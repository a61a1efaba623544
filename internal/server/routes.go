package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Question transports
	mux.HandleFunc("/api/ask", s.app.AskHandler.StreamAnswer) // POST (JSON) or GET (?question=) - SSE stream
	mux.HandleFunc("/ws/ask", s.app.AskWSHandler.HandleAsk)   // WebSocket - first message is the question

	// API routes - System
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler) // GET - warm browser state
	mux.HandleFunc("/metrics", s.handleMetrics)

	// Root and 404 handler
	mux.HandleFunc("/", s.handleRoot)

	return mux
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.app.APIHandler.NotFoundHandler(w, r)
		return
	}
	RouteByMethod(w, r, MethodRouter{
		http.MethodGet: s.app.APIHandler.IndexHandler,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	RouteByMethod(w, r, MethodRouter{
		http.MethodGet: s.app.Metrics.Handler().ServeHTTP,
	})
}
