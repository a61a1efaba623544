package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/khawaidev/fapi/internal/common"
	"github.com/khawaidev/fapi/internal/services/browser"
)

// StatusHandler reports warm browser readiness and runtime information
type StatusHandler struct {
	pool      *browser.WarmPool
	sessions  *browser.SessionProvider
	config    *common.Config
	target    string
	startTime time.Time
	logger    arbor.ILogger
}

// NewStatusHandler creates a new StatusHandler; pool is nil when warm-up is disabled
func NewStatusHandler(pool *browser.WarmPool, sessions *browser.SessionProvider, config *common.Config, target string, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		pool:      pool,
		sessions:  sessions,
		config:    config,
		target:    target,
		startTime: time.Now(),
		logger:    logger,
	}
}

// StatusResponse is the body of GET /api/status
type StatusResponse struct {
	Version        string             `json:"version"`
	Environment    string             `json:"environment"`
	Uptime         string             `json:"uptime"`
	Target         string             `json:"target"`
	Headless       bool               `json:"headless"`
	WarmupEnabled  bool               `json:"warmup_enabled"`
	WarmPool       browser.PoolStatus `json:"warm_pool"`
	ActiveSessions int64              `json:"active_sessions"`
	Goroutines     int64              `json:"spawned_goroutines"`
}

// GetStatusHandler handles GET /api/status
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	status := StatusResponse{
		Version:       common.GetVersion(),
		Environment:   h.config.Environment,
		Uptime:        time.Since(h.startTime).Round(time.Second).String(),
		Target:        h.target,
		Headless:      h.config.Browser.Headless,
		WarmupEnabled: h.config.Warmup.Enabled,
		WarmPool:      browser.PoolStatus{State: "disabled"},
		Goroutines:    common.GetGoroutineCount(),
	}
	if h.pool != nil {
		status.WarmPool = h.pool.Snapshot()
	}
	if h.sessions != nil {
		status.ActiveSessions = h.sessions.ActiveSessions()
	}

	WriteJSON(w, http.StatusOK, status)
}
