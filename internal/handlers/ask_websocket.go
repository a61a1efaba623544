package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/khawaidev/fapi/internal/common"
	"github.com/khawaidev/fapi/internal/metrics"
	"github.com/khawaidev/fapi/internal/models"
	"github.com/khawaidev/fapi/internal/services/synthesis"
)

const (
	wsQuestionWait = 30 * time.Second
	wsWriteWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is open for every route
	},
}

// AskWebSocketHandler answers one question per WebSocket connection
type AskWebSocketHandler struct {
	service *synthesis.Service
	logger  arbor.ILogger
	metrics *metrics.Metrics
}

func NewAskWebSocketHandler(service *synthesis.Service, logger arbor.ILogger, m *metrics.Metrics) *AskWebSocketHandler {
	return &AskWebSocketHandler{
		service: service,
		logger:  logger,
		metrics: m,
	}
}

// HandleAsk handles GET /ws/ask. The client's first message is the JSON question;
// every event is then pushed as a JSON text message and the server closes the
// connection after done.
func (h *AskWebSocketHandler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxQuestionBytes)
	conn.SetReadDeadline(time.Now().Add(wsQuestionWait))

	var req models.AskRequest
	if err := conn.ReadJSON(&req); err != nil {
		h.metrics.ObserveAsk(metrics.TransportWebSocket, metrics.OutcomeRejected)
		closeWebSocket(conn, websocket.CloseUnsupportedData, "Invalid request body")
		return
	}
	if err := ValidateAsk(&req); err != nil {
		h.metrics.ObserveAsk(metrics.TransportWebSocket, metrics.OutcomeRejected)
		closeWebSocket(conn, websocket.ClosePolicyViolation, "question is required")
		return
	}
	conn.SetReadDeadline(time.Time{})

	// A hijacked connection does not cancel r.Context(), so a reader watches for
	// the client going away and cancels the question
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	common.SafeGo(h.logger, "ws-ask-reader", func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	})

	sink := &wsSink{conn: conn}
	err = h.service.Stream(ctx, req.Question, sink)
	h.metrics.ObserveAsk(metrics.TransportWebSocket, outcome(ctx.Err(), err))

	closeWebSocket(conn, websocket.CloseNormalClosure, "")
}

// wsSink writes events as JSON text messages
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) Send(event models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteJSON(event)
}

func closeWebSocket(conn *websocket.Conn, code int, text string) {
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(wsWriteWait))
}
