package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/khawaidev/fapi/internal/metrics"
	"github.com/khawaidev/fapi/internal/models"
	"github.com/khawaidev/fapi/internal/services/synthesis"
)

// AskHandler streams answers as Server-Sent Events
type AskHandler struct {
	service *synthesis.Service
	logger  arbor.ILogger
	metrics *metrics.Metrics
}

func NewAskHandler(service *synthesis.Service, logger arbor.ILogger, m *metrics.Metrics) *AskHandler {
	return &AskHandler{
		service: service,
		logger:  logger,
		metrics: m,
	}
}

// StreamAnswer handles POST /api/ask with a JSON body, and GET /api/ask?question=
// for EventSource clients. Each event is written as a bare data line so
// EventSource.onmessage receives all of them.
func (h *AskHandler) StreamAnswer(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost, http.MethodGet) {
		return
	}

	var req models.AskRequest
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQuestionBytes)).Decode(&req); err != nil {
			h.metrics.ObserveAsk(metrics.TransportSSE, metrics.OutcomeRejected)
			WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	} else {
		req.Question = r.URL.Query().Get("question")
	}

	if err := ValidateAsk(&req); err != nil {
		h.metrics.ObserveAsk(metrics.TransportSSE, metrics.OutcomeRejected)
		WriteError(w, http.StatusBadRequest, "question is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "SSE not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	err := h.service.Stream(r.Context(), req.Question, &sseSink{w: w, flusher: flusher})
	h.metrics.ObserveAsk(metrics.TransportSSE, outcome(r.Context().Err(), err))
}

// sseSink writes events to an open SSE response
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseSink) Send(event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// outcome labels a finished stream for metrics
func outcome(ctxErr, err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case ctxErr != nil || errors.Is(err, synthesis.ErrSinkClosed):
		return metrics.OutcomeAbandoned
	default:
		return metrics.OutcomeError
	}
}
