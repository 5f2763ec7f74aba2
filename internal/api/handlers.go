package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"call-classifier/internal/chain"
	"call-classifier/internal/classification"
	"call-classifier/internal/pipeline"
	"call-classifier/pkg/logger"
	"call-classifier/pkg/validator"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBatchSize = 100

type Server struct {
	Pipeline   *pipeline.Pipeline
	Dispatcher *pipeline.Dispatcher
	Validator  pipeline.Validator
	Gatherer   prometheus.Gatherer
}

type BatchRequest struct {
	Events []chain.Event `json:"events"`
}

// DispatchResponse is the body of a synchronous POST /events.
type DispatchResponse struct {
	EventID string `json:"event_id"`
	Matched bool   `json:"matched"`
	Step    string `json:"step,omitempty"`
	Result  any    `json:"result"`
}

type BatchResponse struct {
	Accepted []string `json:"accepted"`
	Error    string   `json:"error,omitempty"`
}

func NewServer(p *pipeline.Pipeline, d *pipeline.Dispatcher, val pipeline.Validator, g prometheus.Gatherer) *Server {
	return &Server{Pipeline: p, Dispatcher: d, Validator: val, Gatherer: g}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	wrap := func(h http.Handler) http.Handler {
		return RequestIDMiddleware(RecoverMiddleware(h))
	}
	mux.Handle("/events", wrap(http.HandlerFunc(s.handleSingleEvent)))
	mux.Handle("/events/batch", wrap(http.HandlerFunc(s.handleBatchEvents)))
	mux.Handle("/health", wrap(http.HandlerFunc(s.handleHealth)))
	mux.Handle("/stats", wrap(http.HandlerFunc(s.handleStats)))
	if s.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

// handleSingleEvent runs one event through the chain and answers with the
// outcome.
func (s *Server) handleSingleEvent(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rid := GetRequestID(r.Context())
	log := logger.Get().With("request_id", rid)

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		log.Warnw("request rejected", "method", r.Method, "path", r.URL.Path, "status", http.StatusMethodNotAllowed)
		return
	}

	var ev chain.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		log.Warnw("invalid JSON body", "error", err, "status", http.StatusBadRequest)
		return
	}

	env := pipeline.NewEnvelope(ev)
	if s.Validator != nil {
		if err := s.Validator.Validate(r.Context(), ev); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			log.Warnw("event rejected", "error", err, "status", http.StatusBadRequest)
			return
		}
	}

	out, err := s.Pipeline.Dispatch(r.Context(), env)
	if err != nil {
		status := statusFor(err)
		writeError(w, status, err.Error())
		log.Warnw("request failed",
			"event_id", out.EventID,
			"step", out.Step,
			"error", err,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return
	}

	writeJSON(w, http.StatusOK, DispatchResponse{
		EventID: out.EventID,
		Matched: out.Matched,
		Step:    out.Step,
		Result:  out.Result,
	})
	log.Infow("request completed",
		"event_id", out.EventID,
		"step", out.Step,
		"matched", out.Matched,
		"status", http.StatusOK,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// handleBatchEvents queues events for the worker pool and returns their ids
// without waiting for them.
func (s *Server) handleBatchEvents(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rid := GetRequestID(r.Context())
	log := logger.Get().With("request_id", rid)

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		log.Warnw("invalid method for /events/batch",
			"method", r.Method, "path", r.URL.Path, "status", http.StatusMethodNotAllowed,
		)
		return
	}

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		log.Warnw("invalid JSON for /events/batch",
			"error", err, "status", http.StatusBadRequest,
		)
		return
	}

	if len(req.Events) > maxBatchSize {
		writeError(w, http.StatusBadRequest, "too many events (max 100)")
		log.Warnw("batch rejected: too many events",
			"count", len(req.Events), "status", http.StatusBadRequest,
		)
		return
	}

	ids := make([]string, 0, len(req.Events))
	for _, ev := range req.Events {
		id, err := s.Dispatcher.Ingest(ev)
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, BatchResponse{Accepted: ids, Error: err.Error()})
			log.Warnw("batch partially accepted",
				"accepted", len(ids), "count", len(req.Events), "error", err, "status", http.StatusServiceUnavailable,
			)
			return
		}
		ids = append(ids, id)
	}

	writeJSON(w, http.StatusAccepted, BatchResponse{Accepted: ids})
	log.Infow("batch accepted",
		"count", len(req.Events),
		"event_ids", ids,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	rid := GetRequestID(r.Context())
	log := logger.Get().With("request_id", rid)

	healthy := s.Dispatcher == nil || s.Dispatcher.Context().Err() == nil
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]bool{"healthy": healthy})

	log.Debugw("health check", "path", r.URL.Path, "remote_addr", r.RemoteAddr, "healthy", healthy)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	rid := GetRequestID(r.Context())
	log := logger.Get().With("request_id", rid)

	m := s.Pipeline.Metrics()
	stats := map[string]interface{}{
		"events_received":            m.GetReceived(),
		"events_processed":           m.GetProcessed(),
		"events_unmatched":           m.GetUnmatched(),
		"events_failed":              m.GetFailed(),
		"average_processing_latency": m.AvgLatencyMS(),
		"uptime_seconds":             int(time.Since(m.StartTime()).Seconds()),
		"events_per_second":          m.EPS(),
		"steps":                      s.Pipeline.Steps(),
	}
	if s.Dispatcher != nil {
		stats["current_queue_depth"] = s.Dispatcher.QueueDepth()
		stats["active_workers"] = s.Dispatcher.WorkerCount()
	}

	writeJSON(w, http.StatusOK, stats)

	log.Debugw("stats requested",
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
		"stats", stats,
	)
}

// statusFor maps a dispatch error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, validator.ErrInvalidEvent):
		return http.StatusBadRequest
	case errors.Is(err, classification.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, classification.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, classification.ErrClassifierFailed), errors.Is(err, classification.ErrUnexpectedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
