package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"aquawatch/internal/decision"
	"aquawatch/internal/observability/metrics"
)

// Result is what processing one reading produced.
type Result struct {
	Verdict      decision.Verdict
	LeakDetected bool
	AlertSent    bool
}

// Processor runs a validated reading through the inference-and-decision
// pipeline.
type Processor interface {
	Process(ctx context.Context, reading Reading) (Result, error)
}

// Handler ingests sensor readings over HTTP.
type Handler struct {
	processor Processor
	logger    *log.Logger
	now       func() time.Time
}

// NewHandler constructs an ingest handler.
func NewHandler(processor Processor, logger *log.Logger) (*Handler, error) {
	if processor == nil {
		return nil, errors.New("ingest: nil processor")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{processor: processor, logger: logger, now: time.Now}, nil
}

type ingestResponse struct {
	Message      string `json:"message"`
	LeakDetected bool   `json:"leak_detected"`
	AlertSent    bool   `json:"alert_sent"`
	Reason       string `json:"reason,omitempty"`
}

// ServeHTTP validates and processes one reading. Only validation failures
// reject; the response always carries the decision, even when outward
// delivery failed.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	start := h.now()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Printf("ingest: read body error: %v", err)
		metrics.ObserveIngest(metrics.ResultRejected, time.Since(start))
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var raw rawReading
	if err := json.Unmarshal(body, &raw); err != nil {
		h.logger.Printf("ingest: decode error: %v", err)
		metrics.ObserveIngest(metrics.ResultRejected, time.Since(start))
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	reading, err := raw.toReading(h.now())
	if err != nil {
		h.logger.Printf("ingest: invalid reading: %v", err)
		metrics.ObserveIngest(metrics.ResultRejected, time.Since(start))
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	result, err := h.processor.Process(r.Context(), reading)
	if err != nil {
		h.logger.Printf("ingest: process error for %s: %v", reading.DeviceID, err)
		metrics.ObserveIngest(metrics.ResultError, time.Since(start))
		http.Error(w, "processing error", http.StatusInternalServerError)
		return
	}

	metrics.ObserveIngest(metrics.ResultSuccess, time.Since(start))
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ingestResponse{
		Message:      "Data received",
		LeakDetected: result.LeakDetected,
		AlertSent:    result.AlertSent,
		Reason:       result.Verdict.Reason,
	})
}
