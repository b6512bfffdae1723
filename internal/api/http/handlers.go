// Package apihttp serves the operator-facing read API: forecasts, the alert
// log, and alert log exports.
package apihttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"aquawatch/internal/dispatch"
	"aquawatch/internal/observability/metrics"
	"aquawatch/internal/pipeline"
	"aquawatch/internal/report"
)

// Forecaster produces per-device forecasts.
type Forecaster interface {
	Forecast(deviceID string, steps int) ([]pipeline.Prediction, error)
}

// AlertReader reads the durable alert log.
type AlertReader interface {
	ReadAll() ([]dispatch.Record, error)
}

// ForecastHandler serves GET /api/v1/forecast.
type ForecastHandler struct {
	forecaster   Forecaster
	defaultSteps int
	now          func() time.Time
}

// NewForecastHandler constructs a ForecastHandler. defaultSteps is used when
// the steps query parameter is absent.
func NewForecastHandler(forecaster Forecaster, defaultSteps int) (*ForecastHandler, error) {
	if forecaster == nil {
		return nil, errors.New("apihttp: nil forecaster")
	}
	if defaultSteps <= 0 {
		return nil, fmt.Errorf("apihttp: default steps must be positive, got %d", defaultSteps)
	}
	return &ForecastHandler{forecaster: forecaster, defaultSteps: defaultSteps, now: time.Now}, nil
}

type forecastResponse struct {
	DeviceID    string                `json:"device_id"`
	Predictions []pipeline.Prediction `json:"predictions"`
}

func (h *ForecastHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	start := h.now()

	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		metrics.ObserveForecast(metrics.ResultRejected, time.Since(start))
		http.Error(w, "device_id is required", http.StatusBadRequest)
		return
	}
	steps := h.defaultSteps
	if raw := r.URL.Query().Get("steps"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			metrics.ObserveForecast(metrics.ResultRejected, time.Since(start))
			http.Error(w, "steps must be a positive integer", http.StatusBadRequest)
			return
		}
		steps = parsed
	}

	predictions, err := h.forecaster.Forecast(deviceID, steps)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrUnknownDevice):
			metrics.ObserveForecast(metrics.ResultRejected, time.Since(start))
			http.Error(w, "unknown device", http.StatusNotFound)
		case errors.Is(err, pipeline.ErrWindowNotReady):
			metrics.ObserveForecast(metrics.ResultRejected, time.Since(start))
			http.Error(w, "observation window not ready", http.StatusConflict)
		default:
			metrics.ObserveForecast(metrics.ResultError, time.Since(start))
			http.Error(w, "forecast error", http.StatusInternalServerError)
		}
		return
	}

	metrics.ObserveForecast(metrics.ResultSuccess, time.Since(start))
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(forecastResponse{DeviceID: deviceID, Predictions: predictions})
}

// AlertsHandler serves GET /api/v1/alerts.
type AlertsHandler struct {
	reader AlertReader
}

// NewAlertsHandler constructs an AlertsHandler.
func NewAlertsHandler(reader AlertReader) (*AlertsHandler, error) {
	if reader == nil {
		return nil, errors.New("apihttp: nil alert reader")
	}
	return &AlertsHandler{reader: reader}, nil
}

func (h *AlertsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	records, err := h.reader.ReadAll()
	if err != nil {
		http.Error(w, "read alert log error", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []dispatch.Record{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(records)
}

// ExportAlertsHandler serves GET /api/v1/alerts/export.xlsx and export.pdf.
type ExportAlertsHandler struct {
	reader AlertReader
	format string
	now    func() time.Time
}

// NewExportAlertsHandler constructs an export handler for one format,
// "xlsx" or "pdf".
func NewExportAlertsHandler(reader AlertReader, format string) (*ExportAlertsHandler, error) {
	if reader == nil {
		return nil, errors.New("apihttp: nil alert reader")
	}
	if format != "xlsx" && format != "pdf" {
		return nil, fmt.Errorf("apihttp: unsupported export format %q", format)
	}
	return &ExportAlertsHandler{reader: reader, format: format, now: time.Now}, nil
}

func (h *ExportAlertsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	records, err := h.reader.ReadAll()
	if err != nil {
		http.Error(w, "read alert log error", http.StatusInternalServerError)
		return
	}

	var payload []byte
	var contentType string
	switch h.format {
	case "xlsx":
		payload, err = report.BuildAlertsXLSX(records, h.now())
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "pdf":
		payload, err = report.BuildAlertsPDF(records, h.now())
		contentType = "application/pdf"
	}
	if err != nil {
		http.Error(w, "build export error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "alerts."+h.format))
	_, _ = w.Write(payload)
}

// HealthzHandler reports liveness.
type HealthzHandler struct{}

func (HealthzHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
