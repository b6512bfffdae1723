// Package pipeline wires the inference-and-decision path: one inbound reading
// produces one verdict and at most one alert attempt, synchronously.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"aquawatch/internal/anomaly"
	"aquawatch/internal/decision"
	"aquawatch/internal/dispatch"
	"aquawatch/internal/forecast"
	"aquawatch/internal/ingest"
	"aquawatch/internal/observability/metrics"
	"aquawatch/internal/scaling"
)

// ErrUnknownDevice reports a forecast request for a device that never sent a
// reading.
var ErrUnknownDevice = errors.New("pipeline: unknown device")

// ErrWindowNotReady reports a forecast request before the device has filled
// its rolling window.
var ErrWindowNotReady = errors.New("pipeline: window not ready")

// Prediction is one forecast step with its caller-assigned timestamp.
type Prediction struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Dispatcher dispatches one alert event.
type Dispatcher interface {
	Dispatch(ctx context.Context, event dispatch.Event) dispatch.Outcome
}

// deviceState is the per-device forecasting state. Access is serialized
// through its mutex: concurrent readings for the same device must not
// interleave roll-forwards.
type deviceState struct {
	mu       sync.Mutex
	pending  [][]float64
	window   *forecast.Window
	lastSeen time.Time
}

// Service runs readings through scaling, scoring, decision and dispatch, and
// keeps one rolling window per device for forecasting.
type Service struct {
	scaler     *scaling.Scaler
	scorer     *anomaly.Scorer
	forecaster *forecast.Forecaster
	engine     *decision.Engine
	dispatcher Dispatcher
	logger     *log.Logger

	stepInterval time.Duration

	mu      sync.Mutex
	devices map[string]*deviceState
}

// NewService constructs the pipeline service. The scaler, scorer and
// forecaster are shared read-only; every feature in the trained ordering must
// be one the reading supplies.
func NewService(scaler *scaling.Scaler, scorer *anomaly.Scorer, forecaster *forecast.Forecaster, engine *decision.Engine, dispatcher Dispatcher, stepInterval time.Duration, logger *log.Logger) (*Service, error) {
	if scaler == nil || scaler.Params() == nil {
		return nil, errors.New("pipeline: nil scaler")
	}
	if scorer == nil {
		return nil, errors.New("pipeline: nil anomaly scorer")
	}
	if forecaster == nil {
		return nil, errors.New("pipeline: nil forecaster")
	}
	if engine == nil {
		return nil, errors.New("pipeline: nil decision engine")
	}
	if dispatcher == nil {
		return nil, errors.New("pipeline: nil dispatcher")
	}
	if stepInterval <= 0 {
		return nil, errors.New("pipeline: step interval must be positive")
	}
	if logger == nil {
		logger = log.Default()
	}
	for _, feature := range scaler.Params().Features {
		if !knownFeature(feature) {
			return nil, fmt.Errorf("pipeline: trained feature %q has no reading field", feature)
		}
	}
	return &Service{
		scaler:       scaler,
		scorer:       scorer,
		forecaster:   forecaster,
		engine:       engine,
		dispatcher:   dispatcher,
		logger:       logger,
		stepInterval: stepInterval,
		devices:      make(map[string]*deviceState),
	}, nil
}

// Process implements ingest.Processor. The anomaly signal is optional: a
// scoring failure is reported and the verdict falls back to the remaining
// signals, never blocking a decision.
func (s *Service) Process(ctx context.Context, reading ingest.Reading) (ingest.Result, error) {
	if s == nil {
		return ingest.Result{}, errors.New("pipeline: nil service")
	}

	raw := s.featureVector(reading)
	scaled, err := s.scaler.Scale(raw)
	if err != nil {
		// Ordering mismatches are integration errors, not data errors.
		return ingest.Result{}, err
	}

	var probability *float64
	if score, err := s.scorer.Score(scaled); err != nil {
		metrics.IncAnomalySignalFailure()
		s.logger.Printf("pipeline: anomaly score unavailable for %s: %v", reading.DeviceID, err)
	} else {
		p := s.scorer.Probability(score)
		probability = &p
	}

	verdict := s.engine.Decide(reading.Status, reading.FlowRate, probability)
	metrics.IncVerdict(verdict.Status, verdict.Reason)

	s.observe(reading, scaled)

	result := ingest.Result{Verdict: verdict, LeakDetected: verdict.Leak()}
	if verdict.Leak() {
		outcome := s.dispatcher.Dispatch(ctx, dispatch.Event{
			DeviceID:        reading.DeviceID,
			Timestamp:       reading.Timestamp,
			FlowRate:        reading.FlowRate,
			WaterLevel:      reading.WaterLevel,
			Temperature:     reading.Temperature,
			Status:          decision.StatusLeak,
			LeakProbability: probability,
		})
		result.AlertSent = outcome.Delivered
	}
	return result, nil
}

// Forecast produces the device's N-step forecast. The observed window is
// cloned first: prediction roll-forward consumes the clone, never the
// device's live state.
func (s *Service) Forecast(deviceID string, steps int) ([]Prediction, error) {
	if s == nil {
		return nil, errors.New("pipeline: nil service")
	}
	if deviceID == "" {
		return nil, errors.New("pipeline: empty device id")
	}
	if steps <= 0 {
		return nil, fmt.Errorf("pipeline: steps must be positive, got %d", steps)
	}

	s.mu.Lock()
	state, ok := s.devices[deviceID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrUnknownDevice
	}

	state.mu.Lock()
	window := state.window.Clone()
	lastSeen := state.lastSeen
	state.mu.Unlock()
	if window == nil {
		return nil, ErrWindowNotReady
	}

	values, err := s.forecaster.Forecast(window, steps)
	if err != nil {
		return nil, err
	}
	predictions := make([]Prediction, len(values))
	for i, value := range values {
		predictions[i] = Prediction{
			Timestamp: lastSeen.Add(time.Duration(i+1) * s.stepInterval),
			Value:     value,
		}
	}
	return predictions, nil
}

// TargetFeature returns the forecaster's target feature name.
func (s *Service) TargetFeature() string {
	if s == nil {
		return ""
	}
	return s.forecaster.TargetFeature()
}

// observe appends the scaled row to the device's rolling window, creating it
// once enough rows have accumulated.
func (s *Service) observe(reading ingest.Reading, scaled []float64) {
	s.mu.Lock()
	state, ok := s.devices[reading.DeviceID]
	if !ok {
		state = &deviceState{}
		s.devices[reading.DeviceID] = state
	}
	s.mu.Unlock()

	size := s.forecaster.WindowSize()

	state.mu.Lock()
	defer state.mu.Unlock()
	state.lastSeen = reading.Timestamp
	if state.window != nil {
		if err := state.window.Roll(scaled); err != nil {
			s.logger.Printf("pipeline: window roll failed for %s: %v", reading.DeviceID, err)
		}
		return
	}
	state.pending = append(state.pending, append([]float64(nil), scaled...))
	if len(state.pending) < size {
		return
	}
	window, err := forecast.NewWindow(size, state.pending[len(state.pending)-size:])
	if err != nil {
		s.logger.Printf("pipeline: window init failed for %s: %v", reading.DeviceID, err)
		return
	}
	state.window = window
	state.pending = nil
}

func (s *Service) featureVector(reading ingest.Reading) []float64 {
	features := s.scaler.Params().Features
	raw := make([]float64, len(features))
	for i, feature := range features {
		raw[i] = featureValue(reading, feature)
	}
	return raw
}

func knownFeature(name string) bool {
	switch name {
	case "flow_rate", "water_level", "temperature":
		return true
	default:
		return false
	}
}

func featureValue(reading ingest.Reading, name string) float64 {
	switch name {
	case "flow_rate":
		return reading.FlowRate
	case "water_level":
		return reading.WaterLevel
	case "temperature":
		return reading.Temperature
	default:
		return 0
	}
}
