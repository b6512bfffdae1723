// Package decision turns one reading and an optional anomaly probability into
// a leak verdict. The engine is pure and stateless: every call is independent
// and no signal can veto another.
package decision

import (
	"errors"
	"strings"
)

const (
	StatusLeak   = "Leak"
	StatusNormal = "Normal"

	// ReasonExplicitStatus fires when the reading itself reports a leak.
	ReasonExplicitStatus = "explicit status"
	// ReasonFlowThreshold fires when flow rate meets the configured threshold.
	ReasonFlowThreshold = "flow threshold exceeded"
	// ReasonAnomalyScore fires when the anomaly probability exceeds the cutoff.
	ReasonAnomalyScore = "anomaly score"
)

// DefaultFlowThreshold matches the reference leak flow-rate threshold.
const DefaultFlowThreshold = 40.0

// DefaultAnomalyCutoff is the default probability cutoff for the optional
// anomaly signal.
const DefaultAnomalyCutoff = 0.8

// Verdict is the engine's output classification with the signal that fired.
type Verdict struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Leak reports whether the verdict is a leak.
func (v Verdict) Leak() bool { return v.Status == StatusLeak }

// Engine evaluates the strict-OR leak rule.
type Engine struct {
	flowThreshold float64
	anomalyCutoff float64
}

// Option configures the engine.
type Option func(*Engine)

// WithFlowThreshold overrides the flow-rate leak threshold.
func WithFlowThreshold(threshold float64) Option {
	return func(e *Engine) {
		if threshold > 0 {
			e.flowThreshold = threshold
		}
	}
}

// WithAnomalyCutoff overrides the anomaly-probability cutoff.
func WithAnomalyCutoff(cutoff float64) Option {
	return func(e *Engine) {
		if cutoff > 0 && cutoff <= 1 {
			e.anomalyCutoff = cutoff
		}
	}
}

// NewEngine constructs a decision engine.
func NewEngine(opts ...Option) (*Engine, error) {
	engine := &Engine{
		flowThreshold: DefaultFlowThreshold,
		anomalyCutoff: DefaultAnomalyCutoff,
	}
	for _, opt := range opts {
		opt(engine)
	}
	if engine.flowThreshold <= 0 {
		return nil, errors.New("decision: flow threshold must be positive")
	}
	return engine, nil
}

// FlowThreshold returns the configured threshold.
func (e *Engine) FlowThreshold() float64 {
	if e == nil {
		return 0
	}
	return e.flowThreshold
}

// Decide evaluates the rule in priority order: explicit status, flow-rate
// threshold, then the optional anomaly probability. anomalyProbability is nil
// when the anomaly signal is unavailable; the engine still produces a verdict
// from the remaining signals (fail-open).
func (e *Engine) Decide(status string, flowRate float64, anomalyProbability *float64) Verdict {
	if e == nil {
		return Verdict{Status: StatusNormal}
	}
	if strings.EqualFold(strings.TrimSpace(status), StatusLeak) {
		return Verdict{Status: StatusLeak, Reason: ReasonExplicitStatus}
	}
	if flowRate >= e.flowThreshold {
		return Verdict{Status: StatusLeak, Reason: ReasonFlowThreshold}
	}
	if anomalyProbability != nil && *anomalyProbability > e.anomalyCutoff {
		return Verdict{Status: StatusLeak, Reason: ReasonAnomalyScore}
	}
	return Verdict{Status: StatusNormal}
}
