package forecast

import (
	"errors"
	"fmt"
)

// ErrModelUnavailable reports that the forecast model artifact is not loaded.
var ErrModelUnavailable = errors.New("forecast: model unavailable")

// Model holds frozen weights for single-step prediction of one target feature
// from a fixed-length window. The weights form a linear map over the flattened
// W-row window in trained feature ordering; the trained ordering is identical
// to the scaler's.
type Model struct {
	Version    string      `json:"version"`
	Features   []string    `json:"features"`
	Target     string      `json:"target"`
	WindowSize int         `json:"window_size"`
	Weights    [][]float64 `json:"weights"`
	Bias       float64     `json:"bias"`
}

// Validate checks the frozen weights against the declared window shape.
func (m *Model) Validate() error {
	if m == nil {
		return errors.New("forecast: nil model")
	}
	if len(m.Features) == 0 {
		return errors.New("forecast: empty feature ordering")
	}
	if m.WindowSize <= 0 {
		return errors.New("forecast: window size must be positive")
	}
	if m.Target == "" {
		return errors.New("forecast: empty target feature")
	}
	if m.TargetIndex() < 0 {
		return fmt.Errorf("forecast: target %q not in trained ordering", m.Target)
	}
	if len(m.Weights) != m.WindowSize {
		return fmt.Errorf("forecast: %d weight rows, want %d", len(m.Weights), m.WindowSize)
	}
	for i, row := range m.Weights {
		if len(row) != len(m.Features) {
			return fmt.Errorf("forecast: weight row %d has width %d, want %d", i, len(row), len(m.Features))
		}
	}
	return nil
}

// TargetIndex returns the target feature's position in the trained ordering,
// or -1 when absent.
func (m *Model) TargetIndex() int {
	for i, f := range m.Features {
		if f == m.Target {
			return i
		}
	}
	return -1
}

// PredictStep produces one scaled predicted target value from a W-row window
// of scaled rows.
func (m *Model) PredictStep(rows [][]float64) (float64, error) {
	if m == nil {
		return 0, ErrModelUnavailable
	}
	if len(rows) != m.WindowSize {
		return 0, fmt.Errorf("%w: got %d rows, want %d", ErrWindowSizeMismatch, len(rows), m.WindowSize)
	}
	sum := m.Bias
	for i, row := range rows {
		if len(row) != len(m.Features) {
			return 0, fmt.Errorf("forecast: window row %d has width %d, want %d", i, len(row), len(m.Features))
		}
		for j, v := range row {
			sum += m.Weights[i][j] * v
		}
	}
	return sum, nil
}
