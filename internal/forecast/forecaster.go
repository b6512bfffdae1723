package forecast

import (
	"errors"
	"fmt"

	"aquawatch/internal/scaling"
)

// Forecaster produces an N-step forecast of the model's target feature by
// repeated single-step prediction with window roll-forward. Companion features
// are held constant at their most recent observed scaled value; this is a
// deliberate modeling simplification, not true multivariate forecasting.
type Forecaster struct {
	model     *Model
	scaler    *scaling.Scaler
	targetIdx int
}

// NewForecaster constructs a forecaster over a frozen model and the scaler it
// was trained with.
func NewForecaster(model *Model, scaler *scaling.Scaler) (*Forecaster, error) {
	if model == nil {
		return nil, ErrModelUnavailable
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	if scaler == nil || scaler.Params() == nil {
		return nil, errors.New("forecast: nil scaler")
	}
	trained := scaler.Params().Features
	if len(trained) != len(model.Features) {
		return nil, fmt.Errorf("forecast: scaler has %d features, model has %d", len(trained), len(model.Features))
	}
	for i, f := range model.Features {
		if trained[i] != f {
			return nil, fmt.Errorf("forecast: feature ordering differs at %d: scaler %q, model %q", i, trained[i], f)
		}
	}
	return &Forecaster{model: model, scaler: scaler, targetIdx: model.TargetIndex()}, nil
}

// WindowSize returns the W the model was trained with.
func (f *Forecaster) WindowSize() int {
	if f == nil || f.model == nil {
		return 0
	}
	return f.model.WindowSize
}

// TargetFeature returns the forecast target's name.
func (f *Forecaster) TargetFeature() string {
	if f == nil || f.model == nil {
		return ""
	}
	return f.model.Target
}

// Forecast runs the prediction loop and returns exactly steps raw target
// values, oldest first. The window is mutated by roll-forward: after step i it
// holds the i-th reconstructed scaled row as its newest entry. The forecaster
// attaches no timestamps; those belong to the caller. No retries are
// performed; inference errors propagate.
func (f *Forecaster) Forecast(window *Window, steps int) ([]float64, error) {
	if f == nil || f.model == nil {
		return nil, ErrModelUnavailable
	}
	if steps < 0 {
		return nil, fmt.Errorf("forecast: negative steps %d", steps)
	}
	if window == nil {
		return nil, fmt.Errorf("%w: nil window", ErrWindowSizeMismatch)
	}
	if window.Size() != f.model.WindowSize {
		return nil, fmt.Errorf("%w: got %d rows, want %d", ErrWindowSizeMismatch, window.Size(), f.model.WindowSize)
	}
	width := len(f.model.Features)
	if window.Width() != width {
		return nil, fmt.Errorf("forecast: window width %d, trained ordering has %d", window.Width(), width)
	}

	predictions := make([]float64, 0, steps)
	for i := 0; i < steps; i++ {
		predicted, err := f.model.PredictStep(window.Rows())
		if err != nil {
			return nil, err
		}

		// Splice the predicted scalar into a full row, companions taken from
		// the newest observed row. Verify the slice width rather than assume
		// it: a drifted window would otherwise corrupt every later step.
		last := window.Last()
		if len(last) != width {
			return nil, fmt.Errorf("forecast: step %d companion row has width %d, want %d", i, len(last), width)
		}
		row := append([]float64(nil), last...)
		row[f.targetIdx] = predicted

		raw, err := f.scaler.InverseAt(f.targetIdx, predicted)
		if err != nil {
			return nil, err
		}
		predictions = append(predictions, raw)

		if err := window.Roll(row); err != nil {
			return nil, err
		}
	}
	return predictions, nil
}
