package scaling

import (
	"errors"
	"fmt"
)

// ErrSchemaMismatch reports an input vector whose length does not match the
// trained feature ordering.
var ErrSchemaMismatch = errors.New("scaling: schema mismatch")

// Scaler applies and inverts a trained affine feature transform. Both
// directions are pure and deterministic given the trained parameters.
type Scaler struct {
	params *Params
}

// NewScaler constructs a scaler from validated parameters.
func NewScaler(params *Params) (*Scaler, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Scaler{params: params}, nil
}

// Params exposes the trained parameters.
func (s *Scaler) Params() *Params {
	if s == nil {
		return nil
	}
	return s.params
}

// Scale transforms a raw feature vector in trained ordering.
func (s *Scaler) Scale(raw []float64) ([]float64, error) {
	if s == nil || s.params == nil {
		return nil, errors.New("scaling: nil scaler")
	}
	if err := s.checkWidth(len(raw)); err != nil {
		return nil, err
	}
	scaled := make([]float64, len(raw))
	for i, v := range raw {
		scaled[i] = s.scaleAt(i, v)
	}
	return scaled, nil
}

// Inverse reconstructs a raw feature vector from a scaled row. It is the exact
// inverse of Scale on the same ordering, to floating-point tolerance.
func (s *Scaler) Inverse(scaled []float64) ([]float64, error) {
	if s == nil || s.params == nil {
		return nil, errors.New("scaling: nil scaler")
	}
	if err := s.checkWidth(len(scaled)); err != nil {
		return nil, err
	}
	raw := make([]float64, len(scaled))
	for i, v := range scaled {
		raw[i] = s.inverseAt(i, v)
	}
	return raw, nil
}

// InverseAt inverts a single scaled value at the given feature index. The
// forecaster uses this to reconstruct the raw target from a spliced row.
func (s *Scaler) InverseAt(index int, scaled float64) (float64, error) {
	if s == nil || s.params == nil {
		return 0, errors.New("scaling: nil scaler")
	}
	if index < 0 || index >= s.params.Width() {
		return 0, fmt.Errorf("%w: feature index %d out of range [0,%d)", ErrSchemaMismatch, index, s.params.Width())
	}
	return s.inverseAt(index, scaled), nil
}

func (s *Scaler) checkWidth(got int) error {
	if want := s.params.Width(); got != want {
		return fmt.Errorf("%w: got %d features, trained ordering has %d", ErrSchemaMismatch, got, want)
	}
	return nil
}

func (s *Scaler) scaleAt(i int, v float64) float64 {
	switch s.params.Kind {
	case KindMinMax:
		span := s.params.Max[i] - s.params.Min[i]
		if span == 0 {
			// Degenerate feature: center only, so the transform stays invertible.
			return v - s.params.Min[i]
		}
		return (v - s.params.Min[i]) / span
	default:
		if s.params.Scale[i] == 0 {
			return v - s.params.Mean[i]
		}
		return (v - s.params.Mean[i]) / s.params.Scale[i]
	}
}

func (s *Scaler) inverseAt(i int, v float64) float64 {
	switch s.params.Kind {
	case KindMinMax:
		span := s.params.Max[i] - s.params.Min[i]
		if span == 0 {
			return v + s.params.Min[i]
		}
		return v*span + s.params.Min[i]
	default:
		if s.params.Scale[i] == 0 {
			return v + s.params.Mean[i]
		}
		return v*s.params.Scale[i] + s.params.Mean[i]
	}
}
