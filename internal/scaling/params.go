package scaling

import (
	"errors"
	"fmt"
)

// Kind selects the affine transform family.
type Kind string

const (
	// KindMinMax maps each feature to [0,1] using trained min/max.
	KindMinMax Kind = "minmax"
	// KindStandard centers and scales each feature using trained mean/scale.
	KindStandard Kind = "standard"
)

// Params holds trained scaling parameters for a fixed feature ordering.
// Immutable after load; shared read-only by all inference calls.
type Params struct {
	Version  string    `json:"version"`
	Kind     Kind      `json:"kind"`
	Features []string  `json:"features"`
	Min      []float64 `json:"min,omitempty"`
	Max      []float64 `json:"max,omitempty"`
	Mean     []float64 `json:"mean,omitempty"`
	Scale    []float64 `json:"scale,omitempty"`
}

// Validate checks internal consistency of the parameters.
func (p *Params) Validate() error {
	if p == nil {
		return errors.New("scaling: nil params")
	}
	if len(p.Features) == 0 {
		return errors.New("scaling: empty feature ordering")
	}
	n := len(p.Features)
	switch p.Kind {
	case KindMinMax:
		if len(p.Min) != n || len(p.Max) != n {
			return fmt.Errorf("scaling: min/max length %d/%d does not match %d features", len(p.Min), len(p.Max), n)
		}
	case KindStandard:
		if len(p.Mean) != n || len(p.Scale) != n {
			return fmt.Errorf("scaling: mean/scale length %d/%d does not match %d features", len(p.Mean), len(p.Scale), n)
		}
	default:
		return fmt.Errorf("scaling: unknown kind %q", p.Kind)
	}
	return nil
}

// Width returns the trained feature count.
func (p *Params) Width() int {
	if p == nil {
		return 0
	}
	return len(p.Features)
}

// FeatureIndex returns the position of a named feature in the trained ordering.
func (p *Params) FeatureIndex(name string) (int, bool) {
	if p == nil {
		return 0, false
	}
	for i, f := range p.Features {
		if f == name {
			return i, true
		}
	}
	return 0, false
}
