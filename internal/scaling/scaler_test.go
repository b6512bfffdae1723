package scaling

import (
	"errors"
	"math"
	"testing"
)

func standardParams() *Params {
	return &Params{
		Version:  "v1",
		Kind:     KindStandard,
		Features: []string{"flow_rate", "water_level", "temperature"},
		Mean:     []float64{25.0, 3.1, 18.5},
		Scale:    []float64{12.4, 0.9, 6.2},
	}
}

func minMaxParams() *Params {
	return &Params{
		Version:  "v1",
		Kind:     KindMinMax,
		Features: []string{"flow_rate", "water_level", "temperature"},
		Min:      []float64{0, 0, -10},
		Max:      []float64{120, 8, 45},
	}
}

func TestScaleInverseRoundTrip(t *testing.T) {
	cases := []struct {
		name   string
		params *Params
	}{
		{name: "standard", params: standardParams()},
		{name: "minmax", params: minMaxParams()},
	}
	vectors := [][]float64{
		{45.2, 2.8, 23.5},
		{0.001, 7.99, -9.5},
		{119.3, 0.0, 44.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			scaler, err := NewScaler(tc.params)
			if err != nil {
				t.Fatalf("new scaler: %v", err)
			}
			for _, raw := range vectors {
				scaled, err := scaler.Scale(raw)
				if err != nil {
					t.Fatalf("scale: %v", err)
				}
				back, err := scaler.Inverse(scaled)
				if err != nil {
					t.Fatalf("inverse: %v", err)
				}
				for i := range raw {
					if !closeRel(back[i], raw[i], 1e-9) {
						t.Fatalf("round trip feature %d: got %v, want %v", i, back[i], raw[i])
					}
				}
			}
		})
	}
}

func TestScaleSchemaMismatch(t *testing.T) {
	scaler, err := NewScaler(standardParams())
	if err != nil {
		t.Fatalf("new scaler: %v", err)
	}
	if _, err := scaler.Scale([]float64{1, 2}); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("short vector: got %v, want ErrSchemaMismatch", err)
	}
	if _, err := scaler.Inverse([]float64{1, 2, 3, 4}); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("long vector: got %v, want ErrSchemaMismatch", err)
	}
	if _, err := scaler.InverseAt(5, 0.2); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("bad index: got %v, want ErrSchemaMismatch", err)
	}
}

func TestZeroSpanFeatureStaysInvertible(t *testing.T) {
	params := &Params{
		Kind:     KindMinMax,
		Features: []string{"constant"},
		Min:      []float64{4},
		Max:      []float64{4},
	}
	scaler, err := NewScaler(params)
	if err != nil {
		t.Fatalf("new scaler: %v", err)
	}
	scaled, err := scaler.Scale([]float64{4})
	if err != nil {
		t.Fatalf("scale: %v", err)
	}
	back, err := scaler.Inverse(scaled)
	if err != nil {
		t.Fatalf("inverse: %v", err)
	}
	if back[0] != 4 {
		t.Fatalf("got %v, want 4", back[0])
	}
}

func TestParamsValidate(t *testing.T) {
	bad := &Params{Kind: KindStandard, Features: []string{"a", "b"}, Mean: []float64{1}, Scale: []float64{1, 2}}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected validation error for mismatched mean length")
	}
	unknown := &Params{Kind: "robust", Features: []string{"a"}}
	if err := unknown.Validate(); err == nil {
		t.Fatal("expected validation error for unknown kind")
	}
}

func TestFeatureIndex(t *testing.T) {
	params := standardParams()
	idx, ok := params.FeatureIndex("water_level")
	if !ok || idx != 1 {
		t.Fatalf("got (%d,%v), want (1,true)", idx, ok)
	}
	if _, ok := params.FeatureIndex("pressure"); ok {
		t.Fatal("unexpected hit for unknown feature")
	}
}

func closeRel(got, want, tol float64) bool {
	if got == want {
		return true
	}
	denom := math.Abs(want)
	if denom == 0 {
		denom = 1
	}
	return math.Abs(got-want)/denom <= tol
}
