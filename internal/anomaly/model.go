package anomaly

import (
	"errors"
	"fmt"
)

// Tree is one frozen isolation tree in flat-array form. A node i is a leaf
// when ChildLeft[i] < 0.
type Tree struct {
	ChildLeft   []int     `json:"child_left"`
	ChildRight  []int     `json:"child_right"`
	Feature     []int     `json:"feature"`
	Threshold   []float64 `json:"threshold"`
	NodeSamples []int     `json:"node_samples"`
}

// Model holds a frozen isolation-forest ensemble together with the feature
// ordering it was trained on. Immutable after load.
type Model struct {
	Version    string   `json:"version"`
	Features   []string `json:"features"`
	Trees      []Tree   `json:"trees"`
	MaxSamples int      `json:"max_samples"`
	// Offset shifts the sample score so that the native decision boundary
	// sits at zero: decision = score_samples - offset.
	Offset float64 `json:"offset"`
}

// Validate checks the frozen ensemble for structural consistency.
func (m *Model) Validate() error {
	if m == nil {
		return errors.New("anomaly: nil model")
	}
	if len(m.Features) == 0 {
		return errors.New("anomaly: empty feature ordering")
	}
	if len(m.Trees) == 0 {
		return errors.New("anomaly: empty ensemble")
	}
	if m.MaxSamples <= 1 {
		return errors.New("anomaly: max_samples must be > 1")
	}
	width := len(m.Features)
	for ti, tree := range m.Trees {
		n := len(tree.ChildLeft)
		if n == 0 {
			return fmt.Errorf("anomaly: tree %d has no nodes", ti)
		}
		if len(tree.ChildRight) != n || len(tree.Feature) != n || len(tree.Threshold) != n || len(tree.NodeSamples) != n {
			return fmt.Errorf("anomaly: tree %d has inconsistent node arrays", ti)
		}
		for i := 0; i < n; i++ {
			if tree.ChildLeft[i] < 0 {
				continue
			}
			if tree.ChildLeft[i] >= n || tree.ChildRight[i] < 0 || tree.ChildRight[i] >= n {
				return fmt.Errorf("anomaly: tree %d node %d has out-of-range children", ti, i)
			}
			if tree.Feature[i] < 0 || tree.Feature[i] >= width {
				return fmt.Errorf("anomaly: tree %d node %d splits on unknown feature %d", ti, i, tree.Feature[i])
			}
		}
	}
	return nil
}
