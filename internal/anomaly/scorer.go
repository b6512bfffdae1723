package anomaly

import (
	"errors"
	"fmt"
	"math"
)

// Classification is the scorer's binary verdict over a scaled feature vector.
type Classification string

const (
	ClassificationLeak   Classification = "Leak"
	ClassificationNormal Classification = "Normal"
)

const eulerGamma = 0.5772156649015329

// Scorer evaluates a frozen isolation-forest model. All methods are pure and
// safe for concurrent use; the model is shared read-only.
type Scorer struct {
	model *Model
}

// NewScorer constructs a scorer from a validated model.
func NewScorer(model *Model) (*Scorer, error) {
	if err := model.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{model: model}, nil
}

// Features exposes the trained feature ordering.
func (s *Scorer) Features() []string {
	if s == nil || s.model == nil {
		return nil
	}
	return s.model.Features
}

// Score returns the raw separation score for a scaled feature vector. The
// score is unbounded; more negative means more anomalous, and the native
// decision boundary sits at zero.
func (s *Scorer) Score(scaled []float64) (float64, error) {
	if s == nil || s.model == nil {
		return 0, errors.New("anomaly: nil scorer")
	}
	if len(scaled) != len(s.model.Features) {
		return 0, fmt.Errorf("anomaly: got %d features, trained ordering has %d", len(scaled), len(s.model.Features))
	}
	total := 0.0
	for i := range s.model.Trees {
		total += pathLength(&s.model.Trees[i], scaled)
	}
	avg := total / float64(len(s.model.Trees))
	// score_samples = -2^(-E[h(x)] / c(max_samples)); decision = score - offset.
	sample := -math.Exp2(-avg / averagePathLength(s.model.MaxSamples))
	return sample - s.model.Offset, nil
}

// Probability maps a raw separation score to [0,1] with a logistic transform.
// This is a monotonic convenience mapping, not a calibrated probability: the
// raw score was never fit against held-out outcomes, so the value ranks events
// correctly but must not be read as a true likelihood.
func (s *Scorer) Probability(score float64) float64 {
	return 1 / (1 + math.Exp(score))
}

// Classify scores a scaled vector against the model's native decision
// boundary. It shares the raw score with Probability, so the two stay
// consistent even though the probability is uncalibrated.
func (s *Scorer) Classify(scaled []float64) (Classification, error) {
	score, err := s.Score(scaled)
	if err != nil {
		return "", err
	}
	if score < 0 {
		return ClassificationLeak, nil
	}
	return ClassificationNormal, nil
}

func pathLength(tree *Tree, x []float64) float64 {
	node := 0
	depth := 0.0
	for tree.ChildLeft[node] >= 0 {
		if x[tree.Feature[node]] <= tree.Threshold[node] {
			node = tree.ChildLeft[node]
		} else {
			node = tree.ChildRight[node]
		}
		depth++
	}
	return depth + averagePathLength(tree.NodeSamples[node])
}

// averagePathLength is c(n), the expected path length of an unsuccessful
// search in a binary search tree of n samples.
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	f := float64(n)
	return 2*(math.Log(f-1)+eulerGamma) - 2*(f-1)/f
}
