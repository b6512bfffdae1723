// Package artifacts loads the frozen model artifacts the pipeline serves
// with. Artifacts are read once at startup and shared read-only for the
// process lifetime; a load failure is fatal, there is no degraded mode.
package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"aquawatch/internal/anomaly"
	"aquawatch/internal/forecast"
	"aquawatch/internal/scaling"
)

const (
	scalerFile        = "scaler.json"
	anomalyModelFile  = "anomaly_model.json"
	forecastModelFile = "forecast_model.json"
)

// Store holds the loaded, validated artifacts.
type Store struct {
	scaler     *scaling.Scaler
	scorer     *anomaly.Scorer
	forecaster *forecast.Forecaster

	scalerVersion   string
	anomalyVersion  string
	forecastVersion string
}

// Load reads all artifacts from dir and validates that the anomaly and
// forecast models share the scaler's feature ordering.
func Load(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("artifacts: empty directory")
	}

	var params scaling.Params
	if err := readJSON(filepath.Join(dir, scalerFile), &params); err != nil {
		return nil, err
	}
	scaler, err := scaling.NewScaler(&params)
	if err != nil {
		return nil, err
	}

	var anomalyModel anomaly.Model
	if err := readJSON(filepath.Join(dir, anomalyModelFile), &anomalyModel); err != nil {
		return nil, err
	}
	if err := sameOrdering("anomaly model", params.Features, anomalyModel.Features); err != nil {
		return nil, err
	}
	scorer, err := anomaly.NewScorer(&anomalyModel)
	if err != nil {
		return nil, err
	}

	var forecastModel forecast.Model
	if err := readJSON(filepath.Join(dir, forecastModelFile), &forecastModel); err != nil {
		return nil, err
	}
	forecaster, err := forecast.NewForecaster(&forecastModel, scaler)
	if err != nil {
		return nil, err
	}

	return &Store{
		scaler:          scaler,
		scorer:          scorer,
		forecaster:      forecaster,
		scalerVersion:   params.Version,
		anomalyVersion:  anomalyModel.Version,
		forecastVersion: forecastModel.Version,
	}, nil
}

// Scaler returns the shared feature transformer.
func (s *Store) Scaler() *scaling.Scaler { return s.scaler }

// Scorer returns the shared anomaly scorer.
func (s *Store) Scorer() *anomaly.Scorer { return s.scorer }

// Forecaster returns the shared rolling forecaster.
func (s *Store) Forecaster() *forecast.Forecaster { return s.forecaster }

// Versions describes the loaded artifact versions for logging.
func (s *Store) Versions() string {
	if s == nil {
		return ""
	}
	return fmt.Sprintf("scaler=%s anomaly=%s forecast=%s", s.scalerVersion, s.anomalyVersion, s.forecastVersion)
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("artifacts: read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("artifacts: parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func sameOrdering(name string, want, got []string) error {
	if len(want) != len(got) {
		return fmt.Errorf("artifacts: %s has %d features, scaler has %d", name, len(got), len(want))
	}
	for i := range want {
		if want[i] != got[i] {
			return fmt.Errorf("artifacts: %s feature ordering differs at %d: %q vs %q", name, i, got[i], want[i])
		}
	}
	return nil
}
